package dashboard

import (
	"fmt"

	"github.com/spektr-org/fuelscope/engine"
	"github.com/spektr-org/fuelscope/filterstate"
	"github.com/spektr-org/fuelscope/schema"
)

// Row keys of the competition table.
const (
	colStations = "stations"
	colPrice    = "price"
)

type builder struct {
	cfg      *config
	opts     []engine.Option
	view     engine.RecordView // every selection applied
	others   engine.RecordView // every selection but product
	controls *filterstate.Controls
}

func (b *builder) panel(id string) Panel {
	switch id {
	case PanelRegion:
		return b.averageBy(id, schema.Region, "Prices by region", "Average prices by region")
	case PanelState:
		return b.averageBy(id, schema.State, "Prices by state", "Average prices by state")
	case PanelMunicipality:
		return b.averageBy(id, schema.Municipality, "Prices by municipality", "Average prices by municipality")
	case PanelTimeline:
		return b.timeline()
	case PanelDistribution:
		return b.distribution()
	case PanelTopCities:
		return b.topCities()
	case PanelBrands:
		return b.brands()
	case PanelCompetition:
		return b.competition()
	case PanelExtremes:
		return b.extremes()
	case PanelRecords:
		return b.records()
	}
	return Panel{ID: id, Empty: true, Warning: NoDataWarning}
}

func empty(id, heading, kind string) Panel {
	return Panel{ID: id, Heading: heading, Kind: kind, Empty: true, Warning: NoDataWarning}
}

// execute runs q through the engine and wraps the result as a panel.
func (b *builder) execute(id, heading string, q engine.Query, view engine.RecordView) Panel {
	kind := "chart"
	if q.Intent == "table" {
		kind = "table"
	}
	if view.Len() == 0 {
		return empty(id, heading, kind)
	}

	res, err := engine.Execute(q, view, b.opts...)
	if err != nil || (res.ChartConfig == nil && res.TableData == nil) {
		if err != nil {
			b.cfg.logger.Warn().Err(err).Str("panel", id).Msg("⚠️ panel failed")
		}
		return empty(id, heading, kind)
	}
	return Panel{ID: id, Heading: heading, Kind: kind, Chart: res.ChartConfig, Table: res.TableData, Caption: res.Reply}
}

// ============================================================================
// CHART PANELS
// ============================================================================

// averageBy is the mean price per value of dimension, most expensive first.
// The table carries the same groups with their record counts.
func (b *builder) averageBy(id, dimension, heading, title string) Panel {
	q := engine.Query{
		Intent:      "chart",
		Visualize:   "bar",
		Aggregation: "avg",
		GroupBy:     []string{dimension},
		SortBy:      "value_desc",
		Title:       title,
		Reply:       "Average {avg} over {count} records.",
	}
	p := b.execute(id, heading, q, b.view)
	if p.Empty {
		return p
	}

	q.Intent, q.Visualize = "table", "table"
	res, err := engine.Execute(q, b.view, b.opts...)
	if err != nil {
		b.cfg.logger.Warn().Err(err).Str("panel", id).Msg("⚠️ panel table failed")
		return p
	}
	p.Table = res.TableData
	return p
}

// timeline is the mean price of each product over time in the chosen city.
func (b *builder) timeline() Panel {
	const heading = "Fuel prices over time"
	city := b.controls.City.Value
	if city == "" {
		return empty(PanelTimeline, heading, "chart")
	}

	x := schema.CollectedOn
	if b.controls.Granularity.Value == filterstate.GranularityMonth {
		x = schema.Month
	}
	return b.execute(PanelTimeline, heading, engine.Query{
		Intent:      "chart",
		Visualize:   "line",
		Aggregation: "avg",
		GroupBy:     []string{schema.Product, x},
		SortBy:      "date_asc",
		Title:       "Average price over time in " + city,
		Reply:       "{period}",
	}, engine.Where(b.view, schema.Municipality, city))
}

// distribution is the spread of prices per product.
func (b *builder) distribution() Panel {
	const heading = "Price analysis: median and outliers by product"
	stats := engine.Distribution(b.view, schema.SalePrice, schema.Product)
	chart := engine.BuildBoxChart("Price distribution by product", "Product", "Sale price", stats)
	if chart == nil {
		return empty(PanelDistribution, heading, "chart")
	}
	return Panel{ID: PanelDistribution, Heading: heading, Kind: "chart", Chart: chart}
}

// topCities is the five most expensive municipalities for the chosen fuel,
// ignoring the product selection.
func (b *builder) topCities() Panel {
	const heading = "Top 5 cities by average price per fuel"
	fuel := b.controls.Fuel.Value
	if fuel == "" {
		return empty(PanelTopCities, heading, "chart")
	}
	return b.execute(PanelTopCities, heading, engine.Query{
		Intent:      "chart",
		Visualize:   "bar",
		Orientation: "h",
		Aggregation: "avg",
		GroupBy:     []string{schema.Municipality},
		SortBy:      "value_asc",
		Limit:       5,
		FromEnd:     true,
		Title:       "Top 5 cities with the highest average price - " + fuel,
		Reply:       "{top_category} leads at {top_amount}.",
	}, engine.Where(b.others, schema.Product, fuel))
}

// brands is the share of records of the five most frequent brands,
// ignoring the product selection.
func (b *builder) brands() Panel {
	const heading = "Top 5 fuel brands"
	groups := engine.ValueCounts(b.others, schema.Brand, 5)
	chart := engine.BuildChart(engine.Query{Visualize: "pie", Aggregation: "count", Title: "Fuel brand distribution"}, groups)
	if chart == nil {
		return empty(PanelBrands, heading, "chart")
	}
	chart.XAxis = "Brand"
	chart.YAxis = "Records"
	return Panel{ID: PanelBrands, Heading: heading, Kind: "chart", Chart: chart}
}

// ============================================================================
// TABLE PANELS
// ============================================================================

// competitionRows counts distinct retailers per (region, municipality) and
// joins the municipality's mean price, busiest and cheapest first.
func (b *builder) competitionRows() []engine.Row {
	if b.view.Len() == 0 {
		return nil
	}
	stations := engine.Flatten(engine.GroupAndAggregate(b.view, engine.Query{
		GroupBy:     []string{schema.Region, schema.Municipality},
		Aggregation: "distinct",
		Distinct:    schema.Retailer,
	}), []string{schema.Region, schema.Municipality}, colStations)

	prices := engine.Flatten(engine.GroupAndAggregate(b.view, engine.Query{
		GroupBy:     []string{schema.Municipality},
		Aggregation: "avg",
		Measure:     schema.SalePrice,
	}), []string{schema.Municipality}, colPrice)
	engine.RoundValues(prices, colPrice, 2)

	rows := engine.Merge(stations, prices, schema.Municipality)
	engine.SortRows(rows, engine.SortKey{Column: colStations, Desc: true}, engine.SortKey{Column: colPrice})
	return rows
}

func (b *builder) competitionColumns(rows []engine.Row) []engine.Column {
	return []engine.Column{
		{Key: schema.Region, Label: "Region", Type: "text", Align: "left"},
		{Key: schema.Municipality, Label: "Municipality", Type: "text", Align: "left"},
		{Key: colStations, Label: "Stations", Type: "progress", Align: "right", Max: engine.MaxValue(rows, colStations)},
		{Key: colPrice, Label: "Average price", Type: "currency", Align: "right"},
	}
}

func (b *builder) competition() Panel {
	const heading = "Competition by municipality"
	rows := b.competitionRows()
	if len(rows) == 0 {
		return empty(PanelCompetition, heading, "table")
	}
	table := engine.BuildRowsTable(heading, b.competitionColumns(rows), rows)
	return Panel{
		ID:      PanelCompetition,
		Heading: heading,
		Kind:    "table",
		Table:   table,
		Caption: fmt.Sprintf("%d municipalities", len(rows)),
	}
}

// extremes keeps the municipalities whose mean price is the highest or the
// lowest among the selected ones.
func (b *builder) extremes() Panel {
	const heading = "Highest and lowest average price among the selected cities"
	rows := b.competitionRows()
	if len(rows) == 0 {
		return empty(PanelExtremes, heading, "table")
	}
	hi, lo := engine.MaxValue(rows, colPrice), engine.MinValue(rows, colPrice)
	rows = engine.FilterRows(rows, func(r engine.Row) bool {
		return r.Values[colPrice] == hi || r.Values[colPrice] == lo
	})
	table := engine.BuildRowsTable(heading, b.competitionColumns(rows), rows)
	return Panel{
		ID:      PanelExtremes,
		Heading: heading,
		Kind:    "table",
		Table:   table,
		Caption: fmt.Sprintf("Highest %s, lowest %s", engine.FormatCurrency(hi, b.cfg.unit), engine.FormatCurrency(lo, b.cfg.unit)),
	}
}

// records lists every filtered row.
func (b *builder) records() Panel {
	return b.execute(PanelRecords, "Filtered data", engine.Query{
		Intent:      "table",
		Aggregation: "list",
		Limit:       b.cfg.recordLimit,
		Title:       "Filtered data",
		Reply:       "{count} records, {period}.",
	}, b.view)
}

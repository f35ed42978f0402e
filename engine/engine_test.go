package engine

import (
	"math"
	"strings"
	"testing"
)

// ============================================================================
// FIXTURES
// ============================================================================

func sale(year, product, region, state, city, brand, retailer, date, month string, price float64) Record {
	return Record{
		Dimensions: map[string]string{
			"year":         year,
			"product":      product,
			"region":       region,
			"state":        state,
			"municipality": city,
			"brand":        brand,
			"retailer":     retailer,
			"collected_on": date,
			"month":        month,
		},
		Measures: map[string]float64{"sale_price": price},
	}
}

func fixtureView() RecordView {
	return NewSliceView([]Record{
		sale("2025", "GASOLINA", "SE", "MG", "JUIZ DE FORA", "IPIRANGA", "Posto A", "2025-01-10", "2025-01", 6.00),
		sale("2025", "GASOLINA", "SE", "MG", "JUIZ DE FORA", "SHELL", "Posto B", "2025-01-10", "2025-01", 6.20),
		sale("2025", "ETANOL", "SE", "MG", "JUIZ DE FORA", "IPIRANGA", "Posto A", "2025-02-05", "2025-02", 4.00),
		sale("2025", "GASOLINA", "SE", "MG", "BELO HORIZONTE", "BRANCA", "Posto C", "2025-02-05", "2025-02", 5.80),
		sale("2025", "GASOLINA", "SE", "RJ", "RIO DE JANEIRO", "SHELL", "Posto D", "2025-01-10", "2025-01", 6.50),
		sale("2024", "GASOLINA", "NE", "BA", "SALVADOR", "IPIRANGA", "Posto E", "2024-06-01", "2024-06", 5.90),
	})
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func assertFloat(t *testing.T, got, want float64, msg string) {
	t.Helper()
	if !approx(got, want) {
		t.Errorf("%s: got %.6f, want %.6f", msg, got, want)
	}
}

func groupKeys(groups []Group) []string {
	keys := make([]string, len(groups))
	for i, g := range groups {
		keys[i] = g.Key
	}
	return keys
}

func assertKeys(t *testing.T, got []string, want ...string) {
	t.Helper()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("keys = %v, want %v", got, want)
	}
}

// ============================================================================
// FILTERS
// ============================================================================

func TestApplyFiltersCaseInsensitiveAndLenient(t *testing.T) {
	view := fixtureView()

	got := ApplyFilters(view, Filters{Dimensions: map[string][]string{"product": {"gasolina"}}})
	if got.Len() != 5 {
		t.Errorf("gasolina rows = %d, want 5", got.Len())
	}

	got = ApplyFilters(view, Filters{Dimensions: map[string][]string{"product": {}}})
	if got.Len() != view.Len() {
		t.Errorf("empty allow-list should not restrict, got %d rows", got.Len())
	}
}

func TestApplySelectionsStrict(t *testing.T) {
	view := fixtureView()

	got := ApplySelections(view, Filters{Dimensions: map[string][]string{
		"year":  {"2025"},
		"state": {"MG"},
	}})
	if got.Len() != 4 {
		t.Errorf("2025/MG rows = %d, want 4", got.Len())
	}

	got = ApplySelections(view, Filters{Dimensions: map[string][]string{
		"year":    {"2025"},
		"product": {},
	}})
	if got.Len() != 0 {
		t.Errorf("empty selection should match nothing, got %d rows", got.Len())
	}
	if len(got.DimensionKeys()) == 0 {
		t.Error("empty view should keep parent dimension keys")
	}
}

func TestFiltersWithWithoutDoNotAlias(t *testing.T) {
	base := Filters{Dimensions: map[string][]string{"product": {"GASOLINA"}, "state": {"MG"}}}
	without := base.Without("product")
	with := base.With("product", "ETANOL")

	if without.HasFilter("product") {
		t.Error("Without should drop the dimension")
	}
	if !base.HasFilter("product") || base.Dimensions["product"][0] != "GASOLINA" {
		t.Error("original filters must be unchanged")
	}
	if with.Dimensions["product"][0] != "ETANOL" {
		t.Errorf("With product = %v", with.Dimensions["product"])
	}
}

func TestWhere(t *testing.T) {
	got := Where(fixtureView(), "municipality", "juiz de fora")
	if got.Len() != 3 {
		t.Errorf("Where rows = %d, want 3", got.Len())
	}
}

func TestStackedFiltersReadFromRoot(t *testing.T) {
	base := fixtureView()
	city := Where(base, "municipality", "JUIZ DE FORA")
	gas := Where(city, "product", "GASOLINA")

	sv, ok := gas.(*SubView)
	if !ok || sv.parent != base {
		t.Fatalf("stacked view should point at the root, got %T", gas)
	}
	if gas.Len() != 2 || gas.Dimension(1, "retailer") != "Posto B" || gas.Measure(1, "sale_price") != 6.20 {
		t.Errorf("stacked rows = %d, second retailer %q", gas.Len(), gas.Dimension(1, "retailer"))
	}
	if Empty(gas).Len() != 0 || len(Empty(gas).DimensionKeys()) == 0 {
		t.Error("Empty should keep the root's keys")
	}
}

// ============================================================================
// AGGREGATION
// ============================================================================

func TestGroupAndAggregateMeanSortedDesc(t *testing.T) {
	groups := GroupAndAggregate(fixtureView(), Query{
		GroupBy:     []string{"state"},
		Measure:     "sale_price",
		Aggregation: "avg",
		SortBy:      "value_desc",
	})

	assertKeys(t, groupKeys(groups), "RJ", "BA", "MG")
	assertFloat(t, groups[0].Value, 6.5, "RJ mean")
	assertFloat(t, groups[2].Value, 5.5, "MG mean")
	if groups[2].Count != 4 {
		t.Errorf("MG count = %d, want 4", groups[2].Count)
	}
}

func TestGroupAndAggregateDistinct(t *testing.T) {
	groups := GroupAndAggregate(fixtureView(), Query{
		GroupBy:     []string{"municipality"},
		Aggregation: "distinct",
		Distinct:    "retailer",
		SortBy:      "value_desc",
	})

	if groups[0].Key != "JUIZ DE FORA" {
		t.Fatalf("first group = %q, want JUIZ DE FORA", groups[0].Key)
	}
	assertFloat(t, groups[0].Value, 2, "distinct retailers in Juiz de Fora")
	for _, g := range groups[1:] {
		assertFloat(t, g.Value, 1, "distinct retailers in "+g.Key)
	}
}

func TestGroupAndAggregateTail(t *testing.T) {
	groups := GroupAndAggregate(fixtureView(), Query{
		GroupBy:     []string{"state"},
		Measure:     "sale_price",
		Aggregation: "avg",
		SortBy:      "value_asc",
		Limit:       2,
		FromEnd:     true,
	})
	assertKeys(t, groupKeys(groups), "BA", "RJ")
}

func TestGroupAndAggregateNestedChronological(t *testing.T) {
	groups := GroupAndAggregate(fixtureView(), Query{
		GroupBy:     []string{"product", "collected_on"},
		Measure:     "sale_price",
		Aggregation: "avg",
		SortBy:      "date_asc",
	})

	assertKeys(t, groupKeys(groups), "ETANOL", "GASOLINA")
	gas := groups[1]
	assertKeys(t, groupKeys(gas.SubGroups), "2024-06-01", "2025-01-10", "2025-02-05")
	assertFloat(t, gas.SubGroups[1].Value, (6.0+6.2+6.5)/3, "gasolina 2025-01-10 mean")
}

func TestAggregationsMinMaxCountSum(t *testing.T) {
	view := fixtureView()
	cases := map[string]float64{
		"min":   4.0,
		"max":   6.5,
		"count": 6,
		"sum":   34.4,
	}
	for agg, want := range cases {
		groups := GroupAndAggregate(view, Query{Measure: "sale_price", Aggregation: agg})
		if len(groups) != 1 {
			t.Fatalf("%s: expected one total group, got %d", agg, len(groups))
		}
		assertFloat(t, groups[0].Value, want, agg)
	}
}

func TestValueCounts(t *testing.T) {
	groups := ValueCounts(fixtureView(), "brand", 2)
	assertKeys(t, groupKeys(groups), "IPIRANGA", "SHELL")
	if groups[0].Count != 3 || groups[1].Count != 2 {
		t.Errorf("counts = %d, %d; want 3, 2", groups[0].Count, groups[1].Count)
	}
}

func TestValueCountsSkipsBlankValues(t *testing.T) {
	view := NewSliceView([]Record{
		{Dimensions: map[string]string{"brand": ""}},
		{Dimensions: map[string]string{"brand": ""}},
		{Dimensions: map[string]string{"brand": ""}},
		{Dimensions: map[string]string{"brand": "SHELL"}},
		{Dimensions: map[string]string{"brand": "VIBRA"}},
		{Dimensions: map[string]string{"brand": "SHELL"}},
	})
	groups := ValueCounts(view, "brand", 5)
	assertKeys(t, groupKeys(groups), "SHELL", "VIBRA")
	if groups[0].Count != 2 {
		t.Errorf("SHELL count = %d, want 2", groups[0].Count)
	}
}

func TestSortGroupsUnknownModeKeepsOrder(t *testing.T) {
	groups := []Group{{Key: "b", Value: 1}, {Key: "a", Value: 3}, {Key: "c", Value: 2}}
	SortGroups(groups, "amount_desc")
	assertKeys(t, groupKeys(groups), "b", "a", "c")

	SortGroups(groups, "value_desc")
	assertKeys(t, groupKeys(groups), "a", "c", "b")
}

func TestVirtualYearFromCollectionDate(t *testing.T) {
	view := NewSliceView([]Record{
		{Dimensions: map[string]string{"collected_on": "15/03/2023"}, Measures: map[string]float64{"sale_price": 1}},
	})
	if got := UniqueValues(view, "year"); len(got) != 1 || got[0] != "2023" {
		t.Errorf("virtual year = %v, want [2023]", got)
	}
	if got := UniqueValues(view, "month"); len(got) != 1 || got[0] != "2023-03" {
		t.Errorf("virtual month = %v, want [2023-03]", got)
	}
}

// ============================================================================
// ROWS: FLATTEN / MERGE / SORT
// ============================================================================

func TestCompetitionMerge(t *testing.T) {
	view := fixtureView()

	stations := Flatten(GroupAndAggregate(view, Query{
		GroupBy:     []string{"region", "municipality"},
		Aggregation: "distinct",
		Distinct:    "retailer",
	}), []string{"region", "municipality"}, "stations")

	prices := Flatten(GroupAndAggregate(view, Query{
		GroupBy:     []string{"municipality"},
		Measure:     "sale_price",
		Aggregation: "avg",
	}), []string{"municipality"}, "avg_price")
	RoundValues(prices, "avg_price", 2)

	merged := Merge(stations, prices, "municipality")
	if len(merged) != 4 {
		t.Fatalf("merged rows = %d, want 4", len(merged))
	}

	SortRows(merged, SortKey{Column: "stations", Desc: true}, SortKey{Column: "avg_price"})

	var order []string
	for _, r := range merged {
		order = append(order, r.Keys["municipality"])
	}
	assertKeys(t, order, "JUIZ DE FORA", "BELO HORIZONTE", "SALVADOR", "RIO DE JANEIRO")

	first := merged[0]
	if first.Keys["region"] != "SE" {
		t.Errorf("region key lost in merge: %v", first.Keys)
	}
	assertFloat(t, first.Values["stations"], 2, "stations")
	assertFloat(t, first.Values["avg_price"], 5.4, "rounded avg price")

	assertFloat(t, MaxValue(merged, "avg_price"), 6.5, "max price")
	assertFloat(t, MinValue(merged, "avg_price"), 5.4, "min price")
}

func TestMergeDropsUnmatched(t *testing.T) {
	left := []Row{
		{Keys: map[string]string{"k": "a"}, Values: map[string]float64{"x": 1}},
		{Keys: map[string]string{"k": "b"}, Values: map[string]float64{"x": 2}},
	}
	right := []Row{
		{Keys: map[string]string{"k": "b"}, Values: map[string]float64{"y": 3}},
	}
	got := Merge(left, right, "k")
	if len(got) != 1 || got[0].Keys["k"] != "b" || got[0].Values["y"] != 3 || got[0].Values["x"] != 2 {
		t.Errorf("Merge = %+v", got)
	}
}

// ============================================================================
// DISTRIBUTION / METRICS
// ============================================================================

func TestBoxStatsOutliers(t *testing.T) {
	bs := BoxStatsOf("x", []float64{100, 3, 1, 4, 2})

	assertFloat(t, bs.Q1, 2, "Q1")
	assertFloat(t, bs.Median, 3, "median")
	assertFloat(t, bs.Q3, 4, "Q3")
	assertFloat(t, bs.Mean, 22, "mean")
	assertFloat(t, bs.LowerFence, 1, "lower fence")
	assertFloat(t, bs.UpperFence, 4, "upper fence")
	if len(bs.Outliers) != 1 || bs.Outliers[0] != 100 {
		t.Errorf("outliers = %v, want [100]", bs.Outliers)
	}
}

func TestQuantileInterpolates(t *testing.T) {
	assertFloat(t, Quantile([]float64{1, 2, 3, 4}, 0.5), 2.5, "median of 1..4")
	assertFloat(t, Quantile([]float64{7}, 0.75), 7, "single value")
	assertFloat(t, Quantile(nil, 0.5), 0, "empty")
}

func TestDistributionByProduct(t *testing.T) {
	stats := Distribution(fixtureView(), "sale_price", "product")
	if len(stats) != 2 || stats[0].Label != "ETANOL" || stats[1].Label != "GASOLINA" {
		t.Fatalf("distribution labels = %+v", stats)
	}
	if stats[1].Count != 5 {
		t.Errorf("gasolina count = %d, want 5", stats[1].Count)
	}
	assertFloat(t, stats[1].Median, 6.0, "gasolina median")
}

func TestSummarize(t *testing.T) {
	m := Summarize(fixtureView(), "sale_price", "product", "collected_on")

	if m.Count != 6 {
		t.Errorf("count = %d, want 6", m.Count)
	}
	assertFloat(t, m.Mean, 34.4/6, "mean")
	assertFloat(t, m.Min, 4, "min")
	assertFloat(t, m.Max, 6.5, "max")
	if m.TopLabel != "GASOLINA" {
		t.Errorf("top label = %q, want GASOLINA", m.TopLabel)
	}
	if m.Period != "2024-06-01 – 2025-02-05" {
		t.Errorf("period = %q", m.Period)
	}

	empty := Summarize(Empty(fixtureView()), "sale_price", "product", "collected_on")
	if empty.Count != 0 || empty.TopLabel != "" || empty.Period != "No data" {
		t.Errorf("empty summary = %+v", empty)
	}
}

// ============================================================================
// EXECUTE
// ============================================================================

func TestExecuteBarChart(t *testing.T) {
	res, err := Execute(Query{
		Intent:      "chart",
		Visualize:   "bar",
		GroupBy:     []string{"region"},
		Aggregation: "avg",
		SortBy:      "value_desc",
		Title:       "Average price by region",
		Reply:       "Average {avg} over {count} records",
	}, fixtureView())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Type != "chart" || res.ChartConfig == nil {
		t.Fatalf("expected chart result, got %+v", res)
	}
	cfg := res.ChartConfig
	if cfg.Orientation != "v" || cfg.XAxis != "Region" || cfg.YAxis != "Average" {
		t.Errorf("chart axes = %q/%q/%q", cfg.Orientation, cfg.XAxis, cfg.YAxis)
	}
	points := cfg.Series[0].Data
	if len(points) != 2 || points[0].Label != "NE" || points[1].Label != "SE" {
		t.Fatalf("points = %+v", points)
	}
	assertFloat(t, points[1].Value, 5.7, "SE mean")
	if res.Reply != "Average R$ 5.73 over 6 records" {
		t.Errorf("reply = %q", res.Reply)
	}
}

func TestExecuteLineChartSeriesPerProduct(t *testing.T) {
	res, err := Execute(Query{
		Visualize:   "line",
		GroupBy:     []string{"product", "month"},
		Aggregation: "avg",
		SortBy:      "date_asc",
	}, fixtureView())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	cfg := res.ChartConfig
	if cfg == nil || len(cfg.Series) != 2 || !cfg.Markers {
		t.Fatalf("line chart = %+v", cfg)
	}
	gas := cfg.Series[1]
	if gas.Name != "GASOLINA" || len(gas.Data) != 3 || gas.Data[0].Label != "2024-06" {
		t.Errorf("gasolina series = %+v", gas)
	}
}

func TestExecuteEmptyAndNoMatch(t *testing.T) {
	res, _ := Execute(Query{Intent: "chart", GroupBy: []string{"region"}}, Empty(fixtureView()))
	if res.Type != "text" || res.Reply != "No data available to analyze." {
		t.Errorf("empty view result = %+v", res)
	}

	res, _ = Execute(Query{
		Intent:  "chart",
		GroupBy: []string{"region"},
		Filters: Filters{Dimensions: map[string][]string{"state": {"SP"}}},
	}, fixtureView())
	if res.Type != "text" || !strings.Contains(res.Reply, "No records match") {
		t.Errorf("no-match result = %+v", res)
	}
}

func TestExecuteListTable(t *testing.T) {
	res, err := Execute(Query{Aggregation: "list", Limit: 2}, fixtureView())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Type != "table" || len(res.TableData.Rows) != 2 {
		t.Fatalf("list table = %+v", res.TableData)
	}
	if res.TableData.Summary.Values["sale_price"] != "R$ 5.73" {
		t.Errorf("summary = %+v", res.TableData.Summary)
	}
}

func TestExecuteAggregatedTable(t *testing.T) {
	res, err := Execute(Query{
		Intent:      "table",
		Aggregation: "avg",
		GroupBy:     []string{"region"},
		SortBy:      "value_desc",
	}, fixtureView())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Type != "table" || res.TableData == nil {
		t.Fatalf("result = %+v", res)
	}
	tbl := res.TableData
	if tbl.Columns[0].Label != "Region" || tbl.Columns[1].Label != "Average" || tbl.Columns[2].Label != "Count" {
		t.Errorf("columns = %+v", tbl.Columns)
	}
	want := [][]string{{"NE", "5.90", "1"}, {"SE", "5.70", "5"}}
	for i, row := range want {
		if strings.Join(tbl.Rows[i], "|") != strings.Join(row, "|") {
			t.Errorf("row %d = %v, want %v", i, tbl.Rows[i], row)
		}
	}
	if tbl.Summary == nil || tbl.Summary.Values["count"] != "6" {
		t.Errorf("summary = %+v", tbl.Summary)
	}
}

func TestExecuteTextAnswer(t *testing.T) {
	res, err := Execute(Query{Intent: "text", GroupBy: []string{"product"}}, fixtureView())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Type != "text" || res.Data == nil {
		t.Fatalf("result = %+v", res)
	}
	if res.Data.Count != 6 || res.Data.TopLabel != "GASOLINA" {
		t.Errorf("metrics = %+v", res.Data)
	}
	assertFloat(t, res.Data.Mean, 34.4/6, "mean")
	if res.Reply != "Found 6 records averaging R$ 5.73." {
		t.Errorf("reply = %q", res.Reply)
	}
}

func TestNormalizeQuery(t *testing.T) {
	q := NormalizeQuery(Query{Intent: "chart"})
	if q.Intent != "text" {
		t.Errorf("chart without groupBy should become text, got %q", q.Intent)
	}
	q = NormalizeQuery(Query{Visualize: "pie", GroupBy: []string{"brand"}})
	if q.Intent != "chart" {
		t.Errorf("pie visualize should imply chart, got %q", q.Intent)
	}
}

// ============================================================================
// FORMATTING / DATES
// ============================================================================

func TestFormatCurrency(t *testing.T) {
	cases := map[float64]string{
		1234.5:   "R$ 1,234.50",
		6.499:    "R$ 6.50",
		-12:      "-R$ 12.00",
		999.999:  "R$ 1,000.00",
		1000000:  "R$ 1,000,000.00",
	}
	for in, want := range cases {
		if got := FormatCurrency(in, "R$"); got != want {
			t.Errorf("FormatCurrency(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestDateOrder(t *testing.T) {
	if !(DateOrder("2025-01-02") < DateOrder("2025-01-10")) {
		t.Error("day ordering")
	}
	if DateOrder("10/01/2025") != DateOrder("2025-01-10") {
		t.Error("dd/mm/yyyy should equal ISO date")
	}
	if !(DateOrder("2024-12") < DateOrder("Jan-2025")) {
		t.Error("month ordering across layouts")
	}
	if !(DateOrder("2") < DateOrder("11")) {
		t.Error("bare month numbers should order numerically")
	}
	if DateOrder("GASOLINA") != 0 {
		t.Error("non-date should be 0")
	}
}

func TestSortedUniqueValuesNumeric(t *testing.T) {
	view := NewSliceView([]Record{
		{Dimensions: map[string]string{"n": "10"}},
		{Dimensions: map[string]string{"n": "9"}},
		{Dimensions: map[string]string{"n": "10"}},
	})
	assertKeys(t, SortedUniqueValues(view, "n"), "9", "10")
}

func TestDomainAdapter(t *testing.T) {
	type row struct {
		City  string
		Price float64
	}
	view := NewDomainAdapter[row]().
		Dimension("municipality", func(r row) string { return r.City }).
		Measure("sale_price", func(r row) float64 { return r.Price }).
		Bind([]row{{"A", 1}, {"B", 3}})

	if view.Len() != 2 || view.Dimension(1, "municipality") != "B" {
		t.Errorf("unexpected view contents")
	}
	assertFloat(t, AvgMeasure(view, "sale_price"), 2, "avg")
	if view.Dimension(5, "municipality") != "" || view.Measure(-1, "sale_price") != 0 {
		t.Error("out-of-range access should return zero values")
	}
}

// Package dashboard computes every KPI and panel of the fuel-price dashboard
// from the current filter state.
//
// All panels read the strictly filtered view (every sidebar selection
// applied) except the top-cities and brands panels, which ignore the product
// selection and use their own fuel picker instead.
package dashboard

import (
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/spektr-org/fuelscope/engine"
	"github.com/spektr-org/fuelscope/filterstate"
	"github.com/spektr-org/fuelscope/schema"
)

// ErrUnknownPanel is returned by Panel for ids the dashboard does not have.
var ErrUnknownPanel = errors.New("dashboard: unknown panel")

// NoDataWarning replaces a panel's content when its input is empty.
const NoDataWarning = "No data available for the selected filters."

// Panel ids, in page order.
const (
	PanelRegion       = "region"
	PanelState        = "state"
	PanelMunicipality = "municipality"
	PanelTimeline     = "timeline"
	PanelDistribution = "distribution"
	PanelTopCities    = "top-cities"
	PanelBrands       = "brands"
	PanelCompetition  = "competition"
	PanelExtremes     = "extremes"
	PanelRecords      = "records"
)

// PanelIDs lists every panel id in page order.
var PanelIDs = []string{
	PanelRegion, PanelState, PanelMunicipality,
	PanelTimeline, PanelDistribution,
	PanelTopCities, PanelBrands,
	PanelCompetition, PanelExtremes,
	PanelRecords,
}

// Panel is one visualization: a chart or a table, or a warning when there
// was nothing to show.
type Panel struct {
	ID      string              `json:"id"`
	Heading string              `json:"heading"`
	Kind    string              `json:"kind"` // "chart" or "table"
	Chart   *engine.ChartConfig `json:"chart,omitempty"`
	Table   *engine.TableData   `json:"table,omitempty"`
	Caption string              `json:"caption,omitempty"`
	Empty   bool                `json:"empty"`
	Warning string              `json:"warning,omitempty"`
}

// Result wraps the panel as an engine result for the exporters.
func (p Panel) Result() *engine.Result {
	r := &engine.Result{Success: true, Title: p.Heading, Reply: p.Caption}
	switch {
	case p.Empty:
		r.Type = "text"
		r.Reply = p.Warning
	case p.Chart != nil:
		r.Type = "chart"
		r.ChartConfig = p.Chart
	case p.Table != nil:
		r.Type = "table"
		r.TableData = p.Table
	}
	return r
}

// KPIs are the headline cards above the charts.
type KPIs struct {
	Mean       float64 `json:"mean"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Count      int     `json:"count"`
	TopProduct string  `json:"topProduct"` // product with the highest mean price, or "N/A"
	Period     string  `json:"period"`
	Unit       string  `json:"unit"`
	MeanLabel  string  `json:"meanLabel"`
	MinLabel   string  `json:"minLabel"`
	MaxLabel   string  `json:"maxLabel"`
	CountLabel string  `json:"countLabel"`
}

// Dashboard is the computed page for one filter state.
type Dashboard struct {
	KPIs     KPIs                   `json:"kpis"`
	Headline string                 `json:"headline"` // one-line answer over the filtered rows
	Records  int                    `json:"records"`  // rows in the dataset
	Filtered int                    `json:"filtered"` // rows after the sidebar selections
	Filters  []filterstate.Selector `json:"filters"`
	Controls filterstate.Controls   `json:"controls"`
	Panels   []Panel                `json:"panels"`
}

// Panel returns the panel with the given id.
func (d *Dashboard) Panel(id string) (Panel, error) {
	for _, p := range d.Panels {
		if p.ID == id {
			return p, nil
		}
	}
	return Panel{}, errors.Wrapf(ErrUnknownPanel, "panel %q", id)
}

// ============================================================================
// BUILD
// ============================================================================

// Option configures Build.
type Option func(*config)

type config struct {
	unit        string
	recordLimit int
	logger      zerolog.Logger
}

// WithUnit sets the currency shown on prices (default "R$").
func WithUnit(unit string) Option {
	return func(c *config) { c.unit = unit }
}

// WithRecordLimit caps the rows of the records table; the summary still
// covers every filtered row. 0 keeps them all.
func WithRecordLimit(n int) Option {
	return func(c *config) { c.recordLimit = n }
}

// WithLogger sets the logger for build traces.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// Build computes the dashboard for the cascade's current selections.
func Build(base engine.RecordView, cascade *filterstate.Cascade, controls *filterstate.Controls, opts ...Option) *Dashboard {
	cfg := &config{unit: "R$", logger: log.Logger}
	for _, opt := range opts {
		opt(cfg)
	}

	filtered := cascade.Apply(base)
	if controls == nil {
		controls = filterstate.NewControls(base, filtered)
	}
	withoutProduct := engine.ApplySelections(base, cascade.FiltersWithout(schema.Product))

	b := &builder{
		cfg: cfg,
		opts: []engine.Option{
			engine.WithDefaultMeasure(schema.SalePrice),
			engine.WithUnit(cfg.unit),
			engine.WithDateDimension(schema.CollectedOn),
			engine.WithLogger(cfg.logger),
		},
		view:     filtered,
		others:   withoutProduct,
		controls: controls,
	}

	kpis, headline := b.kpis()
	d := &Dashboard{
		KPIs:     kpis,
		Headline: headline,
		Records:  base.Len(),
		Filtered: filtered.Len(),
		Filters:  cascade.Snapshot(),
		Controls: controls.Clone(),
	}
	for _, id := range PanelIDs {
		d.Panels = append(d.Panels, b.panel(id))
	}

	cfg.logger.Debug().
		Int("records", d.Records).
		Int("filtered", d.Filtered).
		Int("panels", len(d.Panels)).
		Msg("📊 dashboard built")
	return d
}

// kpis asks the engine for the text answer over the filtered rows: its
// metrics fill the cards and its reply becomes the headline.
func (b *builder) kpis() (KPIs, string) {
	m := engine.Metrics{Period: engine.DerivePeriod(b.view, schema.CollectedOn)}
	headline := NoDataWarning
	if b.view.Len() > 0 {
		res, err := engine.Execute(engine.Query{Intent: "text", GroupBy: []string{schema.Product}}, b.view, b.opts...)
		switch {
		case err != nil:
			b.cfg.logger.Warn().Err(err).Msg("⚠️ KPIs failed")
		case res.Data != nil:
			m, headline = *res.Data, res.Reply
		}
	}

	k := KPIs{
		Mean:       m.Mean,
		Min:        m.Min,
		Max:        m.Max,
		Count:      m.Count,
		TopProduct: Capitalize(m.TopLabel),
		Period:     m.Period,
		Unit:       b.cfg.unit,
		MeanLabel:  engine.FormatCurrency(m.Mean, b.cfg.unit),
		MinLabel:   engine.FormatCurrency(m.Min, b.cfg.unit),
		MaxLabel:   engine.FormatCurrency(m.Max, b.cfg.unit),
		CountLabel: engine.FormatInt(m.Count),
	}
	if k.TopProduct == "" {
		k.TopProduct = "N/A"
	}
	return k, headline
}

// Capitalize upper-cases the first letter and lower-cases the rest:
// "GASOLINA ADITIVADA" → "Gasolina aditivada".
func Capitalize(s string) string {
	if s == "" {
		return ""
	}
	r := []rune(strings.ToLower(s))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

package engine

// ============================================================================
// FUELSCOPE ENGINE TYPES — Tabular Analytics over RecordViews
// ============================================================================
// Record (dimension/measure maps) or typed structs bound through a
// DomainAdapter feed every computation. Query describes one panel:
// which rows, how to group them, how to aggregate, and how to present.
// ============================================================================

// ============================================================================
// RECORD — Generic data row
// ============================================================================

// Record is a single data row with string dimensions and numeric measures.
type Record struct {
	Dimensions map[string]string  `json:"dimensions"`
	Measures   map[string]float64 `json:"measures"`
}

// ============================================================================
// QUERY — What a panel asks the engine to compute
// ============================================================================

// Query defines what the engine should compute.
type Query struct {
	Intent      string   `json:"intent"`                // "text", "table", "chart"
	Filters     Filters  `json:"filters"`               // Which records to include
	Aggregation string   `json:"aggregation"`           // "sum", "count", "avg", "max", "min", "distinct", "list", "none"
	Measure     string   `json:"measure"`               // Which measure to aggregate (empty → use default)
	Distinct    string   `json:"distinct,omitempty"`    // Dimension counted by "distinct"
	GroupBy     []string `json:"groupBy"`               // Dimension keys: ["region"], ["product", "month"]
	SortBy      string   `json:"sortBy"`                // "value_desc", "value_asc", "date_asc", "date_desc", "label_asc", "label_desc"
	Limit       int      `json:"limit"`                 // 0 = all
	FromEnd     bool     `json:"fromEnd,omitempty"`     // Limit keeps the last N instead of the first N
	Visualize   string   `json:"visualize"`             // "bar", "line", "pie", "box", "table", "text"
	Orientation string   `json:"orientation,omitempty"` // "v" (default) or "h" for bar charts
	Title       string   `json:"title"`
	Reply       string   `json:"reply"` // Template: "Average {avg} across {count} records in {period}."
}

// Filters define which records to include.
// Keys are dimension names. Values are allowed values.
// OR within a dimension, AND across dimensions.
type Filters struct {
	Dimensions map[string][]string `json:"dimensions"`
}

// HasFilter returns true if a specific dimension filter is set.
func (f Filters) HasFilter(dimension string) bool {
	if f.Dimensions == nil {
		return false
	}
	vals, ok := f.Dimensions[dimension]
	return ok && len(vals) > 0
}

// IsEmpty returns true if no filters are set.
func (f Filters) IsEmpty() bool {
	if f.Dimensions == nil {
		return true
	}
	for _, vals := range f.Dimensions {
		if len(vals) > 0 {
			return false
		}
	}
	return true
}

// With returns a copy of the filters with dimension restricted to values.
func (f Filters) With(dimension string, values ...string) Filters {
	out := f.clone()
	out.Dimensions[dimension] = append([]string(nil), values...)
	return out
}

// Without returns a copy of the filters with no constraint on dimension.
func (f Filters) Without(dimension string) Filters {
	out := f.clone()
	delete(out.Dimensions, dimension)
	return out
}

func (f Filters) clone() Filters {
	out := Filters{Dimensions: make(map[string][]string, len(f.Dimensions)+1)}
	for k, v := range f.Dimensions {
		out.Dimensions[k] = append([]string(nil), v...)
	}
	return out
}

// ============================================================================
// RESULT — Render-ready output
// ============================================================================

// Result is the engine's render-ready output.
type Result struct {
	Success bool   `json:"success"`
	Type    string `json:"type"` // "chart", "table", "text"
	Reply   string `json:"reply"`
	Title   string `json:"title"`

	// Exactly one of these is populated based on Type:
	ChartConfig *ChartConfig `json:"chartConfig,omitempty"`
	TableData   *TableData   `json:"tableData,omitempty"`
	Data        *Metrics     `json:"data,omitempty"`

	DisplayUnit string   `json:"displayUnit,omitempty"`
	Errors      []string `json:"errors,omitempty"`
}

// ============================================================================
// GROUP / ROW — Intermediate computation results
// ============================================================================

// Group represents a grouped/aggregated result.
// Builders convert these into ChartConfig or TableData.
type Group struct {
	Key       string     `json:"key"`
	Label     string     `json:"label"`
	Value     float64    `json:"value"`
	Count     int        `json:"count"`
	SubGroups []Group    `json:"subGroups,omitempty"`
	View      RecordView `json:"-"` // Sub-view for records in this group (zero-copy)
}

// Row is a flattened aggregate: one entry per (possibly composite) group key.
// Rows are what Merge joins and SortRows orders.
type Row struct {
	Keys   map[string]string  `json:"keys"`
	Values map[string]float64 `json:"values"`
}

// BoxStats summarizes the distribution of a measure within one group.
type BoxStats struct {
	Label      string    `json:"label"`
	Count      int       `json:"count"`
	Min        float64   `json:"min"`
	Q1         float64   `json:"q1"`
	Median     float64   `json:"median"`
	Q3         float64   `json:"q3"`
	Max        float64   `json:"max"`
	Mean       float64   `json:"mean"`
	LowerFence float64   `json:"lowerFence"` // lowest value within Q1 - 1.5*IQR
	UpperFence float64   `json:"upperFence"` // highest value within Q3 + 1.5*IQR
	Outliers   []float64 `json:"outliers,omitempty"`
	Values     []float64 `json:"-"`
}

// ============================================================================
// CHART TYPES
// ============================================================================

// ChartConfig defines how to render a chart.
type ChartConfig struct {
	ChartType   string        `json:"chartType"`
	Orientation string        `json:"orientation,omitempty"`
	Title       string        `json:"title"`
	XAxis       string        `json:"xAxis,omitempty"`
	YAxis       string        `json:"yAxis,omitempty"`
	Series      []ChartSeries `json:"series"`
	Boxes       []BoxStats    `json:"boxes,omitempty"`
	Colors      []string      `json:"colors,omitempty"`
	ShowLegend  bool          `json:"showLegend"`
	ShowGrid    bool          `json:"showGrid"`
	Markers     bool          `json:"markers,omitempty"`
}

// ChartSeries represents a data series in a chart.
type ChartSeries struct {
	Name  string       `json:"name"`
	Data  []ChartPoint `json:"data"`
	Color string       `json:"color,omitempty"`
}

// ChartPoint represents a single data point.
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ============================================================================
// TABLE TYPES
// ============================================================================

// TableData defines how to render a table.
type TableData struct {
	Title   string     `json:"title"`
	Columns []Column   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Summary *Summary   `json:"summary,omitempty"`
}

// Column defines a table column.
type Column struct {
	Key   string  `json:"key"`
	Label string  `json:"label"`
	Type  string  `json:"type"`  // "text", "number", "currency", "progress"
	Align string  `json:"align"` // "left", "center", "right"
	Max   float64 `json:"max,omitempty"`
}

// Summary provides totals or aggregations for a table.
type Summary struct {
	Label  string            `json:"label"`
	Values map[string]string `json:"values"`
}

// ============================================================================
// METRICS — Headline figures for a filtered view
// ============================================================================

// Metrics holds the headline figures of a view.
type Metrics struct {
	Mean     float64 `json:"mean"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Sum      float64 `json:"sum"`
	Count    int     `json:"count"`
	TopLabel string  `json:"topLabel,omitempty"` // group with the highest mean
	Period   string  `json:"period"`
	Unit     string  `json:"unit,omitempty"`
}

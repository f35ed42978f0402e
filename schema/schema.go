package schema

// ============================================================================
// SCHEMA — Describes the shape of the fuel-price dataset
// ============================================================================
// The dataset loader uses Source to find CSV columns.
// The filter cascade uses Parent to derive dependent option lists.
// The engine uses measure metadata for units and default aggregation.
// ============================================================================

// Dimension keys of the ANP fuel-price dataset.
const (
	Year         = "year"
	Product      = "product"
	Region       = "region"
	State        = "state"
	Municipality = "municipality"
	Brand        = "brand"
	Retailer     = "retailer"
	CollectedOn  = "collected_on"
	Month        = "month"

	SalePrice = "sale_price"
)

// Config describes the complete shape of a dataset.
type Config struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`

	Dimensions []DimensionMeta `json:"dimensions"`
	Measures   []MeasureMeta   `json:"measures"`
}

// DimensionMeta describes a string field used for grouping/filtering.
type DimensionMeta struct {
	Key            string `json:"key"`
	DisplayName    string `json:"displayName"`
	Source         string `json:"source"` // CSV header
	Description    string `json:"description,omitempty"`
	Groupable      bool   `json:"groupable"`
	Filterable     bool   `json:"filterable"`
	Parent         string `json:"parent,omitempty"` // Parent dimension key for hierarchies
	IsTemporal     bool   `json:"isTemporal,omitempty"`
	TemporalFormat string `json:"temporalFormat,omitempty"`
}

// MeasureMeta describes a numeric field used for aggregation.
type MeasureMeta struct {
	Key                string `json:"key"`
	DisplayName        string `json:"displayName"`
	Source             string `json:"source"`
	Description        string `json:"description,omitempty"`
	Unit               string `json:"unit,omitempty"`
	IsCurrency         bool   `json:"isCurrency,omitempty"`
	DefaultAggregation string `json:"defaultAggregation,omitempty"`
	Format             string `json:"format,omitempty"`
}

// DefaultDimension creates a DimensionMeta with sensible defaults.
func DefaultDimension(key, displayName, source string) DimensionMeta {
	return DimensionMeta{
		Key:         key,
		DisplayName: displayName,
		Source:      source,
		Groupable:   true,
		Filterable:  true,
	}
}

// DefaultMeasure creates a MeasureMeta with sensible defaults.
func DefaultMeasure(key, displayName, source string) MeasureMeta {
	return MeasureMeta{
		Key:                key,
		DisplayName:        displayName,
		Source:             source,
		DefaultAggregation: "avg",
	}
}

// FuelPrices returns the schema of the consolidated ANP price survey
// (consolidada_tratada.csv).
func FuelPrices() Config {
	state := DefaultDimension(State, "State", "Estado")
	state.Parent = Region
	municipality := DefaultDimension(Municipality, "Municipality", "Municipio")
	municipality.Parent = State

	collected := DefaultDimension(CollectedOn, "Collection date", "Data da Coleta")
	collected.IsTemporal = true
	collected.TemporalFormat = "2006-01-02"
	month := DefaultDimension(Month, "Month", "Mes")
	month.IsTemporal = true

	retailer := DefaultDimension(Retailer, "Retailer", "Revenda")
	retailer.Filterable = false

	price := DefaultMeasure(SalePrice, "Sale price", "Valor de Venda")
	price.Unit = "R$"
	price.IsCurrency = true
	price.Format = "#,##0.00"

	return Config{
		Name:        "anp_fuel_prices",
		Version:     "2020-2025",
		Description: "ANP historical retail fuel prices, consolidated and cleaned",
		Dimensions: []DimensionMeta{
			DefaultDimension(Year, "Year", "Ano"),
			DefaultDimension(Product, "Product", "Produto"),
			DefaultDimension(Region, "Region", "Regiao"),
			state,
			municipality,
			DefaultDimension(Brand, "Brand", "Bandeira"),
			retailer,
			collected,
			month,
		},
		Measures: []MeasureMeta{price},
	}
}

// GetDefaultMeasure returns the first measure's key, or "sale_price" as fallback.
func (c Config) GetDefaultMeasure() string {
	if len(c.Measures) > 0 {
		return c.Measures[0].Key
	}
	return SalePrice
}

// DimensionKeys returns all dimension keys.
func (c Config) DimensionKeys() []string {
	keys := make([]string, len(c.Dimensions))
	for i, d := range c.Dimensions {
		keys[i] = d.Key
	}
	return keys
}

// MeasureKeys returns all measure keys.
func (c Config) MeasureKeys() []string {
	keys := make([]string, len(c.Measures))
	for i, m := range c.Measures {
		keys[i] = m.Key
	}
	return keys
}

// Dimension looks up a dimension by key.
func (c Config) Dimension(key string) (DimensionMeta, bool) {
	for _, d := range c.Dimensions {
		if d.Key == key {
			return d, true
		}
	}
	return DimensionMeta{}, false
}

// Measure looks up a measure by key.
func (c Config) Measure(key string) (MeasureMeta, bool) {
	for _, m := range c.Measures {
		if m.Key == key {
			return m, true
		}
	}
	return MeasureMeta{}, false
}

// Children returns the dimensions whose Parent is key, in schema order.
func (c Config) Children(key string) []DimensionMeta {
	var out []DimensionMeta
	for _, d := range c.Dimensions {
		if d.Parent == key {
			out = append(out, d)
		}
	}
	return out
}

// Lineage returns the chain of dimension keys from the hierarchy root down to key.
// A dimension without a parent is its own lineage. Cycles stop at the first repeat.
func (c Config) Lineage(key string) []string {
	var chain []string
	seen := make(map[string]bool)
	for cur := key; cur != "" && !seen[cur]; {
		d, ok := c.Dimension(cur)
		if !ok {
			break
		}
		seen[cur] = true
		chain = append([]string{cur}, chain...)
		cur = d.Parent
	}
	return chain
}

// DisplayName returns the display name of a dimension or measure, or the key itself.
func (c Config) DisplayName(key string) string {
	if d, ok := c.Dimension(key); ok && d.DisplayName != "" {
		return d.DisplayName
	}
	if m, ok := c.Measure(key); ok && m.DisplayName != "" {
		return m.DisplayName
	}
	return key
}

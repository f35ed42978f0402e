// Package dataset loads the consolidated ANP fuel-price CSV into typed
// records and exposes them to the engine through a zero-copy RecordView.
package dataset

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/spektr-org/fuelscope/engine"
	"github.com/spektr-org/fuelscope/schema"
)

// ErrMissingColumn is returned when the CSV lacks a column the schema requires.
var ErrMissingColumn = errors.New("dataset: missing column")

// Sale is one price observation: a product sold at a retailer on a date.
type Sale struct {
	Year         string
	Product      string
	Region       string
	State        string
	Municipality string
	Brand        string
	Retailer     string
	CollectedOn  string
	Month        string
	Price        float64
}

// ============================================================================
// LOAD OPTIONS
// ============================================================================

// Option configures Load.
type Option func(*loadConfig)

type loadConfig struct {
	delimiter rune
	latin1    bool
}

// WithDelimiter sets the field separator (default ',').
func WithDelimiter(d rune) Option {
	return func(c *loadConfig) { c.delimiter = d }
}

// WithLatin1 decodes the input as ISO-8859-1, the encoding of raw ANP exports.
func WithLatin1(enabled bool) Option {
	return func(c *loadConfig) { c.latin1 = enabled }
}

// ============================================================================
// LOADING
// ============================================================================

// LoadFile opens path and loads it with Load.
func LoadFile(path string, sch schema.Config, opts ...Option) ([]Sale, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s", path)
	}
	defer f.Close()

	sales, err := Load(f, sch, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "load dataset %s", path)
	}
	return sales, nil
}

// Load reads a CSV whose headers match the schema Source names. Every column
// is read as text; prices accept either '.' or ',' as decimal separator.
// Rows whose price does not parse are skipped.
func Load(r io.Reader, sch schema.Config, opts ...Option) ([]Sale, error) {
	cfg := &loadConfig{delimiter: ','}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.latin1 {
		r = transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	}

	df := dataframe.ReadCSV(r,
		dataframe.WithDelimiter(cfg.delimiter),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithLazyQuotes(true),
	)
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "parse csv")
	}

	columns, err := resolveColumns(df, sch)
	if err != nil {
		return nil, err
	}

	n := df.Nrow()
	sales := make([]Sale, 0, n)
	skipped := 0
	for i := 0; i < n; i++ {
		price, ok := ParsePrice(columns[schema.SalePrice][i])
		if !ok {
			skipped++
			continue
		}
		sales = append(sales, Sale{
			Year:         cell(columns, schema.Year, i),
			Product:      cell(columns, schema.Product, i),
			Region:       cell(columns, schema.Region, i),
			State:        cell(columns, schema.State, i),
			Municipality: cell(columns, schema.Municipality, i),
			Brand:        cell(columns, schema.Brand, i),
			Retailer:     cell(columns, schema.Retailer, i),
			CollectedOn:  cell(columns, schema.CollectedOn, i),
			Month:        cell(columns, schema.Month, i),
			Price:        price,
		})
	}

	log.Info().Int("rows", n).Int("loaded", len(sales)).Int("skipped", skipped).Msg("📊 dataset loaded")
	return sales, nil
}

// required lists the columns without which no panel can be computed.
var required = []string{schema.Year, schema.Product, schema.Region, schema.State, schema.Municipality, schema.SalePrice}

// resolveColumns maps schema keys to the string records of their CSV column.
// Header matching ignores case and surrounding spaces.
func resolveColumns(df dataframe.DataFrame, sch schema.Config) (map[string][]string, error) {
	byHeader := make(map[string]string, df.Ncol())
	for _, name := range df.Names() {
		byHeader[normalizeHeader(name)] = name
	}

	sources := make(map[string]string)
	for _, d := range sch.Dimensions {
		sources[d.Key] = d.Source
	}
	for _, m := range sch.Measures {
		sources[m.Key] = m.Source
	}

	columns := make(map[string][]string, len(sources))
	for key, source := range sources {
		name, ok := byHeader[normalizeHeader(source)]
		if !ok {
			continue
		}
		columns[key] = df.Col(name).Records()
	}

	for _, key := range required {
		if _, ok := columns[key]; !ok {
			return nil, errors.Wrapf(ErrMissingColumn, "%q (%s)", sources[key], key)
		}
	}
	return columns, nil
}

func cell(columns map[string][]string, key string, i int) string {
	col, ok := columns[key]
	if !ok || i >= len(col) {
		return ""
	}
	v := strings.TrimSpace(col[i])
	if v == "NaN" {
		return ""
	}
	return v
}

func normalizeHeader(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ParsePrice parses "6.49", "6,49", "1.234,56" or "1,234.56". When both
// separators appear the last one is the decimal mark; a lone comma is always
// decimal.
func ParsePrice(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "NaN" {
		return 0, false
	}
	switch comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, "."); {
	case comma < 0:
	case dot > comma:
		s = strings.ReplaceAll(s, ",", "")
	default:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ============================================================================
// ENGINE BINDING
// ============================================================================

// Adapter returns the accessor set that exposes Sale fields under schema keys.
func Adapter() *engine.DomainAdapter[Sale] {
	return engine.NewDomainAdapter[Sale]().
		Dimension(schema.Year, func(s Sale) string { return s.Year }).
		Dimension(schema.Product, func(s Sale) string { return s.Product }).
		Dimension(schema.Region, func(s Sale) string { return s.Region }).
		Dimension(schema.State, func(s Sale) string { return s.State }).
		Dimension(schema.Municipality, func(s Sale) string { return s.Municipality }).
		Dimension(schema.Brand, func(s Sale) string { return s.Brand }).
		Dimension(schema.Retailer, func(s Sale) string { return s.Retailer }).
		Dimension(schema.CollectedOn, func(s Sale) string { return s.CollectedOn }).
		Dimension(schema.Month, func(s Sale) string { return s.Month }).
		Measure(schema.SalePrice, func(s Sale) float64 { return s.Price })
}

// View binds sales to a RecordView without copying them.
func View(sales []Sale) engine.RecordView {
	return Adapter().Bind(sales)
}

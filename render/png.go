package render

import (
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/spektr-org/fuelscope/engine"
)

var (
	// ErrUnsupportedChart is returned for chart types PNG cannot draw.
	ErrUnsupportedChart = errors.New("render: unsupported chart type")
	// ErrEmptyChart is returned when there is nothing to draw.
	ErrEmptyChart = errors.New("render: empty chart")
)

// Default PNG size in pixels.
const (
	DefaultWidth  = 900
	DefaultHeight = 500
)

// pixel converts pixels to plot lengths at the 96 dpi vgimg renders with.
func pixel(n int) vg.Length {
	return vg.Length(n) * vg.Inch / 96
}

// PNG draws cfg into w. Bar, line and box charts go through gonum/plot,
// pie charts through go-chart.
func PNG(w io.Writer, cfg *engine.ChartConfig, width, height int) error {
	if cfg == nil || (len(cfg.Series) == 0 && len(cfg.Boxes) == 0) {
		return ErrEmptyChart
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	if cfg.ChartType == "pie" {
		return pie(w, cfg, width, height)
	}

	var (
		p   *plot.Plot
		err error
	)
	switch cfg.ChartType {
	case "bar":
		p, err = bars(cfg)
	case "line":
		p, err = lines(cfg)
	case "box":
		p, err = boxes(cfg)
	default:
		return errors.Wrapf(ErrUnsupportedChart, "%q", cfg.ChartType)
	}
	if err != nil {
		return err
	}

	wt, err := p.WriterTo(pixel(width), pixel(height), "png")
	if err != nil {
		return errors.Wrap(err, "png writer")
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "write png")
	}
	return nil
}

// ============================================================================
// GONUM/PLOT CHARTS
// ============================================================================

func newPlot(cfg *engine.ChartConfig) *plot.Plot {
	p := plot.New()
	p.Title.Text = cfg.Title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = cfg.XAxis
	p.Y.Label.Text = cfg.YAxis
	if cfg.ShowGrid {
		p.Add(plotter.NewGrid())
	}
	return p
}

func bars(cfg *engine.ChartConfig) (*plot.Plot, error) {
	p := newPlot(cfg)
	data := cfg.Series[0].Data

	values := make(plotter.Values, len(data))
	labels := make([]string, len(data))
	for i, d := range data {
		values[i] = d.Value
		labels[i] = d.Label
	}

	b, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return nil, errors.Wrap(err, "bar chart")
	}
	b.Color = paletteColor(cfg.Colors, 0)
	b.LineStyle.Width = vg.Length(0)
	p.Add(b)

	if cfg.Orientation == "h" {
		b.Horizontal = true
		p.X.Label.Text, p.Y.Label.Text = cfg.YAxis, cfg.XAxis
		p.NominalY(labels...)
	} else {
		p.NominalX(labels...)
		if len(labels) > 8 {
			p.X.Tick.Label.Rotation = math.Pi / 3
			p.X.Tick.Label.YAlign = draw.YCenter
			p.X.Tick.Label.XAlign = draw.XRight
		}
	}
	return p, nil
}

func lines(cfg *engine.ChartConfig) (*plot.Plot, error) {
	p := newPlot(cfg)
	labels := seriesLabels(cfg.Series)
	pos := make(map[string]float64, len(labels))
	for i, l := range labels {
		pos[l] = float64(i)
	}

	for i, s := range cfg.Series {
		if len(s.Data) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(s.Data))
		for j, d := range s.Data {
			xys[j].X = pos[d.Label]
			xys[j].Y = d.Value
		}

		c := paletteColor(cfg.Colors, i)
		l, err := plotter.NewLine(xys)
		if err != nil {
			return nil, errors.Wrapf(err, "line %s", s.Name)
		}
		l.Color = c
		l.Width = vg.Points(1.5)
		p.Add(l)

		if cfg.Markers {
			sc, err := plotter.NewScatter(xys)
			if err != nil {
				return nil, errors.Wrapf(err, "markers %s", s.Name)
			}
			sc.GlyphStyle.Color = c
			sc.GlyphStyle.Radius = vg.Points(2.5)
			p.Add(sc)
			p.Legend.Add(s.Name, l, sc)
		} else {
			p.Legend.Add(s.Name, l)
		}
	}

	p.Legend.Top = true
	p.NominalX(thinLabels(labels, 12)...)
	if len(labels) > 6 {
		p.X.Tick.Label.Rotation = math.Pi / 4
		p.X.Tick.Label.XAlign = draw.XRight
	}
	return p, nil
}

func boxes(cfg *engine.ChartConfig) (*plot.Plot, error) {
	p := newPlot(cfg)
	labels := make([]string, len(cfg.Boxes))
	for i, b := range cfg.Boxes {
		labels[i] = b.Label
		if len(b.Values) == 0 {
			continue
		}
		bp, err := plotter.NewBoxPlot(vg.Points(30), float64(i), plotter.Values(b.Values))
		if err != nil {
			return nil, errors.Wrapf(err, "box %s", b.Label)
		}
		bp.FillColor = paletteColor(cfg.Colors, i)
		p.Add(bp)
	}
	p.NominalX(labels...)
	return p, nil
}

// thinLabels blanks labels so at most limit remain visible on a nominal axis.
func thinLabels(labels []string, limit int) []string {
	if len(labels) <= limit {
		return labels
	}
	step := (len(labels) + limit - 1) / limit
	out := make([]string, len(labels))
	for i, l := range labels {
		if i%step == 0 {
			out[i] = l
		}
	}
	return out
}

// ============================================================================
// GO-CHART PIE
// ============================================================================

func pie(w io.Writer, cfg *engine.ChartConfig, width, height int) error {
	data := cfg.Series[0].Data
	values := make([]chart.Value, 0, len(data))
	for i, d := range data {
		if d.Value <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: d.Label,
			Value: d.Value,
			Style: chart.Style{FillColor: drawing.ColorFromHex(strings.TrimPrefix(paletteHex(cfg.Colors, i), "#"))},
		})
	}
	if len(values) == 0 {
		return ErrEmptyChart
	}

	pc := chart.PieChart{
		Title:  cfg.Title,
		Width:  width,
		Height: height,
		Values: values,
	}
	if err := pc.Render(chart.PNG, w); err != nil {
		return errors.Wrap(err, "render pie")
	}
	return nil
}

// ============================================================================
// COLORS
// ============================================================================

var fallbackPalette = []string{"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6"}

func paletteHex(colors []string, i int) string {
	if len(colors) == 0 {
		colors = fallbackPalette
	}
	return colors[i%len(colors)]
}

func paletteColor(colors []string, i int) color.Color {
	return hexColor(paletteHex(colors, i))
}

// hexColor parses "#RRGGBB"; anything else yields gray.
func hexColor(hex string) color.RGBA {
	hex = strings.TrimPrefix(hex, "#")
	v, err := strconv.ParseUint(hex, 16, 32)
	if len(hex) != 6 || err != nil {
		return color.RGBA{R: 128, G: 128, B: 128, A: 255}
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}

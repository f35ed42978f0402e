// Package render turns engine results into files: PNG charts, CSV and XLSX
// exports, and terminal tables.
package render

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/pkg/errors"

	"github.com/spektr-org/fuelscope/engine"
)

// ============================================================================
// CSV OUTPUT
// ============================================================================

// WriteCSV writes a result as CSV. Charts become one row per label, tables
// are written as-is, text results as a single summary row.
func WriteCSV(w io.Writer, result *engine.Result) error {
	cw := csv.NewWriter(w)

	var records [][]string
	switch {
	case result == nil:
		records = [][]string{{"Result", "No data"}}
	case result.ChartConfig != nil:
		records = tableRecords(ChartTable(result.ChartConfig))
	case result.TableData != nil:
		records = tableRecords(result.TableData)
	default:
		reply := result.Reply
		if reply == "" {
			reply = "No data"
		}
		records = [][]string{{"Summary", "Value", "Unit"}, {reply, "", result.DisplayUnit}}
	}

	if err := cw.WriteAll(records); err != nil {
		return errors.Wrap(err, "write csv")
	}
	return nil
}

func tableRecords(t *engine.TableData) [][]string {
	if t == nil {
		return [][]string{{"Result", "No data"}}
	}
	header := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c.Label
	}
	records := append([][]string{header}, t.Rows...)
	if t.Summary != nil {
		row := make([]string, len(t.Columns))
		if len(row) > 0 {
			row[0] = t.Summary.Label
		}
		for i, c := range t.Columns {
			if v, ok := t.Summary.Values[c.Key]; ok {
				row[i] = v
			}
		}
		records = append(records, row)
	}
	return records
}

// ChartTable flattens a chart into a table: single series give label and
// value columns, multiple series one column per series over the union of
// labels, box charts one row of statistics per box.
func ChartTable(cfg *engine.ChartConfig) *engine.TableData {
	if cfg == nil {
		return nil
	}
	if cfg.ChartType == "box" {
		return boxTable(cfg)
	}

	xLabel, yLabel := cfg.XAxis, cfg.YAxis
	if xLabel == "" {
		xLabel = "Label"
	}
	if yLabel == "" {
		yLabel = "Value"
	}

	t := &engine.TableData{Title: cfg.Title}
	if len(cfg.Series) == 1 {
		t.Columns = []engine.Column{
			{Key: "label", Label: xLabel, Type: "text", Align: "left"},
			{Key: "value", Label: yLabel, Type: "number", Align: "right"},
		}
		for _, d := range cfg.Series[0].Data {
			t.Rows = append(t.Rows, []string{d.Label, fmtNum(d.Value)})
		}
		return t
	}

	t.Columns = []engine.Column{{Key: "label", Label: xLabel, Type: "text", Align: "left"}}
	for _, s := range cfg.Series {
		t.Columns = append(t.Columns, engine.Column{Key: s.Name, Label: s.Name, Type: "number", Align: "right"})
	}
	for _, label := range seriesLabels(cfg.Series) {
		row := []string{label}
		for _, s := range cfg.Series {
			cell := ""
			for _, d := range s.Data {
				if d.Label == label {
					cell = fmtNum(d.Value)
					break
				}
			}
			row = append(row, cell)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func boxTable(cfg *engine.ChartConfig) *engine.TableData {
	t := &engine.TableData{Title: cfg.Title}
	group := cfg.XAxis
	if group == "" {
		group = "Group"
	}
	t.Columns = []engine.Column{{Key: "label", Label: group, Type: "text", Align: "left"}}
	for _, name := range []string{"Count", "Min", "Q1", "Median", "Q3", "Max", "Mean"} {
		t.Columns = append(t.Columns, engine.Column{Key: name, Label: name, Type: "number", Align: "right"})
	}
	for _, b := range cfg.Boxes {
		t.Rows = append(t.Rows, []string{
			b.Label, fmt.Sprintf("%d", b.Count),
			fmtNum(b.Min), fmtNum(b.Q1), fmtNum(b.Median), fmtNum(b.Q3), fmtNum(b.Max), fmtNum(b.Mean),
		})
	}
	return t
}

// seriesLabels returns the union of point labels across series, in
// chronological order when the labels are dates and first appearance otherwise.
func seriesLabels(series []engine.ChartSeries) []string {
	seen := make(map[string]bool)
	var labels []string
	for _, s := range series {
		for _, d := range s.Data {
			if !seen[d.Label] {
				seen[d.Label] = true
				labels = append(labels, d.Label)
			}
		}
	}
	sort.SliceStable(labels, func(i, j int) bool {
		a, b := engine.DateOrder(labels[i]), engine.DateOrder(labels[j])
		if a == 0 || b == 0 {
			return false
		}
		return a < b
	})
	return labels
}

func fmtNum(v float64) string {
	// Whole numbers → no decimals, fractional → 2 decimals
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

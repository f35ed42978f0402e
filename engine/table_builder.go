package engine

import (
	"fmt"
)

// ============================================================================
// TABLE BUILDER — Produces TableData from Query + Groups (or Rows)
// ============================================================================
// All functions operate on RecordView; zero-copy access to any data source.
// Column discovery uses view.DimensionKeys() instead of inspecting Record maps.
// ============================================================================

// BuildTable produces a TableData from a Query, groups, filtered view, and display unit.
func BuildTable(q Query, groups []Group, view RecordView, measure string, unit string) *TableData {
	if q.Aggregation == "list" {
		return buildListTable(q, view, measure, unit)
	}
	return buildAggregatedTable(q, groups, unit)
}

// ============================================================================
// LIST TABLE — Row per record
// ============================================================================

func buildListTable(q Query, view RecordView, measure string, unit string) *TableData {
	if view.Len() == 0 {
		return &TableData{
			Title:   q.Title,
			Columns: []Column{},
			Rows:    [][]string{},
		}
	}

	// Discover columns from view's registered dimension keys
	dimKeys := view.DimensionKeys()
	columns := make([]Column, 0, len(dimKeys)+1)

	for _, key := range dimKeys {
		columns = append(columns, Column{
			Key:   key,
			Label: LabelForDimension(key),
			Type:  "text",
			Align: "left",
		})
	}

	columns = append(columns, Column{
		Key:   measure,
		Label: LabelForDimension(measure),
		Type:  "currency",
		Align: "right",
	})

	n := view.Len()
	if q.Limit > 0 && n > q.Limit {
		n = q.Limit
	}
	rows := make([][]string, 0, n)
	var total float64

	for i := 0; i < view.Len(); i++ {
		val := view.Measure(i, measure)
		total += val
		if i >= n {
			continue
		}
		row := make([]string, 0, len(columns))
		for _, key := range dimKeys {
			row = append(row, view.Dimension(i, key))
		}
		row = append(row, fmt.Sprintf("%.2f", val))
		rows = append(rows, row)
	}

	return &TableData{
		Title:   q.Title,
		Columns: columns,
		Rows:    rows,
		Summary: &Summary{
			Label: fmt.Sprintf("Average (%s records)", FormatInt(view.Len())),
			Values: map[string]string{
				measure: FormatCurrency(total/float64(view.Len()), unit),
			},
		},
	}
}

// ============================================================================
// AGGREGATED TABLE — Summary rows
// ============================================================================

func buildAggregatedTable(q Query, groups []Group, unit string) *TableData {
	if len(groups) == 0 {
		return &TableData{
			Title:   q.Title,
			Columns: []Column{},
			Rows:    [][]string{},
		}
	}

	groupLabel := "Group"
	if len(q.GroupBy) > 0 {
		groupLabel = LabelForDimension(q.GroupBy[0])
	}
	valueLabel := LabelForAggregation(q.Aggregation)

	columns := []Column{
		{Key: "group", Label: groupLabel, Type: "text", Align: "left"},
		{Key: "value", Label: valueLabel, Type: "number", Align: "right"},
		{Key: "count", Label: "Count", Type: "number", Align: "center"},
	}

	rows := make([][]string, 0, len(groups))
	var totalCount int

	for _, g := range groups {
		rows = append(rows, []string{
			g.Label,
			fmt.Sprintf("%.2f", g.Value),
			fmt.Sprintf("%d", g.Count),
		})
		totalCount += g.Count
	}

	return &TableData{
		Title:   q.Title,
		Columns: columns,
		Rows:    rows,
		Summary: &Summary{
			Label: "Total",
			Values: map[string]string{
				"count": fmt.Sprintf("%d", totalCount),
			},
		},
	}
}

// ============================================================================
// ROWS TABLE — Flattened / merged aggregates
// ============================================================================

// BuildRowsTable renders rows with the given columns. A column reads from
// Row.Keys when present there, otherwise from Row.Values formatted with two
// decimals ("progress" and integer-like "number" columns print as integers).
func BuildRowsTable(title string, columns []Column, rows []Row) *TableData {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells := make([]string, 0, len(columns))
		for _, c := range columns {
			if k, ok := r.Keys[c.Key]; ok {
				cells = append(cells, k)
				continue
			}
			v := r.Values[c.Key]
			switch {
			case c.Type == "progress" || (c.Type == "number" && v == float64(int64(v))):
				cells = append(cells, fmt.Sprintf("%d", int64(v)))
			default:
				cells = append(cells, fmt.Sprintf("%.2f", v))
			}
		}
		out = append(out, cells)
	}
	return &TableData{
		Title:   title,
		Columns: columns,
		Rows:    out,
	}
}

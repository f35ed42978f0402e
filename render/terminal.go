package render

import (
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/spektr-org/fuelscope/engine"
)

// WriteTable prints t as a bordered terminal table. The summary, when
// present, becomes the footer.
func WriteTable(w io.Writer, t *engine.TableData) {
	if t == nil {
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)

	header := make([]string, len(t.Columns))
	aligns := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c.Label
		aligns[i] = tablewriter.ALIGN_LEFT
		if c.Align == "right" || (c.Type != "text" && c.Align == "") {
			aligns[i] = tablewriter.ALIGN_RIGHT
		}
	}
	table.SetHeader(header)
	table.SetColumnAlignment(aligns)
	table.AppendBulk(t.Rows)

	if t.Summary != nil && len(t.Columns) > 0 {
		footer := make([]string, len(t.Columns))
		footer[0] = t.Summary.Label
		for i, c := range t.Columns {
			if v, ok := t.Summary.Values[c.Key]; ok {
				footer[i] = v
			}
		}
		table.SetFooter(footer)
	}
	table.Render()
}

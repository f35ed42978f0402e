package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/spektr-org/fuelscope/engine"
)

// maxSheetName is Excel's limit on worksheet name length.
const maxSheetName = 31

// WriteXLSX writes one worksheet per table. Numeric columns are stored as
// numbers so spreadsheets can aggregate them.
func WriteXLSX(w io.Writer, tables ...*engine.TableData) error {
	f := excelize.NewFile()
	defer f.Close()

	used := make(map[string]bool)
	first := true
	for i, t := range tables {
		if t == nil {
			continue
		}
		name := sheetName(t.Title, i, used)
		if first {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return errors.Wrap(err, "rename sheet")
			}
			first = false
		} else if _, err := f.NewSheet(name); err != nil {
			return errors.Wrapf(err, "new sheet %s", name)
		}
		if err := writeSheet(f, name, t); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "write xlsx")
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, t *engine.TableData) error {
	head := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		head[i] = c.Label
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return errors.Wrapf(err, "header %s", sheet)
	}

	for r, cells := range t.Rows {
		row := make([]any, len(cells))
		for j, cell := range cells {
			row[j] = cellValue(t.Columns, j, cell)
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", r+2), &row); err != nil {
			return errors.Wrapf(err, "row %d of %s", r+2, sheet)
		}
	}

	if len(t.Columns) > 0 {
		last, err := excelize.ColumnNumberToName(len(t.Columns))
		if err != nil {
			return errors.Wrap(err, "column name")
		}
		if err := f.SetColWidth(sheet, "A", last, 18); err != nil {
			return errors.Wrapf(err, "column width %s", sheet)
		}
	}
	return nil
}

// cellValue converts numeric columns to float64, leaving text and
// unparseable values as strings.
func cellValue(columns []engine.Column, j int, cell string) any {
	if j >= len(columns) || columns[j].Type == "text" {
		return cell
	}
	s := strings.TrimSpace(strings.TrimPrefix(cell, "R$"))
	s = strings.ReplaceAll(s, ",", "")
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return cell
}

// sheetName derives a unique, valid worksheet name from a table title.
func sheetName(title string, i int, used map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return ' '
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = fmt.Sprintf("Table %d", i+1)
	}
	if len([]rune(name)) > maxSheetName {
		name = string([]rune(name)[:maxSheetName])
	}

	base := name
	for n := 2; used[name]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		r := []rune(base)
		if len(r)+len(suffix) > maxSheetName {
			r = r[:maxSheetName-len(suffix)]
		}
		name = string(r) + suffix
	}
	used[name] = true
	return name
}

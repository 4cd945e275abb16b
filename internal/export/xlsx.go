package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// WriteXLSX serializes a table as a single-sheet workbook.
func WriteXLSX(w io.Writer, table *Table) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("output")
	if err != nil {
		return eris.Wrap(err, "export: add xlsx sheet")
	}

	header := sheet.AddRow()
	for _, col := range table.Columns {
		header.AddCell().Value = col
	}
	for _, row := range table.Rows {
		r := sheet.AddRow()
		for _, cell := range row {
			r.AddCell().Value = cell
		}
	}

	return eris.Wrap(f.Write(w), "export: write xlsx")
}

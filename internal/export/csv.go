package export

import (
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
)

// WriteCSV serializes a table as UTF-8 delimited text with a header row.
func WriteCSV(w io.Writer, table *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Columns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, row := range table.Rows {
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV writes t with a header row.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Write encodes t in format f. sheet names the XLSX worksheet.
func Write(w io.Writer, f Format, sheet string, t Table) error {
	if f == FormatXLSX {
		return WriteXLSX(w, sheet, t)
	}
	return WriteCSV(w, t)
}

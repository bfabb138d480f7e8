// Package dataset reads tabular point datasets, tags each row with its
// containing block group, and writes the augmented tables back out.
package dataset

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Table is an in-memory tabular dataset with a header row.
type Table struct {
	Header []string
	Rows   [][]string
}

// ColumnIndex returns the position of a named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, col := range t.Header {
		if strings.TrimSpace(col) == name {
			return i, true
		}
	}
	return 0, false
}

// Read loads a dataset from a CSV or XLSX path, dispatching on extension.
func Read(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(path)
	case ".xlsx":
		return ReadXLSX(path, "")
	default:
		return nil, eris.Errorf("dataset: unsupported dataset file %s", path)
	}
}

// ReadCSV reads a CSV dataset. The first row is the header. Rows may have
// fewer fields than the header; missing cells read as empty.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open csv %s", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read csv %s", path)
	}
	if len(records) == 0 {
		return nil, eris.Errorf("dataset: csv %s is empty", path)
	}

	return &Table{Header: records[0], Rows: records[1:]}, nil
}

// ReadXLSX reads an XLSX dataset. If sheetName is empty the first sheet is
// used. The first row is the header.
func ReadXLSX(path, sheetName string) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open xlsx %s", path)
	}

	var sheet *xlsx.Sheet
	if sheetName != "" {
		var ok bool
		sheet, ok = f.Sheet[sheetName]
		if !ok {
			return nil, eris.Errorf("dataset: sheet %q not found in %s", sheetName, path)
		}
	} else {
		if len(f.Sheets) == 0 {
			return nil, eris.Errorf("dataset: xlsx %s has no sheets", path)
		}
		sheet = f.Sheets[0]
	}

	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("dataset: xlsx %s is empty", path)
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}

	return &Table{Header: rows[0], Rows: rows[1:]}, nil
}

// WriteCSV writes a table to the given path.
func WriteCSV(t *Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "dataset: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		return eris.Wrapf(err, "dataset: write header %s", path)
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			return eris.Wrapf(err, "dataset: write row %s", path)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "dataset: flush %s", path)
	}
	return nil
}

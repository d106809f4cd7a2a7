package tabular

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/arden-health/idveil/errors"
	"github.com/shakinm/xlsReader/xls"
	"github.com/tealeg/xlsx/v3"
)

// Store reads and writes tables by path, selecting the codec from the file
// extension. Supported: .csv (read/write), .xlsx (read/write), .xls (read
// only — nothing in the Go ecosystem writes legacy BIFF).
type Store struct{}

// NewStore creates a tabular store.
func NewStore() *Store {
	return &Store{}
}

// Read loads a tabular file. The first row is the header.
func (s *Store) Read(path string) (*Table, error) {
	switch ext(path) {
	case ".csv":
		return readCSV(path)
	case ".xlsx":
		return readXLSX(path)
	case ".xls":
		return readXLS(path)
	default:
		return nil, errors.Wrapf(errors.ErrUnsupportedFormat, "%s", path)
	}
}

// Write saves a table, header first, to the given path.
func (s *Store) Write(t *Table, path string) error {
	switch ext(path) {
	case ".csv":
		return writeCSV(t, path)
	case ".xlsx":
		return writeXLSX(t, path)
	case ".xls":
		return errors.Wrapf(errors.ErrUnsupportedFormat,
			"cannot write %s: legacy .xls output is not supported, convert the source to .xlsx or .csv", path)
	default:
		return errors.Wrapf(errors.ErrUnsupportedFormat, "%s", path)
	}
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func readCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // tolerate ragged rows, pad below

	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read CSV %s", path)
	}
	if len(records) == 0 {
		return NewTable(), nil
	}

	t := NewTable(records[0]...)
	for _, rec := range records[1:] {
		t.AppendRow(rec...)
	}
	return t, nil
}

func writeCSV(t *Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		return errors.Wrapf(err, "failed to write header to %s", path)
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			return errors.Wrapf(err, "failed to write row to %s", path)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrapf(err, "failed to flush %s", path)
	}
	return nil
}

func readXLSX(path string) (*Table, error) {
	wb, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	if len(wb.Sheets) == 0 {
		return NewTable(), nil
	}

	// Data always lives on the first sheet; the tool never writes more than one.
	sheet := wb.Sheets[0]
	defer sheet.Close()

	var records [][]string
	err = sheet.ForEachRow(func(r *xlsx.Row) error {
		var cells []string
		cellErr := r.ForEachCell(func(c *xlsx.Cell) error {
			cells = append(cells, c.String())
			return nil
		})
		if cellErr != nil {
			return cellErr
		}
		records = append(records, cells)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	if len(records) == 0 {
		return NewTable(), nil
	}

	t := NewTable(records[0]...)
	for _, rec := range records[1:] {
		t.AppendRow(rec...)
	}
	return t, nil
}

func writeXLSX(t *Table, path string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	if err != nil {
		return errors.Wrapf(err, "failed to create sheet for %s", path)
	}

	header := sheet.AddRow()
	for _, c := range t.Columns {
		header.AddCell().SetString(c)
	}
	for _, row := range t.Rows {
		r := sheet.AddRow()
		for _, v := range row {
			r.AddCell().SetString(v)
		}
	}

	if err := f.Save(path); err != nil {
		return errors.Wrapf(err, "failed to save %s", path)
	}
	return nil
}

func readXLS(path string) (*Table, error) {
	wb, err := xls.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}

	sheet, err := wb.GetSheet(0)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read first sheet of %s", path)
	}

	var records [][]string
	for i := 0; i < sheet.GetNumberRows(); i++ {
		r, err := sheet.GetRow(i)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read row %d of %s", i, path)
		}
		var cells []string
		for _, c := range r.GetCols() {
			cells = append(cells, c.GetString())
		}
		records = append(records, cells)
	}
	if len(records) == 0 {
		return NewTable(), nil
	}

	t := NewTable(records[0]...)
	for _, rec := range records[1:] {
		t.AppendRow(rec...)
	}
	return t, nil
}

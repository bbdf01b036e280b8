// Package ingest parses employee rosters from CSV and XLSX files into
// store-ready records.
package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/sells-group/retain-cli/internal/model"
)

// Options configures roster parsing.
type Options struct {
	DatasetID string
	SheetName string // XLSX only; empty means first sheet
	Delimiter rune   // CSV only; default ','
}

// Report summarizes one parse run. Skipped holds a human-readable
// reason per rejected row.
type Report struct {
	Rows    int
	Parsed  int
	Skipped []string
}

// ParseFile reads an employee roster, dispatching on file extension.
func ParseFile(path string, opts Options) ([]model.Employee, *Report, error) {
	if opts.DatasetID == "" {
		return nil, nil, eris.New("ingest: dataset id is required")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, eris.Wrap(err, "ingest: read csv")
		}
		return ParseCSV(bytes.NewReader(decodeToUTF8(f)), opts)
	case ".xlsx":
		return parseXLSX(path, opts)
	default:
		return nil, nil, eris.Errorf("ingest: unsupported file type %q", filepath.Ext(path))
	}
}

// ParseCSV parses a roster from CSV data. The first row must be a
// header; unknown columns are ignored.
func ParseCSV(r io.Reader, opts Options) ([]model.Employee, *Report, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.FieldsPerRecord = -1 // allow variable fields

	header, err := reader.Read()
	if err != nil {
		return nil, nil, eris.Wrap(err, "ingest: read csv header")
	}
	cols, err := mapHeader(header)
	if err != nil {
		return nil, nil, err
	}

	report := &Report{}
	var employees []model.Employee
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, eris.Wrapf(err, "ingest: read csv row %d", line)
		}

		report.Rows++
		emp, err := buildEmployee(record, cols, opts.DatasetID)
		if err != nil {
			report.Skipped = append(report.Skipped, fmt.Sprintf("row %d: %v", line, err))
			continue
		}
		employees = append(employees, emp)
		report.Parsed++
	}

	return employees, report, nil
}

func parseXLSX(path string, opts Options) ([]model.Employee, *Report, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "ingest: open xlsx")
	}

	sheet, err := pickSheet(f, opts.SheetName)
	if err != nil {
		return nil, nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, nil, eris.New("ingest: xlsx sheet is empty")
	}

	cols, err := mapHeader(rowToStrings(sheet.Rows[0]))
	if err != nil {
		return nil, nil, err
	}

	report := &Report{}
	var employees []model.Employee
	for i, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		if allBlank(cells) {
			continue
		}

		report.Rows++
		emp, err := buildEmployee(cells, cols, opts.DatasetID)
		if err != nil {
			report.Skipped = append(report.Skipped, fmt.Sprintf("row %d: %v", i+2, err))
			continue
		}
		employees = append(employees, emp)
		report.Parsed++
	}

	return employees, report, nil
}

func pickSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("ingest: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("ingest: xlsx has no sheets")
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func allBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// decodeToUTF8 passes valid UTF-8 through untouched and re-decodes
// anything else as Windows-1252, the usual encoding of HR exports from
// older tooling.
func decodeToUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return data
	}
	return decoded
}

package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/retain-cli/internal/model"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "roster.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestParseCSV_Basic(t *testing.T) {
	csvData := `employee_id,Name,Department,Job Title,Status,Annual Salary,Tenure Months,Hours Per Week,Projects,Manager Changes,Months Since Raise,Remote Ratio,Review Score,ELTV
emp-1,Sam Ortiz,Engineering,Backend Engineer,active,"$82,000",26,43,3,1,9,0.6,4.1,310000
emp-2,Riley Chen,Sales,AE,departed,64000,14,48,2,2,20,0.1,3.2,150000
`
	emps, report, err := ParseCSV(strings.NewReader(csvData), Options{DatasetID: "acme"})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Rows)
	assert.Equal(t, 2, report.Parsed)
	assert.Empty(t, report.Skipped)
	require.Len(t, emps, 2)

	assert.Equal(t, "emp-1", emps[0].ID)
	assert.Equal(t, "Sam Ortiz", emps[0].Name)
	assert.Equal(t, "acme", emps[0].DatasetID)
	assert.Equal(t, "Backend Engineer", emps[0].Role)
	assert.Equal(t, model.EmployeeActive, emps[0].Status)
	assert.InDelta(t, 82000.0, emps[0].Salary, 0.001)
	assert.InDelta(t, 26.0, emps[0].TenureMonths, 0.001)
	assert.Equal(t, 3, emps[0].ProjectCount)
	assert.InDelta(t, 0.6, emps[0].RemoteRatio, 0.001)

	assert.Equal(t, model.EmployeeDeparted, emps[1].Status)
}

func TestParseCSV_SkipsBadRows(t *testing.T) {
	csvData := `name,salary,status
Sam Ortiz,82000,active
,70000,active
Riley Chen,not-a-number,active
Alex Kim,64000,on sabbatical
Dana Wu,59000,
`
	emps, report, err := ParseCSV(strings.NewReader(csvData), Options{DatasetID: "acme"})
	require.NoError(t, err)
	assert.Equal(t, 5, report.Rows)
	assert.Equal(t, 2, report.Parsed)
	require.Len(t, report.Skipped, 3)
	assert.Contains(t, report.Skipped[0], "row 3")
	assert.Contains(t, report.Skipped[1], "bad salary value")
	assert.Contains(t, report.Skipped[2], "unrecognized status")

	require.Len(t, emps, 2)
	assert.Equal(t, "Sam Ortiz", emps[0].Name)
	assert.Equal(t, "Dana Wu", emps[1].Name)
}

func TestParseCSV_MissingKeyColumns(t *testing.T) {
	csvData := `salary,tenure_months
82000,26
`
	_, _, err := ParseCSV(strings.NewReader(csvData), Options{DatasetID: "acme"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name or id column")
}

func TestParseFile_CSVWithLatin1(t *testing.T) {
	// "Muñoz" encoded as Latin-1: 0xF1 for ñ.
	raw := []byte("name,salary\nSof\xeda Mu\xf1oz,70000\n")
	path := filepath.Join(t.TempDir(), "roster.csv")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	emps, report, err := ParseFile(path, Options{DatasetID: "acme"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Parsed)
	require.Len(t, emps, 1)
	assert.Equal(t, "Sofía Muñoz", emps[0].Name)
}

func TestParseFile_XLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Roster": {
			{"Employee ID", "Full Name", "Dept", "Salary", "Tenure"},
			{"emp-1", "Sam Ortiz", "Engineering", "82000", "26"},
			{"", "", "", "", ""},
			{"emp-2", "Riley Chen", "Sales", "64000", "14"},
		},
	})

	emps, report, err := ParseFile(path, Options{DatasetID: "acme", SheetName: "Roster"})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Rows)
	assert.Equal(t, 2, report.Parsed)
	require.Len(t, emps, 2)
	assert.Equal(t, "Engineering", emps[0].Department)
	assert.InDelta(t, 14.0, emps[1].TenureMonths, 0.001)
}

func TestParseFile_XLSXSheetNotFound(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {{"name"}, {"Sam"}},
	})

	_, _, err := ParseFile(path, Options{DatasetID: "acme", SheetName: "Roster"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Roster" not found`)
}

func TestParseFile_UnsupportedExtension(t *testing.T) {
	_, _, err := ParseFile("roster.pdf", Options{DatasetID: "acme"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestParseFile_RequiresDataset(t *testing.T) {
	_, _, err := ParseFile("roster.csv", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataset id is required")
}

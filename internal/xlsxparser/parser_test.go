package xlsxparser

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/dpeterek-muni/faktury-export/internal/normalize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// workbook builds an in-memory workbook with the given sheets; the ledger
// rows are written to the sheet named ledger.
func workbook(t *testing.T, sheets []string, ledger string, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", sheets[0]))
	for _, s := range sheets[1:] {
		_, err := f.NewSheet(s)
		require.NoError(t, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(ledger, cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseReaderSelectsNamedSheet(t *testing.T) {
	buf := workbook(t, []string{"Přehled", DefaultSheetName}, DefaultSheetName, [][]any{
		{"IČO", "Názov klienta", "Fakturovaná hodnota", "Datum aktivace"},
		{"12345678", "Obec Lhota", 1500.5, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{nil, nil, nil, nil},
		{"87654321", "Město Dolní", "2 000,00", nil},
	})

	sheet, err := ParseReader(buf, Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultSheetName, sheet.Name)
	assert.False(t, sheet.Fallback)
	assert.Equal(t, []string{"IČO", "Názov klienta", "Fakturovaná hodnota", "Datum aktivace"}, sheet.Headers)
	require.Len(t, sheet.Rows, 2, "blank rows are skipped")

	first := sheet.Rows[0]
	assert.Equal(t, "12345678", first[0].Value)
	assert.Equal(t, "1500.5", first[2].Value)
	date := normalize.Date(first[3].Value)
	require.NotNil(t, date)
	assert.Equal(t, "2024-01-15", date.String())

	assert.Nil(t, sheet.Rows[1][3].Value)
}

func TestParseReaderFoldedSheetName(t *testing.T) {
	buf := workbook(t, []string{"DATABAZA KLIENTOV"}, "DATABAZA KLIENTOV", [][]any{
		{"IČO"},
		{"1"},
	})
	sheet, err := ParseReader(buf, Options{})
	require.NoError(t, err)
	assert.Equal(t, "DATABAZA KLIENTOV", sheet.Name)
	assert.False(t, sheet.Fallback)
}

func TestParseFallsBackToFirstSheet(t *testing.T) {
	buf := workbook(t, []string{"Export", "Other"}, "Export", [][]any{
		{"IČO", "Fakturovaná hodnota"},
		{"1", "10"},
	})
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	sheet, err := Parse(path, Options{SheetName: "Missing"})
	require.NoError(t, err)
	assert.Equal(t, "Export", sheet.Name)
	assert.True(t, sheet.Fallback)
	assert.Len(t, sheet.Rows, 1)
}

func TestParseReaderEmptySheet(t *testing.T) {
	buf := workbook(t, []string{DefaultSheetName}, DefaultSheetName, nil)
	_, err := ParseReader(buf, Options{})
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestParseReaderRejectsGarbage(t *testing.T) {
	_, err := ParseReader(bytes.NewBufferString("not a workbook"), Options{})
	assert.Error(t, err)
}

func TestSelectSheet(t *testing.T) {
	_, _, err := selectSheet(nil, DefaultSheetName)
	assert.ErrorIs(t, err, ErrNoSheets)
}

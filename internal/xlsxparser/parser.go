// =============================================================================
// Faktury Export - XLSX Ledger Reader
// =============================================================================
//
// Reads the licence ledger workbook and turns one worksheet into ordered rows
// of header/value cells for the field resolver.
//
// SHEET SELECTION:
//   1. The configured sheet name, compared exactly.
//   2. The configured sheet name, compared after folding (case, diacritics).
//   3. The first worksheet in the workbook.
//
// CELL VALUES:
//   Cells are read as raw values, so dates arrive as Excel serial numbers and
//   amounts without display formatting. The normalizer understands both.
//
// =============================================================================

package xlsxparser

import (
	"errors"
	"fmt"
	"io"

	"github.com/dpeterek-muni/faktury-export/internal/fields"
	"github.com/xuri/excelize/v2"
)

// DefaultSheetName is the worksheet holding the client ledger.
const DefaultSheetName = "Databáza klientov"

// ErrNoSheets is returned for a workbook without worksheets.
var ErrNoSheets = errors.New("workbook has no sheets")

// ErrNoHeader is returned when the selected sheet has no header row.
var ErrNoHeader = errors.New("sheet has no header row")

// Sheet is one decoded worksheet.
type Sheet struct {
	// Name is the worksheet that was read.
	Name string

	// Headers is the cleaned header row.
	Headers []string

	// Rows holds the non-empty data rows.
	Rows []fields.Row

	// Fallback is true when the configured sheet was not found and the
	// first sheet was used instead.
	Fallback bool
}

// Options configures which sheet and header row are read.
type Options struct {
	// SheetName is the preferred worksheet. Empty means DefaultSheetName.
	SheetName string

	// HeaderRow is the 1-indexed header row. Zero means 1.
	HeaderRow int
}

// Parse opens the workbook at path and reads the ledger sheet.
func Parse(path string, opts Options) (*Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return read(f, opts)
}

// ParseReader reads the ledger sheet from an uploaded workbook stream.
func ParseReader(r io.Reader, opts Options) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return read(f, opts)
}

func read(f *excelize.File, opts Options) (*Sheet, error) {
	if opts.SheetName == "" {
		opts.SheetName = DefaultSheetName
	}
	if opts.HeaderRow <= 0 {
		opts.HeaderRow = 1
	}

	name, fallback, err := selectSheet(f.GetSheetList(), opts.SheetName)
	if err != nil {
		return nil, err
	}

	raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of %q: %w", name, err)
	}

	headerIndex := opts.HeaderRow - 1
	if headerIndex >= len(raw) || isRowEmpty(raw[headerIndex]) {
		return nil, fmt.Errorf("%q: %w", name, ErrNoHeader)
	}

	return &Sheet{
		Name:     name,
		Headers:  fields.CleanHeaders(raw[headerIndex]),
		Rows:     fields.BuildRows(raw[headerIndex], raw[headerIndex+1:]),
		Fallback: fallback,
	}, nil
}

// selectSheet picks the ledger sheet from the workbook's sheet list.
func selectSheet(sheets []string, want string) (name string, fallback bool, err error) {
	if len(sheets) == 0 {
		return "", false, ErrNoSheets
	}
	for _, s := range sheets {
		if s == want {
			return s, false, nil
		}
	}
	folded := fields.Fold(want)
	for _, s := range sheets {
		if fields.Fold(s) == folded {
			return s, false, nil
		}
	}
	return sheets[0], true, nil
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}

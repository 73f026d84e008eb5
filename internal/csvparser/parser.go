// =============================================================================
// Faktury Export - CSV Ledger Reader
// =============================================================================
//
// Reads a ledger saved as CSV instead of xlsx. The header row carries the same
// labels as the workbook, so the rows feed the same field resolver.
//
// FEATURES:
//   - Configurable delimiter; "auto" sniffs ';' vs ',' from the header line
//   - UTF-8 byte order mark is stripped
//   - Ragged rows are accepted and padded
//
// =============================================================================

package csvparser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dpeterek-muni/faktury-export/internal/fields"
)

// ErrEmpty is returned for a CSV file without a header line.
var ErrEmpty = errors.New("CSV file is empty")

// Settings configures the CSV reader.
type Settings struct {
	// Delimiter is a single character, or "auto".
	Delimiter string
}

// Data is a parsed CSV ledger.
type Data struct {
	Headers []string
	Rows    []fields.Row
}

// Parse reads a CSV ledger from disk.
func Parse(filePath string, settings Settings) (*Data, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return ParseReader(file, settings)
}

// ParseReader reads a CSV ledger from r.
func ParseReader(r io.Reader, settings Settings) (*Data, error) {
	reader := bufio.NewReader(r)

	if bom, err := reader.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = reader.Discard(3)
	}

	delimiter, err := resolveDelimiter(reader, settings.Delimiter)
	if err != nil {
		return nil, err
	}

	csvReader := csv.NewReader(reader)
	csvReader.Comma = delimiter
	csvReader.FieldsPerRecord = -1
	csvReader.LazyQuotes = true

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(allRows) == 0 {
		return nil, ErrEmpty
	}

	return &Data{
		Headers: fields.CleanHeaders(allRows[0]),
		Rows:    fields.BuildRows(allRows[0], allRows[1:]),
	}, nil
}

// resolveDelimiter returns the configured delimiter, sniffing the header line
// when it is "auto" or empty.
func resolveDelimiter(reader *bufio.Reader, configured string) (rune, error) {
	switch configured {
	case "\\t", "tab":
		return '\t', nil
	case "", "auto":
	default:
		runes := []rune(configured)
		if len(runes) != 1 {
			return 0, fmt.Errorf("delimiter must be a single character, got %q", configured)
		}
		return runes[0], nil
	}

	line, err := reader.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return 0, fmt.Errorf("failed to read CSV header: %w", err)
	}
	header := string(line)
	if i := strings.IndexByte(header, '\n'); i >= 0 {
		header = header[:i]
	}
	if strings.Count(header, ";") > strings.Count(header, ",") {
		return ';', nil
	}
	return ',', nil
}

// =============================================================================
// Faktury Export - Record Normalizer
// =============================================================================
//
// Pure conversions from raw spreadsheet cell values to typed values. None of
// these functions return an error: messy input always resolves to a safe
// default (zero, absent, false) so that one bad row cannot abort a batch.
//
// Cell values arrive either as strings (xlsx raw values, CSV) or as native Go
// values (time.Time, float64, int) when rows are built programmatically.
//
// =============================================================================

package normalize

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/dpeterek-muni/faktury-export/internal/fields"
	"github.com/dpeterek-muni/faktury-export/internal/types"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// placeholder cells that mean "no value"
var emptyTokens = map[string]bool{
	"":       true,
	"-":      true,
	"\u2013": true,
	"nat":    true,
	"nan":    true,
}

// =============================================================================
// NUMBERS
// =============================================================================

// Number converts v to a decimal. Empty cells and "-" yield 0. Space-grouped
// thousands and a decimal comma are accepted ("1 234,50" → 1234.50).
// Anything unparsable yields 0.
func Number(v any) decimal.Decimal {
	d, _ := ParseNumber(v)
	return d
}

// ParseNumber is Number that also reports whether v held a usable number.
func ParseNumber(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return n, true
	case float64:
		if !finite(n) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(n), true
	case float32:
		if !finite(float64(n)) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case string:
		return parseNumberString(n)
	default:
		return parseNumberString(fmt.Sprint(n))
	}
}

func parseNumberString(s string) (decimal.Decimal, bool) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\'' {
			return -1
		}
		return r
	}, s)
	if emptyTokens[strings.ToLower(s)] {
		return decimal.Zero, false
	}

	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0:
		// whichever separator comes last is the decimal one
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		if strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Int converts v to an integer, truncating any fraction.
func Int(v any) int64 {
	return Number(v).IntPart()
}

// =============================================================================
// DATES
// =============================================================================

// textual layouts tried in order; day-first for the slash form
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2.1.2006",
	"2. 1. 2006",
	"2.1.2006 15:04:05",
	"2/1/2006",
	"2006/01/02",
}

// Excel serials are accepted only inside this window (1954-10-05 ... 2173-10-14).
const (
	minExcelSerial = 20000
	maxExcelSerial = 100000
)

// Date converts v to a calendar date. Empty cells, "-" and "NaT" are absent.
// Strings are parsed permissively; numeric values are read as Excel date
// serials. Invalid dates are absent.
func Date(v any) *types.Date {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		if val.IsZero() {
			return nil
		}
		d := types.DateOf(val)
		return &d
	case *types.Date:
		return val
	case types.Date:
		return &val
	case float64:
		return fromSerial(val)
	case int:
		return fromSerial(float64(val))
	case string:
		return parseDateString(val)
	default:
		return parseDateString(fmt.Sprint(val))
	}
}

func parseDateString(s string) *types.Date {
	s = strings.TrimSpace(s)
	if emptyTokens[strings.ToLower(s)] {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := types.DateOf(t)
			return &d
		}
	}
	if n, ok := parseNumberString(s); ok {
		f, _ := n.Float64()
		return fromSerial(f)
	}
	return nil
}

func fromSerial(serial float64) *types.Date {
	if !finite(serial) || serial < minExcelSerial || serial > maxExcelSerial {
		return nil
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return nil
	}
	d := types.DateOf(t)
	return &d
}

// =============================================================================
// IDENTIFIERS, TEXT AND FLAGS
// =============================================================================

// TaxID strips hyphens and all whitespace from a registration number.
// Empty results are absent (""). Numeric cells are zero-padded to the
// 8-digit IČO width. TaxID is idempotent.
func TaxID(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		return ""
	case float64:
		s = fmt.Sprintf("%08d", int64(val))
	case int:
		s = fmt.Sprintf("%08d", val)
	case string:
		s = val
	default:
		s = fmt.Sprint(val)
	}
	return strings.Map(func(r rune) rune {
		if r == '-' || r == '\u2010' || r == '\u2013' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Text trims a cell to a string. Empty placeholders become "".
func Text(v any) string {
	if v == nil {
		return ""
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "-" {
		return ""
	}
	return s
}

// Country normalizes a country code to upper case.
func Country(v any) string {
	return strings.ToUpper(Text(v))
}

// Yes reports whether v is the affirmative token "ano" in any casing or
// diacritic variant ("ANO", "áno"). Everything else is false.
func Yes(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return fields.Fold(Text(v)) == "ano"
}

// VATLiable is the VAT payer flag of a ledger row.
func VATLiable(v any) bool {
	return Yes(v)
}

var (
	yesTokens     = []string{"ano", "yes", "true", "1", "fakturovano", "vyfakturovano"}
	partialTokens = []string{"castecn", "ciastocn", "partial"}
)

// Invoiced maps the already-invoiced cell to its tri-state.
func Invoiced(v any) types.InvoicedState {
	if b, ok := v.(bool); ok {
		if b {
			return types.InvoicedYes
		}
		return types.InvoicedNo
	}
	token := fields.Fold(Text(v))
	for _, t := range yesTokens {
		if token == t {
			return types.InvoicedYes
		}
	}
	for _, t := range partialTokens {
		if strings.HasPrefix(token, t) {
			return types.InvoicedPartial
		}
	}
	return types.InvoicedNo
}

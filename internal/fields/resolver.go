// =============================================================================
// Faktury Export - Field Resolver
// =============================================================================
//
// Ledger exports label the same column differently depending on who saved
// them (Czech vs. Slovak wording, stray casing, line breaks inside header
// cells). The resolver finds a semantic field by folding every header and
// checking whether it contains one of the field's candidate fragments.
//
// MATCH RULES:
//   - Headers and fragments are compared after Fold (case and diacritics
//     removed, whitespace collapsed).
//   - The first header in row order that matches any candidate wins.
//   - A matched cell that is empty resolves to "absent".
//
// AMBIGUITY:
//   Under PolicyFirstMatch the rule above is applied silently. Under
//   PolicyStrict, Bind fails when more than one header matches a field.
//
// =============================================================================

package fields

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAmbiguousHeader is wrapped by AmbiguityError.
var ErrAmbiguousHeader = errors.New("ambiguous header")

// AmbiguityError reports a field matched by more than one header.
type AmbiguityError struct {
	Field   Field
	Headers []string
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("field %s matches %d headers (%s)", e.Field, len(e.Headers), strings.Join(e.Headers, ", "))
}

func (e *AmbiguityError) Unwrap() error {
	return ErrAmbiguousHeader
}

// Policy selects how multiple matching headers are handled.
type Policy int

const (
	PolicyFirstMatch Policy = iota
	PolicyStrict
)

// ParsePolicy maps a config value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first_match", "first-match":
		return PolicyFirstMatch, nil
	case "strict":
		return PolicyStrict, nil
	default:
		return 0, fmt.Errorf("unknown header policy %q", s)
	}
}

// =============================================================================
// ROWS
// =============================================================================

// Cell is one header/value pair. Value is nil for an empty cell.
type Cell struct {
	Header string
	Value  any
}

// Row is a raw spreadsheet row in its natural column order.
type Row []Cell

// Headers returns the row's headers in order.
func (r Row) Headers() []string {
	headers := make([]string, len(r))
	for i, c := range r {
		headers[i] = c.Header
	}
	return headers
}

// IsEmpty reports whether every cell is empty.
func (r Row) IsEmpty() bool {
	for _, c := range r {
		if !isEmptyValue(c.Value) {
			return false
		}
	}
	return true
}

// =============================================================================
// RESOLUTION
// =============================================================================

// Resolve returns the value of the first header in row that contains one of
// candidates after folding. It reports false when nothing matches or the
// matched cell is empty.
func Resolve(row Row, candidates []string) (any, bool) {
	return lookup(row, Matcher{Candidates: foldAll(candidates)})
}

// lookup expects m.Candidates to be folded already.
func lookup(row Row, m Matcher) (any, bool) {
	for _, cell := range row {
		if matches(Fold(cell.Header), m.Candidates, m.Exact) {
			if isEmptyValue(cell.Value) {
				return nil, false
			}
			return cell.Value, true
		}
	}
	return nil, false
}

// Resolver resolves semantic fields through a matcher table.
type Resolver struct {
	table  map[Field]Matcher
	order  []Field
	policy Policy
}

// NewResolver builds a resolver over table.
func NewResolver(table []Matcher, policy Policy) *Resolver {
	r := &Resolver{
		table:  make(map[Field]Matcher, len(table)),
		policy: policy,
	}
	for _, m := range table {
		m.Candidates = foldAll(m.Candidates)
		if _, dup := r.table[m.Field]; !dup {
			r.order = append(r.order, m.Field)
		}
		r.table[m.Field] = m
	}
	return r
}

// Fields returns the table's fields in table order.
func (r *Resolver) Fields() []Field {
	return append([]Field(nil), r.order...)
}

// Bind checks a header row against the table and returns, for each field,
// the headers that match it. Under PolicyStrict it fails with an
// *AmbiguityError as soon as a field has more than one matching header.
func (r *Resolver) Bind(headers []string) (map[Field][]string, error) {
	folded := make([]string, len(headers))
	for i, h := range headers {
		folded[i] = Fold(h)
	}

	bound := make(map[Field][]string, len(r.order))
	for _, field := range r.order {
		m := r.table[field]
		for i, h := range folded {
			if matches(h, m.Candidates, m.Exact) {
				bound[field] = append(bound[field], headers[i])
			}
		}
		if r.policy == PolicyStrict && len(bound[field]) > 1 {
			return bound, &AmbiguityError{Field: field, Headers: bound[field]}
		}
	}
	return bound, nil
}

// Lookup resolves field in row. Unknown fields are reported as absent.
func (r *Resolver) Lookup(row Row, field Field) (any, bool) {
	m, ok := r.table[field]
	if !ok {
		return nil, false
	}
	return lookup(row, m)
}

func matches(header string, candidates []string, exact bool) bool {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if exact {
			if header == c {
				return true
			}
		} else if strings.Contains(header, c) {
			return true
		}
	}
	return false
}

func foldAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = Fold(s)
	}
	return out
}

func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	default:
		return false
	}
}

// CleanHeaders trims header cells and names blank ones "Column_<n>".
func CleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = h
	}
	return cleaned
}

// BuildRows pairs every data line with the header row. Empty values become
// nil and blank lines are skipped.
func BuildRows(headers []string, data [][]string) []Row {
	cleaned := CleanHeaders(headers)
	rows := make([]Row, 0, len(data))
	for _, line := range data {
		row := make(Row, len(cleaned))
		for i, h := range cleaned {
			row[i] = Cell{Header: h}
			if i < len(line) && strings.TrimSpace(line[i]) != "" {
				row[i].Value = strings.TrimSpace(line[i])
			}
		}
		if row.IsEmpty() {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

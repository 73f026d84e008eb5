// =============================================================================
// Faktury Export - Line Edits
// =============================================================================
//
// This module applies user overrides to draft invoices before export or
// submission. On the command line the overrides come from a YAML file; the
// HTTP API sends already edited drafts instead.
//
// EDITS FILE FORMAT:
//   edits:
//     - group: "12345678"      # group key (IČO or no-ico-... key)
//       line: 0                # 0-indexed line within the invoice
//       name: "Licence 2024"   # optional
//       price: "1200,50"       # optional, same number formats as the ledger
//       vatRate: "0"           # optional
//
// Values are strings so the ledger's own number formats can be used.
//
// =============================================================================

package converter

import (
	"errors"
	"fmt"
	"os"

	"github.com/dpeterek-muni/faktury-export/internal/normalize"
	"github.com/dpeterek-muni/faktury-export/internal/types"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ErrUnknownGroup is returned when an edit names a group not in the batch.
var ErrUnknownGroup = errors.New("edit refers to unknown group")

// =============================================================================
// EDIT STRUCTURES
// =============================================================================

// EditsFile is the root of the YAML edits file.
type EditsFile struct {
	Edits []Edit `yaml:"edits"`
}

// Edit overrides one line of one draft invoice.
type Edit struct {
	Group   string  `yaml:"group"`
	Line    int     `yaml:"line"`
	Name    *string `yaml:"name"`
	Price   *string `yaml:"price"`
	VATRate *string `yaml:"vatRate"`
}

// LoadEdits reads a YAML edits file.
func LoadEdits(path string) ([]Edit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read edits file: %w", err)
	}
	var file EditsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse edits file: %w", err)
	}
	return file.Edits, nil
}

// =============================================================================
// APPLYING EDITS
// =============================================================================

// toLineEdit parses the string values of an edit.
func (e Edit) toLineEdit() (types.LineEdit, error) {
	var le types.LineEdit
	if e.Name != nil {
		le.Name = e.Name
	}
	if e.Price != nil {
		d, ok := normalize.ParseNumber(*e.Price)
		if !ok {
			return le, fmt.Errorf("invalid price %q", *e.Price)
		}
		le.Price = &d
	}
	if e.VATRate != nil {
		d, ok := normalize.ParseNumber(*e.VATRate)
		if !ok {
			return le, fmt.Errorf("invalid VAT rate %q", *e.VATRate)
		}
		if d.LessThan(decimal.Zero) || d.GreaterThan(decimal.NewFromInt(100)) {
			return le, fmt.Errorf("VAT rate %s out of range 0-100", d)
		}
		le.VATRate = &d
	}
	return le, nil
}

// ApplyEdits applies every edit to the matching draft. All edits are checked
// and their errors returned together; valid edits are applied regardless.
func ApplyEdits(drafts []*types.DraftInvoice, edits []Edit) error {
	byKey := make(map[string]*types.DraftInvoice, len(drafts))
	for _, d := range drafts {
		byKey[d.GroupKey] = d
	}

	var errs []error
	for i, e := range edits {
		draft, ok := byKey[e.Group]
		if !ok {
			errs = append(errs, fmt.Errorf("edit %d: %q: %w", i+1, e.Group, ErrUnknownGroup))
			continue
		}
		le, err := e.toLineEdit()
		if err != nil {
			errs = append(errs, fmt.Errorf("edit %d: %w", i+1, err))
			continue
		}
		if err := draft.EditLine(e.Line, le); err != nil {
			errs = append(errs, fmt.Errorf("edit %d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}

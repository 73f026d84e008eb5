// Package billing decides whether a ledger record may still be invoiced.
package billing

import (
	"fmt"
	"strings"

	"github.com/dpeterek-muni/faktury-export/internal/types"
)

// Policy controls how a partially invoiced record is treated.
type Policy int

const (
	// Lenient keeps partially invoiced records billable.
	Lenient Policy = iota
	// Strict excludes partially invoiced records.
	Strict
)

func (p Policy) String() string {
	if p == Strict {
		return "strict"
	}
	return "lenient"
}

// ParsePolicy maps a config value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lenient":
		return Lenient, nil
	case "strict":
		return Strict, nil
	default:
		return Lenient, fmt.Errorf("unknown invoiced policy %q", s)
	}
}

// Classifier flags records that are eligible for invoicing. The flag is
// advisory: it drives filtering in previews, it does not gate grouping.
type Classifier struct {
	Policy Policy
}

// CanInvoice reports whether rec has a positive billable amount and has not
// been invoiced yet.
func (c Classifier) CanInvoice(rec *types.LedgerRecord) bool {
	if rec == nil || !rec.BillableAmount.IsPositive() {
		return false
	}
	switch rec.Invoiced {
	case types.InvoicedYes:
		return false
	case types.InvoicedPartial:
		return c.Policy != Strict
	default:
		return true
	}
}

// Mark sets the Billable flag on every record and returns how many are
// billable.
func (c Classifier) Mark(records []*types.LedgerRecord) int {
	n := 0
	for _, rec := range records {
		rec.Billable = c.CanInvoice(rec)
		if rec.Billable {
			n++
		}
	}
	return n
}

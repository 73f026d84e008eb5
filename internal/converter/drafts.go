package converter

import (
	"github.com/dpeterek-muni/faktury-export/internal/assembler"
	"github.com/dpeterek-muni/faktury-export/internal/types"
)

// DraftOptions select which records become invoices and how they are
// assembled.
type DraftOptions struct {
	Policy GroupPolicy

	// OnlySelected restricts grouping to records with Selected set.
	OnlySelected bool

	// BillableOnly restricts grouping to records the classifier marked
	// billable.
	BillableOnly bool

	Assembly assembler.Options
}

// Drafts is the output of BuildDrafts.
type Drafts struct {
	Invoices []*types.DraftInvoice

	// Considered is the number of records that went into grouping.
	Considered int

	// Dropped lists records left out by the strict grouping policy.
	Dropped []*types.LedgerRecord
}

// BuildDrafts filters, groups and assembles records into draft invoices, in
// group order.
func BuildDrafts(asm *assembler.Assembler, records []*types.LedgerRecord, opts DraftOptions) (*Drafts, error) {
	if opts.OnlySelected {
		records = Selected(records)
	}
	if opts.BillableOnly {
		records = Billable(records)
	}

	grouped := Group(records, opts.Policy)
	invoices, err := asm.AssembleAll(grouped.Groups, opts.Assembly)
	if err != nil {
		return nil, err
	}
	return &Drafts{Invoices: invoices, Considered: len(records), Dropped: grouped.Dropped}, nil
}

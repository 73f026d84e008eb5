package render

import (
	"github.com/dpeterek-muni/faktury-export/internal/fakturoid"
	"github.com/dpeterek-muni/faktury-export/internal/types"
	"github.com/shopspring/decimal"
)

// SubmissionPayload maps a draft to the Fakturoid invoice request for the
// resolved subject. Effective (edited) line values are sent. The invoice is
// always created open, never issued.
func (r *Renderer) SubmissionPayload(inv *types.DraftInvoice, subjectID int64) fakturoid.InvoiceRequest {
	issued := inv.IssuedOn
	if issued.IsZero() {
		issued = types.DateOf(r.now())
	}
	duzp := inv.TaxableFulfillmentDue
	if duzp.IsZero() {
		duzp = issued
	}
	currency := inv.Currency
	if currency == "" {
		currency = "CZK"
	}

	lines := make([]fakturoid.InvoiceLine, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		unit := l.Unit
		if unit == "" {
			unit = "ks"
		}
		lines = append(lines, fakturoid.InvoiceLine{
			Name:      l.EffectiveName(),
			Quantity:  decimal.NewFromInt(1),
			UnitName:  unit,
			UnitPrice: l.EffectivePrice(),
			VATRate:   l.EffectiveVATRate(),
		})
	}

	return fakturoid.InvoiceRequest{
		SubjectID:             subjectID,
		IssuedOn:              issued.String(),
		TaxableFulfillmentDue: duzp.String(),
		Due:                   inv.DueInDays,
		Currency:              currency,
		Language:              inv.Language,
		Lines:                 lines,
		Status:                fakturoid.StatusOpen,
	}
}

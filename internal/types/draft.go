package types

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// =============================================================================
// DRAFT LINE
// =============================================================================

// DraftLine is one invoice line. The computed defaults are never changed once
// assembled; user edits go into the override fields and win everywhere
// downstream.
type DraftLine struct {
	// RecordID links the line back to its ledger record.
	RecordID int `json:"recordId,omitempty"`

	Name         string  `json:"name"`
	NameOverride *string `json:"editedName,omitempty"`

	Quantity int    `json:"quantity"`
	Unit     string `json:"unit"`

	UnitPrice     decimal.Decimal  `json:"unitPrice"`
	PriceOverride *decimal.Decimal `json:"editedPrice,omitempty"`

	VATRate         decimal.Decimal  `json:"vatRate"`
	VATRateOverride *decimal.Decimal `json:"editedVatRate,omitempty"`
}

// EffectiveName returns the edited name, or the generated one.
func (l DraftLine) EffectiveName() string {
	if l.NameOverride != nil {
		return *l.NameOverride
	}
	return l.Name
}

// EffectivePrice returns the edited price, or the ledger price.
func (l DraftLine) EffectivePrice() decimal.Decimal {
	if l.PriceOverride != nil {
		return *l.PriceOverride
	}
	return l.UnitPrice
}

// EffectiveVATRate returns the edited VAT rate, or the computed one.
func (l DraftLine) EffectiveVATRate() decimal.Decimal {
	if l.VATRateOverride != nil {
		return *l.VATRateOverride
	}
	return l.VATRate
}

// VATAmount is price × rate / 100, rounded to cents.
func (l DraftLine) VATAmount() decimal.Decimal {
	return l.EffectivePrice().Mul(l.EffectiveVATRate()).Div(hundred).Round(2)
}

// TotalWithVAT is price + VAT amount.
func (l DraftLine) TotalWithVAT() decimal.Decimal {
	return l.EffectivePrice().Add(l.VATAmount())
}

// LineEdit carries the user overrides for one line. Nil fields are left
// untouched.
type LineEdit struct {
	Name    *string
	Price   *decimal.Decimal
	VATRate *decimal.Decimal
}

// Apply returns a copy of the line with the edit's overrides set.
func (l DraftLine) Apply(e LineEdit) DraftLine {
	if e.Name != nil {
		name := *e.Name
		l.NameOverride = &name
	}
	if e.Price != nil {
		price := *e.Price
		l.PriceOverride = &price
	}
	if e.VATRate != nil {
		rate := *e.VATRate
		l.VATRateOverride = &rate
	}
	return l
}

// =============================================================================
// DRAFT INVOICE
// =============================================================================

// DraftInvoice is one invoice to be exported or created remotely. Totals are
// always derived from Lines and are never stored.
type DraftInvoice struct {
	GroupKey string `json:"groupKey"`
	TaxID    string `json:"taxId,omitempty"`
	HasTaxID bool   `json:"hasTaxId"`

	// SubjectID is the resolved remote subject, zero until resolved.
	SubjectID int64 `json:"subjectId,omitempty"`

	ClientName string `json:"clientName"`
	Country    string `json:"country,omitempty"`
	Currency   string `json:"currency"`
	Language   string `json:"language,omitempty"`

	IssuedOn              Date `json:"issuedOn"`
	TaxableFulfillmentDue Date `json:"taxableFulfillmentDue"`
	DueInDays             int  `json:"dueInDays"`

	Lines []DraftLine `json:"lines"`
}

// DueOn is the issue date plus the due offset.
func (inv *DraftInvoice) DueOn() Date {
	return inv.IssuedOn.AddDays(inv.DueInDays)
}

// TotalWithoutVAT is the sum of the effective line prices.
func (inv *DraftInvoice) TotalWithoutVAT() decimal.Decimal {
	total := decimal.Zero
	for _, line := range inv.Lines {
		total = total.Add(line.EffectivePrice())
	}
	return total
}

// TotalVAT is the sum of the line VAT amounts.
func (inv *DraftInvoice) TotalVAT() decimal.Decimal {
	total := decimal.Zero
	for _, line := range inv.Lines {
		total = total.Add(line.VATAmount())
	}
	return total
}

// TotalWithVAT is the total without VAT plus the total VAT.
func (inv *DraftInvoice) TotalWithVAT() decimal.Decimal {
	return inv.TotalWithoutVAT().Add(inv.TotalVAT())
}

// EditLine applies an edit to the line at index i.
func (inv *DraftInvoice) EditLine(i int, e LineEdit) error {
	if i < 0 || i >= len(inv.Lines) {
		return fmt.Errorf("invoice %s: line %d out of range (has %d lines)", inv.GroupKey, i, len(inv.Lines))
	}
	inv.Lines[i] = inv.Lines[i].Apply(e)
	return nil
}

type draftInvoiceAlias DraftInvoice

// MarshalJSON adds the derived totals and due date to the encoded invoice.
// They are ignored when decoding.
func (inv DraftInvoice) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		draftInvoiceAlias
		DueOn           Date            `json:"dueOn"`
		TotalWithoutVAT decimal.Decimal `json:"totalWithoutVat"`
		TotalVAT        decimal.Decimal `json:"totalVat"`
		TotalWithVAT    decimal.Decimal `json:"totalWithVat"`
	}{
		draftInvoiceAlias: draftInvoiceAlias(inv),
		DueOn:             inv.DueOn(),
		TotalWithoutVAT:   inv.TotalWithoutVAT(),
		TotalVAT:          inv.TotalVAT(),
		TotalWithVAT:      inv.TotalWithVAT(),
	})
}

// =============================================================================
// Faktury Export - Shared Types
// =============================================================================
//
// This package contains the types that flow through the whole pipeline. They
// live here to avoid import cycles. Types defined here are used by:
//   - converter (ingestion, grouping, edits)
//   - assembler
//   - render
//   - submit and server
//
// =============================================================================

package types

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER RECORD
// =============================================================================

// LedgerRecord is one spreadsheet row after normalization.
//
// Records are created once during ingestion and are treated as immutable
// afterwards. The only field a caller is expected to change is Selected.
type LedgerRecord struct {
	// ID is the sequence number assigned in ingestion order (1-indexed).
	ID int `json:"id"`

	// ExternalID is the value of the ledger's own "ID" column, if any.
	ExternalID string `json:"externalId,omitempty"`

	// TaxID is the normalized business registration number (IČO).
	// Empty means the row has no tax identifier.
	TaxID string `json:"taxId,omitempty"`

	ClientName       string `json:"clientName"`
	MunicipalityCode string `json:"municipalityCode,omitempty"`
	District         string `json:"district,omitempty"`
	Region           string `json:"region,omitempty"`
	Country          string `json:"country,omitempty"`
	Population       int64  `json:"population,omitempty"`
	ClientType       string `json:"clientType,omitempty"`
	Consultant       string `json:"consultant,omitempty"`
	ActivityType     string `json:"activityType,omitempty"`

	// Service is the purchased service description, used as the line name.
	Service string `json:"service,omitempty"`

	// BillingInterval is the payment interval in years.
	BillingInterval decimal.Decimal `json:"billingInterval"`

	// Commitment is the contractual commitment in years.
	Commitment decimal.Decimal `json:"commitment"`

	OrderAmount    decimal.Decimal `json:"orderAmount"`
	BillableAmount decimal.Decimal `json:"billableAmount"`

	ActivationDate    *Date  `json:"activationDate,omitempty"`
	PeriodEndDate     *Date  `json:"periodEndDate,omitempty"`
	TerminationDate   *Date  `json:"terminationDate,omitempty"`
	BillingMonth      *Date  `json:"billingMonth,omitempty"`
	LicenceStartMonth string `json:"licenceStartMonth,omitempty"`

	Invoiced           InvoicedState `json:"invoiced"`
	VATLiable          bool          `json:"vatLiable"`
	Note               string        `json:"note,omitempty"`
	ContinuationResult string        `json:"continuationResult,omitempty"`
	AutoRenewal        bool          `json:"autoRenewal"`

	// Billable is the advisory result of the billability classifier.
	Billable bool `json:"billable"`

	// Selected restricts which records take part in grouping when the
	// caller asks for selected records only.
	Selected bool `json:"selected"`
}

// HasTaxID reports whether the record carries a tax identifier.
func (r *LedgerRecord) HasTaxID() bool {
	return r.TaxID != ""
}

// =============================================================================
// INVOICE GROUP
// =============================================================================

// InvoiceGroup is a set of ledger records sharing one billing subject.
// The representative fields are taken from the first member.
type InvoiceGroup struct {
	// Key is the normalized tax id, or a synthetic "no-ico-..." key.
	Key string `json:"key"`

	TaxID      string `json:"taxId,omitempty"`
	HasTaxID   bool   `json:"hasTaxId"`
	ClientName string `json:"clientName"`
	Country    string `json:"country,omitempty"`
	VATLiable  bool   `json:"vatLiable"`

	// Records references the member records in input order.
	Records []*LedgerRecord `json:"records"`
}

// First returns the first member record, or nil for an empty group.
func (g *InvoiceGroup) First() *LedgerRecord {
	if len(g.Records) == 0 {
		return nil
	}
	return g.Records[0]
}

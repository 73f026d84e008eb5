// =============================================================================
// Faktury Export - Invoice Assembler
// =============================================================================
//
// This module turns an invoice group into a draft invoice.
//
// DEFAULTS:
//   - issue date:   today (injectable clock)
//   - DUZP:         activation date of the group's first record, else issue date
//   - due date:     issue date + DueInDays (14)
//   - currency:     by country, overridable
//   - VAT rate:     by country, overridable; 0 for records that are not VAT-liable
//   - line name:    service, else "Licence", plus " (dd/mm/yyyy - dd/mm/yyyy)"
//                   when the record has both activation and period-end dates
//
// One line is produced per ledger record, quantity 1, unit "ks".
//
// =============================================================================

package assembler

import (
	"errors"
	"fmt"
	"time"

	"github.com/dpeterek-muni/faktury-export/internal/config"
	"github.com/dpeterek-muni/faktury-export/internal/countries"
	"github.com/dpeterek-muni/faktury-export/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ErrEmptyGroup is returned for a group without records. The grouper never
// produces one, so this signals a construction error upstream.
var ErrEmptyGroup = errors.New("invoice group has no records")

const (
	DefaultDueInDays = 14
	DefaultLineName  = "Licence"
	DefaultUnit      = "ks"

	periodLayout = "02/01/2006"
)

// Options are the per-request assembly overrides. Nil fields use the
// defaults.
type Options struct {
	IncludePeriodInName *bool            `json:"includePeriodInName,omitempty"`
	VATRate             *decimal.Decimal `json:"vatRate,omitempty"`
	DueInDays           *int             `json:"dueInDays,omitempty"`
	Currency            *string          `json:"currency,omitempty"`
}

// Assembler builds draft invoices.
type Assembler struct {
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// LineName replaces DefaultLineName when set.
	LineName string

	// Unit replaces DefaultUnit when set.
	Unit string

	// DueInDays replaces DefaultDueInDays when positive.
	DueInDays int

	// PeriodInName is the default for Options.IncludePeriodInName. Nil
	// means true.
	PeriodInName *bool
}

// New returns an Assembler with the package defaults.
func New() *Assembler {
	return &Assembler{Now: time.Now}
}

// FromConfig returns an Assembler using the configured invoice defaults.
func FromConfig(cfg config.BillingConfig) *Assembler {
	return &Assembler{
		Now:          time.Now,
		LineName:     cfg.DefaultLineName,
		Unit:         cfg.UnitName,
		DueInDays:    cfg.DueInDays,
		PeriodInName: cfg.IncludePeriodInName,
	}
}

// Assemble builds the draft invoice for one group.
func (a *Assembler) Assemble(group *types.InvoiceGroup, opts Options) (*types.DraftInvoice, error) {
	first := group.First()
	if first == nil {
		return nil, fmt.Errorf("group %q: %w", group.Key, ErrEmptyGroup)
	}

	issued := types.DateOf(a.now())
	duzp := issued
	if first.ActivationDate != nil {
		duzp = *first.ActivationDate
	}

	currency := countries.CurrencyFor(group.Country)
	if opts.Currency != nil && *opts.Currency != "" {
		currency = *opts.Currency
	}

	inv := &types.DraftInvoice{
		GroupKey:              group.Key,
		TaxID:                 group.TaxID,
		HasTaxID:              group.HasTaxID,
		ClientName:            group.ClientName,
		Country:               group.Country,
		Currency:              currency,
		Language:              countries.LanguageFor(group.Country),
		IssuedOn:              issued,
		TaxableFulfillmentDue: duzp,
		DueInDays:             lo.FromPtrOr(opts.DueInDays, a.dueInDays()),
		Lines:                 make([]types.DraftLine, 0, len(group.Records)),
	}

	withPeriod := lo.FromPtrOr(opts.IncludePeriodInName, lo.FromPtrOr(a.PeriodInName, true))
	for _, rec := range group.Records {
		inv.Lines = append(inv.Lines, types.DraftLine{
			RecordID:  rec.ID,
			Name:      a.lineName(rec, withPeriod),
			Quantity:  1,
			Unit:      lo.Ternary(a.Unit != "", a.Unit, DefaultUnit),
			UnitPrice: rec.BillableAmount,
			VATRate:   vatRate(rec, group.Country, opts.VATRate),
		})
	}
	return inv, nil
}

// AssembleAll builds one draft per group, in group order.
func (a *Assembler) AssembleAll(groups []*types.InvoiceGroup, opts Options) ([]*types.DraftInvoice, error) {
	out := make([]*types.DraftInvoice, 0, len(groups))
	for _, g := range groups {
		inv, err := a.Assemble(g, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}

// lineName is the service description, with the billing period appended
// when requested and both dates are known.
func (a *Assembler) lineName(rec *types.LedgerRecord, withPeriod bool) string {
	name := rec.Service
	if name == "" {
		name = lo.Ternary(a.LineName != "", a.LineName, DefaultLineName)
	}
	if withPeriod && rec.ActivationDate != nil && rec.PeriodEndDate != nil {
		name = fmt.Sprintf("%s (%s - %s)", name,
			rec.ActivationDate.Format(periodLayout), rec.PeriodEndDate.Format(periodLayout))
	}
	return name
}

// vatRate is 0 for records that are not VAT-liable, else the override, else
// the country rate.
func vatRate(rec *types.LedgerRecord, country string, override *decimal.Decimal) decimal.Decimal {
	if !rec.VATLiable {
		return decimal.Zero
	}
	if override != nil {
		return *override
	}
	return countries.VATRateFor(country)
}

func (a *Assembler) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

func (a *Assembler) dueInDays() int {
	if a.DueInDays > 0 {
		return a.DueInDays
	}
	return DefaultDueInDays
}

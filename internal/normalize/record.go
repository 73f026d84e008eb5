package normalize

import (
	"fmt"
	"strings"

	"github.com/dpeterek-muni/faktury-export/internal/fields"
	"github.com/dpeterek-muni/faktury-export/internal/types"
	"github.com/shopspring/decimal"
)

// Record builds a ledger record from a raw row. id is the ingestion sequence
// number. Notes lists the silent fallbacks that were applied; they are meant
// for debug logging only.
func Record(r *fields.Resolver, row fields.Row, id int) (rec *types.LedgerRecord, notes []string) {
	get := func(f fields.Field) any {
		v, _ := r.Lookup(row, f)
		return v
	}
	num := func(f fields.Field) decimal.Decimal {
		v, ok := r.Lookup(row, f)
		if !ok {
			return decimal.Zero
		}
		d, parsed := ParseNumber(v)
		if !parsed {
			notes = append(notes, fmt.Sprintf("%s: unparsable number %q, using 0", f, fmt.Sprint(v)))
		}
		return d
	}
	date := func(f fields.Field) *types.Date {
		v, ok := r.Lookup(row, f)
		if !ok {
			return nil
		}
		d := Date(v)
		if d == nil && !emptyTokens[strings.ToLower(Text(v))] {
			notes = append(notes, fmt.Sprintf("%s: unparsable date %q, leaving empty", f, fmt.Sprint(v)))
		}
		return d
	}

	rec = &types.LedgerRecord{
		ID:                 id,
		ExternalID:         Text(get(fields.ExternalID)),
		TaxID:              TaxID(get(fields.TaxID)),
		ClientName:         Text(get(fields.ClientName)),
		MunicipalityCode:   Text(get(fields.MunicipalityCode)),
		District:           Text(get(fields.District)),
		Region:             Text(get(fields.Region)),
		Country:            Country(get(fields.Country)),
		Population:         num(fields.Population).IntPart(),
		ClientType:         Text(get(fields.ClientType)),
		Consultant:         Text(get(fields.Consultant)),
		ActivityType:       Text(get(fields.ActivityType)),
		Service:            Text(get(fields.Service)),
		BillingInterval:    num(fields.BillingInterval),
		Commitment:         num(fields.Commitment),
		OrderAmount:        num(fields.OrderAmount),
		BillableAmount:     num(fields.BillableAmount),
		ActivationDate:     date(fields.ActivationDate),
		PeriodEndDate:      date(fields.PeriodEndDate),
		TerminationDate:    date(fields.TerminationDate),
		BillingMonth:       date(fields.BillingMonth),
		LicenceStartMonth:  Text(get(fields.LicenceStartMonth)),
		Invoiced:           Invoiced(get(fields.Invoiced)),
		VATLiable:          VATLiable(get(fields.VATLiable)),
		Note:               Text(get(fields.Note)),
		ContinuationResult: Text(get(fields.ContinuationResult)),
		AutoRenewal:        Yes(get(fields.AutoRenewal)),
	}

	if rec.BillableAmount.IsNegative() {
		notes = append(notes, fmt.Sprintf("%s: negative amount %s clamped to 0", fields.BillableAmount, rec.BillableAmount))
		rec.BillableAmount = decimal.Zero
	}
	return rec, notes
}

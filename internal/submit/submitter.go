// =============================================================================
// Faktury Export - Remote Submission
// =============================================================================
//
// This module creates draft invoices in Fakturoid, one group at a time.
//
// PER INVOICE:
//   1. Skip it (with an explicit error entry) when it has no IČO or its
//      country is not in the allowed list
//   2. Resolve the subject by IČO (once per IČO per run)
//   3. Build the submission payload and create the invoice
//
// FAILURE POLICY:
//   A failure on one invoice is recorded in its result entry and the run
//   moves on to the next. Nothing is retried. Every input invoice ends up in
//   exactly one result entry.
//
// =============================================================================

package submit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dpeterek-muni/faktury-export/internal/countries"
	"github.com/dpeterek-muni/faktury-export/internal/fakturoid"
	"github.com/dpeterek-muni/faktury-export/internal/render"
	"github.com/dpeterek-muni/faktury-export/internal/types"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ErrSkipped marks invoices that were not sent to the remote service.
var ErrSkipped = errors.New("skipped")

// DefaultCountries are the countries invoices may be created for.
var DefaultCountries = []string{"CZE", "SVK"}

// Remote is the part of the Fakturoid client the submitter uses.
type Remote interface {
	Account(ctx context.Context) (*fakturoid.Account, error)
	FindSubjectByRegistrationNo(ctx context.Context, taxID string) (*fakturoid.Subject, error)
	CreateInvoice(ctx context.Context, req fakturoid.InvoiceRequest) (*fakturoid.Invoice, error)
}

// =============================================================================
// RESULT STRUCTURES
// =============================================================================

// Result is the outcome for one invoice.
type Result struct {
	Success       bool            `json:"success"`
	GroupKey      string          `json:"groupKey"`
	TaxID         string          `json:"ico,omitempty"`
	ClientName    string          `json:"clientName"`
	SubjectID     int64           `json:"subjectId,omitempty"`
	InvoiceID     int64           `json:"invoiceId,omitempty"`
	InvoiceNumber string          `json:"invoiceNumber,omitempty"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Currency      string          `json:"currency,omitempty"`
	Skipped       bool            `json:"skipped,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// Report aggregates one submission run.
type Report struct {
	TotalInvoices int      `json:"totalInvoices"`
	SuccessCount  int      `json:"successCount"`
	ErrorCount    int      `json:"errorCount"`
	Results       []Result `json:"results"`

	// NeedsCredentials is set when any failure looked like rejected
	// credentials.
	NeedsCredentials bool `json:"needsCredentials,omitempty"`
}

// =============================================================================
// SUBMITTER
// =============================================================================

// Submitter runs submissions against one remote account.
type Submitter struct {
	remote   Remote
	renderer *render.Renderer
	allowed  []string
	log      zerolog.Logger
}

// New returns a Submitter. allowed lists the countries invoices may be
// created for; empty means DefaultCountries.
func New(remote Remote, renderer *render.Renderer, allowed []string, log zerolog.Logger) *Submitter {
	if len(allowed) == 0 {
		allowed = DefaultCountries
	}
	return &Submitter{
		remote:   remote,
		renderer: renderer,
		allowed:  lo.Uniq(lo.Map(allowed, func(c string, _ int) string { return countries.Canonical(c) })),
		log:      log,
	}
}

// Submit creates every eligible invoice, in order.
func (s *Submitter) Submit(ctx context.Context, invoices []*types.DraftInvoice) *Report {
	report := &Report{TotalInvoices: len(invoices), Results: make([]Result, 0, len(invoices))}
	subjects := newSubjectCache()

	for _, inv := range invoices {
		result, err := s.submitOne(ctx, subjects, inv)
		if fakturoid.IsAuthError(err) {
			report.NeedsCredentials = true
		}
		if result.Success {
			report.SuccessCount++
		} else {
			report.ErrorCount++
		}
		report.Results = append(report.Results, result)
	}

	s.log.Info().
		Int("total", report.TotalInvoices).
		Int("success", report.SuccessCount).
		Int("errors", report.ErrorCount).
		Msg("Submission finished")
	return report
}

func (s *Submitter) submitOne(ctx context.Context, subjects *subjectCache, inv *types.DraftInvoice) (Result, error) {
	if inv == nil {
		err := fmt.Errorf("%w: invoice is null", ErrSkipped)
		s.log.Warn().Err(err).Msg("Invoice not created")
		return Result{Skipped: true, Error: err.Error()}, err
	}

	result := Result{
		GroupKey:    inv.GroupKey,
		TaxID:       inv.TaxID,
		ClientName:  inv.ClientName,
		Currency:    inv.Currency,
		TotalAmount: inv.TotalWithVAT(),
	}
	fail := func(err error) (Result, error) {
		result.Error = err.Error()
		result.Skipped = errors.Is(err, ErrSkipped)
		s.log.Warn().Err(err).Str("group", inv.GroupKey).Str("ico", inv.TaxID).Msg("Invoice not created")
		return result, err
	}

	if err := s.eligible(inv); err != nil {
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	subjectID := inv.SubjectID
	if subjectID == 0 {
		subject, err := s.subject(ctx, subjects, inv.TaxID)
		if err != nil {
			return fail(err)
		}
		subjectID = subject.ID
	}
	result.SubjectID = subjectID

	created, err := s.remote.CreateInvoice(ctx, s.renderer.SubmissionPayload(inv, subjectID))
	if err != nil {
		return fail(fmt.Errorf("create invoice: %w", err))
	}

	result.Success = true
	result.InvoiceID = created.ID
	result.InvoiceNumber = created.Number
	if !created.Total.IsZero() {
		result.TotalAmount = created.Total
	}
	if created.Currency != "" {
		result.Currency = created.Currency
	}
	return result, nil
}

// eligible rejects invoices that must not be sent.
func (s *Submitter) eligible(inv *types.DraftInvoice) error {
	if inv.TaxID == "" {
		return fmt.Errorf("%w: no IČO, subject cannot be resolved", ErrSkipped)
	}
	if len(inv.Lines) == 0 {
		return fmt.Errorf("%w: invoice has no lines", ErrSkipped)
	}
	country := countries.Canonical(inv.Country)
	if country == "" {
		country = countries.HomeCountry
	}
	if !lo.Contains(s.allowed, country) {
		return fmt.Errorf("%w: country %q is not enabled for invoicing (%s)", ErrSkipped, inv.Country, strings.Join(s.allowed, ", "))
	}
	return nil
}

// subject resolves an IČO, consulting and filling the run's cache. Only
// definite answers are cached; transport failures are retried by the next
// group that needs the same IČO.
func (s *Submitter) subject(ctx context.Context, subjects *subjectCache, taxID string) (*fakturoid.Subject, error) {
	entry, ok := subjects.get(taxID)
	if !ok {
		entry.subject, entry.err = s.remote.FindSubjectByRegistrationNo(ctx, taxID)
		if entry.err == nil || errors.Is(entry.err, fakturoid.ErrSubjectNotFound) {
			subjects.put(taxID, entry)
		}
	}
	subject, err := entry.subject, entry.err
	switch {
	case errors.Is(err, fakturoid.ErrSubjectNotFound):
		return nil, fmt.Errorf("no Fakturoid subject with IČO %s: %w", taxID, fakturoid.ErrSubjectNotFound)
	case err != nil:
		return nil, fmt.Errorf("subject lookup: %w", err)
	}
	return subject, nil
}

// =============================================================================
// SUBJECT CACHE
// =============================================================================

// subjectCache remembers lookups for the duration of one run, so groups
// sharing an IČO cost one search.
type subjectCache struct {
	c *cache.Cache
}

type subjectEntry struct {
	subject *fakturoid.Subject
	err     error
}

func newSubjectCache() *subjectCache {
	return &subjectCache{c: cache.New(cache.NoExpiration, 0)}
}

func (sc *subjectCache) get(taxID string) (subjectEntry, bool) {
	v, ok := sc.c.Get(taxID)
	if !ok {
		return subjectEntry{}, false
	}
	return v.(subjectEntry), true
}

func (sc *subjectCache) put(taxID string, e subjectEntry) {
	sc.c.Set(taxID, e, cache.NoExpiration)
}

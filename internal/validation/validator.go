// =============================================================================
// Faktury Export - Batch Validation
// =============================================================================
//
// This module checks batches that arrive from outside the ingestion pipeline
// (API requests, edited drafts) before they are grouped, exported or sent.
//
// VALIDATION LEVELS:
//   1. Batch-level: an empty batch is rejected outright
//   2. Record-level: ids, amounts and tax identifiers of ledger records
//   3. Invoice-level: lines, prices, VAT rates and currency of draft invoices
//
// ERROR HANDLING:
//   - Problems are collected, not returned one at a time
//   - Each problem names the record or invoice, the field and the value
//   - Warnings never make a batch invalid
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/dpeterek-muni/faktury-export/internal/types"
	"github.com/shopspring/decimal"
)

// ErrEmptyBatch is returned for a batch with nothing in it.
var ErrEmptyBatch = errors.New("batch is empty")

var maxVATRate = decimal.NewFromInt(100)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// Severity separates fatal problems from advisory ones.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationError is a single problem found in a batch.
type ValidationError struct {
	Severity Severity `json:"severity"`

	// Field is the JSON name of the offending field.
	Field string `json:"field"`
	Value string `json:"value,omitempty"`

	// Rule is a short machine-readable name of the violated rule.
	Rule    string `json:"rule"`
	Message string `json:"message"`

	// RecordID is set for record problems.
	RecordID int `json:"recordId,omitempty"`

	// Group and Line are set for invoice problems. Line is 1-indexed; zero
	// means the problem concerns the whole invoice.
	Group string `json:"group,omitempty"`
	Line  int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var where string
	switch {
	case e.Group != "" && e.Line > 0:
		where = fmt.Sprintf("invoice %s, line %d", e.Group, e.Line)
	case e.Group != "":
		where = fmt.Sprintf("invoice %s", e.Group)
	default:
		where = fmt.Sprintf("record %d", e.RecordID)
	}
	msg := fmt.Sprintf("[%s] %s, field '%s': %s", strings.ToUpper(string(e.Severity)), where, e.Field, e.Message)
	if e.Value != "" {
		msg += fmt.Sprintf(" (value: '%s')", e.Value)
	}
	return msg
}

// BatchError carries every fatal problem of a batch.
type BatchError struct {
	Errors []*ValidationError
}

func (e *BatchError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d validation errors, first: %s", len(e.Errors), e.Errors[0].Error())
}

// Unwrap exposes the individual problems to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, ve := range e.Errors {
		out[i] = ve
	}
	return out
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// Result contains the problems found in one batch.
type Result struct {
	Errors       []*ValidationError `json:"errors"`
	ErrorCount   int                `json:"errorCount"`
	WarningCount int                `json:"warningCount"`
	Checked      int                `json:"checked"`
}

// IsValid is true when no fatal problem was found.
func (r *Result) IsValid() bool {
	return r.ErrorCount == 0
}

// Err returns a *BatchError of the fatal problems, or nil.
func (r *Result) Err() error {
	var fatal []*ValidationError
	for _, e := range r.Errors {
		if e.Severity == SeverityError {
			fatal = append(fatal, e)
		}
	}
	if len(fatal) == 0 {
		return nil
	}
	return &BatchError{Errors: fatal}
}

// Warnings returns the advisory problems.
func (r *Result) Warnings() []*ValidationError {
	var out []*ValidationError
	for _, e := range r.Errors {
		if e.Severity == SeverityWarning {
			out = append(out, e)
		}
	}
	return out
}

func (r *Result) add(e *ValidationError) {
	r.Errors = append(r.Errors, e)
	if e.Severity == SeverityError {
		r.ErrorCount++
	} else {
		r.WarningCount++
	}
}

// =============================================================================
// RECORD VALIDATION
// =============================================================================

// ValidateRecords checks ledger records supplied by a client. An empty batch
// returns ErrEmptyBatch and no result.
func ValidateRecords(records []*types.LedgerRecord) (*Result, error) {
	if len(records) == 0 {
		return nil, ErrEmptyBatch
	}

	result := &Result{Errors: []*ValidationError{}, Checked: len(records)}
	seen := make(map[int]bool, len(records))

	for i, rec := range records {
		if rec == nil {
			result.add(&ValidationError{
				Severity: SeverityError, Field: "record", Rule: "required",
				Message: fmt.Sprintf("entry %d is null", i+1),
			})
			continue
		}

		// ID
		switch {
		case rec.ID <= 0:
			result.add(&ValidationError{
				Severity: SeverityError, Field: "id", Value: fmt.Sprint(rec.ID), Rule: "positive",
				Message: "record id must be a positive integer", RecordID: rec.ID,
			})
		case seen[rec.ID]:
			result.add(&ValidationError{
				Severity: SeverityError, Field: "id", Value: fmt.Sprint(rec.ID), Rule: "unique",
				Message: "duplicate record id", RecordID: rec.ID,
			})
		}
		seen[rec.ID] = true

		// Amount
		if rec.BillableAmount.IsNegative() {
			result.add(&ValidationError{
				Severity: SeverityError, Field: "billableAmount", Value: rec.BillableAmount.String(),
				Rule: "non_negative", Message: "billable amount must not be negative", RecordID: rec.ID,
			})
		}

		// Tax id
		if rec.TaxID != "" && !digitsOnly(rec.TaxID) {
			result.add(&ValidationError{
				Severity: SeverityWarning, Field: "taxId", Value: rec.TaxID, Rule: "numeric",
				Message: "tax id contains non-digit characters", RecordID: rec.ID,
			})
		}
		if strings.TrimSpace(rec.ClientName) == "" {
			result.add(&ValidationError{
				Severity: SeverityWarning, Field: "clientName", Rule: "required",
				Message: "client name is empty", RecordID: rec.ID,
			})
		}
	}

	return result, nil
}

// =============================================================================
// DRAFT VALIDATION
// =============================================================================

// ValidateDrafts checks draft invoices before export or submission, using the
// effective (edited) line values. An empty batch returns ErrEmptyBatch.
func ValidateDrafts(drafts []*types.DraftInvoice) (*Result, error) {
	if len(drafts) == 0 {
		return nil, ErrEmptyBatch
	}

	result := &Result{Errors: []*ValidationError{}, Checked: len(drafts)}
	for _, inv := range drafts {
		validateDraft(result, inv)
	}
	return result, nil
}

func validateDraft(result *Result, inv *types.DraftInvoice) {
	if inv == nil {
		result.add(&ValidationError{Severity: SeverityError, Field: "invoice", Rule: "required", Message: "invoice is null"})
		return
	}

	if len(inv.Lines) == 0 {
		result.add(&ValidationError{
			Severity: SeverityError, Field: "lines", Rule: "required",
			Message: "invoice has no lines", Group: inv.GroupKey,
		})
	}
	if !isCurrencyCode(inv.Currency) {
		result.add(&ValidationError{
			Severity: SeverityError, Field: "currency", Value: inv.Currency, Rule: "iso4217",
			Message: "currency must be a three-letter code", Group: inv.GroupKey,
		})
	}
	if inv.DueInDays < 0 {
		result.add(&ValidationError{
			Severity: SeverityError, Field: "dueInDays", Value: fmt.Sprint(inv.DueInDays), Rule: "non_negative",
			Message: "due offset must not be negative", Group: inv.GroupKey,
		})
	}
	if strings.TrimSpace(inv.ClientName) == "" {
		result.add(&ValidationError{
			Severity: SeverityWarning, Field: "clientName", Rule: "required",
			Message: "client name is empty", Group: inv.GroupKey,
		})
	}

	for i, line := range inv.Lines {
		n := i + 1
		if strings.TrimSpace(line.EffectiveName()) == "" {
			result.add(&ValidationError{
				Severity: SeverityError, Field: "name", Rule: "required",
				Message: "line name is empty", Group: inv.GroupKey, Line: n,
			})
		}
		if price := line.EffectivePrice(); price.IsNegative() {
			result.add(&ValidationError{
				Severity: SeverityError, Field: "unitPrice", Value: price.String(), Rule: "non_negative",
				Message: "unit price must not be negative", Group: inv.GroupKey, Line: n,
			})
		}
		if rate := line.EffectiveVATRate(); rate.IsNegative() || rate.GreaterThan(maxVATRate) {
			result.add(&ValidationError{
				Severity: SeverityError, Field: "vatRate", Value: rate.String(), Rule: "range",
				Message: "VAT rate must be between 0 and 100", Group: inv.GroupKey, Line: n,
			})
		}
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if !unicode.IsUpper(r) || r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors formats validation errors for display or logging.
func FormatErrors(errs []*ValidationError) string {
	if len(errs) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "Validation completed with %d problem(s):\n\n", len(errs))
	for i, err := range errs {
		fmt.Fprintf(&builder, "%d. %s\n", i+1, err.Error())
	}
	return builder.String()
}

// WriteErrorLog writes validation errors to a log file, with a timestamped
// header.
func WriteErrorLog(errs []*ValidationError, filePath string, now time.Time) error {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Validation log %s\n\n", now.Format(time.RFC3339))
	builder.WriteString(FormatErrors(errs))

	if err := os.WriteFile(filePath, []byte(builder.String()), 0o644); err != nil {
		return fmt.Errorf("write validation log: %w", err)
	}
	return nil
}

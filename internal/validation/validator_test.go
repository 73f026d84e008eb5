package validation

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dpeterek-muni/faktury-export/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRecords(t *testing.T) {
	_, err := ValidateRecords(nil)
	require.ErrorIs(t, err, ErrEmptyBatch)

	records := []*types.LedgerRecord{
		{ID: 1, TaxID: "12345678", ClientName: "Obec A", BillableAmount: decimal.NewFromInt(100)},
		{ID: 1, TaxID: "1234/5678", ClientName: "Obec B"},
		{ID: 0, ClientName: ""},
		{ID: 4, ClientName: "Obec D", BillableAmount: decimal.NewFromInt(-1)},
	}
	result, err := ValidateRecords(records)
	require.NoError(t, err)

	assert.Equal(t, 4, result.Checked)
	assert.Equal(t, 3, result.ErrorCount)
	assert.Equal(t, 2, result.WarningCount)
	assert.False(t, result.IsValid())

	rules := lo.Map(result.Errors, func(e *ValidationError, _ int) string { return e.Field + ":" + e.Rule })
	assert.ElementsMatch(t, []string{
		"id:unique", "taxId:numeric", "id:positive", "clientName:required", "billableAmount:non_negative",
	}, rules)
}

func TestValidateDrafts(t *testing.T) {
	good := &types.DraftInvoice{
		GroupKey: "12345678", ClientName: "Obec", Currency: "CZK", DueInDays: 14,
		Lines: []types.DraftLine{{Name: "Licence", UnitPrice: decimal.NewFromInt(100), VATRate: decimal.NewFromInt(21)}},
	}

	tests := []struct {
		name   string
		mutate func(inv *types.DraftInvoice)
		field  string
		line   int
	}{
		{"no lines", func(inv *types.DraftInvoice) { inv.Lines = nil }, "lines", 0},
		{"lowercase currency", func(inv *types.DraftInvoice) { inv.Currency = "czk" }, "currency", 0},
		{"empty currency", func(inv *types.DraftInvoice) { inv.Currency = "" }, "currency", 0},
		{"negative due", func(inv *types.DraftInvoice) { inv.DueInDays = -1 }, "dueInDays", 0},
		{"negative edited price", func(inv *types.DraftInvoice) {
			inv.Lines[0].PriceOverride = lo.ToPtr(decimal.NewFromInt(-5))
		}, "unitPrice", 1},
		{"VAT above 100", func(inv *types.DraftInvoice) {
			inv.Lines[0].VATRateOverride = lo.ToPtr(decimal.NewFromInt(121))
		}, "vatRate", 1},
		{"blank edited name", func(inv *types.DraftInvoice) {
			inv.Lines[0].NameOverride = lo.ToPtr("  ")
		}, "name", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := *good
			inv.Lines = append([]types.DraftLine(nil), good.Lines...)
			tt.mutate(&inv)

			result, err := ValidateDrafts([]*types.DraftInvoice{&inv})
			require.NoError(t, err)
			require.Equal(t, 1, result.ErrorCount, FormatErrors(result.Errors))
			assert.Equal(t, tt.field, result.Errors[0].Field)
			assert.Equal(t, tt.line, result.Errors[0].Line)

			var batch *BatchError
			require.ErrorAs(t, result.Err(), &batch)
			var ve *ValidationError
			assert.True(t, errors.As(result.Err(), &ve))
			assert.Equal(t, "12345678", ve.Group)
		})
	}

	result, err := ValidateDrafts([]*types.DraftInvoice{good})
	require.NoError(t, err)
	assert.True(t, result.IsValid())
	assert.NoError(t, result.Err())

	_, err = ValidateDrafts(nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestFormatErrors(t *testing.T) {
	assert.Equal(t, "No validation errors.", FormatErrors(nil))

	errs := []*ValidationError{
		{Severity: SeverityError, Field: "vatRate", Value: "121", Message: "VAT rate must be between 0 and 100", Group: "1", Line: 2},
		{Severity: SeverityWarning, Field: "clientName", Message: "client name is empty", RecordID: 7},
	}
	out := FormatErrors(errs)
	assert.Contains(t, out, "2 problem(s)")
	assert.Contains(t, out, "1. [ERROR] invoice 1, line 2, field 'vatRate': VAT rate must be between 0 and 100 (value: '121')")
	assert.Contains(t, out, "2. [WARNING] record 7, field 'clientName': client name is empty\n")

	path := filepath.Join(t.TempDir(), "validation.log")
	require.NoError(t, WriteErrorLog(errs, path, time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Validation log 2024-03-10T08:00:00Z")
}

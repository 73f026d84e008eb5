package billing

import (
	"testing"

	"github.com/dpeterek-muni/faktury-export/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(amount int64, state types.InvoicedState) *types.LedgerRecord {
	return &types.LedgerRecord{BillableAmount: decimal.NewFromInt(amount), Invoiced: state}
}

func TestCanInvoice(t *testing.T) {
	tests := []struct {
		name    string
		rec     *types.LedgerRecord
		lenient bool
		strict  bool
	}{
		{"positive not invoiced", record(100, types.InvoicedNo), true, true},
		{"zero amount", record(0, types.InvoicedNo), false, false},
		{"already invoiced", record(100, types.InvoicedYes), false, false},
		{"partially invoiced", record(100, types.InvoicedPartial), true, false},
		{"nil record", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.lenient, Classifier{Policy: Lenient}.CanInvoice(tt.rec))
			assert.Equal(t, tt.strict, Classifier{Policy: Strict}.CanInvoice(tt.rec))
		})
	}
}

func TestMark(t *testing.T) {
	records := []*types.LedgerRecord{
		record(100, types.InvoicedNo),
		record(100, types.InvoicedYes),
		record(50, types.InvoicedPartial),
	}
	assert.Equal(t, 2, Classifier{}.Mark(records))
	assert.True(t, records[0].Billable)
	assert.False(t, records[1].Billable)
	assert.True(t, records[2].Billable)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("STRICT")
	require.NoError(t, err)
	assert.Equal(t, Strict, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, Lenient, p)

	_, err = ParsePolicy("maybe")
	assert.Error(t, err)
}

package assembler

import (
	"testing"
	"time"

	"github.com/dpeterek-muni/faktury-export/internal/config"
	"github.com/dpeterek-muni/faktury-export/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 10, 15, 4, 5, 0, time.UTC)

func newAssembler() *Assembler {
	return &Assembler{Now: func() time.Time { return fixedNow }}
}

func datePtr(y int, m time.Month, d int) *types.Date {
	return lo.ToPtr(types.NewDate(y, m, d))
}

func group(country string, vatLiable bool, prices ...int64) *types.InvoiceGroup {
	g := &types.InvoiceGroup{Key: "12345678", TaxID: "12345678", HasTaxID: true, ClientName: "Obec", Country: country, VATLiable: vatLiable}
	for i, p := range prices {
		g.Records = append(g.Records, &types.LedgerRecord{
			ID:             i + 1,
			TaxID:          "12345678",
			Country:        country,
			BillableAmount: decimal.NewFromInt(p),
			VATLiable:      vatLiable,
		})
	}
	return g
}

func TestAssembleCzechDefaults(t *testing.T) {
	inv, err := newAssembler().Assemble(group("CZE", true, 1000, 500), Options{})
	require.NoError(t, err)

	require.Len(t, inv.Lines, 2)
	for _, l := range inv.Lines {
		assert.True(t, l.VATRate.Equal(decimal.NewFromInt(21)))
		assert.Equal(t, 1, l.Quantity)
		assert.Equal(t, "ks", l.Unit)
		assert.Equal(t, "Licence", l.Name)
	}
	assert.Equal(t, "CZK", inv.Currency)
	assert.Equal(t, "cz", inv.Language)
	assert.True(t, inv.TotalWithoutVAT().Equal(decimal.NewFromInt(1500)))
	assert.True(t, inv.TotalVAT().Equal(decimal.NewFromInt(315)))
	assert.True(t, inv.TotalWithVAT().Equal(decimal.NewFromInt(1815)))

	assert.Equal(t, "2024-03-10", inv.IssuedOn.String())
	assert.Equal(t, "2024-03-10", inv.TaxableFulfillmentDue.String(), "no activation date falls back to issue date")
	assert.Equal(t, 14, inv.DueInDays)
	assert.Equal(t, "2024-03-24", inv.DueOn().String())
}

func TestAssembleSlovakAndOverrides(t *testing.T) {
	tests := []struct {
		name     string
		group    *types.InvoiceGroup
		opts     Options
		currency string
		vat      int64
		due      int
	}{
		{"slovak defaults", group("SVK", true, 100), Options{}, "EUR", 23, 14},
		{"alpha-2 code", group("SK", true, 100), Options{}, "EUR", 23, 14},
		{"unknown country", group("XYZ", true, 100), Options{}, "CZK", 21, 14},
		{"not VAT-liable", group("CZE", false, 100), Options{VATRate: lo.ToPtr(decimal.NewFromInt(10))}, "CZK", 0, 14},
		{"overrides", group("CZE", true, 100), Options{
			VATRate:   lo.ToPtr(decimal.NewFromInt(12)),
			DueInDays: lo.ToPtr(30),
			Currency:  lo.ToPtr("EUR"),
		}, "EUR", 12, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := newAssembler().Assemble(tt.group, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.currency, inv.Currency)
			assert.True(t, inv.Lines[0].VATRate.Equal(decimal.NewFromInt(tt.vat)), "got %s", inv.Lines[0].VATRate)
			assert.Equal(t, tt.due, inv.DueInDays)
		})
	}
}

func TestAssembleLineNamesAndDUZP(t *testing.T) {
	g := group("CZE", true, 100, 200, 300)
	g.Records[0].Service = "Mobilní rozhlas"
	g.Records[0].ActivationDate = datePtr(2024, 1, 15)
	g.Records[0].PeriodEndDate = datePtr(2024, 12, 31)
	g.Records[1].ActivationDate = datePtr(2024, 2, 1)

	inv, err := newAssembler().Assemble(g, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Mobilní rozhlas (15/01/2024 - 31/12/2024)", inv.Lines[0].Name)
	assert.Equal(t, "Licence", inv.Lines[1].Name, "period needs both dates")
	assert.Equal(t, "2024-01-15", inv.TaxableFulfillmentDue.String())
	assert.Equal(t, []int{1, 2, 3}, lo.Map(inv.Lines, func(l types.DraftLine, _ int) int { return l.RecordID }))

	inv, err = newAssembler().Assemble(g, Options{IncludePeriodInName: lo.ToPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, "Mobilní rozhlas", inv.Lines[0].Name)
}

func TestAssemblerConfiguredDefaults(t *testing.T) {
	a := newAssembler()
	a.LineName = "Služba"
	a.Unit = "rok"
	a.DueInDays = 21

	inv, err := a.Assemble(group("CZE", true, 100), Options{})
	require.NoError(t, err)
	assert.Equal(t, "Služba", inv.Lines[0].Name)
	assert.Equal(t, "rok", inv.Lines[0].Unit)
	assert.Equal(t, 21, inv.DueInDays)
}

func TestFromConfig(t *testing.T) {
	billing := config.Default().Billing
	billing.IncludePeriodInName = lo.ToPtr(false)
	billing.DueInDays = 30
	a := FromConfig(billing)
	a.Now = func() time.Time { return fixedNow }

	g := group("CZE", true, 100)
	g.Records[0].ActivationDate = datePtr(2024, 1, 1)
	g.Records[0].PeriodEndDate = datePtr(2024, 12, 31)

	inv, err := a.Assemble(g, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Licence", inv.Lines[0].Name)
	assert.Equal(t, "ks", inv.Lines[0].Unit)
	assert.Equal(t, 30, inv.DueInDays)

	inv, err = a.Assemble(g, Options{IncludePeriodInName: lo.ToPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, "Licence (01/01/2024 - 31/12/2024)", inv.Lines[0].Name)
}

func TestAssembleEmptyGroup(t *testing.T) {
	_, err := newAssembler().Assemble(&types.InvoiceGroup{Key: "x"}, Options{})
	assert.ErrorIs(t, err, ErrEmptyGroup)

	_, err = newAssembler().AssembleAll([]*types.InvoiceGroup{group("CZE", true, 1), {Key: "y"}}, Options{})
	assert.ErrorIs(t, err, ErrEmptyGroup)
}

func TestTotalsFollowEdits(t *testing.T) {
	inv, err := newAssembler().Assemble(group("CZE", true, 1000, 500), Options{})
	require.NoError(t, err)

	edits := []types.LineEdit{
		{Price: lo.ToPtr(decimal.NewFromInt(700))},
		{VATRate: lo.ToPtr(decimal.Zero)},
		{Price: lo.ToPtr(decimal.RequireFromString("0.5"))},
	}
	for i, e := range edits {
		require.NoError(t, inv.EditLine(i%2, e))
		sum := decimal.Zero
		for _, l := range inv.Lines {
			sum = sum.Add(l.EffectivePrice())
		}
		assert.True(t, inv.TotalWithoutVAT().Equal(sum))
	}
	assert.True(t, inv.TotalWithoutVAT().Equal(decimal.RequireFromString("500.5")))
	assert.True(t, inv.Lines[0].UnitPrice.Equal(decimal.NewFromInt(1000)), "computed default is untouched")
}

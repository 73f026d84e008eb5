package converter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dpeterek-muni/faktury-export/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draft(key string, prices ...int64) *types.DraftInvoice {
	d := &types.DraftInvoice{GroupKey: key, Currency: "CZK"}
	for _, p := range prices {
		d.Lines = append(d.Lines, types.DraftLine{
			Name:      "Licence",
			Quantity:  1,
			Unit:      "ks",
			UnitPrice: decimal.NewFromInt(p),
			VATRate:   decimal.NewFromInt(21),
		})
	}
	return d
}

func TestLoadAndApplyEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edits.yaml")
	content := `edits:
  - group: "12345678"
    line: 1
    price: "1 200,50"
  - group: "12345678"
    line: 0
    name: "Licence 2024"
    vatRate: "0"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	edits, err := LoadEdits(path)
	require.NoError(t, err)
	require.Len(t, edits, 2)

	d := draft("12345678", 1000, 500)
	require.NoError(t, ApplyEdits([]*types.DraftInvoice{d}, edits))

	assert.Equal(t, "Licence 2024", d.Lines[0].EffectiveName())
	assert.Equal(t, "Licence", d.Lines[0].Name, "generated name is kept")
	assert.True(t, d.Lines[0].EffectiveVATRate().IsZero())
	assert.True(t, d.Lines[1].EffectivePrice().Equal(decimal.RequireFromString("1200.50")))
	assert.True(t, d.TotalWithoutVAT().Equal(decimal.RequireFromString("2200.50")))
}

func TestApplyEditsCollectsErrors(t *testing.T) {
	bad := "abc"
	high := "150"
	price := "10"
	edits := []Edit{
		{Group: "missing", Price: &price},
		{Group: "A", Line: 5, Price: &price},
		{Group: "A", Price: &bad},
		{Group: "A", VATRate: &high},
		{Group: "A", Line: 1, Price: &price},
	}
	d := draft("A", 100, 200)

	err := ApplyEdits([]*types.DraftInvoice{d}, edits)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownGroup)
	assert.Contains(t, err.Error(), "out of range")
	assert.Contains(t, err.Error(), `invalid price "abc"`)
	assert.Contains(t, err.Error(), "VAT rate 150 out of range")

	assert.True(t, d.Lines[1].EffectivePrice().Equal(decimal.NewFromInt(10)), "valid edits still apply")
	assert.Nil(t, d.Lines[0].PriceOverride)
}

func TestLoadEditsErrors(t *testing.T) {
	_, err := LoadEdits(filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("edits: [oops"), 0o644))
	_, err = LoadEdits(path)
	assert.Error(t, err)
}

package converter

import (
	"testing"

	"github.com/dpeterek-muni/faktury-export/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id int, taxID, name string) *types.LedgerRecord {
	return &types.LedgerRecord{
		ID:             id,
		TaxID:          taxID,
		ClientName:     name,
		Country:        "CZE",
		BillableAmount: decimal.NewFromInt(int64(id * 100)),
	}
}

func sampleRecords() []*types.LedgerRecord {
	return []*types.LedgerRecord{
		rec(1, "22222222", "Obec B"),
		rec(2, "11111111", "Obec A"),
		rec(3, "", "Spolek Č"),
		rec(4, "22222222", "Obec B"),
		rec(5, "", ""),
	}
}

func members(groups []*types.InvoiceGroup) []int {
	var ids []int
	for _, g := range groups {
		for _, r := range g.Records {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

func TestGroupInclusive(t *testing.T) {
	result := Group(sampleRecords(), Inclusive)
	require.Len(t, result.Groups, 4)
	assert.Empty(t, result.Dropped)

	keys := make([]string, len(result.Groups))
	for i, g := range result.Groups {
		keys[i] = g.Key
	}
	assert.Equal(t, []string{"22222222", "11111111", "no-ico-spolek-c", "no-ico-5"}, keys, "first-seen order")

	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, members(result.Groups))
	assert.Len(t, result.Groups[0].Records, 2)

	noID := result.Groups[2]
	assert.False(t, noID.HasTaxID)
	assert.True(t, IsSyntheticKey(noID.Key))
	assert.Equal(t, "Spolek Č", noID.ClientName)
}

func TestGroupStrict(t *testing.T) {
	result := Group(sampleRecords(), Strict)
	require.Len(t, result.Groups, 2)
	assert.ElementsMatch(t, []int{1, 2, 4}, members(result.Groups))

	dropped := make([]int, len(result.Dropped))
	for i, r := range result.Dropped {
		dropped[i] = r.ID
	}
	assert.Equal(t, []int{3, 5}, dropped)
	for _, g := range result.Groups {
		assert.True(t, g.HasTaxID)
		assert.False(t, IsSyntheticKey(g.Key))
	}
}

func TestGroupNormalizesTaxIDs(t *testing.T) {
	records := []*types.LedgerRecord{
		rec(1, "no-ico-x", "Obec X"),
		rec(2, "", "x"),
		rec(3, "123-456 78", "Obec Lhota"),
		rec(4, "12345678", "Obec Lhota"),
	}

	result := Group(records, Inclusive)
	require.Len(t, result.Groups, 3)

	assert.Equal(t, "noicox", result.Groups[0].Key)
	assert.True(t, result.Groups[0].HasTaxID)
	assert.Equal(t, "no-ico-x", result.Groups[1].Key)
	assert.Equal(t, []int{2}, members(result.Groups[1:2]), "a tax id never joins a synthetic group")

	assert.Equal(t, "12345678", result.Groups[2].Key)
	assert.Equal(t, "12345678", result.Groups[2].TaxID)
	assert.Equal(t, []int{3, 4}, members(result.Groups[2:]))
}

func TestGroupEmpty(t *testing.T) {
	result := Group(nil, Inclusive)
	assert.Empty(t, result.Groups)
}

func TestParseGroupPolicy(t *testing.T) {
	p, err := ParseGroupPolicy("")
	require.NoError(t, err)
	assert.Equal(t, Inclusive, p)

	p, err = ParseGroupPolicy(" Strict ")
	require.NoError(t, err)
	assert.Equal(t, Strict, p)
	assert.Equal(t, "strict", p.String())

	_, err = ParseGroupPolicy("all")
	assert.Error(t, err)
}

func TestSelection(t *testing.T) {
	records := sampleRecords()
	records[0].Billable = true
	records[3].Billable = true

	missing := SelectIDs(records, []int{2, 4, 9})
	assert.Equal(t, []int{9}, missing)

	selected := Selected(records)
	require.Len(t, selected, 2)
	assert.Equal(t, 2, selected[0].ID)
	assert.Equal(t, 4, selected[1].ID)

	assert.Len(t, Billable(records), 2)
}

package converter

import (
	"fmt"
	"strings"

	"github.com/dpeterek-muni/faktury-export/internal/fields"
	"github.com/dpeterek-muni/faktury-export/internal/normalize"
	"github.com/dpeterek-muni/faktury-export/internal/types"
)

// GroupPolicy decides what happens to records without an IČO.
type GroupPolicy int

const (
	// Inclusive gives each record without an IČO its own synthetic group.
	Inclusive GroupPolicy = iota
	// Strict drops records without an IČO.
	Strict
)

// ParseGroupPolicy maps "inclusive" or "strict" to a GroupPolicy. Empty
// means Inclusive.
func ParseGroupPolicy(s string) (GroupPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "inclusive":
		return Inclusive, nil
	case "strict":
		return Strict, nil
	default:
		return Inclusive, fmt.Errorf("unknown grouping policy %q", s)
	}
}

func (p GroupPolicy) String() string {
	if p == Strict {
		return "strict"
	}
	return "inclusive"
}

// syntheticPrefix marks group keys that are not a tax identifier.
const syntheticPrefix = "no-ico-"

// GroupResult is the output of Group.
type GroupResult struct {
	Groups []*types.InvoiceGroup

	// Dropped lists the records left out under the strict policy.
	Dropped []*types.LedgerRecord
}

// Group aggregates records into invoice groups. Groups are returned in the
// order their key is first seen, which later drives invoice numbering.
func Group(records []*types.LedgerRecord, policy GroupPolicy) GroupResult {
	var result GroupResult
	byKey := make(map[string]*types.InvoiceGroup)

	for _, rec := range records {
		// records from API clients may carry unnormalized ids
		taxID := normalize.TaxID(rec.TaxID)
		key := taxID
		if key == "" {
			if policy == Strict {
				result.Dropped = append(result.Dropped, rec)
				continue
			}
			key = SyntheticKey(rec)
		}

		g, ok := byKey[key]
		if !ok {
			g = &types.InvoiceGroup{
				Key:        key,
				TaxID:      taxID,
				HasTaxID:   taxID != "",
				ClientName: rec.ClientName,
				Country:    rec.Country,
				VATLiable:  rec.VATLiable,
			}
			byKey[key] = g
			result.Groups = append(result.Groups, g)
		}
		g.Records = append(g.Records, rec)
	}
	return result
}

// SyntheticKey derives the group key of a record without an IČO from its
// client name, or its row id when the name is empty. Group normalizes tax
// ids first, which strips hyphens, so a tax id can never equal a synthetic
// key.
func SyntheticKey(rec *types.LedgerRecord) string {
	if name := strings.ReplaceAll(fields.Fold(rec.ClientName), " ", "-"); name != "" {
		return syntheticPrefix + name
	}
	return fmt.Sprintf("%s%d", syntheticPrefix, rec.ID)
}

// IsSyntheticKey reports whether key was made by SyntheticKey.
func IsSyntheticKey(key string) bool {
	return strings.HasPrefix(key, syntheticPrefix)
}

// Selected returns the records whose Selected flag is set.
func Selected(records []*types.LedgerRecord) []*types.LedgerRecord {
	var out []*types.LedgerRecord
	for _, rec := range records {
		if rec.Selected {
			out = append(out, rec)
		}
	}
	return out
}

// Billable returns the records the classifier marked billable.
func Billable(records []*types.LedgerRecord) []*types.LedgerRecord {
	var out []*types.LedgerRecord
	for _, rec := range records {
		if rec.Billable {
			out = append(out, rec)
		}
	}
	return out
}

// SelectIDs sets Selected on the records whose ID is in ids and clears it on
// the rest. It returns the ids that matched no record.
func SelectIDs(records []*types.LedgerRecord, ids []int) []int {
	want := make(map[int]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for _, rec := range records {
		rec.Selected = want[rec.ID]
		delete(want, rec.ID)
	}
	var missing []int
	for _, id := range ids {
		if want[id] {
			missing = append(missing, id)
			delete(want, id)
		}
	}
	return missing
}

package deduplication

import (
	"cmp"
	"slices"
	"time"

	"github.com/notecurator/curate/internal/types"
)

// compareEntries orders two entries by canonical preference.
// It returns a negative value when a should be preferred over b.
//
// Preference, each descending: quality score, secondary score, modification
// time (unset is oldest), normalized text length. Ties fall back to the
// caller's input order, so the order is total and deterministic.
func compareEntries(a, b *entry) int {
	if c := cmp.Compare(b.item.QualityScore, a.item.QualityScore); c != 0 {
		return c
	}
	if c := cmp.Compare(b.item.SecondaryScore, a.item.SecondaryScore); c != 0 {
		return c
	}
	if c := compareModified(b.item.ModifiedAt, a.item.ModifiedAt); c != 0 {
		return c
	}
	if c := cmp.Compare(b.length, a.length); c != 0 {
		return c
	}
	return cmp.Compare(a.index, b.index)
}

func compareModified(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

// betterThan reports whether a strictly outranks b
func betterThan(a, b *entry) bool {
	return compareEntries(a, b) < 0
}

// sortCanonicalFirst orders entries in place, canonical first
func sortCanonicalFirst(entries []*entry) {
	slices.SortFunc(entries, compareEntries)
}

// ChooseCanonical returns a copy of group ordered by canonical preference.
// The first element is the canonical; positions in group break final ties.
func ChooseCanonical(group []*types.CurationItem) []*types.CurationItem {
	entries := make([]*entry, len(group))
	for i, item := range group {
		entries[i] = newEntry(i, item)
	}
	sortCanonicalFirst(entries)

	ordered := make([]*types.CurationItem, len(entries))
	for i, e := range entries {
		ordered[i] = e.item
	}
	return ordered
}

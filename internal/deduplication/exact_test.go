package deduplication

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintOf(t *testing.T) {
	a := FingerprintOf(Normalize("# Hello   World"))
	b := FingerprintOf(Normalize("hello world"))
	c := FingerprintOf(Normalize("hello worlds"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, string(a), 64)
}

func TestExactIndexRecordOrFind(t *testing.T) {
	low := newEntry(0, newItem("low", "Same text", 0.4))
	high := newEntry(1, newItem("high", "same   TEXT", 0.9))
	mid := newEntry(2, newItem("mid", "*same* text", 0.6))
	other := newEntry(3, newItem("other", "different text", 0.1))

	index := NewExactIndex()

	out := index.RecordOrFind(low)
	assert.False(t, out.Duplicate)
	assert.Same(t, low, out.Canonical)

	out = index.RecordOrFind(high)
	assert.True(t, out.Duplicate)
	assert.Same(t, high, out.Canonical)
	assert.Same(t, low, out.Displaced)

	out = index.RecordOrFind(mid)
	assert.True(t, out.Duplicate)
	assert.Same(t, high, out.Canonical)
	assert.Nil(t, out.Displaced)

	out = index.RecordOrFind(other)
	assert.False(t, out.Duplicate)

	assert.Equal(t, 2, index.Len())
	assert.Equal(t, []*entry{high, other}, index.canonicals())

	groups := index.duplicateGroups()
	require.Len(t, groups, 1)
	assert.Equal(t, []*entry{high, mid, low}, groups[0])
}

func TestExactIndexIsOrderIndependent(t *testing.T) {
	orders := [][]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}
	for _, order := range orders {
		entries := []*entry{
			newEntry(0, newItem("a", "Shared body", 0.5)),
			newEntry(1, newItem("b", "shared body", 0.8)),
			newEntry(2, newItem("c", "SHARED body", 0.7)),
		}
		index := NewExactIndex()
		for _, i := range order {
			index.RecordOrFind(entries[i])
		}
		canonicals := index.canonicals()
		require.Len(t, canonicals, 1)
		assert.Equal(t, "b", canonicals[0].item.Path, "order %v", order)
	}
}

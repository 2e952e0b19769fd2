package deduplication

import (
	"context"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// sequenceBackend compares every pair of entries with a character-level
// sequence-matching ratio (2*matches / total length). It needs nothing beyond
// the normalized text, which makes it the end of the degradation chain.
type sequenceBackend struct {
	threshold float64
	minLength int
	workers   int
}

func newSequenceBackend(cfg Config) *sequenceBackend {
	return &sequenceBackend{
		threshold: cfg.Threshold,
		minLength: max(cfg.MinTextLength, 1),
		workers:   cfg.Workers,
	}
}

func (b *sequenceBackend) Method() Method { return MethodSequence }

func (b *sequenceBackend) Available() error { return nil }

func (b *sequenceBackend) FindClusters(ctx context.Context, entries []*entry) (*clustering, error) {
	result := &clustering{similarity: b.similarity}

	var eligible []*entry
	for _, e := range entries {
		if e.length < b.minLength {
			result.skipped = append(result.skipped, e)
			continue
		}
		eligible = append(eligible, e)
	}

	chars := make([][]string, len(eligible))
	for i, e := range eligible {
		chars[i] = strings.Split(e.normalized, "")
	}

	groups, comparisons, err := pairwiseGroups(ctx, len(eligible), b.workers, b.threshold, func(i, j int) (float64, bool) {
		a, c := orderPair(eligible[i].normalized, chars[i], eligible[j].normalized, chars[j])
		m := difflib.NewMatcherWithJunk(a, c, false, nil)
		// Both quick ratios are upper bounds of Ratio, so skipping on them
		// never drops a pair at or above the threshold.
		if m.RealQuickRatio() < b.threshold || m.QuickRatio() < b.threshold {
			return 0, false
		}
		return m.Ratio(), true
	})
	if err != nil {
		return nil, err
	}

	result.comparisons = comparisons
	result.groups = indexGroups(eligible, groups)
	return result, nil
}

func (b *sequenceBackend) similarity(x, y *entry) float64 {
	return SequenceRatio(x.normalized, y.normalized)
}

// SequenceRatio returns the character sequence-matching ratio of two strings
// in [0,1]. The pair is put in a fixed order first so the ratio is symmetric.
func SequenceRatio(a, b string) float64 {
	x, y := orderPair(a, strings.Split(a, ""), b, strings.Split(b, ""))
	return difflib.NewMatcherWithJunk(x, y, false, nil).Ratio()
}

func orderPair(a string, aChars []string, b string, bChars []string) ([]string, []string) {
	if b < a {
		return bChars, aChars
	}
	return aChars, bChars
}

func indexGroups(entries []*entry, groups [][]int) [][]*entry {
	out := make([][]*entry, 0, len(groups))
	for _, g := range groups {
		members := make([]*entry, len(g))
		for i, idx := range g {
			members[i] = entries[idx]
		}
		out = append(out, members)
	}
	return out
}

package deduplication

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/cespare/xxhash/v2"
)

const simHashBits = 64

// simHashBackend fingerprints each entry's word multiset into 64 bits and
// clusters by Hamming distance, scored as 1 - distance/64.
type simHashBackend struct {
	threshold float64
	minWords  int
	workers   int
	sign      func(*entry) (uint64, error)
}

func newSimHashBackend(cfg Config) *simHashBackend {
	return &simHashBackend{
		threshold: cfg.Threshold,
		minWords:  cfg.SimHashMinWords,
		workers:   cfg.Workers,
		sign:      simHashEntry,
	}
}

func (b *simHashBackend) Method() Method { return MethodSimHash }

func (b *simHashBackend) Available() error { return nil }

func (b *simHashBackend) FindClusters(ctx context.Context, entries []*entry) (*clustering, error) {
	result := &clustering{}

	var eligible []*entry
	var prints []uint64
	byEntry := make(map[*entry]uint64)
	for _, e := range entries {
		if len(e.words) < b.minWords {
			result.skipped = append(result.skipped, e)
			continue
		}
		fp, err := signSafely(e, b.sign)
		if err != nil {
			result.failed = append(result.failed, itemFailure{entry: e, err: err})
			continue
		}
		eligible = append(eligible, e)
		prints = append(prints, fp)
		byEntry[e] = fp
	}

	groups, comparisons, err := pairwiseGroups(ctx, len(eligible), b.workers, b.threshold, func(i, j int) (float64, bool) {
		return SimHashSimilarity(prints[i], prints[j]), true
	})
	if err != nil {
		return nil, err
	}

	result.comparisons = comparisons
	result.groups = indexGroups(eligible, groups)
	result.similarity = func(x, y *entry) float64 {
		return SimHashSimilarity(byEntry[x], byEntry[y])
	}
	return result, nil
}

func simHashEntry(e *entry) (uint64, error) {
	if len(e.words) == 0 {
		return 0, fmt.Errorf("no words to fingerprint in %s", e.item.Path)
	}
	return SimHash(e.words), nil
}

// SimHash computes a 64-bit SimHash over a word multiset: every occurrence
// votes +1 or -1 on each bit of the word's hash, and positive totals set the bit.
func SimHash(words []string) uint64 {
	var v [simHashBits]int
	for _, w := range words {
		h := xxhash.Sum64String(w)
		for i := 0; i < simHashBits; i++ {
			if h>>uint(i)&1 == 1 {
				v[i]++
			} else {
				v[i]--
			}
		}
	}

	var fp uint64
	for i := 0; i < simHashBits; i++ {
		if v[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// SimHashSimilarity converts the Hamming distance of two fingerprints to [0,1]
func SimHashSimilarity(a, b uint64) float64 {
	return 1 - float64(bits.OnesCount64(a^b))/simHashBits
}

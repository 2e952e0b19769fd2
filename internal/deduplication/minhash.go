package deduplication

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// minHashBackend estimates Jaccard similarity between word-shingle sets with
// MinHash signatures and finds candidates through a banded LSH index, so the
// candidate search stays sub-quadratic.
type minHashBackend struct {
	threshold   float64
	numPerm     int
	shingleSize int
	minWords    int
	sign        func(*entry) ([]uint64, error)
}

func newMinHashBackend(cfg Config) *minHashBackend {
	b := &minHashBackend{
		threshold:   cfg.Threshold,
		numPerm:     cfg.NumPermutations,
		shingleSize: cfg.ShingleSize,
		minWords:    cfg.MinHashMinWords,
	}
	b.sign = b.signature
	return b
}

func (b *minHashBackend) Method() Method { return MethodMinHash }

func (b *minHashBackend) Available() error { return nil }

func (b *minHashBackend) FindClusters(ctx context.Context, entries []*entry) (*clustering, error) {
	result := &clustering{}

	var eligible []*entry
	var sigs [][]uint64
	byEntry := make(map[*entry][]uint64)
	for _, e := range entries {
		if len(e.words) < b.minWords {
			result.skipped = append(result.skipped, e)
			continue
		}
		sig, err := signSafely(e, b.sign)
		if err != nil {
			result.failed = append(result.failed, itemFailure{entry: e, err: err})
			continue
		}
		eligible = append(eligible, e)
		sigs = append(sigs, sig)
		byEntry[e] = sig
	}

	bands, rows := lshParams(b.threshold, b.numPerm)
	index := newLSHIndex(bands, rows)
	for i, sig := range sigs {
		index.insert(i, sig)
	}

	processed := make([]bool, len(eligible))
	for i := range eligible {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if processed[i] {
			continue
		}
		members := []int{i}
		for _, j := range index.query(sigs[i]) {
			if j == i || processed[j] {
				continue
			}
			result.comparisons++
			if EstimateJaccard(sigs[i], sigs[j]) >= b.threshold {
				members = append(members, j)
			}
		}
		if len(members) < 2 {
			continue
		}
		for _, m := range members {
			processed[m] = true
		}
		group := make([]*entry, len(members))
		for k, m := range members {
			group[k] = eligible[m]
		}
		result.groups = append(result.groups, group)
	}

	result.similarity = func(x, y *entry) float64 {
		return EstimateJaccard(byEntry[x], byEntry[y])
	}
	return result, nil
}

func (b *minHashBackend) signature(e *entry) ([]uint64, error) {
	shingles := Shingles(e.words, b.shingleSize)
	if len(shingles) == 0 {
		return nil, fmt.Errorf("no %d-word shingles in %s", b.shingleSize, e.item.Path)
	}
	return MinHashSignature(shingles, b.numPerm), nil
}

// Shingles returns the distinct contiguous size-word sequences of words
func Shingles(words []string, size int) []string {
	if size < 1 || len(words) < size {
		return nil
	}
	seen := make(map[string]struct{}, len(words)-size+1)
	shingles := make([]string, 0, len(words)-size+1)
	for i := 0; i+size <= len(words); i++ {
		s := strings.Join(words[i:i+size], " ")
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		shingles = append(shingles, s)
	}
	return shingles
}

// MinHashSignature builds a numPerm-wide MinHash signature. Permutation i of a
// shingle hash h is mix(h + i*h2) where h2 is a second, odd hash of the shingle.
func MinHashSignature(shingles []string, numPerm int) []uint64 {
	sig := make([]uint64, numPerm)
	for i := range sig {
		sig[i] = math.MaxUint64
	}
	for _, s := range shingles {
		h1 := xxhash.Sum64String(s)
		h2 := mix64(h1^0x9e3779b97f4a7c15) | 1
		for i := range sig {
			if v := mix64(h1 + uint64(i)*h2); v < sig[i] {
				sig[i] = v
			}
		}
	}
	return sig
}

// EstimateJaccard is the fraction of signature positions two signatures share
func EstimateJaccard(a, b []uint64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	same := 0
	for i := range a {
		if a[i] == b[i] {
			same++
		}
	}
	return float64(same) / float64(len(a))
}

// mix64 is the splitmix64 finalizer
func mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// lshIndex buckets signatures by band. Two signatures become candidates when
// at least one band of rows values matches exactly.
type lshIndex struct {
	bands   int
	rows    int
	buckets []map[uint64][]int
}

func newLSHIndex(bands, rows int) *lshIndex {
	buckets := make([]map[uint64][]int, bands)
	for i := range buckets {
		buckets[i] = make(map[uint64][]int)
	}
	return &lshIndex{bands: bands, rows: rows, buckets: buckets}
}

func (x *lshIndex) bandKey(sig []uint64, band int) uint64 {
	buf := make([]byte, 0, 8*x.rows)
	for _, v := range sig[band*x.rows : (band+1)*x.rows] {
		buf = binary.LittleEndian.AppendUint64(buf, v)
	}
	return xxhash.Sum64(buf)
}

func (x *lshIndex) insert(id int, sig []uint64) {
	for band := 0; band < x.bands; band++ {
		key := x.bandKey(sig, band)
		x.buckets[band][key] = append(x.buckets[band][key], id)
	}
}

// query returns the ids sharing at least one band with sig, ascending
func (x *lshIndex) query(sig []uint64) []int {
	seen := make(map[int]struct{})
	for band := 0; band < x.bands; band++ {
		for _, id := range x.buckets[band][x.bandKey(sig, band)] {
			seen[id] = struct{}{}
		}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// lshParams picks the band/row split for numPerm permutations that minimises
// the equally weighted false positive and false negative areas around threshold
func lshParams(threshold float64, numPerm int) (bands, rows int) {
	minErr := math.Inf(1)
	bands, rows = numPerm, 1
	for b := 1; b <= numPerm; b++ {
		for r := 1; r <= numPerm/b; r++ {
			fb, fr := float64(b), float64(r)
			fp := integrate(func(s float64) float64 {
				return 1 - math.Pow(1-math.Pow(s, fr), fb)
			}, 0, threshold)
			fn := integrate(func(s float64) float64 {
				return math.Pow(1-math.Pow(s, fr), fb)
			}, threshold, 1)
			if e := 0.5*fp + 0.5*fn; e < minErr {
				minErr = e
				bands, rows = b, r
			}
		}
	}
	return bands, rows
}

// integrate is composite Simpson's rule over [a,b]
func integrate(f func(float64) float64, a, b float64) float64 {
	const n = 64
	if b <= a {
		return 0
	}
	h := (b - a) / n
	sum := f(a) + f(b)
	for i := 1; i < n; i++ {
		x := a + float64(i)*h
		if i%2 == 1 {
			sum += 4 * f(x)
		} else {
			sum += 2 * f(x)
		}
	}
	return sum * h / 3
}

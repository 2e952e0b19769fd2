package deduplication

import (
	"context"
	"errors"
	"fmt"
)

// ErrBackendUnavailable marks a near-duplicate backend that cannot run in this process
var ErrBackendUnavailable = errors.New("near-duplicate backend unavailable")

// backend is the capability shared by the near-duplicate strategies:
// given the entries that survived the exact phase, return groups of mutually
// similar entries.
//
// A backend builds its signatures and index inside FindClusters and keeps no
// state between calls, so one backend value can serve independent runs.
type backend interface {
	Method() Method
	Available() error
	FindClusters(ctx context.Context, entries []*entry) (*clustering, error)
}

// clustering is what a backend hands back to the engine
type clustering struct {
	// groups are disjoint, each with two or more entries
	groups [][]*entry

	// similarity scores any two clustered entries on the backend's scale;
	// the engine uses it to score duplicates against the elected canonical
	similarity func(a, b *entry) float64

	// skipped entries were too short for the backend
	skipped []*entry

	// failed entries could not be signed and stay unclustered
	failed []itemFailure

	comparisons int
}

type itemFailure struct {
	entry *entry
	err   error
}

// degradationChain lists the backends to try, best first, for a configured method
func degradationChain(m Method) []Method {
	switch m {
	case MethodMinHash:
		return []Method{MethodMinHash, MethodSimHash, MethodSequence}
	case MethodSimHash:
		return []Method{MethodSimHash, MethodSequence}
	default:
		return []Method{MethodSequence}
	}
}

func newBackend(m Method, cfg Config) backend {
	switch m {
	case MethodMinHash:
		return newMinHashBackend(cfg)
	case MethodSimHash:
		return newSimHashBackend(cfg)
	default:
		return newSequenceBackend(cfg)
	}
}

// resolveBackend walks the degradation chain once and returns the first
// backend that is available, plus the reasons the earlier ones were skipped.
// The sequence backend has no runtime requirements and always resolves.
func resolveBackend(cfg Config, unavailable map[Method]bool) (backend, []error) {
	var skipped []error
	for _, m := range degradationChain(cfg.Method) {
		b := newBackend(m, cfg)
		if m == MethodSequence {
			return b, skipped
		}
		if unavailable[m] {
			skipped = append(skipped, fmt.Errorf("%w: %s", ErrBackendUnavailable, m))
			continue
		}
		if err := b.Available(); err != nil {
			skipped = append(skipped, fmt.Errorf("%w: %s: %w", ErrBackendUnavailable, m, err))
			continue
		}
		return b, skipped
	}
	return newSequenceBackend(cfg), skipped
}

// runBackend calls FindClusters and turns a panic into an error so a broken
// backend can be replaced for the whole run
func runBackend(ctx context.Context, b backend, entries []*entry) (c *clustering, err error) {
	defer func() {
		if r := recover(); r != nil {
			c = nil
			err = fmt.Errorf("%s backend panicked: %v", b.Method(), r)
		}
	}()
	return b.FindClusters(ctx, entries)
}

// signSafely runs a per-entry signature function, converting panics to errors
func signSafely[T any](e *entry, sign func(*entry) (T, error)) (sig T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("signing %s panicked: %v", e.item.Path, r)
		}
	}()
	return sign(e)
}

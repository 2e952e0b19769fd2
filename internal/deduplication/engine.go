package deduplication

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/notecurator/curate/internal/types"
	"github.com/rs/zerolog"
)

// ErrInvalidItem is returned when the input collection cannot be deduplicated
var ErrInvalidItem = errors.New("invalid curation item")

// Engine runs duplicate detection over a corpus of curation items.
//
// The near-duplicate backend is resolved once, in NewEngine. Each Detect call
// builds its own fingerprint map and near-duplicate index and drops them on
// return, so one Engine may serve concurrent, independent runs.
type Engine struct {
	config      Config
	backend     backend
	unavailable map[Method]bool
	logger      zerolog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger (default: disabled)
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithUnavailableBackends marks backends as unable to run in this process,
// which makes the engine degrade to the next backend in the chain. The
// sequence backend cannot be marked unavailable.
func WithUnavailableBackends(methods ...Method) Option {
	return func(e *Engine) {
		for _, m := range methods {
			e.unavailable[m] = true
		}
	}
}

// withBackend replaces the resolved backend; tests use it to inject failures
func withBackend(b backend) Option {
	return func(e *Engine) {
		e.backend = b
	}
}

// NewEngine validates cfg and resolves the near-duplicate backend
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		config:      cfg,
		unavailable: make(map[Method]bool),
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.backend == nil {
		b, skipped := resolveBackend(cfg, e.unavailable)
		for _, err := range skipped {
			e.logger.Warn().Err(err).Str("fallback", string(b.Method())).Msg("near-duplicate backend unavailable, degrading")
		}
		e.backend = b
	}
	return e, nil
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.config
}

// Method returns the near-duplicate backend the engine resolved to
func (e *Engine) Method() Method {
	return e.backend.Method()
}

// DetectDuplicates runs detection and merges the decisions into items.
//
// It returns the surviving (non-duplicate) items and the duplicate clusters.
// When the engine is disabled items are returned untouched with no clusters.
// Items are never removed or reordered; on error none of them is modified.
func (e *Engine) DetectDuplicates(ctx context.Context, items []*types.CurationItem) ([]*types.CurationItem, []*Cluster, error) {
	if !e.config.Enabled {
		return items, nil, nil
	}
	result, err := e.Detect(ctx, items)
	if err != nil {
		return nil, nil, err
	}
	result.Apply(items)
	return result.Survivors, result.Clusters, nil
}

// DetectDuplicates builds an Engine for cfg and runs it once. Configuration
// errors are reported before any item is touched.
func DetectDuplicates(ctx context.Context, items []*types.CurationItem, cfg Config, opts ...Option) ([]*types.CurationItem, []*Cluster, error) {
	engine, err := NewEngine(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	return engine.DetectDuplicates(ctx, items)
}

// Detect computes duplicate decisions without modifying items. Decisions are
// returned as a side table keyed by item path; Result.Apply merges them.
func (e *Engine) Detect(ctx context.Context, items []*types.CurationItem) (*Result, error) {
	startTime := time.Now()
	runID := uuid.New().String()
	log := e.logger.With().Str("run_id", runID).Logger()

	result := &Result{
		RunID:       runID,
		Requested:   e.config.Method,
		Method:      e.backend.Method(),
		Annotations: make(map[string]*Annotation),
	}

	if !e.config.Enabled {
		result.Disabled = true
		result.Survivors = items
		result.Stats = Stats{TotalItems: len(items), SurvivorCount: len(items)}
		return result, nil
	}

	if err := validateItems(items); err != nil {
		return nil, err
	}

	entries := make([]*entry, len(items))
	for i, item := range items {
		entries[i] = newEntry(i, item)
	}

	// Exact phase
	nearInput := entries
	var exactClusters []*Cluster
	if e.config.ExactEnabled {
		nearInput, exactClusters = e.exactPhase(entries, log)
	}

	// Near phase
	var nearClusters []*Cluster
	if len(nearInput) > 1 {
		c, method, fellBack, err := e.cluster(ctx, nearInput, log)
		if err != nil {
			return nil, err
		}
		result.Method = method
		result.FellBack = fellBack
		result.Stats.SkippedCount = len(c.skipped)
		result.Stats.FailedCount = len(c.failed)
		result.Stats.ComparisonsMade = c.comparisons

		for _, group := range c.groups {
			nearClusters = append(nearClusters, buildCluster(types.DuplicateNear, string(method), group, c.similarity))
		}
	}

	result.Clusters = append(absorbExactGroups(exactClusters, nearClusters), nearClusters...)
	result.Stats.countClusters(result.Clusters)

	result.Annotations = MarkDuplicatesInClusters(result.Clusters, e.config.WriteAliases)
	for _, item := range items {
		if a, ok := result.Annotations[item.Path]; ok && a.IsDuplicate {
			continue
		}
		result.Survivors = append(result.Survivors, item)
	}

	result.Stats.TotalItems = len(items)
	result.Stats.SurvivorCount = len(result.Survivors)
	result.Stats.ProcessingTimeMs = time.Since(startTime).Milliseconds()

	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("inconsistent deduplication result: %w", err)
	}

	log.Info().
		Str("method", string(result.Method)).
		Int("items", result.Stats.TotalItems).
		Int("exact_duplicates", result.Stats.ExactDuplicateCount).
		Int("near_duplicates", result.Stats.NearDuplicateCount).
		Int("clusters", len(result.Clusters)).
		Int64("elapsed_ms", result.Stats.ProcessingTimeMs).
		Msg("duplicate detection complete")

	return result, nil
}

// exactPhase fingerprints every entry long enough to hash and returns the
// entries that go on to the near phase (one canonical per fingerprint plus
// everything too short to hash, in input order) and the exact clusters.
func (e *Engine) exactPhase(entries []*entry, log zerolog.Logger) ([]*entry, []*Cluster) {
	index := NewExactIndex()
	var unhashed []*entry
	for _, en := range entries {
		if en.length < e.config.MinTextLength {
			unhashed = append(unhashed, en)
			continue
		}
		outcome := index.RecordOrFind(en)
		if outcome.Displaced != nil {
			log.Debug().
				Str("path", en.item.Path).
				Str("displaced", outcome.Displaced.item.Path).
				Msg("exact duplicate outranks stored canonical")
		}
	}

	survivors := append(index.canonicals(), unhashed...)
	slices.SortFunc(survivors, func(a, b *entry) int { return a.index - b.index })

	var clusters []*Cluster
	for _, group := range index.duplicateGroups() {
		clusters = append(clusters, buildCluster(types.DuplicateExact, string(types.DuplicateExact), group,
			func(_, _ *entry) float64 { return 1.0 }))
	}
	return survivors, clusters
}

// cluster runs the resolved backend. A failure other than cancellation
// re-clusters the whole input with the sequence backend so that every
// decision in the run comes from the same strategy.
func (e *Engine) cluster(ctx context.Context, entries []*entry, log zerolog.Logger) (*clustering, Method, bool, error) {
	c, err := runBackend(ctx, e.backend, entries)
	if err == nil {
		e.logFailures(c, log)
		return c, e.backend.Method(), false, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, "", false, ctxErr
	}
	if e.backend.Method() == MethodSequence {
		return nil, "", false, fmt.Errorf("near-duplicate clustering failed: %w", err)
	}

	log.Warn().Err(err).
		Str("method", string(e.backend.Method())).
		Msg("near-duplicate backend failed, re-clustering run with sequence backend")

	fallback := newSequenceBackend(e.config)
	c, err = runBackend(ctx, fallback, entries)
	if err != nil {
		return nil, "", false, fmt.Errorf("fallback clustering failed: %w", err)
	}
	e.logFailures(c, log)
	return c, MethodSequence, true, nil
}

func (e *Engine) logFailures(c *clustering, log zerolog.Logger) {
	for _, f := range c.failed {
		log.Warn().Err(f.err).Str("path", f.entry.item.Path).Msg("excluding item from near-duplicate clustering")
	}
	if len(c.skipped) > 0 {
		log.Debug().Int("count", len(c.skipped)).Msg("items too short for near-duplicate backend")
	}
}

// buildCluster orders a group canonical first and scores every member
// against the canonical
func buildCluster(kind types.DuplicateKind, method string, group []*entry, similarity func(a, b *entry) float64) *Cluster {
	ordered := append([]*entry(nil), group...)
	sortCanonicalFirst(ordered)

	canonical := ordered[0]
	members := make([]Member, len(ordered))
	for i, en := range ordered {
		sim := 1.0
		if i > 0 {
			sim = clamp01(similarity(canonical, en))
		}
		members[i] = Member{Item: en.item, Path: en.item.Path, Index: en.index, Similarity: sim, Kind: kind}
	}
	return &Cluster{Kind: kind, Method: method, Members: members}
}

// absorbExactGroups folds every exact group whose canonical landed in a near
// cluster into that cluster, right after its canonical. The folded members
// keep kind exact and similarity 1.0 and now answer to the near cluster's
// canonical, which outranks the exact canonical and so all of its group.
// The exact clusters that were not folded are returned in order.
func absorbExactGroups(exact, near []*Cluster) []*Cluster {
	if len(exact) == 0 || len(near) == 0 {
		return exact
	}

	byCanonical := make(map[int]*Cluster, len(exact))
	for _, c := range exact {
		byCanonical[c.Canonical().Index] = c
	}

	absorbed := make(map[*Cluster]bool)
	for _, nc := range near {
		members := make([]Member, 0, nc.Size())
		for _, m := range nc.Members {
			members = append(members, m)
			if ec, ok := byCanonical[m.Index]; ok {
				members = append(members, ec.Duplicates()...)
				absorbed[ec] = true
			}
		}
		nc.Members = members
	}

	var remaining []*Cluster
	for _, c := range exact {
		if !absorbed[c] {
			remaining = append(remaining, c)
		}
	}
	return remaining
}

func validateItems(items []*types.CurationItem) error {
	paths := make(map[string]int, len(items))
	for i, item := range items {
		if item == nil {
			return fmt.Errorf("%w: item at index %d is nil", ErrInvalidItem, i)
		}
		if err := item.Validate(); err != nil {
			return fmt.Errorf("%w: index %d: %w", ErrInvalidItem, i, err)
		}
		if prev, ok := paths[item.Path]; ok {
			return fmt.Errorf("%w: path %s appears at index %d and %d", ErrInvalidItem, item.Path, prev, i)
		}
		paths[item.Path] = i
	}
	return nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

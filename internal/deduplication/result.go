package deduplication

import (
	"fmt"

	"github.com/notecurator/curate/internal/types"
)

// Member is one item inside a Cluster
type Member struct {
	Item *types.CurationItem `json:"-"`
	Path string              `json:"path"`

	// Index is the item's position in the slice passed to Detect
	Index int `json:"index"`

	// Similarity is measured against the cluster's canonical (1.0 for the
	// canonical). Exact duplicates folded into a near cluster keep 1.0, their
	// similarity to the exact twin that joined it.
	Similarity float64 `json:"similarity"`

	// Kind says how this member was matched; empty means the cluster's kind
	Kind types.DuplicateKind `json:"kind,omitempty"`
}

// Cluster is a group of duplicates ordered canonical first
type Cluster struct {
	Kind    types.DuplicateKind `json:"kind"`
	Method  string              `json:"method"`
	Members []Member            `json:"members"`
}

// Canonical returns the member that survives the cluster
func (c *Cluster) Canonical() Member {
	return c.Members[0]
}

// Duplicates returns every member except the canonical
func (c *Cluster) Duplicates() []Member {
	return c.Members[1:]
}

// Size returns the number of members
func (c *Cluster) Size() int {
	return len(c.Members)
}

// MemberKind returns how m was matched into the cluster
func (c *Cluster) MemberKind(m Member) types.DuplicateKind {
	if m.Kind != "" {
		return m.Kind
	}
	return c.Kind
}

// methodFor returns the method recorded on a duplicate's DuplicateInfo
func (c *Cluster) methodFor(m Member) string {
	if c.MemberKind(m) == types.DuplicateExact {
		return string(types.DuplicateExact)
	}
	return c.Method
}

// Annotation is the engine's decision for one item, keyed by path in Result
type Annotation struct {
	IsDuplicate   bool                 `json:"is_duplicate"`
	DuplicateInfo *types.DuplicateInfo `json:"duplicate_info,omitempty"`
	Aliases       []types.Alias        `json:"aliases,omitempty"`
}

// Stats provides metrics about one deduplication run
type Stats struct {
	// TotalItems is the number of items passed in
	TotalItems int `json:"total_items"`

	// SurvivorCount is the number of items not marked as duplicates
	SurvivorCount int `json:"survivor_count"`

	// ExactDuplicateCount is the number of items marked by the exact phase
	ExactDuplicateCount int `json:"exact_duplicate_count"`

	// NearDuplicateCount is the number of items marked by the near phase
	NearDuplicateCount int `json:"near_duplicate_count"`

	ExactClusterCount int `json:"exact_cluster_count"`
	NearClusterCount  int `json:"near_cluster_count"`

	// SkippedCount is the number of items too short for the near backend
	SkippedCount int `json:"skipped_count"`

	// FailedCount is the number of items whose signature could not be built
	FailedCount int `json:"failed_count"`

	// ComparisonsMade is the number of pairwise similarity evaluations
	ComparisonsMade int `json:"comparisons_made"`

	// ProcessingTimeMs is the time taken for detection in milliseconds
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// DuplicateCount is the total number of items marked as duplicates
func (s Stats) DuplicateCount() int {
	return s.ExactDuplicateCount + s.NearDuplicateCount
}

// countClusters fills the cluster and duplicate counters from clusters
func (s *Stats) countClusters(clusters []*Cluster) {
	for _, c := range clusters {
		if c.Kind == types.DuplicateExact {
			s.ExactClusterCount++
		} else {
			s.NearClusterCount++
		}
		for _, m := range c.Duplicates() {
			if c.MemberKind(m) == types.DuplicateExact {
				s.ExactDuplicateCount++
			} else {
				s.NearDuplicateCount++
			}
		}
	}
}

// Result is the outcome of one Detect call. It never aliases engine state:
// clusters and annotations belong to the caller.
type Result struct {
	RunID string `json:"run_id"`

	// Requested is the configured method; Method is the backend that produced
	// the near clusters after degradation or fallback
	Requested Method `json:"requested_method"`
	Method    Method `json:"method"`

	// FellBack is true when the resolved backend failed and the run was
	// re-clustered with the sequence backend
	FellBack bool `json:"fell_back"`

	// Disabled is true when the engine was switched off; Apply is then a no-op
	Disabled bool `json:"disabled,omitempty"`

	Clusters    []*Cluster             `json:"clusters"`
	Annotations map[string]*Annotation `json:"annotations"`

	// Survivors are the items not marked as duplicates, in input order
	Survivors []*types.CurationItem `json:"-"`

	Stats Stats `json:"stats"`
}

// MarkDuplicatesInClusters turns clusters into per-path annotations: every
// non-canonical member is flagged with a DuplicateInfo pointing at the
// canonical, and with writeAliases the canonical lists what it absorbed.
// Clusters must be disjoint.
func MarkDuplicatesInClusters(clusters []*Cluster, writeAliases bool) map[string]*Annotation {
	annotations := make(map[string]*Annotation)
	get := func(path string) *Annotation {
		a, ok := annotations[path]
		if !ok {
			a = &Annotation{}
			annotations[path] = a
		}
		return a
	}

	for _, c := range clusters {
		canonical := c.Canonical()
		for _, dup := range c.Duplicates() {
			a := get(dup.Path)
			a.IsDuplicate = true
			a.DuplicateInfo = &types.DuplicateInfo{
				Kind:          c.MemberKind(dup),
				CanonicalPath: canonical.Path,
				Similarity:    dup.Similarity,
				ClusterSize:   c.Size(),
				Method:        c.methodFor(dup),
			}
			if writeAliases {
				ca := get(canonical.Path)
				ca.Aliases = append(ca.Aliases, types.Alias{Path: dup.Path, Similarity: dup.Similarity})
			}
		}
	}
	return annotations
}

// Apply merges the annotations back into items. Items are matched by path;
// engine-owned fields of items without an annotation are cleared so that
// IsDuplicate and DuplicateInfo always move together. A result from a
// disabled engine leaves items untouched.
func (r *Result) Apply(items []*types.CurationItem) {
	if r.Disabled {
		return
	}
	for _, item := range items {
		if item == nil {
			continue
		}
		a, ok := r.Annotations[item.Path]
		if !ok {
			item.IsDuplicate = false
			item.DuplicateInfo = nil
			item.Aliases = nil
			continue
		}
		item.IsDuplicate = a.IsDuplicate && a.DuplicateInfo != nil
		if item.IsDuplicate {
			info := *a.DuplicateInfo
			item.DuplicateInfo = &info
		} else {
			item.DuplicateInfo = nil
		}
		item.Aliases = append([]types.Alias(nil), a.Aliases...)
	}
}

// Validate checks the structural invariants of a result
func (r *Result) Validate() error {
	seen := make(map[string]bool)
	exact, near := 0, 0
	for i, c := range r.Clusters {
		if c.Size() < 2 {
			return fmt.Errorf("cluster %d has %d members (need at least 2)", i, c.Size())
		}
		if !c.Kind.IsValid() {
			return fmt.Errorf("cluster %d has invalid kind %q", i, c.Kind)
		}
		for j, m := range c.Members {
			if seen[m.Path] {
				return fmt.Errorf("item %s appears in more than one cluster", m.Path)
			}
			seen[m.Path] = true
			if m.Similarity < 0 || m.Similarity > 1 {
				return fmt.Errorf("item %s has similarity %.4f outside [0,1]", m.Path, m.Similarity)
			}
			kind := c.MemberKind(m)
			if !kind.IsValid() {
				return fmt.Errorf("item %s has invalid kind %q", m.Path, kind)
			}
			if j == 0 {
				continue
			}
			if kind == types.DuplicateExact {
				exact++
			} else {
				near++
			}
		}
	}

	for path, a := range r.Annotations {
		if a.IsDuplicate != (a.DuplicateInfo != nil) {
			return fmt.Errorf("annotation for %s sets is_duplicate without duplicate_info", path)
		}
		if !a.IsDuplicate {
			continue
		}
		if ca, ok := r.Annotations[a.DuplicateInfo.CanonicalPath]; ok && ca.IsDuplicate {
			return fmt.Errorf("%s points at canonical %s which is itself a duplicate",
				path, a.DuplicateInfo.CanonicalPath)
		}
	}

	if r.Stats.ExactDuplicateCount != exact {
		return fmt.Errorf("stats.exact_duplicate_count (%d) does not match exact duplicates (%d)",
			r.Stats.ExactDuplicateCount, exact)
	}
	if r.Stats.NearDuplicateCount != near {
		return fmt.Errorf("stats.near_duplicate_count (%d) does not match near duplicates (%d)",
			r.Stats.NearDuplicateCount, near)
	}
	if r.Stats.SurvivorCount != len(r.Survivors) {
		return fmt.Errorf("stats.survivor_count (%d) does not match survivors length (%d)",
			r.Stats.SurvivorCount, len(r.Survivors))
	}
	if r.Stats.TotalItems != r.Stats.SurvivorCount+r.Stats.DuplicateCount() {
		return fmt.Errorf("stats.total_items (%d) does not match survivors + duplicates (%d)",
			r.Stats.TotalItems, r.Stats.SurvivorCount+r.Stats.DuplicateCount())
	}
	return nil
}

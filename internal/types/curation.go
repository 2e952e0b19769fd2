package types

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// CurationItem is one analyzed note handed to the deduplication engine.
// Content and scores are produced upstream; IsDuplicate, DuplicateInfo and
// Aliases are owned by the engine.
type CurationItem struct {
	Path           string     `json:"path"`
	Content        string     `json:"content"`
	QualityScore   float64    `json:"quality_score"`
	SecondaryScore float64    `json:"secondary_score"`
	ModifiedAt     *time.Time `json:"modified_at,omitempty"`

	IsDuplicate   bool           `json:"is_duplicate"`
	DuplicateInfo *DuplicateInfo `json:"duplicate_info,omitempty"`
	Aliases       []Alias        `json:"aliases,omitempty"`
}

// Validate checks that the item can take part in a deduplication run
func (c *CurationItem) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("path is required")
	}
	if math.IsNaN(c.QualityScore) {
		return fmt.Errorf("quality_score must be a number (item %s)", c.Path)
	}
	if math.IsNaN(c.SecondaryScore) {
		return fmt.Errorf("secondary_score must be a number (item %s)", c.Path)
	}
	if c.IsDuplicate != (c.DuplicateInfo != nil) {
		return fmt.Errorf("is_duplicate and duplicate_info must be set together (item %s)", c.Path)
	}
	if c.DuplicateInfo != nil {
		if err := c.DuplicateInfo.Validate(); err != nil {
			return fmt.Errorf("invalid duplicate_info for %s: %w", c.Path, err)
		}
	}
	return nil
}

// DuplicateKind says how a duplicate was detected
type DuplicateKind string

const (
	DuplicateExact DuplicateKind = "exact"
	DuplicateNear  DuplicateKind = "near"
)

// IsValid checks if the kind value is valid
func (k DuplicateKind) IsValid() bool {
	switch k {
	case DuplicateExact, DuplicateNear:
		return true
	}
	return false
}

// DuplicateInfo records why an item was marked as a duplicate
type DuplicateInfo struct {
	Kind          DuplicateKind `json:"kind"`
	CanonicalPath string        `json:"canonical_path"`
	Similarity    float64       `json:"similarity"`
	ClusterSize   int           `json:"cluster_size,omitempty"`
	Method        string        `json:"method,omitempty"`
}

// Validate checks if the duplicate info has valid values
func (d *DuplicateInfo) Validate() error {
	if !d.Kind.IsValid() {
		return fmt.Errorf("invalid duplicate kind: %s", d.Kind)
	}
	if d.CanonicalPath == "" {
		return fmt.Errorf("canonical_path must be set")
	}
	if d.Similarity < 0.0 || d.Similarity > 1.0 {
		return fmt.Errorf("similarity must be between 0.0 and 1.0 (got %.2f)", d.Similarity)
	}
	if d.ClusterSize < 0 {
		return fmt.Errorf("cluster_size cannot be negative (got %d)", d.ClusterSize)
	}
	return nil
}

// Alias is a duplicate absorbed by a canonical item
type Alias struct {
	Path       string  `json:"path"`
	Similarity float64 `json:"similarity"`
}

package deduplication

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint is the hex SHA-256 digest of normalized text
type Fingerprint string

// FingerprintOf hashes already-normalized text
func FingerprintOf(normalized string) Fingerprint {
	sum := sha256.Sum256([]byte(normalized))
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// ExactOutcome is the result of recording one entry in the ExactIndex
type ExactOutcome struct {
	// Duplicate is true when the fingerprint was already present
	Duplicate bool
	// Canonical is the best entry for the fingerprint after recording
	Canonical *entry
	// Displaced is the previous canonical when the recorded entry outranked it
	Displaced *entry
}

type exactGroup struct {
	fingerprint Fingerprint
	canonical   *entry
	members     []*entry
}

// ExactIndex maps fingerprints to the best entry seen so far in one run.
// It is not safe for concurrent use.
type ExactIndex struct {
	groups map[Fingerprint]*exactGroup
	order  []Fingerprint
}

// NewExactIndex creates an empty index
func NewExactIndex() *ExactIndex {
	return &ExactIndex{groups: make(map[Fingerprint]*exactGroup)}
}

// RecordOrFind records e under its fingerprint.
//
// An unseen fingerprint makes e the canonical. A seen fingerprint compares e
// against the stored canonical using the canonical order: a strictly better e
// replaces it and the old canonical is reported as Displaced. Because every
// comparison applies the same total order, the final canonical only depends on
// the set of entries sharing a fingerprint.
func (x *ExactIndex) RecordOrFind(e *entry) ExactOutcome {
	fp := FingerprintOf(e.normalized)
	g, ok := x.groups[fp]
	if !ok {
		x.groups[fp] = &exactGroup{fingerprint: fp, canonical: e, members: []*entry{e}}
		x.order = append(x.order, fp)
		return ExactOutcome{Canonical: e}
	}

	g.members = append(g.members, e)
	if betterThan(e, g.canonical) {
		displaced := g.canonical
		g.canonical = e
		return ExactOutcome{Duplicate: true, Canonical: e, Displaced: displaced}
	}
	return ExactOutcome{Duplicate: true, Canonical: g.canonical}
}

// Len returns the number of distinct fingerprints recorded
func (x *ExactIndex) Len() int {
	return len(x.order)
}

// canonicals returns the canonical of every fingerprint in first-seen order
func (x *ExactIndex) canonicals() []*entry {
	out := make([]*entry, 0, len(x.order))
	for _, fp := range x.order {
		out = append(out, x.groups[fp].canonical)
	}
	return out
}

// duplicateGroups returns every fingerprint group with two or more members,
// each ordered canonical first, in first-seen order
func (x *ExactIndex) duplicateGroups() [][]*entry {
	var groups [][]*entry
	for _, fp := range x.order {
		g := x.groups[fp]
		if len(g.members) < 2 {
			continue
		}
		members := append([]*entry(nil), g.members...)
		sortCanonicalFirst(members)
		groups = append(groups, members)
	}
	return groups
}

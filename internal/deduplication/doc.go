// Package deduplication detects exact and near-duplicate notes in a curation run.
//
// # Overview
//
// Upstream stages clean each note and score its quality. This package takes the
// resulting CurationItems, decides which of them duplicate one another, elects
// one canonical per duplicate group and records the decision on the others. It
// never judges whether content is good enough to keep and never edits content.
//
// # Architecture
//
// Detection runs in two phases over the full corpus:
//
//  1. Exact phase: each item's text is normalized (see Normalize) and hashed
//     with SHA-256. Items sharing a fingerprint form an exact group.
//  2. Near phase: the survivors of the exact phase are clustered by one of
//     three backends:
//     - minhash: 128-value MinHash over 5-word shingles with a banded LSH index
//     - simhash: 64-bit SimHash over the word multiset, Hamming distance
//     - sequence: pairwise character sequence-matching ratio
//
// When the canonical of an exact group joins a near cluster, the whole exact
// group is folded into that cluster, so every item belongs to at most one
// cluster and every duplicate points at a surviving canonical.
//
// Within every group the canonical is the member with the highest quality
// score, then secondary score, then most recent modification time, then
// longest normalized text; the caller's input order breaks any remaining tie.
//
// # Degradation
//
// The backend is resolved once, when the Engine is built, along the chain
// minhash -> simhash -> sequence. A backend is skipped only when it reports
// itself unavailable (see WithUnavailableBackends). If the resolved backend
// fails during a run, the whole run is re-clustered with the sequence backend.
// An item whose signature cannot be built is left out of near clustering and
// simply survives.
//
// # Usage
//
//	engine, err := deduplication.NewEngine(cfg, deduplication.WithLogger(logger))
//	if err != nil {
//	    return fmt.Errorf("invalid dedup config: %w", err)
//	}
//
//	result, err := engine.Detect(ctx, items)
//	if err != nil {
//	    return err
//	}
//	result.Apply(items)
//	engine.SaveReport(result, filepath.Join(vault, "duplicates.md"))
//
// Detect leaves items untouched and returns its decisions keyed by path;
// Engine.DetectDuplicates does both steps for callers that want in-place marking.
//
// # Configuration
//
// See DefaultConfig for default values, LoadConfigFile for the YAML form and
// ConfigFromEnv for the CURATE_DEDUP_* environment variables.
package deduplication

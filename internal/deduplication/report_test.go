package deduplication

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/notecurator/curate/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detectForReport(t *testing.T, items []*types.CurationItem) (*Engine, *Result) {
	t.Helper()
	engine, err := NewEngine(sequenceConfig(0.8))
	require.NoError(t, err)
	result, err := engine.Detect(context.Background(), items)
	require.NoError(t, err)
	return engine, result
}

func TestWriteReport(t *testing.T) {
	_, result := detectForReport(t, []*types.CurationItem{
		newItem("notes/a.md", "Infrastructure financing models in 2020", 0.7),
		newItem("notes/b.md", "Infrastructure financing models, 2020.", 0.8),
		newItem("notes/c.md", "Completely unrelated cooking recipe", 0.9),
	})

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, result))
	report := buf.String()

	assert.Contains(t, report, "# Duplicate Detection Report")
	assert.Contains(t, report, "- Method: sequence\n")
	assert.Contains(t, report, "- Total clusters: 1\n")
	assert.Contains(t, report, "- Total duplicates: 1\n")
	assert.Contains(t, report, "## Cluster 1 (near, 2 items)")
	assert.Contains(t, report, "**Canonical:** `notes/b.md` (quality 0.80)")
	assert.Contains(t, report, "- `notes/a.md` similarity 0.935, quality 0.70")
	assert.NotContains(t, report, "notes/c.md")
}

func TestWriteReportNoDuplicates(t *testing.T) {
	_, result := detectForReport(t, []*types.CurationItem{
		newItem("a", "alpha", 0.5),
		newItem("b", "omega", 0.5),
	})

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, result))
	assert.Contains(t, buf.String(), "- Total clusters: 0\n")
	assert.Contains(t, buf.String(), "No duplicates found.")
}

func TestWriteReportNotesFallback(t *testing.T) {
	result := &Result{RunID: "r1", Requested: MethodMinHash, Method: MethodSequence, FellBack: true}
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, result))
	assert.Contains(t, buf.String(), "- Method: sequence (fell back from minhash)")

	result.FellBack = false
	buf.Reset()
	require.NoError(t, WriteReport(&buf, result))
	assert.Contains(t, buf.String(), "- Method: sequence (requested minhash)")
}

func TestSaveReport(t *testing.T) {
	engine, result := detectForReport(t, []*types.CurationItem{
		newItem("a", "same body", 0.9),
		newItem("b", "same body", 0.1),
	})

	path := filepath.Join(t.TempDir(), "reports", "dedupe.md")
	engine.SaveReport(result, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## Cluster 1 (exact, 2 items)")
}

func TestSaveReportSwallowsErrors(t *testing.T) {
	engine, result := detectForReport(t, []*types.CurationItem{newItem("a", "x", 0.5)})

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	assert.NotPanics(t, func() {
		engine.SaveReport(result, filepath.Join(blocker, "report.md"))
	})
	_, err := os.Stat(filepath.Join(blocker, "report.md"))
	assert.Error(t, err)
}

func TestWriteReportTagsFoldedExactDuplicates(t *testing.T) {
	const body = "alpha beta gamma delta epsilon zeta eta theta"
	_, result := detectForReport(t, []*types.CurationItem{
		newItem("x1", body, 0.5),
		newItem("x2", body, 0.4),
		newItem("y", body+" iota", 0.9),
	})

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, result))
	report := buf.String()

	assert.Contains(t, report, "- Total clusters: 1\n")
	assert.Contains(t, report, "- Total duplicates: 2\n")
	assert.Contains(t, report, "## Cluster 1 (near, 3 items)")
	assert.Contains(t, report, "- `x2` similarity 1.000, quality 0.40 (exact)\n")
	assert.NotContains(t, report, "`x1` similarity 0.947, quality 0.50 (")
}

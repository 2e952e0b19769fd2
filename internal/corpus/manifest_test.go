package corpus

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/notecurator/curate/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes/b.md", "# Body from disk\n")
	manifest := writeFile(t, dir, "manifest.yaml", `items:
  - path: notes/a.md
    content: "Inline body"
    quality_score: 0.9
    secondary_score: 0.4
    modified: 2024-01-02T15:04:05Z
  - path: notes/b.md
    content_file: notes/b.md
    quality_score: 0.6
`)

	items, err := Load(manifest)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "notes/a.md", items[0].Path)
	assert.Equal(t, "Inline body", items[0].Content)
	assert.Equal(t, 0.9, items[0].QualityScore)
	assert.Equal(t, 0.4, items[0].SecondaryScore)
	require.NotNil(t, items[0].ModifiedAt)
	assert.True(t, items[0].ModifiedAt.Equal(time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)))

	assert.Equal(t, "# Body from disk\n", items[1].Content)
	assert.Nil(t, items[1].ModifiedAt)
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	manifest := writeFile(t, dir, "manifest.json",
		`{"items": [{"path": "a", "content": "x", "quality_score": 0.5}, {"path": "b", "content": "y"}]}`)

	items, err := Load(manifest)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].Path)
	assert.Equal(t, 0.5, items[0].QualityScore)
	assert.Equal(t, "y", items[1].Content)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		manifest string
		invalid  bool
	}{
		{"missing path", "items:\n  - content: x\n", true},
		{"both content and file", "items:\n  - path: a\n    content: x\n    content_file: a.md\n", true},
		{"missing content file", "items:\n  - path: a\n    content_file: nope.md\n", false},
		{"malformed", "items: [unclosed\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, "m.yaml", tt.manifest)
			_, err := Load(path)
			require.Error(t, err)
			if tt.invalid {
				assert.ErrorIs(t, err, ErrInvalidManifest)
			}
		})
	}

	_, err := Load(filepath.Join(dir, "does-not-exist.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteAnnotated(t *testing.T) {
	items := []*types.CurationItem{
		{Path: "a", Content: "x", QualityScore: 0.9},
		{
			Path:        "b",
			Content:     "x",
			IsDuplicate: true,
			DuplicateInfo: &types.DuplicateInfo{
				Kind: types.DuplicateExact, CanonicalPath: "a", Similarity: 1, ClusterSize: 2, Method: "exact",
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAnnotated(&buf, items))

	var decoded struct {
		Items []*types.CurationItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Items, 2)
	assert.False(t, decoded.Items[0].IsDuplicate)
	require.NotNil(t, decoded.Items[1].DuplicateInfo)
	assert.Equal(t, "a", decoded.Items[1].DuplicateInfo.CanonicalPath)
}

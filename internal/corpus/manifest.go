// Package corpus loads note collections for the curate CLI and writes the
// annotated result back out.
package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/notecurator/curate/internal/types"
	"gopkg.in/yaml.v3"
)

// ErrInvalidManifest is returned when a manifest parses but describes an
// unusable collection
var ErrInvalidManifest = errors.New("invalid manifest")

// Manifest is the on-disk description of a note collection. JSON manifests
// are accepted too since JSON is valid YAML.
type Manifest struct {
	Items []ManifestItem `yaml:"items"`
}

// ManifestItem is one note. Exactly one of Content and ContentFile is set;
// ContentFile is resolved relative to the manifest's directory.
type ManifestItem struct {
	Path           string     `yaml:"path"`
	Content        string     `yaml:"content"`
	ContentFile    string     `yaml:"content_file"`
	QualityScore   float64    `yaml:"quality_score"`
	SecondaryScore float64    `yaml:"secondary_score"`
	Modified       *time.Time `yaml:"modified"`
}

// Load reads the manifest at path and returns its items in file order
func Load(path string) ([]*types.CurationItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	return m.Resolve(filepath.Dir(path))
}

// Resolve turns manifest entries into curation items, reading content files
// relative to baseDir
func (m *Manifest) Resolve(baseDir string) ([]*types.CurationItem, error) {
	items := make([]*types.CurationItem, 0, len(m.Items))
	for i, mi := range m.Items {
		if strings.TrimSpace(mi.Path) == "" {
			return nil, fmt.Errorf("%w: item %d has no path", ErrInvalidManifest, i)
		}

		content := mi.Content
		switch {
		case mi.ContentFile != "" && mi.Content != "":
			return nil, fmt.Errorf("%w: item %s sets both content and content_file", ErrInvalidManifest, mi.Path)
		case mi.ContentFile != "":
			file := mi.ContentFile
			if !filepath.IsAbs(file) {
				file = filepath.Join(baseDir, file)
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return nil, fmt.Errorf("failed to read content for %s: %w", mi.Path, err)
			}
			content = string(data)
		}

		items = append(items, &types.CurationItem{
			Path:           mi.Path,
			Content:        content,
			QualityScore:   mi.QualityScore,
			SecondaryScore: mi.SecondaryScore,
			ModifiedAt:     mi.Modified,
		})
	}
	return items, nil
}

// WriteAnnotated writes items, including the engine's duplicate annotations,
// as indented JSON
func WriteAnnotated(w io.Writer, items []*types.CurationItem) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(struct {
		Items []*types.CurationItem `json:"items"`
	}{Items: items}); err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}
	return nil
}

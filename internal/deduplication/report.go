package deduplication

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteReport renders result as a markdown report: a summary header with the
// cluster and duplicate totals, then one section per cluster listing the
// canonical and each duplicate with its similarity and quality score.
func WriteReport(w io.Writer, result *Result) error {
	var b bytes.Buffer

	duplicates := 0
	for _, c := range result.Clusters {
		duplicates += c.Size() - 1
	}

	fmt.Fprintf(&b, "# Duplicate Detection Report\n\n")
	fmt.Fprintf(&b, "- Run: `%s`\n", result.RunID)
	fmt.Fprintf(&b, "- Method: %s", result.Method)
	if result.FellBack {
		fmt.Fprintf(&b, " (fell back from %s)", result.Requested)
	} else if result.Method != result.Requested {
		fmt.Fprintf(&b, " (requested %s)", result.Requested)
	}
	fmt.Fprintf(&b, "\n")
	fmt.Fprintf(&b, "- Total clusters: %d\n", len(result.Clusters))
	fmt.Fprintf(&b, "- Total duplicates: %d\n", duplicates)

	if len(result.Clusters) == 0 {
		fmt.Fprintf(&b, "\nNo duplicates found.\n")
	}

	for i, c := range result.Clusters {
		canonical := c.Canonical()
		fmt.Fprintf(&b, "\n## Cluster %d (%s, %d items)\n\n", i+1, c.Kind, c.Size())
		fmt.Fprintf(&b, "**Canonical:** `%s` (quality %.2f)\n\n", canonical.Path, canonical.Item.QualityScore)
		for _, dup := range c.Duplicates() {
			fmt.Fprintf(&b, "- `%s` similarity %.3f, quality %.2f",
				dup.Path, dup.Similarity, dup.Item.QualityScore)
			if kind := c.MemberKind(dup); kind != c.Kind {
				fmt.Fprintf(&b, " (%s)", kind)
			}
			fmt.Fprintf(&b, "\n")
		}
	}

	_, err := w.Write(b.Bytes())
	return err
}

// SaveReport writes the markdown report for result to path. The report is
// optional output: failures are logged and never returned.
func (e *Engine) SaveReport(result *Result, path string) {
	log := e.logger.With().Str("run_id", result.RunID).Str("path", path).Logger()

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Error().Err(err).Msg("failed to create report directory")
			return
		}
	}

	f, err := os.Create(path)
	if err != nil {
		log.Error().Err(err).Msg("failed to create duplicate report")
		return
	}
	defer f.Close()

	if err := WriteReport(f, result); err != nil {
		log.Error().Err(err).Msg("failed to write duplicate report")
		return
	}
	log.Info().Int("clusters", len(result.Clusters)).Msg("duplicate report written")
}

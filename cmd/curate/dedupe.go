package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/notecurator/curate/internal/corpus"
	"github.com/notecurator/curate/internal/deduplication"
	"github.com/spf13/cobra"
)

var (
	dedupeConfigPath string
	dedupeMethod     string
	dedupeThreshold  float64
	dedupeNoExact    bool
	dedupeAliases    bool
	dedupeDisable    bool
	dedupeWorkers    int
	dedupeReport     string
	dedupeJSON       bool
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe MANIFEST",
	Short: "Detect duplicate notes in a manifest",
	Long: `Detect exact and near-duplicate notes listed in a manifest.

Exact duplicates share the same normalized text. Near duplicates are found
with the configured backend (minhash, simhash or sequence); when a backend is
unavailable the engine degrades along minhash -> simhash -> sequence.

Configuration is layered: defaults, then the YAML config file, then
CURATE_DEDUP_* environment variables, then flags.

Examples:
  curate dedupe notes.yaml                           # Default minhash at 0.85
  curate dedupe notes.yaml --method=sequence --threshold=0.8
  curate dedupe notes.yaml --aliases --json > annotated.json
  curate dedupe notes.yaml --report=reports/dupes.md`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := runDedupe(ctx, cmd, args[0], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(dedupeCmd)
	dedupeCmd.Flags().StringVar(&dedupeConfigPath, "config", ".curate.yaml", "YAML config file (missing file means defaults)")
	dedupeCmd.Flags().StringVar(&dedupeMethod, "method", "", "Near-duplicate backend: minhash, simhash or sequence")
	dedupeCmd.Flags().Float64Var(&dedupeThreshold, "threshold", 0, "Near-duplicate similarity cutoff (0.0-1.0, inclusive)")
	dedupeCmd.Flags().BoolVar(&dedupeNoExact, "no-exact", false, "Skip the exact fingerprint phase")
	dedupeCmd.Flags().BoolVar(&dedupeAliases, "aliases", false, "Record absorbed duplicates on canonical notes")
	dedupeCmd.Flags().BoolVar(&dedupeDisable, "disable", false, "Pass notes through untouched")
	dedupeCmd.Flags().IntVar(&dedupeWorkers, "workers", 0, "Goroutines for pairwise comparisons")
	dedupeCmd.Flags().StringVar(&dedupeReport, "report", "", "Write a markdown duplicate report to this path")
	dedupeCmd.Flags().BoolVar(&dedupeJSON, "json", false, "Print annotated notes as JSON instead of a summary")
}

func runDedupe(ctx context.Context, cmd *cobra.Command, manifestPath string, out io.Writer) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	unavailable, err := deduplication.UnavailableFromEnv()
	if err != nil {
		return err
	}

	items, err := corpus.Load(manifestPath)
	if err != nil {
		return err
	}

	engine, err := deduplication.NewEngine(cfg,
		deduplication.WithLogger(logger),
		deduplication.WithUnavailableBackends(unavailable...),
	)
	if err != nil {
		return err
	}
	logger.Debug().Str("config", cfg.String()).Str("backend", string(engine.Method())).Msg("engine ready")

	result, err := engine.Detect(ctx, items)
	if err != nil {
		return fmt.Errorf("duplicate detection failed: %w", err)
	}
	result.Apply(items)

	if dedupeReport != "" {
		engine.SaveReport(result, dedupeReport)
	}

	if dedupeJSON {
		return corpus.WriteAnnotated(out, items)
	}
	printSummary(out, result, cfg.Enabled)
	return nil
}

// resolveConfig layers the config file, the environment and any flags that
// were explicitly set
func resolveConfig(cmd *cobra.Command) (deduplication.Config, error) {
	cfg, err := deduplication.LoadConfigFile(dedupeConfigPath)
	if err != nil {
		return cfg, err
	}
	cfg, err = deduplication.ConfigFromEnv(cfg)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("method") {
		m, err := deduplication.ParseMethod(dedupeMethod)
		if err != nil {
			return cfg, err
		}
		cfg.Method = m
	}
	if flags.Changed("threshold") {
		cfg.Threshold = dedupeThreshold
	}
	if flags.Changed("no-exact") {
		cfg.ExactEnabled = !dedupeNoExact
	}
	if flags.Changed("aliases") {
		cfg.WriteAliases = dedupeAliases
	}
	if flags.Changed("disable") {
		cfg.Enabled = !dedupeDisable
	}
	if flags.Changed("workers") {
		cfg.Workers = dedupeWorkers
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func printSummary(w io.Writer, result *deduplication.Result, enabled bool) {
	green := color.New(color.FgGreen).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	if !enabled {
		fmt.Fprintf(w, "%s deduplication disabled, %d notes passed through\n", gray("-"), result.Stats.TotalItems)
		return
	}

	stats := result.Stats
	fmt.Fprintf(w, "%s %d notes, %d kept, %d duplicates (%d exact, %d near)\n",
		green("✓"), stats.TotalItems, stats.SurvivorCount, stats.DuplicateCount(),
		stats.ExactDuplicateCount, stats.NearDuplicateCount)
	fmt.Fprintf(w, "  method: %s\n", methodLabel(result))
	if stats.SkippedCount > 0 || stats.FailedCount > 0 {
		fmt.Fprintf(w, "  %s %d too short to compare, %d excluded after errors\n",
			yellow("!"), stats.SkippedCount, stats.FailedCount)
	}
	fmt.Fprintf(w, "  %s\n", gray(fmt.Sprintf("%s comparisons in %dms", formatNumber(stats.ComparisonsMade), stats.ProcessingTimeMs)))

	for _, c := range result.Clusters {
		canonical := c.Canonical()
		fmt.Fprintf(w, "\n%s %s %s\n", cyan(string(c.Kind)), canonical.Path, gray(fmt.Sprintf("(%d notes)", c.Size())))
		for _, dup := range c.Duplicates() {
			fmt.Fprintf(w, "  %s %s %s\n", gray("└"), dup.Path, gray(fmt.Sprintf("%.3f", dup.Similarity)))
		}
	}
}

func methodLabel(result *deduplication.Result) string {
	switch {
	case result.FellBack:
		return fmt.Sprintf("%s (fell back from %s)", result.Method, result.Requested)
	case result.Method != result.Requested:
		return fmt.Sprintf("%s (%s unavailable)", result.Method, result.Requested)
	}
	return string(result.Method)
}

// formatNumber formats an integer with thousands separators
func formatNumber(n int) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s,%03d", formatNumber(n/1000), n%1000)
}

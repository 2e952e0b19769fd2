package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/notecurator/curate/internal/deduplication"
	"github.com/spf13/cobra"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize [TEXT|-]",
	Short: "Show the normalized form and fingerprint of a text",
	Long: `Show how the engine sees a text: the normalized form used for exact
matching and similarity, and its SHA-256 fingerprint.

With no argument or "-" the text is read from stdin.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		text, err := readText(args, os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printNormalized(os.Stdout, text)
	},
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
}

func readText(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}

func printNormalized(w io.Writer, text string) {
	gray := color.New(color.FgHiBlack).SprintFunc()

	normalized := deduplication.Normalize(text)
	fmt.Fprintln(w, normalized)
	fmt.Fprintf(w, "%s %s\n", gray("fingerprint:"), deduplication.FingerprintOf(normalized))
	fmt.Fprintf(w, "%s %d\n", gray("words:"), len(strings.Fields(normalized)))
}

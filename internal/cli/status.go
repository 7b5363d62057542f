package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/snpscope/internal/pipeline"
)

var statusJSON bool

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check local services and the language model",
	Long: `Status probes the ranker, summarizer and NLI services and checks that the
configured language model is reachable.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print status as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	p, err := pipeline.NewPipeline(cfg, log)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	defer func() { _ = p.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	st := p.Status(ctx)
	out := cmd.OutOrStdout()

	if statusJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	printStatus(out, st)
	return nil
}

func printStatus(out io.Writer, st pipeline.Status) {
	names := make([]string, 0, len(st.Services))
	for name := range st.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(out, "Services:\n")
	for _, name := range names {
		h := st.Services[name]
		mark := "✓"
		if !h.Healthy {
			mark = "✗"
		}
		line := fmt.Sprintf("  %s %-11s %s", mark, name, h.URL)
		if h.Model != "" {
			line += " (" + h.Model + ")"
		}
		if h.Error != "" {
			line += ": " + h.Error
		}
		fmt.Fprintln(out, line)
	}

	mark := "✓"
	if !st.LLM.Available {
		mark = "✗"
	}
	provider := st.LLM.Provider
	if provider == "" {
		provider = "none"
	}
	fmt.Fprintf(out, "\nLLM:\n  %s %s %s\n", mark, provider, st.LLM.Model)
}

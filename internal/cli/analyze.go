package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/snpscope/internal/pipeline"
)

var (
	outJSON        string
	outMD          string
	topic          string
	studyContext   string
	analyzeTimeout time.Duration
	noFooter       bool
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <identifier>...",
	Short: "Analyze one or more SNP identifiers against a topic",
	Long: `Analyze gathers evidence for each identifier and produces a single report:
- Query variant, GWAS, clinical and literature sources
- Rank and condense papers with the local reducer services
- Optionally upgrade the top papers to full text
- Synthesize findings with the configured language model
- Flag contradicting findings and compute an evidence strength index

Example:
  snpscope analyze rs429358 --topic "Alzheimer disease"
  snpscope analyze rs429358 rs7412 --topic "Alzheimer disease" --fulltext --md report.md
  snpscope analyze rs1801133 --topic "folate metabolism" --provider openai --model gpt-4o-mini`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&topic, "topic", "", "research topic the evidence is gathered for")
	analyzeCmd.Flags().StringVar(&studyContext, "context", "", "extra context passed to the language model")
	analyzeCmd.Flags().Bool("fulltext", false, "resolve full text for the top papers")
	analyzeCmd.Flags().String("provider", "", "LLM provider (anthropic, openai, gemini, ollama)")
	analyzeCmd.Flags().String("model", "", "LLM model name")

	analyzeCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (- for stdout)")
	analyzeCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path")
	analyzeCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 15*time.Minute, "overall analysis timeout")

	_ = viper.BindPFlag("fulltext.enabled", analyzeCmd.Flags().Lookup("fulltext"))
	_ = viper.BindPFlag("llm.provider", analyzeCmd.Flags().Lookup("provider"))
	_ = viper.BindPFlag("llm.model", analyzeCmd.Flags().Lookup("model"))
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), analyzeTimeout)
	defer cancel()

	p, err := pipeline.NewPipeline(cfg, log)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	defer func() { _ = p.Close() }()

	if verbose {
		fmt.Fprintf(os.Stderr, "Identifiers: %v\n", args)
		fmt.Fprintf(os.Stderr, "Topic: %s\n", topic)
		fmt.Fprintf(os.Stderr, "LLM: %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
		fmt.Fprintf(os.Stderr, "Full text: %v\n", cfg.FullText.Enabled)
		fmt.Fprintln(os.Stderr)
	}

	report, err := p.Analyze(ctx, pipeline.Request{
		Identifiers: args,
		Topic:       topic,
		Context:     studyContext,
		FullText:    cfg.FullText.Enabled,
	})
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	renderer := pipeline.NewRenderer(!noFooter)

	switch outJSON {
	case "":
	case "-":
		return renderer.WriteJSON(cmd.OutOrStdout(), report)
	default:
		if err := renderer.RenderJSON(report, outJSON); err != nil {
			return fmt.Errorf("write JSON: %w", err)
		}
		log.Info("JSON report written", zap.String("path", outJSON))
	}

	if outMD != "" {
		if err := renderer.RenderMarkdown(report, outMD); err != nil {
			return fmt.Errorf("write Markdown: %w", err)
		}
		log.Info("Markdown report written", zap.String("path", outMD))
	}

	renderer.RenderSummary(cmd.OutOrStdout(), report)
	return nil
}

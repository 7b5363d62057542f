package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/ppiankov/snpscope/internal/model"
)

const (
	titleWidth = 60
	idWidth    = 16
)

// Renderer writes reports as JSON, Markdown or a terminal summary
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a new renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// WriteJSON encodes the report as indented JSON
func (r *Renderer) WriteJSON(w io.Writer, report *model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// RenderJSON writes the report to a JSON file
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	return writeFile(path, func(w io.Writer) error { return r.WriteJSON(w, report) })
}

// RenderMarkdown writes the report to a Markdown file
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, func(w io.Writer) error { return r.WriteMarkdown(w, report) })
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteMarkdown renders the synthesis, contradictions and score
func (r *Renderer) WriteMarkdown(w io.Writer, report *model.Report) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# SNP Analysis: %s\n\n", report.Topic)
	fmt.Fprintf(&sb, "- **Identifiers:** %s\n", strings.Join(report.Identifiers, ", "))
	fmt.Fprintf(&sb, "- **Generated:** %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "- **Run:** `%s`\n", report.RunID)
	if report.Synthesis != nil && report.Synthesis.Provider != "" {
		fmt.Fprintf(&sb, "- **Model:** %s (%s)\n", report.Synthesis.Model, report.Synthesis.Provider)
	}
	sb.WriteString("\n")

	sb.WriteString("## Evidence\n\n")
	sb.WriteString("| Identifier | Gene | Papers | Full text | GWAS hits | ClinVar |\n")
	sb.WriteString("|---|---|---|---|---|---|\n")
	for _, id := range report.Identifiers {
		b := report.Bundles[id]
		if b == nil {
			continue
		}
		gene := "-"
		if b.Variant != nil && b.Variant.Gene != "" {
			gene = b.Variant.Gene
		}
		fmt.Fprintf(&sb, "| %s | %s | %d | %d | %d | %d |\n",
			id, gene, len(b.Papers), b.FullTextCount(), len(b.Associations), len(b.Clinical))
	}
	if ft := report.FullText; ft != nil {
		fmt.Fprintf(&sb, "\nFull text resolved for %d of %d papers%s.\n", ft.Resolved, ft.Attempted, bySource(ft.BySource))
	}
	sb.WriteString("\n")

	if s := report.Synthesis; s != nil {
		if s.Summary != "" {
			sb.WriteString(s.Summary)
			sb.WriteString("\n\n")
		}
		for _, sec := range s.Sections {
			sb.WriteString("---\n\n")
			sb.WriteString(sec.Body)
			sb.WriteString("\n\n")
		}
	}

	sb.WriteString("## Contradictions\n\n")
	switch c := report.Contradictions; {
	case c == nil:
		sb.WriteString("_Contradiction detection was skipped._\n\n")
	case len(c.Contradictions) == 0:
		fmt.Fprintf(&sb, "No contradictions found in %d comparisons (%s).\n\n", c.TotalPairs, c.Model)
	default:
		fmt.Fprintf(&sb, "Found %d of %d comparisons (%s).\n\n", len(c.Contradictions), c.TotalPairs, c.Model)
		for i, cr := range c.Contradictions {
			fmt.Fprintf(&sb, "%d. **%s** vs **%s** (score %.2f)\n", i+1, cr.Statement1ID, cr.Statement2ID, cr.Score)
			fmt.Fprintf(&sb, "   - %s\n   - %s\n", cr.Statement1Text, cr.Statement2Text)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "## Evidence Strength: %d/100 (%s)\n\n", report.Score.Index, report.Score.Confidence)
	for _, sig := range report.Score.Signals {
		fmt.Fprintf(&sb, "- **%s** [%s]: %s\n", sig.Type, sig.Severity, sig.Description)
	}

	if r.includeFooter {
		sb.WriteString("\n---\n\n_Generated by snpscope. Scores describe the evidence retrieved, not clinical validity._\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func bySource(m map[string]int) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", k, m[k]))
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// RenderSummary prints a compact terminal summary
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) {
	fmt.Fprintf(w, "\n%s\n", report.Topic)
	fmt.Fprintf(w, "Evidence index: %d/100 (%s)\n\n", report.Score.Index, report.Score.Confidence)

	for _, id := range report.Identifiers {
		b := report.Bundles[id]
		if b == nil {
			continue
		}
		fmt.Fprintf(w, "%s  %d papers, %d full text, %d associations\n",
			runewidth.FillRight(id, idWidth), len(b.Papers), b.FullTextCount(), len(b.Associations))
		for _, p := range b.Papers {
			tag := " "
			if p.HasFullText {
				tag = "✓"
			}
			fmt.Fprintf(w, "  %s %s %s\n", tag, runewidth.FillRight(runewidth.Truncate(p.Title, titleWidth, "…"), titleWidth), p.Year)
		}
	}

	if c := report.Contradictions; c != nil {
		fmt.Fprintf(w, "\nContradictions: %d of %d comparisons\n", len(c.Contradictions), c.TotalPairs)
		for _, cr := range c.Contradictions {
			fmt.Fprintf(w, "  %.2f  %s vs %s\n", cr.Score,
				runewidth.Truncate(cr.Statement1ID, idWidth, "…"),
				runewidth.Truncate(cr.Statement2ID, idWidth, "…"))
		}
	}

	for _, sig := range report.Score.Signals {
		if sig.Severity == model.SeverityInfo {
			continue
		}
		fmt.Fprintf(w, "  ! %s\n", sig.Description)
	}
}

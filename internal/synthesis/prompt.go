// Package synthesis turns evidence bundles into a language-model prompt and
// parses the sectioned answer back into per-paper analyses.
package synthesis

import (
	"fmt"
	"strings"

	"github.com/ppiankov/snpscope/internal/model"
)

// MaxTokens is the output ceiling for the synthesis call
const MaxTokens = 8000

// SystemPrompt fixes the tone and format of the synthesis answer
const SystemPrompt = `You are an expert analyst of genetic variants, pharmacogenomics and SNP association studies. ` +
	`Cite every paper with authors, year, journal and PMID. Prefer GWAS, meta-analyses and large cohorts. ` +
	`Give a detailed per-genotype analysis and use precise scientific terminology. ` +
	`Where the supplied data is thin, draw on published literature you know rather than reporting that nothing was found.`

// Paper content tags
const (
	TagFullText     = "✓ FULL TEXT"
	TagAbstractOnly = "Abstract only"
)

// noDataNote is emitted for an identifier no database returned anything for
const noDataNote = "⚠️ No DB data found. Use published literature you know and cite 5-10 relevant papers."

// PromptOptions tune the prompt header
type PromptOptions struct {
	Context string // Extra free-text research context
}

// BuildPrompt assembles one prompt covering every identifier's bundle.
// Identifiers are emitted in the given order; a missing bundle is treated as empty.
func BuildPrompt(topic string, identifiers []string, bundles map[string]*model.EvidenceBundle, opts PromptOptions) string {
	var b strings.Builder

	fmt.Fprintf(&b, "SNP Analysis: %s", topic)
	if opts.Context != "" {
		fmt.Fprintf(&b, " | %s", opts.Context)
	}
	b.WriteString("\nSources: dbSNP, Ensembl, GWAS Catalog, PubMed (+PMC full text), Europe PMC, Semantic Scholar, preprints, ClinVar, PharmGKB\n")
	fmt.Fprintf(&b, "%q papers: analyze completely. %q: supplement with published knowledge. Include contradictory findings.\n",
		TagFullText, TagAbstractOnly)

	for _, id := range identifiers {
		bundle := bundles[id]
		if bundle == nil {
			bundle = model.NewEvidenceBundle(id, topic)
		}
		writeBundle(&b, bundle)
	}

	writeInstructions(&b, topic, identifiers)
	return b.String()
}

func writeBundle(b *strings.Builder, bundle *model.EvidenceBundle) {
	fmt.Fprintf(b, "\n## %s\n", bundle.Identifier)

	if !bundle.HasData() {
		b.WriteString(noDataNote + "\n\n")
	}

	if v := bundle.Variant; v != nil {
		fmt.Fprintf(b, "### dbSNP: Chr%s:%s | %s | %s | MAF=%s\n\n",
			model.OrPlaceholder(v.Chromosome, model.PlaceholderUnknown),
			model.OrPlaceholder(v.Position, model.PlaceholderUnknown),
			model.OrPlaceholder(v.Gene, model.PlaceholderUnknown),
			model.OrPlaceholder(v.Alleles, model.PlaceholderUnknown),
			model.OrPlaceholder(v.MAF, model.PlaceholderUnknown))
	}

	if e := bundle.Ensembl; e != nil {
		fmt.Fprintf(b, "### Ensembl: %s | MAF=%s | %s\n\n",
			model.OrPlaceholder(e.Minor, model.PlaceholderUnknown),
			model.OrPlaceholder(e.MAF, model.PlaceholderUnknown),
			model.OrPlaceholder(e.Consequence, model.PlaceholderUnknown))
	}

	if len(bundle.Associations) > 0 {
		fmt.Fprintf(b, "### GWAS (%d associations):\n", len(bundle.Associations))
		for i, a := range bundle.Associations {
			fmt.Fprintf(b, "%d. %s | p=%s | OR=%s | %s | PMID:%s | %s\n",
				i+1, a.Trait, a.PValue, a.OddsRatioBeta, a.RiskAllele, a.PubMedID, a.Year)
		}
		b.WriteString("\n")
	}

	if len(bundle.Papers) > 0 {
		fmt.Fprintf(b, "### Papers (%d found, %d with FULL TEXT):\n", len(bundle.Papers), bundle.FullTextCount())
		for i, p := range bundle.Papers {
			writePaper(b, i+1, p)
		}
	}

	if len(bundle.Clinical) > 0 {
		fmt.Fprintf(b, "### ClinVar (%d entries):\n", len(bundle.Clinical))
		for i, c := range bundle.Clinical {
			fmt.Fprintf(b, "%d. %s | %s | %s\n", i+1, c.ClinicalSignificance, c.Condition, c.Gene)
		}
		b.WriteString("\n")
	}

	if pg := bundle.PharmGKB; pg != nil {
		fmt.Fprintf(b, "### PharmGKB: %s | Annotations: %d\n\n",
			model.OrPlaceholder(pg.Gene, model.PlaceholderUnknown), pg.ClinicalAnnotations)
	}
}

func writePaper(b *strings.Builder, n int, p model.PaperRecord) {
	fmt.Fprintf(b, "%d. %s\n", n, p.Title)
	fmt.Fprintf(b, "   Authors: %s | Year: %s | Journal: %s | Source: %s%s\n",
		model.OrPlaceholder(p.Authors, model.PlaceholderUnknownCap),
		model.OrPlaceholder(p.Year, model.PlaceholderUnknownCap),
		model.OrPlaceholder(p.Journal, model.PlaceholderUnknownCap),
		p.Source, paperIDs(p))

	switch {
	case p.HasFullText && p.FullText != "":
		fmt.Fprintf(b, "   [%s]\n   Content: %s\n\n", TagFullText, p.FullText)
	case p.HasAbstract():
		fmt.Fprintf(b, "   [%s]\n   Content: %s\n\n", TagAbstractOnly, p.Abstract)
	default:
		fmt.Fprintf(b, "   [%s] (no content)\n\n", TagAbstractOnly)
	}
}

func paperIDs(p model.PaperRecord) string {
	var parts []string
	if p.PMID != "" {
		parts = append(parts, "PMID:"+p.PMID)
	}
	if p.PMCID != "" {
		parts = append(parts, "PMC ID: "+p.PMCID)
	}
	if p.DOI != "" {
		parts = append(parts, "DOI: "+p.DOI)
	}
	if p.ArxivID != "" {
		parts = append(parts, "arXiv: "+p.ArxivID)
	}
	if len(parts) == 0 {
		return ""
	}
	return " | " + strings.Join(parts, " | ")
}

func writeInstructions(b *strings.Builder, topic string, identifiers []string) {
	effects := make([]string, 0, len(identifiers))
	for _, id := range identifiers {
		effects = append(effects, id+": OR, p-value, effect")
	}

	fmt.Fprintf(b, `
## ANALYSIS STRUCTURE:

Analyze EACH paper separately. For %q papers use Methods, Results and Discussion. For abstracts, supplement with published knowledge.
Separate the overall summary, each paper analysis and the final synthesis with a line containing only "---".

### 1. OVERALL SUMMARY:
Overview of the variants for %q, key findings, clinical relevance, consensus and controversies.

---

### 2. PER-PAPER ANALYSIS (one block per paper, 5-10 per variant):

**Paper [X]: [Title]**
Authors | Year | Journal | PMID | Design: [GWAS/Meta/RCT/Cohort] | n=[N] | Population
Variants: %s
**Findings:** 5-7 sentences covering all key results
**Genotypes:** effect or risk per genotype
**Statistics:** OR [95%% CI], p-value, beta, effect direction
**Clinical significance** | **Strengths** | **Limitations**
**Contradictions:** conflicts with other studies, opposite genotype effects, alternative interpretations

---

### 3. FINAL SYNTHESIS:
- Consensus view | Evidence strength (strong/moderate/weak/conflicting)
- **CONFLICTING FINDINGS SUMMARY:** every contradiction with its likely explanation
- Clinical recommendations | Knowledge gaps

**RULES:** Analyze ALL papers listed. Always document contradictions. English only.
`, TagFullText, topic, strings.Join(effects, "; "))
}

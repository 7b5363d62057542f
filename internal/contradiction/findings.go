// Package contradiction extracts per-paper findings from a synthesis and
// scores every pair with local natural-language-inference models.
package contradiction

import (
	"regexp"
	"strings"

	"github.com/ppiankov/snpscope/internal/model"
)

const (
	minParagraphChars = 50 // Fallback paragraph must be longer than this
	minFindingChars   = 30 // Shorter findings are dropped
)

// DefaultFindingMaxLength fits the NLI models' input window
const DefaultFindingMaxLength = 500

var (
	findingsBlockRe = regexp.MustCompile(`(?is)\*\*(?:main |key )?findings?:?\*\*:?\s*(.*?)(?:\n\*\*|\z)`)
	markdownRe      = regexp.MustCompile(`[#*\-]`)
)

// ExtractFindings returns at most one finding per paper section, in section order
func ExtractFindings(s *model.Synthesis, maxLen int) []model.Finding {
	if s == nil {
		return nil
	}
	if maxLen <= 0 {
		maxLen = DefaultFindingMaxLength
	}

	var findings []model.Finding
	for _, sec := range s.Sections {
		text := labeledFindings(sec.Body)
		if text == "" {
			text = firstParagraph(sec.Body)
		}
		if len([]rune(text)) <= minFindingChars {
			continue
		}
		findings = append(findings, model.Finding{
			ID:    sec.PaperID,
			Title: sec.Title,
			Text:  truncateRunes(text, maxLen),
		})
	}
	return findings
}

// labeledFindings reads a **Findings:** block up to the next bold label
func labeledFindings(body string) string {
	m := findingsBlockRe.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return collapseSpace(m[1])
}

// firstParagraph returns the first paragraph with enough text once markdown is stripped
func firstParagraph(body string) string {
	for _, p := range strings.Split(body, "\n\n") {
		clean := strings.TrimSpace(markdownRe.ReplaceAllString(p, ""))
		if len([]rune(clean)) > minParagraphChars {
			return collapseSpace(clean)
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

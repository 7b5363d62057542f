package model

import "strings"

// PaperRecord is a normalized paper from any literature source.
// It is created by a source adapter, enriched by the reducer and the
// full-text resolver, and read by the prompt builder.
type PaperRecord struct {
	Title    string `json:"title"` // Dedup key after normalization
	Authors  string `json:"authors"`
	Year     string `json:"year"`
	Journal  string `json:"journal"`
	Source   string `json:"source"` // Adapter that produced the record
	Abstract string `json:"abstract"`

	FullText       string `json:"full_text,omitempty"`
	HasFullText    bool   `json:"has_full_text"`
	FullTextSource string `json:"full_text_source,omitempty"`

	PMID    string `json:"pmid,omitempty"`
	PMCID   string `json:"pmc_id,omitempty"`
	DOI     string `json:"doi,omitempty"`
	ArxivID string `json:"arxiv_id,omitempty"`
	PDFURL  string `json:"pdf_url,omitempty"`
	URL     string `json:"url,omitempty"`

	Citations int `json:"citations,omitempty"`
	Upvotes   int `json:"upvotes,omitempty"`

	IsGWAS bool `json:"is_gwas"`

	RelevanceScore   *float64 `json:"relevance_score,omitempty"`
	WasSummarized    bool     `json:"was_summarized,omitempty"`
	OriginalAbstract string   `json:"original_abstract,omitempty"`
}

// TitleKey returns the normalized deduplication key
func (p PaperRecord) TitleKey() string {
	return NormalizeTitle(p.Title)
}

// HasAbstract reports whether the record carries any abstract text
func (p PaperRecord) HasAbstract() bool {
	return strings.TrimSpace(p.Abstract) != ""
}

// NormalizeTitle lowercases and trims a title for deduplication
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// IsGWASText reports whether title and abstract mention a genome-wide study
func IsGWASText(title, abstract string) bool {
	text := strings.ToLower(title + " " + abstract)
	return strings.Contains(text, "gwas") || strings.Contains(text, "genome-wide")
}

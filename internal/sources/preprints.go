package sources

import (
	"context"
	"strings"

	"github.com/ppiankov/snpscope/internal/model"
)

// preprintServers are the Europe PMC publishers kept by the preprint adapter
var preprintServers = []string{"biorxiv", "medrxiv"}

// PreprintAdapter searches bioRxiv and medRxiv preprints through Europe PMC
type PreprintAdapter struct {
	europePMC *EuropePMC
	client    *Client
}

// NewPreprintAdapter creates a preprint adapter
func NewPreprintAdapter(client *Client, europePMC *EuropePMC) *PreprintAdapter {
	return &PreprintAdapter{client: client, europePMC: europePMC}
}

// Name returns the source name
func (a *PreprintAdapter) Name() string { return SourcePreprints }

// SearchPapers returns preprints matching the search term
func (a *PreprintAdapter) SearchPapers(ctx context.Context, identifier, topic string, max int) []model.PaperRecord {
	query := "(" + SearchTerm(identifier, topic) + ") AND SRC:PPR"
	results, err := a.europePMC.Search(ctx, query, max*2)
	if err != nil {
		a.client.degrade(SourcePreprints, identifier, err)
		return []model.PaperRecord{}
	}

	papers := make([]model.PaperRecord, 0, max)
	for _, r := range results {
		if len(papers) >= max {
			break
		}
		server := preprintServer(r.BookOrReportDetails.Publisher)
		if server == "" || strings.TrimSpace(r.Title) == "" {
			continue
		}
		title := collapseSpace(r.Title)
		abstract := collapseSpace(stripTags(r.AbstractText))

		authors := model.PlaceholderUnknownCap
		if r.AuthorString != "" {
			authors = formatAuthors(splitAuthorString(r.AuthorString))
		}

		p := model.PaperRecord{
			Title:    title,
			Authors:  authors,
			Year:     model.OrPlaceholder(r.PubYear, model.PlaceholderUnknownCap),
			Journal:  server + " (Preprint)",
			Source:   SourcePreprints,
			Abstract: abstract,
			DOI:      r.DOI,
			PDFURL:   r.PDFURL(),
			IsGWAS:   model.IsGWASText(title, abstract),
		}
		if r.DOI != "" {
			p.URL = "https://doi.org/" + r.DOI
		}
		papers = append(papers, p)
	}
	return papers
}

func preprintServer(publisher string) string {
	lower := strings.ToLower(publisher)
	for _, s := range preprintServers {
		if strings.Contains(lower, s) {
			return publisher
		}
	}
	return ""
}

func splitAuthorString(s string) []string {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	parts := strings.Split(s, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		// "Smith J" keeps the surname only
		if i := strings.LastIndex(p, " "); i > 0 {
			p = p[:i]
		}
		names = append(names, p)
	}
	return names
}

// stripTags removes inline markup such as <h4> and <i> from Europe PMC abstracts
func stripTags(s string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>' && inTag:
			inTag = false
			sb.WriteByte(' ')
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

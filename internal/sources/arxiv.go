package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ppiankov/snpscope/internal/model"
)

const arxivJournal = "ArXiv (Preprint)"

// ArXivAdapter searches the arXiv Atom export API
type ArXivAdapter struct {
	client  *Client
	baseURL string
}

// NewArXivAdapter creates an arXiv adapter
func NewArXivAdapter(client *Client, baseURL string) *ArXivAdapter {
	return &ArXivAdapter{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// Name returns the source name
func (a *ArXivAdapter) Name() string { return SourceArXiv }

type arxivFeed struct {
	Entries []struct {
		ID        string `xml:"id"`
		Published string `xml:"published"`
		Title     string `xml:"title"`
		Summary   string `xml:"summary"`
		DOI       string `xml:"doi"`
		Authors   []struct {
			Name string `xml:"name"`
		} `xml:"author"`
	} `xml:"entry"`
}

// SearchPapers returns arXiv preprints; every entry links its PDF
func (a *ArXivAdapter) SearchPapers(ctx context.Context, identifier, topic string, max int) []model.PaperRecord {
	q := url.Values{}
	q.Set("search_query", "all:"+SearchTerm(identifier, topic))
	q.Set("start", "0")
	q.Set("max_results", strconv.Itoa(max))
	q.Set("sortBy", "relevance")
	q.Set("sortOrder", "descending")

	body, err := a.client.Get(ctx, SourceArXiv, a.baseURL+"/query?"+q.Encode())
	if err != nil {
		a.client.degrade(SourceArXiv, identifier, err)
		return []model.PaperRecord{}
	}
	papers, err := ParseArXivFeed(body)
	if err != nil {
		a.client.degrade(SourceArXiv, identifier, err)
		return []model.PaperRecord{}
	}
	return papers
}

// ParseArXivFeed converts an Atom feed into paper records
func ParseArXivFeed(body []byte) ([]model.PaperRecord, error) {
	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("decode atom: %w", err)
	}

	papers := make([]model.PaperRecord, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		id := arxivIDFromURL(e.ID)
		title := collapseSpace(e.Title)
		if id == "" || title == "" {
			continue
		}
		abstract := collapseSpace(e.Summary)

		names := make([]string, 0, len(e.Authors))
		for _, au := range e.Authors {
			names = append(names, strings.TrimSpace(au.Name))
		}
		year := model.PlaceholderUnknownCap
		if len(e.Published) >= 4 {
			year = e.Published[:4]
		}

		papers = append(papers, model.PaperRecord{
			Title:       title,
			Authors:     formatAuthors(names),
			Year:        year,
			Journal:     arxivJournal,
			Source:      SourceArXiv,
			Abstract:    abstract,
			DOI:         strings.TrimSpace(e.DOI),
			ArxivID:     id,
			PDFURL:      ArXivPDFURL(id),
			URL:         "https://arxiv.org/abs/" + id,
			HasFullText: true,
			IsGWAS:      model.IsGWASText(title, abstract),
		})
	}
	return papers, nil
}

// ArXivPDFURL returns the canonical PDF location of an arXiv ID
func ArXivPDFURL(id string) string {
	return "https://arxiv.org/pdf/" + id + ".pdf"
}

func arxivIDFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, "/abs/"); i >= 0 {
		return raw[i+len("/abs/"):]
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

package sources

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/snpscope/internal/model"
)

const scholarFields = "title,abstract,year,venue,authors,citationCount,externalIds,openAccessPdf,url"

// ScholarAdapter searches the Semantic Scholar graph API
type ScholarAdapter struct {
	client  *Client
	baseURL string
	apiKey  string
}

// NewScholarAdapter creates a Semantic Scholar adapter
func NewScholarAdapter(client *Client, baseURL, apiKey string) *ScholarAdapter {
	return &ScholarAdapter{client: client, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

// Name returns the source name
func (a *ScholarAdapter) Name() string { return SourceScholar }

type scholarPaper struct {
	PaperID       string `json:"paperId"`
	Title         string `json:"title"`
	Abstract      string `json:"abstract"`
	Year          int    `json:"year"`
	Venue         string `json:"venue"`
	CitationCount int    `json:"citationCount"`
	URL           string `json:"url"`
	Authors       []struct {
		Name string `json:"name"`
	} `json:"authors"`
	ExternalIDs struct {
		DOI           string     `json:"DOI"`
		PubMed        flexString `json:"PubMed"`
		PubMedCentral flexString `json:"PubMedCentral"`
		ArXiv         string     `json:"ArXiv"`
	} `json:"externalIds"`
	OpenAccessPDF *struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
}

// SearchPapers returns papers sorted by citation count, most cited first
func (a *ScholarAdapter) SearchPapers(ctx context.Context, identifier, topic string, max int) []model.PaperRecord {
	q := url.Values{}
	q.Set("query", SearchTerm(identifier, topic))
	q.Set("limit", strconv.Itoa(max))
	q.Set("fields", scholarFields)

	var resp struct {
		Data []scholarPaper `json:"data"`
	}
	if err := a.getJSON(ctx, a.baseURL+"/paper/search?"+q.Encode(), &resp); err != nil {
		a.client.degrade(SourceScholar, identifier, err)
		return []model.PaperRecord{}
	}

	papers := make([]model.PaperRecord, 0, len(resp.Data))
	for _, sp := range resp.Data {
		if strings.TrimSpace(sp.Title) == "" {
			continue
		}
		papers = append(papers, convertScholarPaper(sp))
	}
	sort.SliceStable(papers, func(i, j int) bool {
		return papers[i].Citations > papers[j].Citations
	})
	return papers
}

// OpenAccessPDF returns the open-access PDF link Semantic Scholar knows for a DOI
func (a *ScholarAdapter) OpenAccessPDF(ctx context.Context, doi string) (string, error) {
	var sp scholarPaper
	u := a.baseURL + "/paper/DOI:" + doi + "?fields=openAccessPdf"
	if err := a.getJSON(ctx, u, &sp); err != nil {
		return "", err
	}
	if sp.OpenAccessPDF == nil || sp.OpenAccessPDF.URL == "" {
		return "", fmt.Errorf("scholar: no open access pdf for %s", doi)
	}
	return sp.OpenAccessPDF.URL, nil
}

func (a *ScholarAdapter) getJSON(ctx context.Context, u string, v any) error {
	req := Request{Source: SourceScholar, URL: u, Header: map[string]string{"Accept": "application/json"}, Accept: AcceptJSON}
	if a.apiKey != "" {
		req.Header["x-api-key"] = a.apiKey
	}
	body, err := a.client.Do(ctx, req)
	if err != nil {
		return err
	}
	return decodeJSON(SourceScholar, body, v)
}

func convertScholarPaper(sp scholarPaper) model.PaperRecord {
	names := make([]string, 0, len(sp.Authors))
	for _, au := range sp.Authors {
		names = append(names, au.Name)
	}
	year := model.PlaceholderUnknownCap
	if sp.Year > 0 {
		year = strconv.Itoa(sp.Year)
	}

	p := model.PaperRecord{
		Title:     strings.TrimSpace(sp.Title),
		Authors:   formatAuthors(names),
		Year:      year,
		Journal:   model.OrPlaceholder(sp.Venue, "Semantic Scholar"),
		Source:    SourceScholar,
		Abstract:  sp.Abstract,
		PMID:      string(sp.ExternalIDs.PubMed),
		DOI:       sp.ExternalIDs.DOI,
		ArxivID:   sp.ExternalIDs.ArXiv,
		URL:       sp.URL,
		Citations: sp.CitationCount,
		IsGWAS:    model.IsGWASText(sp.Title, sp.Abstract),
	}
	if pmc := string(sp.ExternalIDs.PubMedCentral); pmc != "" {
		p.PMCID = "PMC" + strings.TrimPrefix(pmc, "PMC")
	}
	if sp.OpenAccessPDF != nil {
		p.PDFURL = sp.OpenAccessPDF.URL
	}
	return p
}

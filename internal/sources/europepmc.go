package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// EuropePMC is a thin client for the Europe PMC REST search. It backs the
// PubMed ID expansion, the preprint adapter and the full-text downloader.
type EuropePMC struct {
	client  *Client
	baseURL string
	source  string
}

// NewEuropePMC creates a Europe PMC client that reports under source
func NewEuropePMC(client *Client, baseURL, source string) *EuropePMC {
	if source == "" {
		source = SourceEuropePMC
	}
	return &EuropePMC{client: client, baseURL: strings.TrimRight(baseURL, "/"), source: source}
}

// EuropePMCResult is one search hit in the core result format
type EuropePMCResult struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	PMID         string `json:"pmid"`
	PMCID        string `json:"pmcid"`
	DOI          string `json:"doi"`
	Title        string `json:"title"`
	AuthorString string `json:"authorString"`
	PubYear      string `json:"pubYear"`
	AbstractText string `json:"abstractText"`
	JournalInfo  struct {
		Journal struct {
			Title string `json:"title"`
		} `json:"journal"`
	} `json:"journalInfo"`
	BookOrReportDetails struct {
		Publisher string `json:"publisher"`
	} `json:"bookOrReportDetails"`
	FullTextURLList struct {
		FullTextURL []struct {
			Availability  string `json:"availability"`
			DocumentStyle string `json:"documentStyle"`
			Site          string `json:"site"`
			URL           string `json:"url"`
		} `json:"fullTextUrl"`
	} `json:"fullTextUrlList"`
}

type europePMCResponse struct {
	HitCount   int `json:"hitCount"`
	ResultList struct {
		Result []EuropePMCResult `json:"result"`
	} `json:"resultList"`
}

// Search runs query and returns up to pageSize core results
func (e *EuropePMC) Search(ctx context.Context, query string, pageSize int) ([]EuropePMCResult, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("format", "json")
	q.Set("pageSize", strconv.Itoa(pageSize))
	q.Set("resultType", "core")

	var resp europePMCResponse
	if err := e.client.GetJSON(ctx, e.source, e.baseURL+"/search?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("europepmc search: %w", err)
	}
	return resp.ResultList.Result, nil
}

// PDFURL returns the first PDF link Europe PMC lists for a record
func (r EuropePMCResult) PDFURL() string {
	for _, u := range r.FullTextURLList.FullTextURL {
		if strings.EqualFold(u.DocumentStyle, "pdf") && u.URL != "" {
			return u.URL
		}
	}
	return ""
}

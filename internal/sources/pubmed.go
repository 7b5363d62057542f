package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/snpscope/internal/model"
)

const (
	pubmedSearchDepth = 100
	pubmedMaxFetch    = 50
	pubmedMaxPMID     = 50_000_000
)

// PubMedAdapter is the primary literature index. IDs come from PubMed
// esearch and Europe PMC, records from efetch XML.
type PubMedAdapter struct {
	client    *Client
	baseURL   string
	europePMC *EuropePMC
	apiKey    string
	tool      string
	email     string
}

// NewPubMedAdapter creates a PubMed adapter
func NewPubMedAdapter(client *Client, eutilsURL string, europePMC *EuropePMC, apiKey, tool, email string) *PubMedAdapter {
	return &PubMedAdapter{
		client:    client,
		baseURL:   strings.TrimRight(eutilsURL, "/"),
		europePMC: europePMC,
		apiKey:    apiKey,
		tool:      tool,
		email:     email,
	}
}

// Name returns the source name
func (a *PubMedAdapter) Name() string { return SourcePubMed }

// SearchPapers returns up to min(max, 50) papers, GWAS studies first
func (a *PubMedAdapter) SearchPapers(ctx context.Context, identifier, topic string, max int) []model.PaperRecord {
	term := SearchTerm(identifier, topic)

	pmids, err := a.esearch(ctx, term)
	if err != nil {
		a.client.degrade(SourcePubMed, identifier, err)
	}

	if a.europePMC != nil {
		results, err := a.europePMC.Search(ctx, term, pubmedSearchDepth)
		if err != nil {
			a.client.degrade(SourceEuropePMC, identifier, err)
		}
		for _, r := range results {
			pmids = append(pmids, r.PMID)
		}
	}

	ids := filterPMIDs(pmids, min(max, pubmedMaxFetch))
	if len(ids) == 0 {
		return []model.PaperRecord{}
	}

	body, err := a.client.Do(ctx, Request{
		Source: SourcePubMed,
		URL:    a.baseURL + "/efetch.fcgi?" + a.params(url.Values{"db": {"pubmed"}, "id": {strings.Join(ids, ",")}, "retmode": {"xml"}}).Encode(),
	})
	if err != nil {
		a.client.degrade(SourcePubMed, identifier, err)
		return []model.PaperRecord{}
	}

	papers, err := ParsePubMedXML(body)
	if err != nil {
		a.client.degrade(SourcePubMed, identifier, err)
		return []model.PaperRecord{}
	}

	sort.SliceStable(papers, func(i, j int) bool {
		return papers[i].IsGWAS && !papers[j].IsGWAS
	})
	return papers
}

func (a *PubMedAdapter) esearch(ctx context.Context, term string) ([]string, error) {
	q := a.params(url.Values{
		"db":      {"pubmed"},
		"term":    {term},
		"retmax":  {strconv.Itoa(pubmedSearchDepth)},
		"retmode": {"json"},
		"sort":    {"relevance"},
	})

	var resp struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := a.client.GetJSON(ctx, SourcePubMed, a.baseURL+"/esearch.fcgi?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("esearch: %w", err)
	}
	return resp.ESearchResult.IDList, nil
}

func (a *PubMedAdapter) params(q url.Values) url.Values {
	if a.apiKey != "" {
		q.Set("api_key", a.apiKey)
	}
	if a.tool != "" {
		q.Set("tool", a.tool)
	}
	if a.email != "" {
		q.Set("email", a.email)
	}
	return q
}

// filterPMIDs dedups, keeps numeric IDs in (0, 50M) and caps the list
func filterPMIDs(ids []string, limit int) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, limit)
	for _, id := range ids {
		if len(out) >= limit {
			break
		}
		id = strings.TrimSpace(id)
		n, err := strconv.Atoi(id)
		if err != nil || n <= 0 || n >= pubmedMaxPMID {
			continue
		}
		key := strconv.Itoa(n)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

// xmlText collects all character data under an element, flattening inline markup
type xmlText string

func (t *xmlText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var sb strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch v := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			sb.Write(v)
		}
	}
	*t = xmlText(strings.TrimSpace(sb.String()))
	return nil
}

type pubmedArticleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	PMID    string `xml:"MedlineCitation>PMID"`
	Article struct {
		Title    xmlText   `xml:"ArticleTitle"`
		Abstract []xmlText `xml:"Abstract>AbstractText"`
		Journal  struct {
			Title   string `xml:"Title"`
			PubDate struct {
				Year        string `xml:"Year"`
				MedlineDate string `xml:"MedlineDate"`
			} `xml:"JournalIssue>PubDate"`
		} `xml:"Journal"`
		Authors []struct {
			LastName       string `xml:"LastName"`
			CollectiveName string `xml:"CollectiveName"`
		} `xml:"AuthorList>Author"`
	} `xml:"MedlineCitation>Article"`
	ArticleIDs []struct {
		IDType string `xml:"IdType,attr"`
		Value  string `xml:",chardata"`
	} `xml:"PubmedData>ArticleIdList>ArticleId"`
}

// ParsePubMedXML converts an efetch response into paper records
func ParsePubMedXML(body []byte) ([]model.PaperRecord, error) {
	var set pubmedArticleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("decode efetch: %w", err)
	}

	papers := make([]model.PaperRecord, 0, len(set.Articles))
	for _, art := range set.Articles {
		parts := make([]string, 0, len(art.Article.Abstract))
		for _, p := range art.Article.Abstract {
			if p != "" {
				parts = append(parts, string(p))
			}
		}
		abstract := strings.Join(parts, " ")
		title := model.OrPlaceholder(string(art.Article.Title), "Unknown title")

		year := art.Article.Journal.PubDate.Year
		if year == "" && len(art.Article.Journal.PubDate.MedlineDate) >= 4 {
			year = art.Article.Journal.PubDate.MedlineDate[:4]
		}

		p := model.PaperRecord{
			Title:    title,
			Authors:  formatAuthors(lastNames(art)),
			Year:     model.OrPlaceholder(year, model.PlaceholderUnknownCap),
			Journal:  model.OrPlaceholder(art.Article.Journal.Title, model.PlaceholderUnknownCap),
			Source:   SourcePubMed,
			Abstract: abstract,
			PMID:     strings.TrimSpace(art.PMID),
			IsGWAS:   model.IsGWASText(title, abstract),
		}
		if p.PMID != "" {
			p.URL = "https://pubmed.ncbi.nlm.nih.gov/" + p.PMID + "/"
		}
		for _, id := range art.ArticleIDs {
			switch id.IDType {
			case "pmc":
				p.PMCID = strings.TrimSpace(id.Value)
			case "doi":
				p.DOI = strings.TrimSpace(id.Value)
			}
		}
		papers = append(papers, p)
	}
	return papers, nil
}

func lastNames(art pubmedArticle) []string {
	names := make([]string, 0, len(art.Article.Authors))
	for _, au := range art.Article.Authors {
		switch {
		case au.LastName != "":
			names = append(names, au.LastName)
		case au.CollectiveName != "":
			names = append(names, au.CollectiveName)
		}
	}
	return names
}

// formatAuthors keeps the first three names and appends "et al." for longer lists
func formatAuthors(names []string) string {
	switch {
	case len(names) == 0:
		return model.PlaceholderUnknownCap
	case len(names) > 3:
		return strings.Join(names[:3], ", ") + " et al."
	default:
		return strings.Join(names, ", ")
	}
}

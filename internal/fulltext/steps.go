package fulltext

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ppiankov/snpscope/internal/model"
	"github.com/ppiankov/snpscope/internal/sources"
)

// Step names, also used as FullTextSource values
const (
	StepRepository = "repository"
	StepPMC        = "pmc"
	StepUnpaywall  = "unpaywall"
	StepDownloader = "downloader"
	StepMirror     = "mirror"
	StepBrowser    = "browser"
)

// RepositoryStep fetches PDFs straight from open repositories
type RepositoryStep struct {
	downloader *Downloader
	classifier *DomainClassifier
	arxivBase  string
}

// NewRepositoryStep creates the repository step
func NewRepositoryStep(d *Downloader, classifier *DomainClassifier) *RepositoryStep {
	if classifier == nil {
		classifier = NewDomainClassifier(nil)
	}
	return &RepositoryStep{downloader: d, classifier: classifier, arxivBase: "https://arxiv.org/pdf/"}
}

func (s *RepositoryStep) Name() string { return StepRepository }

func (s *RepositoryStep) Fetch(ctx context.Context, paper model.PaperRecord) (*Document, error) {
	switch {
	case paper.ArxivID != "":
		return s.downloader.pdfDocument(ctx, s.arxivBase+paper.ArxivID)
	case paper.PDFURL != "" && s.classifier.IsOpenRepository(paper.PDFURL):
		return s.downloader.pdfDocument(ctx, paper.PDFURL)
	default:
		return nil, ErrNotApplicable
	}
}

// PMCStep reads open-access text from the PMC BioC API
type PMCStep struct {
	client   *sources.Client
	baseURL  string
	maxChars int
}

// NewPMCStep creates the BioC step
func NewPMCStep(client *sources.Client, baseURL string, maxChars int) *PMCStep {
	return &PMCStep{client: client, baseURL: strings.TrimRight(baseURL, "/"), maxChars: maxChars}
}

func (s *PMCStep) Name() string { return StepPMC }

type biocCollection struct {
	Documents []struct {
		Passages []struct {
			Text string `json:"text"`
		} `json:"passages"`
	} `json:"documents"`
}

func (s *PMCStep) Fetch(ctx context.Context, paper model.PaperRecord) (*Document, error) {
	pmcID := normalizePMCID(paper.PMCID)
	if pmcID == "" {
		return nil, ErrNotApplicable
	}

	u := s.baseURL + "/" + pmcID + "/unicode"
	body, err := s.client.Do(ctx, sources.Request{
		Source: sources.SourcePMC,
		URL:    u,
		Header: map[string]string{"Accept": "application/json"},
		Accept: sources.AcceptJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("pmc bioc: %w", err)
	}

	text, err := parseBioC(body)
	if err != nil {
		return nil, err
	}
	return &Document{Text: truncate(text, s.maxChars), URL: u}, nil
}

// parseBioC joins the passages of the first document; the API answers
// with either a collection or an array of collections
func parseBioC(body []byte) (string, error) {
	var collections []biocCollection
	if bytes.HasPrefix(bytes.TrimSpace(body), []byte("[")) {
		if err := json.Unmarshal(body, &collections); err != nil {
			return "", fmt.Errorf("pmc bioc: decode json: %w", err)
		}
	} else {
		var one biocCollection
		if err := json.Unmarshal(body, &one); err != nil {
			return "", fmt.Errorf("pmc bioc: decode json: %w", err)
		}
		collections = append(collections, one)
	}

	if len(collections) == 0 || len(collections[0].Documents) == 0 {
		return "", errors.New("pmc bioc: no documents")
	}

	var parts []string
	for _, p := range collections[0].Documents[0].Passages {
		if t := strings.TrimSpace(p.Text); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return "", errors.New("pmc bioc: no passage text")
	}
	return strings.Join(parts, "\n\n"), nil
}

func normalizePMCID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToUpper(id), "PMC") {
		return "PMC" + id
	}
	return "PMC" + id[3:]
}

// UnpaywallStep looks up the best open-access location for a DOI
type UnpaywallStep struct {
	client     *sources.Client
	downloader *Downloader
	baseURL    string
	email      string
}

// NewUnpaywallStep creates the Unpaywall step. Unpaywall requires a contact email.
func NewUnpaywallStep(client *sources.Client, d *Downloader, baseURL, email string) *UnpaywallStep {
	return &UnpaywallStep{client: client, downloader: d, baseURL: strings.TrimRight(baseURL, "/"), email: email}
}

func (s *UnpaywallStep) Name() string { return StepUnpaywall }

type unpaywallLocation struct {
	URLForPDF         string `json:"url_for_pdf"`
	URL               string `json:"url"`
	URLForLandingPage string `json:"url_for_landing_page"`
}

type unpaywallResponse struct {
	IsOA           bool               `json:"is_oa"`
	BestOALocation *unpaywallLocation `json:"best_oa_location"`
}

func (s *UnpaywallStep) Fetch(ctx context.Context, paper model.PaperRecord) (*Document, error) {
	if paper.DOI == "" || s.email == "" {
		return nil, ErrNotApplicable
	}

	u := fmt.Sprintf("%s/%s?email=%s", s.baseURL, url.PathEscape(paper.DOI), url.QueryEscape(s.email))
	var resp unpaywallResponse
	if err := s.client.GetJSON(ctx, sources.SourceUnpaywall, u, &resp); err != nil {
		return nil, fmt.Errorf("unpaywall: %w", err)
	}

	if !resp.IsOA || resp.BestOALocation == nil {
		return nil, fmt.Errorf("unpaywall: %s is not open access", paper.DOI)
	}
	loc := resp.BestOALocation
	pdfURL := loc.URLForPDF
	if pdfURL == "" {
		pdfURL = loc.URL
	}
	if pdfURL == "" {
		return nil, fmt.Errorf("unpaywall: no pdf location for %s", paper.DOI)
	}
	return s.downloader.pdfDocument(ctx, pdfURL)
}

package fulltext

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/snpscope/internal/extract"
	"github.com/ppiankov/snpscope/internal/model"
	"github.com/ppiankov/snpscope/internal/sources"
)

// strategy is one way of locating a PDF URL for a paper
type strategy struct {
	name string
	find func(ctx context.Context, paper model.PaperRecord) (string, error)
}

// DownloaderStep tries several PDF locators in order and downloads the first hit
type DownloaderStep struct {
	downloader *Downloader
	europePMC  *sources.EuropePMC
	scholar    *sources.ScholarAdapter
	doiBase    string
	logger     *zap.Logger
}

// NewDownloaderStep creates the multi-strategy downloader. europePMC and scholar may be nil.
func NewDownloaderStep(d *Downloader, europePMC *sources.EuropePMC, scholar *sources.ScholarAdapter, logger *zap.Logger) *DownloaderStep {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DownloaderStep{
		downloader: d,
		europePMC:  europePMC,
		scholar:    scholar,
		doiBase:    "https://doi.org/",
		logger:     logger,
	}
}

func (s *DownloaderStep) Name() string { return StepDownloader }

func (s *DownloaderStep) strategies() []strategy {
	return []strategy{
		{name: "citation_meta", find: s.citationMeta},
		{name: "europepmc", find: s.europePMCPDF},
		{name: "scholar", find: s.scholarPDF},
	}
}

func (s *DownloaderStep) Fetch(ctx context.Context, paper model.PaperRecord) (*Document, error) {
	if paper.PMID == "" && paper.DOI == "" {
		return nil, ErrNotApplicable
	}

	var errs []error
	for _, st := range s.strategies() {
		pdfURL, err := st.find(ctx, paper)
		if errors.Is(err, ErrNotApplicable) {
			continue
		}
		if err == nil {
			var doc *Document
			doc, err = s.downloader.pdfDocument(ctx, pdfURL)
			if err == nil {
				s.logger.Debug("pdf located", zap.String("strategy", st.name), zap.String("url", pdfURL))
				return doc, nil
			}
		}
		errs = append(errs, fmt.Errorf("%s: %w", st.name, err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return nil, ErrNotApplicable
	}
	return nil, errors.Join(errs...)
}

// citationMeta reads the citation_pdf_url meta tag of the DOI landing page
func (s *DownloaderStep) citationMeta(ctx context.Context, paper model.PaperRecord) (string, error) {
	if paper.DOI == "" {
		return "", ErrNotApplicable
	}
	res, err := s.downloader.Fetch(ctx, s.doiBase+paper.DOI)
	if err != nil {
		return "", err
	}
	if res.IsPDF() {
		return res.FinalURL, nil
	}
	if u := extract.CitationPDFURL(string(res.Body), res.FinalURL); u != "" {
		return u, nil
	}
	return "", errors.New("landing page has no citation_pdf_url")
}

// europePMCPDF asks Europe PMC for a PDF link for the PMID
func (s *DownloaderStep) europePMCPDF(ctx context.Context, paper model.PaperRecord) (string, error) {
	if paper.PMID == "" || s.europePMC == nil {
		return "", ErrNotApplicable
	}
	results, err := s.europePMC.Search(ctx, "EXT_ID:"+paper.PMID+" AND SRC:MED", 1)
	if err != nil {
		return "", err
	}
	for _, r := range results {
		if u := r.PDFURL(); u != "" {
			return u, nil
		}
	}
	return "", errors.New("no europe pmc pdf link")
}

func (s *DownloaderStep) scholarPDF(ctx context.Context, paper model.PaperRecord) (string, error) {
	if paper.DOI == "" || s.scholar == nil {
		return "", ErrNotApplicable
	}
	return s.scholar.OpenAccessPDF(ctx, strings.TrimSpace(paper.DOI))
}

// MirrorStep tries configured mirror sites keyed by DOI or PMID
type MirrorStep struct {
	downloader *Downloader
	mirrors    []string
}

// NewMirrorStep creates the mirror step; with no mirrors it never applies
func NewMirrorStep(d *Downloader, mirrors []string) *MirrorStep {
	var clean []string
	for _, m := range mirrors {
		if m = strings.TrimRight(strings.TrimSpace(m), "/"); m != "" {
			clean = append(clean, m)
		}
	}
	return &MirrorStep{downloader: d, mirrors: clean}
}

func (s *MirrorStep) Name() string { return StepMirror }

func (s *MirrorStep) Fetch(ctx context.Context, paper model.PaperRecord) (*Document, error) {
	var keys []string
	if paper.DOI != "" {
		keys = append(keys, paper.DOI)
	}
	if paper.PMID != "" {
		keys = append(keys, paper.PMID)
	}
	if len(s.mirrors) == 0 || len(keys) == 0 {
		return nil, ErrNotApplicable
	}

	var errs []error
	for _, base := range s.mirrors {
		for _, key := range keys {
			doc, err := s.fromPage(ctx, base+"/"+key)
			if err == nil {
				return doc, nil
			}
			errs = append(errs, err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}
	}
	return nil, errors.Join(errs...)
}

// fromPage downloads pageURL and follows the first PDF link that validates
func (s *MirrorStep) fromPage(ctx context.Context, pageURL string) (*Document, error) {
	return pdfFromPage(ctx, s.downloader, pageURL, nil)
}

// pdfFromPage fetches pageURL (or uses prefetched) and downloads the most
// reliable PDF link it embeds
func pdfFromPage(ctx context.Context, d *Downloader, pageURL string, prefetched *FetchResult) (*Document, error) {
	res := prefetched
	if res == nil {
		var err error
		if res, err = d.Fetch(ctx, pageURL); err != nil {
			return nil, err
		}
	}
	if res.IsPDF() {
		return &Document{PDF: res.Body, URL: res.FinalURL}, nil
	}

	links, err := extract.FindPDFLinks(string(res.Body), res.FinalURL)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", pageURL, err)
	}
	for _, l := range links {
		doc, err := d.pdfDocument(ctx, l.URL)
		if err == nil {
			return doc, nil
		}
	}
	return nil, fmt.Errorf("%s: no downloadable pdf link", pageURL)
}

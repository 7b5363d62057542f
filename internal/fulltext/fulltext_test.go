package fulltext

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/snpscope/internal/model"
	"github.com/ppiankov/snpscope/internal/sources"
	"github.com/ppiankov/snpscope/internal/util"
)

var fakePDF = []byte("%PDF-1.4\n" + strings.Repeat("stream content ", 20))

type fakeStep struct {
	name  string
	doc   *Document
	err   error
	calls *[]string
}

func (s fakeStep) Name() string { return s.name }

func (s fakeStep) Fetch(_ context.Context, _ model.PaperRecord) (*Document, error) {
	*s.calls = append(*s.calls, s.name)
	return s.doc, s.err
}

type fakeExtractor struct {
	text  string
	err   error
	calls int
}

func (e *fakeExtractor) Extract(_ context.Context, _ []byte) (string, error) {
	e.calls++
	return e.text, e.err
}

func samplePaper() model.PaperRecord {
	return model.PaperRecord{
		Title:    "APOE e4 and late-onset Alzheimer disease",
		Abstract: "Original abstract text.",
		PMID:     "12345",
	}
}

func TestResolveStopsAtFirstSuccess(t *testing.T) {
	var calls []string
	steps := []Step{
		fakeStep{name: StepRepository, err: errors.New("arxiv.org: 503"), calls: &calls},
		fakeStep{name: StepPMC, err: ErrNotApplicable, calls: &calls},
		fakeStep{name: StepUnpaywall, doc: &Document{Text: "ERROR: conversion failed"}, calls: &calls},
		fakeStep{name: StepDownloader, doc: &Document{Text: "  the full article body  "}, calls: &calls},
		fakeStep{name: StepMirror, doc: &Document{Text: "never reached"}, calls: &calls},
		fakeStep{name: StepBrowser, doc: &Document{Text: "never reached"}, calls: &calls},
	}
	r := NewResolver(steps, nil)

	in := samplePaper()
	in.ArxivID = "2101.00001"
	in.DOI = "10.1000/apoe.2021.1"
	got := r.Resolve(context.Background(), in)

	assert.Equal(t, []string{StepRepository, StepPMC, StepUnpaywall, StepDownloader}, calls)
	assert.True(t, got.HasFullText)
	assert.Equal(t, StepDownloader, got.FullTextSource)
	assert.Equal(t, "the full article body", got.FullText)
	assert.Equal(t, "Original abstract text.", got.Abstract)
	assert.Equal(t, in.ArxivID, got.ArxivID)
	assert.Equal(t, in.DOI, got.DOI)
}

func TestResolveAllStepsFail(t *testing.T) {
	var calls []string
	r := NewResolver([]Step{
		fakeStep{name: "a", err: errors.New("down"), calls: &calls},
		fakeStep{name: "b", doc: &Document{Text: "   "}, calls: &calls},
	}, nil)

	in := samplePaper()
	in.HasFullText = true // arXiv records arrive flagged before any text is fetched
	got := r.Resolve(context.Background(), in)

	assert.False(t, got.HasFullText)
	assert.Empty(t, got.FullText)
	assert.Empty(t, got.FullTextSource)
	assert.Equal(t, in.Abstract, got.Abstract)
}

func TestResolvePDFGoesThroughExtractor(t *testing.T) {
	var calls []string
	ext := &fakeExtractor{text: "extracted text"}
	r := NewResolver([]Step{
		fakeStep{name: "short", doc: &Document{PDF: []byte("%PDF-1.4 tiny")}, calls: &calls},
		fakeStep{name: "html", doc: &Document{PDF: []byte(strings.Repeat("<html>", 50))}, calls: &calls},
		fakeStep{name: "good", doc: &Document{PDF: fakePDF}, calls: &calls},
	}, ext)

	got := r.Resolve(context.Background(), samplePaper())

	assert.Equal(t, 1, ext.calls, "invalid PDFs must not reach the extractor")
	assert.Equal(t, "good", got.FullTextSource)
	assert.Equal(t, "extracted text", got.FullText)
}

func TestResolveExtractorSentinel(t *testing.T) {
	var calls []string
	ext := &fakeExtractor{text: "ERROR: could not open file"}
	r := NewResolver([]Step{fakeStep{name: "pdf", doc: &Document{PDF: fakePDF}, calls: &calls}}, ext)

	got := r.Resolve(context.Background(), samplePaper())
	assert.False(t, got.HasFullText)
}

func TestResolveTruncates(t *testing.T) {
	var calls []string
	r := NewResolver([]Step{fakeStep{name: "a", doc: &Document{Text: strings.Repeat("é", 50)}, calls: &calls}}, nil,
		WithMaxChars(10))

	got := r.Resolve(context.Background(), samplePaper())
	assert.Equal(t, strings.Repeat("é", 10), got.FullText)
}

func TestResolveAllSequentialWithDelay(t *testing.T) {
	var calls []string
	var slept []time.Duration
	r := NewResolver([]Step{fakeStep{name: "pmc", doc: &Document{Text: "body"}, calls: &calls}}, nil,
		WithSleep(func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}))

	papers := []model.PaperRecord{samplePaper(), samplePaper(), samplePaper()}
	out, stats := r.ResolveAll(context.Background(), papers)

	require.Len(t, out, 3)
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 1500 * time.Millisecond}, slept)
	assert.Equal(t, 3, stats.Attempted)
	assert.Equal(t, 3, stats.Resolved)
	assert.Equal(t, map[string]int{"pmc": 3}, stats.BySource)
	assert.False(t, papers[0].HasFullText, "input slice must not be mutated")
}

func TestResolveAllStopsOnCancel(t *testing.T) {
	var calls []string
	r := NewResolver([]Step{fakeStep{name: "pmc", doc: &Document{Text: "body"}, calls: &calls}}, nil,
		WithSleep(func(_ context.Context, _ time.Duration) error { return context.Canceled }))

	out, stats := r.ResolveAll(context.Background(), []model.PaperRecord{samplePaper(), samplePaper()})

	assert.Equal(t, 1, stats.Attempted)
	assert.True(t, out[0].HasFullText)
	assert.False(t, out[1].HasFullText)
}

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF(fakePDF))
	assert.False(t, IsPDF([]byte("%PDF-1.4")))
	assert.False(t, IsPDF([]byte(strings.Repeat("x", 200))))
	assert.False(t, IsPDF(nil))
}

func TestDomainClassifier(t *testing.T) {
	c := NewDomainClassifier(nil)

	tests := []struct {
		url  string
		want DomainTier
	}{
		{"https://arxiv.org/pdf/2101.00001", TierOpenRepository},
		{"https://www.biorxiv.org/content/10.1101/x.full.pdf", TierOpenRepository},
		{"https://www.ncbi.nlm.nih.gov/pmc/articles/PMC1/pdf/a.pdf", TierOpenRepository},
		{"https://europepmc.org:443/articles/PMC1?pdf=render", TierOpenRepository},
		{"https://www.nature.com/articles/x.pdf", TierPublisher},
		{"https://notarxiv.org/x.pdf", TierUnknown},
		{"not a url", TierUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.url))
		})
	}
}

func newTestClient(srv *httptest.Server) *sources.Client {
	return sources.NewClient(srv.Client(), sources.WithRetries(1))
}

func TestRepositoryStep(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pdf/2301.01234", r.URL.Path)
		_, _ = w.Write(fakePDF)
	}))
	defer srv.Close()

	step := NewRepositoryStep(NewDownloader(srv.Client(), "test", 0), nil)
	step.arxivBase = srv.URL + "/pdf/"

	doc, err := step.Fetch(context.Background(), model.PaperRecord{ArxivID: "2301.01234"})
	require.NoError(t, err)
	assert.Equal(t, fakePDF, doc.PDF)

	_, err = step.Fetch(context.Background(), model.PaperRecord{PDFURL: "https://publisher.example/a.pdf"})
	assert.ErrorIs(t, err, ErrNotApplicable)
}

func TestPMCStep(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/PMC6789/unicode", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"documents":[{"passages":[{"text":"Title"},{"text":""},{"text":"Intro paragraph"},{"text":"Results"}]}]}]`))
	}))
	defer srv.Close()

	step := NewPMCStep(newTestClient(srv), srv.URL, 100000)

	doc, err := step.Fetch(context.Background(), model.PaperRecord{PMCID: "6789"})
	require.NoError(t, err)
	assert.Equal(t, "Title\n\nIntro paragraph\n\nResults", doc.Text)

	_, err = step.Fetch(context.Background(), model.PaperRecord{})
	assert.ErrorIs(t, err, ErrNotApplicable)
}

func TestParseBioCSingleObject(t *testing.T) {
	text, err := parseBioC([]byte(`{"documents":[{"passages":[{"text":"one"},{"text":"two"}]}]}`))
	require.NoError(t, err)
	assert.Equal(t, "one\n\ntwo", text)

	_, err = parseBioC([]byte(`[]`))
	assert.Error(t, err)
}

func TestUnpaywallStep(t *testing.T) {
	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/v2/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/10.1000%2Fabc", r.URL.EscapedPath())
		assert.Equal(t, "me@example.org", r.URL.Query().Get("email"))
		_, _ = w.Write([]byte(`{"is_oa":true,"best_oa_location":{"url_for_pdf":"","url":"` + srvURL + `/files/paper.pdf"}}`))
	})
	mux.HandleFunc("/files/paper.pdf", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(fakePDF)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	step := NewUnpaywallStep(newTestClient(srv), NewDownloader(srv.Client(), "test", 0), srv.URL+"/v2", "me@example.org")

	doc, err := step.Fetch(context.Background(), model.PaperRecord{DOI: "10.1000/abc"})
	require.NoError(t, err)
	assert.Equal(t, fakePDF, doc.PDF)

	noEmail := NewUnpaywallStep(newTestClient(srv), NewDownloader(srv.Client(), "test", 0), srv.URL+"/v2", "")
	_, err = noEmail.Fetch(context.Background(), model.PaperRecord{DOI: "10.1000/abc"})
	assert.ErrorIs(t, err, ErrNotApplicable)
}

func TestDownloaderStepCitationMeta(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/doi/10.1000/xyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><meta name="citation_pdf_url" content="/content/xyz.pdf"></head><body></body></html>`))
	})
	mux.HandleFunc("/content/xyz.pdf", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(fakePDF)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	step := NewDownloaderStep(NewDownloader(srv.Client(), "test", 0), nil, nil, nil)
	step.doiBase = srv.URL + "/doi/"

	doc, err := step.Fetch(context.Background(), model.PaperRecord{DOI: "10.1000/xyz"})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/content/xyz.pdf", doc.URL)

	_, err = step.Fetch(context.Background(), model.PaperRecord{Title: "no identifiers"})
	assert.ErrorIs(t, err, ErrNotApplicable)
}

func TestMirrorStep(t *testing.T) {
	_, err := NewMirrorStep(NewDownloader(nil, "test", 0), nil).Fetch(context.Background(), samplePaper())
	assert.ErrorIs(t, err, ErrNotApplicable)

	mux := http.NewServeMux()
	mux.HandleFunc("/m/12345", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><embed src="/store/12345.pdf"></body></html>`))
	})
	mux.HandleFunc("/store/12345.pdf", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(fakePDF)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	step := NewMirrorStep(NewDownloader(srv.Client(), "test", 0), []string{" " + srv.URL + "/m/ "})
	doc, err := step.Fetch(context.Background(), samplePaper())
	require.NoError(t, err)
	assert.Equal(t, fakePDF, doc.PDF)
}

func newRobots(srv *httptest.Server) *util.RobotsChecker {
	return util.NewRobotsChecker("snpscope-test", srv.Client(), 5*time.Second)
}

func TestBrowserStepPlainHTTP(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
	})
	mux.HandleFunc("/article", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><a href="/files/article.pdf">Download PDF</a></body></html>`))
	})
	mux.HandleFunc("/files/article.pdf", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(fakePDF)
	})
	mux.HandleFunc("/private/article", func(w http.ResponseWriter, _ *http.Request) {
		t.Error("robots.txt disallowed path was fetched")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := NewDownloader(srv.Client(), "snpscope-test", 0)
	robots := newRobots(srv)
	step := NewBrowserStep(NewHTTPPageFetcher(d, robots), d, nil)

	doc, err := step.Fetch(context.Background(), model.PaperRecord{URL: srv.URL + "/article"})
	require.NoError(t, err)
	assert.Equal(t, fakePDF, doc.PDF)

	_, err = step.Fetch(context.Background(), model.PaperRecord{URL: srv.URL + "/private/article"})
	assert.Error(t, err)

	_, err = step.Fetch(context.Background(), model.PaperRecord{})
	assert.ErrorIs(t, err, ErrNotApplicable)
}

func TestHTTPExtractor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"page one"}`))
	}))
	defer srv.Close()

	text, err := NewHTTPExtractor(srv.URL, srv.Client()).Extract(context.Background(), fakePDF)
	require.NoError(t, err)
	assert.Equal(t, "page one", text)
}

func TestNewFromConfigStepOrder(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.FullText.Delay = 0

	r, closer, err := NewFromConfig(&cfg, Deps{Client: sources.NewClient(nil)})
	require.NoError(t, err)
	defer func() { _ = closer.Close() }()

	assert.Equal(t, []string{"repository", "pmc", "unpaywall", "downloader", "mirror", "browser"}, r.Steps())

	cfg.FullText.Steps = []string{"pmc", "carrier-pigeon"}
	_, _, err = NewFromConfig(&cfg, Deps{})
	assert.Error(t, err)
}

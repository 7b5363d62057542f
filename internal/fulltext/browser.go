package fulltext

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/ppiankov/snpscope/internal/extract"
	"github.com/ppiankov/snpscope/internal/model"
	"github.com/ppiankov/snpscope/internal/util"
)

// minArticleChars is the shortest rendered article accepted as full text
const minArticleChars = 5000

// PageFetcher loads a paper landing page
type PageFetcher interface {
	FetchPage(ctx context.Context, rawURL string) (*FetchResult, error)
}

// BrowserStep is the last resort: load the paper page and look for the PDF
type BrowserStep struct {
	pages      PageFetcher
	downloader *Downloader
	doiBase    string
	logger     *zap.Logger
}

// NewBrowserStep creates the browser step over any page fetcher
func NewBrowserStep(pages PageFetcher, d *Downloader, logger *zap.Logger) *BrowserStep {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowserStep{pages: pages, downloader: d, doiBase: "https://doi.org/", logger: logger}
}

func (s *BrowserStep) Name() string { return StepBrowser }

func (s *BrowserStep) Fetch(ctx context.Context, paper model.PaperRecord) (*Document, error) {
	target := paper.URL
	if target == "" && paper.DOI != "" {
		target = s.doiBase + paper.DOI
	}
	if target == "" {
		return nil, ErrNotApplicable
	}

	res, err := s.pages.FetchPage(ctx, target)
	if err != nil {
		return nil, err
	}

	doc, err := pdfFromPage(ctx, s.downloader, target, res)
	if err == nil {
		return doc, nil
	}

	// Some open articles render the whole text inline with no PDF link
	text, terr := extract.ArticleText(string(res.Body))
	if terr == nil && len([]rune(text)) >= minArticleChars {
		s.logger.Debug("using rendered article text", zap.String("url", res.FinalURL))
		return &Document{Text: text, URL: res.FinalURL}, nil
	}
	return nil, err
}

// HTTPPageFetcher is a plain GET that honours robots.txt
type HTTPPageFetcher struct {
	downloader *Downloader
	robots     *util.RobotsChecker
}

// NewHTTPPageFetcher creates the plain fetcher; robots may be nil to skip the check
func NewHTTPPageFetcher(d *Downloader, robots *util.RobotsChecker) *HTTPPageFetcher {
	return &HTTPPageFetcher{downloader: d, robots: robots}
}

func (f *HTTPPageFetcher) FetchPage(ctx context.Context, rawURL string) (*FetchResult, error) {
	if f.robots != nil && !f.robots.IsAllowed(ctx, rawURL) {
		return nil, fmt.Errorf("robots.txt disallows %s", rawURL)
	}
	return f.downloader.Fetch(ctx, rawURL)
}

// RodPageFetcher renders pages in headless Chrome. The browser is started
// on first use and shared until Close.
type RodPageFetcher struct {
	controlURL string
	timeout    time.Duration
	downloader *Downloader

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// NewRodPageFetcher creates a rod fetcher. An empty controlURL launches a local Chrome.
func NewRodPageFetcher(controlURL string, timeout time.Duration, d *Downloader) *RodPageFetcher {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &RodPageFetcher{controlURL: controlURL, timeout: timeout, downloader: d}
}

func (f *RodPageFetcher) connect() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		return f.browser, nil
	}

	u := f.controlURL
	if u == "" {
		l := launcher.New().Headless(true)
		var err error
		if u, err = l.Launch(); err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		f.launcher = l
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect chrome: %w", err)
	}
	f.browser = b
	return b, nil
}

func (f *RodPageFetcher) FetchPage(ctx context.Context, rawURL string) (*FetchResult, error) {
	// Chrome's PDF viewer hides the bytes, so direct links go through HTTP
	if strings.HasSuffix(strings.ToLower(rawURL), ".pdf") && f.downloader != nil {
		return f.downloader.Fetch(ctx, rawURL)
	}

	b, err := f.connect()
	if err != nil {
		return nil, err
	}

	page, err := b.Context(ctx).Page(proto.TargetCreateTarget{URL: rawURL})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer func() { _ = page.Close() }()

	p := page.Timeout(f.timeout)
	if err := p.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}
	html, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("read html: %w", err)
	}

	finalURL := rawURL
	if info, err := p.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}
	return &FetchResult{Body: []byte(html), ContentType: "text/html", FinalURL: finalURL}, nil
}

// Close shuts the browser down
func (f *RodPageFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	if f.browser != nil {
		errs = append(errs, f.browser.Close())
		f.browser = nil
	}
	if f.launcher != nil {
		f.launcher.Cleanup()
		f.launcher = nil
	}
	return errors.Join(errs...)
}

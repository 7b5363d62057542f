package fulltext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const minPDFBytes = 100

// ErrInvalidPDF is returned when downloaded bytes are not a PDF document
var ErrInvalidPDF = errors.New("not a pdf document")

// IsPDF reports whether b looks like a complete PDF file
func IsPDF(b []byte) bool {
	return len(b) > minPDFBytes && bytes.HasPrefix(b, []byte("%PDF-"))
}

// Downloader fetches pages and PDF files for the resolution steps
type Downloader struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
}

// NewDownloader creates a Downloader. client may be nil.
func NewDownloader(client *http.Client, userAgent string, maxBytes int64) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = 50 * 1024 * 1024
	}
	return &Downloader{
		httpClient: client,
		userAgent:  userAgent,
		maxBytes:   maxBytes,
	}
}

// FetchResult contains a fetched body and where it ended up
type FetchResult struct {
	Body        []byte
	ContentType string
	FinalURL    string
}

// IsPDF reports whether the fetched body is a PDF
func (f *FetchResult) IsPDF() bool {
	return IsPDF(f.Body)
}

// Fetch retrieves rawURL with browser-like accept headers
func (d *Downloader) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &FetchResult{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
	}, nil
}

// FetchPDF downloads rawURL and validates the PDF header
func (d *Downloader) FetchPDF(ctx context.Context, rawURL string) ([]byte, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, errors.New("empty pdf url")
	}
	res, err := d.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if !res.IsPDF() {
		return nil, fmt.Errorf("%s: %w", rawURL, ErrInvalidPDF)
	}
	return res.Body, nil
}

// pdfDocument downloads a PDF and wraps it as a Document
func (d *Downloader) pdfDocument(ctx context.Context, rawURL string) (*Document, error) {
	pdf, err := d.FetchPDF(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return &Document{PDF: pdf, URL: rawURL}, nil
}

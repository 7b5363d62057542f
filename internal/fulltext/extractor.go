package fulltext

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"
)

// CommandExtractor runs pdftotext (or a compatible binary) on a temp file
type CommandExtractor struct {
	path    string
	timeout time.Duration
}

// NewCommandExtractor creates an extractor for the binary at path
func NewCommandExtractor(path string, timeout time.Duration) *CommandExtractor {
	if path == "" {
		path = "pdftotext"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &CommandExtractor{path: path, timeout: timeout}
}

// Extract writes pdf to disk and reads the text from stdout
func (e *CommandExtractor) Extract(ctx context.Context, pdf []byte) (string, error) {
	f, err := os.CreateTemp("", "snpscope-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(f.Name()) }()

	if _, err := f.Write(pdf); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.path, "-enc", "UTF-8", "-nopgbrk", f.Name(), "-")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%s: %w: %s", e.path, err, msg)
		}
		return "", fmt.Errorf("%s: %w", e.path, err)
	}
	return stdout.String(), nil
}

// HTTPExtractor posts the PDF to a local extraction service
type HTTPExtractor struct {
	url    string
	client *http.Client
}

// NewHTTPExtractor creates an extractor for the service at url
func NewHTTPExtractor(url string, client *http.Client) *HTTPExtractor {
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &HTTPExtractor{url: url, client: client}
}

type extractResponse struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

// Extract accepts either {"text": ...} JSON or a plain-text body
func (e *HTTPExtractor) Extract(ctx context.Context, pdf []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(pdf))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("extractor: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32*1024*1024))
	if err != nil {
		return "", fmt.Errorf("extractor: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("extractor: unexpected status %d", resp.StatusCode)
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var out extractResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return "", fmt.Errorf("extractor: decode json: %w", err)
		}
		if out.Error != "" {
			return "", errors.New("extractor: " + out.Error)
		}
		return out.Text, nil
	}
	return string(body), nil
}

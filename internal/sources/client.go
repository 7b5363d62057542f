package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/snpscope/internal/cache"
	"github.com/ppiankov/snpscope/internal/metrics"
	"github.com/ppiankov/snpscope/internal/worker"
)

const defaultMaxRetries = 3

// retrySleepFunc waits between retries (injectable for tests)
var retrySleepFunc = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// StatusError reports a non-2xx upstream response
type StatusError struct {
	Source string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Source, e.Code)
}

// ErrEmptyBody is returned when an upstream answers 2xx with no content
var ErrEmptyBody = errors.New("empty response body")

// Client is the shared HTTP client used by every source adapter.
// It applies the per-source rate limit, the response cache, retries
// with exponential backoff and request metrics.
type Client struct {
	httpClient *http.Client
	limiter    *worker.Limiter
	cache      cache.Cache
	cacheTTL   time.Duration
	userAgent  string
	maxBytes   int64
	maxRetries int
	logger     *zap.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithLimiter sets the rate limiter
func WithLimiter(l *worker.Limiter) ClientOption {
	return func(c *Client) { c.limiter = l }
}

// WithCache sets the response cache and its TTL
func WithCache(cc cache.Cache, ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.cache = cc
		c.cacheTTL = ttl
	}
}

// WithLogger sets the logger for degraded calls
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// WithMaxBytes caps response bodies
func WithMaxBytes(n int64) ClientOption {
	return func(c *Client) { c.maxBytes = n }
}

// WithRetries sets the attempt count for transient failures
func WithRetries(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// NewClient creates a new source client
func NewClient(httpClient *http.Client, opts ...ClientOption) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	c := &Client{
		httpClient: httpClient,
		userAgent:  "snpscope/0.1",
		maxBytes:   20 * 1024 * 1024,
		maxRetries: defaultMaxRetries,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request describes one upstream call
type Request struct {
	Source  string // Limiter key and metric label
	Method  string // Defaults to GET
	URL     string
	Body    []byte
	Header  map[string]string
	NoCache bool
	// Accept decides whether a 2xx body is usable; a false verdict is retried
	Accept func(body []byte) bool
	// RetryDelay replaces exponential backoff with a fixed pause when set
	RetryDelay time.Duration
}

// Do executes the request and returns the response body.
// Only accepted 2xx bodies are cached.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	key := ""
	if c.cache != nil && !req.NoCache {
		key = cache.CacheKey(req.Method+" "+req.URL, req.Body)
		if body, ok := c.cache.Get(ctx, key); ok {
			metrics.SourceCacheTotal.WithLabelValues("hit").Inc()
			return body, nil
		}
		metrics.SourceCacheTotal.WithLabelValues("miss").Inc()
	}

	var (
		body    []byte
		lastErr error
	)
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			if req.RetryDelay > 0 {
				backoff = req.RetryDelay
			}
			if err := retrySleepFunc(ctx, backoff); err != nil {
				return nil, err
			}
		}

		var retry bool
		body, retry, lastErr = c.once(ctx, req)
		if lastErr == nil {
			break
		}
		if !retry {
			return nil, lastErr
		}
		c.logger.Debug("retrying source request",
			zap.String("source", req.Source),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr))
	}
	if lastErr != nil {
		return nil, lastErr
	}

	if key != "" {
		if err := c.cache.Set(ctx, key, body, c.cacheTTL); err != nil {
			c.logger.Debug("cache write failed", zap.String("source", req.Source), zap.Error(err))
		}
	}
	return body, nil
}

// once performs a single attempt; the bool reports whether the failure is transient
func (c *Client) once(ctx context.Context, req Request) ([]byte, bool, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, req.Source); err != nil {
			return nil, false, fmt.Errorf("rate limit: %w", err)
		}
	}

	var reader io.Reader
	if req.Body != nil {
		reader = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, reader)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	metrics.SourceRequestDuration.WithLabelValues(req.Source).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SourceRequestsTotal.WithLabelValues(req.Source, "error").Inc()
		return nil, isRetryableNetworkError(err), fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.SourceRequestsTotal.WithLabelValues(req.Source, statusClass(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retry, &StatusError{Source: req.Source, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, false, ErrEmptyBody
	}
	if req.Accept != nil && !req.Accept(body) {
		return nil, true, fmt.Errorf("%s: rejected response body", req.Source)
	}

	return body, false, nil
}

// GetJSON fetches url and decodes the JSON body into v
func (c *Client) GetJSON(ctx context.Context, source, url string, v any) error {
	body, err := c.Do(ctx, Request{
		Source: source,
		URL:    url,
		Header: map[string]string{"Accept": "application/json"},
		Accept: AcceptJSON,
	})
	if err != nil {
		return err
	}
	return decodeJSON(source, body, v)
}

func decodeJSON(source string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%s: decode json: %w", source, err)
	}
	return nil
}

// Get fetches url and returns the raw body
func (c *Client) Get(ctx context.Context, source, url string) ([]byte, error) {
	return c.Do(ctx, Request{Source: source, URL: url})
}

// degrade logs a failed call at warn and lets the adapter return its empty value
func (c *Client) degrade(source, identifier string, err error) {
	c.logger.Warn("source degraded",
		zap.String("source", source),
		zap.String("identifier", identifier),
		zap.Error(err))
}

// isRetryableNetworkError reports transient network failures
func isRetryableNetworkError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code == http.StatusTooManyRequests:
		return "429"
	case code >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}

// AcceptJSON rejects bodies that are not well-formed JSON, such as rate-limit pages
func AcceptJSON(body []byte) bool {
	return json.Valid(body)
}

// looksLikeHTML detects the HTML error pages some upstreams send instead of JSON
func looksLikeHTML(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return bytes.HasPrefix(trimmed, []byte("<")) || bytes.Contains(body, []byte("<!DOCTYPE"))
}

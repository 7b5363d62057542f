package util

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxServiceResponse caps local model service responses
const maxServiceResponse = 32 * 1024 * 1024

// ServiceHealth is the reachability of one local model service
type ServiceHealth struct {
	Healthy bool   `json:"healthy"`
	URL     string `json:"url"`
	Model   string `json:"model,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CheckHealth calls GET <baseURL>/health. Any JSON body counts as healthy.
func CheckHealth(ctx context.Context, client *http.Client, baseURL string, timeout time.Duration) ServiceHealth {
	h := ServiceHealth{URL: baseURL}
	if baseURL == "" {
		h.Error = "not configured"
		return h
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/health", nil)
	if err != nil {
		h.Error = err.Error()
		return h
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			h.Error = "timeout"
		} else {
			h.Error = "service not reachable"
		}
		return h
	}
	defer func() { _ = resp.Body.Close() }()

	var body map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		h.Error = "invalid JSON response"
		return h
	}
	h.Healthy = true
	if m, ok := body["model"].(string); ok {
		h.Model = m
	}
	return h
}

// ServiceError is a local service failure reported through an error field
type ServiceError struct {
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("service returned status %d", e.Status)
	}
	return fmt.Sprintf("service returned status %d: %s", e.Status, e.Message)
}

// PostJSON sends in as JSON to url and decodes the response into out.
// Non-2xx responses and bodies carrying an "error" field become a *ServiceError.
func PostJSON(ctx context.Context, client *http.Client, url string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxServiceResponse))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var envelope struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ServiceError{Status: resp.StatusCode, Message: envelope.Error}
	}
	if envelope.Error != "" {
		return &ServiceError{Status: resp.StatusCode, Message: envelope.Error}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

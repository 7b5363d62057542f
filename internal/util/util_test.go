package util

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ppiankov/snpscope/internal/model"
)

func TestNewProxyFunc_NoProxyBypass(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.local:3128", "http://secure.local:3128", "localhost,.ncbi.nlm.nih.gov")

	tests := []struct {
		url  string
		want string
	}{
		{"http://localhost:8020/health", ""},
		{"https://eutils.ncbi.nlm.nih.gov/entrez", ""},
		{"https://rest.ensembl.org/variation", "http://secure.local:3128"},
		{"http://export.arxiv.org/api/query", "http://proxy.local:3128"},
	}

	for _, tt := range tests {
		req, _ := http.NewRequest(http.MethodGet, tt.url, nil)
		got, err := proxy(req)
		if err != nil {
			t.Fatalf("proxy(%s) error: %v", tt.url, err)
		}
		gotStr := ""
		if got != nil {
			gotStr = got.String()
		}
		if gotStr != tt.want {
			t.Errorf("proxy(%s) = %q, want %q", tt.url, gotStr, tt.want)
		}
	}
}

func TestNewHTTPClient_RedirectCap(t *testing.T) {
	hops := 0
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hops++
		http.Redirect(w, r, fmt.Sprintf("%s/hop%d", server.URL, hops), http.StatusFound)
	}))
	defer server.Close()

	client := NewHTTPClient(model.HTTPConfig{Timeout: 5 * time.Second})
	_, err := client.Get(server.URL)
	if err == nil {
		t.Fatal("Expected redirect error")
	}
	if hops != MaxRedirects {
		t.Errorf("Expected %d hops, got %d", MaxRedirects, hops)
	}
}

func TestRobotsChecker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\nCrawl-delay: 2\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rc := NewRobotsChecker("snpscope/0.1 (+https://github.com/ppiankov/snpscope)", nil, 5*time.Second)
	ctx := context.Background()

	allowed, delay, err := rc.CanFetch(ctx, server.URL+"/articles/1.pdf")
	if err != nil {
		t.Fatalf("CanFetch error: %v", err)
	}
	if !allowed {
		t.Errorf("Expected /articles to be allowed")
	}
	if delay != 2*time.Second {
		t.Errorf("Expected crawl delay 2s, got %v", delay)
	}

	if rc.IsAllowed(ctx, server.URL+"/private/paper.pdf") {
		t.Errorf("Expected /private to be disallowed")
	}
}

func TestRobotsChecker_MissingRobotsAllows(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	rc := NewRobotsChecker("snpscope", nil, 5*time.Second)
	if !rc.IsAllowed(context.Background(), server.URL+"/anything") {
		t.Errorf("Expected 404 robots.txt to allow everything")
	}
}

func TestNormalizeUserAgent(t *testing.T) {
	tests := map[string]string{
		"snpscope/0.1 (+https://github.com/ppiankov/snpscope)": "snpscope",
		"Mozilla/5.0": "Mozilla",
		"":            "",
	}
	for in, want := range tests {
		if got := NormalizeUserAgent(in); got != want {
			t.Errorf("NormalizeUserAgent(%q) = %q, want %q", in, got, want)
		}
	}
}

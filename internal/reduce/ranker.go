// Package reduce trims and shrinks paper lists with local model services
// before they reach the language model. Every call fails open: when a
// service is unreachable or misbehaves, the input is returned untouched.
package reduce

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/snpscope/internal/metrics"
	"github.com/ppiankov/snpscope/internal/model"
	"github.com/ppiankov/snpscope/internal/util"
)

const (
	serviceRanker     = "ranker"
	serviceSummarizer = "summarizer"

	defaultDocumentMaxLength = 500
	defaultHealthTimeout     = 5 * time.Second
)

// Ranker keeps the top-N papers by cross-encoder relevance
type Ranker struct {
	baseURL   string
	client    *http.Client
	maxDocLen int
	logger    *zap.Logger
}

// NewRanker creates a ranker client for the service at baseURL
func NewRanker(baseURL string, client *http.Client, maxDocLen int, logger *zap.Logger) *Ranker {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if maxDocLen <= 0 {
		maxDocLen = defaultDocumentMaxLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ranker{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    client,
		maxDocLen: maxDocLen,
		logger:    logger,
	}
}

type rankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rankResponse struct {
	Rankings []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	} `json:"rankings"`
	Model string `json:"model"`
}

// RankByRelevance returns at most topN papers ordered by relevance to query.
// Lists no longer than topN are returned as given.
func (r *Ranker) RankByRelevance(ctx context.Context, papers []model.PaperRecord, query string, topN int) []model.PaperRecord {
	if len(papers) <= topN {
		return papers
	}

	docs := make([]string, len(papers))
	for i, p := range papers {
		docs[i] = truncateRunes(p.Title+". "+p.Abstract, r.maxDocLen)
	}

	var resp rankResponse
	if err := util.PostJSON(ctx, r.client, r.baseURL+"/rank", rankRequest{Query: query, Documents: docs}, &resp); err != nil {
		r.fallback(err)
		return papers
	}
	if len(resp.Rankings) == 0 {
		r.fallback(errEmptyRankings)
		return papers
	}

	out := make([]model.PaperRecord, 0, topN)
	seen := make(map[int]bool, topN)
	for _, rk := range resp.Rankings {
		if len(out) >= topN {
			break
		}
		if rk.Index < 0 || rk.Index >= len(papers) || seen[rk.Index] {
			continue
		}
		seen[rk.Index] = true
		p := papers[rk.Index]
		score := rk.Score
		p.RelevanceScore = &score
		out = append(out, p)
	}
	if len(out) == 0 {
		r.fallback(errNoValidRankings)
		return papers
	}

	r.logger.Info("ranked papers",
		zap.Int("input", len(papers)),
		zap.Int("kept", len(out)),
		zap.String("model", resp.Model))
	return out
}

// Healthy reports whether the ranker answers its health probe
func (r *Ranker) Healthy(ctx context.Context) bool {
	return r.Health(ctx).Healthy
}

// Health returns the ranker's health probe result
func (r *Ranker) Health(ctx context.Context) util.ServiceHealth {
	return util.CheckHealth(ctx, r.client, r.baseURL, defaultHealthTimeout)
}

func (r *Ranker) fallback(err error) {
	metrics.LocalServiceFallbacksTotal.WithLabelValues(serviceRanker).Inc()
	r.logger.Warn("ranker unavailable, keeping all papers", zap.Error(err))
}

type reduceError string

func (e reduceError) Error() string { return string(e) }

const (
	errEmptyRankings   = reduceError("ranker returned no rankings")
	errNoValidRankings = reduceError("ranker returned no usable indices")
	errSummaryMissing  = reduceError("summarizer returned no summaries")
)

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

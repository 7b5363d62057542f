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

// SummarizerOptions controls which abstracts are shortened and how much
type SummarizerOptions struct {
	Threshold int // Abstracts longer than this many characters are sent
	MaxLength int
	MinLength int
}

// DefaultSummarizerOptions returns the standard summarization bounds
func DefaultSummarizerOptions() SummarizerOptions {
	return SummarizerOptions{Threshold: 150, MaxLength: 80, MinLength: 20}
}

// Summarizer shortens long abstracts with a local summarization model
type Summarizer struct {
	baseURL string
	client  *http.Client
	opts    SummarizerOptions
	logger  *zap.Logger
}

// NewSummarizer creates a summarizer client for the service at baseURL
func NewSummarizer(baseURL string, client *http.Client, opts SummarizerOptions, logger *zap.Logger) *Summarizer {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	d := DefaultSummarizerOptions()
	if opts.Threshold <= 0 {
		opts.Threshold = d.Threshold
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = d.MaxLength
	}
	if opts.MinLength <= 0 {
		opts.MinLength = d.MinLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		opts:    opts,
		logger:  logger,
	}
}

type summarizeRequest struct {
	Texts     []string `json:"texts"`
	MaxLength int      `json:"max_length"`
	MinLength int      `json:"min_length"`
}

type summarizeResponse struct {
	Summaries []string `json:"summaries"`
	Model     string   `json:"model"`
}

// SummarizeAbstracts returns a copy of papers with long abstracts replaced by
// shorter summaries. A summary is used only when it is strictly shorter.
func (s *Summarizer) SummarizeAbstracts(ctx context.Context, papers []model.PaperRecord) []model.PaperRecord {
	texts := make([]string, len(papers))
	eligible := 0
	for i, p := range papers {
		if runeLen(p.Abstract) > s.opts.Threshold {
			texts[i] = p.Abstract
			eligible++
		}
	}
	if eligible == 0 {
		return papers
	}

	req := summarizeRequest{Texts: texts, MaxLength: s.opts.MaxLength, MinLength: s.opts.MinLength}
	var resp summarizeResponse
	if err := util.PostJSON(ctx, s.client, s.baseURL+"/summarize", req, &resp); err != nil {
		s.fallback(err)
		return papers
	}
	if len(resp.Summaries) == 0 {
		s.fallback(errSummaryMissing)
		return papers
	}

	out := make([]model.PaperRecord, len(papers))
	copy(out, papers)

	summarized := 0
	for i := range out {
		if texts[i] == "" || i >= len(resp.Summaries) {
			continue
		}
		summary := resp.Summaries[i]
		if summary == "" || runeLen(summary) >= runeLen(texts[i]) {
			continue
		}
		out[i].OriginalAbstract = out[i].Abstract
		out[i].Abstract = summary
		out[i].WasSummarized = true
		summarized++
	}

	s.logger.Info("summarized abstracts",
		zap.Int("summarized", summarized),
		zap.Int("papers", len(papers)),
		zap.String("model", resp.Model))
	return out
}

// Healthy reports whether the summarizer answers its health probe
func (s *Summarizer) Healthy(ctx context.Context) bool {
	return s.Health(ctx).Healthy
}

// Health returns the summarizer's health probe result
func (s *Summarizer) Health(ctx context.Context) util.ServiceHealth {
	return util.CheckHealth(ctx, s.client, s.baseURL, defaultHealthTimeout)
}

func (s *Summarizer) fallback(err error) {
	metrics.LocalServiceFallbacksTotal.WithLabelValues(serviceSummarizer).Inc()
	s.logger.Warn("summarizer unavailable, using original abstracts", zap.Error(err))
}

func runeLen(s string) int {
	return len([]rune(s))
}

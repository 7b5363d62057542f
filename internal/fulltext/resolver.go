// Package fulltext upgrades paper abstracts to full text through an ordered
// chain of retrieval steps. The first step that yields usable text wins.
package fulltext

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/snpscope/internal/metrics"
	"github.com/ppiankov/snpscope/internal/model"
)

// errorSentinel marks extractor output that is a failure message, not text
const errorSentinel = "ERROR:"

// ErrNotApplicable is returned by a step that lacks the identifiers it needs
var ErrNotApplicable = errors.New("step not applicable")

// Document is what a step retrieved: PDF bytes to extract, or plain text
type Document struct {
	PDF  []byte
	Text string
	URL  string
}

// Step is one stage of the resolution chain
type Step interface {
	Name() string
	Fetch(ctx context.Context, paper model.PaperRecord) (*Document, error)
}

// Extractor turns PDF bytes into plain text
type Extractor interface {
	Extract(ctx context.Context, pdf []byte) (string, error)
}

// Stats summarizes one ResolveAll batch
type Stats = model.FullTextStats

// SleepFunc waits d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Resolver walks the step chain for each paper
type Resolver struct {
	steps     []Step
	extractor Extractor
	delay     time.Duration
	maxChars  int
	sleep     SleepFunc
	logger    *zap.Logger
}

// Option configures a Resolver
type Option func(*Resolver)

// WithDelay sets the pause between papers in ResolveAll
func WithDelay(d time.Duration) Option {
	return func(r *Resolver) { r.delay = d }
}

// WithSleep replaces the delay implementation
func WithSleep(fn SleepFunc) Option {
	return func(r *Resolver) { r.sleep = fn }
}

// WithMaxChars caps the stored full text
func WithMaxChars(n int) Option {
	return func(r *Resolver) { r.maxChars = n }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a resolver over steps, tried in the given order
func NewResolver(steps []Step, extractor Extractor, opts ...Option) *Resolver {
	r := &Resolver{
		steps:     steps,
		extractor: extractor,
		delay:     1500 * time.Millisecond,
		maxChars:  100000,
		sleep:     sleepContext,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Steps returns the chain step names in order
func (r *Resolver) Steps() []string {
	names := make([]string, 0, len(r.steps))
	for _, s := range r.steps {
		names = append(names, s.Name())
	}
	return names
}

// Resolve returns paper with full text attached by the first step that succeeds.
// The abstract is never modified.
func (r *Resolver) Resolve(ctx context.Context, paper model.PaperRecord) model.PaperRecord {
	log := r.logger.With(zap.String("title", paper.Title))

	for _, step := range r.steps {
		if ctx.Err() != nil {
			break
		}

		doc, err := step.Fetch(ctx, paper)
		if err != nil {
			if !errors.Is(err, ErrNotApplicable) {
				log.Debug("full-text step failed", zap.String("step", step.Name()), zap.Error(err))
			}
			continue
		}

		text, err := r.documentText(ctx, doc)
		if err != nil {
			log.Debug("full-text step produced no text", zap.String("step", step.Name()), zap.Error(err))
			continue
		}

		paper.FullText = truncate(text, r.maxChars)
		paper.HasFullText = true
		paper.FullTextSource = step.Name()
		metrics.FullTextResolvedTotal.WithLabelValues(step.Name()).Inc()
		log.Info("full text resolved",
			zap.String("step", step.Name()),
			zap.Int("chars", len(paper.FullText)))
		return paper
	}

	metrics.FullTextResolvedTotal.WithLabelValues("none").Inc()
	paper.FullText = ""
	paper.HasFullText = false
	paper.FullTextSource = ""
	return paper
}

// ResolveAll resolves papers one at a time with the configured delay between them.
// Papers left unvisited after cancellation are returned unchanged.
func (r *Resolver) ResolveAll(ctx context.Context, papers []model.PaperRecord) ([]model.PaperRecord, Stats) {
	out := make([]model.PaperRecord, len(papers))
	copy(out, papers)
	stats := Stats{BySource: make(map[string]int)}

	for i := range out {
		if i > 0 && r.delay > 0 {
			if err := r.sleep(ctx, r.delay); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		stats.Attempted++
		out[i] = r.Resolve(ctx, out[i])
		if out[i].HasFullText {
			stats.Resolved++
			stats.BySource[out[i].FullTextSource]++
		}
	}

	r.logger.Info("full-text batch complete",
		zap.Int("attempted", stats.Attempted),
		zap.Int("resolved", stats.Resolved))
	return out, stats
}

func (r *Resolver) documentText(ctx context.Context, doc *Document) (string, error) {
	if doc == nil {
		return "", errors.New("nil document")
	}
	if doc.Text != "" {
		return usableText(doc.Text)
	}
	if !IsPDF(doc.PDF) {
		return "", ErrInvalidPDF
	}
	if r.extractor == nil {
		return "", errors.New("no pdf extractor configured")
	}
	text, err := r.extractor.Extract(ctx, doc.PDF)
	if err != nil {
		return "", err
	}
	return usableText(text)
}

// usableText rejects empty output and extractor error messages
func usableText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("empty text")
	}
	if strings.Contains(text, errorSentinel) {
		return "", errors.New("extractor reported an error")
	}
	return text, nil
}

func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

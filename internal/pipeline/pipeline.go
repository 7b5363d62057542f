package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/snpscope/internal/aggregate"
	"github.com/ppiankov/snpscope/internal/cache"
	"github.com/ppiankov/snpscope/internal/contradiction"
	"github.com/ppiankov/snpscope/internal/fulltext"
	"github.com/ppiankov/snpscope/internal/llm"
	"github.com/ppiankov/snpscope/internal/logger"
	"github.com/ppiankov/snpscope/internal/model"
	"github.com/ppiankov/snpscope/internal/reduce"
	"github.com/ppiankov/snpscope/internal/score"
	"github.com/ppiankov/snpscope/internal/sources"
	"github.com/ppiankov/snpscope/internal/synthesis"
	"github.com/ppiankov/snpscope/internal/util"
	"github.com/ppiankov/snpscope/internal/worker"
)

// ErrNoIdentifiers is returned when a request names no identifier
var ErrNoIdentifiers = errors.New("at least one identifier is required")

// BundleSource builds evidence bundles for identifiers
type BundleSource interface {
	QueryMany(ctx context.Context, identifiers []string, topic string) map[string]*model.EvidenceBundle
}

// FullTextResolver upgrades papers from abstract to full text
type FullTextResolver interface {
	ResolveAll(ctx context.Context, papers []model.PaperRecord) ([]model.PaperRecord, fulltext.Stats)
}

// Synthesizer produces the language model analysis
type Synthesizer interface {
	Synthesize(ctx context.Context, prompt string) (*model.Synthesis, error)
}

// ContradictionDetector scores finding pairs; nil results mean detection was skipped
type ContradictionDetector interface {
	Detect(ctx context.Context, findings []model.Finding) *model.ContradictionReport
}

// Request is one analysis run
type Request struct {
	Identifiers []string `json:"identifiers"`
	Topic       string   `json:"topic"`
	Context     string   `json:"context,omitempty"` // Free-text note added to the prompt header
	FullText    bool     `json:"fulltext"`
}

// Components are the stages a Pipeline runs. Resolver and Detector may be nil.
type Components struct {
	Bundles     BundleSource
	Resolver    FullTextResolver
	Synthesizer Synthesizer
	Detector    ContradictionDetector
	Scorer      *score.Scorer
}

// Pipeline orchestrates the complete analysis
type Pipeline struct {
	c        Components
	config   *model.Config
	logger   *zap.Logger
	closers  []io.Closer
	services []namedHealth
	provider llm.Provider
	detector *contradiction.Detector
}

type namedHealth struct {
	name  string
	check func(context.Context) util.ServiceHealth
}

// New creates a pipeline from prebuilt components
func New(c Components, cfg *model.Config, log *zap.Logger) *Pipeline {
	if cfg == nil {
		d := model.DefaultConfig()
		cfg = &d
	}
	if c.Scorer == nil {
		c.Scorer = score.NewScorer()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{c: c, config: cfg, logger: log}
}

// NewPipeline wires every stage from configuration
func NewPipeline(cfg *model.Config, log *zap.Logger) (*Pipeline, error) {
	if log == nil {
		log = zap.NewNop()
	}
	httpClient := util.NewHTTPClient(cfg.HTTP)

	cc, err := cache.New(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}

	limiter := worker.NewSourceLimiter(cfg.Sources.Rates, sources.LimiterBuckets)
	client := sources.NewClient(httpClient,
		sources.WithLimiter(limiter),
		sources.WithCache(cc, cfg.Cache.TTL),
		sources.WithLogger(log),
		sources.WithUserAgent(cfg.HTTP.UserAgent),
		sources.WithMaxBytes(cfg.HTTP.MaxBodyBytes),
		sources.WithRetries(cfg.Sources.Retries),
	)
	registry := sources.NewRegistryFromConfig(client, cfg.Sources, cfg.Aggregator.AssociationCap)

	localClient := util.WithTimeout(httpClient, cfg.Reducer.Timeout)
	ranker := reduce.NewRanker(cfg.Reducer.RankerURL, localClient, cfg.Reducer.DocumentMaxLength, log)
	summarizer := reduce.NewSummarizer(cfg.Reducer.SummarizerURL, localClient, reduce.SummarizerOptions{
		Threshold: cfg.Reducer.SummarizeThreshold,
		MaxLength: cfg.Reducer.SummaryMaxLength,
		MinLength: cfg.Reducer.SummaryMinLength,
	}, log)

	agg := aggregate.New(registry, ranker, summarizer, aggregate.Options{
		TopN:           cfg.Aggregator.TopN,
		AssociationCap: cfg.Aggregator.AssociationCap,
		Concurrency:    cfg.Aggregator.Concurrency,
	}, log)

	// Built even when disabled in config so a request can opt in
	resolver, browser, err := fulltext.NewFromConfig(cfg, fulltext.Deps{
		Client:   client,
		HTTP:     httpClient,
		Registry: registry,
		Logger:   log,
	})
	if err != nil {
		return nil, fmt.Errorf("fulltext: %w", err)
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP, log))
	if err != nil {
		// Aggregation still works; synthesis will report the missing provider
		log.Warn("failed to initialize LLM provider", zap.Error(err))
		provider = nil
	}

	c := Components{
		Bundles:     agg,
		Resolver:    resolver,
		Synthesizer: synthesis.NewSynthesizer(provider, log),
		Scorer:      score.NewScorer().WithExpectedPapers(cfg.Aggregator.TopN),
	}

	var detector *contradiction.Detector
	if cfg.Contradiction.Enabled {
		detector = contradiction.NewDetector(cfg.Contradiction, httpClient, log)
		c.Detector = detector
	}

	p := New(c, cfg, log)
	p.closers = append(p.closers, browser)
	if closer, ok := cc.(interface{ Close() }); ok {
		p.closers = append(p.closers, closeFunc(closer.Close))
	}
	p.provider = provider
	p.detector = detector
	p.services = []namedHealth{
		{name: "ranker", check: ranker.Health},
		{name: "summarizer", check: summarizer.Health},
	}
	return p, nil
}

type closeFunc func()

func (f closeFunc) Close() error {
	f()
	return nil
}

// Close releases the browser and cache connections
func (p *Pipeline) Close() error {
	var errs []error
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config returns the configuration the pipeline was built with
func (p *Pipeline) Config() *model.Config {
	return p.config
}

// AnalyzeIdentifier analyses a single identifier with the configured full-text setting
func (p *Pipeline) AnalyzeIdentifier(ctx context.Context, identifier, topic string) (*model.Report, error) {
	return p.Analyze(ctx, Request{
		Identifiers: []string{identifier},
		Topic:       topic,
		FullText:    p.config.FullText.Enabled,
	})
}

// Analyze runs aggregation, optional full-text resolution, synthesis,
// contradiction detection and scoring. Only a synthesis failure is an error.
func (p *Pipeline) Analyze(ctx context.Context, req Request) (*model.Report, error) {
	ids := normalizeIdentifiers(req.Identifiers)
	if len(ids) == 0 {
		return nil, ErrNoIdentifiers
	}
	topic := strings.TrimSpace(req.Topic)

	runID := uuid.NewString()
	log := logger.FromContextOr(ctx, p.logger).With(zap.String("run_id", runID))
	ctx = logger.ContextWithLogger(ctx, log)
	start := time.Now()

	log.Info("analysis started", zap.Strings("identifiers", ids), zap.String("topic", topic))

	// 1. Aggregate
	bundles := p.c.Bundles.QueryMany(ctx, ids, topic)
	if bundles == nil {
		bundles = make(map[string]*model.EvidenceBundle, len(ids))
	}
	for _, id := range ids {
		if bundles[id] == nil {
			bundles[id] = model.NewEvidenceBundle(id, topic)
		}
	}

	report := &model.Report{
		RunID:       runID,
		Topic:       topic,
		Identifiers: ids,
		GeneratedAt: time.Now().UTC(),
		Bundles:     bundles,
	}

	// 2. Upgrade the top papers to full text
	if req.FullText && p.c.Resolver != nil {
		report.FullText = p.resolveFullText(ctx, ids, bundles)
	}

	// 3. Synthesize
	prompt := synthesis.BuildPrompt(topic, ids, bundles, synthesis.PromptOptions{Context: req.Context})
	syn, err := p.c.Synthesizer.Synthesize(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	report.Synthesis = syn

	// 4. Contradictions between per-paper findings
	report.Findings = contradiction.ExtractFindings(syn, p.config.Contradiction.FindingMaxLength)
	if p.c.Detector != nil {
		report.Contradictions = p.c.Detector.Detect(ctx, report.Findings)
	}

	// 5. Score (after synthesis, never affects it)
	ordered := make([]*model.EvidenceBundle, 0, len(ids))
	for _, id := range ids {
		ordered = append(ordered, bundles[id])
	}
	report.Score = p.c.Scorer.Calculate(ordered, report.Contradictions)

	log.Info("analysis complete",
		zap.Int("findings", len(report.Findings)),
		zap.Int("score", report.Score.Index),
		zap.Duration("elapsed", time.Since(start)))
	return report, nil
}

// resolveFullText upgrades at most MaxPapers leading papers per bundle.
// All selected papers go through one ResolveAll call so the inter-paper
// delay also separates the last paper of one identifier from the next.
func (p *Pipeline) resolveFullText(ctx context.Context, ids []string, bundles map[string]*model.EvidenceBundle) *model.FullTextStats {
	limit := p.config.FullText.MaxPapers

	counts := make([]int, len(ids))
	var selected []model.PaperRecord
	for i, id := range ids {
		n := len(bundles[id].Papers)
		if limit > 0 && n > limit {
			n = limit
		}
		counts[i] = n
		selected = append(selected, bundles[id].Papers[:n]...)
	}

	total := &model.FullTextStats{BySource: map[string]int{}}
	if len(selected) == 0 {
		return total
	}

	resolved, stats := p.c.Resolver.ResolveAll(ctx, selected)
	total.Attempted = stats.Attempted
	total.Resolved = stats.Resolved
	for src, c := range stats.BySource {
		total.BySource[src] += c
	}

	offset := 0
	for i, id := range ids {
		n := counts[i]
		if n == 0 {
			continue
		}
		b := bundles[id]
		papers := make([]model.PaperRecord, 0, len(b.Papers))
		papers = append(papers, resolved[offset:offset+n]...)
		papers = append(papers, b.Papers[n:]...)
		b.Papers = papers
		offset += n
	}
	return total
}

func normalizeIdentifiers(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, id := range in {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		key := strings.ToLower(id)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, id)
	}
	return out
}

// Status is the health of every local service and the language model
type Status struct {
	Services map[string]util.ServiceHealth `json:"services"`
	LLM      LLMStatus                     `json:"llm"`
}

// LLMStatus reports the configured provider
type LLMStatus struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Available bool   `json:"available"`
}

// Status probes the local services concurrently
func (p *Pipeline) Status(ctx context.Context) Status {
	st := Status{
		Services: make(map[string]util.ServiceHealth),
		LLM:      LLMStatus{Provider: p.config.LLM.Provider, Model: p.config.LLM.Model},
	}

	var g errgroup.Group
	results := make([]util.ServiceHealth, len(p.services))
	for i, s := range p.services {
		g.Go(func() error {
			results[i] = s.check(ctx)
			return nil
		})
	}
	var nli contradiction.BackendStatus
	if p.detector != nil {
		g.Go(func() error {
			nli = p.detector.Status(ctx)
			return nil
		})
	}
	if p.provider != nil {
		g.Go(func() error {
			st.LLM.Available = p.provider.IsAvailable(ctx)
			return nil
		})
	}
	_ = g.Wait()

	for i, s := range p.services {
		st.Services[s.name] = results[i]
	}
	if p.detector != nil {
		st.Services["deberta"] = nli.Deberta
		st.Services["roberta"] = nli.Roberta
	}
	return st
}

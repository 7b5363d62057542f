// Package aggregate fans a query out to every registered source and folds
// the answers into one evidence bundle per identifier.
package aggregate

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/snpscope/internal/model"
	"github.com/ppiankov/snpscope/internal/sources"
	"github.com/ppiankov/snpscope/internal/worker"
)

// PaperRanker keeps the most relevant papers
type PaperRanker interface {
	RankByRelevance(ctx context.Context, papers []model.PaperRecord, query string, topN int) []model.PaperRecord
}

// AbstractSummarizer shortens long abstracts
type AbstractSummarizer interface {
	SummarizeAbstracts(ctx context.Context, papers []model.PaperRecord) []model.PaperRecord
}

// Options configures an Aggregator
type Options struct {
	TopN           int
	AssociationCap int
	Concurrency    int // Identifiers queried in parallel by QueryMany
}

// DefaultOptions mirrors the aggregator configuration defaults
func DefaultOptions() Options {
	return Options{TopN: 10, AssociationCap: 5, Concurrency: 2}
}

// Aggregator queries all sources for an identifier and merges the results
type Aggregator struct {
	registry   *sources.Registry
	ranker     PaperRanker
	summarizer AbstractSummarizer
	opts       Options
	logger     *zap.Logger
}

// New creates an aggregator. ranker and summarizer may be nil.
func New(registry *sources.Registry, ranker PaperRanker, summarizer AbstractSummarizer, opts Options, logger *zap.Logger) *Aggregator {
	d := DefaultOptions()
	if opts.TopN <= 0 {
		opts.TopN = d.TopN
	}
	if opts.AssociationCap <= 0 {
		opts.AssociationCap = d.AssociationCap
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = d.Concurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		registry:   registry,
		ranker:     ranker,
		summarizer: summarizer,
		opts:       opts,
		logger:     logger,
	}
}

// QueryAllSources queries every registered source concurrently and returns
// the merged bundle. It never fails: sources that fail contribute nothing.
func (a *Aggregator) QueryAllSources(ctx context.Context, identifier, topic string) *model.EvidenceBundle {
	start := time.Now()
	bundle := model.NewEvidenceBundle(identifier, topic)

	paperSources := a.registry.PaperSources()
	variantSources := a.registry.VariantSources()
	associationSources := a.registry.AssociationSources()
	clinicalSources := a.registry.ClinicalSources()

	// One slot per source; each goroutine writes only its own slot
	paperLists := make([][]model.PaperRecord, len(paperSources))
	variants := make([]*model.VariantRecord, len(variantSources))
	associations := make([][]model.AssociationRecord, len(associationSources))
	clinical := make([][]model.ClinicalRecord, len(clinicalSources))
	var (
		ensembl  *model.EnsemblRecord
		pharmgkb *model.PharmGKBRecord
	)

	// Every task returns nil so one failing source never cancels the others
	var g errgroup.Group
	for i, s := range paperSources {
		g.Go(func() error {
			paperLists[i] = s.SearchPapers(ctx, identifier, topic, a.registry.MaxResults(s.Name()))
			return nil
		})
	}
	for i, s := range variantSources {
		g.Go(func() error {
			variants[i] = s.LookupVariant(ctx, identifier)
			return nil
		})
	}
	for i, s := range associationSources {
		g.Go(func() error {
			associations[i] = s.Associations(ctx, identifier)
			return nil
		})
	}
	for i, s := range clinicalSources {
		g.Go(func() error {
			clinical[i] = s.ClinicalRecords(ctx, identifier)
			return nil
		})
	}
	if s := a.registry.Ensembl(); s != nil {
		g.Go(func() error {
			ensembl = s.LookupEnsembl(ctx, identifier)
			return nil
		})
	}
	if s := a.registry.PharmGKB(); s != nil {
		g.Go(func() error {
			pharmgkb = s.LookupPharmGKB(ctx, identifier)
			return nil
		})
	}
	_ = g.Wait()

	for i, v := range variants {
		if v == nil {
			continue
		}
		bundle.Variants[variantSources[i].Name()] = v
		if bundle.Variant == nil {
			bundle.Variant = v
		}
	}
	bundle.Ensembl = ensembl
	bundle.PharmGKB = pharmgkb

	for _, l := range associations {
		bundle.Associations = append(bundle.Associations, l...)
	}
	bundle.Associations = capAssociations(bundle.Associations, a.opts.AssociationCap)

	for _, l := range clinical {
		bundle.Clinical = append(bundle.Clinical, l...)
	}

	for i, l := range paperLists {
		bundle.SourceCounts[paperSources[i].Name()] = len(l)
	}
	merged := MergePapers(paperLists...)
	bundle.MergedCount = len(merged)

	papers := merged
	if a.ranker != nil {
		papers = a.ranker.RankByRelevance(ctx, papers, sources.SearchTerm(identifier, topic), a.opts.TopN)
	}
	if a.summarizer != nil {
		papers = a.summarizer.SummarizeAbstracts(ctx, papers)
	}
	if papers == nil {
		papers = []model.PaperRecord{}
	}
	bundle.Papers = papers

	a.logger.Info("sources aggregated",
		zap.String("identifier", identifier),
		zap.Int("merged_papers", bundle.MergedCount),
		zap.Int("kept_papers", len(bundle.Papers)),
		zap.Int("associations", len(bundle.Associations)),
		zap.Int("clinical", len(bundle.Clinical)),
		zap.Bool("variant", bundle.Variant != nil),
		zap.Duration("duration", time.Since(start)))

	return bundle
}

// QueryMany aggregates several identifiers with bounded concurrency.
// Identifiers skipped because ctx was cancelled get empty bundles.
func (a *Aggregator) QueryMany(ctx context.Context, identifiers []string, topic string) map[string]*model.EvidenceBundle {
	out := make(map[string]*model.EvidenceBundle, len(identifiers))
	if len(identifiers) == 0 {
		return out
	}

	pool := worker.NewPool(ctx, a.opts.Concurrency)
	pool.Start()
	cancelled := false
	for _, id := range identifiers {
		if !pool.Submit(&bundleJob{aggregator: a, identifier: id, topic: topic}) {
			cancelled = true
			break
		}
	}

	var results []worker.Result
	if cancelled {
		a.logger.Warn("aggregation cancelled, keeping completed bundles", zap.Int("identifiers", len(identifiers)))
		results = pool.Shutdown()
	} else {
		results = pool.Wait()
	}
	for _, r := range results {
		res := r.(*bundleResult)
		out[res.identifier] = res.bundle
	}

	for _, id := range identifiers {
		if _, ok := out[id]; !ok {
			out[id] = model.NewEvidenceBundle(id, topic)
		}
	}
	return out
}

type bundleJob struct {
	aggregator *Aggregator
	identifier string
	topic      string
}

func (j *bundleJob) Execute(ctx context.Context) worker.Result {
	return &bundleResult{
		identifier: j.identifier,
		bundle:     j.aggregator.QueryAllSources(ctx, j.identifier, j.topic),
	}
}

type bundleResult struct {
	identifier string
	bundle     *model.EvidenceBundle
}

func (r *bundleResult) GetError() error { return nil }

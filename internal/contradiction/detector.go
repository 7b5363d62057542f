package contradiction

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/snpscope/internal/metrics"
	"github.com/ppiankov/snpscope/internal/model"
	"github.com/ppiankov/snpscope/internal/util"
)

// EnsembleModel labels results scored by both backends
const EnsembleModel = "DeBERTa + RoBERTa (ensemble)"

// Backend is one NLI model service
type Backend struct {
	Name  string // "deberta" or "roberta"
	URL   string
	Model string // Reported model name
}

// BackendStatus is the health of both NLI backends
type BackendStatus struct {
	Deberta util.ServiceHealth `json:"deberta"`
	Roberta util.ServiceHealth `json:"roberta"`
}

// Any reports whether at least one backend is usable
func (s BackendStatus) Any() bool {
	return s.Deberta.Healthy || s.Roberta.Healthy
}

// Options tune the detector
type Options struct {
	Threshold     float64
	HealthTimeout time.Duration
	Timeout       time.Duration // Per analysis request
}

// Detector scores finding pairs. It never returns an error: any failure
// is logged and reported as a nil result.
type Detector struct {
	deberta Backend
	roberta Backend
	client  *http.Client
	opts    Options
	logger  *zap.Logger
}

// NewDetector creates a detector for the configured backends
func NewDetector(cfg model.ContradictionConfig, client *http.Client, logger *zap.Logger) *Detector {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := Options{
		Threshold:     cfg.Threshold,
		HealthTimeout: cfg.HealthTimeout,
		Timeout:       cfg.Timeout,
	}
	if opts.Threshold <= 0 {
		opts.Threshold = 0.5
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = 5 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}
	return &Detector{
		deberta: Backend{Name: "deberta", URL: strings.TrimRight(cfg.DebertaURL, "/"), Model: "DeBERTa-v3-large"},
		roberta: Backend{Name: "roberta", URL: strings.TrimRight(cfg.RobertaURL, "/"), Model: "RoBERTa-large-MNLI"},
		client:  client,
		opts:    opts,
		logger:  logger,
	}
}

// Status probes both backends concurrently
func (d *Detector) Status(ctx context.Context) BackendStatus {
	var st BackendStatus
	var g errgroup.Group
	g.Go(func() error {
		st.Deberta = util.CheckHealth(ctx, d.client, d.deberta.URL, d.opts.HealthTimeout)
		return nil
	})
	g.Go(func() error {
		st.Roberta = util.CheckHealth(ctx, d.client, d.roberta.URL, d.opts.HealthTimeout)
		return nil
	})
	_ = g.Wait()
	return st
}

type statement struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type analyzeRequest struct {
	Statements []statement `json:"statements"`
}

type nliPair struct {
	Statement1ID   string  `json:"statement1_id"`
	Statement2ID   string  `json:"statement2_id"`
	Paper1ID       string  `json:"paper1_id"`
	Paper2ID       string  `json:"paper2_id"`
	Statement1Text string  `json:"statement1_text"`
	Statement2Text string  `json:"statement2_text"`
	Score          float64 `json:"contradiction_score"`
	PredictedLabel string  `json:"predicted_label"`
	ModelUsed      string  `json:"model_used"`
}

func (p nliPair) ids() (string, string) {
	a, b := p.Statement1ID, p.Statement2ID
	if a == "" {
		a = p.Paper1ID
	}
	if b == "" {
		b = p.Paper2ID
	}
	return a, b
}

type analyzeResponse struct {
	Contradictions []nliPair `json:"contradictions"`
	Model          string    `json:"model"`
}

// Detect scores every unordered pair of findings and keeps those above the threshold.
// It returns nil when there is nothing to compare, no backend is healthy, or analysis fails.
func (d *Detector) Detect(ctx context.Context, findings []model.Finding) *model.ContradictionReport {
	n := len(findings)
	if n < 2 {
		return nil
	}

	status := d.Status(ctx)
	if !status.Any() {
		d.logger.Info("no NLI backend available, skipping contradiction detection",
			zap.String("deberta", status.Deberta.Error),
			zap.String("roberta", status.Roberta.Error))
		return nil
	}

	statements := make([]statement, 0, n)
	for _, f := range findings {
		statements = append(statements, statement{ID: f.ID, Text: f.Text})
	}

	var (
		results   []model.ContradictionResult
		modelName string
		err       error
	)
	switch {
	case status.Deberta.Healthy && status.Roberta.Healthy:
		results, modelName, err = d.ensemble(ctx, statements)
	case status.Deberta.Healthy:
		results, modelName, err = d.single(ctx, d.deberta, statements)
	default:
		results, modelName, err = d.single(ctx, d.roberta, statements)
	}
	if err != nil {
		metrics.LocalServiceFallbacksTotal.WithLabelValues("nli").Inc()
		d.logger.Warn("contradiction analysis failed", zap.Error(err))
		return nil
	}

	kept := make([]model.ContradictionResult, 0, len(results))
	for _, r := range results {
		if r.Score > d.opts.Threshold {
			kept = append(kept, r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })

	report := &model.ContradictionReport{
		Contradictions: kept,
		Model:          modelName,
		TotalPairs:     n * (n - 1) / 2,
	}
	metrics.ContradictionsFoundTotal.Add(float64(len(kept)))
	d.logger.Info("contradiction detection complete",
		zap.String("model", modelName),
		zap.Int("findings", n),
		zap.Int("pairs", report.TotalPairs),
		zap.Int("contradictions", len(kept)))
	return report
}

func (d *Detector) analyze(ctx context.Context, b Backend, statements []statement) (*analyzeResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	var resp analyzeResponse
	if err := util.PostJSON(ctx, d.client, b.URL+"/analyze_contradictions", analyzeRequest{Statements: statements}, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name, err)
	}
	return &resp, nil
}

func (d *Detector) single(ctx context.Context, b Backend, statements []statement) ([]model.ContradictionResult, string, error) {
	resp, err := d.analyze(ctx, b, statements)
	if err != nil {
		return nil, "", err
	}
	name := b.Model
	if resp.Model != "" {
		name = resp.Model
	}

	results := make([]model.ContradictionResult, 0, len(resp.Contradictions))
	for _, p := range resp.Contradictions {
		r := toResult(p)
		if r.ModelUsed == "" {
			r.ModelUsed = name
		}
		results = append(results, r)
	}
	return results, name, nil
}

// ensemble runs both backends and averages scores per pair. If one backend
// fails the other's results are used alone.
func (d *Detector) ensemble(ctx context.Context, statements []statement) ([]model.ContradictionResult, string, error) {
	var (
		debResp, robResp *analyzeResponse
		debErr, robErr   error
		g                errgroup.Group
	)
	g.Go(func() error {
		debResp, debErr = d.analyze(ctx, d.deberta, statements)
		return nil
	})
	g.Go(func() error {
		robResp, robErr = d.analyze(ctx, d.roberta, statements)
		return nil
	})
	_ = g.Wait()

	switch {
	case debErr != nil && robErr != nil:
		return nil, "", fmt.Errorf("ensemble: %w; %w", debErr, robErr)
	case debErr != nil:
		d.logger.Warn("deberta failed, using roberta alone", zap.Error(debErr))
		return d.fromResponse(robResp, d.roberta), d.roberta.Model, nil
	case robErr != nil:
		d.logger.Warn("roberta failed, using deberta alone", zap.Error(robErr))
		return d.fromResponse(debResp, d.deberta), d.deberta.Model, nil
	}

	return mergeEnsemble(debResp.Contradictions, robResp.Contradictions), EnsembleModel, nil
}

func (d *Detector) fromResponse(resp *analyzeResponse, b Backend) []model.ContradictionResult {
	results := make([]model.ContradictionResult, 0, len(resp.Contradictions))
	for _, p := range resp.Contradictions {
		r := toResult(p)
		if r.ModelUsed == "" {
			r.ModelUsed = b.Model
		}
		results = append(results, r)
	}
	return results
}

func pairKey(a, b string) string {
	return a + "__" + b
}

// mergeEnsemble joins both result sets on the (id1, id2) pair.
// A pair scored by only one model keeps that model's score.
func mergeEnsemble(deberta, roberta []nliPair) []model.ContradictionResult {
	robByKey := make(map[string]nliPair, len(roberta))
	for _, p := range roberta {
		a, b := p.ids()
		robByKey[pairKey(a, b)] = p
	}

	seen := make(map[string]bool, len(deberta))
	results := make([]model.ContradictionResult, 0, len(deberta))
	for _, dp := range deberta {
		a, b := dp.ids()
		key := pairKey(a, b)
		rp, ok := robByKey[key]
		if !ok {
			rp, ok = robByKey[pairKey(b, a)]
			if ok {
				seen[pairKey(b, a)] = true
			}
		}
		seen[key] = true

		r := toResult(dp)
		r.ModelUsed = EnsembleModel
		ds := dp.Score
		r.DebertaScore = &ds
		if ok {
			rs := rp.Score
			r.RobertaScore = &rs
			r.Score = (ds + rs) / 2
		}
		results = append(results, r)
	}

	for _, rp := range roberta {
		a, b := rp.ids()
		if seen[pairKey(a, b)] {
			continue
		}
		r := toResult(rp)
		r.ModelUsed = EnsembleModel
		rs := rp.Score
		r.RobertaScore = &rs
		results = append(results, r)
	}
	return results
}

func toResult(p nliPair) model.ContradictionResult {
	a, b := p.ids()
	return model.ContradictionResult{
		Statement1ID:   a,
		Statement2ID:   b,
		Statement1Text: p.Statement1Text,
		Statement2Text: p.Statement2Text,
		Score:          p.Score,
		PredictedLabel: p.PredictedLabel,
		ModelUsed:      p.ModelUsed,
	}
}

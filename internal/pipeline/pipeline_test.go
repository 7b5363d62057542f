package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/snpscope/internal/fulltext"
	"github.com/ppiankov/snpscope/internal/model"
)

type fakeBundles struct {
	bundles map[string]*model.EvidenceBundle
	gotIDs  []string
}

func (f *fakeBundles) QueryMany(_ context.Context, ids []string, _ string) map[string]*model.EvidenceBundle {
	f.gotIDs = ids
	return f.bundles
}

type fakeResolver struct {
	calls [][]model.PaperRecord
}

func (f *fakeResolver) ResolveAll(_ context.Context, papers []model.PaperRecord) ([]model.PaperRecord, fulltext.Stats) {
	f.calls = append(f.calls, papers)
	out := make([]model.PaperRecord, len(papers))
	copy(out, papers)
	out[0].HasFullText = true
	out[0].FullText = "body"
	out[0].FullTextSource = "pmc"
	return out, fulltext.Stats{Attempted: len(papers), Resolved: 1, BySource: map[string]int{"pmc": 1}}
}

type fakeSynth struct {
	syn    *model.Synthesis
	err    error
	prompt string
}

func (f *fakeSynth) Synthesize(_ context.Context, prompt string) (*model.Synthesis, error) {
	f.prompt = prompt
	return f.syn, f.err
}

type fakeDetector struct {
	findings []model.Finding
	report   *model.ContradictionReport
}

func (f *fakeDetector) Detect(_ context.Context, findings []model.Finding) *model.ContradictionReport {
	f.findings = findings
	return f.report
}

func testBundle(id string, papers int) *model.EvidenceBundle {
	b := model.NewEvidenceBundle(id, "Alzheimer disease")
	b.Variant = &model.VariantRecord{Chromosome: "19", Gene: "APOE"}
	for i := 0; i < papers; i++ {
		b.Papers = append(b.Papers, model.PaperRecord{Title: "Paper " + string(rune('A'+i)), Abstract: "abstract"})
	}
	return b
}

func testSynthesis() *model.Synthesis {
	return &model.Synthesis{
		Summary: "summary",
		Sections: []model.PaperSection{
			{Index: 1, Title: "A", PaperID: "PMID:1", Body: "**Findings:** The variant triples disease risk in European carriers."},
			{Index: 2, Title: "B", PaperID: "PMID:2", Body: "**Findings:** No association was observed in the replication cohort at all."},
		},
		Provider: "fake",
	}
}

func TestAnalyze(t *testing.T) {
	bundles := &fakeBundles{bundles: map[string]*model.EvidenceBundle{"rs429358": testBundle("rs429358", 7)}}
	resolver := &fakeResolver{}
	synth := &fakeSynth{syn: testSynthesis()}
	detector := &fakeDetector{report: &model.ContradictionReport{
		Contradictions: []model.ContradictionResult{{Statement1ID: "PMID:1", Statement2ID: "PMID:2", Score: 0.91}},
		TotalPairs:     1,
		Model:          "DeBERTa-v3-large",
	}}

	cfg := model.DefaultConfig()
	p := New(Components{Bundles: bundles, Resolver: resolver, Synthesizer: synth, Detector: detector}, &cfg, nil)

	report, err := p.Analyze(context.Background(), Request{
		Identifiers: []string{" rs429358 ", "RS429358", "rs7412"},
		Topic:       "Alzheimer disease",
		FullText:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"rs429358", "rs7412"}, bundles.gotIDs)
	_, err = uuid.Parse(report.RunID)
	assert.NoError(t, err)

	// Missing bundle is filled with an empty one
	require.Contains(t, report.Bundles, "rs7412")
	assert.False(t, report.Bundles["rs7412"].HasData())

	// Only the first MaxPapers papers are sent for full text
	require.Len(t, resolver.calls, 1)
	assert.Len(t, resolver.calls[0], cfg.FullText.MaxPapers)
	papers := report.Bundles["rs429358"].Papers
	require.Len(t, papers, 7)
	assert.True(t, papers[0].HasFullText)
	assert.Equal(t, "Paper F", papers[5].Title)
	assert.Equal(t, &model.FullTextStats{Attempted: 5, Resolved: 1, BySource: map[string]int{"pmc": 1}}, report.FullText)

	assert.Contains(t, synth.prompt, "## rs429358")
	assert.Contains(t, synth.prompt, "## rs7412")

	require.Len(t, detector.findings, 2)
	assert.Equal(t, "PMID:1", detector.findings[0].ID)
	assert.Equal(t, report.Findings, detector.findings)

	assert.True(t, report.Score.Conflict)
	assert.Same(t, detector.report, report.Contradictions)
}

func TestAnalyzeWithoutFullText(t *testing.T) {
	resolver := &fakeResolver{}
	p := New(Components{
		Bundles:     &fakeBundles{bundles: map[string]*model.EvidenceBundle{"rs1": testBundle("rs1", 3)}},
		Resolver:    resolver,
		Synthesizer: &fakeSynth{syn: testSynthesis()},
	}, nil, nil)

	report, err := p.Analyze(context.Background(), Request{Identifiers: []string{"rs1"}, Topic: "t"})
	require.NoError(t, err)

	assert.Empty(t, resolver.calls)
	assert.Nil(t, report.FullText)
	assert.Nil(t, report.Contradictions)
	assert.False(t, report.Score.Conflict)
}

func TestAnalyzeSynthesisError(t *testing.T) {
	boom := errors.New("rate limited")
	p := New(Components{
		Bundles:     &fakeBundles{},
		Synthesizer: &fakeSynth{err: boom},
	}, nil, nil)

	_, err := p.Analyze(context.Background(), Request{Identifiers: []string{"rs1"}})
	assert.ErrorIs(t, err, boom)
}

func TestAnalyzeNoIdentifiers(t *testing.T) {
	p := New(Components{}, nil, nil)

	_, err := p.Analyze(context.Background(), Request{Identifiers: []string{" ", ""}})
	assert.ErrorIs(t, err, ErrNoIdentifiers)
}

func TestAnalyzeIdentifierUsesConfiguredFullText(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.FullText.Enabled = true
	resolver := &fakeResolver{}
	p := New(Components{
		Bundles:     &fakeBundles{bundles: map[string]*model.EvidenceBundle{"rs1": testBundle("rs1", 2)}},
		Resolver:    resolver,
		Synthesizer: &fakeSynth{syn: testSynthesis()},
	}, &cfg, nil)

	_, err := p.AnalyzeIdentifier(context.Background(), "rs1", "topic")
	require.NoError(t, err)
	assert.Len(t, resolver.calls, 1)
}

type recordingStep struct {
	events *[]string
}

func (s recordingStep) Name() string { return "pmc" }

func (s recordingStep) Fetch(_ context.Context, paper model.PaperRecord) (*fulltext.Document, error) {
	*s.events = append(*s.events, "fetch "+paper.Title)
	return &fulltext.Document{Text: "full text of " + paper.Title}, nil
}

func TestAnalyzeFullTextDelaySpansIdentifiers(t *testing.T) {
	var events []string
	resolver := fulltext.NewResolver([]fulltext.Step{recordingStep{events: &events}}, nil,
		fulltext.WithDelay(1500*time.Millisecond),
		fulltext.WithSleep(func(_ context.Context, d time.Duration) error {
			events = append(events, "sleep "+d.String())
			return nil
		}))

	a := testBundle("rs429358", 2)
	b := testBundle("rs7412", 2)
	b.Papers[0].Title = "Paper C"
	b.Papers[1].Title = "Paper D"

	p := New(Components{
		Bundles:     &fakeBundles{bundles: map[string]*model.EvidenceBundle{"rs429358": a, "rs7412": b}},
		Resolver:    resolver,
		Synthesizer: &fakeSynth{syn: testSynthesis()},
	}, nil, nil)

	report, err := p.Analyze(context.Background(), Request{Identifiers: []string{"rs429358", "rs7412"}, Topic: "t", FullText: true})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"fetch Paper A", "sleep 1.5s",
		"fetch Paper B", "sleep 1.5s",
		"fetch Paper C", "sleep 1.5s",
		"fetch Paper D",
	}, events)

	assert.Equal(t, "full text of Paper B", report.Bundles["rs429358"].Papers[1].FullText)
	assert.Equal(t, "full text of Paper C", report.Bundles["rs7412"].Papers[0].FullText)
	assert.Equal(t, 4, report.FullText.Resolved)
	assert.Equal(t, map[string]int{"pmc": 4}, report.FullText.BySource)
}

func TestAnalyzeFullTextSingleBatch(t *testing.T) {
	resolver := &fakeResolver{}
	p := New(Components{
		Bundles: &fakeBundles{bundles: map[string]*model.EvidenceBundle{
			"rs1": testBundle("rs1", 2),
			"rs2": testBundle("rs2", 3),
		}},
		Resolver:    resolver,
		Synthesizer: &fakeSynth{syn: testSynthesis()},
	}, nil, nil)

	report, err := p.Analyze(context.Background(), Request{Identifiers: []string{"rs1", "rs2"}, FullText: true})
	require.NoError(t, err)

	require.Len(t, resolver.calls, 1)
	assert.Len(t, resolver.calls[0], 5)
	assert.True(t, report.Bundles["rs1"].Papers[0].HasFullText)
	assert.False(t, report.Bundles["rs2"].Papers[0].HasFullText)
	assert.Len(t, report.Bundles["rs2"].Papers, 3)
}

func sampleReport() *model.Report {
	b := testBundle("rs429358", 2)
	b.Papers[0].HasFullText = true
	b.Papers[1].Title = "一个非常长的中文标题用于测试终端宽度截断是否正确处理全角字符以及省略号的添加情况"
	return &model.Report{
		RunID:       "run-1",
		Topic:       "Alzheimer disease",
		Identifiers: []string{"rs429358"},
		Bundles:     map[string]*model.EvidenceBundle{"rs429358": b},
		FullText:    &model.FullTextStats{Attempted: 2, Resolved: 1, BySource: map[string]int{"pmc": 1}},
		Synthesis:   testSynthesis(),
		Contradictions: &model.ContradictionReport{
			Contradictions: []model.ContradictionResult{{Statement1ID: "PMID:1", Statement2ID: "PMID:2", Score: 0.91, Statement1Text: "x", Statement2Text: "y"}},
			TotalPairs:     1,
			Model:          "DeBERTa-v3-large",
		},
		Score: model.Score{Index: 55, Confidence: "low-medium", Signals: []model.Signal{
			{Type: model.SignalContradiction, Severity: model.SeverityWarning, Description: "Found 1 contradictions in 1 comparisons"},
		}},
	}
}

func TestRenderMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(true).WriteMarkdown(&buf, sampleReport()))
	md := buf.String()

	for _, want := range []string{
		"# SNP Analysis: Alzheimer disease",
		"| rs429358 | APOE | 2 | 1 | 0 | 0 |",
		"Full text resolved for 1 of 2 papers (pmc: 1).",
		"**Findings:** The variant triples",
		"Found 1 of 1 comparisons (DeBERTa-v3-large).",
		"1. **PMID:1** vs **PMID:2** (score 0.91)",
		"## Evidence Strength: 55/100 (low-medium)",
		"Generated by snpscope",
	} {
		assert.Contains(t, md, want)
	}
}

func TestRenderMarkdownSkippedDetection(t *testing.T) {
	r := sampleReport()
	r.Contradictions = nil

	var buf bytes.Buffer
	require.NoError(t, NewRenderer(false).WriteMarkdown(&buf, r))
	assert.Contains(t, buf.String(), "Contradiction detection was skipped")
	assert.NotContains(t, buf.String(), "Generated by snpscope")
}

func TestRenderSummaryTruncatesWideTitles(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(false).RenderSummary(&buf, sampleReport())
	out := buf.String()

	assert.Contains(t, out, "Evidence index: 55/100 (low-medium)")
	assert.Contains(t, out, "…")
	assert.Contains(t, out, "0.91  PMID:1 vs PMID:2")
	for _, line := range strings.Split(out, "\n") {
		assert.NotContains(t, line, "省略号的添加情况")
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(false).WriteJSON(&buf, sampleReport()))
	assert.Contains(t, buf.String(), `"run_id": "run-1"`)
	assert.Contains(t, buf.String(), `"contradiction_score": 0.91`)
}

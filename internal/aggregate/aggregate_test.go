package aggregate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ppiankov/snpscope/internal/model"
	"github.com/ppiankov/snpscope/internal/reduce"
	"github.com/ppiankov/snpscope/internal/sources"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// keep-alive connections from httptest clients
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

type fakePapers struct {
	name   string
	papers []model.PaperRecord
	delay  time.Duration
	calls  atomic.Int32
}

func (f *fakePapers) Name() string { return f.name }

func (f *fakePapers) SearchPapers(ctx context.Context, identifier, topic string, max int) []model.PaperRecord {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return []model.PaperRecord{}
		}
	}
	out := make([]model.PaperRecord, len(f.papers))
	copy(out, f.papers)
	return out
}

type fakeVariant struct {
	name string
	rec  *model.VariantRecord
}

func (f *fakeVariant) Name() string { return f.name }

func (f *fakeVariant) LookupVariant(ctx context.Context, identifier string) *model.VariantRecord {
	return f.rec
}

type fakeAssociations struct{ list []model.AssociationRecord }

func (f *fakeAssociations) Name() string { return sources.SourceGWAS }

func (f *fakeAssociations) Associations(ctx context.Context, identifier string) []model.AssociationRecord {
	return f.list
}

type fakeClinical struct{ list []model.ClinicalRecord }

func (f *fakeClinical) Name() string { return sources.SourceClinVar }

func (f *fakeClinical) ClinicalRecords(ctx context.Context, identifier string) []model.ClinicalRecord {
	return f.list
}

func paper(source, title string) model.PaperRecord {
	return model.PaperRecord{Title: title, Source: source, Abstract: "abstract of " + title}
}

func TestMergePapers_FirstSeenWins(t *testing.T) {
	pubmed := []model.PaperRecord{paper("pubmed", "APOE and Alzheimer's"), paper("pubmed", "Amyloid imaging")}
	scholar := []model.PaperRecord{paper("scholar", "  apoe AND alzheimer's "), paper("scholar", "Tau spread")}

	got := MergePapers(pubmed, scholar)
	require.Len(t, got, 3)
	assert.Equal(t, "pubmed", got[0].Source)
	assert.Equal(t, "Tau spread", got[2].Title)
}

func TestMergePapers_Idempotent(t *testing.T) {
	lists := [][]model.PaperRecord{
		{paper("pubmed", "A"), paper("pubmed", "B"), paper("pubmed", "a")},
		{paper("arxiv", "C"), paper("arxiv", "b ")},
		{paper("preprints", "D"), paper("preprints", "")},
		{paper("huggingface", "")},
	}

	once := MergePapers(lists...)
	twice := MergePapers(once)
	assert.Equal(t, once, twice)
	assert.Len(t, once, 5)
}

func TestMergePapers_Empty(t *testing.T) {
	got := MergePapers()
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func newTestRegistry(paperSources ...sources.PaperSource) *sources.Registry {
	r := sources.NewRegistry(nil, 20)
	for _, s := range paperSources {
		r.RegisterPapers(s)
	}
	return r
}

func TestQueryAllSources_Scenario(t *testing.T) {
	// Fixtures: 6 papers, one title duplicated between pubmed and scholar
	pubmed := &fakePapers{name: sources.SourcePubMed, papers: []model.PaperRecord{
		paper("pubmed", "APOE e4 and amyloid deposition"),
		paper("pubmed", "Genome-wide association of late-onset Alzheimer's disease"),
	}}
	scholar := &fakePapers{name: sources.SourceScholar, papers: []model.PaperRecord{
		paper("scholar", "apoe e4 and amyloid deposition"),
		paper("scholar", "APOE4 and tau pathology"),
	}}
	arxiv := &fakePapers{name: sources.SourceArXiv, papers: []model.PaperRecord{
		paper("arxiv", "Polygenic risk scores for Alzheimer's"),
	}}
	preprints := &fakePapers{name: sources.SourcePreprints, papers: []model.PaperRecord{
		paper("preprints", "rs429358 in a Japanese cohort"),
	}}

	reg := newTestRegistry(preprints, arxiv, scholar, pubmed)
	dbsnp := &model.VariantRecord{Source: sources.SourceDBSNP, Identifier: "rs429358", Gene: "APOE"}
	reg.RegisterVariant(&fakeVariant{name: sources.SourceDBSNP, rec: dbsnp})

	var assocs []model.AssociationRecord
	for i := 0; i < 8; i++ {
		assocs = append(assocs, model.AssociationRecord{Trait: fmt.Sprintf("trait %d", i)})
	}
	reg.RegisterAssociations(&fakeAssociations{list: assocs})
	reg.RegisterClinical(&fakeClinical{list: []model.ClinicalRecord{{UID: "17864"}}})

	agg := New(reg, nil, nil, DefaultOptions(), nil)
	bundle := agg.QueryAllSources(context.Background(), "rs429358", "Alzheimer's disease")

	require.NotNil(t, bundle)
	assert.Len(t, bundle.Papers, 5, "fixture count minus one duplicate")
	assert.Equal(t, 5, bundle.MergedCount)
	assert.Equal(t, "pubmed", bundle.Papers[0].Source, "literature index comes first")
	assert.Equal(t, "pubmed", bundle.Papers[1].Source)
	assert.Equal(t, "APOE4 and tau pathology", bundle.Papers[2].Title)
	assert.Equal(t, "preprints", bundle.Papers[4].Source)

	assert.Len(t, bundle.Associations, 5, "associations capped")
	assert.Equal(t, "trait 0", bundle.Associations[0].Trait)
	assert.Len(t, bundle.Clinical, 1)
	assert.Same(t, dbsnp, bundle.Variant)
	assert.Same(t, dbsnp, bundle.Variants[sources.SourceDBSNP])
	assert.Equal(t, 2, bundle.SourceCounts[sources.SourceScholar])
}

func TestQueryAllSources_AllSourcesFail(t *testing.T) {
	reg := newTestRegistry(
		&fakePapers{name: sources.SourcePubMed},
		&fakePapers{name: sources.SourceArXiv},
	)
	reg.RegisterVariant(&fakeVariant{name: sources.SourceDBSNP})
	reg.RegisterAssociations(&fakeAssociations{})
	reg.RegisterClinical(&fakeClinical{})

	bundle := New(reg, nil, nil, Options{}, nil).QueryAllSources(context.Background(), "rs0", "")

	require.NotNil(t, bundle)
	assert.Nil(t, bundle.Variant)
	assert.NotNil(t, bundle.Papers)
	assert.Empty(t, bundle.Papers)
	assert.NotNil(t, bundle.Associations)
	assert.Empty(t, bundle.Associations)
	assert.NotNil(t, bundle.Clinical)
	assert.False(t, bundle.HasData())
}

func TestQueryAllSources_RunsSourcesConcurrently(t *testing.T) {
	var ps []sources.PaperSource
	for _, name := range []string{"pubmed", "scholar", "arxiv", "huggingface", "preprints"} {
		ps = append(ps, &fakePapers{name: name, delay: 100 * time.Millisecond,
			papers: []model.PaperRecord{paper(name, "title from "+name)}})
	}
	reg := newTestRegistry(ps...)

	start := time.Now()
	bundle := New(reg, nil, nil, DefaultOptions(), nil).QueryAllSources(context.Background(), "rs1", "")
	elapsed := time.Since(start)

	assert.Len(t, bundle.Papers, 5)
	assert.Less(t, elapsed, 400*time.Millisecond, "sources should run in parallel")
}

type recordingRanker struct {
	query string
	topN  int
}

func (r *recordingRanker) RankByRelevance(ctx context.Context, papers []model.PaperRecord, query string, topN int) []model.PaperRecord {
	r.query = query
	r.topN = topN
	if len(papers) > topN {
		return papers[:topN]
	}
	return papers
}

type markingSummarizer struct{ calls int }

func (m *markingSummarizer) SummarizeAbstracts(ctx context.Context, papers []model.PaperRecord) []model.PaperRecord {
	m.calls++
	out := make([]model.PaperRecord, len(papers))
	copy(out, papers)
	for i := range out {
		out[i].WasSummarized = true
	}
	return out
}

func TestQueryAllSources_RanksThenSummarizes(t *testing.T) {
	var list []model.PaperRecord
	for i := 0; i < 15; i++ {
		list = append(list, paper("pubmed", fmt.Sprintf("paper %d", i)))
	}
	reg := newTestRegistry(&fakePapers{name: sources.SourcePubMed, papers: list})

	ranker := &recordingRanker{}
	summarizer := &markingSummarizer{}
	bundle := New(reg, ranker, summarizer, DefaultOptions(), nil).
		QueryAllSources(context.Background(), "rs429358", "Alzheimer's disease")

	assert.Equal(t, "rs429358 Alzheimer's disease", ranker.query)
	assert.Equal(t, 10, ranker.topN)
	assert.Equal(t, 1, summarizer.calls)
	require.Len(t, bundle.Papers, 10)
	assert.True(t, bundle.Papers[0].WasSummarized)
	assert.Equal(t, 15, bundle.MergedCount)
}

func TestQueryAllSources_LocalServicesUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	var list []model.PaperRecord
	for i := 0; i < 14; i++ {
		p := paper("pubmed", fmt.Sprintf("paper %d", i))
		p.Abstract = fmt.Sprintf("%0200d", i)
		list = append(list, p)
	}
	reg := newTestRegistry(&fakePapers{name: sources.SourcePubMed, papers: list})

	client := &http.Client{Timeout: time.Second}
	ranker := reduce.NewRanker(url, client, 0, nil)
	summarizer := reduce.NewSummarizer(url, client, reduce.SummarizerOptions{}, nil)

	bundle := New(reg, ranker, summarizer, DefaultOptions(), nil).QueryAllSources(context.Background(), "rs429358", "x")

	assert.Equal(t, MergePapers(list), bundle.Papers)
	for _, p := range bundle.Papers {
		assert.Nil(t, p.RelevanceScore)
		assert.False(t, p.WasSummarized)
	}
}

func TestQueryMany(t *testing.T) {
	reg := newTestRegistry(&fakePapers{name: sources.SourcePubMed, papers: []model.PaperRecord{paper("pubmed", "shared")}})

	agg := New(reg, nil, nil, Options{Concurrency: 2}, nil)
	ids := []string{"rs429358", "rs7412", "rs6265"}
	got := agg.QueryMany(context.Background(), ids, "topic")

	require.Len(t, got, 3)
	for _, id := range ids {
		require.Contains(t, got, id)
		assert.Equal(t, id, got[id].Identifier)
		assert.Len(t, got[id].Papers, 1)
	}
}

func TestQueryMany_CancelledContext(t *testing.T) {
	reg := newTestRegistry(&fakePapers{name: sources.SourcePubMed})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := New(reg, nil, nil, DefaultOptions(), nil).QueryMany(ctx, []string{"rs1", "rs2"}, "")
	require.Len(t, got, 2)
	assert.NotNil(t, got["rs1"])
	assert.NotNil(t, got["rs2"])
}

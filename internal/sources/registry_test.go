package sources

import (
	"testing"

	"github.com/ppiankov/snpscope/internal/model"
)

func TestNewRegistryFromConfig_AllSources(t *testing.T) {
	cfg := model.DefaultConfig()
	r := NewRegistryFromConfig(NewClient(nil), cfg.Sources, 5)

	var names []string
	for _, s := range r.PaperSources() {
		names = append(names, s.Name())
	}
	want := []string{SourcePubMed, SourceScholar, SourceArXiv, SourceHuggingFace, SourcePreprints}
	if len(names) != len(want) {
		t.Fatalf("Expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Priority position %d: got %s, want %s", i, names[i], want[i])
		}
	}

	if len(r.VariantSources()) != 1 || len(r.AssociationSources()) != 1 || len(r.ClinicalSources()) != 1 {
		t.Error("Expected one variant, association and clinical source")
	}
	if r.Ensembl() == nil || r.PharmGKB() == nil || r.EuropePMC() == nil || r.Scholar() == nil {
		t.Error("Expected extension sources to be wired")
	}
}

func TestNewRegistryFromConfig_EnabledSubset(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Sources.Enabled = []string{"PubMed", "arxiv", "dbsnp"}
	r := NewRegistryFromConfig(NewClient(nil), cfg.Sources, 5)

	if got := len(r.PaperSources()); got != 2 {
		t.Errorf("Expected 2 paper sources, got %d", got)
	}
	if r.Ensembl() != nil || r.PharmGKB() != nil {
		t.Error("Disabled sources should not be wired")
	}
	if len(r.AssociationSources()) != 0 || len(r.ClinicalSources()) != 0 {
		t.Error("Disabled sources should not be registered")
	}
}

func TestRegistry_UnlistedSourcesFollowPriority(t *testing.T) {
	r := NewRegistry([]string{SourceArXiv}, 0)
	r.RegisterPapers(NewHuggingFaceAdapter(nil, ""))
	r.RegisterPapers(NewArXivAdapter(nil, ""))
	r.RegisterPapers(NewScholarAdapter(nil, "", ""))

	got := r.PaperSources()
	if got[0].Name() != SourceArXiv || got[1].Name() != SourceHuggingFace || got[2].Name() != SourceScholar {
		t.Errorf("Unexpected order: %s %s %s", got[0].Name(), got[1].Name(), got[2].Name())
	}
}

func TestRegistry_MaxResults(t *testing.T) {
	r := NewRegistry(nil, 20)
	if got := r.MaxResults(SourcePubMed); got != 20 {
		t.Errorf("pubmed: got %d", got)
	}
	if got := r.MaxResults(SourceHuggingFace); got != 10 {
		t.Errorf("huggingface: got %d", got)
	}

	small := NewRegistry(nil, 8)
	if got := small.MaxResults(SourceScholar); got != 8 {
		t.Errorf("capped scholar: got %d", got)
	}
}

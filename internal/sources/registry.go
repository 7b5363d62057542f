package sources

import (
	"sort"
	"strings"

	"github.com/ppiankov/snpscope/internal/model"
)

// Registry holds the enabled adapters grouped by what they return
type Registry struct {
	papers       map[string]PaperSource
	variants     []VariantSource
	associations []AssociationSource
	clinical     []ClinicalSource
	ensembl      EnsemblSource
	pharmgkb     PharmGKBSource

	europePMC *EuropePMC
	scholar   *ScholarAdapter
	priority  []string
	maxPapers int
}

// NewRegistry creates an empty registry merging papers in priority order
func NewRegistry(priority []string, maxPapers int) *Registry {
	if len(priority) == 0 {
		priority = DefaultSourcePriority
	}
	return &Registry{
		papers:    make(map[string]PaperSource),
		priority:  priority,
		maxPapers: maxPapers,
	}
}

// NewRegistryFromConfig wires every enabled adapter onto client
func NewRegistryFromConfig(client *Client, cfg model.SourcesConfig, associationCap int) *Registry {
	r := NewRegistry(cfg.Priority, cfg.MaxPapers)
	ep := cfg.Endpoints
	enabled := enabledSet(cfg.Enabled)

	r.europePMC = NewEuropePMC(client, ep.EuropePMC, SourceEuropePMC)
	r.scholar = NewScholarAdapter(client, ep.SemanticScholar, "")

	if enabled(SourceDBSNP) {
		r.RegisterVariant(NewDBSNPAdapter(client, ep.EUtils, cfg.NCBIKey))
	}
	if enabled(SourcePubMed) {
		r.RegisterPapers(NewPubMedAdapter(client, ep.EUtils, r.europePMC, cfg.NCBIKey, cfg.Tool, cfg.Email))
	}
	if enabled(SourceClinVar) {
		r.RegisterClinical(NewClinVarAdapter(client, ep.EUtils, cfg.NCBIKey))
	}
	if enabled(SourceGWAS) {
		r.RegisterAssociations(NewGWASAdapter(client, ep.GWAS, associationCap))
	}
	if enabled(SourcePharmGKB) {
		r.pharmgkb = NewPharmGKBAdapter(client, ep.PharmGKB)
	}
	if enabled(SourceEnsembl) {
		r.ensembl = NewEnsemblAdapter(client, ep.Ensembl)
	}
	if enabled(SourceScholar) {
		r.RegisterPapers(r.scholar)
	}
	if enabled(SourceArXiv) {
		r.RegisterPapers(NewArXivAdapter(client, ep.ArXiv))
	}
	if enabled(SourceHuggingFace) {
		r.RegisterPapers(NewHuggingFaceAdapter(client, ep.HuggingFace))
	}
	if enabled(SourcePreprints) {
		r.RegisterPapers(NewPreprintAdapter(client, NewEuropePMC(client, ep.EuropePMC, SourcePreprints)))
	}
	return r
}

func enabledSet(list []string) func(string) bool {
	if len(list) == 0 {
		return func(string) bool { return true }
	}
	set := make(map[string]bool, len(list))
	for _, s := range list {
		set[strings.ToLower(strings.TrimSpace(s))] = true
	}
	return func(name string) bool { return set[name] }
}

// RegisterPapers adds a literature source
func (r *Registry) RegisterPapers(s PaperSource) { r.papers[s.Name()] = s }

// RegisterVariant adds a variant source; the first one registered is primary
func (r *Registry) RegisterVariant(s VariantSource) { r.variants = append(r.variants, s) }

// RegisterAssociations adds an association source
func (r *Registry) RegisterAssociations(s AssociationSource) {
	r.associations = append(r.associations, s)
}

// RegisterClinical adds a clinical source
func (r *Registry) RegisterClinical(s ClinicalSource) { r.clinical = append(r.clinical, s) }

// SetEnsembl sets the Ensembl source
func (r *Registry) SetEnsembl(s EnsemblSource) { r.ensembl = s }

// SetPharmGKB sets the PharmGKB source
func (r *Registry) SetPharmGKB(s PharmGKBSource) { r.pharmgkb = s }

// PaperSources returns literature sources in merge priority order.
// Registered sources missing from the priority list follow, sorted by name.
func (r *Registry) PaperSources() []PaperSource {
	out := make([]PaperSource, 0, len(r.papers))
	seen := make(map[string]bool, len(r.papers))
	for _, name := range r.priority {
		if s, ok := r.papers[name]; ok && !seen[name] {
			out = append(out, s)
			seen[name] = true
		}
	}
	rest := make([]string, 0)
	for name := range r.papers {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		out = append(out, r.papers[name])
	}
	return out
}

// VariantSources returns the variant sources
func (r *Registry) VariantSources() []VariantSource { return r.variants }

// AssociationSources returns the association sources
func (r *Registry) AssociationSources() []AssociationSource { return r.associations }

// ClinicalSources returns the clinical sources
func (r *Registry) ClinicalSources() []ClinicalSource { return r.clinical }

// Ensembl returns the Ensembl source, or nil when disabled
func (r *Registry) Ensembl() EnsemblSource { return r.ensembl }

// PharmGKB returns the PharmGKB source, or nil when disabled
func (r *Registry) PharmGKB() PharmGKBSource { return r.pharmgkb }

// EuropePMC returns the shared Europe PMC client
func (r *Registry) EuropePMC() *EuropePMC { return r.europePMC }

// Scholar returns the Semantic Scholar adapter used for open-access lookups
func (r *Registry) Scholar() *ScholarAdapter { return r.scholar }

// Priority returns the paper merge order
func (r *Registry) Priority() []string { return r.priority }

// MaxResults returns the request size for a literature source
func (r *Registry) MaxResults(source string) int {
	if r.maxPapers > 0 {
		if d, ok := DefaultMaxResults[source]; ok && d < r.maxPapers {
			return d
		}
		return r.maxPapers
	}
	if d, ok := DefaultMaxResults[source]; ok {
		return d
	}
	return 10
}

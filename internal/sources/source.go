package sources

import (
	"context"

	"github.com/ppiankov/snpscope/internal/model"
)

// Source names. They double as rate limiter keys and metric labels.
const (
	SourceDBSNP       = "dbsnp"
	SourcePubMed      = "pubmed"
	SourceClinVar     = "clinvar"
	SourceGWAS        = "gwas"
	SourcePharmGKB    = "pharmgkb"
	SourceEnsembl     = "ensembl"
	SourceScholar     = "scholar"
	SourceArXiv       = "arxiv"
	SourceHuggingFace = "huggingface"
	SourcePreprints   = "preprints"

	// Upstreams reached by more than one adapter
	SourceEuropePMC = "europepmc"

	// Full-text upstreams
	SourcePMC       = "pmc"
	SourceUnpaywall = "unpaywall"
)

// DefaultSourcePriority is the paper merge order. The literature index comes
// first; a paper seen under an earlier source wins over later duplicates.
var DefaultSourcePriority = []string{
	SourcePubMed,
	SourceScholar,
	SourceArXiv,
	SourceHuggingFace,
	SourcePreprints,
}

// LimiterBuckets maps sources onto shared rate limiter buckets.
// NCBI enforces one quota across all E-utilities databases.
var LimiterBuckets = map[string]string{
	SourceDBSNP:     "ncbi",
	SourcePubMed:    "ncbi",
	SourceClinVar:   "ncbi",
	SourcePMC:       "ncbi",
	SourcePreprints: SourceEuropePMC,
}

// DefaultMaxResults is the per-source paper request size
var DefaultMaxResults = map[string]int{
	SourcePubMed:      20,
	SourceScholar:     15,
	SourceArXiv:       15,
	SourceHuggingFace: 10,
	SourcePreprints:   15,
}

// AllSources lists every known source name
var AllSources = []string{
	SourceDBSNP, SourcePubMed, SourceClinVar, SourceGWAS, SourcePharmGKB,
	SourceEnsembl, SourceScholar, SourceArXiv, SourceHuggingFace, SourcePreprints,
}

// PaperSource searches a literature source.
// Implementations never return an error; failures yield an empty slice.
type PaperSource interface {
	Name() string
	SearchPapers(ctx context.Context, identifier, topic string, max int) []model.PaperRecord
}

// VariantSource looks up a variant record, or nil when unavailable
type VariantSource interface {
	Name() string
	LookupVariant(ctx context.Context, identifier string) *model.VariantRecord
}

// AssociationSource lists trait associations for a variant
type AssociationSource interface {
	Name() string
	Associations(ctx context.Context, identifier string) []model.AssociationRecord
}

// ClinicalSource lists clinical-significance records for a variant
type ClinicalSource interface {
	Name() string
	ClinicalRecords(ctx context.Context, identifier string) []model.ClinicalRecord
}

// EnsemblSource returns extended variant annotation
type EnsemblSource interface {
	Name() string
	LookupEnsembl(ctx context.Context, identifier string) *model.EnsemblRecord
}

// PharmGKBSource returns pharmacogenomic annotation
type PharmGKBSource interface {
	Name() string
	LookupPharmGKB(ctx context.Context, identifier string) *model.PharmGKBRecord
}

// SearchTerm joins identifier and topic the way every literature source is queried
func SearchTerm(identifier, topic string) string {
	if topic == "" {
		return identifier
	}
	return identifier + " " + topic
}

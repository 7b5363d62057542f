package model

// Placeholders substituted when an upstream source omits a field.
// Prompt assembly interpolates every field positionally, so fields are never left empty.
const (
	PlaceholderUnknown     = "unknown"
	PlaceholderUnknownCap  = "Unknown"
	PlaceholderNotReported = "not reported"
)

// VariantRecord holds the facts a variant database reports for one identifier
type VariantRecord struct {
	Source               string `json:"source"`
	Identifier           string `json:"identifier"` // rsID as queried
	Chromosome           string `json:"chromosome"`
	Position             string `json:"position"`
	Gene                 string `json:"gene"` // Comma-joined gene symbols
	Alleles              string `json:"alleles"`
	MAF                  string `json:"maf"` // Minor allele frequency, kept as reported
	ClinicalSignificance string `json:"clinical_significance"`
	FunctionClass        string `json:"function_class"`
}

// EnsemblMapping is one genomic placement of a variant
type EnsemblMapping struct {
	Chromosome   string `json:"chromosome"`
	Start        int64  `json:"start"`
	End          int64  `json:"end"`
	Strand       int    `json:"strand"`
	AlleleString string `json:"allele_string"`
}

// EnsemblRecord extends the variant facts with Ensembl annotation
type EnsemblRecord struct {
	Identifier  string           `json:"identifier"`
	Name        string           `json:"name"`
	Mappings    []EnsemblMapping `json:"mappings,omitempty"`
	Ancestral   string           `json:"ancestral_allele"`
	Minor       string           `json:"minor_allele"`
	MAF         string           `json:"maf"`
	Consequence string           `json:"consequence"` // Most severe consequence
	Synonyms    []string         `json:"synonyms,omitempty"`
}

// PharmGKBRecord summarizes pharmacogenomic annotation for a variant
type PharmGKBRecord struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Gene                string `json:"gene"`
	Chromosome          string `json:"chromosome"`
	ClinicalAnnotations int    `json:"clinical_annotations"`
	DrugLabels          int    `json:"drug_labels"`
	Guidelines          int    `json:"guidelines"`
}

// AssociationRecord is one trait association from an association catalog.
// PValue and OddsRatioBeta stay strings because upstream values may be non-numeric.
type AssociationRecord struct {
	Trait         string `json:"trait"`
	PValue        string `json:"p_value"`
	OddsRatioBeta string `json:"or_beta"`
	RiskAllele    string `json:"risk_allele"`
	PubMedID      string `json:"pubmed_id"`
	Year          string `json:"year"`
}

// ClinicalRecord is one clinical-significance entry for a variant
type ClinicalRecord struct {
	UID                  string `json:"uid"`
	Title                string `json:"title"`
	ClinicalSignificance string `json:"clinical_significance"`
	Condition            string `json:"condition"`
	Gene                 string `json:"gene"`
	ReviewStatus         string `json:"review_status"`
	Accession            string `json:"accession,omitempty"`
}

// OrPlaceholder returns s, or placeholder when s is blank
func OrPlaceholder(s, placeholder string) string {
	if s == "" {
		return placeholder
	}
	return s
}

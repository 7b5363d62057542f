package model

// EvidenceBundle is the per-identifier aggregate of variant facts, associations and papers
type EvidenceBundle struct {
	Identifier string `json:"identifier"`
	Topic      string `json:"topic"`

	Variant  *VariantRecord            `json:"variant"`            // Primary variant database record
	Variants map[string]*VariantRecord `json:"variants,omitempty"` // Keyed by source name, never merged
	Ensembl  *EnsemblRecord            `json:"ensembl,omitempty"`
	PharmGKB *PharmGKBRecord           `json:"pharmgkb,omitempty"`

	Associations []AssociationRecord `json:"associations"`
	Clinical     []ClinicalRecord    `json:"clinical"`
	Papers       []PaperRecord       `json:"papers"`

	SourceCounts map[string]int `json:"source_counts,omitempty"` // Papers per source before merge
	MergedCount  int            `json:"merged_count"`            // Papers after dedup, before reduction
}

// NewEvidenceBundle returns a bundle with empty, non-nil collections
func NewEvidenceBundle(identifier, topic string) *EvidenceBundle {
	return &EvidenceBundle{
		Identifier:   identifier,
		Topic:        topic,
		Variants:     make(map[string]*VariantRecord),
		Associations: []AssociationRecord{},
		Clinical:     []ClinicalRecord{},
		Papers:       []PaperRecord{},
		SourceCounts: make(map[string]int),
	}
}

// HasData reports whether any database returned something for the identifier
func (b *EvidenceBundle) HasData() bool {
	return b.Variant != nil || b.Ensembl != nil || b.PharmGKB != nil ||
		len(b.Associations) > 0 || len(b.Papers) > 0 || len(b.Clinical) > 0
}

// FullTextCount returns how many papers carry full text
func (b *EvidenceBundle) FullTextCount() int {
	n := 0
	for _, p := range b.Papers {
		if p.HasFullText {
			n++
		}
	}
	return n
}

// GWASCount returns how many papers are tagged as genome-wide studies
func (b *EvidenceBundle) GWASCount() int {
	n := 0
	for _, p := range b.Papers {
		if p.IsGWAS {
			n++
		}
	}
	return n
}

// Finding is one claim attributed to a single paper, used as entailment input
type Finding struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// ContradictionResult is the entailment verdict for one unordered pair of findings
type ContradictionResult struct {
	Statement1ID   string   `json:"statement1_id"`
	Statement2ID   string   `json:"statement2_id"`
	Statement1Text string   `json:"statement1_text"`
	Statement2Text string   `json:"statement2_text"`
	Score          float64  `json:"contradiction_score"`
	PredictedLabel string   `json:"predicted_label,omitempty"`
	ModelUsed      string   `json:"model_used"`
	DebertaScore   *float64 `json:"deberta_score,omitempty"` // Set only for the ensemble
	RobertaScore   *float64 `json:"roberta_score,omitempty"`
}

// ContradictionReport is the filtered detector output plus the comparison count
type ContradictionReport struct {
	Contradictions []ContradictionResult `json:"contradictions"`
	Model          string                `json:"model"`
	TotalPairs     int                   `json:"total_pairs"`
}

// PaperSection is one per-paper analysis parsed from the synthesis response
type PaperSection struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	PaperID string `json:"paper_id"`
	Body    string `json:"body"`
}

// Synthesis is the parsed language-model answer
type Synthesis struct {
	Raw        string         `json:"-"`
	Summary    string         `json:"summary"`
	Sections   []PaperSection `json:"sections"`
	Provider   string         `json:"provider,omitempty"`
	Model      string         `json:"model,omitempty"`
	TokensUsed int            `json:"tokens_used,omitempty"`
}

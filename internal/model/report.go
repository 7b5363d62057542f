package model

import "time"

// Report represents the complete output of one analysis run
type Report struct {
	RunID       string    `json:"run_id"`
	Topic       string    `json:"topic"`
	Identifiers []string  `json:"identifiers"`
	GeneratedAt time.Time `json:"generated_at"`

	Bundles map[string]*EvidenceBundle `json:"bundles"` // Keyed by identifier

	FullText *FullTextStats `json:"full_text,omitempty"` // Present when full-text resolution ran

	Synthesis      *Synthesis           `json:"synthesis"`
	Findings       []Finding            `json:"findings,omitempty"`
	Contradictions *ContradictionReport `json:"contradictions,omitempty"` // Nil when detection was skipped

	Score Score `json:"score"` // Evidence strength, never fed back into the synthesis
}

// FullTextStats is informational batch-level output of the full-text resolver
type FullTextStats struct {
	Attempted int            `json:"attempted"`
	Resolved  int            `json:"resolved"`
	BySource  map[string]int `json:"by_source,omitempty"`
}

// Score represents the transparent evidence-strength breakdown
type Score struct {
	Index      int      `json:"index"`      // Overall evidence index (0-100)
	Confidence string   `json:"confidence"` // "low", "medium", "high"
	Conflict   bool     `json:"conflict"`   // Whether contradictions were detected
	Signals    []Signal `json:"signals"`
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"` // Formula inputs
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalPaperCoverage    SignalType = "paper_coverage"    // Papers retained for the identifier
	SignalGWASSupport      SignalType = "gwas_support"      // Genome-wide studies and catalog hits
	SignalFullTextCoverage SignalType = "fulltext_coverage" // Share of papers read in full
	SignalDatabaseCoverage SignalType = "database_coverage" // Variant, clinical and association lookups
	SignalContradiction    SignalType = "contradiction"     // Conflicting findings
	SignalNoData           SignalType = "no_data"           // Nothing returned at all
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

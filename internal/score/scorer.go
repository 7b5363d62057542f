package score

import (
	"fmt"
	"math"

	"github.com/ppiankov/snpscope/internal/model"
)

const (
	expectedPapers = 10 // Papers per identifier that earn full coverage
	gwasHitPoints  = 5  // Points per association or GWAS-tagged paper
	conflictCost   = 10
)

// Scorer calculates the evidence index and generates signals
type Scorer struct {
	expectedPapers int
}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{expectedPapers: expectedPapers}
}

// WithExpectedPapers sets how many papers per identifier earn full coverage
func (s *Scorer) WithExpectedPapers(n int) *Scorer {
	if n > 0 {
		s.expectedPapers = n
	}
	return s
}

// Calculate scores the evidence behind one run. The result is reported
// alongside the synthesis and never fed back into it.
func (s *Scorer) Calculate(bundles []*model.EvidenceBundle, contradictions *model.ContradictionReport) model.Score {
	var signals []model.Signal

	hasData := false
	for _, b := range bundles {
		if b != nil && b.HasData() {
			hasData = true
			break
		}
	}
	if !hasData {
		return model.Score{
			Index:      0,
			Confidence: "low",
			Signals: []model.Signal{{
				Type:        model.SignalNoData,
				Severity:    model.SeverityCritical,
				Description: "No database or literature data found",
				Data:        map[string]interface{}{"identifiers": len(bundles)},
			}},
		}
	}

	// 1. Paper Coverage (0-40 points)
	coverageScore, coverageSignal := s.calculatePaperCoverage(bundles)
	signals = append(signals, coverageSignal)

	// 2. GWAS Support (0-25 points)
	gwasScore, gwasSignal := s.calculateGWASSupport(bundles)
	signals = append(signals, gwasSignal)

	// 3. Full-Text Coverage (0-15 points)
	fullTextScore, fullTextSignal := s.calculateFullTextCoverage(bundles)
	signals = append(signals, fullTextSignal)

	// 4. Database Coverage (0-20 points)
	dbScore, dbSignal := s.calculateDatabaseCoverage(bundles)
	signals = append(signals, dbSignal)

	// 5. Contradictions (penalty)
	conflictDetected, conflictSignal := s.detectConflict(contradictions)
	if conflictDetected {
		signals = append(signals, conflictSignal)
	}

	totalScore := coverageScore + gwasScore + fullTextScore + dbScore
	if conflictDetected {
		totalScore -= conflictCost
		if totalScore < 0 {
			totalScore = 0
		}
	}

	return model.Score{
		Index:      totalScore,
		Confidence: s.determineConfidence(totalScore, countPapers(bundles), conflictDetected),
		Conflict:   conflictDetected,
		Signals:    signals,
	}
}

func countPapers(bundles []*model.EvidenceBundle) int {
	n := 0
	for _, b := range bundles {
		if b != nil {
			n += len(b.Papers)
		}
	}
	return n
}

// calculatePaperCoverage scores retained papers against the expected count (0-40 points)
func (s *Scorer) calculatePaperCoverage(bundles []*model.EvidenceBundle) (int, model.Signal) {
	papers := countPapers(bundles)
	expected := s.expectedPapers * len(bundles)

	ratio := float64(papers) / float64(expected)
	score := int(math.Min(ratio*40, 40))

	severity := model.SeverityInfo
	if papers == 0 {
		severity = model.SeverityCritical
	} else if ratio < 0.5 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalPaperCoverage,
		Severity:    severity,
		Description: fmt.Sprintf("%d papers for %d identifier(s)", papers, len(bundles)),
		Data: map[string]interface{}{
			"papers":   papers,
			"expected": expected,
			"ratio":    ratio,
			"score":    score,
			"formula":  "min(papers / (expected_per_identifier * identifiers) * 40, 40)",
		},
	}
}

// calculateGWASSupport counts catalog associations and genome-wide papers (0-25 points)
func (s *Scorer) calculateGWASSupport(bundles []*model.EvidenceBundle) (int, model.Signal) {
	associations := 0
	gwasPapers := 0
	for _, b := range bundles {
		if b == nil {
			continue
		}
		associations += len(b.Associations)
		gwasPapers += b.GWASCount()
	}

	hits := associations + gwasPapers
	score := hits * gwasHitPoints
	if score > 25 {
		score = 25
	}

	severity := model.SeverityInfo
	if hits == 0 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalGWASSupport,
		Severity:    severity,
		Description: fmt.Sprintf("GWAS support: %d catalog associations, %d genome-wide papers", associations, gwasPapers),
		Data: map[string]interface{}{
			"associations": associations,
			"gwas_papers":  gwasPapers,
			"score":        score,
			"formula":      "min((associations + gwas_papers) * 5, 25)",
		},
	}
}

// calculateFullTextCoverage scores the share of papers read in full (0-15 points)
func (s *Scorer) calculateFullTextCoverage(bundles []*model.EvidenceBundle) (int, model.Signal) {
	papers := countPapers(bundles)
	fullText := 0
	for _, b := range bundles {
		if b != nil {
			fullText += b.FullTextCount()
		}
	}

	if papers == 0 {
		return 0, model.Signal{
			Type:        model.SignalFullTextCoverage,
			Severity:    model.SeverityInfo,
			Description: "No papers to read in full",
			Data:        map[string]interface{}{"papers": 0, "score": 0},
		}
	}

	ratio := float64(fullText) / float64(papers)
	score := int(ratio * 15)

	severity := model.SeverityInfo
	if fullText == 0 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalFullTextCoverage,
		Severity:    severity,
		Description: fmt.Sprintf("Full text: %d/%d papers (%.0f%%)", fullText, papers, ratio*100),
		Data: map[string]interface{}{
			"full_text": fullText,
			"papers":    papers,
			"ratio":     ratio,
			"score":     score,
			"formula":   "(full_text / papers) * 15",
		},
	}
}

// calculateDatabaseCoverage checks variant, association and clinical lookups (0-20 points)
func (s *Scorer) calculateDatabaseCoverage(bundles []*model.EvidenceBundle) (int, model.Signal) {
	variants, assoc, clinical := 0, 0, 0
	for _, b := range bundles {
		if b == nil {
			continue
		}
		if b.Variant != nil {
			variants++
		}
		if len(b.Associations) > 0 {
			assoc++
		}
		if len(b.Clinical) > 0 {
			clinical++
		}
	}

	hits := variants + assoc + clinical
	possible := 3 * len(bundles)
	score := int(float64(hits) / float64(possible) * 20)

	severity := model.SeverityInfo
	if variants < len(bundles) {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalDatabaseCoverage,
		Severity:    severity,
		Description: fmt.Sprintf("Database hits: %d variant, %d association, %d clinical", variants, assoc, clinical),
		Data: map[string]interface{}{
			"variant":     variants,
			"association": assoc,
			"clinical":    clinical,
			"possible":    possible,
			"score":       score,
			"formula":     "(variant + association + clinical) / (3 * identifiers) * 20",
		},
	}
}

// detectConflict reports contradicting findings
func (s *Scorer) detectConflict(r *model.ContradictionReport) (bool, model.Signal) {
	if r == nil || len(r.Contradictions) == 0 {
		return false, model.Signal{}
	}

	top := r.Contradictions[0]
	return true, model.Signal{
		Type:        model.SignalContradiction,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("Found %d contradictions in %d comparisons", len(r.Contradictions), r.TotalPairs),
		Data: map[string]interface{}{
			"contradictions": len(r.Contradictions),
			"total_pairs":    r.TotalPairs,
			"top_score":      top.Score,
			"top_pair":       top.Statement1ID + " vs " + top.Statement2ID,
			"model":          r.Model,
			"penalty":        conflictCost,
		},
	}
}

// determineConfidence determines the confidence level based on the score
func (s *Scorer) determineConfidence(score int, paperCount int, conflict bool) string {
	if conflict {
		return "low-medium"
	}

	if paperCount < 3 {
		return "low"
	}

	if score >= 80 {
		return "high"
	} else if score >= 60 {
		return "medium"
	} else {
		return "low"
	}
}

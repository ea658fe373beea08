// Package correlate joins scan findings against the risk index and orders
// them for presentation.
package correlate

import (
	"fmt"
	"sort"

	"github.com/pqshift/pqshift/internal/cryptoscan"
	"github.com/pqshift/pqshift/internal/logging"
	"github.com/pqshift/pqshift/internal/risk"
)

// unmatchedRank sorts unmatched findings after every matched one.
const unmatchedRank = 1 << 30

// EnrichedFinding is a scan finding plus its matched risk record, when one
// exists. The denormalized fields are nil for unmatched findings; they also
// stand alone after a persistence round trip, where the record reference is
// gone. Instances are owned by the request that created them and never
// mutated afterwards.
type EnrichedFinding struct {
	cryptoscan.Finding
	Match          *risk.Record    `json:"risk_match,omitempty"`
	RiskScore      *float64        `json:"risk_score"`
	Priority       *int            `json:"priority"`
	RiskLabel      *risk.RiskLevel `json:"risk_label"`
	RecommendedPQC *string         `json:"recommended_pqc"`
}

// Matched reports whether the finding joined to a risk record. Findings
// restored from storage carry only the denormalized fields, so the priority
// stands in for the record reference.
func (e *EnrichedFinding) Matched() bool {
	return e.Match != nil || e.Priority != nil
}

// RiskLevel returns the matched record's risk label. It falls back to the
// denormalized label for findings restored from storage.
func (e *EnrichedFinding) RiskLevel() (risk.RiskLevel, bool) {
	if e.Match != nil {
		return e.Match.RiskAssessment.MLRiskLabel, true
	}
	if e.RiskLabel != nil {
		return *e.RiskLabel, true
	}
	return "", false
}

// Stats summarizes how well a set of findings correlated with the index.
type Stats struct {
	TotalFindings int     `json:"total_findings"`
	Matched       int     `json:"matched"`
	MatchRate     float64 `json:"match_rate"`
	CriticalRisks int     `json:"critical_risks"`
	HighRisks     int     `json:"high_risks"`
	Unmatched     int     `json:"unmatched"`
}

// Correlator enriches findings using a loaded risk index. The index is an
// explicit dependency so tests can inject fixture data.
type Correlator struct {
	index *risk.Index
}

// NewCorrelator creates a Correlator backed by the given index.
func NewCorrelator(index *risk.Index) *Correlator {
	return &Correlator{index: index}
}

// Enrich joins each finding to its risk record by exact (algorithm, key
// size) match and returns the results ordered for presentation: matched
// findings first, ascending by priority rank; unmatched findings last,
// keeping their input order.
func (c *Correlator) Enrich(findings []cryptoscan.Finding) ([]EnrichedFinding, error) {
	enriched := make([]EnrichedFinding, 0, len(findings))

	for _, f := range findings {
		var keySize *int
		if bits, ok := f.KeySizeBits(); ok {
			keySize = &bits
		}

		match, err := c.index.MatchFinding(string(f.Algorithm), keySize)
		if err != nil {
			return nil, fmt.Errorf("matching %s finding: %w", f.Algorithm, err)
		}

		ef := EnrichedFinding{Finding: f, Match: match}
		if match != nil {
			score := match.RiskAssessment.RiskScore
			rank := match.PriorityRank
			label := match.RiskAssessment.MLRiskLabel
			pqc := match.Recommendation.RecommendedPQC
			ef.RiskScore = &score
			ef.Priority = &rank
			ef.RiskLabel = &label
			ef.RecommendedPQC = &pqc

			logging.L.Debugw("finding matched risk record",
				"key", match.Key().String(), "record", match.ID, "rank", rank)
		}
		enriched = append(enriched, ef)
	}

	sort.SliceStable(enriched, func(i, j int) bool {
		return sortRank(enriched[i]) < sortRank(enriched[j])
	})
	return enriched, nil
}

// sortRank gives matched findings their priority rank and unmatched ones a
// sentinel that places them last. The surrounding stable sort preserves
// input order within equal ranks.
func sortRank(e EnrichedFinding) int {
	if e.Priority == nil {
		return unmatchedRank
	}
	return *e.Priority
}

// CorrelationStats computes aggregate match statistics for enriched findings.
func CorrelationStats(findings []EnrichedFinding) Stats {
	s := Stats{TotalFindings: len(findings)}
	for i := range findings {
		f := &findings[i]
		if !f.Matched() {
			continue
		}
		s.Matched++
		switch level, _ := f.RiskLevel(); level {
		case risk.LevelCritical:
			s.CriticalRisks++
		case risk.LevelHigh:
			s.HighRisks++
		}
	}
	s.Unmatched = s.TotalFindings - s.Matched
	if s.TotalFindings > 0 {
		s.MatchRate = float64(s.Matched) / float64(s.TotalFindings)
	}
	return s
}

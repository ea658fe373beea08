// Package aggregate derives dashboard-ready summaries from the risk index
// and from enriched scan findings.
package aggregate

import (
	"fmt"
	"math"

	"github.com/pqshift/pqshift/internal/correlate"
	"github.com/pqshift/pqshift/internal/cryptoscan"
	"github.com/pqshift/pqshift/internal/risk"
)

// Dashboard is the summary view built from the loaded risk index.
type Dashboard struct {
	TotalVulnerabilities  int            `json:"total_vulnerabilities"`
	CriticalCount         int            `json:"critical_count"`
	HighCount             int            `json:"high_count"`
	MediumCount           int            `json:"medium_count"`
	LowCount              int            `json:"low_count"`
	AlgorithmDistribution map[string]int `json:"algorithm_distribution"`
	PQCRecommendations    map[string]int `json:"pqc_recommendations"`
	MigrationTimelines    map[string]int `json:"migration_timelines"`
	TopPriorities         []risk.Record  `json:"top_priorities"`
	ModelAccuracy         float64        `json:"model_accuracy"`
	Recommendations       []string       `json:"recommendations"`
}

// FindingsSummary aggregates one scan's enriched findings.
type FindingsSummary struct {
	Scan             cryptoscan.Summary `json:"scan"`
	Correlation      correlate.Stats    `json:"correlation"`
	AverageRiskScore float64            `json:"average_risk_score"`
	Recommendations  []string           `json:"recommendations"`
}

// BuildDashboard assembles the dashboard view from index statistics and the
// top priority records.
func BuildDashboard(index *risk.Index, topLimit int) (*Dashboard, error) {
	stats, err := index.Statistics()
	if err != nil {
		return nil, fmt.Errorf("index statistics: %w", err)
	}
	top, err := index.TopPriorities(topLimit)
	if err != nil {
		return nil, fmt.Errorf("top priorities: %w", err)
	}

	d := &Dashboard{
		TotalVulnerabilities:  stats.TotalVulnerabilities,
		CriticalCount:         stats.RiskDistribution[risk.LevelCritical],
		HighCount:             stats.RiskDistribution[risk.LevelHigh],
		MediumCount:           stats.RiskDistribution[risk.LevelMedium],
		LowCount:              stats.RiskDistribution[risk.LevelLow],
		AlgorithmDistribution: stats.AlgorithmDistribution,
		PQCRecommendations:    stats.PQCRecommendations,
		MigrationTimelines:    stats.MigrationTimelines,
		TopPriorities:         top,
		ModelAccuracy:         stats.ModelAccuracy,
	}
	d.Recommendations = Recommendations(d.CriticalCount, d.HighCount, nil)
	return d, nil
}

// SummarizeFindings aggregates one scan's enriched findings into a summary
// suitable for reports.
func SummarizeFindings(enriched []correlate.EnrichedFinding) *FindingsSummary {
	plain := make([]cryptoscan.Finding, len(enriched))
	for i := range enriched {
		plain[i] = enriched[i].Finding
	}

	corr := correlate.CorrelationStats(enriched)
	return &FindingsSummary{
		Scan:             cryptoscan.Summarize(plain),
		Correlation:      corr,
		AverageRiskScore: AverageRiskScore(enriched),
		Recommendations:  Recommendations(corr.CriticalRisks, corr.HighRisks, enriched),
	}
}

// AverageRiskScore is the mean of the non-nil per-finding risk scores,
// rounded to two decimals. It is 0 when no finding carries a score.
func AverageRiskScore(enriched []correlate.EnrichedFinding) float64 {
	var sum float64
	var n int
	for i := range enriched {
		if enriched[i].RiskScore != nil {
			sum += *enriched[i].RiskScore
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Round(sum/float64(n)*100) / 100
}

// Recommendations produces the rule-based migration advice list from the
// critical/high counts and, optionally, the findings themselves.
func Recommendations(critical, high int, enriched []correlate.EnrichedFinding) []string {
	var recs []string
	if critical > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d critical vulnerabilities found: begin migration within 0-3 months", critical))
	}
	if high > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d high-risk vulnerabilities found: plan migration within 3-6 months", high))
	}

	var sha1, weakRSA int
	for i := range enriched {
		f := &enriched[i]
		switch f.Algorithm {
		case cryptoscan.AlgorithmSHA1:
			sha1++
		case cryptoscan.AlgorithmRSA:
			if bits, ok := f.KeySizeBits(); ok && bits < 2048 {
				weakRSA++
			}
		}
	}
	if sha1 > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d SHA-1 usages detected: replace with SHA-256 or SHA-3 regardless of quantum timeline", sha1))
	}
	if weakRSA > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d RSA keys below 2048 bits detected: already weak against classical attackers", weakRSA))
	}
	if len(recs) == 0 {
		recs = append(recs, "No urgent migrations required; monitor PQC standards for updates")
	}
	return recs
}

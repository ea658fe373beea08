package risk

import (
	"fmt"
	"strings"
)

// rawRecord mirrors one vulnerability object from the risk artifact before
// validation. Optional fields are pointers so absence is distinguishable
// from a zero value.
type rawRecord struct {
	ID            string  `json:"id"`
	PriorityRank  int     `json:"priority_rank"`
	PriorityScore float64 `json:"priority_score"`
	CurrentConfig struct {
		Algorithm  string `json:"algorithm"`
		KeySize    int    `json:"key_size"`
		SystemType string `json:"system_type"`
	} `json:"current_config"`
	RiskAssessment struct {
		RiskScore         float64 `json:"risk_score"`
		MLRiskLabel       string  `json:"ml_risk_label"`
		MLConfidence      float64 `json:"ml_confidence"`
		QuantumVulnerable bool    `json:"quantum_vulnerable"`
	} `json:"risk_assessment"`
	Recommendation struct {
		RecommendedPQC      string  `json:"recommended_pqc"`
		EstimatedEffortDays int     `json:"estimated_effort_days"`
		MigrationComplexity *string `json:"migration_complexity"`
	} `json:"recommendation"`
	Migration *struct {
		Timeline string `json:"timeline"`
	} `json:"migration"`
	Explainability *struct {
		TopRiskFactors          []string `json:"top_risk_factors"`
		RecommendationRationale string   `json:"recommendation_rationale"`
	} `json:"explainability"`
}

// normalizeRecord converts a raw artifact record into a validated Record,
// synthesizing defaults for the optional fields first. All default-synthesis
// logic lives here; consumers never see a partially-filled record.
func normalizeRecord(raw rawRecord) (Record, error) {
	rec := Record{
		ID:            raw.ID,
		PriorityRank:  raw.PriorityRank,
		PriorityScore: raw.PriorityScore,
		CurrentConfig: CurrentConfig{
			Algorithm:  raw.CurrentConfig.Algorithm,
			KeySize:    raw.CurrentConfig.KeySize,
			SystemType: raw.CurrentConfig.SystemType,
		},
		RiskAssessment: Assessment{
			RiskScore:         raw.RiskAssessment.RiskScore,
			MLRiskLabel:       RiskLevel(raw.RiskAssessment.MLRiskLabel),
			MLConfidence:      raw.RiskAssessment.MLConfidence,
			QuantumVulnerable: raw.RiskAssessment.QuantumVulnerable,
		},
		Recommendation: Recommendation{
			RecommendedPQC:      raw.Recommendation.RecommendedPQC,
			EstimatedEffortDays: raw.Recommendation.EstimatedEffortDays,
		},
	}

	if raw.Recommendation.MigrationComplexity != nil {
		rec.Recommendation.MigrationComplexity = *raw.Recommendation.MigrationComplexity
	} else {
		rec.Recommendation.MigrationComplexity = complexityFromEffort(raw.Recommendation.EstimatedEffortDays)
	}

	if raw.Migration != nil && raw.Migration.Timeline != "" {
		rec.Migration.Timeline = raw.Migration.Timeline
	} else {
		rec.Migration.Timeline = timelineFromScore(raw.RiskAssessment.RiskScore)
	}

	if raw.Explainability != nil {
		rec.Explainability.TopRiskFactors = raw.Explainability.TopRiskFactors
		rec.Explainability.RecommendationRationale = raw.Explainability.RecommendationRationale
	} else {
		rec.Explainability = synthesizeExplainability(rec)
	}

	if err := validateRecord(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// complexityFromEffort maps estimated effort days onto a complexity label.
func complexityFromEffort(days int) string {
	switch {
	case days >= 60:
		return "High"
	case days >= 40:
		return "Medium"
	default:
		return "Low"
	}
}

// timelineFromScore maps a risk score onto a migration urgency bucket.
func timelineFromScore(score float64) string {
	switch {
	case score >= 95:
		return "Immediate (0-3 months)"
	case score >= 85:
		return "Short-term (3-6 months)"
	case score >= 70:
		return "Medium-term (6-12 months)"
	default:
		return "Long-term (12+ months)"
	}
}

// synthesizeExplainability builds minimal explainability data from the
// record's own configuration when the artifact omits it.
func synthesizeExplainability(rec Record) Explainability {
	factors := []string{
		fmt.Sprintf("%s is vulnerable to quantum attacks", rec.CurrentConfig.Algorithm),
	}
	if rec.CurrentConfig.KeySize > 0 {
		factors = append(factors, fmt.Sprintf("Key size %d bits offers insufficient post-quantum margin", rec.CurrentConfig.KeySize))
	}
	factors = append(factors, fmt.Sprintf("Model classified the configuration as %s risk", rec.RiskAssessment.MLRiskLabel))

	return Explainability{
		TopRiskFactors: factors,
		RecommendationRationale: fmt.Sprintf(
			"%s-%d was assessed as %s risk; migrate to %s.",
			rec.CurrentConfig.Algorithm,
			rec.CurrentConfig.KeySize,
			rec.RiskAssessment.MLRiskLabel,
			strings.TrimSpace(rec.Recommendation.RecommendedPQC),
		),
	}
}

// validateRecord checks the invariants every loaded record must hold.
func validateRecord(rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record has no id")
	}
	if rec.CurrentConfig.Algorithm == "" {
		return fmt.Errorf("record %s has no algorithm", rec.ID)
	}
	if rec.CurrentConfig.KeySize <= 0 {
		return fmt.Errorf("record %s has invalid key size %d", rec.ID, rec.CurrentConfig.KeySize)
	}
	if !ValidLevel(rec.RiskAssessment.MLRiskLabel) {
		return fmt.Errorf("record %s has invalid risk label %q", rec.ID, rec.RiskAssessment.MLRiskLabel)
	}
	if rec.RiskAssessment.RiskScore < 0 || rec.RiskAssessment.RiskScore > 100 {
		return fmt.Errorf("record %s has out-of-range risk score %v", rec.ID, rec.RiskAssessment.RiskScore)
	}
	if rec.PriorityRank < 1 {
		return fmt.Errorf("record %s has invalid priority rank %d", rec.ID, rec.PriorityRank)
	}
	if rec.Recommendation.RecommendedPQC == "" {
		return fmt.Errorf("record %s has no recommended replacement", rec.ID)
	}
	return nil
}

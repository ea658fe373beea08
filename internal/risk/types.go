// Package risk loads the precomputed risk artifact produced by the offline
// scoring pipeline and serves exact-match lookups against it.
package risk

import "fmt"

// RiskLevel is the closed set of risk labels assigned by the scoring model.
type RiskLevel string

const (
	LevelCritical RiskLevel = "Critical"
	LevelHigh     RiskLevel = "High"
	LevelMedium   RiskLevel = "Medium"
	LevelLow      RiskLevel = "Low"
)

// AllLevels returns the risk levels in descending urgency order.
func AllLevels() []RiskLevel {
	return []RiskLevel{LevelCritical, LevelHigh, LevelMedium, LevelLow}
}

// ValidLevel reports whether the label belongs to the closed risk-level set.
func ValidLevel(l RiskLevel) bool {
	switch l {
	case LevelCritical, LevelHigh, LevelMedium, LevelLow:
		return true
	}
	return false
}

// ConfigKey is the composite join key between a scan finding and a risk
// record. A struct key rather than string concatenation, so algorithm names
// containing separators cannot collide.
type ConfigKey struct {
	Algorithm string
	KeySize   int
}

func (k ConfigKey) String() string {
	return fmt.Sprintf("%s-%d", k.Algorithm, k.KeySize)
}

// CurrentConfig describes the cryptographic configuration a record scores.
type CurrentConfig struct {
	Algorithm  string `json:"algorithm"`
	KeySize    int    `json:"key_size"`
	SystemType string `json:"system_type"`
}

// Assessment holds the model's risk evaluation for one configuration.
type Assessment struct {
	RiskScore         float64   `json:"risk_score"` // 0-100
	MLRiskLabel       RiskLevel `json:"ml_risk_label"`
	MLConfidence      float64   `json:"ml_confidence"`
	QuantumVulnerable bool      `json:"quantum_vulnerable"`
}

// Recommendation holds the suggested post-quantum replacement.
type Recommendation struct {
	RecommendedPQC      string `json:"recommended_pqc"`
	EstimatedEffortDays int    `json:"estimated_effort_days"`
	MigrationComplexity string `json:"migration_complexity"`
}

// Migration holds the coarse urgency bucket for the migration.
type Migration struct {
	Timeline string `json:"timeline"`
}

// Explainability carries the model's reasoning for the assessment.
type Explainability struct {
	TopRiskFactors          []string `json:"top_risk_factors"`
	RecommendationRationale string   `json:"recommendation_rationale"`
}

// Record is one precomputed risk assessment, uniquely addressable by its
// (algorithm, key size) configuration. Records are read-only after load.
type Record struct {
	ID             string         `json:"id"`
	PriorityRank   int            `json:"priority_rank"` // 1 = most urgent
	PriorityScore  float64        `json:"priority_score"`
	CurrentConfig  CurrentConfig  `json:"current_config"`
	RiskAssessment Assessment     `json:"risk_assessment"`
	Recommendation Recommendation `json:"recommendation"`
	Migration      Migration      `json:"migration"`
	Explainability Explainability `json:"explainability"`
}

// Key returns the record's composite join key.
func (r *Record) Key() ConfigKey {
	return ConfigKey{Algorithm: r.CurrentConfig.Algorithm, KeySize: r.CurrentConfig.KeySize}
}

// FeatureWeight is one entry of the feature-importance side artifact.
type FeatureWeight struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Statistics summarizes the loaded index for dashboards.
type Statistics struct {
	TotalVulnerabilities  int               `json:"total_vulnerabilities"`
	RiskDistribution      map[RiskLevel]int `json:"risk_distribution"`
	AlgorithmDistribution map[string]int    `json:"algorithm_distribution"`
	PQCRecommendations    map[string]int    `json:"pqc_recommendations"`
	MigrationTimelines    map[string]int    `json:"migration_timelines"`
	ModelAccuracy         float64           `json:"model_accuracy"`
}

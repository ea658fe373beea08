package risk

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRaw(t *testing.T, doc string) rawRecord {
	t.Helper()
	var raw rawRecord
	require.NoError(t, json.Unmarshal([]byte(doc), &raw))
	return raw
}

const fullRecordJSON = `{
	"id": "VULN-001",
	"priority_rank": 1,
	"priority_score": 9.7,
	"current_config": {"algorithm": "RSA", "key_size": 1024, "system_type": "TLS endpoint"},
	"risk_assessment": {"risk_score": 98, "ml_risk_label": "Critical", "ml_confidence": 0.94, "quantum_vulnerable": true},
	"recommendation": {"recommended_pqc": "Kyber-1024", "estimated_effort_days": 45, "migration_complexity": "Medium"},
	"migration": {"timeline": "Immediate (0-3 months)"},
	"explainability": {"top_risk_factors": ["short modulus"], "recommendation_rationale": "broken by Shor"}
}`

func TestNormalizeCompleteRecord(t *testing.T) {
	rec, err := normalizeRecord(decodeRaw(t, fullRecordJSON))
	require.NoError(t, err)

	assert.Equal(t, "VULN-001", rec.ID)
	assert.Equal(t, 1, rec.PriorityRank)
	assert.Equal(t, ConfigKey{Algorithm: "RSA", KeySize: 1024}, rec.Key())
	assert.Equal(t, LevelCritical, rec.RiskAssessment.MLRiskLabel)
	assert.Equal(t, "Kyber-1024", rec.Recommendation.RecommendedPQC)
	assert.Equal(t, "Medium", rec.Recommendation.MigrationComplexity)
	assert.Equal(t, "Immediate (0-3 months)", rec.Migration.Timeline)
	assert.Equal(t, []string{"short modulus"}, rec.Explainability.TopRiskFactors)
}

func TestNormalizeSynthesizesComplexityFromEffort(t *testing.T) {
	tests := []struct {
		days int
		want string
	}{
		{75, "High"},
		{60, "High"},
		{59, "Medium"},
		{40, "Medium"},
		{39, "Low"},
		{0, "Low"},
	}
	for _, tt := range tests {
		raw := decodeRaw(t, fullRecordJSON)
		raw.Recommendation.MigrationComplexity = nil
		raw.Recommendation.EstimatedEffortDays = tt.days

		rec, err := normalizeRecord(raw)
		require.NoError(t, err)
		assert.Equal(t, tt.want, rec.Recommendation.MigrationComplexity, "days=%d", tt.days)
	}
}

func TestNormalizeSynthesizesTimelineFromScore(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{98, "Immediate (0-3 months)"},
		{95, "Immediate (0-3 months)"},
		{94.9, "Short-term (3-6 months)"},
		{85, "Short-term (3-6 months)"},
		{84, "Medium-term (6-12 months)"},
		{70, "Medium-term (6-12 months)"},
		{69, "Long-term (12+ months)"},
		{10, "Long-term (12+ months)"},
	}
	for _, tt := range tests {
		raw := decodeRaw(t, fullRecordJSON)
		raw.Migration = nil
		raw.RiskAssessment.RiskScore = tt.score

		rec, err := normalizeRecord(raw)
		require.NoError(t, err)
		assert.Equal(t, tt.want, rec.Migration.Timeline, "score=%v", tt.score)
	}
}

func TestNormalizeSynthesizesExplainability(t *testing.T) {
	raw := decodeRaw(t, fullRecordJSON)
	raw.Explainability = nil

	rec, err := normalizeRecord(raw)
	require.NoError(t, err)
	require.NotEmpty(t, rec.Explainability.TopRiskFactors)
	assert.Contains(t, rec.Explainability.TopRiskFactors[0], "RSA")
	assert.Contains(t, rec.Explainability.RecommendationRationale, "Kyber-1024")
}

func TestNormalizeRejectsInvalidRecords(t *testing.T) {
	mutate := []struct {
		name string
		fn   func(r *rawRecord)
	}{
		{"missing id", func(r *rawRecord) { r.ID = "" }},
		{"missing algorithm", func(r *rawRecord) { r.CurrentConfig.Algorithm = "" }},
		{"zero key size", func(r *rawRecord) { r.CurrentConfig.KeySize = 0 }},
		{"bad risk label", func(r *rawRecord) { r.RiskAssessment.MLRiskLabel = "Extreme" }},
		{"risk score above 100", func(r *rawRecord) { r.RiskAssessment.RiskScore = 101 }},
		{"zero priority rank", func(r *rawRecord) { r.PriorityRank = 0 }},
		{"missing pqc", func(r *rawRecord) { r.Recommendation.RecommendedPQC = "" }},
	}
	for _, tt := range mutate {
		t.Run(tt.name, func(t *testing.T) {
			raw := decodeRaw(t, fullRecordJSON)
			tt.fn(&raw)
			_, err := normalizeRecord(raw)
			assert.Error(t, err)
		})
	}
}

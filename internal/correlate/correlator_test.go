package correlate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pqshift/pqshift/internal/cryptoscan"
	"github.com/pqshift/pqshift/internal/risk"
)

const testArtifact = `{
	"metadata": {"model_accuracy": 0.9},
	"vulnerabilities": [
		{
			"id": "VULN-001",
			"priority_rank": 1,
			"priority_score": 9.7,
			"current_config": {"algorithm": "RSA", "key_size": 1024, "system_type": "TLS"},
			"risk_assessment": {"risk_score": 98, "ml_risk_label": "Critical", "ml_confidence": 0.94, "quantum_vulnerable": true},
			"recommendation": {"recommended_pqc": "Kyber-1024", "estimated_effort_days": 45}
		},
		{
			"id": "VULN-002",
			"priority_rank": 4,
			"priority_score": 5.1,
			"current_config": {"algorithm": "ECC", "key_size": 256, "system_type": "JWT"},
			"risk_assessment": {"risk_score": 88, "ml_risk_label": "High", "ml_confidence": 0.8, "quantum_vulnerable": true},
			"recommendation": {"recommended_pqc": "Dilithium-3", "estimated_effort_days": 20}
		}
	]
}`

func testIndex(t *testing.T) *risk.Index {
	t.Helper()
	path := filepath.Join(t.TempDir(), "risk_output.json")
	require.NoError(t, os.WriteFile(path, []byte(testArtifact), 0o644))
	idx := risk.NewIndex()
	require.NoError(t, idx.Load(path))
	return idx
}

func sized(bits int) *cryptoscan.KeySize {
	return &cryptoscan.KeySize{Bits: bits}
}

func TestEnrichMatchedFinding(t *testing.T) {
	c := NewCorrelator(testIndex(t))

	enriched, err := c.Enrich([]cryptoscan.Finding{
		{FilePath: "src/auth.py", LineNumber: 3, Algorithm: cryptoscan.AlgorithmRSA, KeySize: sized(1024)},
	})
	require.NoError(t, err)
	require.Len(t, enriched, 1)

	f := enriched[0]
	require.True(t, f.Matched())
	assert.Equal(t, float64(98), *f.RiskScore)
	assert.Equal(t, 1, *f.Priority)
	assert.Equal(t, risk.LevelCritical, *f.RiskLabel)
	assert.Equal(t, "Kyber-1024", *f.RecommendedPQC)
	assert.Equal(t, "VULN-001", f.Match.ID)
}

func TestMatchedSurvivesWithoutRecordReference(t *testing.T) {
	// Findings restored from storage carry only the denormalized fields.
	score := 98.0
	rank := 1
	label := risk.LevelCritical
	restored := EnrichedFinding{
		Finding:   cryptoscan.Finding{FilePath: "src/auth.py", Algorithm: cryptoscan.AlgorithmRSA, KeySize: sized(1024)},
		RiskScore: &score,
		Priority:  &rank,
		RiskLabel: &label,
	}

	require.True(t, restored.Matched())
	level, ok := restored.RiskLevel()
	require.True(t, ok)
	assert.Equal(t, risk.LevelCritical, level)

	stats := CorrelationStats([]EnrichedFinding{
		restored,
		{Finding: cryptoscan.Finding{Algorithm: cryptoscan.AlgorithmSHA1}},
	})
	assert.Equal(t, 2, stats.TotalFindings)
	assert.Equal(t, 1, stats.Matched)
	assert.Equal(t, 1, stats.CriticalRisks)
	assert.Equal(t, 1, stats.Unmatched)
	assert.Equal(t, 0.5, stats.MatchRate)
}

func TestEnrichUnmatchedFindingHasNils(t *testing.T) {
	c := NewCorrelator(testIndex(t))

	enriched, err := c.Enrich([]cryptoscan.Finding{
		{FilePath: "a.go", LineNumber: 1, Algorithm: cryptoscan.AlgorithmAES, KeySize: sized(128)},
	})
	require.NoError(t, err)
	require.Len(t, enriched, 1)

	f := enriched[0]
	assert.False(t, f.Matched())
	assert.Nil(t, f.RiskScore)
	assert.Nil(t, f.Priority)
	assert.Nil(t, f.RecommendedPQC)
}

func TestEnrichNilKeySizeNeverMatches(t *testing.T) {
	c := NewCorrelator(testIndex(t))

	enriched, err := c.Enrich([]cryptoscan.Finding{
		{FilePath: "h.c", LineNumber: 9, Algorithm: cryptoscan.AlgorithmSHA1, KeySize: nil},
	})
	require.NoError(t, err)
	require.Len(t, enriched, 1)
	assert.False(t, enriched[0].Matched())
}

func TestEnrichOrdering(t *testing.T) {
	c := NewCorrelator(testIndex(t))

	enriched, err := c.Enrich([]cryptoscan.Finding{
		{FilePath: "one.py", Algorithm: cryptoscan.AlgorithmAES, KeySize: sized(128)},  // unmatched
		{FilePath: "two.py", Algorithm: cryptoscan.AlgorithmECC, KeySize: sized(256)},  // rank 4
		{FilePath: "three.c", Algorithm: cryptoscan.AlgorithmSHA1},                     // unmatched
		{FilePath: "four.py", Algorithm: cryptoscan.AlgorithmRSA, KeySize: sized(1024)}, // rank 1
	})
	require.NoError(t, err)
	require.Len(t, enriched, 4)

	// Matched first by ascending rank, then unmatched in input order.
	assert.Equal(t, "four.py", enriched[0].FilePath)
	assert.Equal(t, "two.py", enriched[1].FilePath)
	assert.Equal(t, "one.py", enriched[2].FilePath)
	assert.Equal(t, "three.c", enriched[3].FilePath)
}

func TestEnrichFailsWhenIndexNotLoaded(t *testing.T) {
	c := NewCorrelator(risk.NewIndex())

	_, err := c.Enrich([]cryptoscan.Finding{
		{Algorithm: cryptoscan.AlgorithmRSA, KeySize: sized(1024)},
	})
	assert.ErrorIs(t, err, risk.ErrNotLoaded)
}

func TestCorrelationStats(t *testing.T) {
	c := NewCorrelator(testIndex(t))

	enriched, err := c.Enrich([]cryptoscan.Finding{
		{Algorithm: cryptoscan.AlgorithmRSA, KeySize: sized(1024)},
		{Algorithm: cryptoscan.AlgorithmECC, KeySize: sized(256)},
		{Algorithm: cryptoscan.AlgorithmAES, KeySize: sized(128)},
		{Algorithm: cryptoscan.AlgorithmSHA1},
	})
	require.NoError(t, err)

	stats := CorrelationStats(enriched)
	assert.Equal(t, 4, stats.TotalFindings)
	assert.Equal(t, 2, stats.Matched)
	assert.Equal(t, 0.5, stats.MatchRate)
	assert.Equal(t, 1, stats.CriticalRisks)
	assert.Equal(t, 1, stats.HighRisks)
	assert.Equal(t, 2, stats.Unmatched)
}

func TestCorrelationStatsEmpty(t *testing.T) {
	stats := CorrelationStats(nil)
	assert.Equal(t, 0, stats.TotalFindings)
	assert.Equal(t, float64(0), stats.MatchRate)
}

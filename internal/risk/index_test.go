package risk

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testArtifact = `{
	"metadata": {"model_accuracy": 0.93, "generated_by": "offline-pipeline"},
	"vulnerabilities": [
		{
			"id": "VULN-001",
			"priority_rank": 1,
			"priority_score": 9.7,
			"current_config": {"algorithm": "RSA", "key_size": 1024, "system_type": "TLS endpoint"},
			"risk_assessment": {"risk_score": 98, "ml_risk_label": "Critical", "ml_confidence": 0.94, "quantum_vulnerable": true},
			"recommendation": {"recommended_pqc": "Kyber-1024", "estimated_effort_days": 45}
		},
		{
			"id": "VULN-002",
			"priority_rank": 3,
			"priority_score": 6.2,
			"current_config": {"algorithm": "ECC", "key_size": 256, "system_type": "JWT signing"},
			"risk_assessment": {"risk_score": 88, "ml_risk_label": "High", "ml_confidence": 0.81, "quantum_vulnerable": true},
			"recommendation": {"recommended_pqc": "Dilithium-3", "estimated_effort_days": 62}
		},
		{
			"id": "VULN-003",
			"priority_rank": 2,
			"priority_score": 7.5,
			"current_config": {"algorithm": "DH", "key_size": 2048, "system_type": "VPN"},
			"risk_assessment": {"risk_score": 91, "ml_risk_label": "High", "ml_confidence": 0.87, "quantum_vulnerable": true},
			"recommendation": {"recommended_pqc": "Kyber-768", "estimated_effort_days": 30}
		},
		{
			"id": "BROKEN",
			"priority_rank": 0,
			"current_config": {"algorithm": "", "key_size": 0},
			"risk_assessment": {"risk_score": 50, "ml_risk_label": "Nope"},
			"recommendation": {"recommended_pqc": ""}
		}
	]
}`

func writeArtifact(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "risk_output.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func loadedIndex(t *testing.T) *Index {
	t.Helper()
	idx := NewIndex()
	require.NoError(t, idx.Load(writeArtifact(t, testArtifact)))
	return idx
}

func TestLoadSkipsInvalidRecords(t *testing.T) {
	idx := loadedIndex(t)
	assert.Equal(t, 3, idx.Len(), "the broken record is skipped, not fatal")
}

func TestLoadMissingArtifactIsFatal(t *testing.T) {
	idx := NewIndex()
	assert.Error(t, idx.Load(filepath.Join(t.TempDir(), "absent.json")))
	assert.Equal(t, 0, idx.Len())
}

func TestLoadUnparsableArtifactIsFatal(t *testing.T) {
	idx := NewIndex()
	assert.Error(t, idx.Load(writeArtifact(t, "{not json")))
}

func TestQueriesBeforeLoadFail(t *testing.T) {
	idx := NewIndex()

	_, err := idx.MatchFinding("RSA", intPtr(1024))
	assert.ErrorIs(t, err, ErrNotLoaded)

	_, err = idx.Statistics()
	assert.ErrorIs(t, err, ErrNotLoaded)

	_, err = idx.TopPriorities(5)
	assert.ErrorIs(t, err, ErrNotLoaded)

	_, err = idx.ByRiskLevel(LevelHigh)
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestMatchFindingExact(t *testing.T) {
	idx := loadedIndex(t)

	rec, err := idx.MatchFinding("RSA", intPtr(1024))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "VULN-001", rec.ID)
	assert.Equal(t, float64(98), rec.RiskAssessment.RiskScore)
	assert.Equal(t, "Kyber-1024", rec.Recommendation.RecommendedPQC)
}

func TestMatchFindingNilKeySizeNeverMatches(t *testing.T) {
	idx := loadedIndex(t)

	for _, algo := range []string{"RSA", "ECC", "DH", "AES", "SHA1"} {
		rec, err := idx.MatchFinding(algo, nil)
		require.NoError(t, err)
		assert.Nil(t, rec, "algorithm %s", algo)
	}
}

func TestMatchFindingNoNearestSizeFallback(t *testing.T) {
	idx := loadedIndex(t)

	// RSA-2048 is not in the artifact; RSA-1024 is. No fuzzy matching.
	rec, err := idx.MatchFinding("RSA", intPtr(2048))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestMatchFindingIsPure(t *testing.T) {
	idx := loadedIndex(t)

	first, err := idx.MatchFinding("ECC", intPtr(256))
	require.NoError(t, err)
	second, err := idx.MatchFinding("ECC", intPtr(256))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestStatistics(t *testing.T) {
	idx := loadedIndex(t)

	stats, err := idx.Statistics()
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalVulnerabilities)
	assert.Equal(t, 1, stats.RiskDistribution[LevelCritical])
	assert.Equal(t, 2, stats.RiskDistribution[LevelHigh])
	assert.Equal(t, 0, stats.RiskDistribution[LevelMedium])
	assert.Equal(t, 0, stats.RiskDistribution[LevelLow])

	sum := 0
	for _, level := range AllLevels() {
		sum += stats.RiskDistribution[level]
	}
	assert.Equal(t, stats.TotalVulnerabilities, sum)

	assert.Equal(t, 1, stats.AlgorithmDistribution["RSA"])
	assert.Equal(t, 1, stats.PQCRecommendations["Kyber-768"])
	assert.Equal(t, 0.93, stats.ModelAccuracy)
}

func TestStatisticsIdempotentAcrossReload(t *testing.T) {
	path := writeArtifact(t, testArtifact)
	idx := NewIndex()
	require.NoError(t, idx.Load(path))
	first, err := idx.Statistics()
	require.NoError(t, err)

	require.NoError(t, idx.Load(path))
	second, err := idx.Statistics()
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestTopPriorities(t *testing.T) {
	idx := loadedIndex(t)

	top, err := idx.TopPriorities(2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "VULN-001", top[0].ID)
	assert.Equal(t, "VULN-003", top[1].ID)

	all, err := idx.TopPriorities(10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestTopPrioritiesStableForEqualRanks(t *testing.T) {
	doc := `{
		"metadata": {},
		"vulnerabilities": [` +
		rankRecord("FIRST", 1, 512) + "," + rankRecord("SECOND", 1, 768) + "," + rankRecord("THIRD", 1, 1024) +
		`]}`
	idx := NewIndex()
	require.NoError(t, idx.Load(writeArtifact(t, doc)))

	top, err := idx.TopPriorities(3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "FIRST", top[0].ID)
	assert.Equal(t, "SECOND", top[1].ID)
	assert.Equal(t, "THIRD", top[2].ID)
}

func rankRecord(id string, rank, keySize int) string {
	return fmt.Sprintf(`{
		"id": %q,
		"priority_rank": %d,
		"priority_score": 5,
		"current_config": {"algorithm": "RSA", "key_size": %d, "system_type": "x"},
		"risk_assessment": {"risk_score": 80, "ml_risk_label": "High", "ml_confidence": 0.8, "quantum_vulnerable": true},
		"recommendation": {"recommended_pqc": "Kyber-768", "estimated_effort_days": 10}
	}`, id, rank, keySize)
}

func TestByRiskLevel(t *testing.T) {
	idx := loadedIndex(t)

	high, err := idx.ByRiskLevel(LevelHigh)
	require.NoError(t, err)
	require.Len(t, high, 2)
	assert.Equal(t, "VULN-002", high[0].ID)
	assert.Equal(t, "VULN-003", high[1].ID)

	low, err := idx.ByRiskLevel(LevelLow)
	require.NoError(t, err)
	assert.Empty(t, low)
}

func TestByRiskLevelRejectsUnknownLabel(t *testing.T) {
	idx := loadedIndex(t)

	_, err := idx.ByRiskLevel("Extreme")
	assert.ErrorIs(t, err, ErrInvalidRiskLevel)
}

func TestSideDataTolerated(t *testing.T) {
	idx := loadedIndex(t)

	dir := t.TempDir()
	// Missing features file and empty plots dir: warnings only.
	require.NoError(t, idx.LoadSideData(filepath.Join(dir, "absent.csv"), dir))
	assert.Empty(t, idx.Features())
	assert.Empty(t, idx.Plots())
}

func TestSideDataLoaded(t *testing.T) {
	idx := loadedIndex(t)

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "shap_feature_importance.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("feature,mean_abs_shap\nkey_size,0.42\nalgorithm,0.31\nbad,oops\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summary.png"), []byte("png"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("txt"), 0o644))

	require.NoError(t, idx.LoadSideData(csvPath, dir))

	features := idx.Features()
	require.Len(t, features, 2)
	assert.Equal(t, FeatureWeight{Feature: "key_size", Importance: 0.42}, features[0])

	assert.Equal(t, []string{"summary.png"}, idx.Plots())
}

func TestSideDataLoadDoesNotRevertConcurrentReload(t *testing.T) {
	idx := loadedIndex(t) // three records

	single := `{"metadata": {}, "vulnerabilities": [` + rankRecord("ONLY", 1, 512) + `]}`
	path := writeArtifact(t, single)
	dir := t.TempDir()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_ = idx.LoadSideData(filepath.Join(dir, "absent.csv"), dir)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_ = idx.Load(path)
		}
	}()
	wg.Wait()

	// Side-data attachment must never republish the pre-reload record set.
	assert.Equal(t, 1, idx.Len())
}

func intPtr(v int) *int { return &v }

package risk

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/pqshift/pqshift/internal/logging"
)

// ErrNotLoaded is returned by queries issued before a successful Load.
var ErrNotLoaded = errors.New("risk index not loaded")

// ErrInvalidRiskLevel is returned when a caller passes a label outside the
// closed risk-level set.
var ErrInvalidRiskLevel = errors.New("invalid risk level")

// snapshot is one fully-loaded, immutable view of the artifact. Readers
// always see either a complete old snapshot or a complete new one.
type snapshot struct {
	records  []Record // load order preserved
	lookup   map[ConfigKey]*Record
	metadata map[string]any
	features []FeatureWeight
	plots    []string
}

// Index serves lookups against the loaded risk artifact. The zero value is
// usable; queries fail with ErrNotLoaded until Load succeeds. Loading
// publishes atomically, so concurrent readers need no locking.
type Index struct {
	current atomic.Pointer[snapshot]
}

// NewIndex creates an empty, unloaded Index.
func NewIndex() *Index {
	return &Index{}
}

// artifactDoc is the top-level shape of the risk artifact.
type artifactDoc struct {
	Metadata        map[string]any    `json:"metadata"`
	Vulnerabilities []json.RawMessage `json:"vulnerabilities"`
}

// Load parses the risk artifact at path and atomically publishes the result.
// Individual records that fail validation are skipped and logged; a missing
// or unparsable document is fatal and leaves any previous snapshot in place.
func (idx *Index) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading risk artifact: %w", err)
	}

	var doc artifactDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing risk artifact %s: %w", path, err)
	}

	snap := &snapshot{
		lookup:   make(map[ConfigKey]*Record, len(doc.Vulnerabilities)),
		metadata: doc.Metadata,
	}
	if snap.metadata == nil {
		snap.metadata = map[string]any{}
	}

	for i, rawJSON := range doc.Vulnerabilities {
		var raw rawRecord
		if err := json.Unmarshal(rawJSON, &raw); err != nil {
			logging.L.Warnw("skipping undecodable risk record", "index", i, "error", err)
			continue
		}
		rec, err := normalizeRecord(raw)
		if err != nil {
			logging.L.Warnw("skipping invalid risk record", "index", i, "error", err)
			continue
		}
		snap.records = append(snap.records, rec)
	}

	// Build the lookup table after the slice is final so pointers stay valid.
	for i := range snap.records {
		snap.lookup[snap.records[i].Key()] = &snap.records[i]
	}

	// Carry forward side data from a previous load, if any.
	if prev := idx.current.Load(); prev != nil {
		snap.features = prev.features
		snap.plots = prev.plots
	}

	idx.current.Store(snap)
	logging.L.Infow("risk index loaded", "records", len(snap.records), "path", path)
	return nil
}

// LoadSideData loads the optional feature-importance CSV and discovers plot
// image files. Both artifacts are presentational; their absence is tolerated
// with a warning and empty results.
func (idx *Index) LoadSideData(featuresPath, plotsDir string) error {
	features, featErr := loadFeatureWeights(featuresPath)
	if featErr != nil {
		logging.L.Warnw("feature importance data unavailable", "path", featuresPath, "error", featErr)
	}
	plots, plotErr := discoverPlots(plotsDir)
	if plotErr != nil {
		logging.L.Warnw("plot discovery failed", "dir", plotsDir, "error", plotErr)
	}

	// Attach via compare-and-swap so a concurrent Load's record set is never
	// reverted to the snapshot read here.
	for {
		snap := idx.current.Load()
		if snap == nil {
			return ErrNotLoaded
		}

		next := *snap
		if featErr == nil {
			next.features = features
		}
		if plotErr == nil {
			next.plots = plots
		}

		if idx.current.CompareAndSwap(snap, &next) {
			return nil
		}
	}
}

// loadFeatureWeights parses a two-column CSV of feature name and importance.
func loadFeatureWeights(path string) ([]FeatureWeight, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	featureCol, weightCol := 0, 1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "feature":
			featureCol = i
		case "mean_abs_shap", "importance":
			weightCol = i
		}
	}

	var features []FeatureWeight
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		if len(row) <= featureCol || len(row) <= weightCol {
			continue
		}
		weight, err := strconv.ParseFloat(strings.TrimSpace(row[weightCol]), 64)
		if err != nil {
			logging.L.Warnw("skipping feature row with bad weight", "feature", row[featureCol], "value", row[weightCol])
			continue
		}
		features = append(features, FeatureWeight{
			Feature:    strings.TrimSpace(row[featureCol]),
			Importance: weight,
		})
	}
	return features, nil
}

// discoverPlots lists image files in dir.
func discoverPlots(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var plots []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			plots = append(plots, e.Name())
		}
	}
	return plots, nil
}

// MatchFinding returns the record for the exact (algorithm, key size)
// configuration, or nil when there is none. A nil key size never matches:
// the join is strict equality, not a nearest-size heuristic.
func (idx *Index) MatchFinding(algorithm string, keySize *int) (*Record, error) {
	snap := idx.current.Load()
	if snap == nil {
		return nil, ErrNotLoaded
	}
	if keySize == nil {
		return nil, nil
	}
	return snap.lookup[ConfigKey{Algorithm: algorithm, KeySize: *keySize}], nil
}

// Statistics summarizes the loaded artifact.
func (idx *Index) Statistics() (*Statistics, error) {
	snap := idx.current.Load()
	if snap == nil {
		return nil, ErrNotLoaded
	}

	stats := &Statistics{
		TotalVulnerabilities:  len(snap.records),
		RiskDistribution:      make(map[RiskLevel]int, len(AllLevels())),
		AlgorithmDistribution: make(map[string]int),
		PQCRecommendations:    make(map[string]int),
		MigrationTimelines:    make(map[string]int),
	}
	for _, level := range AllLevels() {
		stats.RiskDistribution[level] = 0
	}

	for i := range snap.records {
		rec := &snap.records[i]
		stats.RiskDistribution[rec.RiskAssessment.MLRiskLabel]++
		stats.AlgorithmDistribution[rec.CurrentConfig.Algorithm]++
		stats.PQCRecommendations[rec.Recommendation.RecommendedPQC]++
		stats.MigrationTimelines[rec.Migration.Timeline]++
	}

	if acc, ok := snap.metadata["model_accuracy"].(float64); ok {
		stats.ModelAccuracy = acc
	}
	return stats, nil
}

// TopPriorities returns up to limit records sorted ascending by priority
// rank. Equal ranks keep artifact load order.
func (idx *Index) TopPriorities(limit int) ([]Record, error) {
	snap := idx.current.Load()
	if snap == nil {
		return nil, ErrNotLoaded
	}

	sorted := make([]Record, len(snap.records))
	copy(sorted, snap.records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PriorityRank < sorted[j].PriorityRank
	})

	if limit >= 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

// ByRiskLevel returns all records carrying the given label, in load order.
// A label outside the closed set is a caller error.
func (idx *Index) ByRiskLevel(level RiskLevel) ([]Record, error) {
	snap := idx.current.Load()
	if snap == nil {
		return nil, ErrNotLoaded
	}
	if !ValidLevel(level) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRiskLevel, level)
	}

	var out []Record
	for _, rec := range snap.records {
		if rec.RiskAssessment.MLRiskLabel == level {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Features returns the loaded feature-importance weights, if any.
func (idx *Index) Features() []FeatureWeight {
	if snap := idx.current.Load(); snap != nil {
		return snap.features
	}
	return nil
}

// Plots returns the discovered plot filenames, if any.
func (idx *Index) Plots() []string {
	if snap := idx.current.Load(); snap != nil {
		return snap.plots
	}
	return nil
}

// Len returns the number of loaded records, 0 when unloaded.
func (idx *Index) Len() int {
	if snap := idx.current.Load(); snap != nil {
		return len(snap.records)
	}
	return 0
}

// Package report renders enriched scan results into output formats.
package report

import (
	"fmt"
	"time"

	"github.com/pqshift/pqshift/internal/aggregate"
	"github.com/pqshift/pqshift/internal/correlate"
)

// Report bundles everything a formatter needs to render one scan.
type Report struct {
	ScanID       string                      `json:"scan_id"`
	GeneratedAt  time.Time                   `json:"generated_at"`
	SourceType   string                      `json:"source_type"`
	SourcePath   string                      `json:"source_path"`
	FilesScanned int                         `json:"files_scanned"`
	Findings     []correlate.EnrichedFinding `json:"findings"`
	Summary      *aggregate.FindingsSummary  `json:"summary"`
	Dashboard    *aggregate.Dashboard        `json:"dashboard,omitempty"`
}

// Formatter renders a report into one output format.
type Formatter interface {
	Name() string
	Format(r *Report) ([]byte, error)
}

// ForFormat returns the formatter for the given format name.
func ForFormat(format string) (Formatter, error) {
	switch format {
	case "json":
		return NewJSONFormatter(), nil
	case "csv":
		return NewCSVFormatter(), nil
	case "markdown", "md":
		return NewMarkdownFormatter(), nil
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
}

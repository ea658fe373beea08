package report

import (
	"fmt"
	"strings"

	"github.com/pqshift/pqshift/internal/cryptoscan"
)

// MarkdownFormatter renders a report as a human-readable Markdown document.
type MarkdownFormatter struct{}

// NewMarkdownFormatter creates a new MarkdownFormatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Name returns the formatter name.
func (f *MarkdownFormatter) Name() string {
	return "markdown"
}

// Format renders the report as Markdown.
func (f *MarkdownFormatter) Format(r *Report) ([]byte, error) {
	var b strings.Builder

	b.WriteString("# Post-Quantum Migration Risk Report\n\n")
	b.WriteString(fmt.Sprintf("**Scan:** %s  \n", r.ScanID))
	b.WriteString(fmt.Sprintf("**Source:** %s (%s)  \n", r.SourcePath, r.SourceType))
	b.WriteString(fmt.Sprintf("**Generated:** %s  \n", r.GeneratedAt.Format("2006-01-02 15:04:05 MST")))
	b.WriteString(fmt.Sprintf("**Files scanned:** %d\n\n", r.FilesScanned))

	if r.Summary != nil {
		b.WriteString("## Summary\n\n")
		b.WriteString("| Algorithm | Findings |\n")
		b.WriteString("|-----------|----------|\n")
		for _, algo := range cryptoscan.AllAlgorithms() {
			b.WriteString(fmt.Sprintf("| %s | %d |\n", algo, r.Summary.Scan.ByAlgorithm[algo]))
		}
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf(
			"**Total findings:** %d | **Matched to risk data:** %d (%.0f%%) | **Average risk score:** %.2f\n\n",
			r.Summary.Scan.TotalFindings,
			r.Summary.Correlation.Matched,
			r.Summary.Correlation.MatchRate*100,
			r.Summary.AverageRiskScore,
		))

		if len(r.Summary.Recommendations) > 0 {
			b.WriteString("## Recommendations\n\n")
			for _, rec := range r.Summary.Recommendations {
				b.WriteString(fmt.Sprintf("- %s\n", rec))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("## Findings\n\n")
	if len(r.Findings) == 0 {
		b.WriteString("No cryptographic usage detected.\n")
		return []byte(b.String()), nil
	}

	b.WriteString("| File | Line | Algorithm | Key Size | Risk Score | Priority | Recommended PQC |\n")
	b.WriteString("|------|------|-----------|----------|------------|----------|------------------|\n")
	for i := range r.Findings {
		finding := &r.Findings[i]

		keySize := "-"
		if bits, ok := finding.KeySizeBits(); ok {
			keySize = fmt.Sprintf("%d", bits)
		}
		riskScore, priority, pqc := "-", "-", "-"
		if finding.RiskScore != nil {
			riskScore = fmt.Sprintf("%.0f", *finding.RiskScore)
		}
		if finding.Priority != nil {
			priority = fmt.Sprintf("%d", *finding.Priority)
		}
		if finding.RecommendedPQC != nil {
			pqc = *finding.RecommendedPQC
		}

		b.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %s | %s | %s |\n",
			finding.FilePath, finding.LineNumber, finding.Algorithm,
			keySize, riskScore, priority, pqc))
	}

	if r.Dashboard != nil {
		b.WriteString("\n## Risk Model Overview\n\n")
		b.WriteString(fmt.Sprintf(
			"%d known vulnerable configurations (Critical: %d, High: %d, Medium: %d, Low: %d). Model accuracy: %.2f\n",
			r.Dashboard.TotalVulnerabilities,
			r.Dashboard.CriticalCount, r.Dashboard.HighCount,
			r.Dashboard.MediumCount, r.Dashboard.LowCount,
			r.Dashboard.ModelAccuracy,
		))
	}

	return []byte(b.String()), nil
}

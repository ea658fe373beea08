package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
)

// CSVFormatter renders the findings table as CSV, one row per finding.
type CSVFormatter struct{}

// NewCSVFormatter creates a new CSVFormatter.
func NewCSVFormatter() *CSVFormatter {
	return &CSVFormatter{}
}

// Name returns the formatter name.
func (f *CSVFormatter) Name() string {
	return "csv"
}

// csvHeader is the column layout for finding rows.
var csvHeader = []string{
	"file_path", "line_number", "algorithm", "key_size", "module_name",
	"matched", "risk_score", "priority", "recommended_pqc", "code_snippet",
}

// Format renders the report's findings as CSV.
func (f *CSVFormatter) Format(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}

	for i := range r.Findings {
		finding := &r.Findings[i]

		keySize := ""
		if bits, ok := finding.KeySizeBits(); ok {
			keySize = strconv.Itoa(bits)
		}
		riskScore, priority, pqc := "", "", ""
		if finding.RiskScore != nil {
			riskScore = strconv.FormatFloat(*finding.RiskScore, 'f', -1, 64)
		}
		if finding.Priority != nil {
			priority = strconv.Itoa(*finding.Priority)
		}
		if finding.RecommendedPQC != nil {
			pqc = *finding.RecommendedPQC
		}

		row := []string{
			finding.FilePath,
			strconv.Itoa(finding.LineNumber),
			string(finding.Algorithm),
			keySize,
			finding.ModuleName,
			strconv.FormatBool(finding.Matched()),
			riskScore,
			priority,
			pqc,
			finding.CodeSnippet,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("writing finding row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}
	return buf.Bytes(), nil
}

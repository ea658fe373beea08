// Package advisor turns scan results into natural-language migration
// guidance using an LLM. All advisor output is advisory text layered on top
// of the deterministic scan and correlation results; a failed completion
// never affects them.
package advisor

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/pqshift/pqshift/internal/aggregate"
	"github.com/pqshift/pqshift/internal/correlate"
)

const systemPrompt = `You are a post-quantum cryptography migration advisor.
You help engineering teams plan the replacement of classical cryptographic
algorithms (RSA, ECC, DH, AES, SHA-1) with quantum-resistant alternatives.
Be specific and actionable. Ground every statement in the data you are given;
do not invent findings that are not present.`

// Completer produces one completion for a system+user prompt pair. The HTTP
// Client satisfies it; tests substitute fakes.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Advisor generates migration guidance from aggregated scan data. Requests
// are rate limited to stay within provider quotas.
type Advisor struct {
	completer Completer
	limiter   *rate.Limiter
}

// New creates an Advisor. ratePerMin caps outbound completions per minute;
// zero or negative disables the cap.
func New(completer Completer, ratePerMin float64) *Advisor {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if ratePerMin > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerMin/60), 1)
	}
	return &Advisor{completer: completer, limiter: limiter}
}

func (a *Advisor) complete(ctx context.Context, prompt string) (string, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	text, err := a.completer.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// ExecutiveSummary produces a management-level narrative of one scan.
func (a *Advisor) ExecutiveSummary(ctx context.Context, summary *aggregate.FindingsSummary) (string, error) {
	var b strings.Builder
	b.WriteString("Write an executive summary of this quantum-readiness scan. ")
	b.WriteString("Structure it under two markdown headings: '## OVERVIEW' and '## NEXT STEPS'.\n\n")
	writeSummaryData(&b, summary)

	text, err := a.complete(ctx, b.String())
	if err != nil {
		return "", fmt.Errorf("executive summary: %w", err)
	}
	return text, nil
}

// ExplainFinding produces a short explanation of why one finding matters and
// how to migrate it.
func (a *Advisor) ExplainFinding(ctx context.Context, f *correlate.EnrichedFinding) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Explain this cryptographic finding to a developer in a few short paragraphs.\n\n")
	fmt.Fprintf(&b, "Algorithm: %s\n", f.Algorithm)
	if bits, ok := f.KeySizeBits(); ok {
		fmt.Fprintf(&b, "Key size: %d bits\n", bits)
	}
	fmt.Fprintf(&b, "Location: %s line %d (module %s)\n", f.FilePath, f.LineNumber, f.ModuleName)
	fmt.Fprintf(&b, "Code: %s\n", f.CodeSnippet)
	switch {
	case f.Match != nil:
		m := f.Match
		fmt.Fprintf(&b, "Risk score: %.0f/100 (%s)\n", m.RiskAssessment.RiskScore, m.RiskAssessment.MLRiskLabel)
		fmt.Fprintf(&b, "Recommended replacement: %s\n", m.Recommendation.RecommendedPQC)
		fmt.Fprintf(&b, "Migration timeline: %s\n", m.Migration.Timeline)
		if m.Explainability.RecommendationRationale != "" {
			fmt.Fprintf(&b, "Model rationale: %s\n", m.Explainability.RecommendationRationale)
		}
	case f.Matched():
		// Restored from storage: only the denormalized fields survive.
		if f.RiskScore != nil {
			if level, ok := f.RiskLevel(); ok {
				fmt.Fprintf(&b, "Risk score: %.0f/100 (%s)\n", *f.RiskScore, level)
			} else {
				fmt.Fprintf(&b, "Risk score: %.0f/100\n", *f.RiskScore)
			}
		}
		if f.RecommendedPQC != nil {
			fmt.Fprintf(&b, "Recommended replacement: %s\n", *f.RecommendedPQC)
		}
	default:
		b.WriteString("No precomputed risk record matched this configuration.\n")
	}

	text, err := a.complete(ctx, b.String())
	if err != nil {
		return "", fmt.Errorf("explaining finding: %w", err)
	}
	return text, nil
}

// Answer responds to a free-form question about the scan results.
func (a *Advisor) Answer(ctx context.Context, question string, summary *aggregate.FindingsSummary) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Answer the question below using only the scan data that follows.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\n", question)
	writeSummaryData(&b, summary)

	text, err := a.complete(ctx, b.String())
	if err != nil {
		return "", fmt.Errorf("answering question: %w", err)
	}
	return text, nil
}

func writeSummaryData(b *strings.Builder, summary *aggregate.FindingsSummary) {
	b.WriteString("Scan data:\n")
	fmt.Fprintf(b, "- Total findings: %d\n", summary.Scan.TotalFindings)
	for algo, n := range summary.Scan.ByAlgorithm {
		if n > 0 {
			fmt.Fprintf(b, "- %s findings: %d\n", algo, n)
		}
	}
	fmt.Fprintf(b, "- Matched to known vulnerable configurations: %d of %d\n",
		summary.Correlation.Matched, summary.Correlation.TotalFindings)
	fmt.Fprintf(b, "- Critical risks: %d, High risks: %d\n",
		summary.Correlation.CriticalRisks, summary.Correlation.HighRisks)
	fmt.Fprintf(b, "- Average risk score: %.2f\n", summary.AverageRiskScore)
	for _, rec := range summary.Recommendations {
		fmt.Fprintf(b, "- Rule-based advice: %s\n", rec)
	}
}

// ExtractSection returns the body under the given "## HEADING" markdown
// heading, up to the next level-2 heading. When the heading is absent the
// whole text is returned, so malformed model output degrades gracefully.
func ExtractSection(text, heading string) string {
	marker := "## " + strings.ToUpper(heading)
	lines := strings.Split(text, "\n")

	start := -1
	for i, line := range lines {
		if strings.EqualFold(strings.TrimSpace(line), marker) {
			start = i + 1
			break
		}
	}
	if start == -1 {
		return strings.TrimSpace(text)
	}

	end := len(lines)
	for i := start; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, "## ") {
			end = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[start:end], "\n"))
}

// Package cryptoscan detects classical cryptographic primitives in source
// trees using line-oriented lexical matching. It intentionally trades false
// positives/negatives for speed and language-agnostic coverage; it is not an
// AST-based analyzer.
package cryptoscan

import (
	"context"
	"encoding/json"
)

// Algorithm identifies a classical cryptographic algorithm family.
type Algorithm string

const (
	AlgorithmRSA     Algorithm = "RSA"
	AlgorithmECC     Algorithm = "ECC"
	AlgorithmDH      Algorithm = "DH"
	AlgorithmAES     Algorithm = "AES"
	AlgorithmSHA1    Algorithm = "SHA1"
	AlgorithmUnknown Algorithm = "UNKNOWN"
)

// AllAlgorithms returns the algorithm families in declaration order. The
// scanner evaluates families in this order, and summary output reports all
// of them even when their count is zero.
func AllAlgorithms() []Algorithm {
	return []Algorithm{
		AlgorithmRSA,
		AlgorithmECC,
		AlgorithmDH,
		AlgorithmAES,
		AlgorithmSHA1,
	}
}

// algorithmOrder gives each family its declaration rank for ordering findings.
func algorithmOrder(a Algorithm) int {
	switch a {
	case AlgorithmRSA:
		return 0
	case AlgorithmECC:
		return 1
	case AlgorithmDH:
		return 2
	case AlgorithmAES:
		return 3
	case AlgorithmSHA1:
		return 4
	default:
		return 5
	}
}

// KeySize is a key size in bits, tagged with whether the value was read from
// the source line or filled in from the per-algorithm default. Both cases
// serialize identically; the tag exists so downstream logic can distinguish
// them if it ever needs to.
type KeySize struct {
	Bits     int
	Inferred bool
}

// MarshalJSON emits only the bit count; the inferred tag is internal.
func (k KeySize) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.Bits)
}

// UnmarshalJSON accepts a bare bit count.
func (k *KeySize) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &k.Bits)
}

// Finding is one detected occurrence of a cryptographic construct at a
// specific file and line. Findings are immutable once produced.
type Finding struct {
	FilePath    string    `json:"file_path"`
	LineNumber  int       `json:"line_number"` // 1-based
	Algorithm   Algorithm `json:"algorithm"`
	KeySize     *KeySize  `json:"key_size"`
	CodeSnippet string    `json:"code_snippet"` // trimmed, at most 200 chars
	ModuleName  string    `json:"module_name"`
}

// KeySizeBits returns the key size in bits, or 0 when the algorithm has no
// key-size concept (SHA1).
func (f Finding) KeySizeBits() (int, bool) {
	if f.KeySize == nil {
		return 0, false
	}
	return f.KeySize.Bits, true
}

// Result is the outcome of scanning one directory tree.
type Result struct {
	Findings     []Finding
	FilesScanned int
}

// Summary holds per-algorithm finding counts.
type Summary struct {
	TotalFindings int               `json:"total_findings"`
	ByAlgorithm   map[Algorithm]int `json:"by_algorithm"`
}

// Summarize counts findings per algorithm family. Families with no findings
// report zero, including UNKNOWN.
func Summarize(findings []Finding) Summary {
	s := Summary{
		TotalFindings: len(findings),
		ByAlgorithm:   make(map[Algorithm]int, len(AllAlgorithms())+1),
	}
	for _, a := range AllAlgorithms() {
		s.ByAlgorithm[a] = 0
	}
	s.ByAlgorithm[AlgorithmUnknown] = 0

	for _, f := range findings {
		s.ByAlgorithm[f.Algorithm]++
	}
	return s
}

// LineMatcher recognizes cryptographic constructs on a single source line.
// The scanner's traversal depends only on this interface, so a smarter
// matcher could replace the regex one without touching the walk logic.
type LineMatcher interface {
	// Match returns at most one match per algorithm family for the line,
	// in family declaration order.
	Match(line string) []Match
}

// Match is a single family hit on a line, with its extracted key size.
type Match struct {
	Algorithm Algorithm
	KeySize   *KeySize
}

// Scanner walks a directory tree and produces findings.
type Scanner interface {
	Scan(ctx context.Context, rootDir string) (*Result, error)
}

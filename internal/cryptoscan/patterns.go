package cryptoscan

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/pqshift/pqshift/internal/logging"
)

// familyRules bundles the detection and key-size extraction rules for one
// algorithm family.
type familyRules struct {
	algorithm Algorithm
	detect    []*regexp.Regexp
	// keySize extracts the key size from the line; its first capture group
	// must be the numeric size. Nil for families without a key-size concept.
	keySize *regexp.Regexp
	// defaultBits is used when no explicit size is found on the line.
	// Zero means the family has no key-size concept at all.
	defaultBits int
}

// defaultRules is the built-in pattern library. Family order here is the
// evaluation and output order; within a family the first matching pattern
// wins, but any match produces at most one finding per line.
func defaultRules() []familyRules {
	return []familyRules{
		{
			algorithm: AlgorithmRSA,
			detect: compileAll(
				`RSA(?:_PKCS1)?`,
				`RSA-(\d+)`,
				`RSAPrivateKey`,
				`RSAPublicKey`,
				`rsa\.generate_private_key`,
				`Crypto\.PublicKey\.RSA`,
			),
			keySize:     compileOne(`(?:RSA-?|key_size=|bits=|generate_private_key\()(\d{3,4})`),
			defaultBits: 2048,
		},
		{
			algorithm: AlgorithmECC,
			detect: compileAll(
				`ECDSA`,
				`ECDH`,
				`secp\d+[rk]\d+`,
				`prime256v1`,
				`P-256`,
				`P-384`,
				`P-521`,
				`elliptic[\s\-]?curve`,
				`ec\.generate_private_key`,
			),
			keySize:     compileOne(`(?:secp|P-)(\d+)`),
			defaultBits: 256,
		},
		{
			algorithm: AlgorithmDH,
			detect: compileAll(
				`DiffieHellman`,
				`DHE?[\s\-]`,
				`dh\.generate_parameters`,
				`DHParameters`,
			),
			keySize:     compileOne(`(?:DH-?|key_size=)(\d{3,4})`),
			defaultBits: 2048,
		},
		{
			algorithm: AlgorithmAES,
			detect: compileAll(
				`AES(?:-(\d+))?`,
				`Advanced\s+Encryption\s+Standard`,
				`Crypto\.Cipher\.AES`,
			),
			keySize:     compileOne(`AES-?(\d{3})`),
			defaultBits: 128,
		},
		{
			// SHA1 has no key-size concept; KeySize stays nil.
			algorithm: AlgorithmSHA1,
			detect: compileAll(
				`SHA-?1(?:\b|[^0-9])`,
				`sha1\(`,
				`hashlib\.sha1`,
			),
		},
	}
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

func compileOne(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + pattern)
}

// RegexMatcher is the line-oriented LineMatcher built on the pattern library.
type RegexMatcher struct {
	families []familyRules
}

// NewRegexMatcher creates a matcher with the built-in pattern library.
func NewRegexMatcher() *RegexMatcher {
	return &RegexMatcher{families: defaultRules()}
}

// Match tests the line against each family in declaration order and returns
// at most one Match per family.
func (m *RegexMatcher) Match(line string) []Match {
	var matches []Match
	for _, fam := range m.families {
		for _, pat := range fam.detect {
			if !pat.MatchString(line) {
				continue
			}
			matches = append(matches, Match{
				Algorithm: fam.algorithm,
				KeySize:   fam.extractKeySize(line),
			})
			break // one finding per family per line
		}
	}
	return matches
}

// extractKeySize pulls an explicit key size from the line, falling back to
// the family default only when no size is found at all.
func (r familyRules) extractKeySize(line string) *KeySize {
	if r.keySize == nil && r.defaultBits == 0 {
		return nil
	}
	if r.keySize != nil {
		if m := r.keySize.FindStringSubmatch(line); m != nil {
			if bits, err := strconv.Atoi(m[1]); err == nil {
				return &KeySize{Bits: bits}
			}
		}
	}
	if r.defaultBits == 0 {
		return nil
	}
	return &KeySize{Bits: r.defaultBits, Inferred: true}
}

// ruleFile is the YAML shape for user-supplied extra detection rules.
type ruleFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	Algorithm string   `yaml:"algorithm"`
	Patterns  []string `yaml:"patterns"`
}

// LoadExtraRules merges detection patterns from a YAML rules file into the
// matcher. An unreadable or unparsable file is an error; individual bad
// patterns or unknown algorithms are skipped and logged.
func (m *RegexMatcher) LoadExtraRules(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading rules file: %w", err)
	}

	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return fmt.Errorf("parsing rules file %s: %w", path, err)
	}

	for _, entry := range rf.Rules {
		idx := m.familyIndex(Algorithm(entry.Algorithm))
		if idx < 0 {
			logging.L.Warnw("skipping rules for unknown algorithm",
				"algorithm", entry.Algorithm, "file", path)
			continue
		}
		for _, p := range entry.Patterns {
			re, err := regexp.Compile(`(?i)` + p)
			if err != nil {
				logging.L.Warnw("skipping invalid rule pattern",
					"pattern", p, "error", err)
				continue
			}
			m.families[idx].detect = append(m.families[idx].detect, re)
		}
	}
	return nil
}

func (m *RegexMatcher) familyIndex(a Algorithm) int {
	for i, fam := range m.families {
		if fam.algorithm == a {
			return i
		}
	}
	return -1
}

package cryptoscan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegexMatcherImplementsLineMatcher(t *testing.T) {
	var _ LineMatcher = NewRegexMatcher()
}

func TestMatchExplicitKeySizes(t *testing.T) {
	m := NewRegexMatcher()

	tests := []struct {
		name     string
		line     string
		algo     Algorithm
		bits     int
		inferred bool
	}{
		{"aes dash size", `cipher = AES-256`, AlgorithmAES, 256, false},
		{"rsa generate call", `key = rsa.generate_private_key(1024)`, AlgorithmRSA, 1024, false},
		{"rsa dash size", `cert uses RSA-4096`, AlgorithmRSA, 4096, false},
		{"rsa key_size kwarg", `RSA key_size=3072`, AlgorithmRSA, 3072, false},
		{"ecc named curve", `curve = secp384r1`, AlgorithmECC, 384, false},
		{"ecc nist curve", `ECDSA with P-521`, AlgorithmECC, 521, false},
		{"dh key size", `DHParameters key_size=2048`, AlgorithmDH, 2048, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := m.Match(tt.line)
			require.NotEmpty(t, matches)

			var found *Match
			for i := range matches {
				if matches[i].Algorithm == tt.algo {
					found = &matches[i]
				}
			}
			require.NotNil(t, found, "expected a %s match", tt.algo)
			require.NotNil(t, found.KeySize)
			assert.Equal(t, tt.bits, found.KeySize.Bits)
			assert.Equal(t, tt.inferred, found.KeySize.Inferred)
		})
	}
}

func TestMatchDefaultKeySizes(t *testing.T) {
	m := NewRegexMatcher()

	tests := []struct {
		line string
		algo Algorithm
		bits int
	}{
		{`from Crypto.PublicKey import RSA`, AlgorithmRSA, 2048},
		{`uses elliptic curve crypto`, AlgorithmECC, 256},
		{`DiffieHellman exchange`, AlgorithmDH, 2048},
		{`cipher = AES.new(key)`, AlgorithmAES, 128},
	}

	for _, tt := range tests {
		matches := m.Match(tt.line)
		require.NotEmpty(t, matches, "line %q", tt.line)

		var found *Match
		for i := range matches {
			if matches[i].Algorithm == tt.algo {
				found = &matches[i]
			}
		}
		require.NotNil(t, found, "expected a %s match for %q", tt.algo, tt.line)
		require.NotNil(t, found.KeySize)
		assert.Equal(t, tt.bits, found.KeySize.Bits)
		assert.True(t, found.KeySize.Inferred, "default size must be tagged inferred")
	}
}

func TestMatchSHA1HasNoKeySize(t *testing.T) {
	m := NewRegexMatcher()

	for _, line := range []string{
		`digest = hashlib.sha1(data)`,
		`uses SHA-1 for checksums`,
		`h := sha1(input)`,
	} {
		matches := m.Match(line)
		require.NotEmpty(t, matches, "line %q", line)
		assert.Equal(t, AlgorithmSHA1, matches[0].Algorithm)
		assert.Nil(t, matches[0].KeySize)
	}
}

func TestMatchSHA1NotConfusedByLongerDigests(t *testing.T) {
	m := NewRegexMatcher()

	for _, line := range []string{
		`digest = hashlib.sha256(data)`,
		`uses SHA-256 everywhere`,
		`h := sha512.Sum(input)`,
	} {
		for _, match := range m.Match(line) {
			assert.NotEqual(t, AlgorithmSHA1, match.Algorithm, "line %q", line)
		}
	}
}

func TestMatchOneFindingPerFamilyPerLine(t *testing.T) {
	m := NewRegexMatcher()

	// Matches both the bare RSA pattern and RSAPrivateKey; still one RSA match.
	matches := m.Match(`RSAPrivateKey key = RSA.generate(2048)`)

	rsaCount := 0
	for _, match := range matches {
		if match.Algorithm == AlgorithmRSA {
			rsaCount++
		}
	}
	assert.Equal(t, 1, rsaCount)
}

func TestMatchMultipleFamiliesOnOneLine(t *testing.T) {
	m := NewRegexMatcher()

	matches := m.Match(`hybrid: RSA-2048 wrapping an AES-256 session key`)
	require.Len(t, matches, 2)

	// Family declaration order: RSA before AES.
	assert.Equal(t, AlgorithmRSA, matches[0].Algorithm)
	assert.Equal(t, 2048, matches[0].KeySize.Bits)
	assert.Equal(t, AlgorithmAES, matches[1].Algorithm)
	assert.Equal(t, 256, matches[1].KeySize.Bits)
}

func TestMatchCaseInsensitive(t *testing.T) {
	m := NewRegexMatcher()

	matches := m.Match(`import ecdsa`)
	require.NotEmpty(t, matches)
	assert.Equal(t, AlgorithmECC, matches[0].Algorithm)
}

func TestLoadExtraRules(t *testing.T) {
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(rulesPath, []byte(`
rules:
  - algorithm: AES
    patterns:
      - 'Rijndael'
  - algorithm: NOPE
    patterns:
      - 'whatever'
  - algorithm: RSA
    patterns:
      - '[invalid'
`), 0o644))

	m := NewRegexMatcher()
	require.NoError(t, m.LoadExtraRules(rulesPath))

	matches := m.Match(`var c = new RijndaelManaged();`)
	require.NotEmpty(t, matches)
	assert.Equal(t, AlgorithmAES, matches[0].Algorithm)
}

func TestLoadExtraRulesMissingFile(t *testing.T) {
	m := NewRegexMatcher()
	assert.Error(t, m.LoadExtraRules(filepath.Join(t.TempDir(), "nope.yaml")))
}

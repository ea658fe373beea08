// Package config loads and validates the application configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the top-level application configuration.
type Config struct {
	Risk    RiskConfig    `toml:"risk"`
	Scan    ScanConfig    `toml:"scan"`
	Advisor AdvisorConfig `toml:"advisor"`
	Store   StoreConfig   `toml:"store"`
}

// RiskConfig holds the locations of the precomputed risk artifacts.
type RiskConfig struct {
	ArtifactPath string `toml:"artifact_path"`
	FeaturesPath string `toml:"features_path"`
	PlotsDir     string `toml:"plots_dir"`
}

// ScanConfig holds scanning limits and tuning.
type ScanConfig struct {
	MaxArchiveBytes int64    `toml:"max_archive_bytes"`
	CloneTimeout    Duration `toml:"clone_timeout"`
	ScanBudget      Duration `toml:"scan_budget"`
	Workers         int      `toml:"workers"`
	RulesPath       string   `toml:"rules_path"`
}

// AdvisorConfig holds settings for the hosted language-model collaborator.
type AdvisorConfig struct {
	BaseURL      string  `toml:"base_url"`
	Model        string  `toml:"model"`
	APIKeySource string  `toml:"api_key_source"`
	APIKey       string  `toml:"api_key"`
	RatePerMin   float64 `toml:"rate_per_min"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	DBPath string `toml:"db_path"`
}

// Duration wraps time.Duration so TOML values like "5m" decode directly.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// DefaultConfig returns a Config populated with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Risk: RiskConfig{
			ArtifactPath: "ai_outputs/risk_output.json",
			FeaturesPath: "ai_outputs/shap_feature_importance.csv",
			PlotsDir:     "ai_outputs",
		},
		Scan: ScanConfig{
			MaxArchiveBytes: 100 << 20, // 100MB upload cap
			CloneTimeout:    Duration{5 * time.Minute},
			ScanBudget:      Duration{10 * time.Minute},
			Workers:         4,
		},
		Advisor: AdvisorConfig{
			BaseURL:      "https://api.groq.com/openai/v1",
			Model:        "llama-3.3-70b-versatile",
			APIKeySource: "env",
			RatePerMin:   30,
		},
		Store: StoreConfig{
			DBPath: "pqshift.db",
		},
	}
}

// Load reads the config file at path, layered over defaults. A missing file
// is not an error; the defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Scan.MaxArchiveBytes <= 0 {
		return fmt.Errorf("scan.max_archive_bytes must be positive, got %d", c.Scan.MaxArchiveBytes)
	}
	if c.Scan.Workers <= 0 {
		return fmt.Errorf("scan.workers must be positive, got %d", c.Scan.Workers)
	}
	if c.Advisor.RatePerMin < 0 {
		return fmt.Errorf("advisor.rate_per_min must not be negative, got %v", c.Advisor.RatePerMin)
	}
	return nil
}

// ResolveAPIKey returns the advisor API key, reading GROQ_API_KEY from the
// environment when api_key_source is "env". An empty result means the
// advisor is unavailable, not an error.
func (c *AdvisorConfig) ResolveAPIKey() string {
	if c.APIKeySource == "env" || c.APIKey == "" {
		if key := os.Getenv("GROQ_API_KEY"); key != "" {
			return key
		}
	}
	return c.APIKey
}

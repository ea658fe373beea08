// cmd/pqshift/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pqshift/pqshift/internal/config"
	"github.com/pqshift/pqshift/internal/logging"
	"github.com/pqshift/pqshift/internal/risk"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	configPath   string
	debugFlag    bool
	artifactFlag string
)

func versionString() string {
	return fmt.Sprintf("pqshift %s (commit: %s, built: %s)", version, commit, date)
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "pqshift",
		Short: "Post-quantum cryptography migration scanner",
		Long: "pqshift scans source trees for classical cryptographic usage (RSA, ECC, DH, " +
			"AES, SHA-1), correlates findings with a precomputed quantum-risk model, and " +
			"produces prioritized migration guidance.",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return logging.Init(debugFlag)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&artifactFlag, "artifact", "", "override risk artifact path")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(versionString())
		},
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(prioritiesCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(explainCmd())

	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logging.Sync()
		os.Exit(1)
	}
}

// loadConfig resolves the config path, loads the config, and applies flag
// overrides shared by all subcommands.
func loadConfig() (*config.Config, error) {
	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = "pqshift.toml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if artifactFlag != "" {
		cfg.Risk.ArtifactPath = artifactFlag
	}
	return cfg, nil
}

// loadIndex loads the risk artifact and its optional side data.
func loadIndex(cfg *config.Config) (*risk.Index, error) {
	index := risk.NewIndex()
	if err := index.Load(cfg.Risk.ArtifactPath); err != nil {
		return nil, fmt.Errorf("loading risk artifact: %w", err)
	}
	if err := index.LoadSideData(cfg.Risk.FeaturesPath, cfg.Risk.PlotsDir); err != nil {
		logging.L.Warnw("side data unavailable", "error", err)
	}
	return index, nil
}

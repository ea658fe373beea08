package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pqshift/pqshift/internal/aggregate"
	"github.com/pqshift/pqshift/internal/correlate"
	"github.com/pqshift/pqshift/internal/cryptoscan"
	"github.com/pqshift/pqshift/internal/logging"
	"github.com/pqshift/pqshift/internal/report"
	"github.com/pqshift/pqshift/internal/source"
	"github.com/pqshift/pqshift/internal/store"
)

// scanCmd returns the "scan" command: acquire a source tree, detect
// cryptographic usage, correlate against the risk model, and render a report.
func scanCmd() *cobra.Command {
	var (
		formatFlag string
		rulesFlag  string
		saveFlag   bool
		tokenFlag  string
	)

	cmd := &cobra.Command{
		Use:   "scan <directory|zip|github-url>",
		Short: "Scan a source tree for quantum-vulnerable cryptography",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if rulesFlag != "" {
				cfg.Scan.RulesPath = rulesFlag
			}

			formatter, err := report.ForFormat(formatFlag)
			if err != nil {
				return err
			}

			index, err := loadIndex(cfg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var github *source.GitHubResolver
			if tokenFlag != "" {
				github = source.NewGitHubResolver(tokenFlag)
			}
			resolver := source.NewResolver(
				cfg.Scan.MaxArchiveBytes,
				source.NewCloner(cfg.Scan.CloneTimeout.Duration),
				github,
			)
			target, err := resolver.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			defer target.Cleanup()

			matcher := cryptoscan.NewRegexMatcher()
			if cfg.Scan.RulesPath != "" {
				if err := matcher.LoadExtraRules(cfg.Scan.RulesPath); err != nil {
					return fmt.Errorf("loading extra rules: %w", err)
				}
			}

			scanCtx := ctx
			if cfg.Scan.ScanBudget.Duration > 0 {
				var cancel context.CancelFunc
				scanCtx, cancel = context.WithTimeout(ctx, cfg.Scan.ScanBudget.Duration)
				defer cancel()
			}

			scanner := cryptoscan.NewDirScanner(matcher, cfg.Scan.Workers)
			result, err := scanner.Scan(scanCtx, target.Dir)
			if err != nil {
				return fmt.Errorf("scanning %s: %w", target.Dir, err)
			}
			logging.L.Infow("scan complete",
				"files", result.FilesScanned, "findings", len(result.Findings))

			enriched, err := correlate.NewCorrelator(index).Enrich(result.Findings)
			if err != nil {
				return err
			}

			rep := &report.Report{
				ScanID:       uuid.NewString(),
				GeneratedAt:  time.Now().UTC(),
				SourceType:   string(target.Type),
				SourcePath:   target.Original,
				FilesScanned: result.FilesScanned,
				Findings:     enriched,
				Summary:      aggregate.SummarizeFindings(enriched),
			}

			out, err := formatter.Format(rep)
			if err != nil {
				return fmt.Errorf("formatting report: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if saveFlag {
				s, err := store.NewStore(cfg.Store.DBPath)
				if err != nil {
					return fmt.Errorf("opening scan store: %w", err)
				}
				defer s.Close()

				id, err := s.SaveScan(string(target.Type), target.Original,
					result.FilesScanned, enriched, rep.Summary.AverageRiskScore)
				if err != nil {
					return fmt.Errorf("saving scan: %w", err)
				}
				if err := s.SaveReport(id, formatter.Name(), out); err != nil {
					return fmt.Errorf("saving report: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\nSaved scan %s\n", id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&formatFlag, "format", "markdown", "report format: json, csv, markdown")
	cmd.Flags().StringVar(&rulesFlag, "rules", "", "path to extra detection rules (YAML)")
	cmd.Flags().BoolVar(&saveFlag, "save", false, "persist the scan to the history database")
	cmd.Flags().StringVar(&tokenFlag, "github-token", "", "GitHub API token for private repositories")

	return cmd
}

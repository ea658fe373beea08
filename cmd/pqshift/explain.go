package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pqshift/pqshift/internal/advisor"
	"github.com/pqshift/pqshift/internal/aggregate"
	"github.com/pqshift/pqshift/internal/store"
)

// explainCmd returns the "explain" command: LLM-generated migration guidance
// for a saved scan. Without --question it produces an executive summary;
// with --finding it explains one finding in depth.
func explainCmd() *cobra.Command {
	var (
		questionFlag string
		findingFlag  int
	)

	cmd := &cobra.Command{
		Use:   "explain <scan-id>",
		Short: "Generate natural-language guidance for a saved scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			apiKey := cfg.Advisor.ResolveAPIKey()
			if apiKey == "" {
				return fmt.Errorf("no advisor API key configured; set GROQ_API_KEY or advisor.api_key")
			}
			client := advisor.NewClient(cfg.Advisor.BaseURL, apiKey, cfg.Advisor.Model)
			adv := advisor.New(client, cfg.Advisor.RatePerMin)

			s, err := store.NewStore(cfg.Store.DBPath)
			if err != nil {
				return fmt.Errorf("opening scan store: %w", err)
			}
			defer s.Close()

			scan, err := s.GetScan(args[0])
			if err != nil {
				return err
			}
			findings, err := s.FindingsForScan(scan.ID)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var text string
			switch {
			case findingFlag > 0:
				if findingFlag > len(findings) {
					return fmt.Errorf("scan has %d findings, no finding #%d", len(findings), findingFlag)
				}
				text, err = adv.ExplainFinding(ctx, &findings[findingFlag-1])
			case questionFlag != "":
				text, err = adv.Answer(ctx, questionFlag, aggregate.SummarizeFindings(findings))
			default:
				text, err = adv.ExecutiveSummary(ctx, aggregate.SummarizeFindings(findings))
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().StringVar(&questionFlag, "question", "", "free-form question about the scan")
	cmd.Flags().IntVar(&findingFlag, "finding", 0, "explain the Nth finding (1-based)")

	return cmd
}

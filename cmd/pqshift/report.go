package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pqshift/pqshift/internal/aggregate"
	"github.com/pqshift/pqshift/internal/report"
	"github.com/pqshift/pqshift/internal/store"
)

// historyCmd returns the "history" command: previously saved scans.
func historyCmd() *cobra.Command {
	var limitFlag int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved scans",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := store.NewStore(cfg.Store.DBPath)
			if err != nil {
				return fmt.Errorf("opening scan store: %w", err)
			}
			defer s.Close()

			scans, err := s.ListScans(limitFlag)
			if err != nil {
				return err
			}
			if len(scans) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved scans.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tWHEN\tSOURCE\tFILES\tFINDINGS\tMATCHED\tAVG SCORE")
			for _, sc := range scans {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%.2f\n",
					sc.ID, sc.CreatedAt.Format(time.RFC3339), sc.SourcePath,
					sc.FilesScanned, sc.TotalFindings, sc.MatchedFindings,
					sc.AverageRiskScore)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limitFlag, "limit", 20, "maximum scans to list")
	return cmd
}

// reportCmd returns the "report" command: re-render a saved scan.
func reportCmd() *cobra.Command {
	var formatFlag string

	cmd := &cobra.Command{
		Use:   "report <scan-id>",
		Short: "Render a saved scan as a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			formatter, err := report.ForFormat(formatFlag)
			if err != nil {
				return err
			}

			s, err := store.NewStore(cfg.Store.DBPath)
			if err != nil {
				return fmt.Errorf("opening scan store: %w", err)
			}
			defer s.Close()

			// Serve the stored render when one exists for this format.
			if stored, err := s.GetReport(args[0], formatter.Name()); err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), string(stored.Content))
				return nil
			}

			scan, err := s.GetScan(args[0])
			if err != nil {
				return err
			}
			findings, err := s.FindingsForScan(scan.ID)
			if err != nil {
				return err
			}

			rep := &report.Report{
				ScanID:       scan.ID,
				GeneratedAt:  scan.CreatedAt,
				SourceType:   scan.SourceType,
				SourcePath:   scan.SourcePath,
				FilesScanned: scan.FilesScanned,
				Findings:     findings,
				Summary:      aggregate.SummarizeFindings(findings),
			}
			out, err := formatter.Format(rep)
			if err != nil {
				return fmt.Errorf("formatting report: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&formatFlag, "format", "markdown", "report format: json, csv, markdown")
	return cmd
}

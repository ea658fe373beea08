package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pqshift/pqshift/internal/aggregate"
	"github.com/pqshift/pqshift/internal/risk"
)

// statsCmd returns the "stats" command: dashboard statistics over the loaded
// risk model.
func statsCmd() *cobra.Command {
	var (
		jsonFlag bool
		topFlag  int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show risk model dashboard statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			index, err := loadIndex(cfg)
			if err != nil {
				return err
			}

			dashboard, err := aggregate.BuildDashboard(index, topFlag)
			if err != nil {
				return err
			}

			if jsonFlag {
				out, err := json.MarshalIndent(dashboard, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Vulnerable configurations: %d\n", dashboard.TotalVulnerabilities)
			fmt.Fprintf(out, "  Critical: %d  High: %d  Medium: %d  Low: %d\n",
				dashboard.CriticalCount, dashboard.HighCount,
				dashboard.MediumCount, dashboard.LowCount)
			fmt.Fprintf(out, "Model accuracy: %.2f\n\n", dashboard.ModelAccuracy)

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RANK\tID\tCONFIG\tRISK\tSCORE\tPQC")
			for i := range dashboard.TopPriorities {
				rec := &dashboard.TopPriorities[i]
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.0f\t%s\n",
					rec.PriorityRank, rec.ID, rec.Key().String(),
					rec.RiskAssessment.MLRiskLabel,
					rec.RiskAssessment.RiskScore,
					rec.Recommendation.RecommendedPQC)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			for _, rec := range dashboard.Recommendations {
				fmt.Fprintf(out, "\n- %s", rec)
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "emit JSON instead of a table")
	cmd.Flags().IntVar(&topFlag, "top", 10, "number of top priorities to include")

	return cmd
}

// prioritiesCmd returns the "priorities" command: the migration work queue,
// most urgent first, optionally filtered by risk level.
func prioritiesCmd() *cobra.Command {
	var (
		limitFlag int
		levelFlag string
	)

	cmd := &cobra.Command{
		Use:   "priorities",
		Short: "List vulnerable configurations by migration priority",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			index, err := loadIndex(cfg)
			if err != nil {
				return err
			}

			var records []risk.Record
			if levelFlag != "" {
				records, err = index.ByRiskLevel(risk.RiskLevel(levelFlag))
				if err != nil {
					return err
				}
				if limitFlag >= 0 && limitFlag < len(records) {
					records = records[:limitFlag]
				}
			} else {
				records, err = index.TopPriorities(limitFlag)
				if err != nil {
					return err
				}
			}

			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matching records.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RANK\tID\tCONFIG\tRISK\tSCORE\tTIMELINE\tPQC")
			for i := range records {
				rec := &records[i]
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.0f\t%s\t%s\n",
					rec.PriorityRank, rec.ID, rec.Key().String(),
					rec.RiskAssessment.MLRiskLabel,
					rec.RiskAssessment.RiskScore,
					rec.Migration.Timeline,
					rec.Recommendation.RecommendedPQC)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limitFlag, "limit", 20, "maximum records to list")
	cmd.Flags().StringVar(&levelFlag, "level", "", "filter by risk level (Critical, High, Medium, Low)")

	return cmd
}

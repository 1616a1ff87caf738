package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"Mansoor88-6/segment-tracker/internal/analytics"
	"Mansoor88-6/segment-tracker/internal/service"
)

var (
	reportMachine   string
	reportStartDate string
	reportEndDate   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print analytics over stored segments as JSON",
}

var reportOverlapsCmd = &cobra.Command{
	Use:   "overlaps",
	Short: "List overlapping segments of one machine",
	RunE:  runReportOverlaps,
}

var reportStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show totals by type, machine and date",
	RunE:  runReportStats,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportOverlapsCmd)
	reportCmd.AddCommand(reportStatsCmd)

	reportOverlapsCmd.Flags().StringVar(&reportMachine, "machine", "", "Machine name")
	reportOverlapsCmd.MarkFlagRequired("machine")

	reportStatsCmd.Flags().StringVar(&reportMachine, "machine", "", "Only include this machine")
	reportStatsCmd.Flags().StringVar(&reportStartDate, "start", "", "First date to include (YYYY-MM-DD)")
	reportStatsCmd.Flags().StringVar(&reportEndDate, "end", "", "Last date to include (YYYY-MM-DD)")
}

func runReportOverlaps(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	svc := service.NewAnalyticsService(a.repo, nil, a.log.Logger)
	pairs, err := svc.Overlaps(cmd.Context(), reportMachine)
	if err != nil {
		return fmt.Errorf("failed to scan overlaps: %w", err)
	}

	return printJSON(cmd, pairs)
}

func runReportStats(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	svc := service.NewAnalyticsService(a.repo, nil, a.log.Logger)
	report, err := svc.Statistics(cmd.Context(), analytics.Filter{
		MachineName: reportMachine,
		StartDate:   reportStartDate,
		EndDate:     reportEndDate,
	})
	if err != nil {
		return fmt.Errorf("failed to compute statistics: %w", err)
	}

	return printJSON(cmd, report)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

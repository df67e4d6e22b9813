package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const recentFailureLimit = 5

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report registry, cache and index state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	orch, err := newOrchestrator()
	if err != nil {
		return err
	}
	defer func() {
		_ = orch.Close()
	}()

	report := orch.GenerateStatusReport()

	fmt.Printf("resources: %d\n", report.Total)
	for status, count := range report.ByStatus {
		fmt.Printf("  %-10s %d\n", status, count)
	}
	fmt.Println("by type:")
	for resType, count := range report.ByType {
		fmt.Printf("  %-15s %d\n", resType, count)
	}
	fmt.Printf("cache size: %.2f MB\n", float64(report.CacheSizeBytes)/(1024*1024))

	stats := orch.IndexStatistics()
	fmt.Printf("index: %d documents, %d chunks, %d tokens\n",
		stats.DocumentCount, stats.ChunkCount, stats.TokenCount)

	if summary := orch.FetchHistory(); summary != nil {
		fmt.Printf("fetches: %d attempts, %d ok, %d failed, avg %.0f ms\n",
			summary.Attempts, summary.Successes, summary.Failures, summary.AvgDurationMS)
	}

	if len(report.Errored) > 0 {
		fmt.Println("errored:")
		for _, e := range report.Errored {
			fmt.Printf("  %s (retry %d/%d): %s\n", e.URL, e.RetryCount, e.MaxRetries, e.ErrorMessage)
		}
	}

	if failures := orch.RecentFetchFailures(recentFailureLimit); len(failures) > 0 {
		fmt.Println("recent fetch failures:")
		for _, f := range failures {
			fmt.Printf("  %s (%s): %s\n", f.URL, f.Backend, f.Error)
		}
	}
	return nil
}

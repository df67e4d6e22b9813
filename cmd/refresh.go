package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var refreshForce bool

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-fetch resources whose refresh interval has elapsed",
	Long: `Compare each resource's age against its refresh interval and reprocess
the stale ones. Resources with a "manual" interval are only refreshed with
--force.`,
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
	refreshCmd.Flags().BoolVarP(&refreshForce, "force", "f", false, "Refresh every resource regardless of interval")
}

func runRefresh(_ *cobra.Command, _ []string) error {
	orch, err := newOrchestrator()
	if err != nil {
		return err
	}
	defer func() {
		_ = orch.Close()
	}()

	results := orch.RefreshOutdated(context.Background(), refreshForce)
	printResults(results)
	return nil
}

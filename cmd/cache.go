package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local fetch cache",
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove cache entries past the configured age and size limits",
	RunE:  runCacheClean,
}

func init() {
	cacheCmd.AddCommand(cacheCleanCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheClean(_ *cobra.Command, _ []string) error {
	orch, err := newOrchestrator()
	if err != nil {
		return err
	}
	defer func() {
		_ = orch.Close()
	}()

	removed, err := orch.CleanCache()
	if err != nil {
		return fmt.Errorf("failed to clean cache: %w", err)
	}
	fmt.Printf("removed %d cache entries\n", removed)
	return nil
}

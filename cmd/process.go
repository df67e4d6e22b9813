package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/vamseeachanta/webcontext/internal/contextualizer/models"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/parallel"

	"github.com/spf13/cobra"
)

var (
	processURL       string
	processAll       bool
	processParallel  bool
	processThreshold int
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Fetch, extract and index registered resources",
	Long: `Drive registered resources through the fetch/extract/index pipeline.

Examples:
  # Process one resource
  webcontext process --url "https://go.dev/doc/effective_go"

  # Process everything still pending
  webcontext process --all

  # Process pending resources over the worker pool, highest priority first
  webcontext process --all --parallel --threshold 5`,
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVarP(&processURL, "url", "u", "", "Process a single resource")
	processCmd.Flags().BoolVar(&processAll, "all", false, "Process all pending resources")
	processCmd.Flags().BoolVar(&processParallel, "parallel", false, "Use the bounded worker pool")
	processCmd.Flags().IntVar(&processThreshold, "threshold", 0, "Minimum priority for parallel processing")
	processCmd.MarkFlagsOneRequired("url", "all")
	processCmd.MarkFlagsMutuallyExclusive("url", "all")
}

func runProcess(_ *cobra.Command, _ []string) error {
	orch, err := newOrchestrator()
	if err != nil {
		return err
	}
	defer func() {
		_ = orch.Close()
	}()

	ctx := context.Background()
	var results []models.ProcessResult

	switch {
	case processURL != "":
		results = []models.ProcessResult{orch.FetchAndProcess(ctx, processURL)}
	case processParallel:
		var urls []string
		for _, res := range orch.Registry().All() {
			if res.Status == models.StatusPending {
				urls = append(urls, res.URL)
			}
		}
		coordinator := parallel.New(orch)
		results = coordinator.FetchResourcesParallel(ctx, urls, processThreshold)
	default:
		results = orch.FetchAllPending(ctx)
	}

	printResults(results)
	return nil
}

func printResults(results []models.ProcessResult) {
	succeeded := 0
	for _, result := range results {
		if result.Success {
			succeeded++
			fmt.Printf("ok    %s (%s)\n", result.URL, result.Duration.Round(time.Millisecond))
		} else {
			fmt.Printf("fail  %s: %s\n", result.URL, result.Message)
		}
	}
	fmt.Printf("%d/%d succeeded\n", succeeded, len(results))
}

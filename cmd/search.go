package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchQuery string
	searchTopK  int

	contextQuery     string
	contextMaxTokens int
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search indexed content",
	RunE:  runSearch,
}

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Assemble a token-budgeted context string for a query",
	RunE:  runContext,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "Search query (required)")
	searchCmd.Flags().IntVarP(&searchTopK, "top", "k", 5, "Maximum number of results")
	_ = searchCmd.MarkFlagRequired("query")

	rootCmd.AddCommand(contextCmd)
	contextCmd.Flags().StringVarP(&contextQuery, "query", "q", "", "Context query (required)")
	contextCmd.Flags().IntVar(&contextMaxTokens, "max-tokens", 2000, "Context budget in words")
	_ = contextCmd.MarkFlagRequired("query")
}

func runSearch(_ *cobra.Command, _ []string) error {
	orch, err := newOrchestrator()
	if err != nil {
		return err
	}
	defer func() {
		_ = orch.Close()
	}()

	results, err := orch.Search(context.Background(), searchQuery, searchTopK)
	if err != nil {
		return err
	}

	for i, result := range results {
		preview := result.Chunk.Text
		if len(preview) > 160 {
			preview = preview[:160] + "..."
		}
		fmt.Printf("%2d. [%.3f] %s\n    %s\n", i+1, result.Score, result.Chunk.SourceURL,
			strings.ReplaceAll(preview, "\n", " "))
	}
	if len(results) == 0 {
		fmt.Println("no results")
	}
	return nil
}

func runContext(_ *cobra.Command, _ []string) error {
	orch, err := newOrchestrator()
	if err != nil {
		return err
	}
	defer func() {
		_ = orch.Close()
	}()

	assembled, err := orch.GetContextForQuery(context.Background(), contextQuery, contextMaxTokens)
	if err != nil {
		return err
	}
	fmt.Println(assembled)
	return nil
}

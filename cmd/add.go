package cmd

import (
	"context"
	"fmt"

	"github.com/vamseeachanta/webcontext/internal/contextualizer/models"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/orchestrator"

	"github.com/spf13/cobra"
)

var (
	addURL         string
	addType        string
	addTitle       string
	addDescription string
	addTags        []string
	addDeps        []string
	addPriority    int
	addProcess     bool
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a web resource",
	Long: `Register a web resource in the registry. Registration is idempotent;
an already known URL is left untouched.

Examples:
  # Register documentation and process it immediately
  webcontext add --url "https://go.dev/doc/effective_go" --type official_docs --process

  # Register a PDF standard with a dependency
  webcontext add --url "https://example.org/spec.pdf" --type standard --deps "https://example.org/intro.html"`,
	RunE: runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)

	addCmd.Flags().StringVarP(&addURL, "url", "u", "", "Resource URL (required)")
	addCmd.Flags().StringVarP(&addType, "type", "t", string(models.TypeUserAdded), "Resource type (official_docs, api_reference, tutorial, standard, user_added)")
	addCmd.Flags().StringVar(&addTitle, "title", "", "Resource title")
	addCmd.Flags().StringVar(&addDescription, "description", "", "Resource description")
	addCmd.Flags().StringSliceVar(&addTags, "tags", nil, "Tags for the resource")
	addCmd.Flags().StringSliceVar(&addDeps, "deps", nil, "URLs that must be fetched before this resource")
	addCmd.Flags().IntVar(&addPriority, "priority", 0, "Scheduling priority (higher first)")
	addCmd.Flags().BoolVar(&addProcess, "process", false, "Process the resource immediately")

	_ = addCmd.MarkFlagRequired("url")
}

func runAdd(_ *cobra.Command, _ []string) error {
	orch, err := newOrchestrator()
	if err != nil {
		return err
	}
	defer func() {
		_ = orch.Close()
	}()

	added, err := orch.AddResource(context.Background(), addURL, orchestrator.AddOptions{
		Type:         models.ResourceType(addType),
		Title:        addTitle,
		Description:  addDescription,
		Tags:         addTags,
		Dependencies: addDeps,
		Priority:     addPriority,
		Process:      addProcess || orch.Config().AutoFetch,
	})
	if err != nil {
		return err
	}

	if added {
		fmt.Printf("registered %s\n", addURL)
	} else {
		fmt.Printf("already registered: %s\n", addURL)
	}
	return nil
}

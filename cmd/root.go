package cmd

import (
	"github.com/vamseeachanta/webcontext/internal/contextualizer/config"
	"github.com/vamseeachanta/webcontext/internal/contextualizer/orchestrator"
	"github.com/vamseeachanta/webcontext/pkg/util"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "webcontext",
	Short: "Fetch, cache and index web resources for AI-agent context",
	Long: `webcontext ingests external web resources (HTML pages, PDFs, JSON and
plain text), caches them durably, extracts searchable text, builds a
semantic/keyword index and serves ranked, token-budgeted context snippets.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger := util.NewLogger(util.LevelFromEnv())
		logger.Fatal().Err(err).Msg("command failed")
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "webcontext.yaml", "Path to the YAML configuration file")
}

func initConfig() {
	// API keys and tuning knobs may live in a .env file; absence is fine.
	_ = godotenv.Load()
}

// newOrchestrator loads the configuration and wires the engine.
func newOrchestrator() (*orchestrator.Orchestrator, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return orchestrator.New(cfg)
}

package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lawrag/config"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "lawrag",
	Short: "Legal-text retrieval - index and search Indian law passages",
	Long: `lawrag retrieves semantically relevant legal-text passages for a
natural-language question. It embeds pre-chunked dataset records,
stores them in Postgres/pgvector or an in-memory index with a file
snapshot, and answers queries with hybrid vector + keyword search.

Example usage:
  lawrag ingest ./datasets --backend memory   # Build the local snapshot
  lawrag query -q "What is Section 302?"      # Search for relevant passages
  lawrag status                               # Backend, chunk count, readiness`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		// Credentials come from the environment; a .env file is a
		// convenience, its absence is not an error.
		_ = godotenv.Load()

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if cfg.Logging.Debug {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./lawrag.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
}

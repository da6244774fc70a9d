package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	indexM  int
	indexEf int
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the HNSW index on the database backend",
	Long: `Create the approximate nearest-neighbor index over the embedding
column. Larger --m and --ef-construction improve recall at the cost of
build time and memory. Safe to re-run; an existing index is kept.`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().IntVar(&indexM, "m", 0, "max connections per node (default from config)")
	indexCmd.Flags().IntVar(&indexEf, "ef-construction", 0, "build-time search breadth (default from config)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	embedder, err := newEmbedder()
	if err != nil {
		return err
	}

	pg, err := newPgStore(embedder)
	if err != nil {
		return err
	}
	if pg == nil {
		return fmt.Errorf("no database configured: set %s", cfg.Database.URLEnv)
	}
	defer pg.Close()

	ctx := cmd.Context()
	if err := pg.EnsureReady(ctx); err != nil {
		return err
	}

	m := cfg.Database.HNSWM
	if indexM > 0 {
		m = indexM
	}
	ef := cfg.Database.HNSWEfConstruction
	if indexEf > 0 {
		ef = indexEf
	}

	if err := pg.BuildHNSWIndex(ctx, m, ef); err != nil {
		return err
	}
	fmt.Printf("HNSW index ready (m=%d, ef_construction=%d)\n", m, ef)
	return nil
}

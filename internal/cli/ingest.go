package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"lawrag/internal/adapter/fs"
	"lawrag/internal/adapter/memindex"
	"lawrag/internal/adapter/pgstore"
	"lawrag/internal/port"
	"lawrag/internal/usecase"
)

var (
	ingestBackend   string
	ingestBatchSize int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Load pre-chunked dataset files into a backend",
	Long: `Walk a directory of dataset files (.json arrays or .jsonl lines of
{"content", "metadata"} records), embed each record, and insert them
into the chosen backend. The database backend commits per batch; the
memory backend writes a snapshot when done.

Examples:
  lawrag ingest ./datasets --backend memory
  lawrag ingest ./datasets --backend db --batch-size 50`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestBackend, "backend", "memory", "target backend: db or memory")
	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch-size", 0, "records per batch (default from config)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	embedder, err := newEmbedder()
	if err != nil {
		return err
	}

	var (
		backend port.VectorBackend
		mem     *memindex.Index
		pg      *pgstore.Store
	)

	switch ingestBackend {
	case "db":
		pg, err = newPgStore(embedder)
		if err != nil {
			return err
		}
		if pg == nil {
			return fmt.Errorf("no database configured: set %s", cfg.Database.URLEnv)
		}
		defer pg.Close()
		if err := pg.EnsureReady(ctx); err != nil {
			return err
		}
		backend = pg

	case "memory":
		mem = memindex.New(embedder)
		// Append to an existing snapshot when one is present; a
		// missing snapshot just means this is the first build.
		if err := mem.Load(cfg.SnapshotPath(rootDir)); err != nil && !errors.Is(err, memindex.ErrSnapshotNotFound) {
			return err
		}
		backend = mem

	default:
		return fmt.Errorf("unknown backend: %q (want db or memory)", ingestBackend)
	}

	batchSize := cfg.Ingest.BatchSize
	if ingestBatchSize > 0 {
		batchSize = ingestBatchSize
	}

	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)
	ingestUC := usecase.NewIngestUseCase(walker, backend, batchSize, logger)

	var bar *progressbar.ProgressBar
	ingestUC.Progress = func(processed, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		_ = bar.Set(processed)
	}

	start := time.Now()
	result, err := ingestUC.Ingest(ctx, args[0])
	if result != nil {
		fmt.Printf("\nFiles: %d  Records: %d  Inserted: %d  (%.1fs)\n",
			result.Files, result.Records, result.Inserted, time.Since(start).Seconds())
		for _, e := range result.Errors {
			fmt.Println("  warning:", e)
		}
	}
	if err != nil {
		return err
	}

	switch ingestBackend {
	case "db":
		if err := pg.BuildHNSWIndex(ctx, cfg.Database.HNSWM, cfg.Database.HNSWEfConstruction); err != nil {
			return err
		}
		fmt.Println("HNSW index ready")
	case "memory":
		if err := mem.Save(cfg.SnapshotPath(rootDir)); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
		fmt.Println("Snapshot written to", cfg.SnapshotPath(rootDir))
	}

	return nil
}

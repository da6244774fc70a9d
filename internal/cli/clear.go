package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"lawrag/internal/adapter/memindex"
)

var (
	clearBackend string
	clearYes     bool
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all chunks from a backend",
	Long:  `Delete every stored chunk. Irreversible; requires --yes.`,
	RunE:  runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
	clearCmd.Flags().StringVar(&clearBackend, "backend", "", "backend to clear: db or memory (required)")
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "confirm the deletion")
	clearCmd.MarkFlagRequired("backend")
}

func runClear(cmd *cobra.Command, args []string) error {
	if !clearYes {
		return fmt.Errorf("clear is irreversible; pass --yes to confirm")
	}

	embedder, err := newEmbedder()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	switch clearBackend {
	case "db":
		pg, err := newPgStore(embedder)
		if err != nil {
			return err
		}
		if pg == nil {
			return fmt.Errorf("no database configured: set %s", cfg.Database.URLEnv)
		}
		defer pg.Close()
		if err := pg.Clear(ctx); err != nil {
			return err
		}
		fmt.Println("Database backend cleared.")

	case "memory":
		mem := memindex.New(embedder)
		path := cfg.SnapshotPath(rootDir)
		if err := mem.Load(path); err != nil {
			if errors.Is(err, memindex.ErrSnapshotNotFound) {
				fmt.Println("No snapshot to clear.")
				return nil
			}
			return err
		}
		if err := mem.Clear(ctx); err != nil {
			return err
		}
		if err := mem.Save(path); err != nil {
			return err
		}
		fmt.Println("Snapshot cleared.")

	default:
		return fmt.Errorf("unknown backend: %q (want db or memory)", clearBackend)
	}
	return nil
}

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend selection, chunk count, and readiness",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	manager, cleanup, err := newManager()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	loaded := manager.Load(ctx)
	count, err := manager.Count(ctx)
	if err != nil {
		return err
	}

	status := struct {
		Backend string `json:"backend"`
		Chunks  int    `json:"chunks"`
		Ready   bool   `json:"ready"`
	}{
		Backend: manager.Backend(),
		Chunks:  count,
		Ready:   loaded && count > 0,
	}

	if statusJSON {
		data, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Backend: %s\nChunks:  %d\nReady:   %v\n", status.Backend, status.Chunks, status.Ready)
	return nil
}

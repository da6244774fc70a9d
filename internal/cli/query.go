package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	queryText      string
	queryTopK      int
	queryJSON      bool
	queryScores    bool
	queryThreshold float64
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search indexed legal passages",
	Long: `Search for relevant legal-text passages. Citation-style queries
("Section 302", "Article 21") get domain boost terms and keyword
re-ranking on top of vector similarity.

Examples:
  lawrag query -q "What is Section 302?"
  lawrag query -q "right to privacy" --top-k 10 --json
  lawrag query -q "cheating" --scores --threshold 0.6`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.Flags().BoolVar(&queryScores, "scores", false, "raw similarity scores, no keyword re-ranking")
	queryCmd.Flags().Float64Var(&queryThreshold, "threshold", 0, "similarity floor for --scores (0 = config default)")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	manager, cleanup, err := newManager()
	if err != nil {
		return err
	}
	defer cleanup()

	retrieveUC := newRetrieveUseCase(manager)

	topK := cfg.Retrieve.TopK
	if queryTopK > 0 {
		topK = queryTopK
	}

	ctx := cmd.Context()

	if queryScores {
		threshold := cfg.Retrieve.ScoreThreshold
		if queryThreshold > 0 {
			threshold = queryThreshold
		}
		results, err := retrieveUC.RetrieveWithScores(ctx, queryText, topK, threshold)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		if queryJSON {
			type scoredResult struct {
				Score   float64 `json:"score"`
				Section string  `json:"section,omitempty"`
				Source  string  `json:"source"`
				Content string  `json:"content"`
			}
			out := make([]scoredResult, len(results))
			for i, r := range results {
				out[i] = scoredResult{
					Score:   r.Score,
					Section: r.Chunk.Metadata.Section,
					Source:  r.Chunk.Metadata.Source,
					Content: r.Chunk.Content,
				}
			}
			data, _ := json.MarshalIndent(out, "", "  ")
			fmt.Println(string(data))
			return nil
		}
		if len(results) == 0 {
			fmt.Println("No results found.")
			return nil
		}
		for i, r := range results {
			fmt.Printf("--- [%d] score %.4f", i+1, r.Score)
			if r.Chunk.Metadata.Section != "" {
				fmt.Printf(" (%s)", r.Chunk.Metadata.Section)
			}
			fmt.Println(" ---")
			fmt.Println(preview(r.Chunk.Content, 300))
			fmt.Println()
		}
		return nil
	}

	result, err := retrieveUC.Run(ctx, queryText, topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if queryJSON {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if result.IsFallback {
		fmt.Println("No relevant passages found.")
		return nil
	}

	fmt.Printf("Found %d passages in %dms\n\n", len(result.Chunks), result.LatencyMS)
	fmt.Println(result.Context)
	fmt.Println("\nSources:")
	for i, src := range result.Sources {
		fmt.Printf("  [%d] %s", i+1, src.Act)
		if src.Section != "" {
			fmt.Printf(", %s", src.Section)
		}
		if src.Title != "" {
			fmt.Printf(" - %s", src.Title)
		}
		fmt.Println()
	}
	return nil
}

func preview(text string, max int) string {
	if len(text) > max {
		return text[:max] + "..."
	}
	return text
}

package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shahzaibkhangakhar/Textfinder/internal/embedder"
)

// NewSearchCmd constructs the `textfinder search` command, which runs
// retrieval only: no generation, just the ranked chunks and their scores.
func NewSearchCmd() *cobra.Command {
	var topK int
	var threshold float32

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Retrieve the most relevant chunks for a query (no generation)",
		Long: `Embed the query and print the nearest chunks with their similarity
scores. Useful for tuning chunking and threshold parameters, and for
checking what context a question would be answered from.

Examples:
  textfinder search "cricket career"
  textfinder search --top-k 5 --threshold 0.5 "refund policy"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := slog.Default()

			emb, embModel, err := newEmbedder()
			if err != nil {
				return fmt.Errorf("search: failed to initialise embedder: %w", err)
			}
			dim, err := embedder.ValidateForSearch(ctx, log, emb, embModel)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			store, closeStore, err := openVectorStore(ctx, dim)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer closeStore()

			retriever, err := newRetriever(emb, store)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			results, err := retriever.Retrieve(ctx, args[0], topK, threshold)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			if len(results) == 0 {
				fmt.Println("no chunks above the score threshold")
				return nil
			}

			for i, r := range results {
				fmt.Printf("%d. score=%.4f distance=%.4f document=%s\n%s\n\n",
					i+1, r.Score, r.RawDistance, r.Chunk.DocumentID, r.Chunk.Text)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to retrieve (default: configured TEXTFINDER_TOP_K or 3)")
	cmd.Flags().Float32VarP(&threshold, "threshold", "t", -1, "Minimum similarity score (default: configured TEXTFINDER_SCORE_THRESHOLD or 0)")

	return cmd
}

package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shahzaibkhangakhar/Textfinder/internal/embedder"
	"github.com/shahzaibkhangakhar/Textfinder/internal/pipeline"
)

// NewAskCmd constructs the `textfinder ask` command, which answers a single
// natural language question against the indexed corpus.
func NewAskCmd() *cobra.Command {
	var showContext bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question against the indexed corpus",
		Long: `Answer a natural language question using the previously built index.

The question is embedded, the most relevant chunks are retrieved, and the
generation model answers strictly from that context. If the corpus holds no
relevant passage, the answer says so rather than inventing one.

Examples:
  textfinder ask "When did Imran Khan start his cricket career?"
  textfinder ask --show-context "what does the refund policy say about cancellations?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := slog.Default()

			emb, embModel, err := newEmbedder()
			if err != nil {
				return fmt.Errorf("ask: failed to initialise embedder: %w", err)
			}
			dim, err := embedder.ValidateForSearch(ctx, log, emb, embModel)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			store, closeStore, err := openVectorStore(ctx, dim)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer closeStore()

			retriever, err := newRetriever(emb, store)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			gen, _, _, err := newGenerator(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			evalLog, closeLog := openEvalLog(log)
			defer closeLog()

			p, err := pipeline.New(pipeline.Config{
				Retriever: retriever,
				Generator: gen,
				Log:       evalLog,
				Logger:    log,
			})
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			res, err := p.Query(ctx, args[0])
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			if showContext {
				for i, c := range res.RetrievedChunks {
					fmt.Printf("--- context %d (score %.4f) ---\n%s\n\n", i+1, c.Score, c.Text)
				}
			}
			fmt.Println(res.GeneratedAnswer)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showContext, "show-context", false, "Print the retrieved context chunks before the answer")

	return cmd
}

package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shahzaibkhangakhar/Textfinder/internal/evallog"
)

// NewLogsCmd constructs the `textfinder logs` command, which prints recent
// evaluation records and the quality metrics recomputed over the full log.
func NewLogsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent query/answer records and quality metrics",
		Long: `Print the most recent evaluation log records (question, top score,
answer) followed by aggregate metrics recomputed over the full log.

Examples:
  textfinder logs
  textfinder logs --limit 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := slog.Default()

			dbPath := os.Getenv("TEXTFINDER_EVALLOG_DB")
			if dbPath == "disabled" {
				return fmt.Errorf("logs: evaluation log is disabled (TEXTFINDER_EVALLOG_DB=disabled)")
			}
			if dbPath == "" {
				var err error
				dbPath, err = evallog.DefaultPath()
				if err != nil {
					return fmt.Errorf("logs: %w", err)
				}
			}
			store, err := evallog.Open(dbPath)
			if err != nil {
				return fmt.Errorf("logs: open %s: %w", dbPath, err)
			}
			defer func() { _ = store.Close() }()
			log.Debug("evallog opened", slog.String("path", dbPath))

			recent, err := store.Recent(ctx, limit)
			if err != nil {
				return fmt.Errorf("logs: %w", err)
			}
			for _, r := range recent {
				topScore := float32(0)
				if len(r.RetrievalScores) > 0 {
					topScore = r.RetrievalScores[0]
				}
				fmt.Printf("[%s] score=%.4f chunks=%d\nQ: %s\nA: %s\n\n",
					r.Timestamp.Format("2006-01-02 15:04:05"),
					topScore, len(r.RetrievedChunks), r.Question, r.GeneratedAnswer)
			}

			all, err := store.All(ctx)
			if err != nil {
				return fmt.Errorf("logs: %w", err)
			}
			m := evallog.ComputeMetrics(all)
			fmt.Printf("total=%d with_chunks=%d mean_top_score=%.4f matched=%d unmatched=%d accuracy=%.1f%%\n",
				m.TotalQueries, m.QueriesWithChunks, m.MeanTopScore, m.Matched, m.Unmatched, m.Accuracy)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of recent records to show")

	return cmd
}

package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shahzaibkhangakhar/Textfinder/internal/embedder"
	"github.com/shahzaibkhangakhar/Textfinder/internal/ingestion"
)

// NewIngestCmd constructs the `textfinder ingest` command, which loads a
// document directory, builds the vector index, and persists it.
func NewIngestCmd() *cobra.Command {
	var dataDir string
	var snapshot string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index a document directory for question answering",
		Long: `Load txt/md/pdf documents from a directory, split them into overlapping
chunks, embed every chunk, and build the vector index.

With the default local store backend the built index is written to a
snapshot file that 'ask', 'search', and 'serve' load at startup, so the
build cost is paid once, not on every process start. With
TEXTFINDER_STORE_BACKEND=qdrant the chunks are upserted into the configured
Qdrant collection instead.

Relevant environment variables (all overridable via the YAML config):
  EMBEDDING_PROVIDER         Embedding backend: ollama, openai, azure (default: ollama)
  TEXTFINDER_CHUNK_SIZE      Chunk size in characters (default: 500)
  TEXTFINDER_CHUNK_OVERLAP   Overlap between chunks (default: 50)
  TEXTFINDER_INDEX_KIND      Index kind: flat (exact) or ivf (approximate)
  TEXTFINDER_DATA_DIR        Default document directory
  TEXTFINDER_SNAPSHOT        Snapshot path (default: ~/.textfinder/index.gob)

Examples:
  textfinder ingest --data-dir ./docs
  TEXTFINDER_INDEX_KIND=ivf textfinder ingest --data-dir ./corpus
  TEXTFINDER_STORE_BACKEND=qdrant textfinder ingest --data-dir ./docs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := slog.Default()

			if dataDir == "" {
				dataDir = getEnvOrDefault("TEXTFINDER_DATA_DIR", "")
			}
			if dataDir == "" {
				return fmt.Errorf("ingest: --data-dir (or TEXTFINDER_DATA_DIR) is required")
			}

			emb, embModel, err := newEmbedder()
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			dim, err := embedder.ValidateForSearch(ctx, log, emb, embModel)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			log.Info("embedder initialised",
				slog.String("provider", embeddingBackend()),
				slog.Int("dimensions", dim),
			)

			docs, err := ingestion.LoadDir(ctx, log, dataDir)
			if err != nil {
				return fmt.Errorf("ingest: load %s: %w", dataDir, err)
			}
			if len(docs) == 0 {
				return fmt.Errorf("ingest: no supported documents found in %s", dataDir)
			}
			log.Info("documents loaded", slog.Int("count", len(docs)), slog.String("dir", dataDir))

			builder, err := newBuilder(emb)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			progress := func(msg string) { log.Info(msg) }

			if storeBackend() == "qdrant" {
				qs, err := newQdrantStore(ctx, dim)
				if err != nil {
					return fmt.Errorf("ingest: failed to connect to Qdrant: %w", err)
				}
				defer qs.Close()

				count, err := builder.BuildInto(ctx, docs, qs, progress)
				if err != nil {
					return fmt.Errorf("ingest: build failed: %w", err)
				}
				log.Info("ingestion complete", slog.Int("chunks", count), slog.String("backend", "qdrant"))
				return nil
			}

			store, err := builder.Build(ctx, docs, progress)
			if err != nil {
				return fmt.Errorf("ingest: build failed: %w", err)
			}

			if snapshot == "" {
				snapshot, err = snapshotPath()
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
			}
			if err := store.Save(snapshot); err != nil {
				return fmt.Errorf("ingest: save snapshot: %w", err)
			}

			count, err := store.Count(ctx)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			log.Info("ingestion complete",
				slog.Int("chunks", count),
				slog.String("snapshot", snapshot),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dataDir, "data-dir", "d", "", "Directory containing txt/md/pdf documents")
	cmd.Flags().StringVarP(&snapshot, "snapshot", "s", "", "Snapshot output path (default: ~/.textfinder/index.gob)")

	return cmd
}

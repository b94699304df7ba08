package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/shahzaibkhangakhar/Textfinder/internal/embedder"
	"github.com/shahzaibkhangakhar/Textfinder/internal/ingestion"
	"github.com/shahzaibkhangakhar/Textfinder/internal/logging"
	"github.com/shahzaibkhangakhar/Textfinder/internal/pipeline"
	"github.com/shahzaibkhangakhar/Textfinder/internal/provider"
	"github.com/shahzaibkhangakhar/Textfinder/internal/rag"
	"github.com/shahzaibkhangakhar/Textfinder/internal/server"
	"github.com/shahzaibkhangakhar/Textfinder/internal/tracing"
)

// NewServeCmd constructs the `textfinder serve` command, which starts the
// HTTP question-answering API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Textfinder HTTP API",
		Long: `Start the Textfinder HTTP server.

The server answers questions over the indexed corpus via POST /api/query and
POST /api/batch, exposes the evaluation log and quality metrics via
GET /api/logs, rebuilds the index via POST /api/reindex, and publishes
health, readiness, and Prometheus metrics endpoints.

Examples:
  textfinder serve
  textfinder serve --port 9090
  MODEL_PROVIDER=openai textfinder serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := slog.Default()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			gen, chatModel, providerCfg, err := newGenerator(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", string(providerCfg.Backend)))

			emb, embModel, err := newEmbedder()
			if err != nil {
				return fmt.Errorf("serve: failed to initialise embedder: %w", err)
			}
			dim, err := embedder.ValidateForSearch(ctx, log, emb, embModel)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			log.Info("embedder initialised",
				slog.String("provider", embeddingBackend()),
				slog.Int("dimensions", dim),
			)

			var store rag.VectorStore
			var published *rag.Published
			var rebuild func(ctx context.Context) (*rag.LocalStore, error)
			var storePinger server.Pinger

			if storeBackend() == "qdrant" {
				qs, err := newQdrantStore(ctx, dim)
				if err != nil {
					return fmt.Errorf("serve: failed to connect to Qdrant: %w", err)
				}
				defer qs.Close()
				store = qs
				storePinger = server.NewQdrantPinger(qs)
			} else {
				local, err := loadOrBuildLocalStore(ctx, log, emb)
				if err != nil {
					return fmt.Errorf("serve: %w", err)
				}
				published = rag.NewPublished(local)
				store = published
				storePinger = server.NewStorePinger(published, "index")

				if dataDir := os.Getenv("TEXTFINDER_DATA_DIR"); dataDir != "" {
					builder, err := newBuilder(emb)
					if err != nil {
						return fmt.Errorf("serve: %w", err)
					}
					rebuild = func(ctx context.Context) (*rag.LocalStore, error) {
						docs, err := ingestion.LoadDir(ctx, logging.FromContext(ctx), dataDir)
						if err != nil {
							return nil, fmt.Errorf("load %s: %w", dataDir, err)
						}
						return builder.Build(ctx, docs, nil)
					}
				}
			}

			retriever, err := newRetriever(emb, store)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			evalLog, closeLog := openEvalLog(log)
			defer closeLog()

			p, err := pipeline.New(pipeline.Config{
				Retriever: retriever,
				Generator: gen,
				Log:       evalLog,
				Published: published,
				Rebuild:   rebuild,
				Logger:    log,
			})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pingers := []server.Pinger{
				server.NewLLMPinger(chatModel, provider.NewHealthCheck(providerCfg), string(providerCfg.Backend)),
				server.NewEmbedderPinger(emb, "embedder"),
				storePinger,
			}
			if evalLog != nil {
				pingers = append(pingers, server.NewEvalLogPinger(evalLog))
			}

			srv, err := server.New(p, &server.Config{
				Host:      host,
				Port:      port,
				Logger:    log,
				Pingers:   pingers,
				APIKey:    os.Getenv("TEXTFINDER_API_KEY"),
				RateLimit: getEnvFloat64("TEXTFINDER_RATE_LIMIT", 0),
				RateBurst: getEnvInt("TEXTFINDER_RATE_BURST", 0),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			if count, err := store.Count(ctx); err == nil {
				srv.SetIndexChunks(count)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}

// loadOrBuildLocalStore loads the index snapshot, falling back to a fresh
// build from TEXTFINDER_DATA_DIR when no snapshot exists yet. The fresh
// build is saved so the cost is not paid again on the next start.
func loadOrBuildLocalStore(ctx context.Context, log *slog.Logger, emb rag.Embedder) (*rag.LocalStore, error) {
	path, err := snapshotPath()
	if err != nil {
		return nil, err
	}

	store, err := rag.LoadLocalStore(path)
	if err == nil {
		log.Info("index snapshot loaded", slog.String("path", path))
		return store, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load snapshot %s: %w", path, err)
	}

	dataDir := os.Getenv("TEXTFINDER_DATA_DIR")
	if dataDir == "" {
		return nil, fmt.Errorf("no index snapshot at %s and TEXTFINDER_DATA_DIR is unset (run 'textfinder ingest' first)", path)
	}

	log.Info("no snapshot found, building index from data directory",
		slog.String("data_dir", dataDir),
	)
	docs, err := ingestion.LoadDir(ctx, log, dataDir)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", dataDir, err)
	}
	builder, err := newBuilder(emb)
	if err != nil {
		return nil, err
	}
	store, err = builder.Build(ctx, docs, func(msg string) { log.Info(msg) })
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	if err := store.Save(path); err != nil {
		log.Warn("could not save index snapshot", slog.String("path", path), slog.Any("error", err))
	}
	return store, nil
}

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cloudwego/eino/components/model"

	"github.com/shahzaibkhangakhar/Textfinder/internal/embedder"
	"github.com/shahzaibkhangakhar/Textfinder/internal/evallog"
	"github.com/shahzaibkhangakhar/Textfinder/internal/generate"
	"github.com/shahzaibkhangakhar/Textfinder/internal/ingestion"
	"github.com/shahzaibkhangakhar/Textfinder/internal/provider"
	"github.com/shahzaibkhangakhar/Textfinder/internal/rag"
)

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if it is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat32 returns the float32 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}

// getEnvFloat64 returns the float64 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat64(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// embeddingBackend resolves the embedding backend name. EMBEDDING_PROVIDER
// wins; otherwise MODEL_PROVIDER is reused when it names a backend the
// embedder supports (a gemini chat model does not imply a gemini embedder).
func embeddingBackend() string {
	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		return v
	}
	switch v := os.Getenv("MODEL_PROVIDER"); v {
	case embedder.BackendOllama, embedder.BackendOpenAI, embedder.BackendAzure:
		return v
	default:
		return embedder.BackendOllama
	}
}

// newEmbedder constructs the configured embedding backend from the
// environment. The second return value is the configured model name, used
// for the chat-model preflight warning.
func newEmbedder() (rag.Embedder, string, error) {
	backend := embeddingBackend()

	apiKey := os.Getenv("EMBEDDING_API_KEY")
	endpoint := os.Getenv("EMBEDDING_ENDPOINT")
	switch backend {
	case embedder.BackendOpenAI:
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
	case embedder.BackendAzure:
		if apiKey == "" {
			apiKey = os.Getenv("AZURE_OPENAI_API_KEY")
		}
		if endpoint == "" {
			endpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")
		}
	case embedder.BackendOllama:
		if endpoint == "" {
			endpoint = os.Getenv("OLLAMA_HOST")
		}
	}

	modelName := os.Getenv("EMBEDDING_MODEL")
	emb, err := embedder.New(embedder.Config{
		Backend:    backend,
		Endpoint:   endpoint,
		APIKey:     apiKey,
		Model:      modelName,
		Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 0),
		APIVersion: os.Getenv("AZURE_OPENAI_API_VERSION"),
	})
	if err != nil {
		return nil, "", err
	}
	return emb, modelName, nil
}

// newBuilder constructs the ingestion builder with chunking and index
// parameters from the environment.
func newBuilder(emb rag.Embedder) (*ingestion.Builder, error) {
	return ingestion.NewBuilder(emb, &ingestion.Config{
		ChunkSize:    getEnvInt("TEXTFINDER_CHUNK_SIZE", 0),
		ChunkOverlap: getEnvInt("TEXTFINDER_CHUNK_OVERLAP", 0),
		IndexKind:    getEnvOrDefault("TEXTFINDER_INDEX_KIND", ingestion.KindFlat),
		IVFNList:     getEnvInt("TEXTFINDER_IVF_NLIST", 0),
		IVFNProbe:    getEnvInt("TEXTFINDER_IVF_NPROBE", 0),
	})
}

// newGenerator constructs the chat model from MODEL_PROVIDER plus its
// conventional env vars and wraps it in a configured Generator. The provider
// config is returned so serve can build a health-check pinger from it.
func newGenerator(ctx context.Context, log *slog.Logger) (*generate.Generator, model.BaseChatModel, *provider.Config, error) {
	cfg := provider.DefaultConfig()
	if v := os.Getenv("MODEL_PROVIDER"); v != "" {
		cfg.Backend = provider.Backend(v)
	}
	cfg.FillFromEnv()

	chatModel, err := provider.New(ctx, cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}

	gen, err := generate.New(generate.Config{
		Model:           chatModel,
		MaxPromptTokens: getEnvInt("TEXTFINDER_MAX_PROMPT_TOKENS", 0),
		MaxTokens:       getEnvInt("MODEL_MAX_TOKENS", 0),
		Temperature:     getEnvFloat32("MODEL_TEMPERATURE", 0),
		BatchSize:       getEnvInt("TEXTFINDER_GEN_BATCH_SIZE", 0),
		Workers:         getEnvInt("TEXTFINDER_GEN_WORKERS", 0),
		MaxAttempts:     getEnvInt("TEXTFINDER_GEN_MAX_ATTEMPTS", 0),
		Logger:          log,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create generator: %w", err)
	}
	return gen, chatModel, cfg, nil
}

// storeBackend resolves the vector store backend: "local" (default) or
// "qdrant".
func storeBackend() string {
	return getEnvOrDefault("TEXTFINDER_STORE_BACKEND", "local")
}

// snapshotPath resolves the index snapshot location. TEXTFINDER_SNAPSHOT
// overrides the default of ~/.textfinder/index.gob.
func snapshotPath() (string, error) {
	if p := os.Getenv("TEXTFINDER_SNAPSHOT"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".textfinder")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "index.gob"), nil
}

// newQdrantStore connects to the configured Qdrant instance. vectorSize must
// match the embedder's output dimension.
func newQdrantStore(ctx context.Context, vectorSize int) (*rag.QdrantStore, error) {
	return rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
		Port:       getEnvInt("QDRANT_PORT", 6334),
		Collection: getEnvOrDefault("QDRANT_COLLECTION", "textfinder-docs"),
		VectorSize: uint64(vectorSize), //nolint:gosec // dimensions are bounded
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
}

// openVectorStore opens the configured vector store for read-only query use:
// the local snapshot by default, the remote Qdrant collection when selected.
// dim is the embedder's probed dimension, needed for Qdrant collection setup.
func openVectorStore(ctx context.Context, dim int) (rag.VectorStore, func(), error) {
	if storeBackend() == "qdrant" {
		qs, err := newQdrantStore(ctx, dim)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
		}
		return qs, func() { _ = qs.Close() }, nil
	}

	path, err := snapshotPath()
	if err != nil {
		return nil, nil, err
	}
	store, err := rag.LoadLocalStore(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load index snapshot %s (run 'textfinder ingest' first): %w", path, err)
	}
	return store, func() { _ = store.Close() }, nil
}

// openEvalLog opens the evaluation log store. TEXTFINDER_EVALLOG_DB
// overrides the default path; "disabled" turns logging off. Failures are
// non-fatal: the log is a feedback loop, not the product, so callers get a
// nil store and a warning.
func openEvalLog(log *slog.Logger) (*evallog.Store, func()) {
	dbPath := os.Getenv("TEXTFINDER_EVALLOG_DB")
	if dbPath == "disabled" {
		log.Info("evallog: disabled via TEXTFINDER_EVALLOG_DB=disabled")
		return nil, func() {}
	}
	if dbPath == "" {
		var err error
		dbPath, err = evallog.DefaultPath()
		if err != nil {
			log.Warn("evallog: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil, func() {}
		}
	}
	store, err := evallog.Open(dbPath)
	if err != nil {
		log.Warn("evallog: failed to open store, disabling", slog.Any("error", err))
		return nil, func() {}
	}
	log.Info("evallog: store opened", slog.String("path", dbPath))
	return store, func() { _ = store.Close() }
}

// newRetriever wires the embedder and store into a retriever with defaults
// from the environment.
func newRetriever(emb rag.Embedder, store rag.VectorStore) (*rag.DefaultRetriever, error) {
	return rag.NewRetriever(emb, store,
		getEnvInt("TEXTFINDER_TOP_K", 0),
		getEnvFloat32("TEXTFINDER_SCORE_THRESHOLD", 0),
	)
}

package server

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/shahzaibkhangakhar/Textfinder/internal/evallog"
	"github.com/shahzaibkhangakhar/Textfinder/internal/provider"
	"github.com/shahzaibkhangakhar/Textfinder/internal/rag"
)

// LLMPinger probes the generation backend. When the provider exposes a
// zero-cost health check it is used exclusively; otherwise Ping falls back
// to a minimal single-prompt Generate call, which consumes tokens.
type LLMPinger struct {
	// model is the chat model probed by the Generate fallback.
	model model.BaseChatModel
	// healthCheck is the preferred zero-cost probe. Nil for backends
	// without a side-effect-free endpoint.
	healthCheck provider.HealthCheckConfig
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewLLMPinger constructs an LLMPinger for the given model and backend name.
// hc may be nil; Ping then probes via a Generate call.
func NewLLMPinger(m model.BaseChatModel, hc provider.HealthCheckConfig, name string) *LLMPinger {
	return &LLMPinger{model: m, healthCheck: hc, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return p.name }

// Ping probes the generation backend for readiness.
func (p *LLMPinger) Ping(ctx context.Context) error {
	if p.healthCheck != nil {
		if err := p.healthCheck.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s health check failed: %w", p.name, err)
		}
		return nil
	}

	resp, err := p.model.Generate(ctx, []*schema.Message{schema.UserMessage("ping")})
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("generate returned nil response")
	}
	return nil
}

// EmbedderPinger probes the embedding backend by embedding a single short
// text. Cheap for local backends; one embedding call per readiness check
// for hosted ones.
type EmbedderPinger struct {
	// embedder is the embedding backend to probe.
	embedder rag.Embedder
	// name identifies the backend in readiness responses.
	name string
}

// NewEmbedderPinger constructs an EmbedderPinger for the given backend name.
func NewEmbedderPinger(e rag.Embedder, name string) *EmbedderPinger {
	return &EmbedderPinger{embedder: e, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *EmbedderPinger) Name() string { return p.name }

// Ping embeds one short text and reports any failure.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	if _, err := p.embedder.Embed(ctx, "ping"); err != nil {
		return fmt.Errorf("embed failed: %w", err)
	}
	return nil
}

// StorePinger probes a vector store by asking for its chunk count. It works
// against both the in-process store and a remote Qdrant collection.
type StorePinger struct {
	// store is the vector store to probe.
	store rag.VectorStore
	// name identifies the store in readiness responses.
	name string
}

// NewStorePinger constructs a StorePinger for the given store name.
func NewStorePinger(store rag.VectorStore, name string) *StorePinger {
	return &StorePinger{store: store, name: name}
}

// Name returns the store label used in readiness responses.
func (p *StorePinger) Name() string { return p.name }

// Ping asks the store for its chunk count. An empty store is healthy; only
// an unreachable one fails.
func (p *StorePinger) Ping(ctx context.Context) error {
	if _, err := p.store.Count(ctx); err != nil {
		return fmt.Errorf("count failed: %w", err)
	}
	return nil
}

// QdrantPinger probes a Qdrant-backed store via its native health check RPC.
type QdrantPinger struct {
	// store is the Qdrant store to probe.
	store *rag.QdrantStore
}

// NewQdrantPinger constructs a QdrantPinger for the given store.
func NewQdrantPinger(store *rag.QdrantStore) *QdrantPinger {
	return &QdrantPinger{store: store}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant health check RPC.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	return p.store.Ping(ctx)
}

// EvalLogPinger probes the evaluation log database.
type EvalLogPinger struct {
	// store is the evaluation log to probe.
	store *evallog.Store
}

// NewEvalLogPinger constructs an EvalLogPinger for the given store.
func NewEvalLogPinger(store *evallog.Store) *EvalLogPinger {
	return &EvalLogPinger{store: store}
}

// Name returns the dependency label used in readiness responses.
func (p *EvalLogPinger) Name() string { return "evallog" }

// Ping verifies the log database is reachable.
func (p *EvalLogPinger) Ping(ctx context.Context) error {
	return p.store.Ping(ctx)
}

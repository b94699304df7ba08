package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shahzaibkhangakhar/Textfinder/internal/rag"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are NOT suitable for embedding. If the configured embedding
// model matches any of these, a warning is emitted so the operator knows they
// may have misconfigured the pipeline.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
	"solar",
	"vicuna",
	"falcon",
	"yi-",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// ValidateForSearch runs a one-vector preflight against the embedder and
// returns the embedding dimension it produces. Callers use the dimension to
// size the vector index or to verify an existing collection before serving
// traffic, so misconfiguration surfaces as a clear startup error rather than
// a cryptic failure on the first query.
//
// A warning is logged when the configured model name looks like a chat model.
func ValidateForSearch(ctx context.Context, log *slog.Logger, emb rag.Embedder, model string) (int, error) {
	if emb == nil {
		return 0, errors.New("embedder: nil embedder")
	}

	if model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: configured model looks like a chat model, not an embedding model — "+
			"this will likely produce poor or broken embeddings",
			slog.String("model", model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}

	vec, err := emb.Embed(ctx, "dimension probe")
	if err != nil {
		return 0, fmt.Errorf("embedder: preflight embed failed: %w", err)
	}
	if len(vec) == 0 {
		return 0, errors.New("embedder: preflight embed returned an empty vector")
	}
	return len(vec), nil
}

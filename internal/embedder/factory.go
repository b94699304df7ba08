package embedder

import (
	"fmt"

	"github.com/shahzaibkhangakhar/Textfinder/internal/rag"
)

// Backend names accepted by New.
const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
	BackendAzure  = "azure"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	defaultOllamaHost = "http://localhost:11434"
	defaultOpenAIBase = "https://api.openai.com/v1"
	defaultAPIVersion = "2025-04-01-preview"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ — override via config.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
)

// Config selects and parameterizes an embedding backend. Zero values fall
// back to per-backend defaults; only credentials are ever required.
type Config struct {
	// Backend is one of "ollama", "openai", "azure". Empty means ollama.
	Backend string
	// Endpoint overrides the backend's default base URL.
	Endpoint string
	// APIKey authenticates openai and azure requests. Unused by ollama.
	APIKey string
	// Model overrides the backend's default embedding model.
	Model string
	// Dimensions requests a specific vector length (0 = model default).
	Dimensions int
	// APIVersion is the Azure OpenAI API version (azure only).
	APIVersion string
	// MaxInputChars bounds each input text (0 = DefaultMaxInputChars).
	MaxInputChars int
}

// DefaultDimensions returns the default embedding vector size for the given
// backend name. Callers that need to pre-configure a vector store (e.g.
// Qdrant collection creation) should use this rather than hardcoding a value.
func DefaultDimensions(backend string) int {
	switch backend {
	case BackendOllama, "":
		return defaultOllamaDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// New constructs a rag.Embedder for the configured backend.
func New(cfg Config) (rag.Embedder, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = BackendOllama
	}

	switch backend {
	case BackendOllama:
		host := cfg.Endpoint
		if host == "" {
			host = defaultOllamaHost
		}
		model := cfg.Model
		if model == "" {
			model = defaultOllamaModel
		}
		return NewOllama(&OllamaConfig{
			Host:          host,
			Model:         model,
			MaxInputChars: cfg.MaxInputChars,
		}), nil

	case BackendOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: openai backend requires an API key")
		}
		baseURL := cfg.Endpoint
		if baseURL == "" {
			baseURL = defaultOpenAIBase
		}
		model := cfg.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		return NewOpenAI(&OpenAIConfig{
			BaseURL:       baseURL,
			APIKey:        cfg.APIKey,
			Model:         model,
			Dimensions:    cfg.Dimensions,
			MaxInputChars: cfg.MaxInputChars,
		}), nil

	case BackendAzure:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: azure backend requires an API key")
		}
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("embedder: azure backend requires an endpoint")
		}
		apiVersion := cfg.APIVersion
		if apiVersion == "" {
			apiVersion = defaultAPIVersion
		}
		model := cfg.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		return NewOpenAI(&OpenAIConfig{
			BaseURL:       cfg.Endpoint + "/openai",
			APIKey:        cfg.APIKey,
			Model:         model,
			Dimensions:    cfg.Dimensions,
			Azure:         true,
			APIVersion:    apiVersion,
			MaxInputChars: cfg.MaxInputChars,
		}), nil

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q — valid values: ollama, openai, azure", backend)
	}
}

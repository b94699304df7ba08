// Package provider selects and constructs the LLM chat-model backend used
// for answer generation. Supported backends: Ollama, OpenAI, Azure OpenAI,
// AWS Bedrock, Google Gemini.
package provider

import (
	"fmt"
	"os"
	"strings"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendBedrock selects AWS Bedrock.
	BackendBedrock Backend = "bedrock"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// ProviderOllama configures the Ollama backend.
type ProviderOllama struct {
	// Host is the Ollama server base URL (e.g. "http://localhost:11434").
	Host string
	// Model is the chat model name (e.g. "llama3").
	Model string
}

// ProviderOpenAI configures the OpenAI backend.
type ProviderOpenAI struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the model name (e.g. "gpt-4o").
	Model string
	// BaseURL overrides the default API endpoint (optional).
	BaseURL string
}

// ProviderAzureOpenAI configures the Azure OpenAI backend.
type ProviderAzureOpenAI struct {
	// APIKey is the Azure OpenAI key.
	APIKey string
	// Endpoint is the resource endpoint (e.g. "https://my.openai.azure.com").
	Endpoint string
	// Deployment is the deployment name to invoke.
	Deployment string
	// APIVersion is the REST API version (e.g. "2024-02-01").
	APIVersion string
}

// ProviderBedrock configures the AWS Bedrock backend.
type ProviderBedrock struct {
	// AWSRegion is the AWS region hosting the model.
	AWSRegion string
	// ModelID is the Bedrock model identifier.
	ModelID string
	// APIKey and Endpoint parameterize the ark-compatible runtime used to
	// reach Bedrock until a dedicated implementation lands.
	APIKey   string
	Endpoint string
}

// ProviderGemini configures the Google Gemini backend.
type ProviderGemini struct {
	// APIKey is the AI Studio API key.
	APIKey string
	// Model is the model name (e.g. "gemini-1.5-pro").
	Model string
}

// SharedTuning holds generation parameters common to all backends. They are
// applied at construction; per-request overrides take precedence.
type SharedTuning struct {
	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int
	// Temperature controls response randomness (0.0–1.0).
	Temperature float32
}

// Config holds all provider-level configuration resolved from the config
// file, environment variables, or explicit caller-supplied values.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	Ollama      ProviderOllama
	OpenAI      ProviderOpenAI
	AzureOpenAI ProviderAzureOpenAI
	Bedrock     ProviderBedrock
	Gemini      ProviderGemini

	Tuning SharedTuning
}

// DefaultConfig returns a Config with every default filled in, targeting a
// local Ollama instance.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendOllama,
		Ollama: ProviderOllama{
			Host:  "http://localhost:11434",
			Model: "llama3",
		},
		OpenAI: ProviderOpenAI{
			Model: "gpt-4o",
		},
		AzureOpenAI: ProviderAzureOpenAI{
			APIVersion: "2024-02-01",
		},
		Bedrock: ProviderBedrock{
			AWSRegion: "us-east-1",
		},
		Gemini: ProviderGemini{
			Model: "gemini-1.5-pro",
		},
		Tuning: SharedTuning{
			MaxTokens:   1024,
			Temperature: 0.7,
		},
	}
}

// FillFromEnv populates unset fields from each provider's conventional
// environment variables, so credentials never need to live in config files.
//
//	MODEL_PROVIDER              = ollama | openai | azure | bedrock | gemini
//
//	Ollama:  OLLAMA_HOST, OLLAMA_MODEL
//	OpenAI:  OPENAI_API_KEY, OPENAI_MODEL
//	Azure:   AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_DEPLOYMENT,
//	         AZURE_OPENAI_API_VERSION
//	Bedrock: AWS_REGION, BEDROCK_MODEL_ID
//	Gemini:  GOOGLE_API_KEY, GEMINI_MODEL
//
//	Shared:  MODEL_MAX_TOKENS, MODEL_TEMPERATURE
func (c *Config) FillFromEnv() {
	if v := os.Getenv("MODEL_PROVIDER"); v != "" && c.Backend == "" {
		c.Backend = Backend(v)
	}
	fillString(&c.Ollama.Host, "OLLAMA_HOST")
	fillString(&c.Ollama.Model, "OLLAMA_MODEL")
	fillString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	fillString(&c.OpenAI.Model, "OPENAI_MODEL")
	fillString(&c.AzureOpenAI.APIKey, "AZURE_OPENAI_API_KEY")
	fillString(&c.AzureOpenAI.Endpoint, "AZURE_OPENAI_ENDPOINT")
	fillString(&c.AzureOpenAI.Deployment, "AZURE_OPENAI_DEPLOYMENT")
	fillString(&c.AzureOpenAI.APIVersion, "AZURE_OPENAI_API_VERSION")
	fillString(&c.Bedrock.AWSRegion, "AWS_REGION")
	fillString(&c.Bedrock.ModelID, "BEDROCK_MODEL_ID")
	fillString(&c.Gemini.APIKey, "GOOGLE_API_KEY")
	fillString(&c.Gemini.Model, "GEMINI_MODEL")
	if c.Tuning.MaxTokens == 0 {
		c.Tuning.MaxTokens = getEnvInt("MODEL_MAX_TOKENS", 0)
	}
	if c.Tuning.Temperature == 0 {
		c.Tuning.Temperature = getEnvFloat32("MODEL_TEMPERATURE", 0)
	}
}

// fillString sets *dst from the named environment variable when *dst is empty.
func fillString(dst *string, key string) {
	if *dst == "" {
		*dst = os.Getenv(key)
	}
}

// Validate checks that the selected backend has every field it requires.
// Error messages name the environment variable that supplies the field so
// operators get an actionable startup failure.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOllama:
		if c.Ollama.Model == "" {
			return fmt.Errorf("provider: ollama backend requires a model (OLLAMA_MODEL)")
		}
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("provider: openai backend requires an API key (OPENAI_API_KEY)")
		}
		if c.OpenAI.Model == "" {
			return fmt.Errorf("provider: openai backend requires a model (OPENAI_MODEL)")
		}
	case BackendAzure:
		if c.AzureOpenAI.APIKey == "" {
			return fmt.Errorf("provider: azure backend requires an API key (AZURE_OPENAI_API_KEY)")
		}
		if c.AzureOpenAI.Endpoint == "" {
			return fmt.Errorf("provider: azure backend requires an endpoint (AZURE_OPENAI_ENDPOINT)")
		}
		if c.AzureOpenAI.Deployment == "" {
			return fmt.Errorf("provider: azure backend requires a deployment (AZURE_OPENAI_DEPLOYMENT)")
		}
	case BackendBedrock:
		if c.Bedrock.ModelID == "" {
			return fmt.Errorf("provider: bedrock backend requires a model ID (BEDROCK_MODEL_ID)")
		}
		if c.Bedrock.AWSRegion == "" {
			return fmt.Errorf("provider: bedrock backend requires a region (AWS_REGION)")
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("provider: gemini backend requires an API key (GOOGLE_API_KEY)")
		}
		if c.Gemini.Model == "" {
			return fmt.Errorf("provider: gemini backend requires a model (GEMINI_MODEL)")
		}
	default:
		return fmt.Errorf("provider: unknown backend %q — valid values: ollama, openai, azure, bedrock, gemini", c.Backend)
	}
	return nil
}

// isAzureReasoningModel reports whether an Azure deployment name belongs to
// the o-series/codex reasoning family. Those deployments reject explicit
// temperature and max_tokens parameters, so construction must omit them.
func isAzureReasoningModel(deployment string) bool {
	d := strings.ToLower(deployment)
	for _, prefix := range []string{"o1", "o3", "o4", "codex"} {
		if strings.HasPrefix(d, prefix) {
			return true
		}
	}
	return false
}

package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HealthCheckConfig probes a backend's liveness without consuming tokens.
// Readiness handlers prefer this over a Generate-based probe.
type HealthCheckConfig interface {
	HealthCheck(ctx context.Context) error
}

// httpHealthCheck probes a backend by issuing a GET and expecting a 2xx.
type httpHealthCheck struct {
	url     string
	headers map[string]string
	client  *http.Client
}

func (h *httpHealthCheck) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("provider: create health check request: %w", err)
	}
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider: health check request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("provider: health check returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// NewHealthCheck returns a zero-cost liveness probe for the configured
// backend, or nil when the backend has no side-effect-free endpoint to hit
// (callers then fall back to a Generate-based probe).
func NewHealthCheck(cfg *Config) HealthCheckConfig {
	client := &http.Client{Timeout: 5 * time.Second}
	switch cfg.Backend {
	case BackendOllama:
		host := cfg.Ollama.Host
		if host == "" {
			host = "http://localhost:11434"
		}
		return &httpHealthCheck{url: host + "/api/tags", client: client}
	case BackendOpenAI:
		base := cfg.OpenAI.BaseURL
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		return &httpHealthCheck{
			url:     base + "/models",
			headers: map[string]string{"Authorization": "Bearer " + cfg.OpenAI.APIKey},
			client:  client,
		}
	default:
		// Azure, Bedrock, and Gemini expose no stable unauthenticated or
		// deployment-scoped liveness endpoint.
		return nil
	}
}

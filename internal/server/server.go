// Package server implements the HTTP server that exposes question
// answering, the evaluation log, and reindexing as a small JSON API.
// The server is started by the `textfinder serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shahzaibkhangakhar/Textfinder/internal/embedder"
	"github.com/shahzaibkhangakhar/Textfinder/internal/evallog"
	"github.com/shahzaibkhangakhar/Textfinder/internal/generate"
	"github.com/shahzaibkhangakhar/Textfinder/internal/logging"
	"github.com/shahzaibkhangakhar/Textfinder/internal/pipeline"
	"github.com/shahzaibkhangakhar/Textfinder/internal/rag"
)

// defaultLogLimit is how many evaluation records GET /api/logs returns
// when the request does not specify a limit.
const defaultLogLimit = 50

// New constructs a Server from the provided pipeline and config.
func New(p *pipeline.Pipeline, cfg *Config) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("server: pipeline must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a full batch of model calls.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 2 * time.Minute
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	if cfg.APIKey == "" {
		log.Warn("server: API authentication is disabled, set an API key for non-local deployments")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)

	s := &Server{
		pipeline: p,
		cfg:      cfg,
		log:      log,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(cfg.MetricsRegistry),
		rl:       rl,
		stopRL:   stopRL,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// routes assembles the mux and middleware chain. API routes sit behind
// rate limiting and Bearer auth; health, readiness, and metrics stay open
// so probes and scrapers work without credentials.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	protected := func(name string, h http.HandlerFunc) http.Handler {
		var handler http.Handler = h
		handler = authMiddleware(s.cfg.APIKey, handler)
		if s.rl != nil {
			handler = s.rl.middleware(handler)
		}
		return s.instrument(name, handler)
	}

	mux.Handle("POST /api/query", protected("query", s.handleQuery))
	mux.Handle("POST /api/batch", protected("batch", s.handleBatch))
	mux.Handle("GET /api/logs", protected("logs", s.handleLogs))
	mux.Handle("POST /api/reindex", protected("reindex", s.handleReindex))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))

	gatherer := s.cfg.MetricsGatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return requestLogger(s.log, mux)
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	if s.stopRL != nil {
		defer s.stopRL()
	}

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleQuery handles POST /api/query. It answers a single question and
// returns the retrieved context, the exact prompt, and the final answer.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSONError(w, "question is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.QueryTimeout)
	defer cancel()

	s.metrics.queryActive.Inc()
	defer s.metrics.queryActive.Dec()

	start := time.Now()
	result, err := s.pipeline.Query(ctx, req.Question)
	s.observeQuery(outcomeLabel(err), start)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleBatch handles POST /api/batch. Results come back in request order.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Questions) == 0 {
		writeJSONError(w, "questions are required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.QueryTimeout)
	defer cancel()

	s.metrics.queryActive.Inc()
	defer s.metrics.queryActive.Dec()

	start := time.Now()
	results, err := s.pipeline.QueryBatch(ctx, req.Questions)
	s.observeQuery(outcomeLabel(err), start)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, batchResponse{Results: results})
}

// handleLogs handles GET /api/logs?limit=n. It returns the most recent
// evaluation records oldest-first plus quality metrics recomputed over the
// full log.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	logs, err := s.pipeline.Recent(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	metrics, err := s.pipeline.Metrics(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if logs == nil {
		logs = []evallog.Record{}
	}
	writeJSON(w, http.StatusOK, logsResponse{Logs: logs, Metrics: metrics})
}

// handleReindex handles POST /api/reindex. It rebuilds the store from the
// configured document directory and publishes it atomically; in-flight
// queries keep the store they started with.
func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	count, err := s.pipeline.Reindex(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.metrics.indexChunks.Set(float64(count))
	log.Info("reindex complete", slog.Int("indexed_chunks", count))
	writeJSON(w, http.StatusOK, reindexResponse{IndexedChunks: count})
}

// SetIndexChunks records the size of the published store. The serve command
// calls it once at startup; reindexing keeps it current afterwards.
func (s *Server) SetIndexChunks(n int) {
	s.metrics.indexChunks.Set(float64(n))
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeServiceError maps pipeline errors onto HTTP status codes: caller
// mistakes are 4xx, missing documents and disabled subsystems are 503, a
// failing model backend is 502, and anything unexpected is 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := logging.FromContext(r.Context())

	switch {
	case errors.Is(err, embedder.ErrEmptyInput), errors.Is(err, embedder.ErrInputTooLong):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, rag.ErrEmptyIndex):
		writeJSONError(w, "no documents indexed yet", http.StatusServiceUnavailable)
	case errors.Is(err, pipeline.ErrLogDisabled), errors.Is(err, pipeline.ErrReindexDisabled):
		writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, generate.ErrModelFailure):
		log.Error("generation backend failed", slog.Any("error", err))
		writeJSONError(w, "generation backend failed", http.StatusBadGateway)
	case errors.Is(err, context.DeadlineExceeded):
		writeJSONError(w, "request timed out", http.StatusGatewayTimeout)
	default:
		log.Error("request failed", slog.Any("error", err))
		writeJSONError(w, "internal error", http.StatusInternalServerError)
	}
}

// observeQuery records one completed query or batch request.
func (s *Server) observeQuery(outcome string, start time.Time) {
	s.metrics.queryRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.queryDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// outcomeLabel classifies an error for the query outcome metric label.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// errorResponse is the JSON body of every non-2xx API response.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON-formatted error response with the given
// status code.
func writeJSONError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, errorResponse{Error: msg})
}

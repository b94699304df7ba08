package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shahzaibkhangakhar/Textfinder/internal/evallog"
	"github.com/shahzaibkhangakhar/Textfinder/internal/pipeline"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// It must be long enough for batch answers over a slow model.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// QueryTimeout bounds a single /api/query or /api/batch request.
	// Reindexing is not subject to it; rebuilding an index legitimately
	// takes longer than answering a question.
	QueryTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives all Prometheus metric registrations.
	// Defaults to prometheus.DefaultRegisterer; tests inject a fresh registry.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs the GET /metrics endpoint.
	// Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// queryService is the interface the handlers call to answer questions and
// read the evaluation log. *pipeline.Pipeline satisfies it; tests inject
// a fake.
type queryService interface {
	Query(ctx context.Context, question string) (*pipeline.Result, error)
	QueryBatch(ctx context.Context, questions []string) ([]*pipeline.Result, error)
	Recent(ctx context.Context, n int) ([]evallog.Record, error)
	Metrics(ctx context.Context) (evallog.Metrics, error)
	Reindex(ctx context.Context) (int, error)
}

// Server is the HTTP server that exposes the question-answering pipeline.
type Server struct {
	// pipeline answers questions and serves the evaluation log.
	pipeline queryService
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// rl enforces the per-IP rate limit on the API routes. Nil disables it.
	rl *rateLimiter
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// queryRequest is the JSON body for POST /api/query.
type queryRequest struct {
	// Question is the user's natural language question.
	Question string `json:"question"`
}

// batchRequest is the JSON body for POST /api/batch.
type batchRequest struct {
	// Questions is the ordered list of questions to answer.
	Questions []string `json:"questions"`
}

// batchResponse is the JSON response for POST /api/batch. Results is
// parallel to the request's Questions.
type batchResponse struct {
	Results []*pipeline.Result `json:"results"`
}

// logsResponse is the JSON response for GET /api/logs.
type logsResponse struct {
	// Logs is the tail of the evaluation log, oldest first.
	Logs []evallog.Record `json:"logs"`
	// Metrics is recomputed over the full log on every request.
	Metrics evallog.Metrics `json:"metrics"`
}

// reindexResponse is the JSON response for POST /api/reindex.
type reindexResponse struct {
	// IndexedChunks is the chunk count of the freshly published store.
	IndexedChunks int `json:"indexed_chunks"`
}

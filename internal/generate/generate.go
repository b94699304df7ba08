// Package generate turns assembled prompts into model answers. It owns the
// prompt token budget, contiguous batching across a bounded worker pool,
// bounded retry with exponential backoff, and answer post-processing.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/shahzaibkhangakhar/Textfinder/internal/budget"
	"github.com/shahzaibkhangakhar/Textfinder/internal/prompt"
	"github.com/shahzaibkhangakhar/Textfinder/internal/rag"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultMaxTokens   = 1024
	DefaultTemperature = 0.7
	DefaultBatchSize   = 8
	DefaultWorkers     = 4

	defaultMaxAttempts = 3
	defaultRetryDelay  = 500 * time.Millisecond
	defaultMaxDelay    = 8 * time.Second
)

// ErrModelFailure marks a generation request that failed after exhausting
// its retry budget. Callers map it to an upstream-failure response.
var ErrModelFailure = errors.New("generate: generation model failed")

// Config parameterizes a Generator.
type Config struct {
	// Model is the chat model that produces answers. Required.
	Model model.BaseChatModel
	// MaxPromptTokens is the prompt budget; prompts are truncated to fit
	// (0 = budget.DefaultMaxPromptTokens).
	MaxPromptTokens int
	// MaxTokens caps the tokens the model may generate per answer.
	MaxTokens int
	// Temperature controls response randomness (0 = DefaultTemperature;
	// negative selects a deterministic temperature of 0).
	Temperature float32
	// BatchSize is the number of requests dispatched to a worker as one
	// contiguous group.
	BatchSize int
	// Workers bounds how many groups run concurrently.
	Workers int
	// MaxAttempts bounds retries per request (0 = 3).
	MaxAttempts int
	// RetryDelay is the initial backoff between attempts (0 = 500ms).
	RetryDelay time.Duration
	// Logger receives truncation and retry events (nil = slog.Default()).
	Logger *slog.Logger
}

// Generator sends prompts to a chat model. Safe for concurrent use.
type Generator struct {
	model           model.BaseChatModel
	maxPromptTokens int
	maxTokens       int
	temperature     float32
	batchSize       int
	workers         int
	maxAttempts     int
	retryDelay      time.Duration
	maxDelay        time.Duration
	log             *slog.Logger
}

// New constructs a Generator, filling unset config fields with defaults.
func New(cfg Config) (*Generator, error) {
	if cfg.Model == nil {
		return nil, errors.New("generate: model must not be nil")
	}
	g := &Generator{
		model:           cfg.Model,
		maxPromptTokens: cfg.MaxPromptTokens,
		maxTokens:       cfg.MaxTokens,
		temperature:     cfg.Temperature,
		batchSize:       cfg.BatchSize,
		workers:         cfg.Workers,
		maxAttempts:     cfg.MaxAttempts,
		retryDelay:      cfg.RetryDelay,
		maxDelay:        defaultMaxDelay,
		log:             cfg.Logger,
	}
	if g.maxPromptTokens <= 0 {
		g.maxPromptTokens = budget.DefaultMaxPromptTokens
	}
	if g.maxTokens <= 0 {
		g.maxTokens = DefaultMaxTokens
	}
	if g.temperature == 0 {
		g.temperature = DefaultTemperature
	}
	if g.temperature < 0 {
		g.temperature = 0
	}
	if g.batchSize <= 0 {
		g.batchSize = DefaultBatchSize
	}
	if g.workers <= 0 {
		g.workers = DefaultWorkers
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = defaultMaxAttempts
	}
	if g.retryDelay <= 0 {
		g.retryDelay = defaultRetryDelay
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	return g, nil
}

// BuildPrompt assembles the prompt for a request. When the assembled prompt
// exceeds the token budget, context chunks are dropped lowest-ranked first
// until it fits; the question and rule block are never truncated.
func (g *Generator) BuildPrompt(req rag.GenerationRequest) string {
	texts := make([]string, len(req.Context))
	for i, c := range req.Context {
		texts[i] = c.Text
	}

	p := prompt.Build(req.Question, texts)
	dropped := 0
	for len(texts) > 0 && budget.Estimate(p) > g.maxPromptTokens {
		texts = texts[:len(texts)-1]
		p = prompt.Build(req.Question, texts)
		dropped++
	}
	if dropped > 0 {
		g.log.Debug("generate: dropped context chunks to fit prompt budget",
			slog.Int("dropped", dropped),
			slog.Int("kept", len(texts)),
			slog.Int("budget_tokens", g.maxPromptTokens),
		)
	}
	return p
}

// Generate sends one assembled prompt to the model and returns the
// post-processed answer.
func (g *Generator) Generate(ctx context.Context, promptText string) (string, error) {
	msgs := []*schema.Message{schema.UserMessage(promptText)}
	resp, err := g.invoke(ctx, msgs)
	if err != nil {
		return "", err
	}
	return PostProcess(resp.Content), nil
}

// GenerateBatch answers a sequence of prompts, partitioned into contiguous
// groups of at most the configured batch size. Groups run concurrently on a
// bounded worker pool; the returned slice is parallel to the input
// regardless of completion order. The first failure cancels the remaining
// work and is returned with its request index.
func (g *Generator) GenerateBatch(ctx context.Context, prompts []string) ([]string, error) {
	if len(prompts) == 0 {
		return nil, nil
	}

	results := make([]string, len(prompts))
	numGroups := (len(prompts) + g.batchSize - 1) / g.batchSize
	errs := make([]error, numGroups)

	gctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, g.workers)
	var wg sync.WaitGroup
	for gi := 0; gi < numGroups; gi++ {
		start := gi * g.batchSize
		end := min(start+g.batchSize, len(prompts))

		wg.Add(1)
		go func(gi, start, end int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				errs[gi] = gctx.Err()
				return
			}
			defer func() { <-sem }()

			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					errs[gi] = err
					return
				}
				answer, err := g.Generate(gctx, prompts[i])
				if err != nil {
					errs[gi] = fmt.Errorf("generate: request %d: %w", i, err)
					cancel()
					return
				}
				results[i] = answer
			}
		}(gi, start, end)
	}
	wg.Wait()

	// Prefer the lowest-indexed real failure; cancellations of sibling
	// groups are fallout, not the cause.
	for _, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return nil, err
		}
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// invoke calls the model with bounded retry and exponential backoff.
// Cancellation is surfaced immediately; any other failure is retried until
// the attempt budget runs out.
func (g *Generator) invoke(ctx context.Context, msgs []*schema.Message) (*schema.Message, error) {
	g.log.Debug("generate: sending request",
		slog.Int("estimated_tokens", budget.EstimateMessages(msgs)),
	)

	var lastErr error
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := g.backoff(attempt)
			g.log.Warn("generate: retrying model call",
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", delay),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := g.model.Generate(ctx, msgs,
			model.WithTemperature(g.temperature),
			model.WithMaxTokens(g.maxTokens),
		)
		if err == nil {
			if resp == nil {
				lastErr = errors.New("model returned nil response")
				continue
			}
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrModelFailure, g.maxAttempts, lastErr)
}

// backoff returns the delay before the given retry attempt, doubling from
// the initial delay and capped at maxDelay.
func (g *Generator) backoff(attempt int) time.Duration {
	delay := g.retryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > g.maxDelay {
			return g.maxDelay
		}
	}
	return delay
}

// PostProcess trims model output and normalizes any "cannot find" phrasing
// to the canonical no-answer marker so metrics can count unanswered queries.
// An empty completion also maps to the marker.
func PostProcess(raw string) string {
	answer := strings.TrimSpace(raw)
	if answer == "" {
		return rag.NoAnswerMarker
	}
	if strings.Contains(strings.ToLower(answer), "cannot find") {
		return rag.NoAnswerMarker
	}
	return answer
}

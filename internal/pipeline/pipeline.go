// Package pipeline wires retrieval, prompt assembly, generation, and
// evaluation logging into the single query path shared by the CLI and the
// HTTP server.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shahzaibkhangakhar/Textfinder/internal/evallog"
	"github.com/shahzaibkhangakhar/Textfinder/internal/generate"
	"github.com/shahzaibkhangakhar/Textfinder/internal/rag"
)

var (
	// ErrLogDisabled is returned by log-reading operations when the
	// pipeline was built without an evaluation log.
	ErrLogDisabled = errors.New("pipeline: evaluation log not configured")

	// ErrReindexDisabled is returned by Reindex when the pipeline was
	// built without a rebuild hook and published store.
	ErrReindexDisabled = errors.New("pipeline: reindexing not configured")
)

// RetrievedChunk is one context chunk as surfaced to API clients.
type RetrievedChunk struct {
	Text  string  `json:"text"`
	Score float32 `json:"score"`
}

// Result is the full outcome of one query: the retrieved context in ranking
// order, the exact prompt sent to the model, and the final answer.
type Result struct {
	Question        string           `json:"question"`
	RetrievedChunks []RetrievedChunk `json:"retrieved_chunks"`
	Prompt          string           `json:"prompt"`
	GeneratedAnswer string           `json:"generated_answer"`
}

// Config parameterizes a Pipeline.
type Config struct {
	// Retriever fetches context for questions. Required.
	Retriever rag.Retriever
	// Generator produces answers from assembled prompts. Required.
	Generator *generate.Generator
	// Log receives one record per answered question. Nil disables
	// evaluation logging.
	Log *evallog.Store
	// Published is the live store handle; needed only for Reindex.
	Published *rag.Published
	// Rebuild constructs a fresh store from the ingest sources; needed
	// only for Reindex.
	Rebuild func(ctx context.Context) (*rag.LocalStore, error)
	// Logger receives operational events (nil = slog.Default()).
	Logger *slog.Logger
}

// Pipeline answers questions against the published index. Safe for
// concurrent use.
type Pipeline struct {
	retriever rag.Retriever
	generator *generate.Generator
	log       *evallog.Store
	published *rag.Published
	rebuild   func(ctx context.Context) (*rag.LocalStore, error)
	logger    *slog.Logger
}

// New constructs a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Retriever == nil {
		return nil, errors.New("pipeline: retriever must not be nil")
	}
	if cfg.Generator == nil {
		return nil, errors.New("pipeline: generator must not be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		retriever: cfg.Retriever,
		generator: cfg.Generator,
		log:       cfg.Log,
		published: cfg.Published,
		rebuild:   cfg.Rebuild,
		logger:    logger,
	}, nil
}

// Query answers a single question: retrieve context, assemble the prompt,
// generate, log. Zero retrieved chunks is not an error; the question still
// goes to the model with an empty context section, whose rules steer it to
// the no-answer reply.
func (p *Pipeline) Query(ctx context.Context, question string) (*Result, error) {
	res, err := p.answer(ctx, question)
	if err != nil {
		return nil, err
	}
	p.appendLog(ctx, uuid.NewString(), res)
	return res.result, nil
}

// QueryBatch answers several questions: per-question retrieval first, then
// one batched generation pass over all prompts. Results are parallel to the
// input, and all records share one group ID in the evaluation log.
func (p *Pipeline) QueryBatch(ctx context.Context, questions []string) ([]*Result, error) {
	if len(questions) == 0 {
		return nil, nil
	}

	answered := make([]*answeredQuery, len(questions))
	prompts := make([]string, len(questions))
	for i, q := range questions {
		hits, err := p.retrieve(ctx, q)
		if err != nil {
			return nil, err
		}
		answered[i] = hits
		prompts[i] = hits.result.Prompt
	}

	answers, err := p.generator.GenerateBatch(ctx, prompts)
	if err != nil {
		return nil, fmt.Errorf("pipeline: generate batch: %w", err)
	}

	groupID := uuid.NewString()
	results := make([]*Result, len(questions))
	for i, a := range answered {
		a.result.GeneratedAnswer = answers[i]
		p.appendLog(ctx, groupID, a)
		results[i] = a.result
	}
	return results, nil
}

// Logs returns the full evaluation log in insertion order.
func (p *Pipeline) Logs(ctx context.Context) ([]evallog.Record, error) {
	if p.log == nil {
		return nil, ErrLogDisabled
	}
	return p.log.All(ctx)
}

// Recent returns the n most recent evaluation records, oldest-first.
func (p *Pipeline) Recent(ctx context.Context, n int) ([]evallog.Record, error) {
	if p.log == nil {
		return nil, ErrLogDisabled
	}
	return p.log.Recent(ctx, n)
}

// Metrics recomputes quality metrics over the full evaluation log.
func (p *Pipeline) Metrics(ctx context.Context) (evallog.Metrics, error) {
	if p.log == nil {
		return evallog.Metrics{}, ErrLogDisabled
	}
	records, err := p.log.All(ctx)
	if err != nil {
		return evallog.Metrics{}, err
	}
	return evallog.ComputeMetrics(records), nil
}

// Reindex rebuilds the store from the ingest sources and publishes it
// atomically. In-flight queries keep the store they started with; the next
// query sees the new one. Returns the published chunk count.
func (p *Pipeline) Reindex(ctx context.Context) (int, error) {
	if p.rebuild == nil || p.published == nil {
		return 0, ErrReindexDisabled
	}
	store, err := p.rebuild(ctx)
	if err != nil {
		return 0, fmt.Errorf("pipeline: rebuild: %w", err)
	}
	count, err := store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("pipeline: count rebuilt store: %w", err)
	}
	p.published.Swap(store)
	p.logger.Info("pipeline: index rebuilt", slog.Int("chunks", count))
	return count, nil
}

// answeredQuery pairs a Result with the retrieval hits that produced it, so
// the log record can carry chunk IDs and scores.
type answeredQuery struct {
	result *Result
	hits   []rag.QueryResult
}

// answer runs the full single-question flow minus the log append.
func (p *Pipeline) answer(ctx context.Context, question string) (*answeredQuery, error) {
	a, err := p.retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	generated, err := p.generator.Generate(ctx, a.result.Prompt)
	if err != nil {
		return nil, fmt.Errorf("pipeline: generate: %w", err)
	}
	a.result.GeneratedAnswer = generated
	return a, nil
}

// retrieve fetches context and assembles the prompt, leaving the answer
// empty.
func (p *Pipeline) retrieve(ctx context.Context, question string) (*answeredQuery, error) {
	// topK <= 0 and threshold < 0 defer to the retriever's configured defaults.
	hits, err := p.retriever.Retrieve(ctx, question, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("pipeline: retrieve: %w", err)
	}

	req := rag.GenerationRequest{Question: question, Context: make([]rag.Chunk, len(hits))}
	chunks := make([]RetrievedChunk, len(hits))
	for i, h := range hits {
		req.Context[i] = h.Chunk
		chunks[i] = RetrievedChunk{Text: h.Chunk.Text, Score: h.Score}
	}

	return &answeredQuery{
		result: &Result{
			Question:        question,
			RetrievedChunks: chunks,
			Prompt:          p.generator.BuildPrompt(req),
		},
		hits: hits,
	}, nil
}

// appendLog persists one evaluation record. Append failures are logged and
// swallowed; answering the question matters more than recording it.
func (p *Pipeline) appendLog(ctx context.Context, groupID string, a *answeredQuery) {
	if p.log == nil {
		return
	}
	rec := evallog.Record{
		GroupID:         groupID,
		Question:        a.result.Question,
		RetrievedChunks: make([]string, len(a.hits)),
		ChunkIDs:        make([]string, len(a.hits)),
		RetrievalScores: make([]float32, len(a.hits)),
		Prompt:          a.result.Prompt,
		GeneratedAnswer: a.result.GeneratedAnswer,
	}
	for i, h := range a.hits {
		rec.RetrievedChunks[i] = h.Chunk.Text
		rec.ChunkIDs[i] = h.Chunk.ID
		rec.RetrievalScores[i] = h.Score
	}
	if err := p.log.Append(ctx, rec); err != nil {
		p.logger.Warn("pipeline: evaluation log append failed",
			slog.String("question", a.result.Question),
			slog.String("error", err.Error()),
		)
	}
}

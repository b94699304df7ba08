package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/shahzaibkhangakhar/Textfinder/internal/evallog"
	"github.com/shahzaibkhangakhar/Textfinder/internal/generate"
	"github.com/shahzaibkhangakhar/Textfinder/internal/index"
	"github.com/shahzaibkhangakhar/Textfinder/internal/rag"
)

const (
	qTour    = "when did pakistan tour england?"
	qCup     = "who lifted the world cup?"
	qGround  = "where is the gaddafi stadium?"
	qSailing = "do they hold regattas here?"
)

// stubEmbedder returns canned vectors keyed by exact text.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v, ok := s.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return v, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// scriptedModel answers based on which chunk text made it into the prompt,
// falling back to the refusal the prompt rules ask for.
type scriptedModel struct {
	mu    sync.Mutex
	calls int
}

func (m *scriptedModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if len(in) == 0 {
		return nil, errors.New("no messages")
	}
	p := in[len(in)-1].Content
	var answer string
	switch {
	case strings.Contains(p, "1971"):
		answer = "Pakistan toured England in 1971."
	case strings.Contains(p, "1992"):
		answer = "It was lifted in 1992."
	case strings.Contains(p, "Gaddafi"):
		answer = "It is in Lahore."
	case strings.Contains(p, "Regattas"):
		answer = "They race on the lake every spring."
	default:
		answer = "cannot find."
	}
	return schema.AssistantMessage(answer, nil), nil
}

func (m *scriptedModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func questionVectors() map[string][]float32 {
	return map[string][]float32{
		qTour:    {0.1, 0},
		qCup:     {5.1, 0},
		qGround:  {10.1, 0},
		qSailing: {50, 50},
	}
}

func seededStore(t *testing.T) *rag.LocalStore {
	t.Helper()
	idx, err := index.NewFlat(2)
	if err != nil {
		t.Fatalf("new flat index: %v", err)
	}
	store, err := rag.NewLocalStore(idx)
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	chunks := []rag.Chunk{
		{ID: "tour-1", Text: "Pakistan toured England in 1971 and won the Test series.", DocumentID: "cricket.txt"},
		{ID: "cup-1", Text: "Imran Khan lifted the World Cup in 1992.", DocumentID: "cricket.txt"},
		{ID: "ground-1", Text: "The Gaddafi Stadium is in Lahore.", DocumentID: "grounds.txt"},
	}
	vectors := [][]float32{{0, 0}, {5, 0}, {10, 0}}
	if err := store.Add(context.Background(), chunks, vectors); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return store
}

type fixture struct {
	p   *Pipeline
	log *evallog.Store
	pub *rag.Published
}

// newFixture builds a pipeline over a three-chunk store with a 0.5 score
// threshold, so each test question retrieves exactly its own chunk and the
// sailing question retrieves nothing.
func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()

	pub := rag.NewPublished(seededStore(t))
	ret, err := rag.NewRetriever(&stubEmbedder{vectors: questionVectors()}, pub, 3, 0.5)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	gen, err := generate.New(generate.Config{
		Model:      &scriptedModel{},
		RetryDelay: time.Millisecond,
		Logger:     discardLogger(),
	})
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	logStore, err := evallog.Open(":memory:")
	if err != nil {
		t.Fatalf("open eval log: %v", err)
	}
	t.Cleanup(func() { _ = logStore.Close() })

	cfg := Config{
		Retriever: ret,
		Generator: gen,
		Log:       logStore,
		Published: pub,
		Logger:    discardLogger(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return &fixture{p: p, log: logStore, pub: pub}
}

func Test_NewPipeline_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Error("expected error for missing retriever")
	}

	ret, err := rag.NewRetriever(&stubEmbedder{}, rag.NewPublished(nil), 3, 0)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	if _, err := New(Config{Retriever: ret}); err == nil {
		t.Error("expected error for missing generator")
	}
}

func Test_Pipeline_Query_AnswersFromContext(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.p.Query(ctx, qTour)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Question != qTour {
		t.Errorf("Question = %q, want %q", res.Question, qTour)
	}
	if len(res.RetrievedChunks) != 1 {
		t.Fatalf("retrieved %d chunks, want 1", len(res.RetrievedChunks))
	}
	if !strings.Contains(res.RetrievedChunks[0].Text, "1971") {
		t.Errorf("wrong chunk retrieved: %q", res.RetrievedChunks[0].Text)
	}
	if res.RetrievedChunks[0].Score < 0.9 {
		t.Errorf("score = %v, want > 0.9", res.RetrievedChunks[0].Score)
	}
	if !strings.Contains(res.Prompt, "Pakistan toured England in 1971") || !strings.Contains(res.Prompt, qTour) {
		t.Error("prompt is missing the context or the question")
	}
	if want := "Pakistan toured England in 1971."; res.GeneratedAnswer != want {
		t.Errorf("GeneratedAnswer = %q, want %q", res.GeneratedAnswer, want)
	}

	recs, err := f.log.All(ctx)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("logged %d records, want 1", len(recs))
	}
	rec := recs[0]
	if rec.Question != qTour || rec.GeneratedAnswer != res.GeneratedAnswer {
		t.Errorf("log record mismatch: %+v", rec)
	}
	if rec.GroupID == "" {
		t.Error("log record has no group ID")
	}
	if len(rec.ChunkIDs) != 1 || rec.ChunkIDs[0] != "tour-1" {
		t.Errorf("ChunkIDs = %v, want [tour-1]", rec.ChunkIDs)
	}
	if len(rec.RetrievalScores) != 1 || rec.RetrievalScores[0] < 0.9 {
		t.Errorf("RetrievalScores = %v", rec.RetrievalScores)
	}
}

func Test_Pipeline_Query_NoRelevantContext(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.p.Query(ctx, qSailing)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res.RetrievedChunks) != 0 {
		t.Errorf("retrieved %d chunks, want 0", len(res.RetrievedChunks))
	}
	if res.GeneratedAnswer != rag.NoAnswerMarker {
		t.Errorf("GeneratedAnswer = %q, want the no-answer marker", res.GeneratedAnswer)
	}
	if !strings.Contains(res.Prompt, "**Context:**") || !strings.Contains(res.Prompt, qSailing) {
		t.Error("empty-context prompt lost its structure")
	}

	recs, err := f.log.All(ctx)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("logged %d records, want 1", len(recs))
	}
	if len(recs[0].RetrievedChunks) != 0 {
		t.Errorf("log record has %d chunks, want 0", len(recs[0].RetrievedChunks))
	}
}

func Test_Pipeline_Query_EmptyIndex(t *testing.T) {
	t.Parallel()

	idx, err := index.NewFlat(2)
	if err != nil {
		t.Fatalf("new flat index: %v", err)
	}
	store, err := rag.NewLocalStore(idx)
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	ret, err := rag.NewRetriever(&stubEmbedder{vectors: questionVectors()}, rag.NewPublished(store), 3, 0)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	gen, err := generate.New(generate.Config{Model: &scriptedModel{}, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	p, err := New(Config{Retriever: ret, Generator: gen, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	_, err = p.Query(context.Background(), qTour)
	if !errors.Is(err, rag.ErrEmptyIndex) {
		t.Errorf("Query() error = %v, want ErrEmptyIndex", err)
	}
}

func Test_Pipeline_QueryBatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()

	questions := []string{qTour, qCup, qGround}
	results, err := f.p.QueryBatch(ctx, questions)
	if err != nil {
		t.Fatalf("query batch: %v", err)
	}
	if len(results) != len(questions) {
		t.Fatalf("got %d results, want %d", len(results), len(questions))
	}

	wantAnswers := []string{
		"Pakistan toured England in 1971.",
		"It was lifted in 1992.",
		"It is in Lahore.",
	}
	for i, res := range results {
		if res.Question != questions[i] {
			t.Errorf("result[%d].Question = %q, want %q", i, res.Question, questions[i])
		}
		if res.GeneratedAnswer != wantAnswers[i] {
			t.Errorf("result[%d].GeneratedAnswer = %q, want %q", i, res.GeneratedAnswer, wantAnswers[i])
		}
	}

	recs, err := f.log.All(ctx)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(recs) != len(questions) {
		t.Fatalf("logged %d records, want %d", len(recs), len(questions))
	}
	groupID := recs[0].GroupID
	if groupID == "" {
		t.Error("batch records have no group ID")
	}
	for i, rec := range recs {
		if rec.Question != questions[i] {
			t.Errorf("record[%d].Question = %q, want %q", i, rec.Question, questions[i])
		}
		if rec.GroupID != groupID {
			t.Errorf("record[%d] group %q differs from %q", i, rec.GroupID, groupID)
		}
	}
}

func Test_Pipeline_QueryBatch_Empty(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	results, err := f.p.QueryBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("query batch: %v", err)
	}
	if results != nil {
		t.Errorf("results = %v, want nil", results)
	}
}

func Test_Pipeline_LogAppendFailureDoesNotFailQuery(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	// Closing the log makes every append fail.
	if err := f.log.Close(); err != nil {
		t.Fatalf("close log: %v", err)
	}

	res, err := f.p.Query(context.Background(), qTour)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if want := "Pakistan toured England in 1971."; res.GeneratedAnswer != want {
		t.Errorf("GeneratedAnswer = %q, want %q", res.GeneratedAnswer, want)
	}
}

func Test_Pipeline_Metrics(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.p.Query(ctx, qTour); err != nil {
		t.Fatalf("query: %v", err)
	}
	if _, err := f.p.Query(ctx, qSailing); err != nil {
		t.Fatalf("query: %v", err)
	}

	m, err := f.p.Metrics(ctx)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if m.TotalQueries != 2 {
		t.Errorf("TotalQueries = %d, want 2", m.TotalQueries)
	}
	if m.QueriesWithChunks != 1 {
		t.Errorf("QueriesWithChunks = %d, want 1", m.QueriesWithChunks)
	}
	if m.Matched != 1 || m.Unmatched != 1 {
		t.Errorf("Matched/Unmatched = %d/%d, want 1/1", m.Matched, m.Unmatched)
	}
	if m.Accuracy != 50.0 {
		t.Errorf("Accuracy = %v, want 50.0", m.Accuracy)
	}
}

func Test_Pipeline_Recent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, q := range []string{qTour, qCup, qGround} {
		if _, err := f.p.Query(ctx, q); err != nil {
			t.Fatalf("query %q: %v", q, err)
		}
	}

	recs, err := f.p.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Question != qCup || recs[1].Question != qGround {
		t.Errorf("recent returned wrong tail: %q, %q", recs[0].Question, recs[1].Question)
	}
}

func Test_Pipeline_Reindex(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(cfg *Config) {
		cfg.Rebuild = func(ctx context.Context) (*rag.LocalStore, error) {
			idx, err := index.NewFlat(2)
			if err != nil {
				return nil, err
			}
			store, err := rag.NewLocalStore(idx)
			if err != nil {
				return nil, err
			}
			chunks := []rag.Chunk{{ID: "lake-1", Text: "Regattas are held on the lake every spring.", DocumentID: "lake.txt"}}
			if err := store.Add(ctx, chunks, [][]float32{{50, 50}}); err != nil {
				return nil, err
			}
			return store, nil
		}
	})
	ctx := context.Background()

	count, err := f.p.Reindex(ctx)
	if err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if count != 1 {
		t.Errorf("reindexed chunk count = %d, want 1", count)
	}
	published, err := f.pub.Count(ctx)
	if err != nil {
		t.Fatalf("count published: %v", err)
	}
	if published != 1 {
		t.Errorf("published count = %d, want 1", published)
	}

	// The sailing question now finds its chunk in the republished store.
	res, err := f.p.Query(ctx, qSailing)
	if err != nil {
		t.Fatalf("query after reindex: %v", err)
	}
	if len(res.RetrievedChunks) != 1 {
		t.Fatalf("retrieved %d chunks, want 1", len(res.RetrievedChunks))
	}
	if want := "They race on the lake every spring."; res.GeneratedAnswer != want {
		t.Errorf("GeneratedAnswer = %q, want %q", res.GeneratedAnswer, want)
	}
}

func Test_Pipeline_Reindex_NotConfigured(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	if _, err := f.p.Reindex(context.Background()); !errors.Is(err, ErrReindexDisabled) {
		t.Errorf("Reindex error = %v, want ErrReindexDisabled", err)
	}
}

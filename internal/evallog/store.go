// Package evallog persists an append-only evaluation log of answered
// queries in SQLite. Records survive restarts, and quality metrics are
// recomputed from the full log on demand rather than maintained
// incrementally, so the log is the single source of truth.
package evallog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Record is one answered query: what was asked, what the index returned,
// the exact prompt sent to the model, and what came back.
type Record struct {
	// ID is assigned by the store on append.
	ID int64 `json:"id"`
	// Timestamp is when the record was persisted. Filled on append when
	// zero.
	Timestamp time.Time `json:"timestamp"`
	// GroupID ties related queries together; batch queries share one.
	GroupID string `json:"group_id"`
	// Question is the user's question, verbatim.
	Question string `json:"question"`
	// RetrievedChunks holds the chunk texts in ranking order.
	RetrievedChunks []string `json:"retrieved_chunks"`
	// ChunkIDs holds the retrieved chunk IDs, parallel to RetrievedChunks.
	ChunkIDs []string `json:"chunk_ids"`
	// RetrievalScores holds the similarity scores, parallel to
	// RetrievedChunks.
	RetrievalScores []float32 `json:"retrieval_scores"`
	// Prompt is the assembled prompt after truncation.
	Prompt string `json:"prompt"`
	// GeneratedAnswer is the post-processed model answer.
	GeneratedAnswer string `json:"generated_answer"`
}

// Store is an append-only evaluation log backed by a local SQLite database.
// Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the default location of the evaluation log database.
// It resolves to ~/.textfinder/evallog.db, creating the directory if needed.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("evallog: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".textfinder")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("evallog: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "evallog.db"), nil
}

// Open opens (or creates) a Store at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*Store, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("evallog: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *Store) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS eval_log (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at       INTEGER NOT NULL,  -- Unix timestamp (seconds)
    group_id         TEXT    NOT NULL,
    question         TEXT    NOT NULL,
    retrieved_chunks TEXT    NOT NULL,  -- JSON array of chunk texts
    chunk_ids        TEXT    NOT NULL,  -- JSON array of chunk IDs
    retrieval_scores TEXT    NOT NULL,  -- JSON array of scores
    prompt           TEXT    NOT NULL,
    generated_answer TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_eval_log_created
    ON eval_log (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("evallog: migrate: %w", err)
	}
	return nil
}

// Append persists a single record. The record's ID is ignored; SQLite
// assigns the next one.
func (s *Store) Append(ctx context.Context, rec Record) error {
	chunks, err := jsonColumn(rec.RetrievedChunks)
	if err != nil {
		return err
	}
	ids, err := jsonColumn(rec.ChunkIDs)
	if err != nil {
		return err
	}
	scores, err := jsonColumn(rec.RetrievalScores)
	if err != nil {
		return err
	}
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	const q = `INSERT INTO eval_log
    (created_at, group_id, question, retrieved_chunks, chunk_ids, retrieval_scores, prompt, generated_answer)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		ts.Unix(), rec.GroupID, rec.Question, chunks, ids, scores, rec.Prompt, rec.GeneratedAnswer,
	); err != nil {
		return fmt.Errorf("evallog: append: %w", err)
	}
	return nil
}

const recordColumns = `id, created_at, group_id, question, retrieved_chunks, chunk_ids, retrieval_scores, prompt, generated_answer`

// All returns the full log in insertion order.
func (s *Store) All(ctx context.Context) ([]Record, error) {
	const q = `SELECT ` + recordColumns + ` FROM eval_log ORDER BY id ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("evallog: all: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Recent returns the most recent n records, ordered oldest-first. Uses a
// subquery to select the tail then re-order for display.
func (s *Store) Recent(ctx context.Context, n int) ([]Record, error) {
	const q = `
SELECT ` + recordColumns + ` FROM (
    SELECT ` + recordColumns + `
    FROM   eval_log
    ORDER  BY id DESC
    LIMIT  ?
) ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("evallog: recent: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Ping verifies the underlying database is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("evallog: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("evallog: close: %w", err)
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var recs []Record
	for rows.Next() {
		var r Record
		var ts int64
		var chunks, ids, scores string
		if err := rows.Scan(&r.ID, &ts, &r.GroupID, &r.Question, &chunks, &ids, &scores, &r.Prompt, &r.GeneratedAnswer); err != nil {
			return nil, fmt.Errorf("evallog: scan: %w", err)
		}
		r.Timestamp = time.Unix(ts, 0)
		if err := json.Unmarshal([]byte(chunks), &r.RetrievedChunks); err != nil {
			return nil, fmt.Errorf("evallog: decode retrieved_chunks: %w", err)
		}
		if err := json.Unmarshal([]byte(ids), &r.ChunkIDs); err != nil {
			return nil, fmt.Errorf("evallog: decode chunk_ids: %w", err)
		}
		if err := json.Unmarshal([]byte(scores), &r.RetrievalScores); err != nil {
			return nil, fmt.Errorf("evallog: decode retrieval_scores: %w", err)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("evallog: rows: %w", err)
	}
	return recs, nil
}

func jsonColumn(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("evallog: encode column: %w", err)
	}
	return string(b), nil
}

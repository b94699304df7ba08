package rag

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shahzaibkhangakhar/Textfinder/internal/index"
)

// snapshot is the serialized unit: the index state and the parallel chunk
// sequence together, so a reload can never observe one without the other.
type snapshot struct {
	Index  index.State
	Chunks []Chunk
}

// Save writes the store to path as a single gob-encoded snapshot. The file
// is written to a temporary sibling and renamed into place so readers never
// see a partially written snapshot.
func (s *LocalStore) Save(path string) error {
	s.mu.RLock()
	snap := snapshot{Index: s.index.State(), Chunks: s.chunks}
	s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("rag: creating snapshot directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("rag: creating snapshot file: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("rag: encoding snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rag: closing snapshot file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rag: publishing snapshot: %w", err)
	}
	return nil
}

// LoadLocalStore reads a snapshot written by [LocalStore.Save] and rebuilds
// the store, restoring the index without re-embedding anything.
func LoadLocalStore(path string) (*LocalStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rag: opening snapshot: %w", err)
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("rag: decoding snapshot: %w", err)
	}

	idx, err := index.FromState(snap.Index)
	if err != nil {
		return nil, fmt.Errorf("rag: rebuilding index from snapshot: %w", err)
	}
	if len(snap.Chunks) != idx.Len() {
		return nil, fmt.Errorf("rag: corrupt snapshot: %d chunks for %d vectors", len(snap.Chunks), idx.Len())
	}

	return &LocalStore{index: idx, chunks: snap.Chunks}, nil
}

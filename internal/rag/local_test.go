package rag

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/shahzaibkhangakhar/Textfinder/internal/index"
)

// newFlatStore builds a LocalStore over a fresh exact index.
func newFlatStore(t *testing.T, dim int) *LocalStore {
	t.Helper()
	idx, err := index.NewFlat(dim)
	if err != nil {
		t.Fatalf("NewFlat: %v", err)
	}
	store, err := NewLocalStore(idx)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	return store
}

func testChunks(n int) []Chunk {
	chunks := make([]Chunk, n)
	for i := range chunks {
		chunks[i] = Chunk{
			ID:         string(rune('a' + i)),
			Text:       "chunk " + string(rune('a'+i)),
			DocumentID: "doc",
			Offset:     i * 10,
		}
	}
	return chunks
}

func Test_LocalStore_AddAndSearch(t *testing.T) {
	t.Parallel()

	store := newFlatStore(t, 2)
	ctx := t.Context()

	chunks := testChunks(3)
	vectors := [][]float32{
		{0, 3}, // squared distance 9 from origin
		{1, 0}, // 1
		{0, 2}, // 4
	}
	if err := store.Add(ctx, chunks, vectors); err != nil {
		t.Fatalf("Add: %v", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 3 {
		t.Fatalf("want count 3, got %d", count)
	}

	results, err := store.Search(ctx, []float32{0, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("want 3 results, got %d", len(results))
	}

	wantOrder := []string{"b", "c", "a"}
	for i, want := range wantOrder {
		if results[i].Chunk.ID != want {
			t.Errorf("rank %d: want chunk %q, got %q", i, want, results[i].Chunk.ID)
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("scores must be non-increasing, rank %d: %v > %v", i, results[i].Score, results[i-1].Score)
		}
	}
	if got, want := results[0].Score, float32(1.0/(1.0+1.0)); math.Abs(float64(got-want)) > 1e-6 {
		t.Errorf("top score: want %v, got %v", want, got)
	}
}

func Test_LocalStore_IdenticalVectorScoresOne(t *testing.T) {
	t.Parallel()

	store := newFlatStore(t, 2)
	ctx := t.Context()

	if err := store.Add(ctx, testChunks(1), [][]float32{{0.5, 0.25}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	results, err := store.Search(ctx, []float32{0.5, 0.25}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results[0].RawDistance != 0 {
		t.Errorf("want raw distance 0, got %v", results[0].RawDistance)
	}
	if results[0].Score != 1 {
		t.Errorf("score must be exactly 1 at distance 0, got %v", results[0].Score)
	}
}

func Test_LocalStore_ParallelSliceMismatch(t *testing.T) {
	t.Parallel()

	store := newFlatStore(t, 2)
	err := store.Add(t.Context(), testChunks(2), [][]float32{{1, 2}})
	if err == nil {
		t.Fatal("want error for mismatched chunk/vector counts, got nil")
	}
}

func Test_LocalStore_DimensionMismatchLeavesStoreUnchanged(t *testing.T) {
	t.Parallel()

	store := newFlatStore(t, 3)
	ctx := t.Context()

	err := store.Add(ctx, testChunks(1), [][]float32{{1, 2}})
	if !errors.Is(err, index.ErrDimensionMismatch) {
		t.Fatalf("want ErrDimensionMismatch, got %v", err)
	}
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("rejected add must not grow the store, count=%d", count)
	}
}

func Test_NewLocalStore_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewLocalStore(nil); err == nil {
		t.Error("want error for nil index, got nil")
	}

	idx, _ := index.NewFlat(2)
	if err := idx.Add([][]float32{{1, 2}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := NewLocalStore(idx); err == nil {
		t.Error("want error for non-empty index, got nil")
	}
}

func Test_LocalStore_SnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	vectors := [][]float32{
		{0, 0}, {0.5, 0}, {0, 0.5},
		{10, 10}, {10.5, 10}, {10, 10.5},
	}
	query := []float32{0.1, 0.2}

	tests := []struct {
		name  string
		build func(t *testing.T) *LocalStore
	}{
		{
			name: "flat",
			build: func(t *testing.T) *LocalStore {
				store := newFlatStore(t, 2)
				if err := store.Add(t.Context(), testChunks(6), vectors); err != nil {
					t.Fatalf("Add: %v", err)
				}
				return store
			},
		},
		{
			name: "ivf",
			build: func(t *testing.T) *LocalStore {
				idx, err := index.NewIVF(2, 2, 2)
				if err != nil {
					t.Fatalf("NewIVF: %v", err)
				}
				if err := idx.Train(vectors); err != nil {
					t.Fatalf("Train: %v", err)
				}
				store, err := NewLocalStore(idx)
				if err != nil {
					t.Fatalf("NewLocalStore: %v", err)
				}
				if err := store.Add(t.Context(), testChunks(6), vectors); err != nil {
					t.Fatalf("Add: %v", err)
				}
				return store
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := t.Context()

			original := tt.build(t)
			path := filepath.Join(t.TempDir(), "index.snapshot")
			if err := original.Save(path); err != nil {
				t.Fatalf("Save: %v", err)
			}

			restored, err := LoadLocalStore(path)
			if err != nil {
				t.Fatalf("LoadLocalStore: %v", err)
			}

			origCount, _ := original.Count(ctx)
			restCount, _ := restored.Count(ctx)
			if origCount != restCount {
				t.Fatalf("want count %d after reload, got %d", origCount, restCount)
			}

			want, err := original.Search(ctx, query, 3)
			if err != nil {
				t.Fatalf("original Search: %v", err)
			}
			got, err := restored.Search(ctx, query, 3)
			if err != nil {
				t.Fatalf("restored Search: %v", err)
			}
			if len(want) != len(got) {
				t.Fatalf("result counts differ: %d vs %d", len(want), len(got))
			}
			for i := range want {
				if want[i].Chunk.ID != got[i].Chunk.ID || want[i].Score != got[i].Score {
					t.Errorf("result %d differs after reload: %+v vs %+v", i, want[i], got[i])
				}
			}
		})
	}
}

func Test_LoadLocalStore_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := LoadLocalStore(filepath.Join(t.TempDir(), "absent.snapshot")); err == nil {
		t.Error("want error for missing snapshot, got nil")
	}
}

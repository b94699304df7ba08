package rag

import (
	"errors"
	"testing"
)

func Test_Published_EmptyUntilSwap(t *testing.T) {
	t.Parallel()

	pub := NewPublished(nil)
	ctx := t.Context()

	count, err := pub.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("want count 0 before any swap, got %d", count)
	}

	if _, err := pub.Search(ctx, []float32{0, 0}, 3); !errors.Is(err, ErrEmptyIndex) {
		t.Errorf("want ErrEmptyIndex before any swap, got %v", err)
	}

	if err := pub.Add(ctx, testChunks(1), [][]float32{{1, 2}}); err == nil {
		t.Error("want error adding to unpublished store, got nil")
	}
}

func Test_Published_SwapMakesStoreVisible(t *testing.T) {
	t.Parallel()

	ctx := t.Context()

	first := newFlatStore(t, 2)
	if err := first.Add(ctx, testChunks(1), [][]float32{{1, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	pub := NewPublished(first)
	count, err := pub.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("want count 1 after publish, got %d", count)
	}

	second := newFlatStore(t, 2)
	if err := second.Add(ctx, testChunks(3), [][]float32{{1, 0}, {0, 1}, {1, 1}}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	old := pub.Swap(second)
	if old != first {
		t.Error("Swap must return the previously published store")
	}
	count, err = pub.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 3 {
		t.Errorf("want count 3 after swap, got %d", count)
	}

	// The replaced store stays usable for readers holding it.
	count, err = old.Count(ctx)
	if err != nil {
		t.Fatalf("old Count: %v", err)
	}
	if count != 1 {
		t.Errorf("swapped-out store must be unchanged, count=%d", count)
	}
}

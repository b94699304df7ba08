package index

import (
	"errors"
	"math"
	"testing"
)

func Test_Flat_SearchReturnsAscendingSquaredDistances(t *testing.T) {
	t.Parallel()

	f, err := NewFlat(2)
	if err != nil {
		t.Fatalf("NewFlat: %v", err)
	}
	vectors := [][]float32{
		{3, 4}, // squared distance 25 from origin
		{1, 0}, // 1
		{0, 2}, // 4
	}
	if err := f.Add(vectors); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, err := f.Search([]float32{0, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	want := []Candidate{
		{Position: 1, Distance: 1},
		{Position: 2, Distance: 4},
		{Position: 0, Distance: 25},
	}
	if len(got) != len(want) {
		t.Fatalf("want %d candidates, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Position != want[i].Position {
			t.Errorf("candidate %d: want position %d, got %d", i, want[i].Position, got[i].Position)
		}
		if math.Abs(float64(got[i].Distance-want[i].Distance)) > 1e-6 {
			t.Errorf("candidate %d: want distance %v, got %v", i, want[i].Distance, got[i].Distance)
		}
	}
}

func Test_Flat_TiesBreakByInsertionPosition(t *testing.T) {
	t.Parallel()

	f, _ := NewFlat(2)
	if err := f.Add([][]float32{{1, 1}, {1, 1}, {1, 1}}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, err := f.Search([]float32{0, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for i, c := range got {
		if c.Position != i {
			t.Errorf("want position %d at rank %d, got %d", i, i, c.Position)
		}
	}
}

func Test_Flat_DimensionMismatch(t *testing.T) {
	t.Parallel()

	f, _ := NewFlat(3)

	if err := f.Add([][]float32{{1, 2}}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Add with wrong dimension: want ErrDimensionMismatch, got %v", err)
	}
	if _, err := f.Search([]float32{1, 2}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Search with wrong dimension: want ErrDimensionMismatch, got %v", err)
	}
	if f.Len() != 0 {
		t.Errorf("rejected add must not change Len, got %d", f.Len())
	}
}

func Test_Flat_KLargerThanStoredCount(t *testing.T) {
	t.Parallel()

	f, _ := NewFlat(1)
	if err := f.Add([][]float32{{1}, {2}}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, err := f.Search([]float32{0}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("want 2 candidates, got %d", len(got))
	}
}

func Test_Flat_EmptyIndexSearchIsEmpty(t *testing.T) {
	t.Parallel()

	f, _ := NewFlat(4)
	got, err := f.Search([]float32{0, 0, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("want empty result, got %d candidates", len(got))
	}
}

func Test_Flat_TrainIsNoOpAndAlwaysTrained(t *testing.T) {
	t.Parallel()

	f, _ := NewFlat(2)
	if !f.Trained() {
		t.Error("flat index must always report trained")
	}
	if err := f.Train([][]float32{{1, 2}}); err != nil {
		t.Errorf("Train must be a no-op, got %v", err)
	}
}

func Test_Flat_InvalidConstruction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		dim  int
	}{
		{name: "zero dimension", dim: 0},
		{name: "negative dimension", dim: -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewFlat(tt.dim); err == nil {
				t.Error("want construction error, got nil")
			}
		})
	}
}

func Test_Flat_InvalidK(t *testing.T) {
	t.Parallel()

	f, _ := NewFlat(1)
	if _, err := f.Search([]float32{1}, 0); err == nil {
		t.Error("want error for k=0, got nil")
	}
}

package spaced_repetition

import (
	"errors"
	"strings"
	"testing"
)

func TestComputeBatchPreservesOrder(t *testing.T) {
	sm := NewSM2(WithClock(fixedClock))
	items := []BatchItem{
		{ID: 30, Quality: 5, Repetitions: 2, Interval: 6, EaseFactor: 2.5},
		{ID: 10, Quality: 2, Repetitions: 3, Interval: 10, EaseFactor: 2.5},
		{ID: 20, Quality: 4, Repetitions: 1, Interval: 1, EaseFactor: 2.5},
	}

	res, err := sm.ComputeBatch(items)
	if err != nil {
		t.Fatalf("ComputeBatch returned error: %v", err)
	}
	if len(res.Results) != len(items) {
		t.Fatalf("got %d results, want %d", len(res.Results), len(items))
	}
	for i, item := range items {
		out := res.Results[i]
		if out.ID != item.ID {
			t.Errorf("result %d ID = %d, want %d", i, out.ID, item.ID)
		}
		want, _ := sm.Compute(item.Quality, item.Repetitions, item.Interval, item.EaseFactor)
		if out.CalculationResult != want {
			t.Errorf("result %d = %+v, want %+v", i, out.CalculationResult, want)
		}
	}
	if res.Duration < 0 {
		t.Errorf("negative duration %v", res.Duration)
	}
}

func TestComputeBatchAllOrNothing(t *testing.T) {
	sm := NewSM2()
	items := []BatchItem{
		{ID: 1, Quality: 4, Repetitions: 0, Interval: 1, EaseFactor: 2.5},
		{ID: 2, Quality: 7, Repetitions: 0, Interval: 1, EaseFactor: 2.5},
		{ID: 3, Quality: -1, Repetitions: 0, Interval: 1, EaseFactor: 2.5},
	}

	res, err := sm.ComputeBatch(items)
	if !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("error = %v, want ErrInvalidRating", err)
	}
	if res != nil {
		t.Errorf("expected no partial results, got %+v", res)
	}
	if !strings.Contains(err.Error(), "id 2") {
		t.Errorf("error should name the first bad item: %v", err)
	}
}

func TestComputeBatchEmpty(t *testing.T) {
	res, err := NewSM2().ComputeBatch(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Results) != 0 {
		t.Errorf("expected empty results, got %d", len(res.Results))
	}
}

func TestComputeBatchParallelMatchesSequential(t *testing.T) {
	items := make([]BatchItem, 1000)
	for i := range items {
		items[i] = BatchItem{
			ID:          int64(i),
			Quality:     i % 6,
			Repetitions: i % 7,
			Interval:    1 + i%90,
			EaseFactor:  1.3 + float64(i%15)/10,
		}
	}

	parallel := NewSM2(WithClock(fixedClock), WithBatchWorkers(8), WithCache(NewCache(100)))
	sequential := NewSM2(WithClock(fixedClock), WithBatchWorkers(1))

	got, err := parallel.ComputeBatch(items)
	if err != nil {
		t.Fatal(err)
	}
	want, err := sequential.ComputeBatch(items)
	if err != nil {
		t.Fatal(err)
	}
	for i := range items {
		if got.Results[i] != want.Results[i] {
			t.Fatalf("item %d: parallel %+v, sequential %+v", i, got.Results[i], want.Results[i])
		}
	}
}

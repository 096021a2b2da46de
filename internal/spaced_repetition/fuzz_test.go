package spaced_repetition

import (
	"errors"
	"testing"
)

func FuzzCompute(f *testing.F) {
	f.Add(2, 3, 10, 2.5)
	f.Add(4, 0, 1, 2.5)
	f.Add(5, 2, 6, 2.5)
	f.Add(3, 12, 365, 1.3)
	f.Add(9, 1, 1, 2.5)

	sm := NewSM2(WithClock(fixedClock), WithCache(NewCache(64)))
	plain := NewSM2(WithClock(fixedClock))

	f.Fuzz(func(t *testing.T, quality, reps, interval int, ease float64) {
		got, err := sm.Compute(quality, reps, interval, ease)
		if quality < 0 || quality > 5 {
			if !errors.Is(err, ErrInvalidRating) {
				t.Fatalf("quality %d: error = %v, want ErrInvalidRating", quality, err)
			}
			return
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !(got.EaseFactor >= MinEaseFactor) {
			t.Errorf("ease %v below floor", got.EaseFactor)
		}
		if got.Interval < MinInterval || got.Interval > MaxInterval {
			t.Errorf("interval %d out of range", got.Interval)
		}
		if quality < PassThreshold && (got.Repetitions != 0 || got.Interval != 1) {
			t.Errorf("failed recall did not reset: %+v", got)
		}
		if !got.NextReview.Equal(fixedNow.AddDate(0, 0, got.Interval)) {
			t.Errorf("NextReview %v not %d days after now", got.NextReview, got.Interval)
		}

		want, _ := plain.Compute(quality, reps, interval, ease)
		if got != want {
			t.Errorf("cached %+v != uncached %+v", got, want)
		}
	})
}

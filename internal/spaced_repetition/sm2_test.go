package spaced_repetition

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/example/engbot/pkg/models"
)

const epsilon = 1e-9

var fixedNow = time.Date(2024, time.March, 10, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func assertFloat(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > epsilon {
		t.Errorf("%s = %.6f, want %.6f", name, got, want)
	}
}

func TestComputeScenarios(t *testing.T) {
	sm := NewSM2(WithClock(fixedClock))

	tests := []struct {
		name                    string
		quality, reps, interval int
		ease                    float64
		wantInterval, wantReps  int
		wantEase                float64
		wantDifficulty          models.Difficulty
	}{
		{"failed recall resets", 2, 3, 10, 2.5, 1, 0, 2.3, models.DifficultyHard},
		{"first success", 4, 0, 1, 2.5, 1, 1, 2.5, models.DifficultyNormal},
		{"second success good", 4, 1, 1, 2.5, 6, 2, 2.5, models.DifficultyNormal},
		{"second success hard", 3, 1, 1, 2.5, 4, 2, 2.5, models.DifficultyHard},
		{"third success perfect", 5, 2, 6, 2.5, 17, 3, 2.65, models.DifficultyEasy},
		{"third success good", 4, 2, 6, 2.5, 15, 3, 2.5, models.DifficultyNormal},
		{"third success hard", 3, 2, 6, 2.5, 14, 3, 2.31, models.DifficultyHard},
		{"hard half rounds up", 3, 2, 2, 2.5, 5, 3, 2.31, models.DifficultyHard},
		{"blackout floors ease", 0, 5, 100, 1.35, 1, 0, 1.3, models.DifficultyHard},
		{"long interval capped", 4, 8, 300, 2.5, 365, 9, 2.5, models.DifficultyNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sm.Compute(tt.quality, tt.reps, tt.interval, tt.ease)
			if err != nil {
				t.Fatalf("Compute returned error: %v", err)
			}
			if got.Interval != tt.wantInterval {
				t.Errorf("Interval = %d, want %d", got.Interval, tt.wantInterval)
			}
			if got.Repetitions != tt.wantReps {
				t.Errorf("Repetitions = %d, want %d", got.Repetitions, tt.wantReps)
			}
			assertFloat(t, "EaseFactor", got.EaseFactor, tt.wantEase)
			if got.Difficulty != tt.wantDifficulty {
				t.Errorf("Difficulty = %q, want %q", got.Difficulty, tt.wantDifficulty)
			}
			want := fixedNow.AddDate(0, 0, tt.wantInterval)
			if !got.NextReview.Equal(want) {
				t.Errorf("NextReview = %v, want %v", got.NextReview, want)
			}
		})
	}
}

func TestComputeConfidence(t *testing.T) {
	sm := NewSM2(WithClock(fixedClock))

	failed, _ := sm.Compute(2, 4, 10, 2.5)
	assertFloat(t, "failed confidence", failed.Confidence, 0.4)

	first, _ := sm.Compute(3, 0, 1, 2.5)
	assertFloat(t, "first success confidence", first.Confidence, 0.7)

	capped, _ := sm.Compute(5, 9, 30, 2.5)
	assertFloat(t, "capped confidence", capped.Confidence, 1)
}

func TestComputeRejectsInvalidRating(t *testing.T) {
	sm := NewSM2()
	for _, q := range []int{-1, 6, 100} {
		_, err := sm.Compute(q, 0, 1, 2.5)
		if !errors.Is(err, ErrInvalidRating) {
			t.Errorf("Compute(q=%d) error = %v, want ErrInvalidRating", q, err)
		}
	}
}

func TestComputeResetOnFailure(t *testing.T) {
	sm := NewSM2()
	for q := 0; q < PassThreshold; q++ {
		for _, reps := range []int{0, 1, 2, 7, 40} {
			for _, interval := range []int{1, 6, 90, 365} {
				got, err := sm.Compute(q, reps, interval, 2.1)
				if err != nil {
					t.Fatal(err)
				}
				if got.Repetitions != 0 || got.Interval != 1 {
					t.Errorf("Compute(%d,%d,%d) = reps %d interval %d, want 0 and 1",
						q, reps, interval, got.Repetitions, got.Interval)
				}
			}
		}
	}
}

func TestComputeInvariants(t *testing.T) {
	sm := NewSM2()
	eases := []float64{-5, 0, 1.0, 1.3, 1.31, 2.5, 3.7, 10, math.Inf(1), math.Inf(-1)}
	intervals := []int{-10, 0, 1, 6, 100, 365, 10000}

	for q := 0; q <= 5; q++ {
		for reps := 0; reps < 5; reps++ {
			for _, interval := range intervals {
				for _, ease := range eases {
					got, err := sm.Compute(q, reps, interval, ease)
					if err != nil {
						t.Fatal(err)
					}
					if got.EaseFactor < MinEaseFactor {
						t.Errorf("Compute(%d,%d,%d,%v) ease %v below %v", q, reps, interval, ease, got.EaseFactor, MinEaseFactor)
					}
					if got.Interval < MinInterval || got.Interval > MaxInterval {
						t.Errorf("Compute(%d,%d,%d,%v) interval %d out of range", q, reps, interval, ease, got.Interval)
					}
					if got.Confidence < 0 || got.Confidence > 1 {
						t.Errorf("Compute(%d,%d,%d,%v) confidence %v out of range", q, reps, interval, ease, got.Confidence)
					}
				}
			}
		}
	}
}

func TestEaseMonotonicInQuality(t *testing.T) {
	sm := NewSM2()
	for reps := 0; reps < 6; reps++ {
		for _, interval := range []int{1, 6, 30} {
			prev := math.Inf(-1)
			for q := 3; q <= 5; q++ {
				got, err := sm.Compute(q, reps, interval, 2.2)
				if err != nil {
					t.Fatal(err)
				}
				if got.EaseFactor < prev {
					t.Errorf("reps=%d interval=%d: ease dropped from %v to %v at q=%d", reps, interval, prev, got.EaseFactor, q)
				}
				prev = got.EaseFactor
			}
		}
	}
}

func TestCacheDoesNotChangeResults(t *testing.T) {
	cache := NewCache(DefaultCacheCapacity)
	cached := NewSM2(WithClock(fixedClock), WithCache(cache))
	plain := NewSM2(WithClock(fixedClock))

	for q := 0; q <= 5; q++ {
		for reps := 0; reps < 4; reps++ {
			cold, err := cached.Compute(q, reps, 6, 2.5)
			if err != nil {
				t.Fatal(err)
			}
			warm, _ := cached.Compute(q, reps, 6, 2.5)
			uncached, _ := plain.Compute(q, reps, 6, 2.5)

			if cold != warm || cold != uncached {
				t.Errorf("q=%d reps=%d: cold %+v warm %+v uncached %+v", q, reps, cold, warm, uncached)
			}
		}
	}

	cache.Clear()
	after, _ := cached.Compute(5, 2, 6, 2.5)
	before, _ := plain.Compute(5, 2, 6, 2.5)
	if after != before {
		t.Errorf("after Clear got %+v, want %+v", after, before)
	}
	if stats := cache.Stats(); stats.Hits == 0 {
		t.Errorf("expected cache hits, got %+v", stats)
	}
}

func TestCacheHitRecomputesNextReview(t *testing.T) {
	now := fixedNow
	sm := NewSM2(WithCache(NewCache(10)), WithClock(func() time.Time { return now }))

	first, _ := sm.Compute(4, 1, 1, 2.5)
	now = now.Add(72 * time.Hour)
	second, _ := sm.Compute(4, 1, 1, 2.5)

	if got := second.NextReview.Sub(first.NextReview); got != 72*time.Hour {
		t.Errorf("NextReview moved by %v, want 72h", got)
	}
	if sm.Cache().Stats().Hits != 1 {
		t.Errorf("second call should hit the cache, stats %+v", sm.Cache().Stats())
	}
}

func TestComputeState(t *testing.T) {
	sm := NewSM2(WithClock(fixedClock))
	state := models.NewReviewState(1, 42, fixedNow)

	got, err := sm.ComputeState(state, 5)
	if err != nil {
		t.Fatal(err)
	}
	got.Apply(&state, 5)

	if state.Repetitions != 1 || state.Interval != 1 || state.LastQuality != 5 {
		t.Errorf("unexpected state after first review: %+v", state)
	}
	if !state.NextReview.Equal(fixedNow.AddDate(0, 0, 1)) {
		t.Errorf("NextReview = %v", state.NextReview)
	}
}

func TestIsMastered(t *testing.T) {
	state := models.ReviewState{Repetitions: 5, LastQuality: 4, Interval: 30}
	if !IsMastered(state) {
		t.Error("expected card to be mastered")
	}
	state.LastQuality = 3
	if IsMastered(state) {
		t.Error("quality 3 should not count as mastered")
	}
}

func TestQualityFromAccuracy(t *testing.T) {
	tests := []struct {
		accuracy, seconds float64
		want              int
	}{
		{0, 3, 0},
		{1, 3, 5},
		{1, 45, 4},
		{0.8, 25, 3},
		{0.6, 40, 3},
		{0.3, 2, 2},
		{1.7, 1, 5},
	}
	for _, tt := range tests {
		if got := QualityFromAccuracy(tt.accuracy, tt.seconds); got != tt.want {
			t.Errorf("QualityFromAccuracy(%v, %v) = %d, want %d", tt.accuracy, tt.seconds, got, tt.want)
		}
	}
}

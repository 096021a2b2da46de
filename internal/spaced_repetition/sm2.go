package spaced_repetition

import (
	"fmt"
	"math"
	"time"

	"github.com/example/engbot/pkg/models"
)

const (
	// PassThreshold is the lowest quality counted as a successful recall.
	PassThreshold = 3
	// MinEaseFactor is the floor of the ease factor.
	MinEaseFactor = 1.3
	// MinInterval and MaxInterval bound the review interval in days.
	MinInterval = 1
	MaxInterval = 365
)

// Clock returns the current time. Tests inject a fixed clock.
type Clock func() time.Time

// SM2 implements the SuperMemo-2 algorithm for spaced repetition.
// It is safe for concurrent use; the only shared state is the optional cache.
type SM2 struct {
	cache   *Cache
	now     Clock
	workers int
}

// Option configures an SM2.
type Option func(*SM2)

// WithCache memoizes the time-independent part of each calculation.
func WithCache(c *Cache) Option {
	return func(sm *SM2) { sm.cache = c }
}

// WithClock replaces the wall clock used for NextReview.
func WithClock(c Clock) Option {
	return func(sm *SM2) {
		if c != nil {
			sm.now = c
		}
	}
}

// WithBatchWorkers sets how many goroutines ComputeBatch may use.
func WithBatchWorkers(n int) Option {
	return func(sm *SM2) {
		if n > 0 {
			sm.workers = n
		}
	}
}

// NewSM2 создает новый экземпляр SM2 с настройками по умолчанию
func NewSM2(opts ...Option) *SM2 {
	sm := &SM2{
		now:     time.Now,
		workers: DefaultBatchWorkers,
	}
	for _, opt := range opts {
		opt(sm)
	}
	return sm
}

// Cache returns the calculation cache, or nil when caching is disabled.
func (sm *SM2) Cache() *Cache {
	return sm.cache
}

// Now returns the current time according to the configured clock.
func (sm *SM2) Now() time.Time {
	return sm.now()
}

// ValidateQuality reports ErrInvalidRating for ratings outside [0,5].
func ValidateQuality(quality int) error {
	if quality < int(QualityBlackout) || quality > int(QualityPerfect) {
		return fmt.Errorf("%w: %d is outside [0,5]", ErrInvalidRating, quality)
	}
	return nil
}

// Compute applies one quality rating to the given scheduling state and returns the next state.
// NextReview is always relative to the current clock, even on a cache hit.
func (sm *SM2) Compute(quality, repetitions, interval int, easeFactor float64) (models.CalculationResult, error) {
	return sm.computeAt(sm.now(), quality, repetitions, interval, easeFactor)
}

// ComputeState is Compute applied to a stored ReviewState.
func (sm *SM2) ComputeState(state models.ReviewState, quality int) (models.CalculationResult, error) {
	return sm.Compute(quality, state.Repetitions, state.Interval, state.EaseFactor)
}

func (sm *SM2) computeAt(now time.Time, quality, repetitions, interval int, easeFactor float64) (models.CalculationResult, error) {
	if err := ValidateQuality(quality); err != nil {
		return models.CalculationResult{}, err
	}
	if math.IsNaN(easeFactor) {
		easeFactor = MinEaseFactor
	}

	key := CacheKey{Quality: quality, Repetitions: repetitions, Interval: interval, EaseFactor: easeFactor}
	result, ok := sm.cache.Lookup(key)
	if !ok {
		result = calculate(quality, repetitions, interval, easeFactor)
		sm.cache.Store(key, result)
	}

	result.NextReview = now.AddDate(0, 0, result.Interval)
	return result, nil
}

// calculate is the deterministic part of the SM-2 transform. NextReview is left zero.
func calculate(quality, repetitions, interval int, easeFactor float64) models.CalculationResult {
	if repetitions < 0 {
		repetitions = 0
	}

	q := float64(quality)
	ef := easeFactor
	var (
		result models.CalculationResult
		days   float64
	)

	if quality < PassThreshold {
		// Failed recall resets the learning sequence
		days = 1
		result.Repetitions = 0
		ef -= 0.15 + (3-q)*0.05
		result.Difficulty = models.DifficultyHard
		result.Confidence = q / 5
	} else {
		result.Repetitions = repetitions + 1

		switch repetitions {
		case 0:
			days = 1
		case 1:
			days = 4
			if quality >= int(QualityCorrectHesitation) {
				days = 6
			}
		default:
			days = math.Round(float64(interval) * ef)
			ef += qualityBonus(quality) - (5-q)*(0.08+(5-q)*0.02)
		}

		switch QualityResponse(quality) {
		case QualityPerfect:
			days = math.Round(days * 1.1)
			result.Difficulty = models.DifficultyEasy
		case QualityCorrectDifficult:
			days = math.Round(days * 0.9)
			result.Difficulty = models.DifficultyHard
		default:
			result.Difficulty = models.DifficultyNormal
		}

		result.Confidence = math.Min(1, q/5+float64(result.Repetitions)*0.1)
	}

	result.EaseFactor = math.Max(MinEaseFactor, roundTo(ef, 2))
	result.Interval = clampInterval(days)
	return result
}

func qualityBonus(quality int) float64 {
	switch QualityResponse(quality) {
	case QualityPerfect:
		return 0.15
	case QualityCorrectHesitation:
		return 0.10
	default:
		return 0.05
	}
}

// clampInterval bounds days to [MinInterval, MaxInterval] before converting,
// so overflowing products never reach the int conversion.
func clampInterval(days float64) int {
	if math.IsNaN(days) || days < MinInterval {
		return MinInterval
	}
	if days > MaxInterval {
		return MaxInterval
	}
	return int(days)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

package spaced_repetition

import (
	"fmt"
	"math"
	"sort"

	"github.com/example/engbot/pkg/models"
)

// DifficultyDistribution counts reviews per difficulty bucket.
type DifficultyDistribution struct {
	Easy   int `json:"easy"`   // quality 4-5
	Normal int `json:"normal"` // quality 3
	Hard   int `json:"hard"`   // quality 0-2
}

// Summary aggregates a user's review history.
type Summary struct {
	TotalReviews           int                    `json:"total_reviews"`
	AverageQuality         float64                `json:"average_quality"`
	RetentionRate          float64                `json:"retention_rate"` // percent, 1 decimal
	AverageInterval        float64                `json:"average_interval"`
	DifficultyDistribution DifficultyDistribution `json:"difficulty_distribution"`
	StreakCount            int                    `json:"streak_count"`
	AverageReviewDuration  float64                `json:"average_review_duration"`
	Skipped                int                    `json:"skipped"` // malformed entries left out
}

// Summarize computes retention analytics over a review log.
//
// Malformed entries are skipped and counted in Skipped; use ValidateHistory first
// to reject such logs instead. The streak is measured from the most recent entry,
// ordering by Timestamp and keeping input order for equal timestamps.
func Summarize(log []models.ReviewLogEntry) Summary {
	entries := make([]models.ReviewLogEntry, 0, len(log))
	var summary Summary
	for _, e := range log {
		if validateEntry(e) != nil {
			summary.Skipped++
			continue
		}
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return summary
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})

	var (
		qualitySum, intervalSum, durationSum float64
		passed, timed                        int
	)
	for _, e := range entries {
		qualitySum += float64(e.Quality)
		intervalSum += float64(e.Interval)

		switch {
		case e.Quality >= int(QualityCorrectHesitation):
			summary.DifficultyDistribution.Easy++
		case e.Quality >= PassThreshold:
			summary.DifficultyDistribution.Normal++
		default:
			summary.DifficultyDistribution.Hard++
		}
		if e.Quality >= PassThreshold {
			passed++
		}
		if e.ReviewDurationSeconds != nil {
			durationSum += *e.ReviewDurationSeconds
			timed++
		}
	}

	for i := len(entries) - 1; i >= 0 && entries[i].Quality >= PassThreshold; i-- {
		summary.StreakCount++
	}

	n := float64(len(entries))
	summary.TotalReviews = len(entries)
	summary.AverageQuality = roundTo(qualitySum/n, 2)
	summary.RetentionRate = roundTo(100*float64(passed)/n, 1)
	summary.AverageInterval = roundTo(intervalSum/n, 1)
	if timed > 0 {
		summary.AverageReviewDuration = roundTo(durationSum/float64(timed), 2)
	}
	return summary
}

// ValidateHistory returns ErrInvalidHistory for the first malformed entry.
func ValidateHistory(log []models.ReviewLogEntry) error {
	for i, e := range log {
		if err := validateEntry(e); err != nil {
			return fmt.Errorf("%w: entry %d: %v", ErrInvalidHistory, i, err)
		}
	}
	return nil
}

func validateEntry(e models.ReviewLogEntry) error {
	if err := ValidateQuality(e.Quality); err != nil {
		return err
	}
	if e.Interval < 0 {
		return fmt.Errorf("negative interval %d", e.Interval)
	}
	if d := e.ReviewDurationSeconds; d != nil && (*d < 0 || math.IsNaN(*d) || math.IsInf(*d, 0)) {
		return fmt.Errorf("invalid review duration %v", *d)
	}
	return nil
}

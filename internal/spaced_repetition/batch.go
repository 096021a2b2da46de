package spaced_repetition

import (
	"fmt"
	"time"

	"github.com/example/engbot/pkg/models"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBatchWorkers is the goroutine limit for ComputeBatch.
	DefaultBatchWorkers = 4
	// parallelBatchSize is the smallest batch worth splitting across workers.
	parallelBatchSize = 256
)

// BatchItem is one rating to apply in ComputeBatch.
type BatchItem struct {
	ID          int64   `json:"id"`
	Quality     int     `json:"quality"`
	Repetitions int     `json:"repetitions"`
	Interval    int     `json:"interval"`
	EaseFactor  float64 `json:"ease_factor"`
}

// BatchOutput pairs an item ID with its calculation result.
type BatchOutput struct {
	ID int64 `json:"id"`
	models.CalculationResult
}

// BatchResult holds the outputs of ComputeBatch in input order.
type BatchResult struct {
	Results  []BatchOutput `json:"results"`
	Duration time.Duration `json:"duration"`
}

// ComputeBatch applies Compute to every item independently.
//
// The batch is all-or-nothing: if any item carries an invalid rating, no results are
// returned and the error wraps ErrInvalidRating and names the first offending item.
// Every item in a batch shares the same NextReview base time.
func (sm *SM2) ComputeBatch(items []BatchItem) (*BatchResult, error) {
	start := time.Now()

	for i, item := range items {
		if err := ValidateQuality(item.Quality); err != nil {
			return nil, fmt.Errorf("batch item %d (id %d): %w", i, item.ID, err)
		}
	}

	now := sm.now()
	results := make([]BatchOutput, len(items))

	if len(items) < parallelBatchSize || sm.workers <= 1 {
		if err := sm.computeRange(now, items, results, 0, len(items)); err != nil {
			return nil, err
		}
	} else {
		chunk := (len(items) + sm.workers - 1) / sm.workers
		var g errgroup.Group
		g.SetLimit(sm.workers)
		for lo := 0; lo < len(items); lo += chunk {
			lo, hi := lo, min(lo+chunk, len(items))
			g.Go(func() error {
				return sm.computeRange(now, items, results, lo, hi)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	return &BatchResult{
		Results:  results,
		Duration: time.Since(start),
	}, nil
}

func (sm *SM2) computeRange(now time.Time, items []BatchItem, out []BatchOutput, lo, hi int) error {
	for i := lo; i < hi; i++ {
		item := items[i]
		result, err := sm.computeAt(now, item.Quality, item.Repetitions, item.Interval, item.EaseFactor)
		if err != nil {
			return fmt.Errorf("batch item %d (id %d): %w", i, item.ID, err)
		}
		out[i] = BatchOutput{ID: item.ID, CalculationResult: result}
	}
	return nil
}

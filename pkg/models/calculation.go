package models

import "time"

// Difficulty classifies how hard the last answer was.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

// CalculationResult is the outcome of applying one quality rating to a review state.
type CalculationResult struct {
	Interval    int        `json:"interval"`
	Repetitions int        `json:"repetitions"`
	EaseFactor  float64    `json:"ease_factor"`
	NextReview  time.Time  `json:"next_review"`
	Confidence  float64    `json:"confidence"` // 0.0 - 1.0
	Difficulty  Difficulty `json:"difficulty"`
}

// Apply copies the computed scheduling fields onto a review state.
func (r CalculationResult) Apply(state *ReviewState, quality int) {
	state.Interval = r.Interval
	state.Repetitions = r.Repetitions
	state.EaseFactor = r.EaseFactor
	state.NextReview = r.NextReview
	state.LastQuality = quality
}

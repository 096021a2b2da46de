package models

import "time"

// Default scheduling values for an item entering the system.
const (
	DefaultInterval   = 1
	DefaultEaseFactor = 2.5
)

// ReviewState is the SM-2 scheduling state of one card for one user.
type ReviewState struct {
	UserID         int64     `json:"user_id" db:"user_id"`
	CardID         int64     `json:"card_id" db:"card_id"`
	Interval       int       `json:"interval" db:"interval_days"`  // Days until next review, 1..365
	EaseFactor     float64   `json:"ease_factor" db:"ease_factor"` // Never below 1.3
	Repetitions    int       `json:"repetitions" db:"repetitions"` // Consecutive successful reviews
	NextReview     time.Time `json:"next_review" db:"next_review"`
	LastQuality    int       `json:"last_quality" db:"last_quality"` // 0-5 rating of last recall
	ManualPriority *int      `json:"manual_priority,omitempty" db:"manual_priority"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// NewReviewState returns the state of a card that has never been reviewed.
func NewReviewState(userID, cardID int64, now time.Time) ReviewState {
	return ReviewState{
		UserID:      userID,
		CardID:      cardID,
		Interval:    DefaultInterval,
		EaseFactor:  DefaultEaseFactor,
		Repetitions: 0,
		NextReview:  now,
		UpdatedAt:   now,
	}
}

// Schedulable projects the state into the form consumed by the priority queue.
func (s ReviewState) Schedulable() SchedulableItem {
	return SchedulableItem{
		ID:             s.CardID,
		NextReview:     s.NextReview,
		EaseFactor:     s.EaseFactor,
		Repetitions:    s.Repetitions,
		ManualPriority: s.ManualPriority,
	}
}

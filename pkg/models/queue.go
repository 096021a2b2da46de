package models

import "time"

// SchedulableItem is a read-only snapshot of a card's review state used for queue building.
type SchedulableItem struct {
	ID             int64     `json:"id"`
	NextReview     time.Time `json:"next_review"`
	EaseFactor     float64   `json:"ease_factor"`
	Repetitions    int       `json:"repetitions"`
	ManualPriority *int      `json:"manual_priority,omitempty"` // nil means 0
}

// QueueEntry is one slot of a ranked review queue.
type QueueEntry struct {
	ID            int64     `json:"id"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Priority      int       `json:"priority"`
}

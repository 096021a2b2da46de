package models

import "time"

// ReviewLogEntry is an append-only record of a single review.
type ReviewLogEntry struct {
	ID                    int64     `json:"id" db:"id"`
	UserID                int64     `json:"user_id" db:"user_id"`
	CardID                int64     `json:"card_id" db:"card_id"`
	Quality               int       `json:"quality" db:"quality"`
	Interval              int       `json:"interval" db:"interval_days"`
	ReviewDurationSeconds *float64  `json:"review_duration_seconds,omitempty" db:"review_duration_seconds"`
	SessionID             string    `json:"session_id,omitempty" db:"session_id"`
	Timestamp             time.Time `json:"timestamp" db:"reviewed_at"`
}

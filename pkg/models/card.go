package models

import "time"

// Card represents a word or collocation to be learned
type Card struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Deck      string    `json:"deck" db:"deck"`
	Front     string    `json:"front" db:"front"`     // The word or collocation
	Back      string    `json:"back" db:"back"`       // Translation
	Context   string    `json:"context" db:"context"` // Optional example sentence
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

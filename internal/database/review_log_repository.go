package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/engbot/pkg/models"
)

// ReviewLogRepository appends and reads the review history
type ReviewLogRepository struct {
	db sqlx.ExtContext
}

// NewReviewLogRepository creates a new repository instance
func NewReviewLogRepository(db sqlx.ExtContext) *ReviewLogRepository {
	return &ReviewLogRepository{db: db}
}

// Append records one review and sets entry.ID
func (r *ReviewLogRepository) Append(ctx context.Context, entry *models.ReviewLogEntry) error {
	query := r.db.Rebind(`
		INSERT INTO review_log (user_id, card_id, quality, interval_days, review_duration_seconds, session_id, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := sqlx.GetContext(ctx, r.db, &entry.ID, query,
		entry.UserID,
		entry.CardID,
		entry.Quality,
		entry.Interval,
		entry.ReviewDurationSeconds,
		entry.SessionID,
		entry.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append review log: %w", err)
	}
	return nil
}

// ListByUser returns a user's history ordered by review time
func (r *ReviewLogRepository) ListByUser(ctx context.Context, userID int64) ([]models.ReviewLogEntry, error) {
	var entries []models.ReviewLogEntry
	query := r.db.Rebind(`
		SELECT id, user_id, card_id, quality, interval_days, review_duration_seconds, session_id, reviewed_at
		FROM review_log
		WHERE user_id = ?
		ORDER BY reviewed_at, id
	`)
	if err := sqlx.SelectContext(ctx, r.db, &entries, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list review log: %w", err)
	}
	return entries, nil
}

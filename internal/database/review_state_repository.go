package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/engbot/pkg/models"
)

// ReviewStateRepository stores the SM-2 scheduling state of each user's cards
type ReviewStateRepository struct {
	db sqlx.ExtContext
}

// NewReviewStateRepository creates a new repository instance
func NewReviewStateRepository(db sqlx.ExtContext) *ReviewStateRepository {
	return &ReviewStateRepository{db: db}
}

const reviewStateColumns = `user_id, card_id, interval_days, ease_factor, repetitions,
	next_review, last_quality, manual_priority, updated_at`

// Get returns the state of one card; ErrNotFound if the card was never scheduled.
func (r *ReviewStateRepository) Get(ctx context.Context, userID, cardID int64) (*models.ReviewState, error) {
	var state models.ReviewState
	query := r.db.Rebind(`SELECT ` + reviewStateColumns + ` FROM review_states WHERE user_id = ? AND card_id = ?`)
	if err := sqlx.GetContext(ctx, r.db, &state, query, userID, cardID); err != nil {
		return nil, notFound(err, fmt.Sprintf("review state for card %d", cardID))
	}
	return &state, nil
}

// Save inserts or replaces the state of a card
func (r *ReviewStateRepository) Save(ctx context.Context, state *models.ReviewState) error {
	query := r.db.Rebind(`
		INSERT INTO review_states (` + reviewStateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, card_id) DO UPDATE SET
			interval_days = excluded.interval_days,
			ease_factor = excluded.ease_factor,
			repetitions = excluded.repetitions,
			next_review = excluded.next_review,
			last_quality = excluded.last_quality,
			manual_priority = excluded.manual_priority,
			updated_at = excluded.updated_at
	`)
	_, err := r.db.ExecContext(ctx, query,
		state.UserID,
		state.CardID,
		state.Interval,
		state.EaseFactor,
		state.Repetitions,
		state.NextReview.UTC(),
		state.LastQuality,
		state.ManualPriority,
		state.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save review state for card %d: %w", state.CardID, err)
	}
	return nil
}

// ListByUser returns every scheduled card of a user
func (r *ReviewStateRepository) ListByUser(ctx context.Context, userID int64) ([]models.ReviewState, error) {
	var states []models.ReviewState
	query := r.db.Rebind(`SELECT ` + reviewStateColumns + ` FROM review_states WHERE user_id = ? ORDER BY card_id`)
	if err := sqlx.SelectContext(ctx, r.db, &states, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list review states: %w", err)
	}
	return states, nil
}

// ListSchedulable returns the queue-building projection of every card of a user
func (r *ReviewStateRepository) ListSchedulable(ctx context.Context, userID int64) ([]models.SchedulableItem, error) {
	states, err := r.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]models.SchedulableItem, len(states))
	for i, s := range states {
		items[i] = s.Schedulable()
	}
	return items, nil
}

// SetManualPriority pins (or with nil, unpins) the manual priority of a card
func (r *ReviewStateRepository) SetManualPriority(ctx context.Context, userID, cardID int64, priority *int) error {
	query := r.db.Rebind(`
		UPDATE review_states SET manual_priority = ?, updated_at = ?
		WHERE user_id = ? AND card_id = ?
	`)
	result, err := r.db.ExecContext(ctx, query, priority, time.Now().UTC(), userID, cardID)
	if err != nil {
		return fmt.Errorf("failed to set manual priority: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("review state for card %d: %w", cardID, ErrNotFound)
	}
	return nil
}

// CountDue returns how many cards of a user are due at now
func (r *ReviewStateRepository) CountDue(ctx context.Context, userID int64, now time.Time) (int, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM review_states WHERE user_id = ? AND next_review <= ?`)
	if err := sqlx.GetContext(ctx, r.db, &count, query, userID, now.UTC()); err != nil {
		return 0, fmt.Errorf("failed to count due cards: %w", err)
	}
	return count, nil
}

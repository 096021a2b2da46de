package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/engbot/pkg/models"
)

// CardRepository handles database operations for cards
type CardRepository struct {
	db sqlx.ExtContext
}

// NewCardRepository creates a new repository instance
func NewCardRepository(db sqlx.ExtContext) *CardRepository {
	return &CardRepository{db: db}
}

const cardColumns = `id, user_id, deck, front, back, context, created_at`

// Create inserts a new card, or updates the translation of an existing card with the same front.
func (r *CardRepository) Create(ctx context.Context, card *models.Card) error {
	query := r.db.Rebind(`
		INSERT INTO cards (user_id, deck, front, back, context, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, deck, front) DO UPDATE SET
			back = excluded.back,
			context = excluded.context
		RETURNING id
	`)
	err := sqlx.GetContext(ctx, r.db, &card.ID, query,
		card.UserID,
		card.Deck,
		card.Front,
		card.Back,
		card.Context,
		card.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create card %q: %w", card.Front, err)
	}
	return nil
}

// GetByID returns a card by ID
func (r *CardRepository) GetByID(ctx context.Context, id int64) (*models.Card, error) {
	var card models.Card
	query := r.db.Rebind(`SELECT ` + cardColumns + ` FROM cards WHERE id = ?`)
	if err := sqlx.GetContext(ctx, r.db, &card, query, id); err != nil {
		return nil, notFound(err, fmt.Sprintf("card %d", id))
	}
	return &card, nil
}

// ListByUser returns all cards of a user ordered by deck and front
func (r *CardRepository) ListByUser(ctx context.Context, userID int64) ([]models.Card, error) {
	var cards []models.Card
	query := r.db.Rebind(`SELECT ` + cardColumns + ` FROM cards WHERE user_id = ? ORDER BY deck, front`)
	if err := sqlx.SelectContext(ctx, r.db, &cards, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	return cards, nil
}

package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/engbot/internal/database"
	"github.com/example/engbot/internal/logger"
	sr "github.com/example/engbot/internal/spaced_repetition"
	"github.com/example/engbot/pkg/models"
)

// ErrUnknownCard is returned when a rating refers to a card the user does not own.
var ErrUnknownCard = errors.New("review: unknown card")

// Rating is one answer given by a user.
type Rating struct {
	CardID   int64
	Quality  int
	Duration time.Duration // zero when the client did not measure it
}

// Service applies ratings to stored review states and reads queues and statistics back.
type Service struct {
	store *database.Store
	sm2   *sr.SM2
	log   *logger.Logger
}

// NewService создает сервис повторений поверх хранилища и калькулятора SM-2
func NewService(store *database.Store, sm2 *sr.SM2, log *logger.Logger) *Service {
	if sm2 == nil {
		sm2 = sr.NewSM2()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{store: store, sm2: sm2, log: log}
}

// RegisterUser stores or refreshes a user profile.
func (s *Service) RegisterUser(ctx context.Context, user *models.User) error {
	return s.store.Users.Upsert(ctx, user)
}

// SetNotificationHour enables reminders for a user at the given UTC hour.
func (s *Service) SetNotificationHour(ctx context.Context, userID int64, hour int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("notification hour %d out of range 0-23", hour)
	}
	user, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	user.NotificationEnabled = true
	user.NotificationHour = hour
	return s.store.Users.UpdateSettings(ctx, user)
}

// AddCard creates a card and schedules it for immediate review.
func (s *Service) AddCard(ctx context.Context, card *models.Card) error {
	cards := []models.Card{*card}
	if _, err := s.ImportCards(ctx, cards); err != nil {
		return err
	}
	*card = cards[0]
	return nil
}

// ImportCards creates or updates cards in one transaction and fills in their IDs.
// Cards seen for the first time get a fresh review state due now; existing
// states are kept.
func (s *Service) ImportCards(ctx context.Context, cards []models.Card) (int, error) {
	now := s.sm2.Now()
	err := s.store.InTx(ctx, func(tx *database.Store) error {
		for i := range cards {
			card := &cards[i]
			if card.CreatedAt.IsZero() {
				card.CreatedAt = now
			}
			if err := tx.Cards.Create(ctx, card); err != nil {
				return err
			}

			_, err := tx.States.Get(ctx, card.UserID, card.ID)
			switch {
			case err == nil:
				continue
			case !errors.Is(err, database.ErrNotFound):
				return err
			}
			state := models.NewReviewState(card.UserID, card.ID, now)
			if err := tx.States.Save(ctx, &state); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to import cards: %w", err)
	}
	s.log.Info("cards imported", "count", len(cards))
	return len(cards), nil
}

// Submit applies one rating and records it in the review log.
func (s *Service) Submit(ctx context.Context, userID int64, r Rating) (models.CalculationResult, error) {
	if err := sr.ValidateQuality(r.Quality); err != nil {
		return models.CalculationResult{}, err
	}

	var result models.CalculationResult
	err := s.store.InTx(ctx, func(tx *database.Store) error {
		state, err := s.loadState(ctx, tx, userID, r.CardID)
		if err != nil {
			return err
		}
		result, err = s.sm2.ComputeState(*state, r.Quality)
		if err != nil {
			return err
		}
		return s.persist(ctx, tx, state, r, result, uuid.NewString())
	})
	if err != nil {
		return models.CalculationResult{}, err
	}

	s.log.Debug("review submitted",
		"user_id", userID,
		"card_id", r.CardID,
		"quality", r.Quality,
		"interval", result.Interval,
		"ease_factor", result.EaseFactor,
	)
	return result, nil
}

// SubmitBatch applies several ratings atomically. One invalid rating or unknown
// card rejects the whole batch and nothing is written.
func (s *Service) SubmitBatch(ctx context.Context, userID int64, ratings []Rating) (*sr.BatchResult, error) {
	sessionID := uuid.NewString()
	var result *sr.BatchResult

	err := s.store.InTx(ctx, func(tx *database.Store) error {
		states := make([]*models.ReviewState, len(ratings))
		items := make([]sr.BatchItem, len(ratings))
		for i, r := range ratings {
			state, err := s.loadState(ctx, tx, userID, r.CardID)
			if err != nil {
				return err
			}
			states[i] = state
			items[i] = sr.BatchItem{
				ID:          r.CardID,
				Quality:     r.Quality,
				Repetitions: state.Repetitions,
				Interval:    state.Interval,
				EaseFactor:  state.EaseFactor,
			}
		}

		var err error
		result, err = s.sm2.ComputeBatch(items)
		if err != nil {
			return err
		}

		for i, out := range result.Results {
			if err := s.persist(ctx, tx, states[i], ratings[i], out.CalculationResult, sessionID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	stats := s.sm2.Cache().Stats()
	s.log.Info("batch submitted",
		"user_id", userID,
		"session_id", sessionID,
		"items", len(ratings),
		"duration", result.Duration,
		"cache_hits", stats.Hits,
		"cache_misses", stats.Misses,
	)
	return result, nil
}

// Queue returns up to capacity due cards of a user in review order.
func (s *Service) Queue(ctx context.Context, userID int64, capacity int) ([]models.QueueEntry, error) {
	items, err := s.store.States.ListSchedulable(ctx, userID)
	if err != nil {
		return nil, err
	}
	return sr.BuildQueue(items, capacity, s.sm2.Now()), nil
}

// NextCard returns the card at the head of the queue, or nil when nothing is due.
func (s *Service) NextCard(ctx context.Context, userID int64) (*models.Card, error) {
	queue, err := s.Queue(ctx, userID, 1)
	if err != nil || len(queue) == 0 {
		return nil, err
	}
	return s.store.Cards.GetByID(ctx, queue[0].ID)
}

// DueCount returns how many cards of a user are due now.
func (s *Service) DueCount(ctx context.Context, userID int64) (int, error) {
	return s.store.States.CountDue(ctx, userID, s.sm2.Now())
}

// Summary aggregates the review history of a user.
func (s *Service) Summary(ctx context.Context, userID int64) (sr.Summary, error) {
	log, err := s.History(ctx, userID)
	if err != nil {
		return sr.Summary{}, err
	}
	summary := sr.Summarize(log)
	if summary.Skipped > 0 {
		s.log.Warn("malformed review log entries skipped", "user_id", userID, "skipped", summary.Skipped)
	}
	return summary, nil
}

// Mastered counts the cards of a user that no longer need frequent review.
func (s *Service) Mastered(ctx context.Context, userID int64) (int, error) {
	states, err := s.store.States.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, st := range states {
		if sr.IsMastered(st) {
			n++
		}
	}
	return n, nil
}

// History returns the review log of a user.
func (s *Service) History(ctx context.Context, userID int64) ([]models.ReviewLogEntry, error) {
	return s.store.Log.ListByUser(ctx, userID)
}

// ImportHistory appends externally recorded reviews to a user's log.
// Entries are validated first; the import is rejected as a whole on the first bad entry
// or on a card the user does not own.
func (s *Service) ImportHistory(ctx context.Context, userID int64, entries []models.ReviewLogEntry) error {
	if err := sr.ValidateHistory(entries); err != nil {
		return err
	}
	sessionID := uuid.NewString()
	return s.store.InTx(ctx, func(tx *database.Store) error {
		owned := make(map[int64]bool)
		for i := range entries {
			entry := entries[i]
			if !owned[entry.CardID] {
				if err := checkOwner(ctx, tx, userID, entry.CardID); err != nil {
					return fmt.Errorf("history entry %d: %w", i, err)
				}
				owned[entry.CardID] = true
			}
			entry.UserID = userID
			if entry.SessionID == "" {
				entry.SessionID = sessionID
			}
			if err := tx.Log.Append(ctx, &entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetPriority pins a card ahead of (positive) or behind (negative) others with
// the same due time and ease. nil clears the pin.
func (s *Service) SetPriority(ctx context.Context, userID, cardID int64, priority *int) error {
	err := s.store.States.SetManualPriority(ctx, userID, cardID, priority)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("card %d: %w", cardID, ErrUnknownCard)
	}
	return err
}

func (s *Service) loadState(ctx context.Context, tx *database.Store, userID, cardID int64) (*models.ReviewState, error) {
	state, err := tx.States.Get(ctx, userID, cardID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	if err := checkOwner(ctx, tx, userID, cardID); err != nil {
		return nil, err
	}
	fresh := models.NewReviewState(userID, cardID, s.sm2.Now())
	return &fresh, nil
}

func (s *Service) persist(ctx context.Context, tx *database.Store, state *models.ReviewState, r Rating, result models.CalculationResult, sessionID string) error {
	now := s.sm2.Now()
	result.Apply(state, r.Quality)
	state.UpdatedAt = now
	if err := tx.States.Save(ctx, state); err != nil {
		return err
	}

	entry := models.ReviewLogEntry{
		UserID:    state.UserID,
		CardID:    state.CardID,
		Quality:   r.Quality,
		Interval:  result.Interval,
		SessionID: sessionID,
		Timestamp: now,
	}
	if r.Duration > 0 {
		seconds := r.Duration.Seconds()
		entry.ReviewDurationSeconds = &seconds
	}
	return tx.Log.Append(ctx, &entry)
}

// checkOwner fails with ErrUnknownCard unless cardID exists and belongs to userID.
func checkOwner(ctx context.Context, tx *database.Store, userID, cardID int64) error {
	card, err := tx.Cards.GetByID(ctx, cardID)
	if errors.Is(err, database.ErrNotFound) || (err == nil && card.UserID != userID) {
		return fmt.Errorf("card %d: %w", cardID, ErrUnknownCard)
	}
	return err
}

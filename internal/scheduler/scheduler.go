package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/engbot/internal/logger"
	sr "github.com/example/engbot/internal/spaced_repetition"
	"github.com/example/engbot/pkg/models"
)

// Notifier interface for sending notifications
type Notifier interface {
	SendReminders(userID int64, count int) error
}

// UserSource lists users who asked for a reminder at a given UTC hour.
type UserSource interface {
	GetUsersForNotification(ctx context.Context, hour int) ([]models.User, error)
}

// QueueSource builds the review queue of a user.
type QueueSource interface {
	Queue(ctx context.Context, userID int64, capacity int) ([]models.QueueEntry, error)
}

// Window is the range of UTC hours, inclusive, when reminders may be sent.
type Window struct {
	StartHour int
	EndHour   int
}

// Contains reports whether hour falls inside the window.
func (w Window) Contains(hour int) bool {
	return hour >= w.StartHour && hour <= w.EndHour
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	notifier  Notifier
	users     UserSource
	queues    QueueSource
	window    Window
	cache     *sr.Cache
	now       sr.Clock
	log       *logger.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source used to pick the current hour.
func WithClock(c sr.Clock) Option {
	return func(s *Scheduler) { s.now = c }
}

// WithCache enables the nightly report and reset of the calculation cache.
func WithCache(c *sr.Cache) Option {
	return func(s *Scheduler) { s.cache = c }
}

// New creates a new scheduler instance
func New(notifier Notifier, users UserSource, queues QueueSource, window Window, log *logger.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		notifier:  notifier,
		users:     users,
		queues:    queues,
		window:    window,
		now:       time.Now,
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() error {
	// Проверяем каждый час, кому пора напомнить о повторении
	if _, err := s.scheduler.Every(1).Hour().Do(s.checkAndSendReminders); err != nil {
		return fmt.Errorf("failed to schedule reminders: %w", err)
	}
	if s.cache != nil {
		if _, err := s.scheduler.Every(1).Day().At("00:00").Do(s.resetCache); err != nil {
			return fmt.Errorf("failed to schedule cache reset: %w", err)
		}
	}

	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
	s.log.Info("scheduler started", "window_start", s.window.StartHour, "window_end", s.window.EndHour)
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) checkAndSendReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := s.SendDueReminders(ctx); err != nil {
		s.log.Error("reminder check failed", "error", err)
	}
}

// SendDueReminders builds the queue of every user whose reminder hour is now
// and notifies those with a non-empty one. It returns the number of reminders sent.
func (s *Scheduler) SendDueReminders(ctx context.Context) (int, error) {
	currentHour := s.now().UTC().Hour()
	if !s.window.Contains(currentHour) {
		s.log.Debug("outside notification hours, skipping reminders",
			"hour", currentHour, "start", s.window.StartHour, "end", s.window.EndHour)
		return 0, nil
	}

	users, err := s.users.GetUsersForNotification(ctx, currentHour)
	if err != nil {
		return 0, fmt.Errorf("failed to get users for notification: %w", err)
	}

	sent := 0
	for _, user := range users {
		// Don't send more than the user's daily preference
		queue, err := s.queues.Queue(ctx, user.ID, dailyCapacity(user))
		if err != nil {
			s.log.Warn("failed to build review queue", "user_id", user.ID, "error", err)
			continue
		}
		count := len(queue)
		if count == 0 {
			continue
		}
		if err := s.notifier.SendReminders(user.ID, count); err != nil {
			s.log.Warn("failed to send reminder", "user_id", user.ID, "error", err)
			continue
		}
		sent++
	}
	s.log.Info("reminders sent", "hour", currentHour, "users", len(users), "sent", sent)
	return sent, nil
}

// RunManualCheck forces a check for a specific user
func (s *Scheduler) RunManualCheck(ctx context.Context, userID int64) error {
	queue, err := s.queues.Queue(ctx, userID, sr.DefaultQueueCapacity)
	if err != nil {
		return err
	}
	if len(queue) > 0 {
		return s.notifier.SendReminders(userID, len(queue))
	}
	return nil
}

func dailyCapacity(user models.User) int {
	if user.CardsPerDay > 0 {
		return user.CardsPerDay
	}
	return sr.DefaultQueueCapacity
}

func (s *Scheduler) resetCache() {
	stats := s.cache.Stats()
	s.log.Info("calculation cache stats",
		"entries", stats.Entries,
		"capacity", stats.Capacity,
		"hits", stats.Hits,
		"misses", stats.Misses,
		"dropped", stats.Dropped,
	)
	// Результаты не зависят от кэша, поэтому его можно сбрасывать в любой момент
	s.cache.Clear()
}

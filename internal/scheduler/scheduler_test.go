package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/engbot/internal/logger"
	sr "github.com/example/engbot/internal/spaced_repetition"
	"github.com/example/engbot/pkg/models"
)

type reminder struct {
	userID int64
	count  int
}

type fakeNotifier struct {
	sent []reminder
	fail map[int64]bool
}

func (f *fakeNotifier) SendReminders(userID int64, count int) error {
	if f.fail[userID] {
		return errors.New("blocked by user")
	}
	f.sent = append(f.sent, reminder{userID, count})
	return nil
}

type fakeUsers map[int][]models.User

func (f fakeUsers) GetUsersForNotification(_ context.Context, hour int) ([]models.User, error) {
	return f[hour], nil
}

// fakeQueues holds the number of due cards per user.
type fakeQueues struct {
	due        map[int64]int
	capacities map[int64]int
}

func newFakeQueues(due map[int64]int) *fakeQueues {
	return &fakeQueues{due: due, capacities: map[int64]int{}}
}

func (f *fakeQueues) Queue(_ context.Context, userID int64, capacity int) ([]models.QueueEntry, error) {
	n, ok := f.due[userID]
	if !ok {
		return nil, errors.New("no such user")
	}
	f.capacities[userID] = capacity
	if n > capacity {
		n = capacity
	}
	queue := make([]models.QueueEntry, n)
	for i := range queue {
		queue[i] = models.QueueEntry{ID: int64(i + 1), Priority: n - i}
	}
	return queue, nil
}

func atHour(h int) sr.Clock {
	return func() time.Time { return time.Date(2024, 3, 10, h, 15, 0, 0, time.UTC) }
}

func TestSendDueReminders(t *testing.T) {
	users := fakeUsers{
		9: {
			{ID: 1, CardsPerDay: 10},
			{ID: 2, CardsPerDay: 10},
			{ID: 3, CardsPerDay: 0},
			{ID: 4, CardsPerDay: 5},
			{ID: 5},
			{ID: 6},
		},
		22: {{ID: 1, CardsPerDay: 10}},
	}
	due := map[int64]int{1: 3, 2: 0, 3: 40, 4: 12, 6: 2}
	window := Window{StartHour: 4, EndHour: 18}

	t.Run("inside window", func(t *testing.T) {
		notifier := &fakeNotifier{fail: map[int64]bool{6: true}}
		queues := newFakeQueues(due)
		s := New(notifier, users, queues, window, logger.NewNop(), WithClock(atHour(9)))

		sent, err := s.SendDueReminders(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		want := []reminder{{1, 3}, {3, sr.DefaultQueueCapacity}, {4, 5}}
		if sent != len(want) || len(notifier.sent) != len(want) {
			t.Fatalf("sent = %d, reminders = %+v, want %+v", sent, notifier.sent, want)
		}
		for i := range want {
			if notifier.sent[i] != want[i] {
				t.Errorf("reminder %d = %+v, want %+v", i, notifier.sent[i], want[i])
			}
		}
		if got := queues.capacities[4]; got != 5 {
			t.Errorf("queue capacity for user 4 = %d, want 5", got)
		}
		if got := queues.capacities[5]; got != 0 {
			t.Errorf("user without state was asked for capacity %d", got)
		}
	})

	t.Run("outside window", func(t *testing.T) {
		notifier := &fakeNotifier{}
		s := New(notifier, users, newFakeQueues(due), window, logger.NewNop(), WithClock(atHour(22)))

		sent, err := s.SendDueReminders(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if sent != 0 || len(notifier.sent) != 0 {
			t.Errorf("reminders sent outside window: %+v", notifier.sent)
		}
	})
}

func TestWindowContains(t *testing.T) {
	w := Window{StartHour: 4, EndHour: 18}
	for hour, want := range map[int]bool{3: false, 4: true, 12: true, 18: true, 19: false} {
		if got := w.Contains(hour); got != want {
			t.Errorf("Contains(%d) = %v, want %v", hour, got, want)
		}
	}
}

func TestRunManualCheck(t *testing.T) {
	notifier := &fakeNotifier{}
	s := New(notifier, fakeUsers{}, newFakeQueues(map[int64]int{1: 7, 2: 0}), Window{0, 23}, logger.NewNop())
	ctx := context.Background()

	if err := s.RunManualCheck(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := s.RunManualCheck(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if err := s.RunManualCheck(ctx, 3); err == nil {
		t.Error("expected error for unknown user")
	}
	if len(notifier.sent) != 1 || notifier.sent[0] != (reminder{1, 7}) {
		t.Errorf("reminders = %+v", notifier.sent)
	}
}

func TestResetCache(t *testing.T) {
	cache := sr.NewCache(10)
	sm2 := sr.NewSM2(sr.WithCache(cache))
	if _, err := sm2.Compute(4, 2, 6, 2.5); err != nil {
		t.Fatal(err)
	}
	if cache.Len() != 1 {
		t.Fatalf("cache len = %d, want 1", cache.Len())
	}

	s := New(&fakeNotifier{}, fakeUsers{}, newFakeQueues(nil), Window{0, 23}, logger.NewNop(), WithCache(cache))
	s.resetCache()
	if cache.Len() != 0 {
		t.Errorf("cache len after reset = %d", cache.Len())
	}
}

func TestStartStop(t *testing.T) {
	s := New(&fakeNotifier{}, fakeUsers{}, newFakeQueues(nil), Window{4, 18}, logger.NewNop(), WithCache(sr.NewCache(1)))
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	s.Stop()
}

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/example/engbot/pkg/models"
)

var testNow = time.Date(2024, time.May, 1, 8, 0, 0, 0, time.UTC)

// openTestDB opens an in-memory SQLite database through the pure-Go driver.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(context.Background(), "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, store *Store, id int64) {
	t.Helper()
	user := &models.User{ID: id, Username: "learner", NotificationEnabled: true, NotificationHour: 9, CardsPerDay: 10}
	if err := store.Users.Upsert(context.Background(), user); err != nil {
		t.Fatal(err)
	}
}

func seedCard(t *testing.T, store *Store, userID int64, front string) int64 {
	t.Helper()
	card := &models.Card{UserID: userID, Deck: "verbs", Front: front, Back: front + "-tr", CreatedAt: testNow}
	if err := store.Cards.Create(context.Background(), card); err != nil {
		t.Fatal(err)
	}
	return card.ID
}

func TestDriverFor(t *testing.T) {
	for in, want := range map[string]string{"sqlite": "sqlite3", "postgres": "postgres", "PostgreSQL": "postgres"} {
		got, err := DriverFor(in)
		if err != nil || got != want {
			t.Errorf("DriverFor(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := DriverFor("mysql"); err == nil {
		t.Error("expected error for unsupported type")
	}
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	store := NewStore(openTestDB(t))

	seedUser(t, store, 100)
	seedUser(t, store, 200)

	user, err := store.Users.GetByID(ctx, 100)
	if err != nil {
		t.Fatal(err)
	}
	if user.Username != "learner" || !user.NotificationEnabled || user.NotificationHour != 9 {
		t.Errorf("unexpected user %+v", user)
	}

	user.NotificationHour = 20
	if err := store.Users.UpdateSettings(ctx, user); err != nil {
		t.Fatal(err)
	}
	at20, err := store.Users.GetUsersForNotification(ctx, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(at20) != 1 || at20[0].ID != 100 {
		t.Errorf("users at 20h = %+v", at20)
	}

	// Upsert keeps settings of an existing user.
	if err := store.Users.Upsert(ctx, &models.User{ID: 100, Username: "renamed", NotificationHour: 3}); err != nil {
		t.Fatal(err)
	}
	user, _ = store.Users.GetByID(ctx, 100)
	if user.Username != "renamed" || user.NotificationHour != 20 {
		t.Errorf("upsert changed settings: %+v", user)
	}

	if _, err := store.Users.GetByID(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(999) error = %v, want ErrNotFound", err)
	}
	if err := store.Users.UpdateSettings(ctx, &models.User{ID: 999}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateSettings(999) error = %v, want ErrNotFound", err)
	}
}

func TestCardRepository(t *testing.T) {
	ctx := context.Background()
	store := NewStore(openTestDB(t))
	seedUser(t, store, 1)

	id := seedCard(t, store, 1, "run")
	seedCard(t, store, 1, "go")

	card, err := store.Cards.GetByID(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if card.Front != "run" || card.Back != "run-tr" || !card.CreatedAt.Equal(testNow) {
		t.Errorf("unexpected card %+v", card)
	}

	// Same front in the same deck updates the existing card.
	dup := &models.Card{UserID: 1, Deck: "verbs", Front: "run", Back: "бежать", CreatedAt: testNow}
	if err := store.Cards.Create(ctx, dup); err != nil {
		t.Fatal(err)
	}
	if dup.ID != id {
		t.Errorf("duplicate card got new ID %d, want %d", dup.ID, id)
	}

	cards, err := store.Cards.ListByUser(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(cards) != 2 || cards[0].Front != "go" || cards[1].Back != "бежать" {
		t.Errorf("ListByUser = %+v", cards)
	}

	if _, err := store.Cards.GetByID(ctx, 12345); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID error = %v, want ErrNotFound", err)
	}
}

func TestReviewStateRepository(t *testing.T) {
	ctx := context.Background()
	store := NewStore(openTestDB(t))
	seedUser(t, store, 1)
	cardA := seedCard(t, store, 1, "a")
	cardB := seedCard(t, store, 1, "b")

	if _, err := store.States.Get(ctx, 1, cardA); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get before save error = %v, want ErrNotFound", err)
	}

	state := models.NewReviewState(1, cardA, testNow)
	if err := store.States.Save(ctx, &state); err != nil {
		t.Fatal(err)
	}
	state.Interval, state.Repetitions, state.EaseFactor = 6, 2, 2.36
	state.NextReview = testNow.AddDate(0, 0, 6)
	state.LastQuality = 4
	if err := store.States.Save(ctx, &state); err != nil {
		t.Fatal(err)
	}

	got, err := store.States.Get(ctx, 1, cardA)
	if err != nil {
		t.Fatal(err)
	}
	if got.Interval != 6 || got.Repetitions != 2 || got.EaseFactor != 2.36 || got.LastQuality != 4 {
		t.Errorf("unexpected state %+v", got)
	}
	if !got.NextReview.Equal(testNow.AddDate(0, 0, 6)) {
		t.Errorf("NextReview = %v", got.NextReview)
	}
	if got.ManualPriority != nil {
		t.Errorf("ManualPriority = %v, want nil", *got.ManualPriority)
	}

	other := models.NewReviewState(1, cardB, testNow)
	if err := store.States.Save(ctx, &other); err != nil {
		t.Fatal(err)
	}
	pin := 5
	if err := store.States.SetManualPriority(ctx, 1, cardB, &pin); err != nil {
		t.Fatal(err)
	}

	items, err := store.States.ListSchedulable(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[1].ID != cardB || items[1].ManualPriority == nil || *items[1].ManualPriority != 5 {
		t.Errorf("ListSchedulable = %+v", items)
	}

	due, err := store.States.CountDue(ctx, 1, testNow.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if due != 1 {
		t.Errorf("CountDue = %d, want 1", due)
	}

	if err := store.States.SetManualPriority(ctx, 1, 9999, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetManualPriority error = %v, want ErrNotFound", err)
	}
}

func TestReviewLogRepository(t *testing.T) {
	ctx := context.Background()
	store := NewStore(openTestDB(t))

	d := 4.5
	entries := []models.ReviewLogEntry{
		{UserID: 1, CardID: 10, Quality: 4, Interval: 1, ReviewDurationSeconds: &d, SessionID: "s1", Timestamp: testNow},
		{UserID: 1, CardID: 11, Quality: 2, Interval: 1, Timestamp: testNow.Add(time.Minute)},
		{UserID: 2, CardID: 12, Quality: 5, Interval: 6, Timestamp: testNow},
	}
	for i := range entries {
		if err := store.Log.Append(ctx, &entries[i]); err != nil {
			t.Fatal(err)
		}
		if entries[i].ID == 0 {
			t.Errorf("entry %d has no ID", i)
		}
	}

	got, err := store.Log.ListByUser(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].ReviewDurationSeconds == nil || *got[0].ReviewDurationSeconds != 4.5 || got[0].SessionID != "s1" {
		t.Errorf("first entry = %+v", got[0])
	}
	if got[1].ReviewDurationSeconds != nil || got[1].Quality != 2 {
		t.Errorf("second entry = %+v", got[1])
	}
}

func TestStoreInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewStore(openTestDB(t))

	boom := errors.New("boom")
	err := store.InTx(ctx, func(tx *Store) error {
		if err := tx.Log.Append(ctx, &models.ReviewLogEntry{UserID: 1, CardID: 1, Quality: 3, Interval: 1, Timestamp: testNow}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx error = %v, want boom", err)
	}

	entries, err := store.Log.ListByUser(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("rolled back entry persisted: %+v", entries)
	}

	err = store.InTx(ctx, func(tx *Store) error {
		return tx.Log.Append(ctx, &models.ReviewLogEntry{UserID: 1, CardID: 1, Quality: 3, Interval: 1, Timestamp: testNow})
	})
	if err != nil {
		t.Fatal(err)
	}
	if entries, _ := store.Log.ListByUser(ctx, 1); len(entries) != 1 {
		t.Errorf("committed entry missing, got %d entries", len(entries))
	}
}

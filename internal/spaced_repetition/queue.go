package spaced_repetition

import (
	"math"
	"sort"
	"time"

	"github.com/example/engbot/pkg/models"
)

// DefaultQueueCapacity is the number of cards offered in one review session.
const DefaultQueueCapacity = 20

// BuildQueue returns the cards due at now, ranked and truncated to capacity.
//
// Due items (NextReview <= now) are ordered by:
//  1. How overdue they are, most overdue first
//  2. Ease factor, hardest cards first
//  3. Manual priority, highest first
//  4. ID, to make the order total
//
// Entry i is scheduled i seconds after now and gets priority len(queue)-i.
func BuildQueue(items []models.SchedulableItem, capacity int, now time.Time) []models.QueueEntry {
	due := DueItems(items, now)

	sort.Slice(due, func(i, j int) bool {
		a, b := due[i], due[j]

		// Earlier NextReview means more overdue
		if !a.NextReview.Equal(b.NextReview) {
			return a.NextReview.Before(b.NextReview)
		}
		if ea, eb := easeOf(a), easeOf(b); ea != eb {
			return ea < eb
		}
		if pa, pb := manualPriority(a), manualPriority(b); pa != pb {
			return pa > pb
		}
		return a.ID < b.ID
	})

	if capacity < 0 {
		capacity = 0
	}
	if len(due) > capacity {
		due = due[:capacity]
	}

	queue := make([]models.QueueEntry, len(due))
	for i, item := range due {
		queue[i] = models.QueueEntry{
			ID:            item.ID,
			ScheduledTime: now.Add(time.Duration(i) * time.Second),
			Priority:      len(due) - i,
		}
	}
	return queue
}

// DueItems returns a copy of the items whose NextReview is not after now, in input order.
func DueItems(items []models.SchedulableItem, now time.Time) []models.SchedulableItem {
	due := make([]models.SchedulableItem, 0, len(items))
	for _, item := range items {
		if !item.NextReview.After(now) {
			due = append(due, item)
		}
	}
	return due
}

// easeOf reads a NaN ease as the floor, the same way Compute does.
func easeOf(item models.SchedulableItem) float64 {
	if math.IsNaN(item.EaseFactor) {
		return MinEaseFactor
	}
	return item.EaseFactor
}

func manualPriority(item models.SchedulableItem) int {
	if item.ManualPriority == nil {
		return 0
	}
	return *item.ManualPriority
}

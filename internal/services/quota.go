package services

import (
	"context"
	"fmt"
	"time"

	"lexchat-backend/internal/models"

	"github.com/google/uuid"
)

// MessageCounter counts user-authored messages. store.MessageTx satisfies it.
type MessageCounter interface {
	CountUserMessagesSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
}

// QuotaPolicy enforces the daily message limit.
type QuotaPolicy struct {
	now func() time.Time
}

// NewQuotaPolicy creates a QuotaPolicy using the local server clock.
func NewQuotaPolicy() *QuotaPolicy {
	return &QuotaPolicy{now: time.Now}
}

// Applies reports whether a send by a user of the given tier must be counted at all.
func (q *QuotaPolicy) Applies(tier models.Tier, dailyLimit int) bool {
	return dailyLimit > 0 && !tier.QuotaExempt()
}

// IsAllowed reports whether the user may send one more message today.
// The day starts at local midnight of the server clock.
func (q *QuotaPolicy) IsAllowed(ctx context.Context, counter MessageCounter, userID uuid.UUID, tier models.Tier, dailyLimit int) (bool, error) {
	if !q.Applies(tier, dailyLimit) {
		return true, nil
	}

	count, err := counter.CountUserMessagesSince(ctx, userID, StartOfDay(q.now()))
	if err != nil {
		return false, fmt.Errorf("failed to count today's messages: %w", err)
	}
	return count < dailyLimit, nil
}

// StartOfDay returns 00:00:00 of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

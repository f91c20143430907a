package types

import (
	"context"
	"errors"
	"time"
)

// ErrBlocked marks a permanent delivery failure: the recipient has
// blocked the bot. Everything else is treated as transient.
var ErrBlocked = errors.New("recipient blocked the bot")

// ReminderJob is a one-shot delayed nudge. The payload carries the
// delivery address; the user's live state is re-read at fire time.
type ReminderJob struct {
	ID     string    `json:"id"`
	UserID int64     `json:"user_id"`
	ChatID int64     `json:"chat_id"`
	FireAt time.Time `json:"fire_at"`
}

type ReminderStore interface {
	Schedule(ctx context.Context, job *ReminderJob) error
	// ClaimDue removes and returns every job whose fire time has passed.
	// A claimed job is gone: delivery failures are logged, not retried.
	ClaimDue(ctx context.Context, now time.Time) ([]*ReminderJob, error)
}

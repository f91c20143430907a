package types

import (
	"context"
	"time"

	"github.com/rocketwin/funnel-bot/internal/i18n"
)

type UserRecord struct {
	UserID                int64
	ChatID                int64
	Username              string
	FirstName             string
	State                 State
	ServiceStatus         ServiceStatus
	LanguageCode          i18n.Lang
	ChatMessageCount      int
	PushMessageCount      int
	SubscribedToBroadcast bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// UserPatch is a partial update: nil fields are left untouched by the
// store. Kept distinct from full-row replacement so concurrent writers
// cannot clobber fields they never read.
type UserPatch struct {
	ChatID                *int64
	Username              *string
	FirstName             *string
	State                 *State
	ServiceStatus         *ServiceStatus
	LanguageCode          *i18n.Lang
	ChatMessageCount      *int
	SubscribedToBroadcast *bool
}

type ChatMessage struct {
	UserID    int64
	Role      Role
	Text      string
	Timestamp time.Time
}

type UserStore interface {
	// GetUser never reports not-found: an unseen user comes back as a
	// fresh record with defaults (state=started, language=en) filled in.
	GetUser(ctx context.Context, userID int64) (*UserRecord, error)
	PatchUser(ctx context.Context, userID int64, patch UserPatch) error

	AppendChatMessage(ctx context.Context, userID int64, role Role, text string) error
	RecentHistory(ctx context.Context, userID int64, limit int) ([]ChatMessage, error)

	ListBroadcastable(ctx context.Context, maxPush int) ([]UserRecord, error)
	IncrementPushCount(ctx context.Context, userID int64) error
}

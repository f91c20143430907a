package classifier

import (
	"context"
	"errors"

	"github.com/rocketwin/funnel-bot/internal/i18n"
	"github.com/rocketwin/funnel-bot/types"
)

// Intent labels assigned by the language model. The dispatch table in the
// conversation engine is keyed on these.
const (
	IntentServiceRequest       = "service_request"
	IntentRejection            = "rejection"
	IntentPlayedBefore         = "played_before"
	IntentNewPlayer            = "new_player"
	IntentRegistrationComplete = "registration_complete"
	IntentRegistrationPending  = "registration_not_complete"
	IntentSmallTalk            = "small_talk"
)

// ErrQuotaExhausted signals the model's free quota ran out. Callers only
// use it to pick the apology text, never for control flow.
var ErrQuotaExhausted = errors.New("classifier quota exhausted")

type Request struct {
	UserID   int64
	Message  string
	Language i18n.Lang
	State    types.State
	History  []types.ChatMessage
}

type Result struct {
	Intent string `json:"intent"`
	Reply  string `json:"reply"`
}

type Classifier interface {
	Classify(ctx context.Context, req Request) (Result, error)
}

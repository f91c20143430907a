package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rocketwin/funnel-bot/internal/classifier"
	"github.com/rocketwin/funnel-bot/internal/i18n"
	"github.com/rocketwin/funnel-bot/internal/messages"
	"github.com/rocketwin/funnel-bot/types"
)

const historyLimit = 10

const userIDLength = 9

// Outbound is the delivery side of a conversation turn.
type Outbound interface {
	Reply(ctx context.Context, userID, chatID int64, text string) error
	SendServiceOffer(ctx context.Context, userID, chatID int64, lang i18n.Lang) error
	SendRegistrationTutorial(ctx context.Context, userID, chatID int64, lang i18n.Lang) error
}

// Engine is the per-user conversation state machine. Turns for the same
// user are serialized; different users proceed independently.
type Engine struct {
	store      types.UserStore
	reminders  types.ReminderStore
	classifier classifier.Classifier
	out        Outbound

	maxSmallTalk  int
	reminderDelay time.Duration

	mu        sync.Mutex
	userLocks map[int64]*sync.Mutex
}

func New(store types.UserStore, reminders types.ReminderStore, cl classifier.Classifier, out Outbound, maxSmallTalk int, reminderDelay time.Duration) *Engine {
	return &Engine{
		store:         store,
		reminders:     reminders,
		classifier:    cl,
		out:           out,
		maxSmallTalk:  maxSmallTalk,
		reminderDelay: reminderDelay,
		userLocks:     make(map[int64]*sync.Mutex),
	}
}

// userLock serializes turns per user so a second message cannot race the
// classifier round trip of the first.
func (e *Engine) userLock(userID int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		e.userLocks[userID] = l
	}
	return l
}

// HandleMessage runs one conversation turn for an inbound text message.
func (e *Engine) HandleMessage(ctx context.Context, userID, chatID int64, text string) error {
	if text == "" {
		return nil
	}

	l := e.userLock(userID)
	l.Lock()
	defer l.Unlock()

	return e.handleMessage(ctx, userID, chatID, text)
}

func (e *Engine) handleMessage(ctx context.Context, userID, chatID int64, text string) error {
	if err := e.store.AppendChatMessage(ctx, userID, types.RoleUser, text); err != nil {
		log.Printf("Failed to log inbound message from user %d: %v", userID, err)
	}

	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", userID, err)
	}

	// The detected language applies to this turn, so it is persisted
	// before any reply is composed.
	if detected := i18n.Detect(text); detected != u.LanguageCode {
		u.LanguageCode = detected
		if err := e.store.PatchUser(ctx, userID, types.UserPatch{LanguageCode: &detected}); err != nil {
			log.Printf("Failed to persist language for user %d: %v", userID, err)
		}
	}

	// Deterministic syntactic check: the classifier has no say here.
	if u.State == types.StateAwaitingUserID {
		return e.handleUserIDInput(ctx, u, chatID, text)
	}

	history, err := e.store.RecentHistory(ctx, userID, historyLimit)
	if err != nil {
		log.Printf("Failed to load history for user %d: %v", userID, err)
	}

	result, err := e.classifier.Classify(ctx, classifier.Request{
		UserID:   userID,
		Message:  text,
		Language: u.LanguageCode,
		State:    u.State,
		History:  history,
	})
	if err != nil {
		apology := messages.ClassifierUnavailable(u.LanguageCode)
		if errors.Is(err, classifier.ErrQuotaExhausted) {
			apology = messages.ClassifierQuotaExhausted(u.LanguageCode)
		}
		log.Printf("Classifier failed for user %d: %v", userID, err)
		return e.out.Reply(ctx, userID, chatID, apology)
	}

	return e.dispatch(ctx, u, chatID, result)
}

func validUserID(text string) bool {
	if len(text) != userIDLength {
		return false
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (e *Engine) handleUserIDInput(ctx context.Context, u *types.UserRecord, chatID int64, text string) error {
	if !validUserID(text) {
		log.Printf("User %d provided an invalid ID: %q", u.UserID, text)
		return e.out.Reply(ctx, u.UserID, chatID, messages.UserIDInvalid(u.LanguageCode))
	}

	log.Printf("User %d provided a valid ID: %s", u.UserID, text)
	if err := e.out.Reply(ctx, u.UserID, chatID, messages.UserIDAccepted(u.LanguageCode)); err != nil {
		return err
	}
	if err := e.out.SendServiceOffer(ctx, u.UserID, chatID, u.LanguageCode); err != nil {
		log.Printf("Failed to send service offer to user %d: %v", u.UserID, err)
	}
	return e.store.PatchUser(ctx, u.UserID, types.UserPatch{
		State:         ptr(types.StateCompleted),
		ServiceStatus: ptr(types.StatusConfirmed),
	})
}

// dispatch applies the (state, intent) table. Unlisted pairs fall back to
// the classifier's reply with the state left untouched.
func (e *Engine) dispatch(ctx context.Context, u *types.UserRecord, chatID int64, result classifier.Result) error {
	switch u.State {
	case types.StateAwaitingService:
		if result.Intent == classifier.IntentServiceRequest {
			if err := e.out.Reply(ctx, u.UserID, chatID, messages.PlayedBeforeQuestion(u.LanguageCode)); err != nil {
				return err
			}
			return e.store.PatchUser(ctx, u.UserID, types.UserPatch{State: ptr(types.StateAwaitingExperience)})
		}
		return e.replyFallback(ctx, u, chatID, result.Reply)

	case types.StateAwaitingExperience:
		switch result.Intent {
		case classifier.IntentPlayedBefore:
			if err := e.out.SendServiceOffer(ctx, u.UserID, chatID, u.LanguageCode); err != nil {
				return err
			}
			return e.store.PatchUser(ctx, u.UserID, types.UserPatch{
				State:         ptr(types.StateCompleted),
				ServiceStatus: ptr(types.StatusConfirmed),
			})
		case classifier.IntentNewPlayer:
			if err := e.out.SendRegistrationTutorial(ctx, u.UserID, chatID, u.LanguageCode); err != nil {
				return err
			}
			if err := e.store.PatchUser(ctx, u.UserID, types.UserPatch{State: ptr(types.StateAwaitingRegistration)}); err != nil {
				return err
			}
			job := &types.ReminderJob{
				UserID: u.UserID,
				ChatID: chatID,
				FireAt: time.Now().Add(e.reminderDelay),
			}
			if err := e.reminders.Schedule(ctx, job); err != nil {
				log.Printf("Failed to schedule reminder for user %d: %v", u.UserID, err)
			}
			return nil
		default:
			return e.replyFallback(ctx, u, chatID, result.Reply)
		}

	case types.StateAwaitingRegistration:
		if result.Intent == classifier.IntentRegistrationComplete {
			if err := e.out.Reply(ctx, u.UserID, chatID, messages.AskUserID(u.LanguageCode)); err != nil {
				return err
			}
			return e.store.PatchUser(ctx, u.UserID, types.UserPatch{State: ptr(types.StateAwaitingUserID)})
		}
		return e.replyFallback(ctx, u, chatID, result.Reply)

	default:
		// started, completed, awaiting_re_engagement: everything here is
		// small talk and subject to the per-user cap.
		return e.handleSmallTalk(ctx, u, chatID, result.Reply)
	}
}

func (e *Engine) handleSmallTalk(ctx context.Context, u *types.UserRecord, chatID int64, reply string) error {
	if u.ChatMessageCount >= e.maxSmallTalk {
		return e.out.Reply(ctx, u.UserID, chatID, messages.SmallTalkExhausted(u.LanguageCode))
	}
	if err := e.replyFallback(ctx, u, chatID, reply); err != nil {
		return err
	}
	return e.store.PatchUser(ctx, u.UserID, types.UserPatch{ChatMessageCount: ptr(u.ChatMessageCount + 1)})
}

// replyFallback guards against the model omitting a reply for an intent
// it was not asked to write one for.
func (e *Engine) replyFallback(ctx context.Context, u *types.UserRecord, chatID int64, reply string) error {
	if reply == "" {
		reply = messages.ClassifierUnavailable(u.LanguageCode)
	}
	return e.out.Reply(ctx, u.UserID, chatID, reply)
}

// HandleStart processes the /start command. A converted user is never
// re-onboarded: the command degrades to small talk. Anyone else restarts
// the funnel from a clean slate.
func (e *Engine) HandleStart(ctx context.Context, userID, chatID int64, username, firstName string) error {
	l := e.userLock(userID)
	l.Lock()
	defer l.Unlock()

	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", userID, err)
	}

	if u.ServiceStatus == types.StatusConfirmed {
		return e.handleMessage(ctx, userID, chatID, "/start")
	}

	err = e.store.PatchUser(ctx, userID, types.UserPatch{
		ChatID:                &chatID,
		Username:              &username,
		FirstName:             &firstName,
		State:                 ptr(types.StateAwaitingService),
		ServiceStatus:         ptr(types.StatusPending),
		ChatMessageCount:      ptr(0),
		SubscribedToBroadcast: ptr(true),
	})
	if err != nil {
		return fmt.Errorf("reset user %d: %w", userID, err)
	}

	return e.out.Reply(ctx, userID, chatID, messages.Welcome(u.LanguageCode))
}

// ConfirmService finalizes onboarding from the inline confirmation button.
func (e *Engine) ConfirmService(ctx context.Context, userID, chatID int64) error {
	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", userID, err)
	}

	err = e.store.PatchUser(ctx, userID, types.UserPatch{
		State:         ptr(types.StateCompleted),
		ServiceStatus: ptr(types.StatusConfirmed),
	})
	if err != nil {
		return err
	}
	return e.out.SendServiceOffer(ctx, userID, chatID, u.LanguageCode)
}

// HandleReminder fires a scheduled nudge. The user's live state decides:
// anyone who moved on since scheduling receives nothing.
func (e *Engine) HandleReminder(ctx context.Context, job *types.ReminderJob) error {
	u, err := e.store.GetUser(ctx, job.UserID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", job.UserID, err)
	}
	if u.State != types.StateAwaitingRegistration {
		return nil
	}
	return e.out.Reply(ctx, job.UserID, job.ChatID, messages.RegistrationReminder(u.LanguageCode))
}

func ptr[T any](v T) *T {
	return &v
}

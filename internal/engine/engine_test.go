package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rocketwin/funnel-bot/internal/classifier"
	"github.com/rocketwin/funnel-bot/internal/i18n"
	"github.com/rocketwin/funnel-bot/internal/messages"
	"github.com/rocketwin/funnel-bot/types"
)

type fakeStore struct {
	users   map[int64]*types.UserRecord
	chatLog []types.ChatMessage
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[int64]*types.UserRecord)}
}

func (f *fakeStore) GetUser(_ context.Context, userID int64) (*types.UserRecord, error) {
	if u, ok := f.users[userID]; ok {
		cp := *u
		return &cp, nil
	}
	return &types.UserRecord{
		UserID:                userID,
		State:                 types.StateStarted,
		ServiceStatus:         types.StatusPending,
		LanguageCode:          i18n.EN,
		SubscribedToBroadcast: true,
	}, nil
}

func (f *fakeStore) PatchUser(_ context.Context, userID int64, patch types.UserPatch) error {
	u, ok := f.users[userID]
	if !ok {
		u = &types.UserRecord{
			UserID:                userID,
			State:                 types.StateStarted,
			ServiceStatus:         types.StatusPending,
			LanguageCode:          i18n.EN,
			SubscribedToBroadcast: true,
		}
		f.users[userID] = u
	}
	if patch.ChatID != nil {
		u.ChatID = *patch.ChatID
	}
	if patch.Username != nil {
		u.Username = *patch.Username
	}
	if patch.FirstName != nil {
		u.FirstName = *patch.FirstName
	}
	if patch.State != nil {
		u.State = *patch.State
	}
	if patch.ServiceStatus != nil {
		u.ServiceStatus = *patch.ServiceStatus
	}
	if patch.LanguageCode != nil {
		u.LanguageCode = *patch.LanguageCode
	}
	if patch.ChatMessageCount != nil {
		u.ChatMessageCount = *patch.ChatMessageCount
	}
	if patch.SubscribedToBroadcast != nil {
		u.SubscribedToBroadcast = *patch.SubscribedToBroadcast
	}
	return nil
}

func (f *fakeStore) AppendChatMessage(_ context.Context, userID int64, role types.Role, text string) error {
	f.chatLog = append(f.chatLog, types.ChatMessage{UserID: userID, Role: role, Text: text})
	return nil
}

func (f *fakeStore) RecentHistory(_ context.Context, userID int64, limit int) ([]types.ChatMessage, error) {
	var out []types.ChatMessage
	for _, m := range f.chatLog {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeStore) ListBroadcastable(_ context.Context, _ int) ([]types.UserRecord, error) {
	return nil, nil
}

func (f *fakeStore) IncrementPushCount(_ context.Context, _ int64) error {
	return nil
}

type fakeClassifier struct {
	result classifier.Result
	err    error
	calls  int
}

func (f *fakeClassifier) Classify(_ context.Context, _ classifier.Request) (classifier.Result, error) {
	f.calls++
	return f.result, f.err
}

type fakeReminders struct {
	scheduled []*types.ReminderJob
}

func (f *fakeReminders) Schedule(_ context.Context, job *types.ReminderJob) error {
	f.scheduled = append(f.scheduled, job)
	return nil
}

func (f *fakeReminders) ClaimDue(_ context.Context, _ time.Time) ([]*types.ReminderJob, error) {
	return nil, nil
}

type fakeOutbound struct {
	replies   []string
	offers    int
	tutorials int
}

func (f *fakeOutbound) Reply(_ context.Context, _, _ int64, text string) error {
	f.replies = append(f.replies, text)
	return nil
}

func (f *fakeOutbound) SendServiceOffer(_ context.Context, _, _ int64, _ i18n.Lang) error {
	f.offers++
	return nil
}

func (f *fakeOutbound) SendRegistrationTutorial(_ context.Context, _, _ int64, _ i18n.Lang) error {
	f.tutorials++
	return nil
}

type fixture struct {
	store      *fakeStore
	classifier *fakeClassifier
	reminders  *fakeReminders
	out        *fakeOutbound
	engine     *Engine
}

func newFixture(result classifier.Result, err error) *fixture {
	f := &fixture{
		store:      newFakeStore(),
		classifier: &fakeClassifier{result: result, err: err},
		reminders:  &fakeReminders{},
		out:        &fakeOutbound{},
	}
	f.engine = New(f.store, f.reminders, f.classifier, f.out, 30, 2*time.Minute)
	return f
}

func (f *fixture) seedUser(u types.UserRecord) {
	cp := u
	f.store.users[u.UserID] = &cp
}

func TestUserIDFastPathValid(t *testing.T) {
	f := newFixture(classifier.Result{}, nil)
	f.seedUser(types.UserRecord{UserID: 1, ChatID: 10, State: types.StateAwaitingUserID, ServiceStatus: types.StatusPending, LanguageCode: i18n.EN})

	if err := f.engine.HandleMessage(context.Background(), 1, 10, "123456789"); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if f.classifier.calls != 0 {
		t.Fatalf("classifier must not be invoked on the ID fast path, got %d calls", f.classifier.calls)
	}
	if f.out.offers != 1 {
		t.Fatalf("expected 1 service offer, got %d", f.out.offers)
	}
	u := f.store.users[1]
	if u.State != types.StateCompleted || u.ServiceStatus != types.StatusConfirmed {
		t.Fatalf("expected completed/confirmed, got %s/%s", u.State, u.ServiceStatus)
	}
	if len(f.out.replies) != 1 || f.out.replies[0] != messages.UserIDAccepted(i18n.EN) {
		t.Fatalf("unexpected replies: %+v", f.out.replies)
	}
}

func TestUserIDFastPathInvalid(t *testing.T) {
	for _, bad := range []string{"12345", "12345678a", "1234567890", "abcdefghi"} {
		f := newFixture(classifier.Result{}, nil)
		f.seedUser(types.UserRecord{UserID: 1, ChatID: 10, State: types.StateAwaitingUserID, ServiceStatus: types.StatusPending, LanguageCode: i18n.EN})

		if err := f.engine.HandleMessage(context.Background(), 1, 10, bad); err != nil {
			t.Fatalf("handle %q: %v", bad, err)
		}

		if f.classifier.calls != 0 {
			t.Fatalf("%q: classifier invoked %d times", bad, f.classifier.calls)
		}
		if f.store.users[1].State != types.StateAwaitingUserID {
			t.Fatalf("%q: state changed to %s", bad, f.store.users[1].State)
		}
		if len(f.out.replies) != 1 || f.out.replies[0] != messages.UserIDInvalid(i18n.EN) {
			t.Fatalf("%q: unexpected replies %+v", bad, f.out.replies)
		}
	}
}

func TestNewPlayerGetsTutorialAndReminder(t *testing.T) {
	f := newFixture(classifier.Result{Intent: classifier.IntentNewPlayer, Reply: "welcome!"}, nil)
	f.seedUser(types.UserRecord{UserID: 2, ChatID: 20, State: types.StateAwaitingExperience, ServiceStatus: types.StatusPending, LanguageCode: i18n.EN})

	if err := f.engine.HandleMessage(context.Background(), 2, 20, "hi"); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if f.out.tutorials != 1 {
		t.Fatalf("expected 1 tutorial send, got %d", f.out.tutorials)
	}
	if f.store.users[2].State != types.StateAwaitingRegistration {
		t.Fatalf("expected awaiting_registration_confirmation, got %s", f.store.users[2].State)
	}
	if len(f.reminders.scheduled) != 1 || f.reminders.scheduled[0].UserID != 2 {
		t.Fatalf("expected one reminder for user 2, got %+v", f.reminders.scheduled)
	}
}

func TestPlayedBeforeConfirmsService(t *testing.T) {
	f := newFixture(classifier.Result{Intent: classifier.IntentPlayedBefore}, nil)
	f.seedUser(types.UserRecord{UserID: 3, ChatID: 30, State: types.StateAwaitingExperience, ServiceStatus: types.StatusPending, LanguageCode: i18n.EN})

	if err := f.engine.HandleMessage(context.Background(), 3, 30, "yes"); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if f.out.offers != 1 {
		t.Fatalf("expected service offer, got %d", f.out.offers)
	}
	u := f.store.users[3]
	if u.State != types.StateCompleted || u.ServiceStatus != types.StatusConfirmed {
		t.Fatalf("expected completed/confirmed, got %s/%s", u.State, u.ServiceStatus)
	}
}

func TestServiceRequestAdvancesToExperience(t *testing.T) {
	f := newFixture(classifier.Result{Intent: classifier.IntentServiceRequest}, nil)
	f.seedUser(types.UserRecord{UserID: 4, ChatID: 40, State: types.StateAwaitingService, ServiceStatus: types.StatusPending, LanguageCode: i18n.EN})

	if err := f.engine.HandleMessage(context.Background(), 4, 40, "yes please"); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if f.store.users[4].State != types.StateAwaitingExperience {
		t.Fatalf("expected awaiting_experience_confirmation, got %s", f.store.users[4].State)
	}
	if len(f.out.replies) != 1 || f.out.replies[0] != messages.PlayedBeforeQuestion(i18n.EN) {
		t.Fatalf("unexpected replies: %+v", f.out.replies)
	}
}

func TestUnlistedIntentFallsBackToClassifierReply(t *testing.T) {
	// played_before is not in the table for awaiting_service_confirmation.
	f := newFixture(classifier.Result{Intent: classifier.IntentPlayedBefore, Reply: "tell me more"}, nil)
	f.seedUser(types.UserRecord{UserID: 5, ChatID: 50, State: types.StateAwaitingService, ServiceStatus: types.StatusPending, LanguageCode: i18n.EN})

	if err := f.engine.HandleMessage(context.Background(), 5, 50, "???"); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if f.store.users[5].State != types.StateAwaitingService {
		t.Fatalf("state must stay awaiting_service_confirmation, got %s", f.store.users[5].State)
	}
	if len(f.out.replies) != 1 || f.out.replies[0] != "tell me more" {
		t.Fatalf("unexpected replies: %+v", f.out.replies)
	}
}

func TestRegistrationCompleteAsksForID(t *testing.T) {
	f := newFixture(classifier.Result{Intent: classifier.IntentRegistrationComplete}, nil)
	f.seedUser(types.UserRecord{UserID: 6, ChatID: 60, State: types.StateAwaitingRegistration, ServiceStatus: types.StatusPending, LanguageCode: i18n.EN})

	if err := f.engine.HandleMessage(context.Background(), 6, 60, "done"); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if f.store.users[6].State != types.StateAwaitingUserID {
		t.Fatalf("expected awaiting_user_id, got %s", f.store.users[6].State)
	}
	if len(f.out.replies) != 1 || f.out.replies[0] != messages.AskUserID(i18n.EN) {
		t.Fatalf("unexpected replies: %+v", f.out.replies)
	}
}

func TestConfirmedUserNeverRevertsToOnboarding(t *testing.T) {
	f := newFixture(classifier.Result{Intent: classifier.IntentServiceRequest, Reply: "sure"}, nil)
	f.seedUser(types.UserRecord{UserID: 7, ChatID: 70, State: types.StateCompleted, ServiceStatus: types.StatusConfirmed, LanguageCode: i18n.EN})

	if err := f.engine.HandleMessage(context.Background(), 7, 70, "I want the service"); err != nil {
		t.Fatalf("handle: %v", err)
	}

	u := f.store.users[7]
	if u.State != types.StateCompleted || u.ServiceStatus != types.StatusConfirmed {
		t.Fatalf("confirmed user reverted: %s/%s", u.State, u.ServiceStatus)
	}
}

func TestStartResetsUnconvertedUser(t *testing.T) {
	f := newFixture(classifier.Result{}, nil)
	f.seedUser(types.UserRecord{UserID: 8, ChatID: 80, State: types.StateAwaitingRegistration, ServiceStatus: types.StatusPending, ChatMessageCount: 12, LanguageCode: i18n.EN})

	if err := f.engine.HandleStart(context.Background(), 8, 80, "gamer", "Gamer"); err != nil {
		t.Fatalf("start: %v", err)
	}

	u := f.store.users[8]
	if u.State != types.StateAwaitingService {
		t.Fatalf("expected awaiting_service_confirmation, got %s", u.State)
	}
	if u.ChatMessageCount != 0 {
		t.Fatalf("expected reset counter, got %d", u.ChatMessageCount)
	}
	if !u.SubscribedToBroadcast {
		t.Fatal("expected re-subscription on restart")
	}
	if len(f.out.replies) != 1 || f.out.replies[0] != messages.Welcome(i18n.EN) {
		t.Fatalf("unexpected replies: %+v", f.out.replies)
	}
	if f.classifier.calls != 0 {
		t.Fatalf("classifier invoked %d times on a funnel reset", f.classifier.calls)
	}
}

func TestStartForConfirmedUserIsSmallTalk(t *testing.T) {
	f := newFixture(classifier.Result{Intent: classifier.IntentSmallTalk, Reply: "hey again"}, nil)
	f.seedUser(types.UserRecord{UserID: 9, ChatID: 90, State: types.StateCompleted, ServiceStatus: types.StatusConfirmed, ChatMessageCount: 3, LanguageCode: i18n.EN})

	for i := 0; i < 2; i++ {
		if err := f.engine.HandleStart(context.Background(), 9, 90, "gamer", "Gamer"); err != nil {
			t.Fatalf("start #%d: %v", i+1, err)
		}
	}

	u := f.store.users[9]
	if u.State != types.StateCompleted || u.ServiceStatus != types.StatusConfirmed {
		t.Fatalf("confirmed user was reset: %s/%s", u.State, u.ServiceStatus)
	}
	if u.ChatMessageCount != 5 {
		t.Fatalf("expected small-talk counter 5, got %d", u.ChatMessageCount)
	}
	if f.classifier.calls != 2 {
		t.Fatalf("expected 2 classifier calls, got %d", f.classifier.calls)
	}
	for _, r := range f.out.replies {
		if r == messages.Welcome(i18n.EN) {
			t.Fatal("greeting must not be re-sent to a confirmed user")
		}
	}
}

func TestSmallTalkCap(t *testing.T) {
	f := newFixture(classifier.Result{Intent: classifier.IntentSmallTalk, Reply: "chit chat"}, nil)
	f.seedUser(types.UserRecord{UserID: 11, ChatID: 110, State: types.StateCompleted, ServiceStatus: types.StatusConfirmed, ChatMessageCount: 29, LanguageCode: i18n.EN})

	// 30th message still gets a classifier reply and consumes the quota.
	if err := f.engine.HandleMessage(context.Background(), 11, 110, "hello"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := f.store.users[11].ChatMessageCount; got != 30 {
		t.Fatalf("expected counter 30, got %d", got)
	}
	if f.out.replies[len(f.out.replies)-1] != "chit chat" {
		t.Fatalf("expected classifier reply, got %q", f.out.replies[len(f.out.replies)-1])
	}

	// Past the cap: fixed message, counter frozen.
	if err := f.engine.HandleMessage(context.Background(), 11, 110, "hello again"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := f.store.users[11].ChatMessageCount; got != 30 {
		t.Fatalf("counter moved past the cap: %d", got)
	}
	if f.out.replies[len(f.out.replies)-1] != messages.SmallTalkExhausted(i18n.EN) {
		t.Fatalf("expected quota-exhausted reply, got %q", f.out.replies[len(f.out.replies)-1])
	}
}

func TestClassifierFailureDegradesToApology(t *testing.T) {
	f := newFixture(classifier.Result{}, errors.New("network down"))
	f.seedUser(types.UserRecord{UserID: 12, ChatID: 120, State: types.StateAwaitingService, ServiceStatus: types.StatusPending, LanguageCode: i18n.EN})

	if err := f.engine.HandleMessage(context.Background(), 12, 120, "hi"); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(f.out.replies) != 1 || f.out.replies[0] != messages.ClassifierUnavailable(i18n.EN) {
		t.Fatalf("unexpected replies: %+v", f.out.replies)
	}
	if f.store.users[12].State != types.StateAwaitingService {
		t.Fatalf("state changed on classifier failure: %s", f.store.users[12].State)
	}
}

func TestClassifierQuotaGetsDedicatedApology(t *testing.T) {
	f := newFixture(classifier.Result{}, classifier.ErrQuotaExhausted)
	f.seedUser(types.UserRecord{UserID: 13, ChatID: 130, State: types.StateCompleted, ServiceStatus: types.StatusConfirmed, LanguageCode: i18n.EN})

	if err := f.engine.HandleMessage(context.Background(), 13, 130, "hi"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(f.out.replies) != 1 || !strings.Contains(f.out.replies[0], "quota") {
		t.Fatalf("expected quota apology, got %+v", f.out.replies)
	}
}

func TestLanguageDetectionPersistsBeforeReply(t *testing.T) {
	f := newFixture(classifier.Result{Intent: classifier.IntentSmallTalk, Reply: "नमस्ते"}, nil)
	f.seedUser(types.UserRecord{UserID: 14, ChatID: 140, State: types.StateCompleted, ServiceStatus: types.StatusConfirmed, LanguageCode: i18n.EN})

	if err := f.engine.HandleMessage(context.Background(), 14, 140, "नमस्ते"); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if f.store.users[14].LanguageCode != i18n.HI {
		t.Fatalf("language not persisted, got %s", f.store.users[14].LanguageCode)
	}
}

func TestEmptyMessageIsIgnored(t *testing.T) {
	f := newFixture(classifier.Result{}, nil)

	if err := f.engine.HandleMessage(context.Background(), 15, 150, ""); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(f.store.chatLog) != 0 || f.classifier.calls != 0 || len(f.out.replies) != 0 {
		t.Fatalf("empty input caused side effects: log=%d calls=%d replies=%d",
			len(f.store.chatLog), f.classifier.calls, len(f.out.replies))
	}
}

func TestReminderFiresOnlyWhileStillAwaitingRegistration(t *testing.T) {
	f := newFixture(classifier.Result{}, nil)
	f.seedUser(types.UserRecord{UserID: 16, ChatID: 160, State: types.StateAwaitingRegistration, ServiceStatus: types.StatusPending, LanguageCode: i18n.EN})

	job := &types.ReminderJob{ID: "r1", UserID: 16, ChatID: 160, FireAt: time.Now()}
	if err := f.engine.HandleReminder(context.Background(), job); err != nil {
		t.Fatalf("reminder: %v", err)
	}
	if len(f.out.replies) != 1 || f.out.replies[0] != messages.RegistrationReminder(i18n.EN) {
		t.Fatalf("expected nudge, got %+v", f.out.replies)
	}

	// User moved on: the stale job is a no-op.
	f.seedUser(types.UserRecord{UserID: 17, ChatID: 170, State: types.StateCompleted, ServiceStatus: types.StatusConfirmed, LanguageCode: i18n.EN})
	before := len(f.out.replies)
	if err := f.engine.HandleReminder(context.Background(), &types.ReminderJob{ID: "r2", UserID: 17, ChatID: 170}); err != nil {
		t.Fatalf("stale reminder: %v", err)
	}
	if len(f.out.replies) != before {
		t.Fatalf("stale reminder produced a send: %+v", f.out.replies)
	}
}

func TestConfirmServiceCallback(t *testing.T) {
	f := newFixture(classifier.Result{}, nil)
	f.seedUser(types.UserRecord{UserID: 18, ChatID: 180, State: types.StateAwaitingService, ServiceStatus: types.StatusPending, LanguageCode: i18n.EN})

	if err := f.engine.ConfirmService(context.Background(), 18, 180); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	u := f.store.users[18]
	if u.State != types.StateCompleted || u.ServiceStatus != types.StatusConfirmed {
		t.Fatalf("expected completed/confirmed, got %s/%s", u.State, u.ServiceStatus)
	}
	if f.out.offers != 1 {
		t.Fatalf("expected 1 service offer, got %d", f.out.offers)
	}
}

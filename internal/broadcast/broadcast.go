package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rocketwin/funnel-bot/internal/messages"
	"github.com/rocketwin/funnel-bot/types"
)

const (
	leaderboardRows = 10
	pseudoIDDigits  = 9
	roundIDDigits   = 16

	minLeaderboardDelay = 60 * time.Second
	maxLeaderboardDelay = 120 * time.Second
)

// Pusher delivers broadcast messages. A blocked recipient surfaces as
// types.ErrBlocked; anything else is transient.
type Pusher interface {
	Push(ctx context.Context, chatID int64, text string) error
}

type Config struct {
	MaxPushMessages int
}

// Broadcaster runs the two-phase promotional round: a shared-multiplier
// teaser to every eligible user, a randomized pause, then a synthetic
// leaderboard to the users who actually received the teaser.
type Broadcaster struct {
	store types.UserStore
	out   Pusher
	cfg   Config

	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration)

	// roundMu guards against overlapping rounds; the timer period is
	// expected to dominate the in-round delay, but that is not relied on.
	roundMu sync.Mutex
}

func New(store types.UserStore, out Pusher, cfg Config) *Broadcaster {
	return &Broadcaster{
		store: store,
		out:   out,
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep: sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Run executes one broadcast round.
func (b *Broadcaster) Run(ctx context.Context) error {
	if !b.roundMu.TryLock() {
		log.Println("Broadcast round already in flight, skipping")
		return nil
	}
	defer b.roundMu.Unlock()

	users, err := b.store.ListBroadcastable(ctx, b.cfg.MaxPushMessages)
	if err != nil {
		return fmt.Errorf("list broadcastable users: %w", err)
	}
	if len(users) == 0 {
		log.Println("No eligible broadcast users, round over")
		return nil
	}

	multiplier := b.multiplier()

	var recipients []types.UserRecord
	for _, u := range users {
		err := b.out.Push(ctx, u.ChatID, messages.BroadcastTeaser(u.LanguageCode, multiplier))
		switch {
		case errors.Is(err, types.ErrBlocked):
			log.Printf("User %d (%d) has blocked the bot, unsubscribing", u.UserID, u.ChatID)
			if perr := b.store.PatchUser(ctx, u.UserID, unsubscribePatch()); perr != nil {
				log.Printf("Failed to unsubscribe user %d: %v", u.UserID, perr)
			}
		case err != nil:
			log.Printf("Teaser send to %d failed: %v", u.ChatID, err)
		default:
			recipients = append(recipients, u)
		}
	}

	for _, u := range recipients {
		if err := b.store.IncrementPushCount(ctx, u.UserID); err != nil {
			log.Printf("Failed to bump push count for user %d: %v", u.UserID, err)
		}
	}
	log.Printf("Push count bumped for %d users", len(recipients))

	delay := minLeaderboardDelay + time.Duration(b.rng.Int63n(int64(maxLeaderboardDelay-minLeaderboardDelay)+1))
	log.Printf("Waiting %s before the leaderboard", delay)
	b.sleep(ctx, delay)

	if len(recipients) == 0 {
		log.Println("No teaser recipients, leaderboard not sent")
		return nil
	}

	roundID := b.randomDigits(roundIDDigits)
	rows := b.leaderboardRows()

	for _, u := range recipients {
		// Language preference may have changed mid-round; subscription
		// state is deliberately not re-checked.
		lang := u.LanguageCode
		if fresh, err := b.store.GetUser(ctx, u.UserID); err == nil {
			lang = fresh.LanguageCode
		}
		if err := b.out.Push(ctx, u.ChatID, messages.Leaderboard(lang, roundID, multiplier, rows)); err != nil {
			log.Printf("Leaderboard send to %d failed: %v", u.ChatID, err)
		}
	}

	log.Println("Broadcast round finished")
	return nil
}

func unsubscribePatch() types.UserPatch {
	unsubscribed := false
	return types.UserPatch{SubscribedToBroadcast: &unsubscribed}
}

// multiplier draws from a weighted piecewise-uniform distribution: the
// low range wins 80 of 100 draws, the extreme tail 1.
func (b *Broadcaster) multiplier() string {
	ranges := [][2]float64{
		{2.34, 5.67},
		{5.67, 6.78},
		{6.78, 12.34},
		{12.34, 99.99},
	}
	weights := []int{80, 15, 4, 1}

	pick := b.rng.Intn(100)
	chosen := ranges[len(ranges)-1]
	for i, w := range weights {
		if pick < w {
			chosen = ranges[i]
			break
		}
		pick -= w
	}

	v := chosen[0] + b.rng.Float64()*(chosen[1]-chosen[0])
	return fmt.Sprintf("%.2f", v)
}

func (b *Broadcaster) randomDigits(n int) string {
	digits := make([]byte, n)
	for i := range digits {
		digits[i] = byte('0' + b.rng.Intn(10))
	}
	return string(digits)
}

// leaderboardRows fabricates ten payout entries, highest first. Payouts
// are multiples of 5 in [500, 1000].
func (b *Broadcaster) leaderboardRows() []messages.LeaderboardRow {
	rows := make([]messages.LeaderboardRow, 0, leaderboardRows)
	for i := 0; i < leaderboardRows; i++ {
		rows = append(rows, messages.LeaderboardRow{
			PseudoID: b.randomDigits(pseudoIDDigits),
			Payout:   500 + 5*b.rng.Intn(101),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Payout > rows[j].Payout })
	return rows
}

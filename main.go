package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/robfig/cron/v3"

	"github.com/rocketwin/funnel-bot/internal/broadcast"
	"github.com/rocketwin/funnel-bot/internal/classifier"
	"github.com/rocketwin/funnel-bot/internal/config"
	"github.com/rocketwin/funnel-bot/internal/engine"
	"github.com/rocketwin/funnel-bot/internal/handlers"
	"github.com/rocketwin/funnel-bot/internal/middleware"
	"github.com/rocketwin/funnel-bot/internal/scheduler"
	"github.com/rocketwin/funnel-bot/internal/sender"
	"github.com/rocketwin/funnel-bot/store"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	rdb, err := store.NewRedisClient(cfg.RedisAddr(), cfg.RedisPassword, cfg.RedisDB, "funnel_bot")
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	reminderStore := store.NewRedisReminderStore(rdb, 24)

	pgStore, err := store.NewPostgresStore(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgStore.Close()

	intentClassifier, err := classifier.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.ProxyURL)
	if err != nil {
		log.Fatalf("Failed to build classifier: %v", err)
	}

	httpClient := &http.Client{
		Timeout: 10 * time.Minute,
	}
	pollTimeout := 50 * time.Second

	b, err := bot.New(
		cfg.TelegramBotToken,
		bot.WithHTTPClient(pollTimeout, httpClient),
	)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	out := sender.New(b, pgStore)
	eng := engine.New(pgStore, reminderStore, intentClassifier, out, cfg.MaxSmallTalkMessages, cfg.ReminderDelay())

	reminderScheduler := scheduler.NewScheduler(reminderStore, eng, scheduler.Config{
		Workers: 3,
	})
	reminderScheduler.Start()
	defer reminderScheduler.Stop()

	broadcaster := broadcast.New(pgStore, out, broadcast.Config{
		MaxPushMessages: cfg.MaxPushMessages,
	})

	c := cron.New(cron.WithLocation(cfg.Location()))
	interval := cfg.BroadcastInterval()
	_, err = c.AddFunc("@every "+interval.String(), func() {
		if err := broadcaster.Run(ctx); err != nil {
			log.Printf("Broadcast round failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule broadcast: %v", err)
	}
	c.Start()
	defer c.Stop()
	log.Printf("Broadcast scheduled every %s", interval)

	h := handlers.NewHandlers(eng, pgStore)

	middlewares := middleware.NewUpdateClassifier()
	handlerChain := middlewares.ClassifyUpdateMiddleware(h.MainHandler)

	b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
		return update.Message != nil
	}, handlerChain)

	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, handlerChain)

	log.Println("Bot started. Press Ctrl+C to stop.")
	b.Start(ctx)
}

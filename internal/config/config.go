package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN,required"`

	// Classifier
	OpenAIAPIKey  string `env:"OPENAI_API_KEY,required"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	ProxyURL      string `env:"PROXY_URL"`

	// Storage
	PostgresDSN   string `env:"POSTGRES_DSN"`
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     string `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Funnel behavior
	MaxSmallTalkMessages int    `env:"MAX_SMALL_TALK_MESSAGES" envDefault:"30"`
	DailyBroadcastCount  int    `env:"DAILY_BROADCAST_COUNT" envDefault:"30"`
	MaxPushMessages      int    `env:"MAX_PUSH_MESSAGES" envDefault:"50"`
	ReminderDelaySeconds int    `env:"REMINDER_DELAY_SECONDS" envDefault:"120"`
	Timezone             string `env:"TIMEZONE" envDefault:"Asia/Kolkata"`
}

func New() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.DailyBroadcastCount <= 0 {
		return nil, fmt.Errorf("DAILY_BROADCAST_COUNT must be positive, got %d", cfg.DailyBroadcastCount)
	}
	return cfg, nil
}

// BroadcastInterval derives the round period from the daily count.
func (c *Config) BroadcastInterval() time.Duration {
	return 24 * time.Hour / time.Duration(c.DailyBroadcastCount)
}

func (c *Config) ReminderDelay() time.Duration {
	return time.Duration(c.ReminderDelaySeconds) * time.Second
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil || loc == nil {
		return time.UTC
	}
	return loc
}

func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

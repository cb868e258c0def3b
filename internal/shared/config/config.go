package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the engine tunables. Database connection settings stay in
// the db package (same env vars as always), this covers everything else.
type Config struct {
	HTTPAddr string

	// Scheduler timing. PollInterval bounds how long after ends_at an
	// auction stays open; ClosingGrace is how long an auction may sit in
	// closing before the scheduler retries finalizing it.
	PollInterval time.Duration
	ClosingGrace time.Duration

	// ArbiterLockWait is the maximum time a bid waits for the per-auction
	// lock before surfacing a try-again error.
	ArbiterLockWait time.Duration

	// IdempotencyWindow is the TTL for client idempotency tokens.
	IdempotencyWindow time.Duration

	// SendQueueSize bounds the per-connection outbound event queue.
	SendQueueSize int

	// RedisAddr enables the idempotency cache when set.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// NotifyWebhookURL enables the webhook outcome sender when set.
	NotifyWebhookURL string
}

// Load reads configuration from the environment, .env file included.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":9000"),
		PollInterval:      getDuration("SCHEDULER_POLL_INTERVAL", time.Second),
		ClosingGrace:      getDuration("SCHEDULER_CLOSING_GRACE", 30*time.Second),
		ArbiterLockWait:   getDuration("ARBITER_LOCK_WAIT", 2*time.Second),
		IdempotencyWindow: getDuration("IDEMPOTENCY_WINDOW", time.Minute),
		SendQueueSize:     getInt("WS_SEND_QUEUE_SIZE", 64),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getInt("REDIS_DB", 0),
		NotifyWebhookURL:  os.Getenv("NOTIFY_WEBHOOK_URL"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

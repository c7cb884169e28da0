// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing or malformed, Load returns an
// error and the process exits.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Cache backends for match-score entries.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all runtime configuration for the match service.
type Config struct {
	Port                 string `validate:"required,numeric"`
	DatabaseURL          string `validate:"required"`
	RedisURL             string `validate:"required"`
	LogLevel             string `validate:"omitempty,oneof=debug info warn warning error"`
	CacheBackend         string `validate:"oneof=postgres redis"`
	RecomputeSchedule    string
	RecomputeConcurrency int    `validate:"min=1,max=64"`
	EventsChannelPrefix  string `validate:"required"`
}

// Load reads environment variables (and a .env file when present) and
// returns a validated Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	concurrency, err := intEnv("RECOMPUTE_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                 envOr("MATCH_PORT", "8083"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisURL:             os.Getenv("REDIS_URL"),
		LogLevel:             envOr("LOG_LEVEL", "info"),
		CacheBackend:         envOr("MATCH_CACHE_BACKEND", BackendPostgres),
		RecomputeSchedule:    os.Getenv("RECOMPUTE_SCHEDULE"),
		RecomputeConcurrency: concurrency,
		EventsChannelPrefix:  envOr("EVENTS_CHANNEL_PREFIX", "interninsight"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

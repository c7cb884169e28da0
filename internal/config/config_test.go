package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interninsight/match-service/internal/config"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/match")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("MATCH_PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("MATCH_CACHE_BACKEND", "")
	t.Setenv("RECOMPUTE_SCHEDULE", "")
	t.Setenv("RECOMPUTE_CONCURRENCY", "")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, config.BackendPostgres, cfg.CacheBackend)
	assert.Equal(t, 4, cfg.RecomputeConcurrency)
	assert.Empty(t, cfg.RecomputeSchedule)
	assert.Equal(t, "interninsight", cfg.EventsChannelPrefix)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_MissingRedisURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/match")
	t.Setenv("REDIS_URL", "")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	setRequired(t)
	t.Setenv("MATCH_CACHE_BACKEND", "mongo")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_RejectsBadConcurrency(t *testing.T) {
	setRequired(t)

	t.Setenv("RECOMPUTE_CONCURRENCY", "many")
	_, err := config.Load()
	assert.Error(t, err)

	t.Setenv("RECOMPUTE_CONCURRENCY", "0")
	_, err = config.Load()
	assert.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("MATCH_PORT", "9090")
	t.Setenv("MATCH_CACHE_BACKEND", "redis")
	t.Setenv("RECOMPUTE_SCHEDULE", "@every 6h")
	t.Setenv("RECOMPUTE_CONCURRENCY", "8")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, config.BackendRedis, cfg.CacheBackend)
	assert.Equal(t, "@every 6h", cfg.RecomputeSchedule)
	assert.Equal(t, 8, cfg.RecomputeConcurrency)
	assert.Equal(t, "debug", cfg.LogLevel)
}

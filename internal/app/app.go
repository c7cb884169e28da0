// Package app builds the match service's component graph from a Config.
// Both the HTTP service and the operator CLI start here.
package app

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"interninsight/match-service/internal/config"
	"interninsight/match-service/internal/db"
	"interninsight/match-service/internal/events"
	"interninsight/match-service/internal/feedback"
	"interninsight/match-service/internal/geo"
	"interninsight/match-service/internal/logging"
	"interninsight/match-service/internal/matchscore"
	"interninsight/match-service/internal/preference"
	"interninsight/match-service/internal/recommend"
	"interninsight/match-service/internal/reputation"
	"interninsight/match-service/internal/skills"
	"interninsight/match-service/internal/store"
	"interninsight/match-service/internal/store/postgres"
	"interninsight/match-service/internal/store/redisstore"
)

// App holds the connected clients and every service.
type App struct {
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Postgres *postgres.Store
	Store    store.Store

	Recommend  *recommend.Service
	Scores     *matchscore.Manager
	Profiles   *preference.Service
	Reputation *reputation.Service
	Feedback   *feedback.Service
	Events     *events.Publisher

	log *logging.Logger
}

// New connects to Postgres and Redis and wires the services. The caller
// owns the returned App and must Close it.
func New(ctx context.Context, cfg *config.Config, log *logging.Logger) (*App, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	log.Info("connecting to postgres")
	pool, err := db.NewPostgresPool(connectCtx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns:        int32(cfg.RecomputeConcurrency) + 8,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
	})
	if err != nil {
		return nil, err
	}

	log.Info("connecting to redis")
	rdb, err := db.NewRedisClient(connectCtx, cfg.RedisURL)
	if err != nil {
		pool.Close()
		return nil, err
	}

	pg := postgres.New(pool, log.With("component", "postgres"))
	var st store.Store = pg
	if cfg.CacheBackend == config.BackendRedis {
		st = store.WithMatchScores(pg, redisstore.New(rdb, cfg.EventsChannelPrefix+":matchscore"))
	}
	log.Info("stores ready", "match_score_backend", cfg.CacheBackend)

	a := &App{Pool: pool, Redis: rdb, Postgres: pg, Store: st, log: log}
	a.wire(ctx, cfg)
	return a, nil
}

func (a *App) wire(ctx context.Context, cfg *config.Config) {
	table := skills.DefaultSynonyms()
	if extra, err := a.Store.Synonyms(ctx); err != nil {
		a.log.Warn("stored synonyms unavailable, using defaults", "err", err)
	} else if len(extra) > 0 {
		table = table.Merge(skills.NewSynonymTable(extra))
	}
	norm := skills.NewNormalizer(table, a.log.With("component", "skills"))
	oracle := geo.DefaultOracle()

	a.Recommend = recommend.NewService(a.Store,
		recommend.NewScorer(norm, oracle, a.log.With("component", "scorer")),
		a.log.With("component", "recommend"))
	a.Scores = matchscore.NewManager(a.Store, a.Recommend, oracle, a.log.With("component", "matchscore")).
		WithConcurrency(cfg.RecomputeConcurrency)
	a.Profiles = preference.NewService(a.Store, preference.NewBuilder(norm, oracle), a.log.With("component", "preference"))
	a.Reputation = reputation.NewService(a.Store, a.log.With("component", "reputation"))
	a.Events = events.NewPublisher(a.Redis, cfg.EventsChannelPrefix)
	a.Feedback = feedback.NewService(a.Store, a.Profiles, a.Reputation, a.Scores, a.Events, a.log.With("component", "feedback"))
}

// Close releases the Redis client and the Postgres pool.
func (a *App) Close() {
	if err := a.Redis.Close(); err != nil {
		a.log.Warn("redis close failed", "err", err)
	}
	a.Pool.Close()
}

// interninsight match-service
//
// Scoring, ranking and caching for internship matching.
// Exposes a REST API used by the Gateway to implement:
//   - personalised internship recommendations and similar internships
//   - candidate × company match scores (cached, lazily computed)
//   - like / dislike / review hooks that keep profiles, reputation and
//     cached scores current
//
// Publishes EVENT_MATCH_SCORES_UPDATED and EVENT_REPUTATION_UPDATED to Redis
// for Gateway SSE forward.
// With RECOMPUTE_SCHEDULE set, a cron sweep recomputes every cached score.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"interninsight/match-service/internal/api"
	"interninsight/match-service/internal/app"
	"interninsight/match-service/internal/config"
	"interninsight/match-service/internal/logging"
	"interninsight/match-service/internal/scheduler"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[match-service] config error: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel).With("service", "match-service", "version", version)
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Stores and services ─────────────────────────────────────────────────
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	// ── Scheduler (optional) ────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.RecomputeSchedule != "" {
		sched = scheduler.New(a.Store, a.Scores, cfg.RecomputeSchedule, log.With("component", "scheduler"))
		if err := sched.Start(ctx); err != nil {
			log.Error("scheduler start failed", "err", err)
			os.Exit(1)
		}
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)

	h := api.NewHandler(a.Recommend, a.Scores, a.Feedback, a.Profiles, a.Reputation, log.With("component", "api"))
	h.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info("listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown error", "err", err)
	}
	cancel()
	if sched != nil {
		sched.Stop()
	}
	log.Info("stopped")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "match-service",
		"version": version,
	})
}

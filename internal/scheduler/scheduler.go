// Package scheduler wires up the optional cron job that periodically
// recomputes every cached match score, company by company.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"interninsight/match-service/internal/logging"
)

// Source lists the companies that have cached scores.
type Source interface {
	CompaniesWithMatchScores(ctx context.Context) ([]string, error)
}

// Recalculator recomputes the cached scores of one company.
type Recalculator interface {
	RecalculateAllUsersForCompany(ctx context.Context, companyID string) (int, error)
}

// Scheduler wraps robfig/cron and manages the recompute sweep.
type Scheduler struct {
	cron   *cron.Cron
	source Source
	recalc Recalculator
	spec   string // cron spec, e.g. "@every 6h" or "0 3 * * *"
	log    *logging.Logger

	mu      sync.Mutex
	running bool
}

// New creates a Scheduler firing on spec.
func New(source Source, recalc Recalculator, spec string, log *logging.Logger) *Scheduler {
	if log == nil {
		log = logging.Nop()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cronLogger{log}))),
		source: source,
		recalc: recalc,
		spec:   spec,
		log:    log,
	}
}

// Start registers the sweep and starts the scheduler. Nothing runs until
// the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.Sweep(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.cron.Start()
	s.log.Info("recompute cron started", "spec", s.spec)
	return nil
}

// Stop shuts the scheduler down and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("recompute cron stopped")
}

// Sweep recomputes every company with cached scores and returns the number
// of entries saved. Overlapping sweeps are skipped.
func (s *Scheduler) Sweep(ctx context.Context) int {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("recompute sweep still running, tick skipped")
		return 0
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	companies, err := s.source.CompaniesWithMatchScores(ctx)
	if err != nil {
		s.log.Error("list companies failed", "err", err)
		return 0
	}
	if len(companies) == 0 {
		s.log.Debug("no cached scores, nothing to recompute")
		return 0
	}

	s.log.Info("recompute sweep started", "companies", len(companies))
	total := 0
	for _, id := range companies {
		if ctx.Err() != nil {
			s.log.Warn("recompute sweep cancelled", "done", total)
			return total
		}
		n, err := s.recalc.RecalculateAllUsersForCompany(ctx, id)
		total += n
		if err != nil {
			s.log.Error("recompute failed", "company_id", id, "err", err)
		}
	}
	s.log.Info("recompute sweep complete", "updated", total)
	return total
}

// cronLogger adapts the service logger to cron.Logger.
type cronLogger struct{ l *logging.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "err", err)...)
}

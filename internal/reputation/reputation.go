// Package reputation aggregates every candidate's company likes and
// dislikes into a global sentiment score per company.
package reputation

import (
	"context"
	"fmt"
	"time"

	"interninsight/match-service/internal/logging"
	"interninsight/match-service/internal/model"
	"interninsight/match-service/internal/store"
)

const (
	neutral      = 50.0
	voteSpan     = 40.0
	maxReasonAdj = 8.0
	minReasonDiv = 3.0
)

// Build aggregates a company's interactions into a reputation record.
// Records targeting anything but companyID are ignored.
func Build(companyID string, interactions []model.InteractionRecord, now time.Time) model.ReputationRecord {
	var (
		counts    model.Counts
		reasonNet float64
		reasonN   int
	)
	for _, rec := range interactions {
		if rec.TargetKind != model.TargetCompany || rec.TargetID != companyID {
			continue
		}
		switch rec.Interaction.Kind {
		case model.Like:
			counts.Likes++
		case model.Dislike:
			counts.Dislikes++
		}
		for _, tag := range rec.Interaction.Reasons {
			if w, ok := model.CompanyTagWeight(tag); ok {
				reasonNet += w
				reasonN++
			}
		}
	}
	counts.Total = counts.Likes + counts.Dislikes

	score := baseScore(counts.Likes, counts.Dislikes)
	if reasonN > 0 {
		x := model.Clamp(reasonNet/max(minReasonDiv, float64(reasonN)), -1, 1)
		score += x * maxReasonAdj
	}

	return model.ReputationRecord{
		CompanyID: companyID,
		UpdatedAt: now,
		Counts:    counts,
		Score:     model.Round(model.ClampScore(score), 2),
	}
}

func baseScore(likes, dislikes int) float64 {
	total := likes + dislikes
	if total == 0 {
		return neutral
	}
	sentiment := float64(likes-dislikes) / float64(total)
	return model.ClampScore(neutral + sentiment*voteSpan)
}

// Store is the persistence the aggregator needs.
type Store interface {
	Interactions(ctx context.Context, f store.InteractionFilter) ([]model.InteractionRecord, error)
	store.ReputationStore
}

// ─── Service ─────────────────────────────────────────────────────────────────

// Service rebuilds stored reputation records.
type Service struct {
	store Store
	log   *logging.Logger
	now   func() time.Time
}

// NewService returns a configured Service.
func NewService(st Store, log *logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{store: st, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// RebuildAndSave recomputes the company's record from all current company
// interactions and upserts it.
func (s *Service) RebuildAndSave(ctx context.Context, companyID string) (*model.ReputationRecord, error) {
	recs, err := s.store.Interactions(ctx, store.InteractionFilter{
		TargetKind: model.TargetCompany,
		TargetIDs:  []string{companyID},
	})
	if err != nil {
		return nil, fmt.Errorf("rebuildReputation interactions: %w", err)
	}

	rec := Build(companyID, recs, s.now())
	if err := s.store.SaveReputation(ctx, rec); err != nil {
		return nil, fmt.Errorf("rebuildReputation save: %w", err)
	}
	s.log.Debug("reputation rebuilt", "company_id", companyID, "score", rec.Score, "votes", rec.Counts.Total)
	return &rec, nil
}

// Load returns the stored record for companyID.
func (s *Service) Load(ctx context.Context, companyID string) (*model.ReputationRecord, error) {
	rec, err := s.store.Reputation(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("loadReputation: %w", err)
	}
	return rec, nil
}

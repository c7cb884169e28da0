package matchscore

import (
	"context"
	"fmt"

	"interninsight/match-service/internal/model"
	"interninsight/match-service/internal/store"
)

// EventType is the kind of company action that moves other users' scores.
type EventType string

const (
	EventLike    EventType = "like"
	EventDislike EventType = "dislike"
	EventReview  EventType = "review"
)

// GlobalEvent is one user's action on a company. Rating is only read for
// reviews; ExcludeCandidateID is the actor, whose entry is recomputed
// exactly instead.
type GlobalEvent struct {
	CompanyID          string
	Type               EventType
	Rating             float64
	ExcludeCandidateID string
}

// GlobalImpact reports the delta applied and how many entries it touched.
type GlobalImpact struct {
	Impact   float64 `json:"impact"`
	Affected int     `json:"affected"`
}

// Impact returns the undamped delta of an event: ±2 for likes and
// dislikes, +3 / 0 / −3 for good, neutral and poor reviews, 0 otherwise.
func Impact(t EventType, rating float64) float64 {
	switch t {
	case EventLike:
		return 2
	case EventDislike:
		return -2
	case EventReview:
		switch {
		case rating <= 0:
			return 0
		case rating >= 4:
			return 3
		case rating >= 3:
			return 0
		default:
			return -3
		}
	}
	return 0
}

// Damping shrinks an individual event's weight as a company collects
// reviews.
func Damping(reviewCount int) float64 {
	switch {
	case reviewCount > 50:
		return 0.3
	case reviewCount > 20:
		return 0.5
	case reviewCount > 10:
		return 0.7
	}
	return 1
}

// ApplyGlobalImpact shifts every cached entry of the company except the
// actor's by the damped event delta, keeping scores within [0,100]. A zero
// delta changes nothing.
func (m *Manager) ApplyGlobalImpact(ctx context.Context, ev GlobalEvent) (GlobalImpact, error) {
	impact := Impact(ev.Type, ev.Rating)
	if impact == 0 {
		return GlobalImpact{}, nil
	}

	n, err := m.store.ReviewCount(ctx, ev.CompanyID)
	switch {
	case err == nil:
		impact *= Damping(n)
	case store.IsUnavailable(err):
		return GlobalImpact{}, fmt.Errorf("applyGlobalImpact reviewCount: %w", err)
	default:
		m.log.Warn("review count unavailable, impact undamped", "company_id", ev.CompanyID, "err", err)
	}
	impact = model.Round(impact, 2)

	affected, err := m.store.IncrementMatchScores(ctx, ev.CompanyID, impact, ev.ExcludeCandidateID)
	if err != nil {
		return GlobalImpact{}, fmt.Errorf("applyGlobalImpact increment: %w", err)
	}
	m.log.Debug("global impact applied",
		"company_id", ev.CompanyID, "type", string(ev.Type), "impact", impact, "affected", affected)
	return GlobalImpact{Impact: impact, Affected: affected}, nil
}

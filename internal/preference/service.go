package preference

import (
	"context"
	"errors"
	"fmt"

	"interninsight/match-service/internal/logging"
	"interninsight/match-service/internal/model"
	"interninsight/match-service/internal/store"
)

// Store is the persistence the preference service needs.
type Store interface {
	Interactions(ctx context.Context, f store.InteractionFilter) ([]model.InteractionRecord, error)
	Postings(ctx context.Context, f store.PostingFilter) ([]model.InternshipPosting, error)
	store.ProfileStore
}

// ─── Service ─────────────────────────────────────────────────────────────────

// Service rebuilds and loads stored preference profiles.
type Service struct {
	store   Store
	builder *Builder
	log     *logging.Logger
}

// NewService returns a configured Service.
func NewService(st Store, b *Builder, log *logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{store: st, builder: b, log: log}
}

// RebuildAndSave recomputes the candidate's profile from every internship
// interaction they currently hold and replaces the stored profile.
func (s *Service) RebuildAndSave(ctx context.Context, candidateID string) (*model.PreferenceProfile, error) {
	recs, err := s.store.Interactions(ctx, store.InteractionFilter{
		CandidateID: candidateID,
		TargetKind:  model.TargetInternship,
	})
	if err != nil {
		return nil, fmt.Errorf("rebuildPreference interactions: %w", err)
	}

	postings := make(map[string]model.InternshipPosting)
	if len(recs) > 0 {
		ids := make([]string, 0, len(recs))
		for _, r := range recs {
			ids = append(ids, r.TargetID)
		}
		ps, err := s.store.Postings(ctx, store.PostingFilter{IDs: ids})
		if err != nil {
			return nil, fmt.Errorf("rebuildPreference postings: %w", err)
		}
		for _, p := range ps {
			postings[p.InternshipID] = p
		}
	}

	p := s.builder.Build(candidateID, recs, postings)
	if err := s.store.SavePreferenceProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("rebuildPreference save: %w", err)
	}
	s.log.Debug("preference profile rebuilt",
		"candidate_id", candidateID, "interactions", p.Counts.Total, "strength", p.Strength)
	return &p, nil
}

// Load returns the stored profile, or nil when the candidate has none.
func (s *Service) Load(ctx context.Context, candidateID string) (*model.PreferenceProfile, error) {
	p, err := s.store.PreferenceProfile(ctx, candidateID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loadPreference: %w", err)
	}
	return p, nil
}

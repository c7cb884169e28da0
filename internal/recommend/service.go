package recommend

import (
	"context"
	"errors"
	"fmt"

	"interninsight/match-service/internal/logging"
	"interninsight/match-service/internal/model"
	"interninsight/match-service/internal/store"
)

// Store is the persistence the recommendation service reads from.
type Store interface {
	store.Reader
	PreferenceProfile(ctx context.Context, candidateID string) (*model.PreferenceProfile, error)
	ReputationScores(ctx context.Context) (map[string]float64, error)
}

// ─── Service ─────────────────────────────────────────────────────────────────

// Service loads candidates, postings and signals from the store and runs
// the Scorer over them.
type Service struct {
	store  Store
	scorer *Scorer
	log    *logging.Logger
}

// NewService returns a configured Service.
func NewService(st Store, scorer *Scorer, log *logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{store: st, scorer: scorer, log: log}
}

// ForCandidate ranks every posting for the candidate.
func (s *Service) ForCandidate(ctx context.Context, candidateID string, opts Options) ([]Recommendation, error) {
	c, err := s.store.Candidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("recommend candidate: %w", err)
	}
	postings, err := s.store.Postings(ctx, store.PostingFilter{})
	if err != nil {
		return nil, fmt.Errorf("recommend postings: %w", err)
	}
	sig, err := s.LoadSignals(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if sig.CompanyAliases, err = s.companyAliases(ctx, postings); err != nil {
		return nil, err
	}
	return s.scorer.Recommend(*c, postings, opts, sig), nil
}

// InternshipMatch scores one posting for the candidate, unfiltered.
func (s *Service) InternshipMatch(ctx context.Context, candidateID, internshipID string) (*Recommendation, error) {
	c, err := s.store.Candidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("internshipMatch candidate: %w", err)
	}
	p, err := s.store.Posting(ctx, internshipID)
	if err != nil {
		return nil, fmt.Errorf("internshipMatch posting: %w", err)
	}
	sig, err := s.LoadSignals(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if sig.CompanyAliases, err = s.companyAliases(ctx, []model.InternshipPosting{*p}); err != nil {
		return nil, err
	}
	rec := s.scorer.Match(*c, *p, sig)
	return &rec, nil
}

// InternshipScores returns the candidate's match score for each of the
// given postings. Postings that no longer exist are left out.
func (s *Service) InternshipScores(ctx context.Context, candidateID string, internshipIDs []string) (map[string]float64, error) {
	if len(internshipIDs) == 0 {
		return map[string]float64{}, nil
	}
	g, err := s.LoadGlobalSignals(ctx)
	if err != nil {
		return nil, err
	}
	return s.internshipScores(ctx, g, candidateID, internshipIDs)
}

// PinGlobals loads the global signals once and returns an InternshipScores
// that reuses them, for sweeps that score many candidates in a row.
func (s *Service) PinGlobals(ctx context.Context) (func(ctx context.Context, candidateID string, internshipIDs []string) (map[string]float64, error), error) {
	g, err := s.LoadGlobalSignals(ctx)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, candidateID string, internshipIDs []string) (map[string]float64, error) {
		return s.internshipScores(ctx, g, candidateID, internshipIDs)
	}, nil
}

func (s *Service) internshipScores(ctx context.Context, g GlobalSignals, candidateID string, internshipIDs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(internshipIDs))
	if len(internshipIDs) == 0 {
		return out, nil
	}
	c, err := s.store.Candidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("internshipScores candidate: %w", err)
	}
	postings, err := s.store.Postings(ctx, store.PostingFilter{IDs: internshipIDs})
	if err != nil {
		return nil, fmt.Errorf("internshipScores postings: %w", err)
	}
	sig, err := s.candidateSignals(ctx, g, candidateID)
	if err != nil {
		return nil, err
	}
	if sig.CompanyAliases, err = s.companyAliases(ctx, postings); err != nil {
		return nil, err
	}
	for _, p := range postings {
		out[p.InternshipID] = s.scorer.Match(*c, p, sig).MatchScore
	}
	return out, nil
}

// Similar ranks other postings against internshipID by treating the base
// posting as a candidate profile.
func (s *Service) Similar(ctx context.Context, internshipID string, topN int) ([]Recommendation, error) {
	all, err := s.store.Postings(ctx, store.PostingFilter{})
	if err != nil {
		return nil, fmt.Errorf("similar postings: %w", err)
	}

	var base *model.InternshipPosting
	pool := make([]model.InternshipPosting, 0, len(all))
	for i := range all {
		if all[i].InternshipID == internshipID {
			base = &all[i]
			continue
		}
		pool = append(pool, all[i])
	}
	if base == nil {
		return nil, fmt.Errorf("similar %s: %w", internshipID, store.ErrNotFound)
	}

	pseudo := model.CandidateProfile{
		SkillsPossessed:    base.SkillsRequired,
		LocationPreference: base.Location,
	}
	if sec := lower(base.Sector); sec != "" {
		pseudo.SectorInterests = []string{sec}
	}
	opts := Options{TopN: topN, Weights: SimilarWeights, DedupeOrg: true}
	return s.scorer.Recommend(pseudo, pool, opts, Signals{}), nil
}

// GlobalSignals are the company-wide aggregates shared by every candidate.
type GlobalSignals struct {
	CompanyStats   map[string]model.InteractionStats
	CompanyReasons map[string]model.ReasonStats
	CompanyRatings map[string]float64
	Reputation     map[string]float64
}

// LoadSignals gathers everything beyond the candidate and postings that a
// score depends on. Missing optional signals are logged and skipped; only
// an unreachable store fails the call.
func (s *Service) LoadSignals(ctx context.Context, candidateID string) (Signals, error) {
	g, err := s.LoadGlobalSignals(ctx)
	if err != nil {
		return Signals{}, err
	}
	return s.candidateSignals(ctx, g, candidateID)
}

// LoadGlobalSignals reads the company-wide aggregates.
func (s *Service) LoadGlobalSignals(ctx context.Context) (GlobalSignals, error) {
	var (
		sig GlobalSignals
		err error
	)

	if sig.CompanyStats, err = s.store.CompanyInteractionStats(ctx); err != nil {
		if err = s.soft("companyInteractionStats", err); err != nil {
			return GlobalSignals{}, err
		}
	}
	if sig.CompanyReasons, err = s.store.CompanyReasonStats(ctx); err != nil {
		if err = s.soft("companyReasonStats", err); err != nil {
			return GlobalSignals{}, err
		}
	}
	if sig.CompanyRatings, err = s.store.CompanyRatings(ctx); err != nil {
		if err = s.soft("companyRatings", err); err != nil {
			return GlobalSignals{}, err
		}
	}
	if sig.Reputation, err = s.store.ReputationScores(ctx); err != nil {
		if err = s.soft("reputationScores", err); err != nil {
			return GlobalSignals{}, err
		}
	}
	return sig, nil
}

// candidateSignals adds the candidate's own interactions and profile to g.
func (s *Service) candidateSignals(ctx context.Context, g GlobalSignals, candidateID string) (Signals, error) {
	sig := Signals{
		CompanyStats:   g.CompanyStats,
		CompanyReasons: g.CompanyReasons,
		CompanyRatings: g.CompanyRatings,
		Reputation:     g.Reputation,
	}

	recs, err := s.store.Interactions(ctx, store.InteractionFilter{CandidateID: candidateID})
	if err != nil {
		return Signals{}, fmt.Errorf("loadSignals interactions: %w", err)
	}
	sig.Internships = make(map[string]model.Interaction)
	sig.Companies = make(map[string]model.Interaction)
	var ids []string
	for _, r := range recs {
		switch r.TargetKind {
		case model.TargetInternship:
			sig.Internships[r.TargetID] = r.Interaction
			ids = append(ids, r.TargetID)
		case model.TargetCompany:
			sig.Companies[r.TargetID] = r.Interaction
		}
	}
	if len(ids) > 0 {
		ps, err := s.store.Postings(ctx, store.PostingFilter{IDs: ids})
		if err != nil {
			return Signals{}, fmt.Errorf("loadSignals postings: %w", err)
		}
		sig.InteractedPostings = make(map[string]model.InternshipPosting, len(ps))
		for _, p := range ps {
			sig.InteractedPostings[p.InternshipID] = p
		}
	}

	profile, err := s.store.PreferenceProfile(ctx, candidateID)
	switch {
	case err == nil:
		sig.Profile = profile
	case errors.Is(err, store.ErrNotFound):
	default:
		if err = s.soft("preferenceProfile", err); err != nil {
			return Signals{}, err
		}
	}
	return sig, nil
}

// companyAliases resolves organization names of postings without a company
// id to the matching company, so global signals still apply to them.
func (s *Service) companyAliases(ctx context.Context, postings []model.InternshipPosting) (map[string]string, error) {
	aliases := make(map[string]string)
	tried := make(map[string]bool)
	for _, p := range postings {
		if p.CompanyID != "" {
			continue
		}
		name := lower(p.Organization)
		if name == "" || tried[name] {
			continue
		}
		tried[name] = true
		c, err := s.store.CompanyByName(ctx, name)
		switch {
		case err == nil:
			aliases[name] = c.CompanyID
		case errors.Is(err, store.ErrNotFound):
		case store.IsUnavailable(err):
			return nil, fmt.Errorf("companyAliases: %w", err)
		default:
			s.log.Warn("company lookup failed", "organization", name, "err", err)
		}
	}
	return aliases, nil
}

func (s *Service) soft(op string, err error) error {
	if store.IsUnavailable(err) {
		return fmt.Errorf("loadSignals %s: %w", op, err)
	}
	s.log.Warn("signal skipped", "op", op, "err", err)
	return nil
}

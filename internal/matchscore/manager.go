// Package matchscore maintains the cached candidate × company match scores.
//
// A score blends four sub-scores (the candidate's fit for the company's
// postings, their direct company interaction, the company's review average
// and their feedback on the company's postings) and a small personal
// location nudge. Other users' actions move cached scores through
// ApplyGlobalImpact; RecalculateAllUsersForCompany recomputes them exactly.
package matchscore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"interninsight/match-service/internal/geo"
	"interninsight/match-service/internal/logging"
	"interninsight/match-service/internal/model"
	"interninsight/match-service/internal/store"
)

const (
	weightInternshipScores    = 0.40
	weightCompanyInteractions = 0.30
	weightCompanyReviews      = 0.20
	weightInternshipFeedback  = 0.10

	neutral = 50.0

	interactionSwing      = 15.0
	feedbackLike          = 70.0
	feedbackDislike       = 30.0
	maxLocationAdjustment = 5.0

	defaultConcurrency = 4
)

// Store is the persistence the manager reads signals from and caches into.
type Store interface {
	store.Reader
	store.MatchScoreStore
}

// InternshipScorer returns a candidate's live match score for each of the
// given postings. recommend.Service satisfies it.
type InternshipScorer interface {
	InternshipScores(ctx context.Context, candidateID string, internshipIDs []string) (map[string]float64, error)
}

// GlobalPinner is implemented by scorers that can load their
// candidate-independent inputs once and reuse them across many candidates.
// RecalculateAllUsersForCompany pins them for the length of a sweep.
type GlobalPinner interface {
	PinGlobals(ctx context.Context) (func(ctx context.Context, candidateID string, internshipIDs []string) (map[string]float64, error), error)
}

type scoreFunc func(ctx context.Context, candidateID string, internshipIDs []string) (map[string]float64, error)

func (f scoreFunc) InternshipScores(ctx context.Context, candidateID string, internshipIDs []string) (map[string]float64, error) {
	return f(ctx, candidateID, internshipIDs)
}

// SubScore is one component of a match score, or the reason it could not be
// computed.
type SubScore struct {
	Value float64
	Err   error
}

func scored(v float64) SubScore { return SubScore{Value: v} }

func failed(op string, err error) SubScore { return SubScore{Err: fmt.Errorf("%s: %w", op, err)} }

// ─── Manager ─────────────────────────────────────────────────────────────────

// Manager computes, caches and propagates match scores.
type Manager struct {
	store       Store
	scorer      InternshipScorer
	oracle      geo.Oracle
	log         *logging.Logger
	concurrency int
	now         func() time.Time
}

// NewManager returns a Manager with a recompute concurrency of 4.
func NewManager(st Store, scorer InternshipScorer, oracle geo.Oracle, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	return &Manager{
		store:       st,
		scorer:      scorer,
		oracle:      oracle,
		log:         log,
		concurrency: defaultConcurrency,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithConcurrency bounds the parallelism of RecalculateAllUsersForCompany.
func (m *Manager) WithConcurrency(n int) *Manager {
	if n > 0 {
		m.concurrency = n
	}
	return m
}

// WithClock replaces the clock used for LastUpdated.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Calculate computes a fresh entry for the pair without saving it. Sub-scores
// that fail fall back to the neutral 50; only an unreachable store fails the
// call.
func (m *Manager) Calculate(ctx context.Context, candidateID, companyID string) (*model.MatchScoreEntry, error) {
	cc, err := m.loadCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return m.calculate(ctx, m.scorer, cc, candidateID)
}

// companyInputs are the parts of a score that are the same for every
// candidate.
type companyInputs struct {
	id      string
	company *model.Company
	ids     []string
	reviews SubScore
}

func (m *Manager) loadCompany(ctx context.Context, companyID string) (*companyInputs, error) {
	company, err := m.store.Company(ctx, companyID)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		company = nil
	case store.IsUnavailable(err):
		return nil, fmt.Errorf("calculate company: %w", err)
	default:
		m.log.Warn("company lookup failed", "company_id", companyID, "err", err)
		company = nil
	}

	ids, err := m.internshipIDs(ctx, companyID, company)
	if err != nil {
		if store.IsUnavailable(err) {
			return nil, fmt.Errorf("calculate internships: %w", err)
		}
		m.log.Warn("company postings lookup failed", "company_id", companyID, "err", err)
	}
	return &companyInputs{id: companyID, company: company, ids: ids, reviews: m.companyReviews(ctx, companyID)}, nil
}

func (m *Manager) calculate(ctx context.Context, scorer InternshipScorer, cc *companyInputs, candidateID string) (*model.MatchScoreEntry, error) {
	companyID, company, ids := cc.id, cc.company, cc.ids

	var f model.Factors
	subs := []struct {
		name string
		dst  *float64
		sub  SubScore
	}{
		{"internship_scores", &f.InternshipScores, m.internshipScores(ctx, scorer, candidateID, ids)},
		{"company_interactions", &f.CompanyInteractions, m.companyInteraction(ctx, candidateID, companyID)},
		{"company_reviews", &f.CompanyReviews, cc.reviews},
		{"internship_feedback", &f.InternshipFeedback, m.internshipFeedback(ctx, candidateID, ids)},
	}
	for _, s := range subs {
		v, err := m.resolve(s.name, candidateID, companyID, s.sub)
		if err != nil {
			return nil, err
		}
		*s.dst = v
	}

	adj, err := m.locationAdjustment(ctx, candidateID, company)
	if err != nil {
		if store.IsUnavailable(err) {
			return nil, fmt.Errorf("calculate location: %w", err)
		}
		m.log.Warn("location adjustment skipped", "candidate_id", candidateID, "company_id", companyID, "err", err)
		adj = 0
	}

	score := f.InternshipScores*weightInternshipScores +
		f.CompanyInteractions*weightCompanyInteractions +
		f.CompanyReviews*weightCompanyReviews +
		f.InternshipFeedback*weightInternshipFeedback +
		adj

	return &model.MatchScoreEntry{
		CandidateID: candidateID,
		CompanyID:   companyID,
		MatchScore:  model.Round(model.ClampScore(score), 2),
		Factors: model.Factors{
			InternshipScores:    model.Round(f.InternshipScores, 2),
			CompanyInteractions: model.Round(f.CompanyInteractions, 2),
			CompanyReviews:      model.Round(f.CompanyReviews, 2),
			InternshipFeedback:  model.Round(f.InternshipFeedback, 2),
		},
		LocationAdjustment: model.Round(adj, 2),
		LastUpdated:        m.now(),
	}, nil
}

// Save upserts an entry.
func (m *Manager) Save(ctx context.Context, e model.MatchScoreEntry) error {
	if err := m.store.SaveMatchScore(ctx, e); err != nil {
		return fmt.Errorf("save match score: %w", err)
	}
	return nil
}

// Get returns the cached score, computing and saving it on a miss. A failed
// save is logged; the computed score is still returned.
func (m *Manager) Get(ctx context.Context, candidateID, companyID string) (float64, error) {
	e, err := m.store.MatchScore(ctx, candidateID, companyID)
	switch {
	case err == nil:
		return e.MatchScore, nil
	case store.IsUnavailable(err):
		return 0, fmt.Errorf("get match score: %w", err)
	case !errors.Is(err, store.ErrNotFound):
		m.log.Warn("cached score unreadable", "candidate_id", candidateID, "company_id", companyID, "err", err)
	}

	e, err = m.Calculate(ctx, candidateID, companyID)
	if err != nil {
		return 0, err
	}
	if err := m.Save(ctx, *e); err != nil {
		if store.IsUnavailable(err) {
			return 0, err
		}
		m.log.Warn("score not cached", "candidate_id", candidateID, "company_id", companyID, "err", err)
	}
	return e.MatchScore, nil
}

// Batch returns Get for each company. Companies that fail for any reason
// other than an unreachable store score the neutral 50.
func (m *Manager) Batch(ctx context.Context, candidateID string, companyIDs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(companyIDs))
	for _, id := range companyIDs {
		v, err := m.Get(ctx, candidateID, id)
		if err != nil {
			if store.IsUnavailable(err) {
				return nil, err
			}
			m.log.Warn("batch score defaulted", "candidate_id", candidateID, "company_id", id, "err", err)
			v = neutral
		}
		out[id] = v
	}
	return out, nil
}

// TopMatches returns the candidate's cached entries, best first.
func (m *Manager) TopMatches(ctx context.Context, candidateID string, limit int) ([]model.MatchScoreEntry, error) {
	entries, err := m.store.TopMatchScores(ctx, candidateID, limit)
	if err != nil {
		return nil, fmt.Errorf("top matches: %w", err)
	}
	return entries, nil
}

// RecalculateAllUsersForCompany recomputes and saves every cached entry of
// the company and returns how many were saved. Entries that fail are
// skipped; an unreachable store aborts the sweep.
func (m *Manager) RecalculateAllUsersForCompany(ctx context.Context, companyID string) (int, error) {
	entries, err := m.store.MatchScoresForCompany(ctx, companyID)
	if err != nil {
		return 0, fmt.Errorf("recalculate list: %w", err)
	}

	if len(entries) == 0 {
		return 0, nil
	}
	cc, err := m.loadCompany(ctx, companyID)
	if err != nil {
		return 0, fmt.Errorf("recalculate %s: %w", companyID, err)
	}
	scorer, err := m.pinScorer(ctx)
	if err != nil {
		return 0, fmt.Errorf("recalculate %s: %w", companyID, err)
	}

	var updated atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for _, e := range entries {
		candidateID := e.CandidateID
		g.Go(func() error {
			fresh, err := m.calculate(gctx, scorer, cc, candidateID)
			if err == nil {
				err = m.Save(gctx, *fresh)
			}
			switch {
			case err == nil:
				updated.Add(1)
			case store.IsUnavailable(err):
				return err
			default:
				m.log.Warn("recalculate entry failed", "candidate_id", candidateID, "company_id", companyID, "err", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(updated.Load()), fmt.Errorf("recalculate %s: %w", companyID, err)
	}
	m.log.Debug("company scores recalculated", "company_id", companyID, "updated", updated.Load())
	return int(updated.Load()), nil
}

// pinScorer returns the scorer with its global inputs loaded once, when it
// supports that. A failure other than an unreachable store falls back to the
// unpinned scorer.
func (m *Manager) pinScorer(ctx context.Context) (InternshipScorer, error) {
	p, ok := m.scorer.(GlobalPinner)
	if !ok {
		return m.scorer, nil
	}
	fn, err := p.PinGlobals(ctx)
	switch {
	case err == nil:
		return scoreFunc(fn), nil
	case store.IsUnavailable(err):
		return nil, err
	default:
		m.log.Warn("global signals not pinned", "err", err)
		return m.scorer, nil
	}
}

// ─── Sub-scores ──────────────────────────────────────────────────────────────

func (m *Manager) resolve(name, candidateID, companyID string, s SubScore) (float64, error) {
	if s.Err == nil {
		return s.Value, nil
	}
	if store.IsUnavailable(s.Err) {
		return 0, fmt.Errorf("calculate %s: %w", name, s.Err)
	}
	m.log.Warn("sub-score defaulted", "factor", name, "candidate_id", candidateID, "company_id", companyID, "err", s.Err)
	return neutral, nil
}

// internshipIDs lists the company's postings: the ids on the company
// document when it has any, otherwise postings carrying the company id.
func (m *Manager) internshipIDs(ctx context.Context, companyID string, company *model.Company) ([]string, error) {
	if company != nil && len(company.InternshipIDs) > 0 {
		return dedupe(company.InternshipIDs), nil
	}
	postings, err := m.store.Postings(ctx, store.PostingFilter{CompanyID: companyID})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(postings))
	for _, p := range postings {
		ids = append(ids, p.InternshipID)
	}
	return dedupe(ids), nil
}

func (m *Manager) internshipScores(ctx context.Context, scorer InternshipScorer, candidateID string, ids []string) SubScore {
	if len(ids) == 0 || scorer == nil {
		return scored(neutral)
	}
	scores, err := scorer.InternshipScores(ctx, candidateID, ids)
	if err != nil {
		return failed("internship scores", err)
	}
	if len(scores) == 0 {
		return scored(neutral)
	}
	var sum float64
	for _, v := range scores {
		sum += v
	}
	return scored(sum / float64(len(scores)))
}

func (m *Manager) companyInteraction(ctx context.Context, candidateID, companyID string) SubScore {
	recs, err := m.store.Interactions(ctx, store.InteractionFilter{
		CandidateID: candidateID,
		TargetKind:  model.TargetCompany,
		TargetIDs:   []string{companyID},
	})
	if err != nil {
		return failed("company interaction", err)
	}
	if len(recs) == 0 {
		return scored(neutral)
	}
	switch recs[len(recs)-1].Interaction.Kind {
	case model.Like:
		return scored(neutral + interactionSwing)
	case model.Dislike:
		return scored(neutral - interactionSwing)
	}
	return scored(neutral)
}

// companyReviews uses every review of the company, not just the candidate's.
func (m *Manager) companyReviews(ctx context.Context, companyID string) SubScore {
	reviews, err := m.store.Reviews(ctx, store.ReviewFilter{
		TargetKind: model.TargetCompany,
		TargetIDs:  []string{companyID},
	})
	if err != nil {
		return failed("company reviews", err)
	}
	if len(reviews) == 0 {
		return scored(neutral)
	}
	var sum float64
	for _, r := range reviews {
		sum += r.Rating
	}
	avg := sum / float64(len(reviews))
	if avg == 0 {
		return scored(neutral)
	}
	return scored(avg * 20)
}

func (m *Manager) internshipFeedback(ctx context.Context, candidateID string, ids []string) SubScore {
	if len(ids) == 0 {
		return scored(neutral)
	}
	recs, err := m.store.Interactions(ctx, store.InteractionFilter{
		CandidateID: candidateID,
		TargetKind:  model.TargetInternship,
		TargetIDs:   ids,
	})
	if err != nil {
		return failed("internship interactions", err)
	}
	reviews, err := m.store.Reviews(ctx, store.ReviewFilter{
		CandidateID: candidateID,
		TargetKind:  model.TargetInternship,
		TargetIDs:   ids,
	})
	if err != nil {
		return failed("internship reviews", err)
	}
	n := len(recs) + len(reviews)
	if n == 0 {
		return scored(neutral)
	}

	var sum float64
	for _, r := range recs {
		if r.Interaction.Kind == model.Like {
			sum += feedbackLike
		} else {
			sum += feedbackDislike
		}
	}
	for _, r := range reviews {
		sum += r.Rating * 20
	}
	return scored(sum / float64(n))
}

// locationAdjustment nudges the score by up to ±5 when the company's
// headquarters is near cities whose postings the candidate liked for their
// location (or disliked for it). The nudge decays with distance.
func (m *Manager) locationAdjustment(ctx context.Context, candidateID string, company *model.Company) (float64, error) {
	if company == nil || m.oracle == nil {
		return 0, nil
	}
	hq := geo.NormalizeCity(m.oracle, company.Headquarters)
	if hq == "" {
		return 0, nil
	}

	recs, err := m.store.Interactions(ctx, store.InteractionFilter{
		CandidateID: candidateID,
		TargetKind:  model.TargetInternship,
	})
	if err != nil {
		return 0, err
	}
	var likedIDs, dislikedIDs []string
	for _, r := range recs {
		in := r.Interaction
		switch {
		case in.Kind == model.Like && in.HasAny(model.TagGreatLocation, model.TagPerfectLocation):
			likedIDs = append(likedIDs, r.TargetID)
		case in.Kind == model.Dislike && in.Has(model.TagPoorLocation):
			dislikedIDs = append(dislikedIDs, r.TargetID)
		}
	}
	if len(likedIDs)+len(dislikedIDs) == 0 {
		return 0, nil
	}

	postings, err := m.store.Postings(ctx, store.PostingFilter{IDs: append(append([]string{}, likedIDs...), dislikedIDs...)})
	if err != nil {
		return 0, err
	}
	cityOf := make(map[string]string, len(postings))
	for _, p := range postings {
		cityOf[p.InternshipID] = geo.NormalizeCity(m.oracle, p.Location)
	}

	closest := func(ids []string) float64 {
		var best float64
		for _, id := range ids {
			if d := geo.CityDecay(m.oracle, hq, cityOf[id], geo.HalfLifeKm); d > best {
				best = d
			}
		}
		return best
	}
	adj := maxLocationAdjustment*closest(likedIDs) - maxLocationAdjustment*closest(dislikedIDs)
	return model.Clamp(adj, -maxLocationAdjustment, maxLocationAdjustment), nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Package memstore is an in-process implementation of store.Store. It backs
// unit tests and local runs of the scoring pipeline without a database.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"interninsight/match-service/internal/model"
	"interninsight/match-service/internal/store"
)

var _ store.Store = (*Store)(nil)

type interactionKey struct {
	candidate string
	kind      model.TargetKind
	target    string
}

type matchKey struct {
	candidate string
	company   string
}

// Store keeps every document in maps guarded by a single mutex.
type Store struct {
	mu sync.RWMutex

	candidates   map[string]model.CandidateProfile
	postings     map[string]model.InternshipPosting
	postingOrder []string
	companies    map[string]model.Company
	interactions map[interactionKey]model.InteractionRecord
	reviews      []model.ReviewRecord
	synonyms     map[string]string
	profiles     map[string]model.PreferenceProfile
	reputations  map[string]model.ReputationRecord
	matchScores  map[matchKey]model.MatchScoreEntry

	// Fail makes every call return store.ErrUnavailable when set.
	Fail bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		candidates:   make(map[string]model.CandidateProfile),
		postings:     make(map[string]model.InternshipPosting),
		companies:    make(map[string]model.Company),
		interactions: make(map[interactionKey]model.InteractionRecord),
		synonyms:     make(map[string]string),
		profiles:     make(map[string]model.PreferenceProfile),
		reputations:  make(map[string]model.ReputationRecord),
		matchScores:  make(map[matchKey]model.MatchScoreEntry),
	}
}

// ── Seeding ────────────────────────────────────────────────────────────────

func (s *Store) PutCandidate(c model.CandidateProfile) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates[c.CandidateID] = c
	return s
}

func (s *Store) PutPosting(p model.InternshipPosting) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.postings[p.InternshipID]; !ok {
		s.postingOrder = append(s.postingOrder, p.InternshipID)
	}
	s.postings[p.InternshipID] = p
	return s
}

func (s *Store) PutCompany(c model.Company) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[c.CompanyID] = c
	return s
}

func (s *Store) PutSynonym(alias, canonical string) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synonyms[alias] = canonical
	return s
}

func (s *Store) check() error {
	if s.Fail {
		return store.ErrUnavailable
	}
	return nil
}

// ── Reader ─────────────────────────────────────────────────────────────────

func (s *Store) Candidate(_ context.Context, id string) (*model.CandidateProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	c, ok := s.candidates[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) Posting(_ context.Context, id string) (*model.InternshipPosting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	p, ok := s.postings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) Postings(_ context.Context, f store.PostingFilter) ([]model.InternshipPosting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	ids := toSet(f.IDs)
	out := make([]model.InternshipPosting, 0)
	for _, id := range s.postingOrder {
		p := s.postings[id]
		if len(ids) > 0 && !ids[id] {
			continue
		}
		if f.CompanyID != "" && p.CompanyID != f.CompanyID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) Company(_ context.Context, id string) (*model.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	c, ok := s.companies[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) CompanyByName(_ context.Context, name string) (*model.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	want := strings.ToLower(strings.TrimSpace(name))
	for _, c := range s.companies {
		if strings.ToLower(strings.TrimSpace(c.Name)) == want {
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) Interactions(_ context.Context, f store.InteractionFilter) ([]model.InteractionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	ids := toSet(f.TargetIDs)
	out := make([]model.InteractionRecord, 0)
	for _, r := range s.interactions {
		if f.CandidateID != "" && r.CandidateID != f.CandidateID {
			continue
		}
		if f.TargetKind != "" && r.TargetKind != f.TargetKind {
			continue
		}
		if len(ids) > 0 && !ids[r.TargetID] {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		if out[i].CandidateID != out[j].CandidateID {
			return out[i].CandidateID < out[j].CandidateID
		}
		return out[i].TargetID < out[j].TargetID
	})
	return out, nil
}

func (s *Store) Reviews(_ context.Context, f store.ReviewFilter) ([]model.ReviewRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	ids := toSet(f.TargetIDs)
	out := make([]model.ReviewRecord, 0)
	for _, r := range s.reviews {
		if f.CandidateID != "" && r.CandidateID != f.CandidateID {
			continue
		}
		if f.TargetKind != "" && r.TargetKind != f.TargetKind {
			continue
		}
		if len(ids) > 0 && !ids[r.TargetID] {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) CompanyInteractionStats(_ context.Context) (map[string]model.InteractionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	out := make(map[string]model.InteractionStats)
	for _, r := range s.interactions {
		if r.TargetKind != model.TargetCompany {
			continue
		}
		st := out[r.TargetID]
		switch r.Interaction.Kind {
		case model.Like:
			st.Likes++
		case model.Dislike:
			st.Dislikes++
		}
		out[r.TargetID] = st
	}
	return out, nil
}

func (s *Store) CompanyReasonStats(_ context.Context) (map[string]model.ReasonStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	out := make(map[string]model.ReasonStats)
	for _, r := range s.interactions {
		if r.TargetKind != model.TargetCompany || len(r.Interaction.Reasons) == 0 {
			continue
		}
		rs, ok := out[r.TargetID]
		if !ok {
			rs = model.ReasonStats{Like: map[model.ReasonTag]int{}, Dislike: map[model.ReasonTag]int{}}
		}
		bucket := rs.Like
		if r.Interaction.Kind == model.Dislike {
			bucket = rs.Dislike
		}
		for _, tag := range r.Interaction.Reasons {
			bucket[tag]++
		}
		out[r.TargetID] = rs
	}
	return out, nil
}

func (s *Store) CompanyRatings(_ context.Context) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for id, c := range s.companies {
		if c.AverageRating != nil {
			out[id] = *c.AverageRating
		}
	}
	return out, nil
}

func (s *Store) ReviewCount(_ context.Context, companyID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return 0, err
	}
	n := 0
	for _, r := range s.reviews {
		if r.TargetKind == model.TargetCompany && r.TargetID == companyID {
			n++
		}
	}
	return n, nil
}

func (s *Store) Synonyms(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(s.synonyms))
	for k, v := range s.synonyms {
		out[k] = v
	}
	return out, nil
}

// ── Writer ─────────────────────────────────────────────────────────────────

func (s *Store) UpsertInteraction(_ context.Context, rec model.InteractionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.interactions[interactionKey{rec.CandidateID, rec.TargetKind, rec.TargetID}] = rec
	return nil
}

func (s *Store) DeleteInteraction(_ context.Context, candidateID string, kind model.TargetKind, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	delete(s.interactions, interactionKey{candidateID, kind, targetID})
	return nil
}

func (s *Store) AddReview(_ context.Context, rec model.ReviewRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.reviews = append(s.reviews, rec)
	return nil
}

func (s *Store) RefreshCompanyRating(_ context.Context, companyID string) (*float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	var sum float64
	var n int
	for _, r := range s.reviews {
		if r.TargetKind == model.TargetCompany && r.TargetID == companyID {
			sum += r.Rating
			n++
		}
	}
	c, ok := s.companies[companyID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if n == 0 {
		c.AverageRating = nil
	} else {
		avg := model.Round(sum/float64(n), 2)
		c.AverageRating = &avg
	}
	s.companies[companyID] = c
	return c.AverageRating, nil
}

// ── ProfileStore ───────────────────────────────────────────────────────────

func (s *Store) SavePreferenceProfile(_ context.Context, p model.PreferenceProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.profiles[p.CandidateID] = p
	return nil
}

func (s *Store) PreferenceProfile(_ context.Context, candidateID string) (*model.PreferenceProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	p, ok := s.profiles[candidateID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

// ── ReputationStore ────────────────────────────────────────────────────────

func (s *Store) SaveReputation(_ context.Context, r model.ReputationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.reputations[r.CompanyID] = r
	if c, ok := s.companies[r.CompanyID]; ok {
		score := r.Score
		c.ReputationScore = &score
		s.companies[r.CompanyID] = c
	}
	return nil
}

func (s *Store) Reputation(_ context.Context, companyID string) (*model.ReputationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	r, ok := s.reputations[companyID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (s *Store) ReputationScores(_ context.Context) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(s.reputations))
	for id, r := range s.reputations {
		out[id] = r.Score
	}
	return out, nil
}

// ── MatchScoreStore ────────────────────────────────────────────────────────

func (s *Store) SaveMatchScore(_ context.Context, e model.MatchScoreEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.matchScores[matchKey{e.CandidateID, e.CompanyID}] = e
	return nil
}

func (s *Store) MatchScore(_ context.Context, candidateID, companyID string) (*model.MatchScoreEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	e, ok := s.matchScores[matchKey{candidateID, companyID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &e, nil
}

func (s *Store) MatchScoresForCompany(_ context.Context, companyID string) ([]model.MatchScoreEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	out := make([]model.MatchScoreEntry, 0)
	for k, e := range s.matchScores {
		if k.company == companyID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CandidateID < out[j].CandidateID })
	return out, nil
}

func (s *Store) IncrementMatchScores(_ context.Context, companyID string, delta float64, excludeCandidateID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return 0, err
	}
	n := 0
	for k, e := range s.matchScores {
		if k.company != companyID || k.candidate == excludeCandidateID {
			continue
		}
		e.MatchScore = model.Round(model.ClampScore(e.MatchScore+delta), 2)
		s.matchScores[k] = e
		n++
	}
	return n, nil
}

func (s *Store) TopMatchScores(_ context.Context, candidateID string, limit int) ([]model.MatchScoreEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	out := make([]model.MatchScoreEntry, 0)
	for k, e := range s.matchScores {
		if k.candidate == candidateID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MatchScore != out[j].MatchScore {
			return out[i].MatchScore > out[j].MatchScore
		}
		return out[i].CompanyID < out[j].CompanyID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CompaniesWithMatchScores(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	out := make([]string, 0)
	for k := range s.matchScores {
		if !seen[k.company] {
			seen[k.company] = true
			out = append(out, k.company)
		}
	}
	sort.Strings(out)
	return out, nil
}

func toSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

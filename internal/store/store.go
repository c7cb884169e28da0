// Package store defines the documents the match service reads and writes,
// independent of the backing database.
package store

import (
	"context"
	"errors"

	"interninsight/match-service/internal/model"
)

var (
	// ErrNotFound is returned when a requested document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable is returned when the backing store cannot be reached.
	// It is the only error callers are expected to surface rather than
	// replace with a neutral default.
	ErrUnavailable = errors.New("store unavailable")
)

// PostingFilter selects internship postings. Empty fields do not filter.
type PostingFilter struct {
	IDs       []string
	CompanyID string
}

// InteractionFilter selects interaction records. Empty fields do not filter.
type InteractionFilter struct {
	CandidateID string
	TargetKind  model.TargetKind
	TargetIDs   []string
}

// ReviewFilter selects review records. Empty fields do not filter.
type ReviewFilter struct {
	CandidateID string
	TargetKind  model.TargetKind
	TargetIDs   []string
}

// Reader exposes the externally owned documents the scorers consume.
type Reader interface {
	Candidate(ctx context.Context, candidateID string) (*model.CandidateProfile, error)
	Posting(ctx context.Context, internshipID string) (*model.InternshipPosting, error)
	Postings(ctx context.Context, f PostingFilter) ([]model.InternshipPosting, error)
	Company(ctx context.Context, companyID string) (*model.Company, error)
	// CompanyByName matches the company name case-insensitively.
	CompanyByName(ctx context.Context, name string) (*model.Company, error)
	Interactions(ctx context.Context, f InteractionFilter) ([]model.InteractionRecord, error)
	Reviews(ctx context.Context, f ReviewFilter) ([]model.ReviewRecord, error)
	// CompanyInteractionStats returns global like/dislike counts keyed by company id.
	CompanyInteractionStats(ctx context.Context) (map[string]model.InteractionStats, error)
	// CompanyReasonStats returns global reason-tag counts keyed by company id.
	CompanyReasonStats(ctx context.Context) (map[string]model.ReasonStats, error)
	// CompanyRatings returns the average review rating keyed by company id.
	CompanyRatings(ctx context.Context) (map[string]float64, error)
	ReviewCount(ctx context.Context, companyID string) (int, error)
	Synonyms(ctx context.Context) (map[string]string, error)
}

// Writer records the user actions that feed the scorers.
type Writer interface {
	UpsertInteraction(ctx context.Context, rec model.InteractionRecord) error
	DeleteInteraction(ctx context.Context, candidateID string, kind model.TargetKind, targetID string) error
	AddReview(ctx context.Context, rec model.ReviewRecord) error
	// RefreshCompanyRating recomputes the company's stored average rating
	// from its reviews and returns it.
	RefreshCompanyRating(ctx context.Context, companyID string) (*float64, error)
}

// ProfileStore persists preference profiles.
type ProfileStore interface {
	SavePreferenceProfile(ctx context.Context, p model.PreferenceProfile) error
	PreferenceProfile(ctx context.Context, candidateID string) (*model.PreferenceProfile, error)
}

// ReputationStore persists company reputation records.
type ReputationStore interface {
	// SaveReputation upserts the record and mirrors the score onto the
	// company document.
	SaveReputation(ctx context.Context, r model.ReputationRecord) error
	Reputation(ctx context.Context, companyID string) (*model.ReputationRecord, error)
	// ReputationScores returns every stored score keyed by company id.
	ReputationScores(ctx context.Context) (map[string]float64, error)
}

// MatchScoreStore persists cached candidate × company match scores.
type MatchScoreStore interface {
	SaveMatchScore(ctx context.Context, e model.MatchScoreEntry) error
	MatchScore(ctx context.Context, candidateID, companyID string) (*model.MatchScoreEntry, error)
	MatchScoresForCompany(ctx context.Context, companyID string) ([]model.MatchScoreEntry, error)
	// IncrementMatchScores adds delta to every entry of companyID except
	// the one belonging to excludeCandidateID, re-clamping to [0,100]. It
	// returns the number of entries touched.
	IncrementMatchScores(ctx context.Context, companyID string, delta float64, excludeCandidateID string) (int, error)
	// TopMatchScores returns a candidate's entries, highest score first.
	TopMatchScores(ctx context.Context, candidateID string, limit int) ([]model.MatchScoreEntry, error)
	// CompaniesWithMatchScores lists every company id that has a cached entry.
	CompaniesWithMatchScores(ctx context.Context) ([]string, error)
}

// Store is everything the match service needs from persistence.
type Store interface {
	Reader
	Writer
	ProfileStore
	ReputationStore
	MatchScoreStore
}

type withMatchScores struct {
	Store
	ms MatchScoreStore
}

// WithMatchScores returns s with its match-score methods served by ms.
func WithMatchScores(s Store, ms MatchScoreStore) Store {
	return &withMatchScores{Store: s, ms: ms}
}

func (w *withMatchScores) SaveMatchScore(ctx context.Context, e model.MatchScoreEntry) error {
	return w.ms.SaveMatchScore(ctx, e)
}

func (w *withMatchScores) MatchScore(ctx context.Context, candidateID, companyID string) (*model.MatchScoreEntry, error) {
	return w.ms.MatchScore(ctx, candidateID, companyID)
}

func (w *withMatchScores) MatchScoresForCompany(ctx context.Context, companyID string) ([]model.MatchScoreEntry, error) {
	return w.ms.MatchScoresForCompany(ctx, companyID)
}

func (w *withMatchScores) IncrementMatchScores(ctx context.Context, companyID string, delta float64, excludeCandidateID string) (int, error) {
	return w.ms.IncrementMatchScores(ctx, companyID, delta, excludeCandidateID)
}

func (w *withMatchScores) TopMatchScores(ctx context.Context, candidateID string, limit int) ([]model.MatchScoreEntry, error) {
	return w.ms.TopMatchScores(ctx, candidateID, limit)
}

func (w *withMatchScores) CompaniesWithMatchScores(ctx context.Context) ([]string, error) {
	return w.ms.CompaniesWithMatchScores(ctx)
}

// IsUnavailable reports whether err signals an unreachable store.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

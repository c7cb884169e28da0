// Package postgres implements store.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"interninsight/match-service/internal/logging"
	"interninsight/match-service/internal/model"
	"interninsight/match-service/internal/skills"
	"interninsight/match-service/internal/store"
)

//go:embed schema.sql
var schemaSQL string

var _ store.Store = (*Store)(nil)

// Store is a store.Store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	log  *logging.Logger
}

// New returns a Store over pool.
func New(pool *pgxpool.Pool, log *logging.Logger) *Store {
	if log == nil {
		log = logging.Nop()
	}
	return &Store{pool: pool, log: log}
}

// Migrate creates every table the service uses. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return wrap("migrate", err)
	}
	return nil
}

// wrap maps driver errors onto the store sentinels.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, store.ErrNotFound)
	}
	if isConnectivity(err) {
		return fmt.Errorf("%s: %w: %w", op, store.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConnectivity(err error) bool {
	var connErr *pgconn.ConnectError
	var netErr net.Error
	return errors.As(err, &connErr) ||
		errors.As(err, &netErr) ||
		pgconn.Timeout(err) ||
		errors.Is(err, context.DeadlineExceeded)
}

// ─── Reader ──────────────────────────────────────────────────────────────────

func (s *Store) Candidate(ctx context.Context, candidateID string) (*model.CandidateProfile, error) {
	var (
		c         model.CandidateProfile
		rawSkills []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT candidate_id, name, skills_possessed, sector_interests, location_preference,
		        education_level, field_of_study, first_generation, no_experience
		 FROM candidates WHERE candidate_id = $1`,
		candidateID,
	).Scan(&c.CandidateID, &c.Name, &rawSkills, &c.SectorInterests, &c.LocationPreference,
		&c.EducationLevel, &c.FieldOfStudy, &c.FirstGeneration, &c.NoExperience)
	if err != nil {
		return nil, wrap("candidate", err)
	}
	c.SkillsPossessed = s.decodeSkills(rawSkills, "candidate_id", candidateID)
	return &c, nil
}

// decodeSkills accepts any JSON shape and keeps the strings it contains.
func (s *Store) decodeSkills(raw []byte, keyvals ...any) []string {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		s.log.Warn("malformed skills column", append(keyvals, "err", err)...)
		return nil
	}
	flat, skipped := skills.Flatten(v)
	if len(skipped) > 0 {
		s.log.Debug("skipped non-string skills", append(keyvals, "count", len(skipped))...)
	}
	return flat
}

const postingColumns = `internship_id, COALESCE(company_id, ''), organization, title, description,
	location, sector, skills_required, stipend, duration, beginner_friendly`

func (s *Store) scanPosting(row pgx.Row) (model.InternshipPosting, error) {
	var (
		p         model.InternshipPosting
		rawSkills []byte
	)
	err := row.Scan(&p.InternshipID, &p.CompanyID, &p.Organization, &p.Title, &p.Description,
		&p.Location, &p.Sector, &rawSkills, &p.Stipend, &p.Duration, &p.BeginnerFriendly)
	if err != nil {
		return p, err
	}
	p.SkillsRequired = s.decodeSkills(rawSkills, "internship_id", p.InternshipID)
	return p, nil
}

func (s *Store) Posting(ctx context.Context, internshipID string) (*model.InternshipPosting, error) {
	p, err := s.scanPosting(s.pool.QueryRow(ctx,
		`SELECT `+postingColumns+` FROM internships WHERE internship_id = $1`, internshipID))
	if err != nil {
		return nil, wrap("posting", err)
	}
	return &p, nil
}

func (s *Store) Postings(ctx context.Context, f store.PostingFilter) ([]model.InternshipPosting, error) {
	q := `SELECT ` + postingColumns + ` FROM internships WHERE true`
	var args []any
	if len(f.IDs) > 0 {
		args = append(args, f.IDs)
		q += fmt.Sprintf(` AND internship_id = ANY($%d)`, len(args))
	}
	if f.CompanyID != "" {
		args = append(args, f.CompanyID)
		q += fmt.Sprintf(` AND company_id = $%d`, len(args))
	}
	q += ` ORDER BY internship_id`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, wrap("postings query", err)
	}
	defer rows.Close()

	out := make([]model.InternshipPosting, 0)
	for rows.Next() {
		p, err := s.scanPosting(rows)
		if err != nil {
			return nil, wrap("postings scan", err)
		}
		out = append(out, p)
	}
	return out, wrap("postings rows", rows.Err())
}

const companyColumns = `company_id, name, headquarters, average_rating, internship_ids, reputation_score`

func scanCompany(row pgx.Row) (*model.Company, error) {
	var c model.Company
	if err := row.Scan(&c.CompanyID, &c.Name, &c.Headquarters, &c.AverageRating,
		&c.InternshipIDs, &c.ReputationScore); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) Company(ctx context.Context, companyID string) (*model.Company, error) {
	c, err := scanCompany(s.pool.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE company_id = $1`, companyID))
	if err != nil {
		return nil, wrap("company", err)
	}
	return c, nil
}

func (s *Store) CompanyByName(ctx context.Context, name string) (*model.Company, error) {
	c, err := scanCompany(s.pool.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE lower(name) = lower($1) ORDER BY company_id LIMIT 1`,
		strings.TrimSpace(name)))
	if err != nil {
		return nil, wrap("companyByName", err)
	}
	return c, nil
}

func (s *Store) Interactions(ctx context.Context, f store.InteractionFilter) ([]model.InteractionRecord, error) {
	q := `SELECT candidate_id, target_kind, target_id, kind, reasons, created_at FROM interactions WHERE true`
	var args []any
	if f.CandidateID != "" {
		args = append(args, f.CandidateID)
		q += fmt.Sprintf(` AND candidate_id = $%d`, len(args))
	}
	if f.TargetKind != "" {
		args = append(args, string(f.TargetKind))
		q += fmt.Sprintf(` AND target_kind = $%d`, len(args))
	}
	if len(f.TargetIDs) > 0 {
		args = append(args, f.TargetIDs)
		q += fmt.Sprintf(` AND target_id = ANY($%d)`, len(args))
	}
	q += ` ORDER BY created_at, candidate_id, target_id`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, wrap("interactions query", err)
	}
	defer rows.Close()

	out := make([]model.InteractionRecord, 0)
	for rows.Next() {
		var (
			r          model.InteractionRecord
			targetKind string
			kind       string
			reasons    []string
		)
		if err := rows.Scan(&r.CandidateID, &targetKind, &r.TargetID, &kind, &reasons, &r.Timestamp); err != nil {
			return nil, wrap("interactions scan", err)
		}
		r.TargetKind = model.TargetKind(targetKind)
		r.Interaction.Kind = model.InteractionKind(kind)
		tags, rejected := model.ParseReasonTags(reasons)
		if len(rejected) > 0 {
			s.log.Debug("dropping unknown reason tags", "candidate_id", r.CandidateID, "target_id", r.TargetID, "tags", rejected)
		}
		r.Interaction.Reasons = tags
		out = append(out, r)
	}
	return out, wrap("interactions rows", rows.Err())
}

func (s *Store) Reviews(ctx context.Context, f store.ReviewFilter) ([]model.ReviewRecord, error) {
	q := `SELECT candidate_id, target_kind, target_id, rating, body, created_at FROM reviews WHERE true`
	var args []any
	if f.CandidateID != "" {
		args = append(args, f.CandidateID)
		q += fmt.Sprintf(` AND candidate_id = $%d`, len(args))
	}
	if f.TargetKind != "" {
		args = append(args, string(f.TargetKind))
		q += fmt.Sprintf(` AND target_kind = $%d`, len(args))
	}
	if len(f.TargetIDs) > 0 {
		args = append(args, f.TargetIDs)
		q += fmt.Sprintf(` AND target_id = ANY($%d)`, len(args))
	}
	q += ` ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, wrap("reviews query", err)
	}
	defer rows.Close()

	out := make([]model.ReviewRecord, 0)
	for rows.Next() {
		var (
			r          model.ReviewRecord
			targetKind string
		)
		if err := rows.Scan(&r.CandidateID, &targetKind, &r.TargetID, &r.Rating, &r.Text, &r.Timestamp); err != nil {
			return nil, wrap("reviews scan", err)
		}
		r.TargetKind = model.TargetKind(targetKind)
		out = append(out, r)
	}
	return out, wrap("reviews rows", rows.Err())
}

func (s *Store) CompanyInteractionStats(ctx context.Context) (map[string]model.InteractionStats, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT target_id,
		        count(*) FILTER (WHERE kind = 'like'),
		        count(*) FILTER (WHERE kind = 'dislike')
		 FROM interactions
		 WHERE target_kind = 'company'
		 GROUP BY target_id`)
	if err != nil {
		return nil, wrap("companyInteractionStats query", err)
	}
	defer rows.Close()

	out := make(map[string]model.InteractionStats)
	for rows.Next() {
		var (
			id    string
			stats model.InteractionStats
		)
		if err := rows.Scan(&id, &stats.Likes, &stats.Dislikes); err != nil {
			return nil, wrap("companyInteractionStats scan", err)
		}
		out[id] = stats
	}
	return out, wrap("companyInteractionStats rows", rows.Err())
}

func (s *Store) CompanyReasonStats(ctx context.Context) (map[string]model.ReasonStats, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT target_id, kind, reason, count(*)
		 FROM interactions, unnest(reasons) AS reason
		 WHERE target_kind = 'company'
		 GROUP BY target_id, kind, reason`)
	if err != nil {
		return nil, wrap("companyReasonStats query", err)
	}
	defer rows.Close()

	out := make(map[string]model.ReasonStats)
	for rows.Next() {
		var (
			id, kind, reason string
			n                int
		)
		if err := rows.Scan(&id, &kind, &reason, &n); err != nil {
			return nil, wrap("companyReasonStats scan", err)
		}
		rs, ok := out[id]
		if !ok {
			rs = model.ReasonStats{Like: map[model.ReasonTag]int{}, Dislike: map[model.ReasonTag]int{}}
			out[id] = rs
		}
		if model.InteractionKind(kind) == model.Dislike {
			rs.Dislike[model.ReasonTag(reason)] = n
		} else {
			rs.Like[model.ReasonTag(reason)] = n
		}
	}
	return out, wrap("companyReasonStats rows", rows.Err())
}

func (s *Store) CompanyRatings(ctx context.Context) (map[string]float64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT company_id, average_rating FROM companies WHERE average_rating IS NOT NULL`)
	if err != nil {
		return nil, wrap("companyRatings query", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var (
			id     string
			rating float64
		)
		if err := rows.Scan(&id, &rating); err != nil {
			return nil, wrap("companyRatings scan", err)
		}
		out[id] = rating
	}
	return out, wrap("companyRatings rows", rows.Err())
}

func (s *Store) ReviewCount(ctx context.Context, companyID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM reviews WHERE target_kind = 'company' AND target_id = $1`, companyID,
	).Scan(&n)
	return n, wrap("reviewCount", err)
}

func (s *Store) Synonyms(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT alias, canonical FROM skill_synonyms`)
	if err != nil {
		return nil, wrap("synonyms query", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var alias, canonical string
		if err := rows.Scan(&alias, &canonical); err != nil {
			return nil, wrap("synonyms scan", err)
		}
		out[alias] = canonical
	}
	return out, wrap("synonyms rows", rows.Err())
}

// ─── Writer ──────────────────────────────────────────────────────────────────

func (s *Store) UpsertInteraction(ctx context.Context, rec model.InteractionRecord) error {
	reasons := make([]string, 0, len(rec.Interaction.Reasons))
	for _, r := range rec.Interaction.Reasons {
		reasons = append(reasons, string(r))
	}
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO interactions (candidate_id, target_kind, target_id, kind, reasons, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (candidate_id, target_kind, target_id) DO UPDATE
		 SET kind = EXCLUDED.kind, reasons = EXCLUDED.reasons, created_at = EXCLUDED.created_at`,
		rec.CandidateID, string(rec.TargetKind), rec.TargetID, string(rec.Interaction.Kind), reasons, ts,
	)
	return wrap("upsertInteraction", err)
}

func (s *Store) DeleteInteraction(ctx context.Context, candidateID string, kind model.TargetKind, targetID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM interactions WHERE candidate_id = $1 AND target_kind = $2 AND target_id = $3`,
		candidateID, string(kind), targetID,
	)
	return wrap("deleteInteraction", err)
}

func (s *Store) AddReview(ctx context.Context, rec model.ReviewRecord) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO reviews (candidate_id, target_kind, target_id, rating, body, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.CandidateID, string(rec.TargetKind), rec.TargetID, rec.Rating, rec.Text, ts,
	)
	return wrap("addReview", err)
}

func (s *Store) RefreshCompanyRating(ctx context.Context, companyID string) (*float64, error) {
	var avg *float64
	err := s.pool.QueryRow(ctx,
		`UPDATE companies
		 SET average_rating = (
		     SELECT round(avg(rating)::numeric, 2)::float8
		     FROM reviews
		     WHERE target_kind = 'company' AND target_id = $1)
		 WHERE company_id = $1
		 RETURNING average_rating`,
		companyID,
	).Scan(&avg)
	if err != nil {
		return nil, wrap("refreshCompanyRating", err)
	}
	return avg, nil
}

// ─── ProfileStore ────────────────────────────────────────────────────────────

func (s *Store) SavePreferenceProfile(ctx context.Context, p model.PreferenceProfile) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("savePreferenceProfile marshal: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO preference_profiles (candidate_id, profile, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (candidate_id) DO UPDATE
		 SET profile = EXCLUDED.profile, updated_at = EXCLUDED.updated_at`,
		p.CandidateID, doc, p.UpdatedAt,
	)
	return wrap("savePreferenceProfile", err)
}

func (s *Store) PreferenceProfile(ctx context.Context, candidateID string) (*model.PreferenceProfile, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT profile FROM preference_profiles WHERE candidate_id = $1`, candidateID,
	).Scan(&doc)
	if err != nil {
		return nil, wrap("preferenceProfile", err)
	}
	var p model.PreferenceProfile
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("preferenceProfile unmarshal: %w", err)
	}
	return &p, nil
}

// ─── ReputationStore ─────────────────────────────────────────────────────────

func (s *Store) SaveReputation(ctx context.Context, r model.ReputationRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO company_reputation (company_id, likes, dislikes, total, score, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (company_id) DO UPDATE
		 SET likes = EXCLUDED.likes, dislikes = EXCLUDED.dislikes, total = EXCLUDED.total,
		     score = EXCLUDED.score, updated_at = EXCLUDED.updated_at`,
		r.CompanyID, r.Counts.Likes, r.Counts.Dislikes, r.Counts.Total, r.Score, r.UpdatedAt,
	)
	if err != nil {
		return wrap("saveReputation", err)
	}

	// Mirror onto the company row (non-fatal).
	if _, err := s.pool.Exec(ctx,
		`UPDATE companies SET reputation_score = $1 WHERE company_id = $2`, r.Score, r.CompanyID,
	); err != nil {
		s.log.Warn("denormalize reputation failed", "company_id", r.CompanyID, "err", err)
	}
	return nil
}

func (s *Store) Reputation(ctx context.Context, companyID string) (*model.ReputationRecord, error) {
	var r model.ReputationRecord
	err := s.pool.QueryRow(ctx,
		`SELECT company_id, likes, dislikes, total, score, updated_at
		 FROM company_reputation WHERE company_id = $1`, companyID,
	).Scan(&r.CompanyID, &r.Counts.Likes, &r.Counts.Dislikes, &r.Counts.Total, &r.Score, &r.UpdatedAt)
	if err != nil {
		return nil, wrap("reputation", err)
	}
	return &r, nil
}

func (s *Store) ReputationScores(ctx context.Context) (map[string]float64, error) {
	rows, err := s.pool.Query(ctx, `SELECT company_id, score FROM company_reputation`)
	if err != nil {
		return nil, wrap("reputationScores query", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var (
			id    string
			score float64
		)
		if err := rows.Scan(&id, &score); err != nil {
			return nil, wrap("reputationScores scan", err)
		}
		out[id] = score
	}
	return out, wrap("reputationScores rows", rows.Err())
}

// ─── MatchScoreStore ─────────────────────────────────────────────────────────

const matchScoreColumns = `candidate_id, company_id, match_score, factors, location_adjustment, last_updated`

func scanMatchScore(row pgx.Row) (model.MatchScoreEntry, error) {
	var (
		e       model.MatchScoreEntry
		factors []byte
	)
	if err := row.Scan(&e.CandidateID, &e.CompanyID, &e.MatchScore, &factors,
		&e.LocationAdjustment, &e.LastUpdated); err != nil {
		return e, err
	}
	if err := json.Unmarshal(factors, &e.Factors); err != nil {
		return e, fmt.Errorf("factors unmarshal: %w", err)
	}
	return e, nil
}

func (s *Store) SaveMatchScore(ctx context.Context, e model.MatchScoreEntry) error {
	factors, err := json.Marshal(e.Factors)
	if err != nil {
		return fmt.Errorf("saveMatchScore marshal: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO company_match_scores (`+matchScoreColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (candidate_id, company_id) DO UPDATE
		 SET match_score = EXCLUDED.match_score, factors = EXCLUDED.factors,
		     location_adjustment = EXCLUDED.location_adjustment, last_updated = EXCLUDED.last_updated`,
		e.CandidateID, e.CompanyID, e.MatchScore, factors, e.LocationAdjustment, e.LastUpdated,
	)
	return wrap("saveMatchScore", err)
}

func (s *Store) MatchScore(ctx context.Context, candidateID, companyID string) (*model.MatchScoreEntry, error) {
	e, err := scanMatchScore(s.pool.QueryRow(ctx,
		`SELECT `+matchScoreColumns+` FROM company_match_scores WHERE candidate_id = $1 AND company_id = $2`,
		candidateID, companyID))
	if err != nil {
		return nil, wrap("matchScore", err)
	}
	return &e, nil
}

func (s *Store) queryMatchScores(ctx context.Context, op, q string, args ...any) ([]model.MatchScoreEntry, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, wrap(op+" query", err)
	}
	defer rows.Close()

	out := make([]model.MatchScoreEntry, 0)
	for rows.Next() {
		e, err := scanMatchScore(rows)
		if err != nil {
			return nil, wrap(op+" scan", err)
		}
		out = append(out, e)
	}
	return out, wrap(op+" rows", rows.Err())
}

func (s *Store) MatchScoresForCompany(ctx context.Context, companyID string) ([]model.MatchScoreEntry, error) {
	return s.queryMatchScores(ctx, "matchScoresForCompany",
		`SELECT `+matchScoreColumns+` FROM company_match_scores WHERE company_id = $1 ORDER BY candidate_id`,
		companyID)
}

func (s *Store) IncrementMatchScores(ctx context.Context, companyID string, delta float64, excludeCandidateID string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE company_match_scores
		 SET match_score = round(LEAST(100, GREATEST(0, match_score + $2))::numeric, 2)::float8
		 WHERE company_id = $1 AND candidate_id <> $3`,
		companyID, delta, excludeCandidateID,
	)
	if err != nil {
		return 0, wrap("incrementMatchScores", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) TopMatchScores(ctx context.Context, candidateID string, limit int) ([]model.MatchScoreEntry, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	return s.queryMatchScores(ctx, "topMatchScores",
		`SELECT `+matchScoreColumns+` FROM company_match_scores
		 WHERE candidate_id = $1
		 ORDER BY match_score DESC, company_id
		 LIMIT $2`,
		candidateID, lim)
}

func (s *Store) CompaniesWithMatchScores(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT company_id FROM company_match_scores ORDER BY company_id`)
	if err != nil {
		return nil, wrap("companiesWithMatchScores query", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrap("companiesWithMatchScores scan", err)
		}
		out = append(out, id)
	}
	return out, wrap("companiesWithMatchScores rows", rows.Err())
}

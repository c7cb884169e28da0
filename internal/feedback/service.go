// Package feedback records candidate likes, dislikes and reviews and runs
// the recompute chain each one triggers: preference profile, company
// reputation, the candidate's own match score, the global impact on other
// candidates, and a notification. It is transport-agnostic: the api package
// and the operator CLI both drive it.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"interninsight/match-service/internal/events"
	"interninsight/match-service/internal/logging"
	"interninsight/match-service/internal/matchscore"
	"interninsight/match-service/internal/model"
	"interninsight/match-service/internal/store"
)

// Store is the persistence the hooks write to and resolve companies from.
type Store interface {
	store.Reader
	store.Writer
}

// ProfileRebuilder rebuilds a candidate's preference profile.
type ProfileRebuilder interface {
	RebuildAndSave(ctx context.Context, candidateID string) (*model.PreferenceProfile, error)
}

// ReputationRebuilder rebuilds a company's reputation record.
type ReputationRebuilder interface {
	RebuildAndSave(ctx context.Context, companyID string) (*model.ReputationRecord, error)
}

// Scores is the match-score cache the hooks keep current.
type Scores interface {
	Calculate(ctx context.Context, candidateID, companyID string) (*model.MatchScoreEntry, error)
	Save(ctx context.Context, e model.MatchScoreEntry) error
	ApplyGlobalImpact(ctx context.Context, ev matchscore.GlobalEvent) (matchscore.GlobalImpact, error)
}

// Notifier publishes events. A nil Notifier disables notifications.
type Notifier interface {
	Publish(ctx context.Context, ev events.Event) error
}

// ─── Inputs ──────────────────────────────────────────────────────────────────

// InteractionInput is a like, a dislike, or (with an empty Kind) the removal
// of the candidate's interaction with a target.
type InteractionInput struct {
	CandidateID string   `json:"candidateId" validate:"required"`
	TargetID    string   `json:"targetId" validate:"required"`
	Kind        string   `json:"kind" validate:"omitempty,oneof=like dislike"`
	Reasons     []string `json:"reasons" validate:"max=20"`
}

// ReviewInput is a rated review of a company or internship.
type ReviewInput struct {
	CandidateID string  `json:"candidateId" validate:"required"`
	TargetID    string  `json:"targetId" validate:"required"`
	Rating      float64 `json:"rating" validate:"gte=1,lte=5"`
	Text        string  `json:"text" validate:"max=5000"`
}

// Outcome reports what a hook changed.
type Outcome struct {
	CandidateID  string                   `json:"candidateId"`
	CompanyID    string                   `json:"companyId,omitempty"`
	MatchScore   *float64                 `json:"matchScore,omitempty"`
	GlobalImpact *matchscore.GlobalImpact `json:"globalImpact,omitempty"`
	Removed      bool                     `json:"removed,omitempty"`
}

// ─── Service ─────────────────────────────────────────────────────────────────

// Service runs the feedback hooks.
type Service struct {
	store      Store
	profiles   ProfileRebuilder
	reputation ReputationRebuilder
	scores     Scores
	notify     Notifier
	validate   *validator.Validate
	log        *logging.Logger
	now        func() time.Time
}

// NewService returns a configured Service.
func NewService(st Store, profiles ProfileRebuilder, reputation ReputationRebuilder, scores Scores, notify Notifier, log *logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{
		store:      st,
		profiles:   profiles,
		reputation: reputation,
		scores:     scores,
		notify:     notify,
		validate:   validator.New(),
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// InternshipInteractionChanged records the interaction, rebuilds the
// candidate's preference profile and recomputes their score for the
// posting's company.
func (s *Service) InternshipInteractionChanged(ctx context.Context, in InteractionInput) (*Outcome, error) {
	rec, err := s.record(ctx, in, model.TargetInternship)
	if err != nil {
		return nil, err
	}
	out := &Outcome{CandidateID: in.CandidateID, Removed: rec == nil}

	if s.profiles != nil {
		if _, err := s.profiles.RebuildAndSave(ctx, in.CandidateID); err != nil {
			s.log.Warn("preference profile rebuild failed", "candidate_id", in.CandidateID, "err", err)
		}
	}

	out.CompanyID = s.companyForPosting(ctx, in.TargetID)
	if out.CompanyID != "" {
		out.MatchScore = s.recomputeOwn(ctx, in.CandidateID, out.CompanyID)
	}
	s.publish(ctx, out)
	return out, nil
}

// CompanyInteractionChanged records the interaction, rebuilds the company's
// reputation, recomputes the candidate's own score and shifts every other
// candidate's cached score for the company. Removals skip the shift.
func (s *Service) CompanyInteractionChanged(ctx context.Context, in InteractionInput) (*Outcome, error) {
	rec, err := s.record(ctx, in, model.TargetCompany)
	if err != nil {
		return nil, err
	}
	out := &Outcome{CandidateID: in.CandidateID, CompanyID: in.TargetID, Removed: rec == nil}

	s.rebuildReputation(ctx, in.TargetID)
	out.MatchScore = s.recomputeOwn(ctx, in.CandidateID, in.TargetID)
	if rec != nil {
		out.GlobalImpact = s.applyGlobal(ctx, matchscore.GlobalEvent{
			CompanyID:          in.TargetID,
			Type:               matchscore.EventType(rec.Interaction.Kind),
			ExcludeCandidateID: in.CandidateID,
		})
	}
	s.publish(ctx, out)
	return out, nil
}

// CompanyReviewPosted stores the review, refreshes the company's average
// rating, recomputes the candidate's own score and shifts other candidates'
// scores by the review's sentiment.
func (s *Service) CompanyReviewPosted(ctx context.Context, in ReviewInput) (*Outcome, error) {
	if err := s.addReview(ctx, in, model.TargetCompany); err != nil {
		return nil, err
	}
	out := &Outcome{CandidateID: in.CandidateID, CompanyID: in.TargetID}

	if _, err := s.store.RefreshCompanyRating(ctx, in.TargetID); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.Warn("company rating refresh failed", "company_id", in.TargetID, "err", err)
	}
	out.MatchScore = s.recomputeOwn(ctx, in.CandidateID, in.TargetID)
	out.GlobalImpact = s.applyGlobal(ctx, matchscore.GlobalEvent{
		CompanyID:          in.TargetID,
		Type:               matchscore.EventReview,
		Rating:             in.Rating,
		ExcludeCandidateID: in.CandidateID,
	})
	s.publish(ctx, out)
	return out, nil
}

// InternshipReviewPosted stores the review and recomputes the candidate's
// score for the posting's company.
func (s *Service) InternshipReviewPosted(ctx context.Context, in ReviewInput) (*Outcome, error) {
	if err := s.addReview(ctx, in, model.TargetInternship); err != nil {
		return nil, err
	}
	out := &Outcome{CandidateID: in.CandidateID}
	out.CompanyID = s.companyForPosting(ctx, in.TargetID)
	if out.CompanyID != "" {
		out.MatchScore = s.recomputeOwn(ctx, in.CandidateID, out.CompanyID)
	}
	s.publish(ctx, out)
	return out, nil
}

// ─── Chain steps ─────────────────────────────────────────────────────────────

// record validates and stores an interaction. It returns nil for removals.
func (s *Service) record(ctx context.Context, in InteractionInput, target model.TargetKind) (*model.InteractionRecord, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}

	if in.Kind == "" {
		if err := s.store.DeleteInteraction(ctx, in.CandidateID, target, in.TargetID); err != nil {
			return nil, fmt.Errorf("delete %s interaction: %w", target, err)
		}
		return nil, nil
	}

	kind, err := model.ParseInteractionKind(in.Kind)
	if err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	tags, rejected := model.ParseReasonTags(in.Reasons)
	if len(rejected) > 0 {
		s.log.Warn("unknown reason tags dropped", "candidate_id", in.CandidateID, "tags", rejected)
	}

	rec := model.InteractionRecord{
		CandidateID: in.CandidateID,
		TargetID:    in.TargetID,
		TargetKind:  target,
		Interaction: model.Interaction{Kind: kind, Reasons: tags},
		Timestamp:   s.now(),
	}
	if err := s.store.UpsertInteraction(ctx, rec); err != nil {
		return nil, fmt.Errorf("record %s interaction: %w", target, err)
	}
	return &rec, nil
}

func (s *Service) addReview(ctx context.Context, in ReviewInput, target model.TargetKind) error {
	if err := s.validate.Struct(in); err != nil {
		return &ValidationError{Msg: err.Error()}
	}
	err := s.store.AddReview(ctx, model.ReviewRecord{
		CandidateID: in.CandidateID,
		TargetID:    in.TargetID,
		TargetKind:  target,
		Rating:      in.Rating,
		Text:        strings.TrimSpace(in.Text),
		Timestamp:   s.now(),
	})
	if err != nil {
		return fmt.Errorf("add %s review: %w", target, err)
	}
	return nil
}

// companyForPosting resolves the posting's company: its company id, else a
// company whose name matches the organization. Empty when neither exists.
func (s *Service) companyForPosting(ctx context.Context, internshipID string) string {
	p, err := s.store.Posting(ctx, internshipID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Warn("posting lookup failed", "internship_id", internshipID, "err", err)
		}
		return ""
	}
	if id := strings.TrimSpace(p.CompanyID); id != "" {
		return id
	}
	org := strings.TrimSpace(p.Organization)
	if org == "" {
		return ""
	}
	c, err := s.store.CompanyByName(ctx, org)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Warn("company lookup failed", "organization", org, "err", err)
		}
		return ""
	}
	return c.CompanyID
}

func (s *Service) rebuildReputation(ctx context.Context, companyID string) {
	if s.reputation == nil {
		return
	}
	rec, err := s.reputation.RebuildAndSave(ctx, companyID)
	if err != nil {
		s.log.Warn("reputation rebuild failed", "company_id", companyID, "err", err)
		return
	}
	if s.notify == nil {
		return
	}
	score := rec.Score
	ev := events.Event{Type: events.TypeReputationUpdated, CompanyID: companyID, Reputation: &score}
	if err := s.notify.Publish(ctx, ev); err != nil {
		s.log.Warn("publish EVENT_REPUTATION_UPDATED failed", "company_id", companyID, "err", err)
	}
}

func (s *Service) recomputeOwn(ctx context.Context, candidateID, companyID string) *float64 {
	e, err := s.scores.Calculate(ctx, candidateID, companyID)
	if err != nil {
		s.log.Warn("match score recompute failed", "candidate_id", candidateID, "company_id", companyID, "err", err)
		return nil
	}
	if err := s.scores.Save(ctx, *e); err != nil {
		s.log.Warn("match score save failed", "candidate_id", candidateID, "company_id", companyID, "err", err)
	}
	score := e.MatchScore
	return &score
}

func (s *Service) applyGlobal(ctx context.Context, ev matchscore.GlobalEvent) *matchscore.GlobalImpact {
	gi, err := s.scores.ApplyGlobalImpact(ctx, ev)
	if err != nil {
		s.log.Warn("global impact failed", "company_id", ev.CompanyID, "type", string(ev.Type), "err", err)
		return nil
	}
	return &gi
}

// publish sends EVENT_MATCH_SCORES_UPDATED (non-fatal).
func (s *Service) publish(ctx context.Context, out *Outcome) {
	if s.notify == nil || out.CompanyID == "" {
		return
	}
	ev := events.Event{
		Type:        events.TypeMatchScoresUpdated,
		CandidateID: out.CandidateID,
		CompanyID:   out.CompanyID,
		MatchScore:  out.MatchScore,
	}
	if out.GlobalImpact != nil {
		ev.Impact = out.GlobalImpact.Impact
		ev.Affected = out.GlobalImpact.Affected
	}
	if err := s.notify.Publish(ctx, ev); err != nil {
		s.log.Warn("publish EVENT_MATCH_SCORES_UPDATED failed", "err", err)
	}
}

// ─── Errors ──────────────────────────────────────────────────────────────────

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

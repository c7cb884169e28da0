package feedback_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interninsight/match-service/internal/events"
	"interninsight/match-service/internal/feedback"
	"interninsight/match-service/internal/geo"
	"interninsight/match-service/internal/matchscore"
	"interninsight/match-service/internal/model"
	"interninsight/match-service/internal/preference"
	"interninsight/match-service/internal/reputation"
	"interninsight/match-service/internal/skills"
	"interninsight/match-service/internal/store"
	"interninsight/match-service/internal/store/memstore"
)

type recorder struct {
	events []events.Event
	err    error
}

func (r *recorder) Publish(_ context.Context, ev events.Event) error {
	r.events = append(r.events, ev)
	return r.err
}

type fixture struct {
	st     *memstore.Store
	notify *recorder
	svc    *feedback.Service
}

func newFixture() *fixture {
	st := memstore.New().
		PutCompany(model.Company{CompanyID: "c1", Name: "Acme Labs", Headquarters: "Mumbai", InternshipIDs: []string{"i1", "i2"}}).
		PutPosting(model.InternshipPosting{InternshipID: "i1", CompanyID: "c1", Organization: "Acme Labs", Title: "Data Intern", Location: "Mumbai"}).
		PutPosting(model.InternshipPosting{InternshipID: "i2", CompanyID: "c1", Organization: "Acme Labs", Title: "ML Intern", Location: "Pune"}).
		PutPosting(model.InternshipPosting{InternshipID: "i3", Organization: "ACME LABS", Title: "Backend Intern", Location: "Mumbai"}).
		PutPosting(model.InternshipPosting{InternshipID: "i4", Organization: "Nobody Inc", Title: "Ops Intern", Location: "Delhi"})

	oracle := geo.Table{}
	profiles := preference.NewService(st, preference.NewBuilder(skills.NewNormalizer(skills.DefaultSynonyms(), nil), oracle), nil)
	scores := matchscore.NewManager(st, nil, oracle, nil)
	notify := &recorder{}
	return &fixture{
		st:     st,
		notify: notify,
		svc:    feedback.NewService(st, profiles, reputation.NewService(st, nil), scores, notify, nil),
	}
}

func (f *fixture) cache(t *testing.T, candidateID string, score float64) {
	t.Helper()
	require.NoError(t, f.st.SaveMatchScore(context.Background(), model.MatchScoreEntry{
		CandidateID: candidateID, CompanyID: "c1", MatchScore: score, LastUpdated: time.Now(),
	}))
}

func (f *fixture) score(t *testing.T, candidateID string) float64 {
	t.Helper()
	e, err := f.st.MatchScore(context.Background(), candidateID, "c1")
	require.NoError(t, err)
	return e.MatchScore
}

func TestCompanyInteractionChanged_Like(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.cache(t, "u1", 10)
	f.cache(t, "u2", 50)

	out, err := f.svc.CompanyInteractionChanged(ctx, feedback.InteractionInput{
		CandidateID: "u1", TargetID: "c1", Kind: "like", Reasons: []string{"Great company culture", "made up"},
	})
	require.NoError(t, err)

	assert.Equal(t, "c1", out.CompanyID)
	require.NotNil(t, out.MatchScore)
	assert.Equal(t, 54.5, *out.MatchScore)
	assert.Equal(t, &matchscore.GlobalImpact{Impact: 2, Affected: 1}, out.GlobalImpact)

	assert.Equal(t, 54.5, f.score(t, "u1"))
	assert.Equal(t, 52.0, f.score(t, "u2"))

	recs, err := f.st.Interactions(ctx, store.InteractionFilter{CandidateID: "u1"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []model.ReasonTag{model.TagGreatCulture}, recs[0].Interaction.Reasons)

	rep, err := f.st.Reputation(ctx, "c1")
	require.NoError(t, err)
	assert.Greater(t, rep.Score, 90.0)

	require.Len(t, f.notify.events, 2)
	repEv := f.notify.events[0]
	assert.Equal(t, events.TypeReputationUpdated, repEv.Type)
	assert.Equal(t, "c1", repEv.CompanyID)
	require.NotNil(t, repEv.Reputation)
	assert.Equal(t, rep.Score, *repEv.Reputation)
	assert.Empty(t, repEv.CandidateID)

	ev := f.notify.events[1]
	assert.Equal(t, events.TypeMatchScoresUpdated, ev.Type)
	assert.Equal(t, "u1", ev.CandidateID)
	assert.Equal(t, "c1", ev.CompanyID)
	assert.Equal(t, 2.0, ev.Impact)
	assert.Equal(t, 1, ev.Affected)
}

func TestCompanyInteractionChanged_Removal(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.cache(t, "u2", 50)
	_, err := f.svc.CompanyInteractionChanged(ctx, feedback.InteractionInput{CandidateID: "u1", TargetID: "c1", Kind: "dislike"})
	require.NoError(t, err)
	assert.Equal(t, 48.0, f.score(t, "u2"))
	assert.Equal(t, 45.5, f.score(t, "u1"))

	out, err := f.svc.CompanyInteractionChanged(ctx, feedback.InteractionInput{CandidateID: "u1", TargetID: "c1"})
	require.NoError(t, err)
	assert.True(t, out.Removed)
	assert.Nil(t, out.GlobalImpact)
	assert.Equal(t, 50.0, f.score(t, "u1"))
	assert.Equal(t, 48.0, f.score(t, "u2"))

	recs, err := f.st.Interactions(ctx, store.InteractionFilter{CandidateID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, recs)

	// each call publishes the rebuilt reputation and then the score update
	require.Len(t, f.notify.events, 4)
	last := f.notify.events[2]
	assert.Equal(t, events.TypeReputationUpdated, last.Type)
	require.NotNil(t, last.Reputation)
	assert.Equal(t, 50.0, *last.Reputation)
}

func TestInternshipInteractionChanged_ResolvesCompanyByName(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	out, err := f.svc.InternshipInteractionChanged(ctx, feedback.InteractionInput{
		CandidateID: "u1", TargetID: "i3", Kind: "like", Reasons: []string{"Great location"},
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", out.CompanyID)
	require.NotNil(t, out.MatchScore)
	// Neutral factors plus the full location nudge for the headquarters city.
	assert.Equal(t, 55.0, *out.MatchScore)
	assert.Nil(t, out.GlobalImpact)

	profile, err := f.st.PreferenceProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, profile.Counts.Likes)
	require.NotEmpty(t, profile.Locations.Preferred)
	assert.Equal(t, "mumbai", profile.Locations.Preferred[0].Token)
}

func TestInternshipInteractionChanged_UnknownCompany(t *testing.T) {
	f := newFixture()
	for _, target := range []string{"i4", "missing"} {
		out, err := f.svc.InternshipInteractionChanged(context.Background(), feedback.InteractionInput{
			CandidateID: "u1", TargetID: target, Kind: "dislike",
		})
		require.NoError(t, err, target)
		assert.Empty(t, out.CompanyID)
		assert.Nil(t, out.MatchScore)
	}
	assert.Empty(t, f.notify.events)
}

func TestCompanyReviewPosted(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.cache(t, "u2", 50)

	out, err := f.svc.CompanyReviewPosted(ctx, feedback.ReviewInput{CandidateID: "u1", TargetID: "c1", Rating: 5, Text: "  great mentors "})
	require.NoError(t, err)
	assert.Equal(t, &matchscore.GlobalImpact{Impact: 3, Affected: 1}, out.GlobalImpact)
	require.NotNil(t, out.MatchScore)
	assert.Equal(t, 60.0, *out.MatchScore)
	assert.Equal(t, 53.0, f.score(t, "u2"))

	c, err := f.st.Company(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, c.AverageRating)
	assert.Equal(t, 5.0, *c.AverageRating)

	reviews, err := f.st.Reviews(ctx, store.ReviewFilter{CandidateID: "u1"})
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, "great mentors", reviews[0].Text)
}

func TestInternshipReviewPosted(t *testing.T) {
	f := newFixture()
	f.cache(t, "u2", 50)

	out, err := f.svc.InternshipReviewPosted(context.Background(), feedback.ReviewInput{CandidateID: "u1", TargetID: "i1", Rating: 4})
	require.NoError(t, err)
	assert.Equal(t, "c1", out.CompanyID)
	require.NotNil(t, out.MatchScore)
	assert.Equal(t, 53.0, *out.MatchScore)
	assert.Equal(t, 50.0, f.score(t, "u2"))
}

func TestValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	var verr *feedback.ValidationError

	_, err := f.svc.CompanyInteractionChanged(ctx, feedback.InteractionInput{TargetID: "c1", Kind: "like"})
	assert.True(t, errors.As(err, &verr))

	_, err = f.svc.InternshipInteractionChanged(ctx, feedback.InteractionInput{CandidateID: "u1", TargetID: "i1", Kind: "love"})
	assert.True(t, errors.As(err, &verr))

	for _, rating := range []float64{0, 6} {
		_, err = f.svc.CompanyReviewPosted(ctx, feedback.ReviewInput{CandidateID: "u1", TargetID: "c1", Rating: rating})
		assert.True(t, errors.As(err, &verr), "rating %v", rating)
	}
	assert.Empty(t, f.notify.events)
}

func TestPublishFailureIsNonFatal(t *testing.T) {
	f := newFixture()
	f.notify.err = errors.New("redis down")

	out, err := f.svc.CompanyInteractionChanged(context.Background(), feedback.InteractionInput{CandidateID: "u1", TargetID: "c1", Kind: "like"})
	require.NoError(t, err)
	assert.NotNil(t, out.MatchScore)
	assert.Len(t, f.notify.events, 2)
}

func TestStoreUnavailable(t *testing.T) {
	f := newFixture()
	f.st.Fail = true

	_, err := f.svc.CompanyInteractionChanged(context.Background(), feedback.InteractionInput{CandidateID: "u1", TargetID: "c1", Kind: "like"})
	assert.True(t, store.IsUnavailable(err))

	_, err = f.svc.InternshipReviewPosted(context.Background(), feedback.ReviewInput{CandidateID: "u1", TargetID: "i1", Rating: 3})
	assert.True(t, store.IsUnavailable(err))
}

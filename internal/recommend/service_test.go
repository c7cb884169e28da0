package recommend_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interninsight/match-service/internal/model"
	"interninsight/match-service/internal/recommend"
	"interninsight/match-service/internal/store"
	"interninsight/match-service/internal/store/memstore"
)

func seeded(t *testing.T) *memstore.Store {
	t.Helper()
	st := memstore.New().
		PutCandidate(candidate()).
		PutCompany(model.Company{CompanyID: "c1", Name: "Acme Labs", Headquarters: "Mumbai"}).
		PutPosting(posting("i1", "Acme Labs", "Mumbai")).
		PutPosting(posting("i2", "Beta", "Pune")).
		PutPosting(posting("i3", "Gamma", "Delhi"))
	return st
}

func newService(st recommend.Store) *recommend.Service {
	return recommend.NewService(st, newScorer(), nil)
}

func TestForCandidate(t *testing.T) {
	recs, err := newService(seeded(t)).ForCandidate(context.Background(), "u1", recommend.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"i1", "i2", "i3"}, ids(recs))
	assert.Equal(t, 90.0, recs[0].MatchScore)
}

func TestForCandidate_ResolvesCompanyByOrganization(t *testing.T) {
	ctx := context.Background()
	st := seeded(t)
	for _, cand := range []string{"u7", "u8", "u9"} {
		require.NoError(t, st.UpsertInteraction(ctx, model.InteractionRecord{
			CandidateID: cand, TargetID: "c1", TargetKind: model.TargetCompany,
			Interaction: model.Interaction{Kind: model.Like},
		}))
	}

	recs, err := newService(st).ForCandidate(ctx, "u1", recommend.DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	assert.Equal(t, "i1", recs[0].InternshipID)
	assert.Equal(t, "c1", recs[0].CompanyID)
	assert.InDelta(t, 0.05, recs[0].Components.CompanyBoost, 1e-9)
	assert.Equal(t, 95.0, recs[0].MatchScore)
}

func TestForCandidate_RoleRejectionDropsPosting(t *testing.T) {
	ctx := context.Background()
	st := seeded(t)
	require.NoError(t, st.UpsertInteraction(ctx, model.InteractionRecord{
		CandidateID: "u1", TargetID: "i2", TargetKind: model.TargetInternship,
		Interaction: model.Interaction{Kind: model.Dislike, Reasons: []model.ReasonTag{model.TagRoleDoesntFit}},
	}))

	recs, err := newService(st).ForCandidate(ctx, "u1", recommend.DefaultOptions())
	require.NoError(t, err)
	assert.NotContains(t, ids(recs), "i2")
}

func TestInternshipMatch(t *testing.T) {
	svc := newService(seeded(t))
	rec, err := svc.InternshipMatch(context.Background(), "u1", "i2")
	require.NoError(t, err)
	assert.Equal(t, 80.0, rec.MatchScore)

	_, err = svc.InternshipMatch(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.InternshipMatch(context.Background(), "nobody", "i1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestInternshipScores(t *testing.T) {
	got, err := newService(seeded(t)).InternshipScores(context.Background(), "u1", []string{"i1", "i2", "gone"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"i1": 90, "i2": 80}, got)
}

func TestSimilar_ExcludesBase(t *testing.T) {
	svc := newService(seeded(t))
	recs, err := svc.Similar(context.Background(), "i1", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"i2", "i3"}, ids(recs))
	assert.Equal(t, 1.0, recs[0].Components.SkillSim)

	_, err = svc.Similar(context.Background(), "missing", 10)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestForCandidate_Unavailable(t *testing.T) {
	st := seeded(t)
	st.Fail = true
	_, err := newService(st).ForCandidate(context.Background(), "u1", recommend.DefaultOptions())
	assert.True(t, store.IsUnavailable(err))
}

func TestPinGlobals(t *testing.T) {
	ctx := context.Background()
	st := seeded(t)
	companyVote := func(cand string, kind model.InteractionKind) {
		require.NoError(t, st.UpsertInteraction(ctx, model.InteractionRecord{
			CandidateID: cand, TargetID: "c1", TargetKind: model.TargetCompany,
			Interaction: model.Interaction{Kind: kind},
		}))
	}
	companyVote("u7", model.Like)
	svc := newService(st)
	internships := []string{"i1", "i2"}

	want, err := svc.InternshipScores(ctx, "u1", internships)
	require.NoError(t, err)
	score, err := svc.PinGlobals(ctx)
	require.NoError(t, err)
	got, err := score(ctx, "u1", internships)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 95.0, got["i1"])

	// later votes change fresh scores but not the pinned ones
	for _, cand := range []string{"u8", "u9", "u10"} {
		companyVote(cand, model.Dislike)
	}
	fresh, err := svc.InternshipScores(ctx, "u1", internships)
	require.NoError(t, err)
	assert.Equal(t, 87.5, fresh["i1"])

	pinned, err := score(ctx, "u1", internships)
	require.NoError(t, err)
	assert.Equal(t, got, pinned)
}

package preference_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interninsight/match-service/internal/geo"
	"interninsight/match-service/internal/model"
	"interninsight/match-service/internal/preference"
	"interninsight/match-service/internal/skills"
	"interninsight/match-service/internal/store"
	"interninsight/match-service/internal/store/memstore"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newBuilder() *preference.Builder {
	return preference.NewBuilder(skills.NewNormalizer(skills.DefaultSynonyms(), nil), geo.DefaultOracle()).
		WithClock(func() time.Time { return fixedNow })
}

func stipend(v float64) *float64 { return &v }

func like(target string, tags ...model.ReasonTag) model.InteractionRecord {
	return model.InteractionRecord{
		CandidateID: "u1", TargetID: target, TargetKind: model.TargetInternship,
		Interaction: model.Interaction{Kind: model.Like, Reasons: tags},
	}
}

func dislike(target string, tags ...model.ReasonTag) model.InteractionRecord {
	r := like(target, tags...)
	r.Interaction.Kind = model.Dislike
	return r
}

func postings() map[string]model.InternshipPosting {
	return map[string]model.InternshipPosting{
		"i1": {InternshipID: "i1", Title: "Data Science Intern", Location: "Bangalore, Karnataka",
			Sector: "Analytics", SkillsRequired: []string{"Python", "ML"}, Stipend: stipend(15000)},
		"i2": {InternshipID: "i2", Title: "Senior Sales Associate", Location: "Remote",
			Sector: "Sales", SkillsRequired: []string{"Excel"}, Stipend: stipend(4000)},
		"i3": {InternshipID: "i3", Title: "Backend Developer", Location: "Pune (Hybrid)",
			Sector: "Software", SkillsRequired: []string{"Go"}, Stipend: stipend(20000)},
	}
}

func tokens(ws []model.WeightedToken) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Token)
	}
	return out
}

func TestTitleTokens(t *testing.T) {
	assert.Equal(t, []string{"data", "science"}, preference.TitleTokens("Data Science Intern"))
	assert.Equal(t, []string{"sales"}, preference.TitleTokens("Senior Sales Associate"))
	assert.Empty(t, preference.TitleTokens("Intern - a"))
}

func TestInferWorkType(t *testing.T) {
	cases := map[string]string{
		"":                    preference.WorkUnknown,
		"Remote":              preference.WorkRemote,
		"WFH":                 preference.WorkRemote,
		"Work From Home":      preference.WorkRemote,
		"Pune (Hybrid)":       preference.WorkHybrid,
		"Mumbai, Maharashtra": preference.WorkOnsite,
	}
	for in, want := range cases {
		assert.Equal(t, want, preference.InferWorkType(in), in)
	}
}

func TestInferSeniority(t *testing.T) {
	assert.Equal(t, preference.SenioritySenior, preference.InferSeniority("Sr. Analyst"))
	assert.Equal(t, preference.SenioritySenior, preference.InferSeniority("Tech Lead Intern"))
	assert.Equal(t, preference.SeniorityJunior, preference.InferSeniority("Entry level designer"))
	assert.Equal(t, preference.SeniorityMid, preference.InferSeniority("Marketing Intern"))
	assert.Equal(t, preference.SeniorityMid, preference.InferSeniority("Leadership program"))
	assert.Equal(t, preference.SeniorityUnknown, preference.InferSeniority(""))
}

func TestBuild_Empty(t *testing.T) {
	p := newBuilder().Build("u1", nil, nil)
	assert.Equal(t, 0.0, p.Strength)
	assert.Equal(t, model.Counts{}, p.Counts)
	assert.Empty(t, p.Skills.Preferred)
	assert.Nil(t, p.Stipend.MinPreferred)
	assert.Equal(t, fixedNow, p.UpdatedAt)
}

func TestBuild_LikeTags(t *testing.T) {
	p := newBuilder().Build("u1", []model.InteractionRecord{
		like("i1", model.TagGreatLocation, model.TagSkillsMatchWell, model.TagPerfectRoleFit, model.TagGoodStipend),
	}, postings())

	assert.Equal(t, model.Counts{Likes: 1, Total: 1}, p.Counts)
	assert.Equal(t, 0.1, p.Strength)
	assert.Equal(t, []model.WeightedToken{{Token: "bengaluru", Weight: 2}}, p.Locations.Preferred)
	assert.Equal(t, []string{"machine learning", "python"}, tokens(p.Skills.Preferred))
	// one for the like, two for the role-fit tag
	assert.Equal(t, []model.WeightedToken{{Token: "data", Weight: 3}, {Token: "science", Weight: 3}}, p.Roles.Preferred)
	assert.Equal(t, []model.WeightedToken{{Token: "analytics", Weight: 1}}, p.Sectors.Preferred)
	assert.Equal(t, []model.WeightedToken{{Token: preference.WorkOnsite, Weight: 1}}, p.WorkType)
	assert.Equal(t, []model.WeightedToken{{Token: preference.SeniorityMid, Weight: 1}}, p.Seniority)
	require.NotNil(t, p.Stipend.MinPreferred)
	assert.Equal(t, 15000.0, *p.Stipend.MinPreferred)
}

func TestBuild_DislikeTags(t *testing.T) {
	p := newBuilder().Build("u1", []model.InteractionRecord{
		dislike("i2", model.TagPoorLocation, model.TagSkillsMismatch, model.TagRoleDoesntFit, model.TagLowStipend),
	}, postings())

	assert.Equal(t, model.Counts{Dislikes: 1, Total: 1}, p.Counts)
	assert.Equal(t, []string{"remote"}, tokens(p.Locations.Avoided))
	assert.Equal(t, []string{"microsoft excel"}, tokens(p.Skills.Avoided))
	assert.Equal(t, []model.WeightedToken{{Token: "sales", Weight: 2}}, p.Roles.Avoided)
	assert.Equal(t, []model.WeightedToken{{Token: "sales", Weight: 1}}, p.Sectors.Avoided)
	assert.Equal(t, []model.WeightedToken{{Token: preference.WorkRemote, Weight: -1}}, p.WorkType)
	assert.Equal(t, []model.WeightedToken{{Token: preference.SenioritySenior, Weight: -1}}, p.Seniority)
	require.NotNil(t, p.Stipend.LowFloor)
	assert.Equal(t, 4000.0, *p.Stipend.LowFloor)
	assert.Empty(t, p.Roles.Preferred)
}

func TestBuild_SkipsUnknownPostingsAndCompanyTargets(t *testing.T) {
	company := like("c1", model.TagGreatCulture)
	company.TargetKind = model.TargetCompany

	p := newBuilder().Build("u1", []model.InteractionRecord{
		like("missing", model.TagGreatLocation),
		company,
		like("i3"),
	}, postings())

	assert.Equal(t, 1, p.Counts.Total)
	assert.Equal(t, []model.WeightedToken{{Token: preference.WorkHybrid, Weight: 1}}, p.WorkType)
}

func TestBuild_StipendKeepsMaximum(t *testing.T) {
	p := newBuilder().Build("u1", []model.InteractionRecord{
		like("i3", model.TagGoodStipend),
		like("i1", model.TagGoodStipend),
	}, postings())
	require.NotNil(t, p.Stipend.MinPreferred)
	assert.Equal(t, 20000.0, *p.Stipend.MinPreferred)
}

func TestBuild_NetWeightsCancel(t *testing.T) {
	p := newBuilder().Build("u1", []model.InteractionRecord{
		like("i1"),
		dislike("i3"),
	}, postings())

	// onsite +1, hybrid -1, mid +1 -1 = 0 and dropped
	assert.Equal(t, []model.WeightedToken{
		{Token: preference.WorkOnsite, Weight: 1},
		{Token: preference.WorkHybrid, Weight: -1},
	}, p.WorkType)
	assert.Empty(t, p.Seniority)
}

func TestBuild_StrengthSaturates(t *testing.T) {
	var recs []model.InteractionRecord
	ps := map[string]model.InternshipPosting{}
	for i := 0; i < 14; i++ {
		id := fmt.Sprintf("p%d", i)
		ps[id] = model.InternshipPosting{InternshipID: id, Title: "Analyst"}
		recs = append(recs, like(id))
	}
	p := newBuilder().Build("u1", recs[:4], ps)
	assert.Equal(t, 0.4, p.Strength)

	p = newBuilder().Build("u1", recs, ps)
	assert.Equal(t, 1.0, p.Strength)
	assert.Equal(t, 14, p.Counts.Likes)
}

func TestBuild_CapsAndTieBreak(t *testing.T) {
	var required []string
	for i := 0; i < 30; i++ {
		required = append(required, fmt.Sprintf("skill%02d", i))
	}
	ps := map[string]model.InternshipPosting{
		"big": {InternshipID: "big", Title: "Generalist", SkillsRequired: required},
	}
	p := newBuilder().Build("u1", []model.InteractionRecord{like("big", model.TagSkillsMatchWell)}, ps)

	require.Len(t, p.Skills.Preferred, 25)
	assert.Equal(t, "skill00", p.Skills.Preferred[0].Token)
	assert.Equal(t, "skill24", p.Skills.Preferred[24].Token)
}

func TestBuild_Deterministic(t *testing.T) {
	recs := []model.InteractionRecord{
		like("i1", model.TagGreatLocation, model.TagSkillsMatchWell),
		dislike("i2", model.TagRoleDoesntFit),
		like("i3", model.TagCareerRelevant),
	}
	a, err := json.Marshal(newBuilder().Build("u1", recs, postings()))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		b, err := json.Marshal(newBuilder().Build("u1", recs, postings()))
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b))
	}
}

// ─── Service ─────────────────────────────────────────────────────────────────

func seeded() *memstore.Store {
	s := memstore.New()
	for _, p := range postings() {
		s.PutPosting(p)
	}
	return s
}

func TestRebuildAndSave(t *testing.T) {
	ctx := context.Background()
	st := seeded()
	require.NoError(t, st.UpsertInteraction(ctx, like("i1", model.TagGreatLocation)))
	require.NoError(t, st.UpsertInteraction(ctx, dislike("i2", model.TagPoorLocation)))

	svc := preference.NewService(st, newBuilder(), nil)
	p, err := svc.RebuildAndSave(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Counts.Total)

	loaded, err := svc.Load(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, p.Locations, loaded.Locations)

	// Withdrawing the dislike and rebuilding drops its contribution.
	require.NoError(t, st.DeleteInteraction(ctx, "u1", model.TargetInternship, "i2"))
	p, err = svc.RebuildAndSave(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Counts.Total)
	assert.Empty(t, p.Locations.Avoided)
}

func TestLoad_Missing(t *testing.T) {
	svc := preference.NewService(seeded(), newBuilder(), nil)
	p, err := svc.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestRebuildAndSave_Unavailable(t *testing.T) {
	st := seeded()
	st.Fail = true
	_, err := preference.NewService(st, newBuilder(), nil).RebuildAndSave(context.Background(), "u1")
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

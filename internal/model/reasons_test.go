package model_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interninsight/match-service/internal/model"
)

// ── ParseReasonTag ─────────────────────────────────────────────────────────

func TestParseReasonTag_ValidValues(t *testing.T) {
	valid := []string{
		"Great location", "Skills match well", "Role doesn't fit", "Too advanced/basic",
		"Great company culture", "Toxic environment", "Good work-life balance",
	}
	for _, s := range valid {
		got, err := model.ParseReasonTag(s)
		require.NoError(t, err, "ParseReasonTag(%q)", s)
		assert.Equal(t, s, string(got))
	}
}

func TestParseReasonTag_RejectsVariants(t *testing.T) {
	for _, s := range []string{"", "great location", " Great location", "Great location ", "Amazing vibes"} {
		_, err := model.ParseReasonTag(s)
		require.Error(t, err, "ParseReasonTag(%q)", s)
		assert.True(t, errors.Is(err, model.ErrUnknownReasonTag))
	}
}

// ── ParseReasonTags ────────────────────────────────────────────────────────

func TestParseReasonTags_DedupesAndReportsRejected(t *testing.T) {
	tags, rejected := model.ParseReasonTags([]string{
		"Low stipend", "bogus", "Low stipend", "Poor location", "LOW STIPEND",
	})
	assert.Equal(t, []model.ReasonTag{model.TagLowStipend, model.TagPoorLocation}, tags)
	assert.Equal(t, []string{"bogus", "LOW STIPEND"}, rejected)
}

func TestParseReasonTags_Empty(t *testing.T) {
	tags, rejected := model.ParseReasonTags(nil)
	assert.Empty(t, tags)
	assert.Empty(t, rejected)
}

// ── Kinds ──────────────────────────────────────────────────────────────────

func TestParseInteractionKind(t *testing.T) {
	k, err := model.ParseInteractionKind("like")
	require.NoError(t, err)
	assert.Equal(t, model.Like, k)

	_, err = model.ParseInteractionKind("LIKE")
	assert.Error(t, err)
	_, err = model.ParseInteractionKind("remove")
	assert.Error(t, err)
}

func TestParseTargetKind(t *testing.T) {
	k, err := model.ParseTargetKind("internship")
	require.NoError(t, err)
	assert.Equal(t, model.TargetInternship, k)

	_, err = model.ParseTargetKind("candidate")
	assert.Error(t, err)
}

// ── Tag classification ─────────────────────────────────────────────────────

func TestTagClassification(t *testing.T) {
	assert.True(t, model.IsCompanyTag(model.TagToxicEnvironment))
	assert.False(t, model.IsCompanyTag(model.TagLowStipend))
	assert.True(t, model.IsInternshipTag(model.TagLowStipend))
	assert.False(t, model.IsInternshipTag(model.TagGreatCulture))

	assert.Equal(t, model.Like, model.Polarity(model.TagGoodStipend))
	assert.Equal(t, model.Dislike, model.Polarity(model.TagDurationIssues))
	assert.Equal(t, model.InteractionKind(""), model.Polarity(model.TagGoodManagement))
}

func TestCompanyTagWeight(t *testing.T) {
	w, ok := model.CompanyTagWeight(model.TagToxicEnvironment)
	require.True(t, ok)
	assert.InDelta(t, -1.2, w, 1e-9)

	w, ok = model.CompanyTagWeight(model.TagGreatCulture)
	require.True(t, ok)
	assert.InDelta(t, 1.0, w, 1e-9)

	_, ok = model.CompanyTagWeight(model.TagGreatLocation)
	assert.False(t, ok)
}

// ── Interaction helpers ────────────────────────────────────────────────────

func TestInteractionHas(t *testing.T) {
	i := model.Interaction{Kind: model.Dislike, Reasons: []model.ReasonTag{model.TagRoleDoesntFit}}
	assert.True(t, i.Has(model.TagRoleDoesntFit))
	assert.False(t, i.Has(model.TagLowStipend))
	assert.True(t, i.HasAny(model.TagLowStipend, model.TagRoleDoesntFit))
	assert.False(t, model.Interaction{}.HasAny(model.TagLowStipend))
}

func TestCompanyKey(t *testing.T) {
	assert.Equal(t, "c1", model.InternshipPosting{CompanyID: " c1 ", Organization: "Acme"}.CompanyKey())
	assert.Equal(t, "acme labs", model.InternshipPosting{Organization: " Acme Labs "}.CompanyKey())
}

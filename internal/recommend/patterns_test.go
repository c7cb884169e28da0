package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"interninsight/match-service/internal/model"
)

func TestDurationBucket(t *testing.T) {
	cases := map[string]string{
		"1 Month":    durationShort,
		"2 months":   durationShort,
		"3 months":   durationMedium,
		"4-6 months": durationMedium,
		"6":          durationLong,
		"0 weeks":    "",
		"flexible":   "",
		"":           "",
	}
	for in, want := range cases {
		assert.Equal(t, want, durationBucket(in), in)
	}
}

func TestComplexityLabel(t *testing.T) {
	assert.Equal(t, complexityBasic, complexityLabel(model.InternshipPosting{BeginnerFriendly: true}, 9))
	assert.Equal(t, complexityBasic, complexityLabel(model.InternshipPosting{}, 3))
	assert.Equal(t, complexityMedium, complexityLabel(model.InternshipPosting{}, 4))
	assert.Equal(t, complexityAdvanced, complexityLabel(model.InternshipPosting{}, 6))
}

func TestLearningProxy(t *testing.T) {
	assert.True(t, learningProxy(model.InternshipPosting{BeginnerFriendly: true}))
	assert.True(t, learningProxy(model.InternshipPosting{Description: "Weekly Mentorship sessions"}))
	assert.False(t, learningProxy(model.InternshipPosting{Description: "You learned enough already"}))
	assert.False(t, learningProxy(model.InternshipPosting{}))
}

func TestAdjustWeights(t *testing.T) {
	sum := func(w Weights) float64 { return w.Skill + w.Location + w.Sector + w.Misc }

	w := adjustWeights(DefaultWeights, true, true, true, 0)
	assert.InDelta(t, 1, sum(w), 1e-9)
	assert.InDelta(t, 0.5, w.Skill, 1e-9)

	// Empty profile fields move weight into the misc channel.
	w = adjustWeights(DefaultWeights, false, false, false, 0)
	assert.InDelta(t, 1, sum(w), 1e-9)
	assert.InDelta(t, 0.25/0.78, w.Misc, 1e-9)
	assert.InDelta(t, 0.3/0.78, w.Skill, 1e-9)

	// A learned profile keeps location relevant without a stated city.
	w = adjustWeights(DefaultWeights, true, false, true, 1)
	assert.InDelta(t, 1, sum(w), 1e-9)
	assert.Greater(t, w.Location, 0.2)

	w = adjustWeights(Weights{}, true, true, true, 0)
	assert.Equal(t, Weights{}, w)
}

// Package preference turns a candidate's internship likes and dislikes into
// a persisted, explainable preference profile.
package preference

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"interninsight/match-service/internal/geo"
	"interninsight/match-service/internal/model"
	"interninsight/match-service/internal/skills"
)

const (
	maxItems       = 25
	maxCoarseItems = 3
	// strengthSaturation is the interaction count at which strength reaches 1.
	strengthSaturation = 10.0
)

var titleStopwords = map[string]bool{
	"intern": true, "internship": true, "trainee": true, "jr": true, "junior": true,
	"sr": true, "senior": true, "lead": true, "manager": true, "associate": true,
	"and": true, "or": true, "the": true, "a": true, "an": true, "of": true,
	"to": true, "in": true, "for": true, "with": true, "on": true,
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// TitleTokens splits a title into lowercase words, dropping one-letter
// words and generic role words.
func TitleTokens(title string) []string {
	var out []string
	for _, t := range nonAlnum.Split(strings.ToLower(title), -1) {
		if len(t) > 1 && !titleStopwords[t] {
			out = append(out, t)
		}
	}
	return out
}

// Work types inferred from a location string.
const (
	WorkRemote  = "remote"
	WorkHybrid  = "hybrid"
	WorkOnsite  = "onsite"
	WorkUnknown = "unknown"
)

// InferWorkType classifies a location string.
func InferWorkType(location string) string {
	s := strings.ToLower(strings.TrimSpace(location))
	switch {
	case s == "":
		return WorkUnknown
	case strings.Contains(s, "hybrid"):
		return WorkHybrid
	case strings.Contains(s, "remote"), strings.Contains(s, "wfh"), strings.Contains(s, "work from home"):
		return WorkRemote
	default:
		return WorkOnsite
	}
}

// Seniority levels inferred from a title.
const (
	SeniorityJunior  = "junior"
	SeniorityMid     = "mid"
	SenioritySenior  = "senior"
	SeniorityUnknown = "unknown"
)

// InferSeniority classifies a title by keyword.
func InferSeniority(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	if s == "" {
		return SeniorityUnknown
	}
	words := make(map[string]bool)
	for _, w := range nonAlnum.Split(s, -1) {
		words[w] = true
	}
	if words["senior"] || words["sr"] || words["lead"] || words["principal"] || words["staff"] {
		return SenioritySenior
	}
	if words["junior"] || words["jr"] || words["entry"] || words["fresher"] {
		return SeniorityJunior
	}
	return SeniorityMid
}

// Builder computes preference profiles. It is pure: the same interactions
// always produce the same profile apart from UpdatedAt.
type Builder struct {
	norm   *skills.Normalizer
	oracle geo.Oracle
	now    func() time.Time
}

// NewBuilder returns a Builder that normalizes skills with norm and cities
// with oracle.
func NewBuilder(norm *skills.Normalizer, oracle geo.Oracle) *Builder {
	return &Builder{norm: norm, oracle: oracle, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock returns a copy of b that stamps profiles using now.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	c := *b
	c.now = now
	return &c
}

type tally map[string]float64

func (t tally) add(token string, w float64) {
	if token != "" {
		t[token] += w
	}
}

// Build derives a profile from the candidate's internship interactions.
// Records for other targets, or whose posting is missing, are skipped.
func (b *Builder) Build(candidateID string, interactions []model.InteractionRecord, postings map[string]model.InternshipPosting) model.PreferenceProfile {
	var (
		counts                 model.Counts
		minPreferred, lowFloor *float64
	)
	prefSkills, avoidSkills := tally{}, tally{}
	prefRoles, avoidRoles := tally{}, tally{}
	prefLocations, avoidLocations := tally{}, tally{}
	prefSectors, avoidSectors := tally{}, tally{}
	workType, seniority := tally{}, tally{}

	for _, rec := range interactions {
		if rec.TargetKind != model.TargetInternship {
			continue
		}
		p, ok := postings[rec.TargetID]
		if !ok {
			continue
		}

		in := rec.Interaction
		city := geo.NormalizeCity(b.oracle, p.Location)
		sector := strings.ToLower(strings.TrimSpace(p.Sector))
		titleTokens := TitleTokens(p.Title)
		required := b.norm.NormalizeList(p.SkillsRequired)

		sign := 1.0
		switch in.Kind {
		case model.Like:
			counts.Likes++
			for _, t := range titleTokens {
				prefRoles.add(t, 1)
			}
			if in.HasAny(model.TagGreatLocation, model.TagPerfectLocation) {
				prefLocations.add(city, 2)
			}
			if in.Has(model.TagSkillsMatchWell) {
				for _, s := range required {
					prefSkills.add(s, 2)
				}
			}
			if in.HasAny(model.TagPerfectRoleFit, model.TagCareerRelevant) {
				for _, t := range titleTokens {
					prefRoles.add(t, 2)
				}
				prefSectors.add(sector, 1)
			}
			if in.Has(model.TagGoodStipend) && p.Stipend != nil {
				minPreferred = maxPtr(minPreferred, *p.Stipend)
			}
		case model.Dislike:
			counts.Dislikes++
			sign = -1
			if in.Has(model.TagPoorLocation) {
				avoidLocations.add(city, 2)
			}
			if in.Has(model.TagSkillsMismatch) {
				for _, s := range required {
					avoidSkills.add(s, 2)
				}
			}
			if in.Has(model.TagRoleDoesntFit) {
				for _, t := range titleTokens {
					avoidRoles.add(t, 2)
				}
				avoidSectors.add(sector, 1)
			}
			if in.Has(model.TagNotInterestedSector) {
				avoidSectors.add(sector, 1)
			}
			if in.Has(model.TagLowStipend) && p.Stipend != nil {
				lowFloor = maxPtr(lowFloor, *p.Stipend)
			}
		default:
			continue
		}

		if wt := InferWorkType(p.Location); wt != WorkUnknown {
			workType.add(wt, sign)
		}
		if sen := InferSeniority(p.Title); sen != SeniorityUnknown {
			seniority.add(sen, sign)
		}
	}

	counts.Total = counts.Likes + counts.Dislikes
	return model.PreferenceProfile{
		CandidateID: candidateID,
		UpdatedAt:   b.now(),
		Counts:      counts,
		Strength:    model.Round(min(1, float64(counts.Total)/strengthSaturation), 3),
		Skills:      model.PreferenceList{Preferred: top(prefSkills, maxItems), Avoided: top(avoidSkills, maxItems)},
		Roles:       model.PreferenceList{Preferred: top(prefRoles, maxItems), Avoided: top(avoidRoles, maxItems)},
		Locations:   model.PreferenceList{Preferred: top(prefLocations, maxItems), Avoided: top(avoidLocations, maxItems)},
		Sectors:     model.PreferenceList{Preferred: top(prefSectors, maxItems), Avoided: top(avoidSectors, maxItems)},
		WorkType:    top(workType, maxCoarseItems),
		Seniority:   top(seniority, maxCoarseItems),
		Stipend:     model.StipendPreference{MinPreferred: minPreferred, LowFloor: lowFloor},
	}
}

// top ranks non-zero entries by weight, breaking ties by token.
func top(t tally, n int) []model.WeightedToken {
	out := make([]model.WeightedToken, 0, len(t))
	for tok, w := range t {
		if w != 0 {
			out = append(out, model.WeightedToken{Token: tok, Weight: w})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Token < out[j].Token
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func maxPtr(cur *float64, v float64) *float64 {
	if cur != nil && *cur >= v {
		return cur
	}
	return &v
}

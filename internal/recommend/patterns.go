package recommend

import (
	"regexp"
	"strconv"

	"interninsight/match-service/internal/geo"
	"interninsight/match-service/internal/model"
)

// Duration buckets.
const (
	durationShort  = "short"
	durationMedium = "medium"
	durationLong   = "long"
)

// Complexity labels.
const (
	complexityBasic    = "basic"
	complexityMedium   = "medium"
	complexityAdvanced = "advanced"
)

var (
	firstNumber   = regexp.MustCompile(`\d+`)
	learningWords = regexp.MustCompile(`\b(learn|learning|training|mentor|mentorship)\b`)
)

// durationBucket reads the first integer of a duration string as months.
func durationBucket(duration string) string {
	m := firstNumber.FindString(duration)
	if m == "" {
		return ""
	}
	months, err := strconv.Atoi(m)
	if err != nil || months <= 0 {
		return ""
	}
	switch {
	case months <= 2:
		return durationShort
	case months <= 4:
		return durationMedium
	default:
		return durationLong
	}
}

func complexityLabel(p model.InternshipPosting, skillCount int) string {
	switch {
	case p.BeginnerFriendly || skillCount <= 3:
		return complexityBasic
	case skillCount >= 6:
		return complexityAdvanced
	default:
		return complexityMedium
	}
}

func learningProxy(p model.InternshipPosting) bool {
	return p.BeginnerFriendly || learningWords.MatchString(lower(p.Description))
}

// patterns is what the candidate's tagged internship interactions say
// about the postings they want, independent of any stored profile.
type patterns struct {
	dislikedCities     []string
	dislikedSectors    map[string]bool
	dislikedSkills     map[string]bool
	dislikedDurations  map[string]bool
	dislikedComplexity map[string]bool
	lowStipend         *float64
	limitedLearning    int

	likedCities  []string
	likedSectors map[string]bool
	likedSkills  map[string]bool
	minStipend   *float64
	learning     int
}

func (s *Scorer) learnPatterns(interactions map[string]model.Interaction, find func(string) (model.InternshipPosting, bool)) patterns {
	pt := patterns{
		dislikedSectors:    map[string]bool{},
		dislikedSkills:     map[string]bool{},
		dislikedDurations:  map[string]bool{},
		dislikedComplexity: map[string]bool{},
		likedSectors:       map[string]bool{},
		likedSkills:        map[string]bool{},
	}
	for id, in := range interactions {
		p, ok := find(id)
		if !ok {
			continue
		}
		city := geo.NormalizeCity(s.oracle, p.Location)
		sector := lower(p.Sector)

		switch in.Kind {
		case model.Dislike:
			if in.Has(model.TagPoorLocation) && city != "" {
				pt.dislikedCities = append(pt.dislikedCities, city)
			}
			if in.HasAny(model.TagNotInterestedSector, model.TagRoleDoesntFit) && sector != "" {
				pt.dislikedSectors[sector] = true
			}
			if in.Has(model.TagLowStipend) && p.Stipend != nil && *p.Stipend > 0 {
				pt.lowStipend = maxOf(pt.lowStipend, *p.Stipend)
			}
			if in.Has(model.TagSkillsMismatch) {
				for _, sk := range s.norm.NormalizeList(p.SkillsRequired) {
					pt.dislikedSkills[sk] = true
				}
			}
			if in.Has(model.TagDurationIssues) {
				if b := durationBucket(p.Duration); b != "" {
					pt.dislikedDurations[b] = true
				}
			}
			if in.Has(model.TagTooAdvancedOrBasic) {
				pt.dislikedComplexity[complexityLabel(p, len(s.norm.NormalizeList(p.SkillsRequired)))] = true
			}
			if in.Has(model.TagLimitedLearning) {
				pt.limitedLearning++
			}
		case model.Like:
			if in.Has(model.TagGreatLocation) && city != "" {
				pt.likedCities = append(pt.likedCities, city)
			}
			if in.Has(model.TagSkillsMatchWell) {
				for _, sk := range s.norm.NormalizeList(p.SkillsRequired) {
					pt.likedSkills[sk] = true
				}
			}
			if in.HasAny(model.TagPerfectRoleFit, model.TagCareerRelevant) && sector != "" {
				pt.likedSectors[sector] = true
			}
			if in.Has(model.TagGoodStipend) && p.Stipend != nil {
				pt.minStipend = maxOf(pt.minStipend, *p.Stipend)
			}
			if in.Has(model.TagLearningOpportunity) {
				pt.learning++
			}
		}
	}
	return pt
}

// apply returns the pattern boost and penalty for one posting.
func (s *Scorer) apply(pt patterns, p model.InternshipPosting, skills []string) (boost, penalty float64) {
	if city := geo.NormalizeCity(s.oracle, p.Location); city != "" {
		if m := s.maxDecay(pt.likedCities, city); m > 0 {
			boost += 0.08 * m
		}
		if m := s.maxDecay(pt.dislikedCities, city); m > 0 {
			penalty += 0.10 * m
		}
	}

	if sector := lower(p.Sector); sector != "" {
		if pt.dislikedSectors[sector] {
			penalty += 0.15
		}
		if pt.likedSectors[sector] {
			boost += 0.06
		}
	}

	if pt.lowStipend != nil && p.Stipend != nil && *p.Stipend != 0 {
		switch st := *p.Stipend; {
		case st <= *pt.lowStipend:
			penalty += 0.08
		case st <= *pt.lowStipend*1.1:
			penalty += 0.04
		}
	}

	if r := overlapRatio(pt.dislikedSkills, skills); r >= 0.5 {
		penalty += 0.12
	} else if r >= 0.3 {
		penalty += 0.06
	}
	if r := overlapRatio(pt.likedSkills, skills); r > 0 {
		boost += min(0.06, 0.06*r)
	}

	if len(pt.dislikedDurations) > 0 && pt.dislikedDurations[durationBucket(p.Duration)] {
		penalty += 0.04
	}
	if len(pt.dislikedComplexity) > 0 && pt.dislikedComplexity[complexityLabel(p, len(skills))] {
		penalty += 0.04
	}

	learns := learningProxy(p)
	if pt.learning > 0 && learns {
		boost += 0.04
	}
	if pt.limitedLearning > 0 && !learns {
		penalty += 0.04
	}

	if pt.minStipend != nil && *pt.minStipend > 0 && p.Stipend != nil {
		switch st := *p.Stipend; {
		case st >= *pt.minStipend:
			boost += 0.04
		case st >= *pt.minStipend*0.9:
			boost += 0.02
		}
	}
	return boost, penalty
}

func (s *Scorer) maxDecay(cities []string, city string) float64 {
	best := 0.0
	for _, c := range cities {
		if c == city {
			return 1
		}
		best = max(best, geo.CityDecay(s.oracle, c, city, geo.HalfLifeKm))
	}
	return best
}

// overlapRatio is the share of skills present in set.
func overlapRatio(set map[string]bool, skills []string) float64 {
	if len(set) == 0 || len(skills) == 0 {
		return 0
	}
	n := 0
	for _, sk := range skills {
		if set[sk] {
			n++
		}
	}
	return float64(n) / float64(len(skills))
}

func maxOf(cur *float64, v float64) *float64 {
	if cur != nil && *cur >= v {
		return cur
	}
	return &v
}

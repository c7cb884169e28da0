package model

import (
	"errors"
	"fmt"
)

// ReasonTag is one of the fixed reasons a candidate can attach to a like or
// dislike. The set is closed; anything else is rejected at ingestion.
type ReasonTag string

// Internship reasons.
const (
	TagGreatLocation       ReasonTag = "Great location"
	TagPerfectLocation     ReasonTag = "Perfect location"
	TagSkillsMatchWell     ReasonTag = "Skills match well"
	TagPerfectRoleFit      ReasonTag = "Perfect role fit"
	TagCareerRelevant      ReasonTag = "Career relevant"
	TagGoodStipend         ReasonTag = "Good stipend"
	TagLearningOpportunity ReasonTag = "Learning opportunity"
	TagReputableCompany    ReasonTag = "Reputable company"
	TagPoorLocation        ReasonTag = "Poor location"
	TagSkillsMismatch      ReasonTag = "Skills mismatch"
	TagRoleDoesntFit       ReasonTag = "Role doesn't fit"
	TagLowStipend          ReasonTag = "Low stipend"
	TagNotInterestedSector ReasonTag = "Not interested in sector"
	TagDurationIssues      ReasonTag = "Duration issues"
	TagTooAdvancedOrBasic  ReasonTag = "Too advanced/basic"
	TagLimitedLearning     ReasonTag = "Limited learning"
)

// Company reasons.
const (
	TagGreatCulture          ReasonTag = "Great company culture"
	TagExcellentBenefits     ReasonTag = "Excellent benefits"
	TagGoodWorkLifeBalance   ReasonTag = "Good work-life balance"
	TagStrongReputation      ReasonTag = "Strong reputation"
	TagInnovationFocused     ReasonTag = "Innovation focused"
	TagLearningOpportunities ReasonTag = "Learning opportunities"
	TagCareerGrowth          ReasonTag = "Career growth potential"
	TagGoodManagement        ReasonTag = "Good management"
	TagPoorCulture           ReasonTag = "Poor work culture"
	TagInadequateBenefits    ReasonTag = "Inadequate benefits"
	TagBadWorkLifeBalance    ReasonTag = "Bad work-life balance"
	TagNegativeReviews       ReasonTag = "Negative reviews"
	TagLimitedGrowth         ReasonTag = "Limited growth"
	TagPoorManagement        ReasonTag = "Poor management"
	TagLowCompensation       ReasonTag = "Low compensation"
	TagToxicEnvironment      ReasonTag = "Toxic environment"
)

// companyTagWeights is the sentiment weight of each company reason.
var companyTagWeights = map[ReasonTag]float64{
	TagGreatCulture:          1.0,
	TagExcellentBenefits:     0.8,
	TagGoodWorkLifeBalance:   1.0,
	TagStrongReputation:      1.0,
	TagInnovationFocused:     0.7,
	TagLearningOpportunities: 0.9,
	TagCareerGrowth:          0.9,
	TagGoodManagement:        0.8,
	TagPoorCulture:           -1.0,
	TagInadequateBenefits:    -0.8,
	TagBadWorkLifeBalance:    -1.0,
	TagNegativeReviews:       -0.9,
	TagLimitedGrowth:         -0.8,
	TagPoorManagement:        -0.9,
	TagLowCompensation:       -0.7,
	TagToxicEnvironment:      -1.2,
}

var internshipTags = map[ReasonTag]InteractionKind{
	TagGreatLocation:       Like,
	TagPerfectLocation:     Like,
	TagSkillsMatchWell:     Like,
	TagPerfectRoleFit:      Like,
	TagCareerRelevant:      Like,
	TagGoodStipend:         Like,
	TagLearningOpportunity: Like,
	TagReputableCompany:    Like,
	TagPoorLocation:        Dislike,
	TagSkillsMismatch:      Dislike,
	TagRoleDoesntFit:       Dislike,
	TagLowStipend:          Dislike,
	TagNotInterestedSector: Dislike,
	TagDurationIssues:      Dislike,
	TagTooAdvancedOrBasic:  Dislike,
	TagLimitedLearning:     Dislike,
}

// ErrUnknownReasonTag is returned for strings outside the closed tag set.
var ErrUnknownReasonTag = errors.New("unknown reason tag")

// ParseReasonTag converts s into a ReasonTag. Matching is exact: case or
// whitespace variants are rejected.
func ParseReasonTag(s string) (ReasonTag, error) {
	t := ReasonTag(s)
	if _, ok := internshipTags[t]; ok {
		return t, nil
	}
	if _, ok := companyTagWeights[t]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownReasonTag, s)
}

// ParseReasonTags validates a batch of raw tags. Valid tags are returned
// de-duplicated in first-seen order; rejected strings are returned separately
// so callers can log them.
func ParseReasonTags(raw []string) (tags []ReasonTag, rejected []string) {
	seen := make(map[ReasonTag]bool, len(raw))
	for _, s := range raw {
		t, err := ParseReasonTag(s)
		if err != nil {
			rejected = append(rejected, s)
			continue
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	return tags, rejected
}

// ParseInteractionKind converts s into an InteractionKind.
func ParseInteractionKind(s string) (InteractionKind, error) {
	switch InteractionKind(s) {
	case Like, Dislike:
		return InteractionKind(s), nil
	}
	return "", fmt.Errorf("unknown interaction kind %q", s)
}

// ParseTargetKind converts s into a TargetKind.
func ParseTargetKind(s string) (TargetKind, error) {
	switch TargetKind(s) {
	case TargetCompany, TargetInternship:
		return TargetKind(s), nil
	}
	return "", fmt.Errorf("unknown target kind %q", s)
}

// IsCompanyTag reports whether t is a company reason.
func IsCompanyTag(t ReasonTag) bool {
	_, ok := companyTagWeights[t]
	return ok
}

// IsInternshipTag reports whether t is an internship reason.
func IsInternshipTag(t ReasonTag) bool {
	_, ok := internshipTags[t]
	return ok
}

// CompanyTagWeight returns the sentiment weight of a company reason and
// whether the tag is recognized.
func CompanyTagWeight(t ReasonTag) (float64, bool) {
	w, ok := companyTagWeights[t]
	return w, ok
}

// Polarity returns the kind an internship reason belongs to, or "" for
// company reasons.
func Polarity(t ReasonTag) InteractionKind {
	return internshipTags[t]
}

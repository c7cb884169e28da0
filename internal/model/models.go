// Package model defines the documents read and written by the match service.
package model

import (
	"strings"
	"time"
)

// TargetKind identifies what an interaction or review is about.
type TargetKind string

const (
	TargetCompany    TargetKind = "company"
	TargetInternship TargetKind = "internship"
)

// CandidateProfile is the subset of a candidate document the scorers read.
type CandidateProfile struct {
	CandidateID        string   `json:"candidateId"`
	Name               string   `json:"name"`
	SkillsPossessed    []string `json:"skillsPossessed"`
	SectorInterests    []string `json:"sectorInterests"`
	LocationPreference string   `json:"locationPreference"`
	EducationLevel     string   `json:"educationLevel"`
	FieldOfStudy       string   `json:"fieldOfStudy"`
	FirstGeneration    bool     `json:"firstGeneration"`
	NoExperience       bool     `json:"noExperience"`
}

// InternshipPosting mirrors the internships table row.
type InternshipPosting struct {
	InternshipID     string   `json:"internshipId"`
	CompanyID        string   `json:"companyId,omitempty"`
	Organization     string   `json:"organization"`
	Title            string   `json:"title"`
	Description      string   `json:"description,omitempty"`
	Location         string   `json:"location"`
	Sector           string   `json:"sector"`
	SkillsRequired   []string `json:"skillsRequired"`
	Stipend          *float64 `json:"stipend,omitempty"`
	Duration         string   `json:"duration,omitempty"`
	BeginnerFriendly bool     `json:"beginnerFriendly"`
}

// CompanyKey is the key used for per-company global signals: the company id
// when present, otherwise the lowercased organization name.
func (p InternshipPosting) CompanyKey() string {
	if id := strings.TrimSpace(p.CompanyID); id != "" {
		return id
	}
	return strings.ToLower(strings.TrimSpace(p.Organization))
}

// Company mirrors the companies table row.
type Company struct {
	CompanyID       string   `json:"companyId"`
	Name            string   `json:"name"`
	Headquarters    string   `json:"headquarters"`
	AverageRating   *float64 `json:"averageRating,omitempty"`
	InternshipIDs   []string `json:"internshipIds,omitempty"`
	ReputationScore *float64 `json:"reputationScore,omitempty"`
}

// InteractionKind is the like/dislike half of an Interaction.
type InteractionKind string

const (
	Like    InteractionKind = "like"
	Dislike InteractionKind = "dislike"
)

// Interaction is a like or dislike with the reasons the candidate picked.
type Interaction struct {
	Kind    InteractionKind `json:"kind"`
	Reasons []ReasonTag     `json:"reasons,omitempty"`
}

// Has reports whether tag is among the interaction's reasons.
func (i Interaction) Has(tag ReasonTag) bool {
	for _, r := range i.Reasons {
		if r == tag {
			return true
		}
	}
	return false
}

// HasAny reports whether any of tags is among the interaction's reasons.
func (i Interaction) HasAny(tags ...ReasonTag) bool {
	for _, t := range tags {
		if i.Has(t) {
			return true
		}
	}
	return false
}

// InteractionRecord is the current interaction of one candidate with one
// target. There is at most one record per (candidate, target) pair.
type InteractionRecord struct {
	CandidateID string      `json:"candidateId"`
	TargetID    string      `json:"targetId"`
	TargetKind  TargetKind  `json:"targetKind"`
	Interaction Interaction `json:"interaction"`
	Timestamp   time.Time   `json:"timestamp"`
}

// ReviewRecord is a rated review of a company or internship.
type ReviewRecord struct {
	CandidateID string     `json:"candidateId"`
	TargetID    string     `json:"targetId"`
	TargetKind  TargetKind `json:"targetKind"`
	Rating      float64    `json:"rating"`
	Text        string     `json:"text,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// Counts is a like/dislike tally.
type Counts struct {
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
	Total    int `json:"total"`
}

// WeightedToken is one entry of a ranked preference list.
type WeightedToken struct {
	Token  string  `json:"token"`
	Weight float64 `json:"weight"`
}

// PreferenceList holds the preferred and avoided tokens of one dimension.
type PreferenceList struct {
	Preferred []WeightedToken `json:"preferred"`
	Avoided   []WeightedToken `json:"avoided"`
}

// StipendPreference records stipend levels learned from reason tags.
type StipendPreference struct {
	MinPreferred *float64 `json:"minPreferred,omitempty"`
	LowFloor     *float64 `json:"lowFloor,omitempty"`
}

// PreferenceProfile is the learned, per-candidate summary of internship
// interactions. It is derived data and fully rebuildable.
type PreferenceProfile struct {
	CandidateID string            `json:"candidateId"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	Counts      Counts            `json:"counts"`
	Strength    float64           `json:"strength"`
	Skills      PreferenceList    `json:"skills"`
	Roles       PreferenceList    `json:"roles"`
	Locations   PreferenceList    `json:"locations"`
	Sectors     PreferenceList    `json:"sectors"`
	WorkType    []WeightedToken   `json:"workType"`
	Seniority   []WeightedToken   `json:"seniority"`
	Stipend     StipendPreference `json:"stipend"`
}

// ReputationRecord is the global sentiment score of a company.
type ReputationRecord struct {
	CompanyID string    `json:"companyId"`
	UpdatedAt time.Time `json:"updatedAt"`
	Counts    Counts    `json:"counts"`
	Score     float64   `json:"score"`
}

// Factors are the four sub-scores behind a match score, each in [0,100].
type Factors struct {
	InternshipScores    float64 `json:"internshipScores"`
	CompanyInteractions float64 `json:"companyInteractions"`
	CompanyReviews      float64 `json:"companyReviews"`
	InternshipFeedback  float64 `json:"internshipFeedback"`
}

// MatchScoreEntry is the cached fit score of a candidate for a company.
type MatchScoreEntry struct {
	CandidateID        string    `json:"candidateId"`
	CompanyID          string    `json:"companyId"`
	MatchScore         float64   `json:"matchScore"`
	Factors            Factors   `json:"factors"`
	LocationAdjustment float64   `json:"locationAdjustment"`
	LastUpdated        time.Time `json:"lastUpdated"`
}

// InteractionStats are the global like/dislike counts of one company.
type InteractionStats struct {
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
}

// Total returns likes plus dislikes.
func (s InteractionStats) Total() int { return s.Likes + s.Dislikes }

// ReasonStats are global per-tag counts of one company, split by kind.
type ReasonStats struct {
	Like    map[ReasonTag]int `json:"like"`
	Dislike map[ReasonTag]int `json:"dislike"`
}

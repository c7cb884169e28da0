// Package recommend ranks internship postings for a candidate and explains
// each score.
package recommend

import (
	"sort"
	"strings"

	"interninsight/match-service/internal/geo"
	"interninsight/match-service/internal/logging"
	"interninsight/match-service/internal/model"
	"interninsight/match-service/internal/preference"
	"interninsight/match-service/internal/skills"
)

// Weights are the relative weights of the four base channels. They are
// re-normalized to sum to 1 after the dynamic adjustments.
type Weights struct {
	Skill    float64 `json:"skill"`
	Location float64 `json:"location"`
	Sector   float64 `json:"sector"`
	Misc     float64 `json:"misc"`
}

// Options control a ranking call.
type Options struct {
	// TopN caps the result list; zero or negative returns everything.
	TopN    int
	Weights Weights
	// DedupeOrg keeps only the best posting per organization.
	DedupeOrg bool
	// MinScore drops results scoring at or below it (0-100 scale).
	MinScore float64
}

// DefaultWeights are the weights used for candidate recommendations.
var DefaultWeights = Weights{Skill: 0.5, Location: 0.25, Sector: 0.15, Misc: 0.10}

// SimilarWeights tilt toward skills and sector when comparing postings.
var SimilarWeights = Weights{Skill: 0.6, Location: 0.15, Sector: 0.2, Misc: 0.05}

// DefaultOptions returns the options used when a caller sets none.
func DefaultOptions() Options {
	return Options{TopN: 10, Weights: DefaultWeights, DedupeOrg: true}
}

// Signals is the context a score depends on beyond the candidate and the
// posting. Global maps are keyed by company id; every field may be nil.
type Signals struct {
	CompanyStats   map[string]model.InteractionStats
	CompanyReasons map[string]model.ReasonStats
	CompanyRatings map[string]float64
	Reputation     map[string]float64
	// CompanyAliases maps lowercased organization names to company ids for
	// postings that carry no company id.
	CompanyAliases map[string]string

	// Internships are the candidate's own internship interactions by
	// internship id. InteractedPostings holds the postings they reference
	// when those are not part of the ranked pool.
	Internships        map[string]model.Interaction
	InteractedPostings map[string]model.InternshipPosting
	// Companies are the candidate's own company interactions by company id.
	Companies map[string]model.Interaction
	Profile   *model.PreferenceProfile
}

// Components exposes every term that went into a score.
type Components struct {
	SkillSim          float64  `json:"skillSim"`
	LocSim            float64  `json:"locSim"`
	LocReason         string   `json:"locReason"`
	DistanceKm        *float64 `json:"distanceKm,omitempty"`
	SectorSim         float64  `json:"sectorSim"`
	FieldSim          float64  `json:"fieldSim"`
	EduSim            float64  `json:"eduSim"`
	FirstGenBoost     float64  `json:"firstGenBoost"`
	CompanyBoost      float64  `json:"companyBoost"`
	CompanyPenalty    float64  `json:"companyPenalty"`
	RatingBoost       float64  `json:"ratingBoost"`
	InternshipBoost   float64  `json:"internshipBoost"`
	InternshipPenalty float64  `json:"internshipPenalty"`
	PatternBoost      float64  `json:"patternBoost"`
	PatternPenalty    float64  `json:"patternPenalty"`
}

// Recommendation is one scored posting.
type Recommendation struct {
	InternshipID   string     `json:"internshipId"`
	CompanyID      string     `json:"companyId,omitempty"`
	Title          string     `json:"title"`
	Organization   string     `json:"organization"`
	Location       string     `json:"location"`
	Sector         string     `json:"sector"`
	SkillsRequired []string   `json:"skillsRequired"`
	Description    string     `json:"description,omitempty"`
	MatchScore     float64    `json:"matchScore"`
	Reason         string     `json:"reason"`
	Components     Components `json:"components"`
}

// ─── Scorer ──────────────────────────────────────────────────────────────────

// Scorer computes composite recommendation scores. It holds no per-call
// state and is safe for concurrent use.
type Scorer struct {
	norm   *skills.Normalizer
	oracle geo.Oracle
	log    *logging.Logger
}

// NewScorer returns a Scorer using norm for skills and oracle for distances.
func NewScorer(norm *skills.Normalizer, oracle geo.Oracle, log *logging.Logger) *Scorer {
	if log == nil {
		log = logging.Nop()
	}
	return &Scorer{norm: norm, oracle: oracle, log: log}
}

// Recommend scores every posting and returns them ranked by score, highest
// first, ties broken by internship id.
func (s *Scorer) Recommend(c model.CandidateProfile, postings []model.InternshipPosting, opts Options, sig Signals) []Recommendation {
	r := s.prepare(c, postings, opts.Weights, sig)

	scored := make([]Recommendation, 0, len(postings))
	for _, p := range postings {
		scored = append(scored, r.score(p))
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].MatchScore != scored[j].MatchScore {
			return scored[i].MatchScore > scored[j].MatchScore
		}
		return scored[i].InternshipID < scored[j].InternshipID
	})

	out := make([]Recommendation, 0, len(scored))
	seenOrg := make(map[string]bool)
	for _, rec := range scored {
		if rec.MatchScore <= opts.MinScore {
			continue
		}
		org := lower(rec.Organization)
		if opts.DedupeOrg && org != "" && seenOrg[org] {
			continue
		}
		if org != "" {
			seenOrg[org] = true
		}
		out = append(out, rec)
		if opts.TopN > 0 && len(out) >= opts.TopN {
			break
		}
	}
	s.log.Debug("postings ranked", "candidate_id", c.CandidateID, "pool", len(postings), "returned", len(out))
	return out
}

// Match scores a single posting with the default weights. The result is
// never filtered, so excluded postings come back with their low score.
func (s *Scorer) Match(c model.CandidateProfile, p model.InternshipPosting, sig Signals) Recommendation {
	return s.prepare(c, []model.InternshipPosting{p}, DefaultWeights, sig).score(p)
}

// run is the candidate-level state shared by every posting of one call.
type run struct {
	s        *Scorer
	sig      Signals
	weights  Weights
	strength float64

	skills   []string
	sectors  map[string]bool
	location string
	field    string
	edu      string
	firstGen bool

	patterns  patterns
	workType  map[string]float64
	seniority map[string]float64
}

func (s *Scorer) prepare(c model.CandidateProfile, postings []model.InternshipPosting, w Weights, sig Signals) *run {
	r := &run{
		s:        s,
		sig:      sig,
		skills:   s.norm.NormalizeList(c.SkillsPossessed),
		sectors:  make(map[string]bool),
		location: lower(c.LocationPreference),
		field:    lower(c.FieldOfStudy),
		edu:      lower(c.EducationLevel),
		firstGen: c.FirstGeneration || c.NoExperience,
	}
	for _, sec := range c.SectorInterests {
		if sec = lower(sec); sec != "" {
			r.sectors[sec] = true
		}
	}

	if sig.Profile != nil {
		r.strength = model.Clamp(sig.Profile.Strength, 0, 1)
		r.workType = tokenMap(sig.Profile.WorkType)
		r.seniority = tokenMap(sig.Profile.Seniority)
	}
	r.weights = adjustWeights(w, len(r.skills) > 0, r.location != "", len(r.sectors) > 0, r.strength)

	pool := make(map[string]model.InternshipPosting, len(postings))
	for _, p := range postings {
		pool[p.InternshipID] = p
	}
	r.patterns = s.learnPatterns(sig.Internships, func(id string) (model.InternshipPosting, bool) {
		if p, ok := pool[id]; ok {
			return p, true
		}
		p, ok := sig.InteractedPostings[id]
		return p, ok
	})
	return r
}

// adjustWeights shifts weight away from channels the candidate left empty
// and toward preference-sensitive channels as the profile strengthens.
func adjustWeights(w Weights, hasSkills, hasLocation, hasSector bool, strength float64) Weights {
	if !hasSkills {
		w.Skill *= 0.6
		w.Misc += 0.10 * (0.5 + 0.5*strength)
	}
	if !hasLocation {
		if strength > 0 {
			w.Location = max(w.Location, 0.20)
		} else {
			w.Location *= 0.5
			w.Misc += 0.05
		}
	}
	if !hasSector {
		w.Sector *= 0.7
		w.Misc += 0.05
	}

	w.Skill *= 1 - 0.08*strength
	w.Location *= 1 + 0.10*strength
	w.Sector *= 1 + 0.06*strength
	w.Misc *= 1 + 0.12*strength

	sum := max(1e-9, w.Skill+w.Location+w.Sector+w.Misc)
	return Weights{Skill: w.Skill / sum, Location: w.Location / sum, Sector: w.Sector / sum, Misc: w.Misc / sum}
}

func (r *run) score(p model.InternshipPosting) Recommendation {
	var comp Components

	required := r.s.norm.NormalizeList(p.SkillsRequired)
	skillSim := skills.Similarity(r.skills, required)
	loc := geo.LocationSimilarity(r.s.oracle, r.location, p.Location)
	sector := lower(p.Sector)

	if r.sectors[sector] {
		comp.SectorSim = 1
	}
	if r.field != "" && strings.Contains(sector, r.field) {
		comp.FieldSim = 1
	}
	if r.edu != "" && strings.Contains(lower(p.Title), r.edu) {
		comp.EduSim = 1
	}
	if r.firstGen && p.BeginnerFriendly {
		comp.FirstGenBoost = 0.08
	}

	key := r.companyKey(p)
	r.companyTerms(&comp, key)
	r.personalTerms(&comp, p.InternshipID)
	comp.PatternBoost, comp.PatternPenalty = r.s.apply(r.patterns, p, required)
	r.profileTerms(&comp, p)

	base := r.weights.Skill*skillSim +
		r.weights.Location*loc.Score +
		r.weights.Sector*comp.SectorSim +
		r.weights.Misc*(0.5*comp.FieldSim+0.5*comp.EduSim)
	total := base + comp.FirstGenBoost + comp.CompanyBoost + comp.RatingBoost +
		comp.InternshipBoost + comp.PatternBoost -
		comp.CompanyPenalty - comp.InternshipPenalty - comp.PatternPenalty

	comp.SkillSim = model.Round(skillSim, 2)
	comp.LocSim = model.Round(loc.Score, 2)
	comp.LocReason = loc.Reason
	comp.DistanceKm = loc.DistanceKm

	companyID := p.CompanyID
	if companyID == "" {
		companyID = r.sig.CompanyAliases[p.CompanyKey()]
	}
	return Recommendation{
		InternshipID:   p.InternshipID,
		CompanyID:      companyID,
		Title:          p.Title,
		Organization:   p.Organization,
		Location:       p.Location,
		Sector:         p.Sector,
		SkillsRequired: p.SkillsRequired,
		Description:    p.Description,
		MatchScore:     model.Round(model.Clamp(total, 0, 1)*100, 1),
		Reason:         r.reason(comp, key),
		Components:     comp,
	}
}

// companyKey resolves the key global company signals are stored under.
func (r *run) companyKey(p model.InternshipPosting) string {
	key := p.CompanyKey()
	if p.CompanyID == "" {
		if id, ok := r.sig.CompanyAliases[key]; ok {
			return id
		}
	}
	return key
}

func (r *run) companyTerms(comp *Components, key string) {
	addSigned := func(v float64) {
		if v >= 0 {
			comp.CompanyBoost += v
		} else {
			comp.CompanyPenalty -= v
		}
	}

	stats, hasStats := lookup(r.sig.CompanyStats, key)
	if hasStats && stats.Total() > 0 {
		sentiment := float64(stats.Likes-stats.Dislikes) / float64(stats.Total())
		addSigned(model.Clamp(sentiment*0.05, -0.05, 0.05))
	}

	if rep, ok := lookup(r.sig.Reputation, key); ok {
		sentiment := model.Clamp((rep-50)/50, -1, 1)
		conf := 0.3
		if hasStats {
			conf = model.Clamp(float64(stats.Total())/25, 0.2, 1)
		}
		addSigned(model.Clamp(sentiment*0.06*conf, -0.06, 0.06))
	}

	if rs, ok := lookup(r.sig.CompanyReasons, key); ok {
		var weighted, total float64
		for tag, n := range rs.Like {
			if n <= 0 {
				continue
			}
			w, known := model.CompanyTagWeight(tag)
			if !known {
				w = 0.3
			}
			weighted += abs(w) * float64(n)
			total += abs(w) * float64(n)
		}
		for tag, n := range rs.Dislike {
			if n <= 0 {
				continue
			}
			w, known := model.CompanyTagWeight(tag)
			if !known {
				w = -0.3
			}
			weighted -= abs(w) * float64(n)
			total += abs(w) * float64(n)
		}
		if total > 0 {
			s := model.Clamp(weighted/total, -1, 1)
			addSigned(model.Clamp(s*0.02, -0.02, 0.02))
		}
	}

	if rating, ok := lookup(r.sig.CompanyRatings, key); ok {
		switch {
		case rating >= 4.5:
			comp.RatingBoost = 0.05
		case rating < 3.0:
			comp.CompanyPenalty += 0.10
		}
	}
}

func (r *run) personalTerms(comp *Components, internshipID string) {
	in, ok := r.sig.Internships[internshipID]
	if !ok {
		return
	}
	switch in.Kind {
	case model.Like:
		comp.InternshipBoost = 0.20
		if in.HasAny(model.TagSkillsMatchWell, model.TagPerfectRoleFit) {
			comp.InternshipBoost += 0.05
		}
	case model.Dislike:
		comp.InternshipPenalty = 0.30
		if in.Has(model.TagRoleDoesntFit) {
			comp.InternshipPenalty = 1.0
		}
	}
}

// profileTerms applies the stored profile's work-type, seniority and
// stipend affinities, scaled by profile strength.
func (r *run) profileTerms(comp *Components, p model.InternshipPosting) {
	if r.strength <= 0 {
		return
	}
	affinity := func(w float64) {
		v := model.Clamp(0.02*w*r.strength, -0.03, 0.03)
		if v >= 0 {
			comp.PatternBoost += v
		} else {
			comp.PatternPenalty -= v
		}
	}
	if w := r.workType[preference.InferWorkType(p.Location)]; w != 0 {
		affinity(w)
	}
	if w := r.seniority[preference.InferSeniority(p.Title)]; w != 0 {
		affinity(w)
	}
	if floor := r.sig.Profile.Stipend.MinPreferred; floor != nil && *floor > 0 && p.Stipend != nil && *p.Stipend >= *floor {
		comp.PatternBoost += 0.02 * r.strength
	}
}

// lookup reads m[key], falling back to the lowercased key.
func lookup[V any](m map[string]V, key string) (V, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	v, ok := m[lower(key)]
	return v, ok
}

func tokenMap(ws []model.WeightedToken) map[string]float64 {
	m := make(map[string]float64, len(ws))
	for _, w := range ws {
		if w.Token != "" {
			m[w.Token] = w.Weight
		}
	}
	return m
}

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

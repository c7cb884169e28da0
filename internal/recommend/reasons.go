package recommend

import (
	"fmt"
	"math"
	"strings"

	"interninsight/match-service/internal/model"
)

// reason assembles the human-readable explanation in a fixed order: skill
// fit, proximity, sector, beginner-friendliness, company sentiment, rating,
// personal interest, then learned patterns.
func (r *run) reason(c Components, companyKey string) string {
	var parts []string
	pct := int(math.Round(c.SkillSim * 100))
	switch {
	case c.SkillSim >= 0.6:
		parts = append(parts, fmt.Sprintf("Strong skill fit (%d%%)", pct))
	case c.SkillSim > 0:
		parts = append(parts, fmt.Sprintf("Some skill match (%d%%)", pct))
	}
	switch {
	case c.LocSim >= 0.9:
		parts = append(parts, "Close to you")
	case c.LocSim >= 0.6:
		parts = append(parts, "Within reasonable distance")
	}
	if c.SectorSim > 0 {
		parts = append(parts, "Sector match")
	}
	if c.FirstGenBoost > 0 {
		parts = append(parts, "Good for beginners")
	}
	if c.CompanyBoost > 0 {
		if in, ok := r.sig.Companies[companyKey]; ok && in.Kind == model.Like {
			parts = append(parts, "You liked this company")
		} else {
			parts = append(parts, "Positive company sentiment")
		}
	}
	if c.RatingBoost > 0 {
		parts = append(parts, "Highly rated company")
	}
	if c.InternshipBoost > 0 {
		parts = append(parts, "You showed interest in this")
	}
	if c.InternshipPenalty > 0 && c.InternshipPenalty < 1 {
		parts = append(parts, "Previously disliked")
	}
	switch {
	case c.PatternPenalty >= 0.12:
		parts = append(parts, "Similar to disliked roles")
	case c.PatternPenalty >= 0.08:
		parts = append(parts, "May not match preferences")
	}
	if c.PatternBoost > 0 {
		parts = append(parts, "Matches your preferences")
	}
	if len(parts) == 0 {
		return "Relevant"
	}
	return strings.Join(parts, ", ")
}

// Package api implements the HTTP handlers of the match service.
//
// Candidate routes expect an x-user-id header forwarded by the Gateway.
//
// Routes:
//
//	GET  /recommendations?limit=&minScore=  → ranked postings for the user
//	GET  /preferences                       → user's learned preference profile
//	POST /preferences/rebuild               → rebuild the profile now
//	GET  /internships/{id}/match            → user's score for one posting
//	GET  /internships/{id}/similar?limit=   → postings similar to one posting
//	POST /internships/{id}/interaction      → like / dislike / remove (empty kind)
//	POST /internships/{id}/reviews          → rate a posting
//	GET  /companies/match-scores?ids=a,b    → user's scores for several companies
//	GET  /companies/top-matches?limit=      → user's best cached companies
//	GET  /companies/{id}/match-score        → user's score for one company
//	GET  /companies/{id}/reputation         → global reputation record
//	POST /companies/{id}/interaction        → like / dislike / remove (empty kind)
//	POST /companies/{id}/reviews            → rate a company
//	POST /companies/{id}/recalculate        → recompute every cached score
package api

import (
	"fmt"
	"net/http"
	"strings"

	"interninsight/match-service/internal/feedback"
	"interninsight/match-service/internal/logging"
	"interninsight/match-service/internal/matchscore"
	"interninsight/match-service/internal/preference"
	"interninsight/match-service/internal/recommend"
	"interninsight/match-service/internal/reputation"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// ─── Handler ─────────────────────────────────────────────────────────────────

// Handler holds shared dependencies.
type Handler struct {
	recommend  *recommend.Service
	scores     *matchscore.Manager
	feedback   *feedback.Service
	profiles   *preference.Service
	reputation *reputation.Service
	log        *logging.Logger
}

// NewHandler returns a configured Handler.
func NewHandler(rec *recommend.Service, scores *matchscore.Manager, fb *feedback.Service, profiles *preference.Service, rep *reputation.Service, log *logging.Logger) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{recommend: rec, scores: scores, feedback: fb, profiles: profiles, reputation: rep, log: log}
}

// RegisterRoutes mounts all match-service routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/recommendations", h.handleRecommendations)
	mux.HandleFunc("/preferences", h.handlePreferences)
	mux.HandleFunc("/preferences/rebuild", h.handlePreferencesRebuild)
	mux.HandleFunc("/internships/", h.handleInternshipAction)
	mux.HandleFunc("/companies/", h.handleCompanyAction)
}

// ─── Route dispatch ───────────────────────────────────────────────────────────

// handleRecommendations handles GET /recommendations
func (h *Handler) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.listRecommendations(w, r)
}

// handlePreferences handles GET /preferences
func (h *Handler) handlePreferences(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.getPreferences(w, r)
}

// handlePreferencesRebuild handles POST /preferences/rebuild
func (h *Handler) handlePreferencesRebuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.rebuildPreferences(w, r)
}

// handleInternshipAction handles /internships/{id}/match|similar|interaction|reviews
func (h *Handler) handleInternshipAction(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[1] == "" {
		jsonError(w, "invalid path", http.StatusNotFound)
		return
	}
	internshipID, action := parts[1], parts[2]

	switch {
	case action == "match" && r.Method == http.MethodGet:
		h.internshipMatch(w, r, internshipID)
	case action == "similar" && r.Method == http.MethodGet:
		h.similarInternships(w, r, internshipID)
	case action == "interaction" && r.Method == http.MethodPost:
		h.interaction(w, r, internshipID, h.feedback.InternshipInteractionChanged)
	case action == "reviews" && r.Method == http.MethodPost:
		h.review(w, r, internshipID, h.feedback.InternshipReviewPosted)
	case action == "match" || action == "similar" || action == "interaction" || action == "reviews":
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	default:
		jsonError(w, fmt.Sprintf("unknown action %q", action), http.StatusNotFound)
	}
}

// handleCompanyAction handles /companies/match-scores, /companies/top-matches
// and /companies/{id}/match-score|reputation|interaction|reviews|recalculate
func (h *Handler) handleCompanyAction(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	if len(parts) == 2 {
		if r.Method != http.MethodGet {
			jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		switch parts[1] {
		case "match-scores":
			h.batchMatchScores(w, r)
		case "top-matches":
			h.topMatches(w, r)
		default:
			jsonError(w, "invalid path", http.StatusNotFound)
		}
		return
	}

	if len(parts) != 3 || parts[1] == "" {
		jsonError(w, "invalid path", http.StatusNotFound)
		return
	}
	companyID, action := parts[1], parts[2]

	switch {
	case action == "match-score" && r.Method == http.MethodGet:
		h.companyMatchScore(w, r, companyID)
	case action == "reputation" && r.Method == http.MethodGet:
		h.companyReputation(w, r, companyID)
	case action == "interaction" && r.Method == http.MethodPost:
		h.interaction(w, r, companyID, h.feedback.CompanyInteractionChanged)
	case action == "reviews" && r.Method == http.MethodPost:
		h.review(w, r, companyID, h.feedback.CompanyReviewPosted)
	case action == "recalculate" && r.Method == http.MethodPost:
		h.recalculate(w, r, companyID)
	case action == "match-score" || action == "reputation" || action == "interaction" ||
		action == "reviews" || action == "recalculate":
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	default:
		jsonError(w, fmt.Sprintf("unknown action %q", action), http.StatusNotFound)
	}
}

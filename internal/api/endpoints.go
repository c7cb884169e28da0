package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"interninsight/match-service/internal/feedback"
	"interninsight/match-service/internal/recommend"
	"interninsight/match-service/internal/store"
)

// ─── Individual handlers ──────────────────────────────────────────────────────

func (h *Handler) listRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	opts := recommend.DefaultOptions()
	opts.TopN = limit
	if raw := r.URL.Query().Get("minScore"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 100 {
			jsonError(w, "minScore must be a number between 0 and 100", http.StatusBadRequest)
			return
		}
		opts.MinScore = v
	}

	recs, err := h.recommend.ForCandidate(r.Context(), userID, opts)
	if err != nil {
		h.fail(w, "listRecommendations", err)
		return
	}
	jsonOK(w, recs)
}

func (h *Handler) getPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	p, err := h.profiles.Load(r.Context(), userID)
	if err != nil {
		h.fail(w, "getPreferences", err)
		return
	}
	if p == nil {
		jsonError(w, "preference profile not found", http.StatusNotFound)
		return
	}
	jsonOK(w, p)
}

func (h *Handler) rebuildPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	p, err := h.profiles.RebuildAndSave(r.Context(), userID)
	if err != nil {
		h.fail(w, "rebuildPreferences", err)
		return
	}
	jsonOK(w, p)
}

func (h *Handler) internshipMatch(w http.ResponseWriter, r *http.Request, internshipID string) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	rec, err := h.recommend.InternshipMatch(r.Context(), userID, internshipID)
	if err != nil {
		h.fail(w, "internshipMatch", err)
		return
	}
	jsonOK(w, rec)
}

func (h *Handler) similarInternships(w http.ResponseWriter, r *http.Request, internshipID string) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	recs, err := h.recommend.Similar(r.Context(), internshipID, limit)
	if err != nil {
		h.fail(w, "similarInternships", err)
		return
	}
	jsonOK(w, recs)
}

func (h *Handler) companyMatchScore(w http.ResponseWriter, r *http.Request, companyID string) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	score, err := h.scores.Get(r.Context(), userID, companyID)
	if err != nil {
		h.fail(w, "companyMatchScore", err)
		return
	}
	jsonOK(w, map[string]any{"companyId": companyID, "matchScore": score})
}

func (h *Handler) batchMatchScores(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var ids []string
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		jsonError(w, "ids query parameter is required", http.StatusBadRequest)
		return
	}
	if len(ids) > maxLimit {
		jsonError(w, "too many ids", http.StatusBadRequest)
		return
	}
	scores, err := h.scores.Batch(r.Context(), userID, ids)
	if err != nil {
		h.fail(w, "batchMatchScores", err)
		return
	}
	jsonOK(w, scores)
}

func (h *Handler) topMatches(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	entries, err := h.scores.TopMatches(r.Context(), userID, limit)
	if err != nil {
		h.fail(w, "topMatches", err)
		return
	}
	jsonOK(w, entries)
}

func (h *Handler) companyReputation(w http.ResponseWriter, r *http.Request, companyID string) {
	rec, err := h.reputation.Load(r.Context(), companyID)
	if err != nil {
		h.fail(w, "companyReputation", err)
		return
	}
	if rec == nil {
		jsonError(w, "reputation not found", http.StatusNotFound)
		return
	}
	jsonOK(w, rec)
}

func (h *Handler) recalculate(w http.ResponseWriter, r *http.Request, companyID string) {
	n, err := h.scores.RecalculateAllUsersForCompany(r.Context(), companyID)
	if err != nil {
		h.fail(w, "recalculate", err)
		return
	}
	jsonOK(w, map[string]any{"companyId": companyID, "updated": n})
}

func (h *Handler) interaction(w http.ResponseWriter, r *http.Request, targetID string,
	hook func(context.Context, feedback.InteractionInput) (*feedback.Outcome, error)) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var body struct {
		Kind    string   `json:"kind"`
		Reasons []string `json:"reasons"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	out, err := hook(r.Context(), feedback.InteractionInput{
		CandidateID: userID,
		TargetID:    targetID,
		Kind:        strings.ToLower(strings.TrimSpace(body.Kind)),
		Reasons:     body.Reasons,
	})
	if err != nil {
		h.fail(w, "interaction", err)
		return
	}
	jsonOK(w, out)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request, targetID string,
	hook func(context.Context, feedback.ReviewInput) (*feedback.Outcome, error)) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var body struct {
		Rating float64 `json:"rating"`
		Text   string  `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	out, err := hook(r.Context(), feedback.ReviewInput{
		CandidateID: userID,
		TargetID:    targetID,
		Rating:      body.Rating,
		Text:        body.Text,
	})
	if err != nil {
		h.fail(w, "review", err)
		return
	}
	jsonOK(w, out)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// fail maps service errors onto status codes: validation 400, missing 404,
// unreachable store 503, anything else 500.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	var verr *feedback.ValidationError
	switch {
	case errors.As(err, &verr):
		jsonError(w, verr.Msg, http.StatusBadRequest)
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, "not found", http.StatusNotFound)
	case store.IsUnavailable(err):
		h.log.Error("store unavailable", "op", op, "err", err)
		jsonError(w, "service unavailable", http.StatusServiceUnavailable)
	default:
		h.log.Error("request failed", "op", op, "err", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}

func limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxLimit {
		jsonError(w, "limit must be an integer between 1 and 100", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

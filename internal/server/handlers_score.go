package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/yecs/internal/profile"
	"github.com/jonathan/yecs/internal/types"
	"go.uber.org/zap"
)

// healthTimeout bounds the store ping in the health check.
const healthTimeout = 2 * time.Second

// handleIndex is the liveness probe.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("YECS Backend is running!"))
}

// handleHealth reports readiness of the store and whether a model is configured.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status": "ok",
		"model":  s.deps.Model != nil,
	}
	status := http.StatusOK

	if s.deps.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.deps.Store.Ping(ctx); err != nil {
			s.logger.Warn("health check: store unreachable", zap.Error(err))
			resp["status"] = "degraded"
			resp["store"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp["store"] = "ok"
		}
	}
	s.jsonResponse(w, status, resp)
}

// handleCalculateScoreModel scores a full profile with the generative model.
func (s *Server) handleCalculateScoreModel(w http.ResponseWriter, r *http.Request) {
	var applicant types.ApplicantProfile
	if err := decodeBody(w, r, &applicant); err != nil {
		s.errorFrom(w, r, err)
		return
	}
	if s.deps.Model == nil {
		s.errorFrom(w, r, ErrModelNotConfigured)
		return
	}

	result, err := s.deps.Model.ComputeScore(r.Context(), applicant)
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

// insightsRequest is a profile with the score fields alongside its sections.
type insightsRequest struct {
	types.ApplicantProfile
	YECSScore       int                         `json:"yecs_score"`
	RiskLevel       string                      `json:"risk_level"`
	Reasoning       string                      `json:"reasoning"`
	ComponentScores map[types.ComponentName]int `json:"component_scores"`
}

// score returns the embedded score, or nil if none was sent.
func (req *insightsRequest) score() *types.ScoreResult {
	if req.YECSScore == 0 {
		return nil
	}
	value := types.ClampScore(float64(req.YECSScore))
	risk, ok := types.ParseRiskLevel(req.RiskLevel)
	if !ok {
		risk = types.RiskLevelFor(value)
	}
	return &types.ScoreResult{
		YECSScore:       value,
		RiskLevel:       risk,
		Reasoning:       req.Reasoning,
		ComponentScores: req.ComponentScores,
	}
}

// handleInsightsModel produces dashboard insights for a scored profile.
func (s *Server) handleInsightsModel(w http.ResponseWriter, r *http.Request) {
	var req insightsRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.errorFrom(w, r, err)
		return
	}
	if s.deps.Model == nil {
		s.errorFrom(w, r, ErrModelNotConfigured)
		return
	}

	bundle, err := s.deps.Model.ComputeInsights(r.Context(), req.ApplicantProfile, req.score())
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, bundle)
}

// breakdownResponse is the heuristic endpoint's response shape.
type breakdownResponse struct {
	YECSScore       int                         `json:"yecs_score"`
	ComponentScores map[types.ComponentName]int `json:"component_scores"`
	RiskLevel       types.RiskLevel             `json:"risk_level"`
}

// handleCalculateScore scores a profile with the heuristic breakdown. It
// never calls the model.
func (s *Server) handleCalculateScore(w http.ResponseWriter, r *http.Request) {
	var applicant types.ApplicantProfile
	if err := decodeBody(w, r, &applicant); err != nil {
		s.errorFrom(w, r, err)
		return
	}

	result := s.deps.Heuristic.Breakdown(applicant)
	s.jsonResponse(w, http.StatusOK, breakdownResponse{
		YECSScore:       result.YECSScore,
		ComponentScores: result.ComponentScores,
		RiskLevel:       result.RiskLevel,
	})
}

// SyncedProfilePrefix namespaces profiles written by /api/user so an
// unauthenticated sync never shares a document with a workflow session.
const SyncedProfilePrefix = "user:"

// SyncedProfileKey is the document key for a synced userId.
func SyncedProfileKey(userID string) string {
	return SyncedProfilePrefix + userID
}

// handleSyncUser merges the posted sections into the synced profile for userId.
func (s *Server) handleSyncUser(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		s.errorFrom(w, r, &BadRequestError{Message: "invalid JSON body", Cause: err})
		return
	}
	var userID string
	if idRaw, ok := body["userId"]; ok {
		_ = json.Unmarshal(idRaw, &userID)
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		s.errorResponse(w, http.StatusBadRequest, "User ID is required")
		return
	}
	if s.deps.Store == nil {
		s.errorResponse(w, http.StatusInternalServerError, "Failed to sync user profile")
		return
	}

	ctx := r.Context()
	key := SyncedProfileKey(userID)
	current, err := s.deps.Store.GetDocument(ctx, key)
	if err != nil {
		s.logger.Error("profile sync: read failed", zap.String("identity", userID), zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "Failed to sync user profile")
		return
	}
	base := types.NewApplicantProfile()
	if current != nil {
		base = *current
	}

	merged, err := profile.MergeSections(base, body)
	if err != nil {
		s.errorFrom(w, r, &BadRequestError{Message: "invalid profile section", Cause: err})
		return
	}
	if err := s.deps.Store.PutDocument(ctx, key, merged); err != nil {
		s.logger.Error("profile sync: write failed", zap.String("identity", userID), zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "Failed to sync user profile")
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "User profile synced successfully"})
}

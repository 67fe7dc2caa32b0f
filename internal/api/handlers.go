// Package api provides HTTP handlers for the Echoes engine endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Someone-anon-coder/echoes-ai-friend/internal/dialogue"
	"github.com/Someone-anon-coder/echoes-ai-friend/internal/journey"
	"github.com/Someone-anon-coder/echoes-ai-friend/internal/models"
)

// userIDHeader carries the caller identity. Authentication happens in
// front of this service; the engine trusts the header.
const userIDHeader = "X-User-ID"

// requireUserID extracts the caller identity, writing a 400 when missing.
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		slog.Warn("Server.requireUserID: missing user header", "path", r.URL.Path)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("X-User-ID header is required"))
		return "", false
	}
	return userID, true
}

// requireMethod enforces the HTTP method, writing a 405 on mismatch.
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		slog.Warn("Server: method not allowed", "method", r.Method, "path", r.URL.Path)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// writeErrorResponse maps the engine's error taxonomy to HTTP statuses.
func writeErrorResponse(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInsufficientCredits):
		writeJSONResponse(w, http.StatusPaymentRequired, models.Error(err.Error()))
	case errors.Is(err, models.ErrPremiumRequired):
		writeJSONResponse(w, http.StatusForbidden, models.Error(err.Error()))
	case errors.Is(err, models.ErrUserNotFound), errors.Is(err, models.ErrUnknownJourney):
		writeJSONResponse(w, http.StatusNotFound, models.Error(err.Error()))
	case errors.Is(err, models.ErrSessionNotInitialized), errors.Is(err, models.ErrSessionEnded):
		writeJSONResponse(w, http.StatusConflict, models.Error(err.Error()))
	case errors.Is(err, models.ErrGenerationFailed), errors.Is(err, models.ErrMalformedPersona):
		writeJSONResponse(w, http.StatusBadGateway, models.Error(err.Error()))
	default:
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
	}
}

func (s *Server) scenariosHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(dialogue.DefaultScenarios))
}

func (s *Server) journeysHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(journey.All()))
}

func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	session, err := s.orchestrator.GetSession(userID)
	if err != nil {
		slog.Error("Server.sessionHandler: failed to load session", "error", err, "userID", userID)
		writeErrorResponse(w, err)
		return
	}
	if session == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("No active session"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(session))
}

func (s *Server) selectScenarioHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req struct {
		ScenarioID string `json:"scenarioId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.selectScenarioHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	scenario, found := dialogue.FindScenario(req.ScenarioID)
	if !found {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown scenario"))
		return
	}

	session, err := s.orchestrator.SelectScenario(r.Context(), userID, *scenario)
	if err != nil {
		slog.Error("Server.selectScenarioHandler: scenario selection failed", "error", err, "userID", userID, "scenario", req.ScenarioID)
		writeErrorResponse(w, err)
		return
	}
	slog.Info("Server.selectScenarioHandler: session started", "userID", userID, "scenario", req.ScenarioID)
	writeJSONResponse(w, http.StatusOK, models.Success(session))
}

func (s *Server) selectJourneyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req struct {
		JourneyID string `json:"journeyId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.selectJourneyHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	session, err := s.orchestrator.SelectJourney(r.Context(), userID, req.JourneyID)
	if err != nil {
		slog.Error("Server.selectJourneyHandler: journey selection failed", "error", err, "userID", userID, "journeyID", req.JourneyID)
		writeErrorResponse(w, err)
		return
	}
	slog.Info("Server.selectJourneyHandler: journey started", "userID", userID, "journeyID", req.JourneyID)
	writeJSONResponse(w, http.StatusOK, models.Success(session))
}

func (s *Server) messageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.messageHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Text == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Message text is required"))
		return
	}

	result, err := s.orchestrator.SubmitUserMessage(r.Context(), userID, req.Text)
	if err != nil {
		slog.Error("Server.messageHandler: turn failed", "error", err, "userID", userID)
		writeErrorResponse(w, err)
		return
	}
	if result.Outcome == dialogue.OutcomeEnded {
		writeJSONResponse(w, http.StatusOK, models.Ended(result))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	if err := s.orchestrator.ResetSession(userID); err != nil {
		slog.Error("Server.resetHandler: reset failed", "error", err, "userID", userID)
		writeErrorResponse(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session reset", nil))
}

func (s *Server) profileHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	profile, _, err := s.orchestrator.GetOrCreateProfile(userID)
	if err != nil {
		slog.Error("Server.profileHandler: failed to load profile", "error", err, "userID", userID)
		writeErrorResponse(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(profile))
}

func (s *Server) premiumHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	profile, err := s.orchestrator.UpgradeToPremium(userID)
	if err != nil {
		slog.Error("Server.premiumHandler: upgrade failed", "error", err, "userID", userID)
		writeErrorResponse(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(profile))
}

func (s *Server) purchaseHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req struct {
		Amount int `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.purchaseHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Amount <= 0 {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Credit amount must be positive"))
		return
	}

	profile, err := s.orchestrator.PurchaseCredits(userID, req.Amount)
	if err != nil {
		slog.Error("Server.purchaseHandler: purchase failed", "error", err, "userID", userID)
		writeErrorResponse(w, err)
		return
	}
	slog.Info("Server.purchaseHandler: credits purchased", "userID", userID, "amount", req.Amount)
	writeJSONResponse(w, http.StatusOK, models.Success(profile))
}

func (s *Server) moodHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req struct {
		Mood int `json:"mood"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.moodHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Mood < 1 || req.Mood > 5 {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Mood rating must be between 1 and 5"))
		return
	}

	profile, err := s.orchestrator.LogMood(userID, req.Mood)
	if err != nil {
		slog.Error("Server.moodHandler: mood logging failed", "error", err, "userID", userID)
		writeErrorResponse(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(profile))
}

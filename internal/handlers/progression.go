package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pantheonmod/pantheon/pkg/progression"
)

// ProgressionService is the slice of the engine the progression endpoints
// need.
type ProgressionService interface {
	CheckProgression(requesterID, deityID string, score float64) []progression.Event
	ForgetRequester(requesterID string)
}

type ProgressionCheckRequest struct {
	RequesterID string  `json:"requester_id"`
	DeityID     string  `json:"deity_id"`
	Score       float64 `json:"score"`
}

type ProgressionCheckResponse struct {
	Events []progression.Event `json:"events"`
}

type ProgressionHandler struct {
	service ProgressionService
	logger  *slog.Logger
}

func NewProgressionHandler(service ProgressionService, logger *slog.Logger) *ProgressionHandler {
	return &ProgressionHandler{
		service: service,
		logger:  logger,
	}
}

// ServeHTTP handles progression tracking operations.
// Routes:
// POST /v1/progression/check           - Evaluate a score observation
// DELETE /v1/progression/{requesterID} - Drop all tracking for a requester
func (h *ProgressionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodPost:
		h.handleCheck(w, r)
	case http.MethodDelete:
		h.handleForget(w, r)
	default:
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *ProgressionHandler) handleCheck(w http.ResponseWriter, r *http.Request) {
	if strings.TrimPrefix(r.URL.Path, "/v1/progression") != "/check" {
		writeError(w, h.logger, http.StatusNotFound, "Not found")
		return
	}

	var req ProgressionCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid progression check body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if req.RequesterID == "" || req.DeityID == "" {
		writeError(w, h.logger, http.StatusBadRequest, "requester_id and deity_id are required")
		return
	}

	events := h.service.CheckProgression(req.RequesterID, req.DeityID, req.Score)
	if events == nil {
		events = []progression.Event{}
	}
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(ProgressionCheckResponse{Events: events}); err != nil {
		h.logger.Error("Failed to encode progression events", "error", err)
	}
}

func (h *ProgressionHandler) handleForget(w http.ResponseWriter, r *http.Request) {
	requesterID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/progression"), "/")
	if requesterID == "" || requesterID == "check" {
		writeError(w, h.logger, http.StatusBadRequest, "Requester ID is required")
		return
	}

	h.service.ForgetRequester(requesterID)
	h.logger.Debug("Dropped progression tracking", "requester", requesterID)
	w.WriteHeader(http.StatusNoContent)
}

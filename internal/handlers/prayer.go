package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pantheonmod/pantheon/internal/engine"
	"github.com/pantheonmod/pantheon/pkg/prayer"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// PrayerService is the slice of the engine the prayer endpoint needs.
type PrayerService interface {
	SubmitPrayer(ctx context.Context, req prayer.Request) (*prayer.Response, error)
}

type PrayerHandler struct {
	service PrayerService
	logger  *slog.Logger
}

func NewPrayerHandler(service PrayerService, logger *slog.Logger) *PrayerHandler {
	return &PrayerHandler{
		service: service,
		logger:  logger,
	}
}

// ServeHTTP handles prayer submissions.
// Routes:
// POST /v1/prayer - Submit a prayer and return the deity's response
func (h *PrayerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req prayer.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid prayer request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	resp, err := h.service.SubmitPrayer(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrUnknownDeity), errors.Is(err, engine.ErrUnknownPrayerType):
			h.logger.Warn("Prayer for unknown target", "deity", req.DeityID, "prayer_type", req.PrayerType)
			writeError(w, h.logger, http.StatusNotFound, err.Error())
		default:
			h.logger.Warn("Invalid prayer request", "error", err)
			writeError(w, h.logger, http.StatusBadRequest, err.Error())
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode prayer response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: msg}); err != nil {
		logger.Error("Failed to encode error response", "error", err)
	}
}

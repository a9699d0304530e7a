package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pantheonmod/pantheon/pkg/deity"
)

// ConfigService resolves effective deity configuration.
type ConfigService interface {
	EffectiveConfig(deityID, prayerType string) deity.Effective
	KnownDeity(deityID string) bool
}

type DeityConfigHandler struct {
	service ConfigService
	logger  *slog.Logger
}

func NewDeityConfigHandler(service ConfigService, logger *slog.Logger) *DeityConfigHandler {
	return &DeityConfigHandler{
		service: service,
		logger:  logger,
	}
}

// ServeHTTP serves resolved configuration for diagnostics.
// Routes:
// GET /v1/deities/{id}/config?type={prayerType} - Resolved effective config
func (h *DeityConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	// Path shape: /v1/deities/{id}/config
	path := strings.TrimPrefix(r.URL.Path, "/v1/deities/")
	deityID := strings.TrimSuffix(path, "/config")
	if deityID == "" || deityID == path {
		writeError(w, h.logger, http.StatusBadRequest, "Deity ID is required")
		return
	}
	prayerType := r.URL.Query().Get("type")
	if prayerType == "" {
		writeError(w, h.logger, http.StatusBadRequest, "Query parameter 'type' is required")
		return
	}

	if !h.service.KnownDeity(deityID) {
		writeError(w, h.logger, http.StatusNotFound, "Unknown deity: "+deityID)
		return
	}

	eff := h.service.EffectiveConfig(deityID, prayerType)
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(eff); err != nil {
		h.logger.Error("Failed to encode effective config", "error", err)
	}
}

// Reloader re-reads declarative definitions and swaps the active set.
type Reloader interface {
	Reload(ctx context.Context) (deity.LoadResult, error)
}

type ConfigReloadHandler struct {
	reloader Reloader
	logger   *slog.Logger
}

func NewConfigReloadHandler(reloader Reloader, logger *slog.Logger) *ConfigReloadHandler {
	return &ConfigReloadHandler{
		reloader: reloader,
		logger:   logger,
	}
}

// ServeHTTP triggers a config reload.
// Routes:
// POST /v1/config/reload - Re-read definitions from the data directory
func (h *ConfigReloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	result, err := h.reloader.Reload(r.Context())
	if err != nil {
		h.logger.Error("Config reload failed", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Reload failed: "+err.Error())
		return
	}

	h.logger.Info("Config reloaded", "loaded", result.Loaded, "errors", result.Errors)
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.logger.Error("Failed to encode reload result", "error", err)
	}
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/courtside/refexchange/internal/domain"
)

// SettingsService is what the settings handler needs from the service layer.
type SettingsService interface {
	All(ctx context.Context) (map[domain.FilterKind]domain.FilterSettings, error)
	SetGlobal(ctx context.Context, kind domain.FilterKind, enabled bool, threshold float64) error
	SetOverride(ctx context.Context, kind domain.FilterKind, associationCode string, threshold float64) error
	ClearOverride(ctx context.Context, kind domain.FilterKind, associationCode string) error
}

// SettingsHandler serves the filter configuration endpoints.
type SettingsHandler struct {
	settings SettingsService
	logger   *slog.Logger
}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler(settings SettingsService, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, logger: logger}
}

// ListFilters returns the full two-layer configuration of every filter.
// GET /api/settings/filters
func (h *SettingsHandler) ListFilters(w http.ResponseWriter, r *http.Request) {
	all, err := h.settings.All(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list filters failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load filter settings")
		return
	}

	// Stable order for clients: pipeline evaluation order.
	out := make([]domain.FilterSettings, 0, len(all))
	for _, kind := range domain.FilterKinds {
		if cfg, ok := all[kind]; ok {
			out = append(out, cfg)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"filters": out})
}

// updateFilterRequest is the body of the global-layer update endpoint.
type updateFilterRequest struct {
	Enabled   bool    `json:"enabled"`
	Threshold float64 `json:"threshold"`
}

// UpdateFilter writes the global layer of one filter.
// PUT /api/settings/filters/{kind}
func (h *SettingsHandler) UpdateFilter(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseFilterKind(pathParam(r, "kind"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown filter kind")
		return
	}

	var req updateFilterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Threshold < 0 {
		writeError(w, http.StatusBadRequest, "threshold must not be negative")
		return
	}

	if err := h.settings.SetGlobal(r.Context(), kind, req.Enabled, req.Threshold); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: update filter failed",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to update filter")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// overrideRequest is the body of the per-association override endpoint.
type overrideRequest struct {
	Threshold float64 `json:"threshold"`
}

// SetOverride writes a per-association threshold override.
// PUT /api/settings/filters/{kind}/overrides/{association}
func (h *SettingsHandler) SetOverride(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseFilterKind(pathParam(r, "kind"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown filter kind")
		return
	}
	association := strings.TrimSpace(pathParam(r, "association"))
	if association == "" {
		writeError(w, http.StatusBadRequest, "missing association code")
		return
	}
	if !domain.OverridableKind(kind) {
		writeError(w, http.StatusUnprocessableEntity, "filter kind does not support association overrides")
		return
	}

	var req overrideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Threshold <= 0 {
		writeError(w, http.StatusBadRequest, "threshold must be positive")
		return
	}

	if err := h.settings.SetOverride(r.Context(), kind, association, req.Threshold); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: set override failed",
			slog.String("kind", string(kind)),
			slog.String("association", association),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to set override")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearOverride removes a per-association override.
// DELETE /api/settings/filters/{kind}/overrides/{association}
func (h *SettingsHandler) ClearOverride(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseFilterKind(pathParam(r, "kind"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown filter kind")
		return
	}
	association := strings.TrimSpace(pathParam(r, "association"))
	if association == "" {
		writeError(w, http.StatusBadRequest, "missing association code")
		return
	}

	if err := h.settings.ClearOverride(r.Context(), kind, association); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: clear override failed",
			slog.String("kind", string(kind)),
			slog.String("association", association),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to clear override")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseFilterKind(raw string) (domain.FilterKind, bool) {
	kind := domain.FilterKind(raw)
	for _, k := range domain.FilterKinds {
		if k == kind {
			return kind, true
		}
	}
	return "", false
}

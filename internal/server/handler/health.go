package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// Connectivity is the reachability view the health endpoint reports.
type Connectivity interface {
	Online() bool
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	conn   Connectivity
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. conn may be nil; the upstream
// field is then omitted.
func NewHealthHandler(conn Connectivity, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{conn: conn, logger: logger}
}

// HealthCheck reports engine liveness plus reachability of the system of
// record, so clients can tell "engine down" apart from "upstream down".
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.conn != nil {
		body["upstream_online"] = h.conn.Online()
	}
	writeJSON(w, http.StatusOK, body)
}

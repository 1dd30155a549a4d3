package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/courtside/refexchange/internal/domain"
	"github.com/courtside/refexchange/internal/eligibility"
	"github.com/courtside/refexchange/internal/service"
)

// Browser is what the exchange handler needs from the browse composition.
// Declared locally so the handler package does not depend on the concrete
// service implementation.
type Browser interface {
	Browse(ctx context.Context, tab domain.Tab) (service.BrowseResult, error)
	Viewer() domain.Referee
}

// Finder resolves one exchange snapshot by ID.
type Finder interface {
	Find(ctx context.Context, exchangeID string) (domain.Exchange, error)
}

// ActionExecutor carries out one confirmed action.
type ActionExecutor interface {
	Execute(ctx context.Context, kind domain.ActionKind, x domain.Exchange) (domain.ExecuteOutcome, error)
}

// ExchangeHandler serves the marketplace endpoints.
type ExchangeHandler struct {
	browser  Browser
	finder   Finder
	executor ActionExecutor
	logger   *slog.Logger
}

// NewExchangeHandler creates an ExchangeHandler.
func NewExchangeHandler(browser Browser, finder Finder, executor ActionExecutor, logger *slog.Logger) *ExchangeHandler {
	return &ExchangeHandler{
		browser:  browser,
		finder:   finder,
		executor: executor,
		logger:   logger,
	}
}

// ListExchanges returns the visible, actionable offers for one tab.
// GET /api/exchanges?tab=open|mine
func (h *ExchangeHandler) ListExchanges(w http.ResponseWriter, r *http.Request) {
	tab, ok := parseTab(r.URL.Query().Get("tab"))
	if !ok {
		writeError(w, http.StatusBadRequest, "tab must be 'open' or 'mine'")
		return
	}

	res, err := h.browser.Browse(r.Context(), tab)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: browse failed",
			slog.String("tab", string(tab)),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, domain.ErrOffline) || errors.Is(err, domain.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "exchange pool unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load exchanges")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// actionRequest is the body of the action endpoint.
type actionRequest struct {
	Action domain.ActionKind `json:"action"`
	Tab    domain.Tab        `json:"tab"`
}

// actionResponse reports how the action was disposed of: delivered to the
// system of record, or queued for replay while offline.
type actionResponse struct {
	Outcome domain.ExecuteOutcome `json:"outcome"`
}

// ExecuteAction performs a confirmed action on one exchange. The requested
// action must match the single legal action for the offer's current state;
// anything else is rejected before touching the network.
// POST /api/exchanges/{id}/actions
func (h *ExchangeHandler) ExecuteAction(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing exchange id")
		return
	}

	var req actionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Tab == "" {
		req.Tab = domain.TabOpen
	}
	if _, ok := parseTab(string(req.Tab)); !ok {
		writeError(w, http.StatusBadRequest, "tab must be 'open' or 'mine'")
		return
	}

	x, err := h.finder.Find(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "exchange not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: exchange lookup failed",
			slog.String("exchange_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to resolve exchange")
		return
	}

	viewerID := h.browser.Viewer().ID

	// The submissions tab only ever lists the viewer's own postings; a
	// client asserting it for a foreign exchange gets no removal shortcut.
	if req.Tab == domain.TabMine && !x.SubmittedBy(viewerID) {
		writeError(w, http.StatusForbidden, "not your exchange")
		return
	}

	allowed := eligibility.ActionFor(x, viewerID, req.Tab)
	if req.Action == domain.ActionNone || req.Action != allowed {
		writeError(w, http.StatusConflict, "action not allowed for this exchange")
		return
	}

	outcome, err := h.executor.Execute(r.Context(), req.Action, x)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrConvocationNotFound):
			writeError(w, http.StatusUnprocessableEntity, "no convocation backs this exchange")
		case errors.Is(err, domain.ErrAlreadyExists):
			writeError(w, http.StatusConflict, "exchange already taken")
		case errors.Is(err, domain.ErrUnauthorized):
			writeError(w, http.StatusForbidden, "not allowed")
		default:
			h.logger.ErrorContext(r.Context(), "handler: action failed",
				slog.String("exchange_id", id),
				slog.String("action", string(req.Action)),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusBadGateway, "action failed")
		}
		return
	}

	status := http.StatusOK
	if outcome == domain.OutcomeQueued {
		status = http.StatusAccepted
	}
	writeJSON(w, status, actionResponse{Outcome: outcome})
}

func parseTab(raw string) (domain.Tab, bool) {
	switch domain.Tab(raw) {
	case domain.TabOpen:
		return domain.TabOpen, true
	case domain.TabMine:
		return domain.TabMine, true
	default:
		return "", false
	}
}

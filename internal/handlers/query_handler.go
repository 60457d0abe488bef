package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hecoverseer/backend/internal/query"
)

// Reader is the read side of the economy plus the simulation switch.
type Reader interface {
	EconomyStats(ctx context.Context) (*query.Stats, error)
	Feed(ctx context.Context, limit int) ([]query.FeedItem, error)
	User(ctx context.Context, wallet string) (*query.UserView, error)
	SimulationActive(ctx context.Context) (bool, error)
	SetSimulationActive(ctx context.Context, active bool) error
}

// QueryHandler serves the read-only query surface and the simulation toggles.
type QueryHandler struct {
	Query  Reader
	Logger *slog.Logger
}

// Root handles GET / (liveness).
func Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "HEC Overseer Node Online"})
}

// GetUser handles GET /user/{wallet_address}.
func (h *QueryHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Query.User(r.Context(), r.PathValue("wallet_address"))
	if err != nil {
		if errors.Is(err, query.ErrNotFound) {
			http.Error(w, `{"error":"User not found"}`, http.StatusNotFound)
			return
		}
		h.Logger.Error("get user", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Stats handles GET /stats.
func (h *QueryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Query.EconomyStats(r.Context())
	if err != nil {
		h.Logger.Error("economy stats", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Feed handles GET /feed?limit=N. A missing limit means the default.
func (h *QueryHandler) Feed(w http.ResponseWriter, r *http.Request) {
	limit := query.DefaultFeedLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, `{"error":"limit must be an integer"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}
	items, err := h.Query.Feed(r.Context(), limit)
	if err != nil {
		h.Logger.Error("feed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// StartSimulation handles POST /simulation/start.
func (h *QueryHandler) StartSimulation(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, true, "Simulation Started")
}

// StopSimulation handles POST /simulation/stop.
func (h *QueryHandler) StopSimulation(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, false, "Simulation Stopped")
}

// SimulationStatus handles GET /simulation/status.
func (h *QueryHandler) SimulationStatus(w http.ResponseWriter, r *http.Request) {
	active, err := h.Query.SimulationActive(r.Context())
	if err != nil {
		h.Logger.Error("simulation status", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": active})
}

func (h *QueryHandler) toggle(w http.ResponseWriter, r *http.Request, active bool, status string) {
	if err := h.Query.SetSimulationActive(r.Context(), active); err != nil {
		h.Logger.Error("toggle simulation", "active", active, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	h.Logger.Info("simulation toggled", "active", active)
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

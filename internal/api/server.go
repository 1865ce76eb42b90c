// Package api provides the HTTP surface of the colony core.
// GET endpoints are public (read-only observation of the core's decisions).
// The override endpoint requires a bearer token (operator control plane).
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/colony-mind/internal/brain"
	"github.com/talgya/colony-mind/internal/colony"
	"github.com/talgya/colony-mind/internal/host"
	"github.com/talgya/colony-mind/internal/store"
)

// Server serves core state over HTTP.
type Server struct {
	Brain     *brain.Brain
	DB        *store.DB // optional; enables the spawn-order journal endpoint
	Overrides *host.OverrideTable
	Port      int
	AdminKey  string // bearer token for POST endpoints. Empty = POST disabled.
}

// Start begins serving in a goroutine.
func (s *Server) Start() {
	overrideLimiter := NewRateLimiter(30, time.Minute)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/areas", s.handleAreas)
	mux.HandleFunc("/api/v1/area/", s.handleAreaDetail)
	mux.HandleFunc("/api/v1/orders", s.handleOrders)

	mux.HandleFunc("/api/v1/overrides",
		s.adminOnly(RateLimitMiddleware(overrideLimiter, s.handleOverrides)))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Brain.Status()
	writeJSON(w, map[string]any{
		"tick":            st.Tick,
		"budget":          st.Budget,
		"budget_human":    humanize.Commaf(st.Budget),
		"max_budget":      st.MaxBudget,
		"recovering":      st.Recovering,
		"recovery_factor": st.Factor,
		"episodes":        st.Episodes,
		"drain_count":     st.DrainCount,
		"areas":           st.Areas,
		"spawns_issued":   st.SpawnsIssued,
	})
}

func (s *Server) handleAreas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Brain.Plans())
}

func (s *Server) handleAreaDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/area/")
	if id == "" {
		http.Error(w, "missing area id", http.StatusBadRequest)
		return
	}
	plans := s.Brain.Plans()
	plan, ok := plans[colony.AreaID(id)]
	if !ok {
		http.Error(w, "unknown area", http.StatusNotFound)
		return
	}
	writeJSON(w, plan)
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	if s.DB != nil {
		orders, err := s.DB.RecentSpawnOrders(50)
		if err == nil {
			writeJSON(w, orders)
			return
		}
		slog.Warn("order journal read failed, serving in-memory ring", "error", err)
	}
	writeJSON(w, s.Brain.RecentOrders())
}

// overrideRequest pins role targets and/or the total cap for one area.
// Null targets and total_cap together clear the area's pins.
type overrideRequest struct {
	Area     string         `json:"area"`
	Targets  map[string]int `json:"targets"`
	TotalCap *int           `json:"total_cap"`
}

func (s *Server) handleOverrides(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Area == "" {
		http.Error(w, "area is required", http.StatusBadRequest)
		return
	}

	if req.Targets == nil && req.TotalCap == nil {
		s.Overrides.Set(colony.AreaID(req.Area), nil)
		writeJSON(w, map[string]any{"success": true, "cleared": true})
		return
	}

	o := &colony.Overrides{TotalCap: req.TotalCap}
	if req.Targets != nil {
		o.Targets = make(map[colony.Role]int, len(req.Targets))
		for name, n := range req.Targets {
			role, ok := colony.ParseRole(name)
			if !ok {
				http.Error(w, "unknown role "+name, http.StatusBadRequest)
				return
			}
			o.Targets[role] = n
		}
	}
	s.Overrides.Set(colony.AreaID(req.Area), o)
	slog.Info("operator override set", "area", req.Area, "targets", req.Targets)
	writeJSON(w, map[string]any{"success": true})
}

// adminOnly rejects requests without the configured bearer token.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled", http.StatusForbidden)
			return
		}
		auth := r.Header.Get("Authorization")
		if auth != "Bearer "+s.AdminKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

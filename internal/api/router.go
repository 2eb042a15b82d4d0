package api

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ernie/sessions-tracker/internal/tracker"
)

// Router exposes the read-only operational surface: current status, a
// live event stream, and prometheus metrics.
type Router struct {
	mux     *http.ServeMux
	tracker *tracker.Tracker
	hub     *Hub
	log     *zap.Logger
}

// NewRouter creates the HTTP router
func NewRouter(t *tracker.Tracker, log *zap.Logger) *Router {
	r := &Router{
		mux:     http.NewServeMux(),
		tracker: t,
		hub:     NewHub(log),
		log:     log,
	}

	r.mux.HandleFunc("GET /api/status", r.handleStatus)
	r.mux.HandleFunc("GET /api/events", r.handleWebSocket)
	r.mux.Handle("GET /metrics", promhttp.Handler())

	return r
}

// Hub returns the event hub so the tracker can broadcast into it
func (r *Router) Hub() *Hub {
	return r.hub
}

// StartHub starts the hub's broadcast loop
func (r *Router) StartHub() {
	go r.hub.Run()
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

type statusPlayer struct {
	Slot      int   `json:"slot"`
	PlayerID  int64 `json:"player_id"`
	SessionID int64 `json:"session_id,omitempty"`
}

type statusResponse struct {
	ServerID    int64          `json:"server_id"`
	Map         string         `json:"map,omitempty"`
	PlayerCount int            `json:"player_count"`
	Players     []statusPlayer `json:"players"`
}

func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) {
	serverID, currentMap := r.tracker.Server()

	resp := statusResponse{
		ServerID: serverID,
		Players:  []statusPlayer{},
	}
	if currentMap != nil {
		resp.Map = currentMap.Name
	}

	for slot, p := range r.tracker.Registry().Bindings() {
		sp := statusPlayer{Slot: slot, PlayerID: p.ID}
		if p.Session != nil {
			sp.SessionID = p.Session.ID
		}
		resp.Players = append(resp.Players, sp)
	}
	resp.PlayerCount = len(resp.Players)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		r.log.Warn("failed to write status response", zap.Error(err))
	}
}

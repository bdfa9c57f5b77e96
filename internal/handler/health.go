package handler

import (
	"net/http"
	"time"

	"bustrack/internal/store"
	"bustrack/internal/tracker"
)

type HealthHandler struct {
	tracker *tracker.Tracker
	store   *store.Postgres
}

func NewHealthHandler(t *tracker.Tracker, pg *store.Postgres) *HealthHandler {
	return &HealthHandler{tracker: t, store: pg}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type ReadyResponse struct {
	Ready      bool      `json:"ready"`
	Database   bool      `json:"database"`
	ServerTime time.Time `json:"server_time"`
}

// Readyz reports ready once the database answers and the tracker has
// completed its first poll.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	dbOK := h.store.Ping(r.Context()) == nil
	ready := dbOK && h.tracker.IsReady()

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, ReadyResponse{
		Ready:      ready,
		Database:   dbOK,
		ServerTime: time.Now(),
	})
}

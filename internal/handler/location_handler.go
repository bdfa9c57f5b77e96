package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"bustrack/internal/domain"
	"bustrack/internal/eta"
	"bustrack/internal/hub"
	"bustrack/internal/metrics"
	"bustrack/internal/store"
)

type LocationHandler struct {
	store   *store.Postgres
	live    *store.LiveStore
	hub     *hub.Hub
	eta     *eta.Service
	metrics *metrics.Collector
	logger  *slog.Logger
}

func NewLocationHandler(pg *store.Postgres, live *store.LiveStore, h *hub.Hub, etaSvc *eta.Service, m *metrics.Collector, logger *slog.Logger) *LocationHandler {
	return &LocationHandler{
		store:   pg,
		live:    live,
		hub:     h,
		eta:     etaSvc,
		metrics: m,
		logger:  logger,
	}
}

type LiveLocationResponse struct {
	BusID      int64    `json:"bus_id"`
	BusNumber  string   `json:"bus_number"`
	IsActive   bool     `json:"is_active"`
	Latitude   *float64 `json:"latest_latitude"`
	Longitude  *float64 `json:"latest_longitude"`
	RecordedAt *string  `json:"recorded_at"`
	RouteName  string   `json:"route_name,omitempty"`
}

// GetLive serves GET /v1/buses/{id}/live.
func (h *LocationHandler) GetLive(w http.ResponseWriter, r *http.Request) {
	h.metrics.HTTPRequests.WithLabelValues("live").Inc()
	ServerStats.IncRequests()

	busID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "bus id must be an integer")
		return
	}

	bus, err := h.store.BusByID(r.Context(), busID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := LiveLocationResponse{
		BusID:     bus.ID,
		BusNumber: bus.Number,
		IsActive:  bus.IsActive,
	}

	if fix, ok, err := h.store.LatestLocation(r.Context(), busID); err != nil {
		respondDomainError(w, err)
		return
	} else if ok {
		recordedAt := fix.RecordedAt.Format(time.RFC3339)
		resp.Latitude = &fix.Latitude
		resp.Longitude = &fix.Longitude
		resp.RecordedAt = &recordedAt
	}

	if assignment, err := h.store.CurrentAssignment(r.Context(), busID); err == nil {
		if route, err := h.store.RouteByID(r.Context(), assignment.RouteID); err == nil {
			resp.RouteName = route.Name
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

type HistoryResponse struct {
	BusID        int64                `json:"bus_id"`
	BusNumber    string               `json:"bus_number"`
	TotalRecords int                  `json:"total_records"`
	Locations    []domain.LocationFix `json:"locations"`
}

// GetHistory serves GET /v1/buses/{id}/history?limit=N (1..500).
func (h *LocationHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	h.metrics.HTTPRequests.WithLabelValues("history").Inc()
	ServerStats.IncRequests()

	busID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "bus id must be an integer")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 500 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
	}

	bus, err := h.store.BusByID(r.Context(), busID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	fixes, err := h.store.LocationHistory(r.Context(), busID, limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if fixes == nil {
		fixes = []domain.LocationFix{}
	}

	respondJSON(w, http.StatusOK, HistoryResponse{
		BusID:        bus.ID,
		BusNumber:    bus.Number,
		TotalRecords: len(fixes),
		Locations:    fixes,
	})
}

type ActiveBusesResponse struct {
	TotalActive int                   `json:"total_active"`
	Buses       []*domain.BusPosition `json:"buses"`
	ServerTime  time.Time             `json:"server_time"`
}

// GetActive serves GET /v1/buses/active.
func (h *LocationHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	h.metrics.HTTPRequests.WithLabelValues("active").Inc()
	ServerStats.IncRequests()

	positions, err := h.store.ActivePositions(r.Context())
	if err != nil {
		h.logger.Error("failed to load active buses", "error", err)
		respondDomainError(w, err)
		return
	}
	if positions == nil {
		positions = []*domain.BusPosition{}
	}

	respondJSON(w, http.StatusOK, ActiveBusesResponse{
		TotalActive: len(positions),
		Buses:       positions,
		ServerTime:  time.Now(),
	})
}

type LocationUpdateRequest struct {
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	RecordedAt *time.Time `json:"recorded_at"`
}

// PostLocation serves POST /v1/buses/{id}/location: records a fix,
// invalidates the bus's cached estimates and fans the new position out
// to websocket subscribers.
func (h *LocationHandler) PostLocation(w http.ResponseWriter, r *http.Request) {
	h.metrics.HTTPRequests.WithLabelValues("post_location").Inc()
	ServerStats.IncRequests()

	busID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "bus id must be an integer")
		return
	}

	var req LocationUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Latitude < -90 || req.Latitude > 90 {
		respondError(w, http.StatusBadRequest, "latitude must be within [-90, 90]")
		return
	}
	if req.Longitude < -180 || req.Longitude > 180 {
		respondError(w, http.StatusBadRequest, "longitude must be within [-180, 180]")
		return
	}

	bus, err := h.store.BusByID(r.Context(), busID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	recordedAt := time.Now().UTC()
	if req.RecordedAt != nil {
		recordedAt = req.RecordedAt.UTC()
	}

	fix := domain.LocationFix{
		BusID:      bus.ID,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		RecordedAt: recordedAt,
	}
	if err := h.store.InsertLocation(r.Context(), fix); err != nil {
		h.logger.Error("failed to record location", "bus_id", busID, "error", err)
		respondDomainError(w, err)
		return
	}

	h.metrics.FixesRecorded.Inc()
	h.eta.InvalidateBus(bus.Number)

	// Push the fresh position to live subscribers without waiting for
	// the next tracker poll.
	pos := &domain.BusPosition{
		BusID:      bus.ID,
		BusNumber:  bus.Number,
		Latitude:   fix.Latitude,
		Longitude:  fix.Longitude,
		RecordedAt: fix.RecordedAt,
	}
	if existing, ok := h.live.Get(bus.Number); ok {
		pos.RouteName = existing.RouteName
	}
	h.hub.Broadcast(h.live.Update([]*domain.BusPosition{pos}))

	respondJSON(w, http.StatusCreated, fix)
}

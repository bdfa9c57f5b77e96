package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"bustrack/internal/eta"
	"bustrack/internal/metrics"
)

type ETAHandler struct {
	service *eta.Service
	metrics *metrics.Collector
	logger  *slog.Logger
}

func NewETAHandler(service *eta.Service, m *metrics.Collector, logger *slog.Logger) *ETAHandler {
	return &ETAHandler{service: service, metrics: m, logger: logger}
}

// GetETA serves GET /v1/buses/{number}/eta?route_id=N.
func (h *ETAHandler) GetETA(w http.ResponseWriter, r *http.Request) {
	h.metrics.HTTPRequests.WithLabelValues("eta").Inc()
	ServerStats.IncRequests()

	busNumber := r.PathValue("number")
	if busNumber == "" {
		respondError(w, http.StatusBadRequest, "missing bus number")
		return
	}

	routeID, err := strconv.ParseInt(r.URL.Query().Get("route_id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "route_id query parameter must be an integer")
		return
	}

	result, err := h.service.ETA(r.Context(), busNumber, routeID)
	if err != nil {
		h.logger.Warn("eta request failed", "bus", busNumber, "route_id", routeID, "error", err)
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetDetailedETA serves GET /v1/buses/{number}/eta/detailed with an
// optional stop_order pinning the target stop.
func (h *ETAHandler) GetDetailedETA(w http.ResponseWriter, r *http.Request) {
	h.metrics.HTTPRequests.WithLabelValues("eta_detailed").Inc()
	ServerStats.IncRequests()

	busNumber := r.PathValue("number")
	if busNumber == "" {
		respondError(w, http.StatusBadRequest, "missing bus number")
		return
	}

	routeID, err := strconv.ParseInt(r.URL.Query().Get("route_id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "route_id query parameter must be an integer")
		return
	}

	var stopOrder *int
	if v := r.URL.Query().Get("stop_order"); v != "" {
		order, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "stop_order query parameter must be an integer")
			return
		}
		stopOrder = &order
	}

	result, err := h.service.DetailedETA(r.Context(), busNumber, routeID, stopOrder)
	if err != nil {
		h.logger.Warn("detailed eta request failed", "bus", busNumber, "route_id", routeID, "error", err)
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

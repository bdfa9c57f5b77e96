package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"bustrack/internal/domain"
	"bustrack/internal/metrics"
	"bustrack/internal/store"
)

type RouteHandler struct {
	store   *store.Postgres
	metrics *metrics.Collector
	logger  *slog.Logger
}

func NewRouteHandler(pg *store.Postgres, m *metrics.Collector, logger *slog.Logger) *RouteHandler {
	return &RouteHandler{store: pg, metrics: m, logger: logger}
}

type BusRoutesResponse struct {
	BusNumber       string `json:"bus_number"`
	CurrentRouteID  *int64 `json:"current_route_id"`
	PreviousRouteID *int64 `json:"previous_route_id"`
}

// GetBusRoutes serves GET /v1/buses/{number}/routes: the current and
// most recent previous route assignment. With no current assignment
// the two most recent historical ones stand in.
func (h *RouteHandler) GetBusRoutes(w http.ResponseWriter, r *http.Request) {
	h.metrics.HTTPRequests.WithLabelValues("bus_routes").Inc()
	ServerStats.IncRequests()

	bus, err := h.store.BusByNumber(r.Context(), r.PathValue("number"))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	assignments, err := h.store.RecentAssignments(r.Context(), bus.ID, 10)
	if err != nil {
		h.logger.Error("failed to load assignments", "bus", bus.Number, "error", err)
		respondDomainError(w, err)
		return
	}

	resp := BusRoutesResponse{BusNumber: bus.Number}

	var current *domain.RouteAssignment
	for i := range assignments {
		if assignments[i].IsCurrent {
			current = &assignments[i]
			break
		}
	}

	if current != nil {
		resp.CurrentRouteID = &current.RouteID
		for i := range assignments {
			a := &assignments[i]
			if !a.IsCurrent && a.RouteID != current.RouteID {
				resp.PreviousRouteID = &a.RouteID
				break
			}
		}
	} else if len(assignments) > 0 {
		resp.CurrentRouteID = &assignments[0].RouteID
		if len(assignments) > 1 {
			resp.PreviousRouteID = &assignments[1].RouteID
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

type CurrentRouteDetail struct {
	RouteID     int64         `json:"route_id"`
	RouteName   string        `json:"route_name"`
	RouteNumber string        `json:"route_number,omitempty"`
	AssignedAt  time.Time     `json:"assigned_at"`
	Stops       []domain.Stop `json:"stops"`
}

type DetailedBusRoutesResponse struct {
	BusNumber    string                   `json:"bus_number"`
	BusID        int64                    `json:"bus_id"`
	IsActive     bool                     `json:"is_active"`
	CurrentRoute *CurrentRouteDetail      `json:"current_route"`
	RouteHistory []domain.RouteAssignment `json:"route_history"`
}

// GetDetailedBusRoutes serves GET /v1/buses/{number}/routes/detailed.
func (h *RouteHandler) GetDetailedBusRoutes(w http.ResponseWriter, r *http.Request) {
	h.metrics.HTTPRequests.WithLabelValues("bus_routes_detailed").Inc()
	ServerStats.IncRequests()

	bus, err := h.store.BusByNumber(r.Context(), r.PathValue("number"))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := DetailedBusRoutesResponse{
		BusNumber:    bus.Number,
		BusID:        bus.ID,
		IsActive:     bus.IsActive,
		RouteHistory: []domain.RouteAssignment{},
	}

	assignment, err := h.store.CurrentAssignment(r.Context(), bus.ID)
	switch {
	case err == nil:
		route, err := h.store.RouteByID(r.Context(), assignment.RouteID)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		stops, err := h.store.StopsForRoute(r.Context(), assignment.RouteID)
		if err != nil && !errors.Is(err, domain.ErrEmptyRoute) {
			respondDomainError(w, err)
			return
		}
		resp.CurrentRoute = &CurrentRouteDetail{
			RouteID:     route.ID,
			RouteName:   route.Name,
			RouteNumber: route.Number,
			AssignedAt:  assignment.AssignedAt,
			Stops:       stops,
		}
	case errors.Is(err, domain.ErrNoRouteAssigned):
		// Bus exists but idles without a route; history still applies.
	default:
		respondDomainError(w, err)
		return
	}

	history, err := h.store.RecentAssignments(r.Context(), bus.ID, 10)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if history != nil {
		resp.RouteHistory = history
	}

	respondJSON(w, http.StatusOK, resp)
}

package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bustrack/internal/cache"
	"bustrack/internal/domain"
	"bustrack/internal/eta"
	"bustrack/internal/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStorage struct {
	bus        domain.Bus
	assignment domain.RouteAssignment
	route      domain.Route
	stops      []domain.Stop
	fixes      []domain.LocationFix
}

func (f *fakeStorage) BusByNumber(ctx context.Context, number string) (domain.Bus, error) {
	if number != f.bus.Number {
		return domain.Bus{}, domain.ErrBusNotFound
	}
	return f.bus, nil
}

func (f *fakeStorage) CurrentAssignment(ctx context.Context, busID int64) (domain.RouteAssignment, error) {
	return f.assignment, nil
}

func (f *fakeStorage) RouteByID(ctx context.Context, routeID int64) (domain.Route, error) {
	if routeID != f.route.ID {
		return domain.Route{}, domain.ErrRouteNotFound
	}
	return f.route, nil
}

func (f *fakeStorage) StopsForRoute(ctx context.Context, routeID int64) ([]domain.Stop, error) {
	if len(f.stops) == 0 {
		return nil, domain.ErrEmptyRoute
	}
	return f.stops, nil
}

func (f *fakeStorage) RecentLocations(ctx context.Context, busID int64, limit int) ([]domain.LocationFix, error) {
	if len(f.fixes) == 0 {
		return nil, domain.ErrNoLocationData
	}
	return f.fixes, nil
}

func newTestStorage() *fakeStorage {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &fakeStorage{
		bus:        domain.Bus{ID: 1, Number: "42A", IsActive: true},
		assignment: domain.RouteAssignment{BusID: 1, RouteID: 7, IsCurrent: true},
		route:      domain.Route{ID: 7, Name: "City Center Line"},
		stops: []domain.Stop{
			{ID: 1, RouteID: 7, Name: "Depot", Latitude: 52.2000, Longitude: 21.0000, Order: 1},
			{ID: 2, RouteID: 7, Name: "Old Town", Latitude: 52.2300, Longitude: 21.0100, Order: 2},
			{ID: 3, RouteID: 7, Name: "Terminus", Latitude: 52.2600, Longitude: 21.0200, Order: 3},
		},
		fixes: []domain.LocationFix{
			{BusID: 1, Latitude: 52.2090, Longitude: 21.0030, RecordedAt: base.Add(2 * time.Minute)},
			{BusID: 1, Latitude: 52.2045, Longitude: 21.0015, RecordedAt: base.Add(time.Minute)},
			{BusID: 1, Latitude: 52.2000, Longitude: 21.0000, RecordedAt: base},
		},
	}
}

func newTestETAHandler(storage eta.Storage) *ETAHandler {
	svc := eta.NewService(storage, cache.New(15*time.Second, testLogger()), metrics.NewCollector(), eta.Params{
		Speed:                  eta.SpeedParams{DefaultKmh: 20, MinKmh: 5, MaxKmh: 80},
		SampleSize:             10,
		BaseTimePerRoute:       90,
		MaxAdditionalTime:      180,
		StoppedFallbackMinutes: 60,
	}, testLogger())
	return NewETAHandler(svc, metrics.NewCollector(), testLogger())
}

func serveETA(h *ETAHandler, target string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/buses/{number}/eta", h.GetETA)
	mux.HandleFunc("GET /v1/buses/{number}/eta/detailed", h.GetDetailedETA)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestGetETASameRoute(t *testing.T) {
	h := newTestETAHandler(newTestStorage())

	rec := serveETA(h, "/v1/buses/42A/eta?route_id=7")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	var got domain.BusETA
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.BusNumber != "42A" {
		t.Errorf("bus_number = %q, want 42A", got.BusNumber)
	}
	if got.CurrentRouteID != 7 {
		t.Errorf("current_route_id = %d, want 7", got.CurrentRouteID)
	}
	if got.EstimatedArrivalTime == "" {
		t.Error("estimated_arrival_time should not be empty")
	}
}

func TestGetETAUnknownBus(t *testing.T) {
	h := newTestETAHandler(newTestStorage())

	rec := serveETA(h, "/v1/buses/999/eta?route_id=7")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetETAMissingRouteID(t *testing.T) {
	h := newTestETAHandler(newTestStorage())

	rec := serveETA(h, "/v1/buses/42A/eta")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetETANoLocationData(t *testing.T) {
	storage := newTestStorage()
	storage.fixes = nil
	h := newTestETAHandler(storage)

	rec := serveETA(h, "/v1/buses/42A/eta?route_id=7")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400, body: %s", rec.Code, rec.Body.String())
	}
}

func TestGetDetailedETASameRoute(t *testing.T) {
	h := newTestETAHandler(newTestStorage())

	rec := serveETA(h, "/v1/buses/42A/eta/detailed?route_id=7")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	var got domain.DetailedETA
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.RouteName != "City Center Line" {
		t.Errorf("route_name = %q, want City Center Line", got.RouteName)
	}
	if got.RouteDifference != 0 {
		t.Errorf("route_difference = %d, want 0", got.RouteDifference)
	}
	if got.TotalStops != 3 {
		t.Errorf("total_stops_on_route = %d, want 3", got.TotalStops)
	}
	if got.ETAMinutes < 1 {
		t.Errorf("eta_minutes = %d, want >= 1", got.ETAMinutes)
	}
}

func TestGetDetailedETACrossRoute(t *testing.T) {
	h := newTestETAHandler(newTestStorage())

	rec := serveETA(h, "/v1/buses/42A/eta/detailed?route_id=9")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	var got domain.DetailedETA
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.RouteDifference != 2 {
		t.Errorf("route_difference = %d, want 2", got.RouteDifference)
	}
	// diff*90 + min(diff*30, 180) = 180 + 60
	if got.ETAMinutes != 240 {
		t.Errorf("eta_minutes = %d, want 240", got.ETAMinutes)
	}
	if got.Note == "" {
		t.Error("cross-route response should carry a note")
	}
}

func TestGetDetailedETABadStopOrder(t *testing.T) {
	h := newTestETAHandler(newTestStorage())

	rec := serveETA(h, "/v1/buses/42A/eta/detailed?route_id=7&stop_order=abc")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

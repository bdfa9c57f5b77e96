package eta

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"bustrack/internal/cache"
	"bustrack/internal/domain"
	"bustrack/internal/geo"
	"bustrack/internal/metrics"
)

type fakeStorage struct {
	bus        domain.Bus
	busErr     error
	assignment domain.RouteAssignment
	assignErr  error
	route      domain.Route
	routeErr   error
	stops      []domain.Stop
	stopsErr   error
	fixes      []domain.LocationFix
	fixesErr   error

	busLookups int
}

func (f *fakeStorage) BusByNumber(ctx context.Context, number string) (domain.Bus, error) {
	f.busLookups++
	return f.bus, f.busErr
}

func (f *fakeStorage) CurrentAssignment(ctx context.Context, busID int64) (domain.RouteAssignment, error) {
	return f.assignment, f.assignErr
}

func (f *fakeStorage) RouteByID(ctx context.Context, routeID int64) (domain.Route, error) {
	return f.route, f.routeErr
}

func (f *fakeStorage) StopsForRoute(ctx context.Context, routeID int64) ([]domain.Stop, error) {
	return f.stops, f.stopsErr
}

func (f *fakeStorage) RecentLocations(ctx context.Context, busID int64, limit int) ([]domain.LocationFix, error) {
	return f.fixes, f.fixesErr
}

func testParams() Params {
	return Params{
		Speed:                  SpeedParams{DefaultKmh: 20.0, MinKmh: 5.0, MaxKmh: 80.0},
		SampleSize:             10,
		BaseTimePerRoute:       90,
		MaxAdditionalTime:      180,
		StoppedFallbackMinutes: 60,
	}
}

func newTestService(storage Storage, params Params) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(storage, cache.New(15*time.Second, logger), metrics.NewCollector(), params, logger)
}

func sameRouteStorage() *fakeStorage {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &fakeStorage{
		bus:        domain.Bus{ID: 1, Number: "42A", IsActive: true},
		assignment: domain.RouteAssignment{BusID: 1, RouteID: 7, IsCurrent: true},
		route:      domain.Route{ID: 7, Name: "City Center Line"},
		stops:      stopList(),
		fixes: []domain.LocationFix{
			fix(52.208, 21.0, base.Add(2*time.Minute)),
			fix(52.204, 21.0, base.Add(time.Minute)),
			fix(52.200, 21.0, base),
		},
	}
}

func TestETASameRoute(t *testing.T) {
	storage := sameRouteStorage()
	svc := newTestService(storage, testParams())

	got, err := svc.ETA(context.Background(), "42A", 7)
	if err != nil {
		t.Fatalf("ETA: %v", err)
	}
	if got.BusNumber != "42A" || got.CurrentRouteID != 7 {
		t.Errorf("unexpected payload: %+v", got)
	}

	// Reproduce the projection: speed over the fixes, distance from
	// latest fix to the stop after the nearest one.
	speed := AverageSpeed(storage.fixes, testParams().Speed)
	current := storage.fixes[0]
	target := storage.stops[NextStopIndex(storage.stops, current.Latitude, current.Longitude)]
	dist := geo.Distance(current.Latitude, current.Longitude, target.Latitude, target.Longitude)
	wantMinutes := int(math.Round(dist / speed * 60))
	if wantMinutes < 1 {
		wantMinutes = 1
	}

	if got.EstimatedArrivalTime != FormatETA(wantMinutes) {
		t.Errorf("EstimatedArrivalTime = %q, want %q", got.EstimatedArrivalTime, FormatETA(wantMinutes))
	}
	if speed < 5.0 || speed > 80.0 {
		t.Errorf("speed %v escaped clamp bounds", speed)
	}
}

func TestETAStoppedFallback(t *testing.T) {
	// With a zero default speed and duplicate timestamps the estimator
	// yields 0 km/h, which must trigger the fixed 60 minute fallback.
	storage := sameRouteStorage()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	storage.fixes = []domain.LocationFix{
		fix(52.200, 21.0, at),
		fix(52.200, 21.0, at),
	}

	params := testParams()
	params.Speed = SpeedParams{DefaultKmh: 0, MinKmh: 0, MaxKmh: 80.0}
	svc := newTestService(storage, params)

	got, err := svc.DetailedETA(context.Background(), "42A", 7, nil)
	if err != nil {
		t.Fatalf("DetailedETA: %v", err)
	}
	if got.ETAMinutes != 60 {
		t.Errorf("ETAMinutes = %d, want 60", got.ETAMinutes)
	}
}

func TestETACrossRoute(t *testing.T) {
	tests := []struct {
		requestedRoute int64
		wantMinutes    int
	}{
		{8, 120},   // difference 1: 90 + 30
		{10, 360},  // difference 3: 270 + 90
		{17, 1080}, // difference 10: 900 + capped 180
	}

	for _, tt := range tests {
		storage := sameRouteStorage()
		svc := newTestService(storage, testParams())

		got, err := svc.DetailedETA(context.Background(), "42A", tt.requestedRoute, nil)
		if err != nil {
			t.Fatalf("DetailedETA(route %d): %v", tt.requestedRoute, err)
		}
		if got.ETAMinutes != tt.wantMinutes {
			t.Errorf("route %d: ETAMinutes = %d, want %d", tt.requestedRoute, got.ETAMinutes, tt.wantMinutes)
		}
		if got.Note == "" {
			t.Errorf("route %d: cross-route note missing", tt.requestedRoute)
		}
		if got.EstimatedArrivalTime != FormatETA(tt.wantMinutes) {
			t.Errorf("route %d: formatted time mismatch", tt.requestedRoute)
		}
	}
}

func TestETAErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeStorage)
		want  error
	}{
		{"unknown bus", func(f *fakeStorage) { f.busErr = domain.ErrBusNotFound }, domain.ErrBusNotFound},
		{"no assignment", func(f *fakeStorage) { f.assignErr = domain.ErrNoRouteAssigned }, domain.ErrNoRouteAssigned},
		{"missing route", func(f *fakeStorage) { f.routeErr = domain.ErrRouteNotFound }, domain.ErrRouteNotFound},
		{"empty route", func(f *fakeStorage) { f.stopsErr = domain.ErrEmptyRoute }, domain.ErrEmptyRoute},
		{"no locations", func(f *fakeStorage) { f.fixesErr = domain.ErrNoLocationData }, domain.ErrNoLocationData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := sameRouteStorage()
			tt.setup(storage)
			svc := newTestService(storage, testParams())

			_, err := svc.ETA(context.Background(), "42A", 7)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestETAServedFromCache(t *testing.T) {
	storage := sameRouteStorage()
	svc := newTestService(storage, testParams())
	ctx := context.Background()

	first, err := svc.ETA(ctx, "42A", 7)
	if err != nil {
		t.Fatalf("first ETA: %v", err)
	}
	second, err := svc.ETA(ctx, "42A", 7)
	if err != nil {
		t.Fatalf("second ETA: %v", err)
	}

	if storage.busLookups != 1 {
		t.Errorf("storage hit %d times, want 1 (second call cached)", storage.busLookups)
	}
	if first != second {
		t.Errorf("cached payload differs: %+v vs %+v", first, second)
	}

	svc.InvalidateBus("42A")
	if _, err := svc.ETA(ctx, "42A", 7); err != nil {
		t.Fatalf("post-invalidation ETA: %v", err)
	}
	if storage.busLookups != 2 {
		t.Errorf("storage hit %d times after invalidation, want 2", storage.busLookups)
	}
}

func TestDetailedETAExplicitStop(t *testing.T) {
	storage := sameRouteStorage()
	svc := newTestService(storage, testParams())

	order := 4
	got, err := svc.DetailedETA(context.Background(), "42A", 7, &order)
	if err != nil {
		t.Fatalf("DetailedETA: %v", err)
	}

	if got.TargetStopName != "Terminus" || got.TargetStopOrder != 4 {
		t.Errorf("target stop = %q (order %d), want Terminus (order 4)", got.TargetStopName, got.TargetStopOrder)
	}
	if got.TotalStops != 4 {
		t.Errorf("TotalStops = %d, want 4", got.TotalStops)
	}
	if got.RouteName != "City Center Line" {
		t.Errorf("RouteName = %q", got.RouteName)
	}
	if got.DistanceKm <= 0 {
		t.Errorf("DistanceKm = %v, want > 0", got.DistanceKm)
	}
	if got.AverageSpeedKmh < 5.0 || got.AverageSpeedKmh > 80.0 {
		t.Errorf("AverageSpeedKmh = %v escaped clamp bounds", got.AverageSpeedKmh)
	}
}

func TestDetailedETAUnknownStopOrderFallsBack(t *testing.T) {
	storage := sameRouteStorage()
	svc := newTestService(storage, testParams())

	order := 99
	got, err := svc.DetailedETA(context.Background(), "42A", 7, &order)
	if err != nil {
		t.Fatalf("DetailedETA: %v", err)
	}

	current := storage.fixes[0]
	wantIdx := NextStopIndex(storage.stops, current.Latitude, current.Longitude)
	if got.TargetStopOrder != storage.stops[wantIdx].Order {
		t.Errorf("TargetStopOrder = %d, want fallback %d", got.TargetStopOrder, storage.stops[wantIdx].Order)
	}
}

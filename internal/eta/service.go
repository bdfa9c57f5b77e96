package eta

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"bustrack/internal/cache"
	"bustrack/internal/domain"
	"bustrack/internal/geo"
	"bustrack/internal/metrics"
)

// AdditionalTimePerRoute is the per-route surcharge in the cross-route
// heuristic, in minutes.
const AdditionalTimePerRoute = 30

// Storage is the read-only query contract the ETA engine needs from
// the persistence layer.
type Storage interface {
	BusByNumber(ctx context.Context, number string) (domain.Bus, error)
	CurrentAssignment(ctx context.Context, busID int64) (domain.RouteAssignment, error)
	RouteByID(ctx context.Context, routeID int64) (domain.Route, error)
	StopsForRoute(ctx context.Context, routeID int64) ([]domain.Stop, error)
	RecentLocations(ctx context.Context, busID int64, limit int) ([]domain.LocationFix, error)
}

// Params collects the tunables of the ETA calculation.
type Params struct {
	Speed SpeedParams

	// SampleSize is how many recent fixes feed the speed estimate.
	SampleSize int

	// Cross-route heuristic: minutes per unit of route-ID difference,
	// and the cap on the additional surcharge.
	BaseTimePerRoute  int
	MaxAdditionalTime int

	// StoppedFallbackMinutes is returned when the average speed is not
	// positive and no travel time can be projected.
	StoppedFallbackMinutes int
}

// Service computes arrival estimates, shielded by a TTL result cache.
type Service struct {
	storage Storage
	cache   *cache.Cache
	metrics *metrics.Collector
	params  Params
	logger  *slog.Logger
}

func NewService(storage Storage, c *cache.Cache, m *metrics.Collector, params Params, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		cache:   c,
		metrics: m,
		params:  params,
		logger:  logger.With("component", "eta"),
	}
}

// ETA estimates when the bus will arrive on the requested route,
// serving from cache within the TTL window.
func (s *Service) ETA(ctx context.Context, busNumber string, routeID int64) (domain.BusETA, error) {
	key := cache.KeyETA(busNumber, routeID)
	if v, ok := s.cache.Get(key); ok {
		s.metrics.CacheHits.Inc()
		return v.(domain.BusETA), nil
	}
	s.metrics.CacheMisses.Inc()

	bus, err := s.storage.BusByNumber(ctx, busNumber)
	if err != nil {
		return domain.BusETA{}, s.fail(err)
	}

	assignment, err := s.storage.CurrentAssignment(ctx, bus.ID)
	if err != nil {
		return domain.BusETA{}, s.fail(err)
	}

	var etaMinutes int
	diff := routeDifference(routeID, assignment.RouteID)
	if diff == 0 {
		etaMinutes, _, err = s.sameRouteETA(ctx, bus, assignment.RouteID, nil)
		if err != nil {
			return domain.BusETA{}, s.fail(err)
		}
		s.metrics.ETAComputed.WithLabelValues("same_route").Inc()
	} else {
		etaMinutes = s.crossRouteETA(diff)
		s.metrics.ETAComputed.WithLabelValues("cross_route").Inc()
	}

	result := domain.BusETA{
		BusNumber:            bus.Number,
		EstimatedArrivalTime: FormatETA(etaMinutes),
		CurrentRouteID:       assignment.RouteID,
	}
	s.cache.Put(key, result)

	s.logger.Debug("eta computed",
		"bus", busNumber,
		"requested_route", routeID,
		"current_route", assignment.RouteID,
		"eta_minutes", etaMinutes,
	)
	return result, nil
}

// DetailedETA returns the full calculation breakdown, cached under a
// key distinct from the plain ETA payload. stopOrder optionally pins
// the target stop; nil means "the stop after the nearest one".
func (s *Service) DetailedETA(ctx context.Context, busNumber string, routeID int64, stopOrder *int) (domain.DetailedETA, error) {
	key := cache.KeyDetailedETA(busNumber, routeID, stopOrder)
	if v, ok := s.cache.Get(key); ok {
		s.metrics.CacheHits.Inc()
		return v.(domain.DetailedETA), nil
	}
	s.metrics.CacheMisses.Inc()

	bus, err := s.storage.BusByNumber(ctx, busNumber)
	if err != nil {
		return domain.DetailedETA{}, s.fail(err)
	}

	assignment, err := s.storage.CurrentAssignment(ctx, bus.ID)
	if err != nil {
		return domain.DetailedETA{}, s.fail(err)
	}

	result := domain.DetailedETA{
		BusNumber:        bus.Number,
		BusID:            bus.ID,
		IsActive:         bus.IsActive,
		CurrentRouteID:   assignment.RouteID,
		RequestedRouteID: routeID,
		RouteDifference:  routeDifference(routeID, assignment.RouteID),
	}

	if result.RouteDifference == 0 {
		etaMinutes, detail, err := s.sameRouteETA(ctx, bus, assignment.RouteID, stopOrder)
		if err != nil {
			return domain.DetailedETA{}, s.fail(err)
		}
		result.RouteName = detail.routeName
		result.CurrentLatitude = detail.currentLat
		result.CurrentLongitude = detail.currentLon
		result.TargetStopName = detail.targetStop.Name
		result.TargetStopOrder = detail.targetStop.Order
		result.DistanceKm = math.Round(detail.distanceKm*100) / 100
		result.AverageSpeedKmh = math.Round(detail.speedKmh*10) / 10
		result.TotalStops = detail.totalStops
		result.ETAMinutes = etaMinutes
		s.metrics.ETAComputed.WithLabelValues("same_route").Inc()
	} else {
		result.ETAMinutes = s.crossRouteETA(result.RouteDifference)
		result.Note = "Bus is on a different route"
		s.metrics.ETAComputed.WithLabelValues("cross_route").Inc()
	}
	result.EstimatedArrivalTime = FormatETA(result.ETAMinutes)

	s.cache.Put(key, result)
	return result, nil
}

// InvalidateBus drops every cached estimate for one bus, called after
// a new location fix makes them stale.
func (s *Service) InvalidateBus(busNumber string) {
	removed := s.cache.ClearPrefix(cache.BusPrefix(cache.KindETA, busNumber))
	removed += s.cache.ClearPrefix(cache.BusPrefix(cache.KindDetailed, busNumber))
	if removed > 0 {
		s.logger.Debug("invalidated cached estimates", "bus", busNumber, "removed", removed)
	}
}

func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

type sameRouteDetail struct {
	routeName  string
	currentLat float64
	currentLon float64
	targetStop domain.Stop
	distanceKm float64
	speedKmh   float64
	totalStops int
}

// sameRouteETA runs the full same-route pipeline: recent fixes → speed
// estimate, current position → target stop, distance → minutes.
func (s *Service) sameRouteETA(ctx context.Context, bus domain.Bus, routeID int64, stopOrder *int) (int, sameRouteDetail, error) {
	route, err := s.storage.RouteByID(ctx, routeID)
	if err != nil {
		return 0, sameRouteDetail{}, err
	}

	stops, err := s.storage.StopsForRoute(ctx, routeID)
	if err != nil {
		return 0, sameRouteDetail{}, err
	}

	fixes, err := s.storage.RecentLocations(ctx, bus.ID, s.params.SampleSize)
	if err != nil {
		return 0, sameRouteDetail{}, err
	}

	current := fixes[0]
	speedKmh := AverageSpeed(fixes, s.params.Speed)

	targetIdx := -1
	if stopOrder != nil {
		if idx, ok := StopIndexByOrder(stops, *stopOrder); ok {
			targetIdx = idx
		}
	}
	if targetIdx < 0 {
		targetIdx = NextStopIndex(stops, current.Latitude, current.Longitude)
	}
	target := stops[targetIdx]

	distanceKm := geo.Distance(current.Latitude, current.Longitude, target.Latitude, target.Longitude)

	etaMinutes := s.params.StoppedFallbackMinutes
	if speedKmh > 0 {
		etaMinutes = int(math.Round(distanceKm / speedKmh * 60))
		if etaMinutes < 1 {
			etaMinutes = 1
		}
	}

	detail := sameRouteDetail{
		routeName:  route.Name,
		currentLat: current.Latitude,
		currentLon: current.Longitude,
		targetStop: target,
		distanceKm: distanceKm,
		speedKmh:   speedKmh,
		totalStops: len(stops),
	}
	return etaMinutes, detail, nil
}

// crossRouteETA is a deliberate order-of-magnitude placeholder: route
// IDs are arbitrary keys, so their numeric difference says nothing
// about actual transfer time. Kept until a route-adjacency table
// exists.
func (s *Service) crossRouteETA(diff int64) int {
	additional := int(diff) * AdditionalTimePerRoute
	if additional > s.params.MaxAdditionalTime {
		additional = s.params.MaxAdditionalTime
	}
	return int(diff)*s.params.BaseTimePerRoute + additional
}

func (s *Service) fail(err error) error {
	switch {
	case errors.Is(err, domain.ErrBusNotFound):
		s.metrics.ETAFailed.WithLabelValues("bus_not_found").Inc()
	case errors.Is(err, domain.ErrNoRouteAssigned):
		s.metrics.ETAFailed.WithLabelValues("no_route_assigned").Inc()
	case errors.Is(err, domain.ErrRouteNotFound):
		s.metrics.ETAFailed.WithLabelValues("route_not_found").Inc()
	case errors.Is(err, domain.ErrEmptyRoute):
		s.metrics.ETAFailed.WithLabelValues("empty_route").Inc()
	case errors.Is(err, domain.ErrNoLocationData):
		s.metrics.ETAFailed.WithLabelValues("no_location_data").Inc()
	default:
		s.metrics.ETAFailed.WithLabelValues("internal").Inc()
		return fmt.Errorf("eta computation: %w", err)
	}
	return err
}

func routeDifference(requested, current int64) int64 {
	diff := requested - current
	if diff < 0 {
		diff = -diff
	}
	return diff
}

package store

import (
	"context"
	"log/slog"
	"time"

	"bustrack/internal/cache"
	"bustrack/internal/domain"
)

// CachedStorage layers Redis over the slow-changing storage reads
// (route records and stop lists). Location reads always hit the
// database; stale positions would defeat the ETA math. Redis failures
// degrade to plain storage reads.
type CachedStorage struct {
	*Postgres

	redis  *cache.RedisCache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedStorage(pg *Postgres, redis *cache.RedisCache, ttl time.Duration, logger *slog.Logger) *CachedStorage {
	return &CachedStorage{
		Postgres: pg,
		redis:    redis,
		ttl:      ttl,
		logger:   logger.With("component", "cached_store"),
	}
}

func (c *CachedStorage) RouteByID(ctx context.Context, routeID int64) (domain.Route, error) {
	var route domain.Route
	if hit, err := c.redis.GetJSON(ctx, cache.KeyRoute(routeID), &route); err == nil && hit {
		return route, nil
	}

	route, err := c.Postgres.RouteByID(ctx, routeID)
	if err != nil {
		return domain.Route{}, err
	}

	if err := c.redis.SetJSON(ctx, cache.KeyRoute(routeID), route, c.ttl); err != nil {
		c.logger.Debug("route cache write failed", "route_id", routeID, "error", err)
	}
	return route, nil
}

func (c *CachedStorage) StopsForRoute(ctx context.Context, routeID int64) ([]domain.Stop, error) {
	var stops []domain.Stop
	if hit, err := c.redis.GetJSON(ctx, cache.KeyRouteStops(routeID), &stops); err == nil && hit && len(stops) > 0 {
		return stops, nil
	}

	stops, err := c.Postgres.StopsForRoute(ctx, routeID)
	if err != nil {
		return nil, err
	}

	if err := c.redis.SetJSON(ctx, cache.KeyRouteStops(routeID), stops, c.ttl); err != nil {
		c.logger.Debug("stops cache write failed", "route_id", routeID, "error", err)
	}
	return stops, nil
}

// WarmStops preloads every route's stop list into Redis at startup so
// the first wave of ETA requests skips the database.
func (c *CachedStorage) WarmStops(ctx context.Context) error {
	start := time.Now()

	routes, err := c.Postgres.ListRoutes(ctx)
	if err != nil {
		return err
	}

	warmed := 0
	for _, route := range routes {
		stops, err := c.Postgres.StopsForRoute(ctx, route.ID)
		if err != nil {
			c.logger.Debug("skipping route during warm", "route_id", route.ID, "error", err)
			continue
		}
		if err := c.redis.SetJSON(ctx, cache.KeyRouteStops(route.ID), stops, c.ttl); err != nil {
			continue
		}
		if err := c.redis.SetJSON(ctx, cache.KeyRoute(route.ID), route, c.ttl); err != nil {
			continue
		}
		warmed++
	}

	c.logger.Info("warmed stop cache",
		"routes_warmed", warmed,
		"total_routes", len(routes),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

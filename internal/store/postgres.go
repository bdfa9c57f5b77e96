package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"bustrack/internal/domain"
)

// Postgres implements the storage collaborator over the transport
// schema. All methods are read-only except InsertLocation; none of
// them trigger follow-up queries as a side effect of reading a field.
type Postgres struct {
	db     *sql.DB
	logger *slog.Logger
}

func Open(dsn string, maxOpen, maxIdle int, logger *slog.Logger) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Postgres{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.db.PingContext(ctx)
}

func (p *Postgres) BusByNumber(ctx context.Context, number string) (domain.Bus, error) {
	const q = `SELECT bus_id, bus_number, is_active, created_at
	           FROM transport.buses WHERE bus_number = $1`

	var b domain.Bus
	err := p.db.QueryRowContext(ctx, q, number).Scan(&b.ID, &b.Number, &b.IsActive, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Bus{}, domain.ErrBusNotFound
	}
	if err != nil {
		return domain.Bus{}, fmt.Errorf("query bus by number: %w", err)
	}
	return b, nil
}

func (p *Postgres) BusByID(ctx context.Context, busID int64) (domain.Bus, error) {
	const q = `SELECT bus_id, bus_number, is_active, created_at
	           FROM transport.buses WHERE bus_id = $1`

	var b domain.Bus
	err := p.db.QueryRowContext(ctx, q, busID).Scan(&b.ID, &b.Number, &b.IsActive, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Bus{}, domain.ErrBusNotFound
	}
	if err != nil {
		return domain.Bus{}, fmt.Errorf("query bus by id: %w", err)
	}
	return b, nil
}

func (p *Postgres) CurrentAssignment(ctx context.Context, busID int64) (domain.RouteAssignment, error) {
	const q = `SELECT bus_id, route_id, assigned_at, is_current
	           FROM transport.bus_routes WHERE bus_id = $1 AND is_current`

	var a domain.RouteAssignment
	err := p.db.QueryRowContext(ctx, q, busID).Scan(&a.BusID, &a.RouteID, &a.AssignedAt, &a.IsCurrent)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RouteAssignment{}, domain.ErrNoRouteAssigned
	}
	if err != nil {
		return domain.RouteAssignment{}, fmt.Errorf("query current assignment: %w", err)
	}
	return a, nil
}

// RecentAssignments returns a bus's assignment history, newest first.
func (p *Postgres) RecentAssignments(ctx context.Context, busID int64, limit int) ([]domain.RouteAssignment, error) {
	const q = `SELECT bus_id, route_id, assigned_at, is_current
	           FROM transport.bus_routes WHERE bus_id = $1
	           ORDER BY assigned_at DESC LIMIT $2`

	rows, err := p.db.QueryContext(ctx, q, busID, limit)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []domain.RouteAssignment
	for rows.Next() {
		var a domain.RouteAssignment
		if err := rows.Scan(&a.BusID, &a.RouteID, &a.AssignedAt, &a.IsCurrent); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func (p *Postgres) RouteByID(ctx context.Context, routeID int64) (domain.Route, error) {
	const q = `SELECT route_id, route_name, COALESCE(route_number, '')
	           FROM transport.routes WHERE route_id = $1`

	var r domain.Route
	err := p.db.QueryRowContext(ctx, q, routeID).Scan(&r.ID, &r.Name, &r.Number)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Route{}, domain.ErrRouteNotFound
	}
	if err != nil {
		return domain.Route{}, fmt.Errorf("query route: %w", err)
	}
	return r, nil
}

func (p *Postgres) ListRoutes(ctx context.Context) ([]domain.Route, error) {
	const q = `SELECT route_id, route_name, COALESCE(route_number, '')
	           FROM transport.routes ORDER BY route_id`

	rows, err := p.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()

	var routes []domain.Route
	for rows.Next() {
		var r domain.Route
		if err := rows.Scan(&r.ID, &r.Name, &r.Number); err != nil {
			return nil, err
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

// StopsForRoute returns the route's stops ordered by stop_order.
// A route with zero stops is a data error for every caller here, so it
// surfaces as ErrEmptyRoute at this boundary.
func (p *Postgres) StopsForRoute(ctx context.Context, routeID int64) ([]domain.Stop, error) {
	const q = `SELECT stop_id, route_id, stop_name, latitude, longitude, stop_order
	           FROM transport.stops WHERE route_id = $1 ORDER BY stop_order`

	rows, err := p.db.QueryContext(ctx, q, routeID)
	if err != nil {
		return nil, fmt.Errorf("query stops: %w", err)
	}
	defer rows.Close()

	var stops []domain.Stop
	for rows.Next() {
		var s domain.Stop
		if err := rows.Scan(&s.ID, &s.RouteID, &s.Name, &s.Latitude, &s.Longitude, &s.Order); err != nil {
			return nil, err
		}
		stops = append(stops, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(stops) == 0 {
		return nil, domain.ErrEmptyRoute
	}
	return stops, nil
}

// RecentLocations returns up to limit fixes, most recent first.
// An empty history is ErrNoLocationData: the ETA engine cannot run on
// a bus that has never reported a position.
func (p *Postgres) RecentLocations(ctx context.Context, busID int64, limit int) ([]domain.LocationFix, error) {
	fixes, err := p.LocationHistory(ctx, busID, limit)
	if err != nil {
		return nil, err
	}
	if len(fixes) == 0 {
		return nil, domain.ErrNoLocationData
	}
	return fixes, nil
}

// LocationHistory is like RecentLocations but permits an empty result,
// for the history endpoint.
func (p *Postgres) LocationHistory(ctx context.Context, busID int64, limit int) ([]domain.LocationFix, error) {
	const q = `SELECT bus_id, latitude, longitude, recorded_at
	           FROM transport.bus_locations WHERE bus_id = $1
	           ORDER BY recorded_at DESC LIMIT $2`

	rows, err := p.db.QueryContext(ctx, q, busID, limit)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	var fixes []domain.LocationFix
	for rows.Next() {
		var f domain.LocationFix
		if err := rows.Scan(&f.BusID, &f.Latitude, &f.Longitude, &f.RecordedAt); err != nil {
			return nil, err
		}
		fixes = append(fixes, f)
	}
	return fixes, rows.Err()
}

func (p *Postgres) LatestLocation(ctx context.Context, busID int64) (domain.LocationFix, bool, error) {
	fixes, err := p.LocationHistory(ctx, busID, 1)
	if err != nil {
		return domain.LocationFix{}, false, err
	}
	if len(fixes) == 0 {
		return domain.LocationFix{}, false, nil
	}
	return fixes[0], true, nil
}

func (p *Postgres) InsertLocation(ctx context.Context, f domain.LocationFix) error {
	const q = `INSERT INTO transport.bus_locations (bus_id, latitude, longitude, recorded_at)
	           VALUES ($1, $2, $3, $4)`

	if _, err := p.db.ExecContext(ctx, q, f.BusID, f.Latitude, f.Longitude, f.RecordedAt); err != nil {
		return fmt.Errorf("insert location: %w", err)
	}
	return nil
}

// ActivePositions joins every active bus with its latest fix and the
// name of its current route, for the live overview endpoint and the
// tracker poll.
func (p *Postgres) ActivePositions(ctx context.Context) ([]*domain.BusPosition, error) {
	const q = `SELECT b.bus_id, b.bus_number, COALESCE(r.route_name, ''),
	                  l.latitude, l.longitude, l.recorded_at
	           FROM transport.buses b
	           JOIN LATERAL (
	               SELECT latitude, longitude, recorded_at
	               FROM transport.bus_locations
	               WHERE bus_id = b.bus_id
	               ORDER BY recorded_at DESC LIMIT 1
	           ) l ON true
	           LEFT JOIN transport.bus_routes br ON br.bus_id = b.bus_id AND br.is_current
	           LEFT JOIN transport.routes r ON r.route_id = br.route_id
	           WHERE b.is_active`

	rows, err := p.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query active positions: %w", err)
	}
	defer rows.Close()

	var positions []*domain.BusPosition
	for rows.Next() {
		pos := &domain.BusPosition{}
		if err := rows.Scan(&pos.BusID, &pos.BusNumber, &pos.RouteName,
			&pos.Latitude, &pos.Longitude, &pos.RecordedAt); err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

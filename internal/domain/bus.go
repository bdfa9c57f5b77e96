package domain

import "time"

// Bus represents a vehicle in the tracked fleet
type Bus struct {
	ID        int64     `json:"bus_id"`
	Number    string    `json:"bus_number"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Route represents a bus route served by one or more buses
type Route struct {
	ID     int64  `json:"route_id"`
	Name   string `json:"route_name"`
	Number string `json:"route_number,omitempty"`
}

// Stop is a single stop on a route. Order defines its sequential
// position along the route, unique within that route.
type Stop struct {
	ID        int64   `json:"stop_id"`
	RouteID   int64   `json:"route_id"`
	Name      string  `json:"stop_name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Order     int     `json:"stop_order"`
}

// LocationFix is a single timestamped GPS reading for a bus.
// Immutable once recorded.
type LocationFix struct {
	BusID      int64     `json:"bus_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recorded_at"`
}

// RouteAssignment links a bus to a route. At most one assignment per
// bus has IsCurrent set, enforced by the storage layer.
type RouteAssignment struct {
	BusID      int64     `json:"bus_id"`
	RouteID    int64     `json:"route_id"`
	AssignedAt time.Time `json:"assigned_at"`
	IsCurrent  bool      `json:"is_current"`
}

// BusPosition is the latest known position of a bus, as held in the
// live snapshot store and fanned out to websocket subscribers.
type BusPosition struct {
	BusID      int64     `json:"bus_id"`
	BusNumber  string    `json:"bus_number"`
	RouteName  string    `json:"route_name,omitempty"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recorded_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DeltaType indicates whether a position was updated or removed
type DeltaType string

const (
	DeltaUpdate DeltaType = "update"
	DeltaRemove DeltaType = "remove"
)

// PositionDelta represents a change in a bus's live position
type PositionDelta struct {
	Type      DeltaType    `json:"type"`
	Position  *BusPosition `json:"position,omitempty"`
	BusNumber string       `json:"bus_number"`
}

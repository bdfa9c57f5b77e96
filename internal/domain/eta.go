package domain

// BusETA is the compact ETA payload returned by the plain ETA endpoint.
type BusETA struct {
	BusNumber            string `json:"bus_number"`
	EstimatedArrivalTime string `json:"estimated_arrival_time"`
	CurrentRouteID       int64  `json:"current_route_id"`
}

// DetailedETA carries the full calculation breakdown. The route fields
// are only populated in same-route mode; Note is only set in
// cross-route mode.
type DetailedETA struct {
	BusNumber        string `json:"bus_number"`
	BusID            int64  `json:"bus_id"`
	IsActive         bool   `json:"is_active"`
	CurrentRouteID   int64  `json:"current_route_id"`
	RequestedRouteID int64  `json:"requested_route_id"`
	RouteDifference  int64  `json:"route_difference"`

	RouteName        string  `json:"route_name,omitempty"`
	CurrentLatitude  float64 `json:"current_latitude,omitempty"`
	CurrentLongitude float64 `json:"current_longitude,omitempty"`
	TargetStopName   string  `json:"target_stop_name,omitempty"`
	TargetStopOrder  int     `json:"target_stop_order,omitempty"`
	DistanceKm       float64 `json:"distance_km,omitempty"`
	AverageSpeedKmh  float64 `json:"average_speed_kmh,omitempty"`
	TotalStops       int     `json:"total_stops_on_route,omitempty"`

	ETAMinutes           int    `json:"eta_minutes"`
	EstimatedArrivalTime string `json:"estimated_arrival_time"`
	Note                 string `json:"note,omitempty"`
}

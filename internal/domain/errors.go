package domain

import "errors"

// Data-availability errors surfaced by the storage layer and propagated
// to the caller untouched. None of these are retried internally.
var (
	ErrBusNotFound     = errors.New("bus not found")
	ErrNoRouteAssigned = errors.New("bus not assigned to any route")
	ErrRouteNotFound   = errors.New("route not found")
	ErrEmptyRoute      = errors.New("route has no stops")
	ErrNoLocationData  = errors.New("no location data for bus")
)

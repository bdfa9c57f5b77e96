package eta

import (
	"bustrack/internal/domain"
	"bustrack/internal/geo"
)

// NearestStopIndex returns the index of the stop closest to the given
// position by straight-line distance. Ties go to the lowest index, so
// the result is deterministic. Road topology is not modeled; this is
// an approximation of "the stop the bus is currently at or nearest to".
func NearestStopIndex(stops []domain.Stop, lat, lon float64) int {
	minDist := -1.0
	nearest := 0

	for i, stop := range stops {
		d := geo.Distance(lat, lon, stop.Latitude, stop.Longitude)
		if minDist < 0 || d < minDist {
			minDist = d
			nearest = i
		}
	}

	return nearest
}

// NextStopIndex treats the stop after the nearest one as "next",
// clamped to the final stop when the bus is already at the end of the
// route.
func NextStopIndex(stops []domain.Stop, lat, lon float64) int {
	next := NearestStopIndex(stops, lat, lon) + 1
	if next > len(stops)-1 {
		next = len(stops) - 1
	}
	return next
}

// StopIndexByOrder resolves a stop_order value to a slice index.
func StopIndexByOrder(stops []domain.Stop, order int) (int, bool) {
	for i, stop := range stops {
		if stop.Order == order {
			return i, true
		}
	}
	return 0, false
}

package eta

import (
	"bustrack/internal/domain"
	"bustrack/internal/geo"
)

// SpeedParams bounds the estimator. Every pairwise speed is clamped to
// [MinKmh, MaxKmh]; DefaultKmh stands in when motion cannot be measured.
type SpeedParams struct {
	DefaultKmh float64
	MinKmh     float64
	MaxKmh     float64
}

// PairSpeed computes the speed in km/h between two chronologically
// ordered fixes, clamped to the configured bounds. A non-positive time
// delta (duplicate or out-of-order timestamps) yields DefaultKmh.
func PairSpeed(prev, curr domain.LocationFix, p SpeedParams) float64 {
	elapsed := curr.RecordedAt.Sub(prev.RecordedAt).Seconds()
	if elapsed <= 0 {
		return p.DefaultKmh
	}

	distKm := geo.Distance(prev.Latitude, prev.Longitude, curr.Latitude, curr.Longitude)
	speed := distKm / elapsed * 3600

	return max(p.MinKmh, min(p.MaxKmh, speed))
}

// AverageSpeed computes the flat mean of pairwise speeds over a fix
// history ordered most-recent-first, as retrieved from storage. With
// fewer than two fixes there is no motion to measure and DefaultKmh is
// returned.
func AverageSpeed(fixes []domain.LocationFix, p SpeedParams) float64 {
	if len(fixes) < 2 {
		return p.DefaultKmh
	}

	// Walk in chronological order: the last element is the oldest fix.
	sum := 0.0
	n := 0
	for i := len(fixes) - 1; i > 0; i-- {
		sum += PairSpeed(fixes[i], fixes[i-1], p)
		n++
	}

	return sum / float64(n)
}

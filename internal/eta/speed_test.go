package eta

import (
	"testing"
	"time"

	"bustrack/internal/domain"
)

var testSpeedParams = SpeedParams{DefaultKmh: 20.0, MinKmh: 5.0, MaxKmh: 80.0}

func fix(lat, lon float64, at time.Time) domain.LocationFix {
	return domain.LocationFix{BusID: 1, Latitude: lat, Longitude: lon, RecordedAt: at}
}

func TestAverageSpeedInsufficientData(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		fixes []domain.LocationFix
	}{
		{"no fixes", nil},
		{"single fix", []domain.LocationFix{fix(52.23, 21.01, now)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AverageSpeed(tt.fixes, testSpeedParams); got != testSpeedParams.DefaultKmh {
				t.Errorf("AverageSpeed = %v, want %v", got, testSpeedParams.DefaultKmh)
			}
		})
	}
}

func TestPairSpeedClamping(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		prev, curr domain.LocationFix
		want       float64
	}{
		{
			// ~111 km in one minute, far above any plausible bus speed
			name: "clamped to max",
			prev: fix(52.0, 21.0, base),
			curr: fix(53.0, 21.0, base.Add(time.Minute)),
			want: testSpeedParams.MaxKmh,
		},
		{
			// stationary bus
			name: "clamped to min",
			prev: fix(52.0, 21.0, base),
			curr: fix(52.0, 21.0, base.Add(time.Minute)),
			want: testSpeedParams.MinKmh,
		},
		{
			name: "zero elapsed yields default",
			prev: fix(52.0, 21.0, base),
			curr: fix(52.1, 21.0, base),
			want: testSpeedParams.DefaultKmh,
		},
		{
			name: "negative elapsed yields default",
			prev: fix(52.0, 21.0, base),
			curr: fix(52.1, 21.0, base.Add(-time.Minute)),
			want: testSpeedParams.DefaultKmh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PairSpeed(tt.prev, tt.curr, testSpeedParams); got != tt.want {
				t.Errorf("PairSpeed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAverageSpeedWithinBounds(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Most-recent-first, mixing a teleport-fast segment, a stationary
	// segment and a duplicate timestamp. Every pairwise contribution is
	// clamped, so the mean must stay inside the bounds too.
	fixes := []domain.LocationFix{
		fix(55.0, 21.0, base.Add(3*time.Minute)),
		fix(52.1, 21.0, base.Add(2*time.Minute)),
		fix(52.1, 21.0, base.Add(time.Minute)),
		fix(52.1, 21.0, base.Add(time.Minute)),
		fix(52.0, 21.0, base),
	}

	got := AverageSpeed(fixes, testSpeedParams)
	if got < testSpeedParams.MinKmh || got > testSpeedParams.MaxKmh {
		t.Errorf("AverageSpeed = %v, want within [%v, %v]",
			got, testSpeedParams.MinKmh, testSpeedParams.MaxKmh)
	}
}

func TestAverageSpeedSteadyMotion(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Steady northward motion, ~0.445 km per minute = ~26.7 km/h,
	// comfortably inside the clamp bounds.
	fixes := []domain.LocationFix{
		fix(52.008, 21.0, base.Add(2*time.Minute)),
		fix(52.004, 21.0, base.Add(time.Minute)),
		fix(52.000, 21.0, base),
	}

	got := AverageSpeed(fixes, testSpeedParams)
	if got < 25 || got > 28 {
		t.Errorf("AverageSpeed = %v, want roughly 26.7", got)
	}
}

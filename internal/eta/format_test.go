package eta

import "testing"

func TestFormatETA(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{1, "Estimated arrival time: 1 minute"},
		{45, "Estimated arrival time: 45 minutes"},
		{60, "Estimated arrival time: 1 hour"},
		{90, "Estimated arrival time: 1 hour 30 min"},
		{125, "Estimated arrival time: 2 hours 5 min"},
		{1440, "Estimated arrival time: 1 day"},
		{2880, "Estimated arrival time: 2 days"},
		{10080, "Estimated arrival time: 1 week"},
		{20200, "Estimated arrival time: 2 weeks"},
	}

	for _, tt := range tests {
		if got := FormatETA(tt.minutes); got != tt.want {
			t.Errorf("FormatETA(%d) = %q, want %q", tt.minutes, got, tt.want)
		}
	}
}

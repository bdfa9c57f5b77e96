package eta

import "fmt"

const (
	minutesPerHour = 60
	minutesPerDay  = 1440
	minutesPerWeek = 10080
)

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatETA renders minutes as a rider-facing arrival string. Uses
// integer division throughout; granularity above hours drops the
// remainder.
func FormatETA(etaMinutes int) string {
	var unit string
	switch {
	case etaMinutes < minutesPerHour:
		unit = plural(etaMinutes, "minute")
	case etaMinutes < minutesPerDay:
		unit = plural(etaMinutes/minutesPerHour, "hour")
		if rem := etaMinutes % minutesPerHour; rem > 0 {
			unit = fmt.Sprintf("%s %d min", unit, rem)
		}
	case etaMinutes < minutesPerWeek:
		unit = plural(etaMinutes/minutesPerDay, "day")
	default:
		unit = plural(etaMinutes/minutesPerWeek, "week")
	}

	return "Estimated arrival time: " + unit
}

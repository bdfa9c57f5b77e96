package cache

import "fmt"

const (
	KindETA      = "eta"
	KindDetailed = "detailed"
)

func KeyETA(busNumber string, routeID int64) string {
	return fmt.Sprintf("%s:%s:%d", KindETA, busNumber, routeID)
}

func KeyDetailedETA(busNumber string, routeID int64, stopOrder *int) string {
	if stopOrder == nil {
		return fmt.Sprintf("%s:%s:%d:next", KindDetailed, busNumber, routeID)
	}
	return fmt.Sprintf("%s:%s:%d:%d", KindDetailed, busNumber, routeID, *stopOrder)
}

// BusPrefix returns the key prefix covering every entry of the given
// kind for one bus, for targeted invalidation.
func BusPrefix(kind, busNumber string) string {
	return fmt.Sprintf("%s:%s:", kind, busNumber)
}

func KeyRouteStops(routeID int64) string {
	return fmt.Sprintf("stops:%d", routeID)
}

func KeyRoute(routeID int64) string {
	return fmt.Sprintf("route:%d", routeID)
}

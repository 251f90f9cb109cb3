package domain

import "fmt"

// FeedType identifies one of the three upstream GTFS-realtime feeds.
type FeedType string

const (
	VehiclePositions FeedType = "vehicle_positions"
	TripUpdates      FeedType = "trip_updates"
	ServiceAlerts    FeedType = "service_alerts"
)

// AllFeeds lists every feed in a stable order.
var AllFeeds = []FeedType{VehiclePositions, TripUpdates, ServiceAlerts}

func (f FeedType) String() string { return string(f) }

func (f FeedType) Valid() bool {
	switch f {
	case VehiclePositions, TripUpdates, ServiceAlerts:
		return true
	}
	return false
}

func ParseFeedType(s string) (FeedType, error) {
	f := FeedType(s)
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownFeed, s)
	}
	return f, nil
}

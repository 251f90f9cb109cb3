package domain

import (
	"math"
	"slices"
)

// Entity is one identity-keyed record inside a feed snapshot.
// Entities are immutable values; a new version replaces the old one wholesale.
type Entity interface {
	Key() string
	Equal(other Entity) bool
}

// TripRef references a scheduled trip.
type TripRef struct {
	TripID    string `json:"trip_id"`
	RouteID   string `json:"route_id"`
	StartTime string `json:"start_time"`
	StartDate string `json:"start_date"`
}

type VehiclePosition struct {
	VehicleID string `json:"vehicle_id"`
	Label     string `json:"label,omitempty"`
	TripRef
	Latitude        float64 `json:"lat"`
	Longitude       float64 `json:"lon"`
	Bearing         float64 `json:"bearing"`
	Speed           float64 `json:"speed"`
	Timestamp       int64   `json:"timestamp"`
	OccupancyStatus string  `json:"occupancy_status,omitempty"`
}

func (v VehiclePosition) Key() string { return v.VehicleID }

// Equal compares field by field; NaN coordinates compare equal to NaN.
func (v VehiclePosition) Equal(other Entity) bool {
	o, ok := other.(VehiclePosition)
	if !ok {
		return false
	}
	return v.VehicleID == o.VehicleID &&
		v.Label == o.Label &&
		v.TripRef == o.TripRef &&
		sameFloat(v.Latitude, o.Latitude) &&
		sameFloat(v.Longitude, o.Longitude) &&
		sameFloat(v.Bearing, o.Bearing) &&
		sameFloat(v.Speed, o.Speed) &&
		v.Timestamp == o.Timestamp &&
		v.OccupancyStatus == o.OccupancyStatus
}

func sameFloat(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

type StopTimeUpdate struct {
	StopSequence         uint32 `json:"stop_sequence"`
	StopID               string `json:"stop_id"`
	ArrivalDelay         int32  `json:"arrival_delay"`
	ArrivalTime          int64  `json:"arrival_time"`
	DepartureDelay       int32  `json:"departure_delay"`
	DepartureTime        int64  `json:"departure_time"`
	ScheduleRelationship string `json:"schedule_relationship"`
}

type TripUpdate struct {
	EntityID string `json:"entity_id"`
	TripRef
	VehicleID       string           `json:"vehicle_id"`
	Timestamp       int64            `json:"timestamp"`
	StopTimeUpdates []StopTimeUpdate `json:"stop_time_updates"`
}

// Key is the trip id, or the entity id for updates that carry no trip id.
func (t TripUpdate) Key() string {
	if t.TripID != "" {
		return t.TripID
	}
	return t.EntityID
}

func (t TripUpdate) Equal(other Entity) bool {
	o, ok := other.(TripUpdate)
	if !ok {
		return false
	}
	return t.EntityID == o.EntityID &&
		t.TripRef == o.TripRef &&
		t.VehicleID == o.VehicleID &&
		t.Timestamp == o.Timestamp &&
		slices.Equal(t.StopTimeUpdates, o.StopTimeUpdates)
}

// ServesStop reports whether any stop-time update targets stopID.
func (t TripUpdate) ServesStop(stopID string) bool {
	return slices.ContainsFunc(t.StopTimeUpdates, func(u StopTimeUpdate) bool { return u.StopID == stopID })
}

// ActivePeriod bounds an alert in unix seconds; 0 means open-ended.
type ActivePeriod struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

type InformedEntity struct {
	AgencyID string `json:"agency_id,omitempty"`
	RouteID  string `json:"route_id,omitempty"`
	StopID   string `json:"stop_id,omitempty"`
	TripID   string `json:"trip_id,omitempty"`
}

type ServiceAlert struct {
	AlertID          string           `json:"alert_id"`
	Cause            string           `json:"cause"`
	Effect           string           `json:"effect"`
	ActivePeriods    []ActivePeriod   `json:"active_periods"`
	InformedEntities []InformedEntity `json:"informed_entities"`
	Header           string           `json:"header"`
	Description      string           `json:"description"`
}

func (a ServiceAlert) Key() string { return a.AlertID }

func (a ServiceAlert) Equal(other Entity) bool {
	o, ok := other.(ServiceAlert)
	if !ok {
		return false
	}
	return a.AlertID == o.AlertID &&
		a.Cause == o.Cause &&
		a.Effect == o.Effect &&
		a.Header == o.Header &&
		a.Description == o.Description &&
		slices.Equal(a.ActivePeriods, o.ActivePeriods) &&
		slices.Equal(a.InformedEntities, o.InformedEntities)
}

func (a ServiceAlert) AffectsRoute(routeID string) bool {
	return slices.ContainsFunc(a.InformedEntities, func(e InformedEntity) bool { return e.RouteID == routeID })
}

func (a ServiceAlert) AffectsStop(stopID string) bool {
	return slices.ContainsFunc(a.InformedEntities, func(e InformedEntity) bool { return e.StopID == stopID })
}

// ActiveAt reports whether the alert applies at unix time ts.
// An alert without periods is always active.
func (a ServiceAlert) ActiveAt(ts int64) bool {
	if len(a.ActivePeriods) == 0 {
		return true
	}
	for _, p := range a.ActivePeriods {
		if (p.Start == 0 || p.Start <= ts) && (p.End == 0 || ts <= p.End) {
			return true
		}
	}
	return false
}

package feed

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/Nijal-AI/brest-mcp-server/internal/domain"
	"google.golang.org/protobuf/proto"
)

var errNoHeader = errors.New("feed message has no header")

// Decode parses a GTFS-realtime payload into an unversioned snapshot of feed.
func Decode(feed domain.FeedType, payload []byte, fetchedAt time.Time) (*domain.Snapshot, error) {
	return decode(feed, payload, fetchedAt, "")
}

func decode(feed domain.FeedType, payload []byte, fetchedAt time.Time, lang string) (*domain.Snapshot, error) {
	msg := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(payload, msg); err != nil {
		return nil, fmt.Errorf("failed to parse protobuf: %w", err)
	}
	if msg.GetHeader() == nil {
		return nil, errNoHeader
	}

	var feedTS time.Time
	if ts := msg.GetHeader().GetTimestamp(); ts > 0 {
		feedTS = time.Unix(int64(ts), 0).UTC()
	}

	entities := make(map[string]domain.Entity, len(msg.GetEntity()))
	duplicates := 0
	for _, fe := range msg.GetEntity() {
		e, ok := convert(feed, fe, lang)
		if !ok {
			continue
		}
		if _, seen := entities[e.Key()]; seen {
			duplicates++
		}
		entities[e.Key()] = e
	}
	if duplicates > 0 {
		slog.Debug("Duplicate entity ids in feed, last occurrence kept", "feed", feed, "duplicates", duplicates)
	}

	return domain.NewSnapshot(feed, fetchedAt, feedTS, entities), nil
}

// convert maps one FeedEntity onto the feed's entity type.
// Entities without the relevant payload, or without any usable key, are skipped.
func convert(feed domain.FeedType, fe *gtfs.FeedEntity, lang string) (domain.Entity, bool) {
	if fe.GetIsDeleted() {
		return nil, false
	}

	var e domain.Entity
	switch feed {
	case domain.VehiclePositions:
		if fe.GetVehicle() == nil {
			return nil, false
		}
		e = vehiclePosition(fe.GetId(), fe.GetVehicle())
	case domain.TripUpdates:
		if fe.GetTripUpdate() == nil {
			return nil, false
		}
		e = tripUpdate(fe.GetId(), fe.GetTripUpdate())
	case domain.ServiceAlerts:
		if fe.GetAlert() == nil {
			return nil, false
		}
		e = serviceAlert(fe.GetId(), fe.GetAlert(), lang)
	default:
		return nil, false
	}

	if e.Key() == "" {
		return nil, false
	}
	return e, true
}

func tripRef(td *gtfs.TripDescriptor) domain.TripRef {
	return domain.TripRef{
		TripID:    td.GetTripId(),
		RouteID:   td.GetRouteId(),
		StartTime: td.GetStartTime(),
		StartDate: td.GetStartDate(),
	}
}

func vehiclePosition(entityID string, vp *gtfs.VehiclePosition) domain.VehiclePosition {
	id := entityID
	if id == "" {
		id = vp.GetVehicle().GetId()
	}
	if id == "" {
		id = vp.GetVehicle().GetLabel()
	}

	v := domain.VehiclePosition{
		VehicleID: id,
		Label:     vp.GetVehicle().GetLabel(),
		TripRef:   tripRef(vp.GetTrip()),
		Latitude:  finite(vp.GetPosition().GetLatitude()),
		Longitude: finite(vp.GetPosition().GetLongitude()),
		Bearing:   finite(vp.GetPosition().GetBearing()),
		Speed:     finite(vp.GetPosition().GetSpeed()),
		Timestamp: int64(vp.GetTimestamp()),
	}
	if vp.OccupancyStatus != nil {
		v.OccupancyStatus = vp.GetOccupancyStatus().String()
	}
	return v
}

// finite maps NaN and infinities to 0; encoding/json cannot represent them.
func finite(f float32) float64 {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func tripUpdate(entityID string, tu *gtfs.TripUpdate) domain.TripUpdate {
	updates := make([]domain.StopTimeUpdate, 0, len(tu.GetStopTimeUpdate()))
	for _, stu := range tu.GetStopTimeUpdate() {
		updates = append(updates, domain.StopTimeUpdate{
			StopSequence:         stu.GetStopSequence(),
			StopID:               stu.GetStopId(),
			ArrivalDelay:         stu.GetArrival().GetDelay(),
			ArrivalTime:          stu.GetArrival().GetTime(),
			DepartureDelay:       stu.GetDeparture().GetDelay(),
			DepartureTime:        stu.GetDeparture().GetTime(),
			ScheduleRelationship: stu.GetScheduleRelationship().String(),
		})
	}

	return domain.TripUpdate{
		EntityID:        entityID,
		TripRef:         tripRef(tu.GetTrip()),
		VehicleID:       tu.GetVehicle().GetId(),
		Timestamp:       int64(tu.GetTimestamp()),
		StopTimeUpdates: updates,
	}
}

func serviceAlert(entityID string, a *gtfs.Alert, lang string) domain.ServiceAlert {
	periods := make([]domain.ActivePeriod, 0, len(a.GetActivePeriod()))
	for _, p := range a.GetActivePeriod() {
		periods = append(periods, domain.ActivePeriod{Start: int64(p.GetStart()), End: int64(p.GetEnd())})
	}

	informed := make([]domain.InformedEntity, 0, len(a.GetInformedEntity()))
	for _, ie := range a.GetInformedEntity() {
		informed = append(informed, domain.InformedEntity{
			AgencyID: ie.GetAgencyId(),
			RouteID:  ie.GetRouteId(),
			StopID:   ie.GetStopId(),
			TripID:   ie.GetTrip().GetTripId(),
		})
	}

	return domain.ServiceAlert{
		AlertID:          entityID,
		Cause:            a.GetCause().String(),
		Effect:           a.GetEffect().String(),
		ActivePeriods:    periods,
		InformedEntities: informed,
		Header:           translatedText(a.GetHeaderText(), lang),
		Description:      translatedText(a.GetDescriptionText(), lang),
	}
}

func translatedText(ts *gtfs.TranslatedString, lang string) string {
	translations := ts.GetTranslation()
	if len(translations) == 0 {
		return ""
	}
	if lang != "" {
		for _, t := range translations {
			if t.GetLanguage() == lang {
				return t.GetText()
			}
		}
	}
	return translations[0].GetText()
}

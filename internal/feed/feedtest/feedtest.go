// Package feedtest builds GTFS-realtime payloads and fake upstreams. Test use only.
package feedtest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/Nijal-AI/brest-mcp-server/internal/domain"
	"google.golang.org/protobuf/proto"
)

// Message wraps entities in a full-dataset FeedMessage with header timestamp ts.
func Message(ts uint64, entities ...*gtfs.FeedEntity) *gtfs.FeedMessage {
	return &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(ts),
		},
		Entity: entities,
	}
}

func Vehicle(id, routeID, tripID string, lat, lon float32) *gtfs.FeedEntity {
	return &gtfs.FeedEntity{
		Id: proto.String(id),
		Vehicle: &gtfs.VehiclePosition{
			Trip:     &gtfs.TripDescriptor{TripId: proto.String(tripID), RouteId: proto.String(routeID)},
			Vehicle:  &gtfs.VehicleDescriptor{Id: proto.String(id), Label: proto.String("Bus " + id)},
			Position: &gtfs.Position{Latitude: proto.Float32(lat), Longitude: proto.Float32(lon)},
		},
	}
}

// StopDelay is one stop-time update with an arrival delay in seconds.
type StopDelay struct {
	StopID string
	Delay  int32
}

func TripUpdate(id, tripID, routeID string, stops ...StopDelay) *gtfs.FeedEntity {
	updates := make([]*gtfs.TripUpdate_StopTimeUpdate, 0, len(stops))
	for i, s := range stops {
		updates = append(updates, &gtfs.TripUpdate_StopTimeUpdate{
			StopSequence: proto.Uint32(uint32(i + 1)),
			StopId:       proto.String(s.StopID),
			Arrival:      &gtfs.TripUpdate_StopTimeEvent{Delay: proto.Int32(s.Delay)},
		})
	}
	return &gtfs.FeedEntity{
		Id: proto.String(id),
		TripUpdate: &gtfs.TripUpdate{
			Trip:           &gtfs.TripDescriptor{TripId: proto.String(tripID), RouteId: proto.String(routeID)},
			StopTimeUpdate: updates,
		},
	}
}

func Alert(id, routeID, header string) *gtfs.FeedEntity {
	return &gtfs.FeedEntity{
		Id: proto.String(id),
		Alert: &gtfs.Alert{
			InformedEntity: []*gtfs.EntitySelector{{RouteId: proto.String(routeID)}},
			Cause:          gtfs.Alert_CONSTRUCTION.Enum(),
			Effect:         gtfs.Alert_DETOUR.Enum(),
			HeaderText: &gtfs.TranslatedString{Translation: []*gtfs.TranslatedString_Translation{
				{Text: proto.String(header), Language: proto.String("fr")},
			}},
		},
	}
}

func Marshal(tb testing.TB, msg *gtfs.FeedMessage) []byte {
	tb.Helper()
	b, err := proto.Marshal(msg)
	if err != nil {
		tb.Fatalf("marshal feed message: %v", err)
	}
	return b
}

// Upstream is an httptest server serving one mutable payload per feed at /<feed>.
type Upstream struct {
	*httptest.Server

	mu       sync.Mutex
	payloads map[domain.FeedType][]byte
	status   map[domain.FeedType]int
	hits     map[domain.FeedType]int
}

func NewUpstream(tb testing.TB) *Upstream {
	tb.Helper()
	u := &Upstream{
		payloads: make(map[domain.FeedType][]byte),
		status:   make(map[domain.FeedType]int),
		hits:     make(map[domain.FeedType]int),
	}
	u.Server = httptest.NewServer(http.HandlerFunc(u.serve))
	tb.Cleanup(u.Close)
	return u
}

func (u *Upstream) serve(w http.ResponseWriter, r *http.Request) {
	feed := domain.FeedType(r.URL.Path[1:])

	u.mu.Lock()
	u.hits[feed]++
	status, hasStatus := u.status[feed]
	payload, hasPayload := u.payloads[feed]
	u.mu.Unlock()

	if hasStatus {
		w.WriteHeader(status)
		return
	}
	if !hasPayload {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	_, _ = w.Write(payload)
}

// Set serves payload for feed with status 200.
func (u *Upstream) Set(feed domain.FeedType, payload []byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.payloads[feed] = payload
	delete(u.status, feed)
}

// Fail makes feed answer with status and no body.
func (u *Upstream) Fail(feed domain.FeedType, status int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.status[feed] = status
}

func (u *Upstream) Hits(feed domain.FeedType) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[feed]
}

// URLs maps every feed to its path on this server.
func (u *Upstream) URLs() map[domain.FeedType]string {
	urls := make(map[domain.FeedType]string, len(domain.AllFeeds))
	for _, f := range domain.AllFeeds {
		urls[f] = u.URL + "/" + string(f)
	}
	return urls
}

package refresh

import (
	"math"
	"testing"
	"time"

	"github.com/Nijal-AI/brest-mcp-server/internal/domain"
	"github.com/stretchr/testify/assert"
)

func alerts(entities ...domain.ServiceAlert) *domain.Snapshot {
	m := make(map[string]domain.Entity, len(entities))
	for _, a := range entities {
		m[a.AlertID] = a
	}
	return domain.NewSnapshot(domain.ServiceAlerts, time.Time{}, time.Time{}, m)
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name                    string
		prev, next              *domain.Snapshot
		added, updated, removed []string
	}{
		{
			name: "empty to empty",
			prev: alerts(), next: alerts(),
			added: []string{}, updated: []string{}, removed: []string{},
		},
		{
			name: "identical content",
			prev: alerts(domain.ServiceAlert{AlertID: "x", Header: "h"}),
			next: alerts(domain.ServiceAlert{AlertID: "x", Header: "h"}),
			added: []string{}, updated: []string{}, removed: []string{},
		},
		{
			name: "added, updated and removed",
			prev: alerts(
				domain.ServiceAlert{AlertID: "keep", Header: "same"},
				domain.ServiceAlert{AlertID: "edit", Header: "old"},
				domain.ServiceAlert{AlertID: "gone"},
			),
			next: alerts(
				domain.ServiceAlert{AlertID: "keep", Header: "same"},
				domain.ServiceAlert{AlertID: "edit", Header: "new"},
				domain.ServiceAlert{AlertID: "z-new"},
				domain.ServiceAlert{AlertID: "a-new"},
			),
			added:   []string{"a-new", "z-new"},
			updated: []string{"edit"},
			removed: []string{"gone"},
		},
		{
			name:    "everything removed",
			prev:    alerts(domain.ServiceAlert{AlertID: "b"}, domain.ServiceAlert{AlertID: "a"}),
			next:    alerts(),
			added:   []string{},
			updated: []string{},
			removed: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Diff(tt.prev, tt.next)
			assert.Equal(t, tt.added, ev.Added)
			assert.Equal(t, tt.updated, ev.Updated)
			assert.Equal(t, tt.removed, ev.Removed)
			assert.Equal(t, len(tt.added)+len(tt.updated)+len(tt.removed) == 0, ev.Empty())
		})
	}
}

func TestDiff_NaNPositionIsNotAnUpdate(t *testing.T) {
	nan := math.NaN()
	snap := func() *domain.Snapshot {
		return domain.NewSnapshot(domain.VehiclePositions, time.Time{}, time.Time{}, map[string]domain.Entity{
			"v1": domain.VehiclePosition{VehicleID: "v1", Latitude: nan, Longitude: nan, Bearing: nan, Speed: nan},
			"v2": domain.VehiclePosition{VehicleID: "v2", Latitude: 48.39},
		})
	}

	ev := Diff(snap(), snap())
	assert.True(t, ev.Empty(), "re-fetching the same NaN position changes nothing")
}

package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Nijal-AI/brest-mcp-server/internal/domain"
	"github.com/ggoodman/mcp-server-go/mcp"
	"github.com/ggoodman/mcp-server-go/mcpservice"
	"github.com/ggoodman/mcp-server-go/sessions"
)

const (
	feedURIPrefix = "transit://feeds/"
	mimeJSON      = "application/json"
)

var ErrUnknownResource = errors.New("unknown resource")

// FeedURI names the resource holding the full latest snapshot of feed.
func FeedURI(feed domain.FeedType) string {
	return feedURIPrefix + string(feed)
}

var feedDescriptions = map[domain.FeedType]string{
	domain.VehiclePositions: "Every vehicle position in the latest snapshot.",
	domain.TripUpdates:      "Every trip update in the latest snapshot.",
	domain.ServiceAlerts:    "Every service alert in the latest snapshot.",
}

func (s *Service) listResources(context.Context, sessions.Session, *string) (mcpservice.Page[mcp.Resource], error) {
	items := make([]mcp.Resource, 0, len(domain.AllFeeds))
	for _, f := range domain.AllFeeds {
		items = append(items, mcp.Resource{
			URI:         FeedURI(f),
			Name:        string(f),
			Description: feedDescriptions[f],
			MimeType:    mimeJSON,
		})
	}
	return mcpservice.NewPage(items), nil
}

func (s *Service) readResource(_ context.Context, _ sessions.Session, uri string) ([]mcp.ResourceContents, error) {
	name, ok := strings.CutPrefix(uri, feedURIPrefix)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, uri)
	}
	feed, err := domain.ParseFeedType(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, uri)
	}

	var res FeedResult
	switch feed {
	case domain.VehiclePositions:
		res = s.vehicles(VehicleArgs{})
	case domain.TripUpdates:
		res = s.tripUpdates(TripUpdateArgs{})
	case domain.ServiceAlerts:
		res = s.alerts(AlertArgs{})
	}

	body, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", feed, err)
	}
	return []mcp.ResourceContents{{URI: uri, MimeType: mimeJSON, Text: string(body)}}, nil
}

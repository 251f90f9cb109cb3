// Package mcpserver exposes the feed cache as a Model Context Protocol server:
// read tools, one resource per feed, and change notifications pushed on every
// open session stream.
package mcpserver

import (
	"github.com/Nijal-AI/brest-mcp-server/internal/adapter/metrics"
	"github.com/Nijal-AI/brest-mcp-server/internal/domain"
	"github.com/Nijal-AI/brest-mcp-server/internal/platform/version"
	"github.com/ggoodman/mcp-server-go/mcpservice"
	"github.com/jonboulle/clockwork"
)

const instructions = "Real-time GTFS data for the Brest transit network. " +
	"Use get_vehicles, get_trip_updates and get_alerts to read the latest snapshot of each feed, " +
	"and get_feed_status to check how fresh it is. While a GET stream is open on the session, " +
	"every committed change arrives as a " + ChangeNotificationMethod + " notification."

// Service answers tool calls and resource reads from the feed cache.
type Service struct {
	cache   domain.SnapshotReader
	status  domain.StatusSource
	clock   clockwork.Clock
	network string
	metrics *metrics.MCPMetrics
}

// NewService builds the transit service. status and m may be nil.
func NewService(cache domain.SnapshotReader, status domain.StatusSource, clock clockwork.Clock, network string, m *metrics.MCPMetrics) *Service {
	return &Service{cache: cache, status: status, clock: clock, network: network, metrics: m}
}

// Capabilities assembles the server surface the MCP engine negotiates at initialize.
func (s *Service) Capabilities() mcpservice.ServerCapabilities {
	info := version.Get()
	return mcpservice.NewServer(
		mcpservice.WithServerInfo(mcpservice.StaticServerInfo(info.Name, info.Version,
			mcpservice.WithServerInfoTitle("Brest transit ("+s.network+")"))),
		mcpservice.WithInstructions(mcpservice.StaticInstructions(instructions)),
		mcpservice.WithToolsCapability(mcpservice.NewToolsContainer(s.tools()...)),
		mcpservice.WithResourcesCapability(mcpservice.NewDynamicResources(
			mcpservice.WithResourcesListFunc(s.listResources),
			mcpservice.WithResourcesReadFunc(s.readResource),
		)),
	)
}

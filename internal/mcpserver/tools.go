package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Nijal-AI/brest-mcp-server/internal/domain"
	"github.com/Nijal-AI/brest-mcp-server/internal/platform/logging"
	"github.com/Nijal-AI/brest-mcp-server/internal/platform/version"
	"github.com/ggoodman/mcp-server-go/mcp"
	"github.com/ggoodman/mcp-server-go/mcpservice"
	"github.com/ggoodman/mcp-server-go/sessions"
)

const (
	ToolGetVehicles    = "get_vehicles"
	ToolGetTripUpdates = "get_trip_updates"
	ToolGetAlerts      = "get_alerts"
	ToolGetFeedStatus  = "get_feed_status"
	ToolGetServerInfo  = "get_server_info"
)

// Tool call outcomes as recorded in metrics.
const (
	outcomeOK        = "ok"
	outcomeToolError = "tool_error"
	outcomeError     = "error"
)

type VehicleArgs struct {
	RouteID string `json:"route_id,omitempty" jsonschema:"description=Only vehicles serving this route"`
	TripID  string `json:"trip_id,omitempty" jsonschema:"description=Only the vehicle running this trip"`
}

type TripUpdateArgs struct {
	RouteID string `json:"route_id,omitempty" jsonschema:"description=Only trips of this route"`
	TripID  string `json:"trip_id,omitempty" jsonschema:"description=Only this trip"`
	StopID  string `json:"stop_id,omitempty" jsonschema:"description=Only trips with a stop time update for this stop"`
}

type AlertArgs struct {
	RouteID    string `json:"route_id,omitempty" jsonschema:"description=Only alerts naming this route"`
	StopID     string `json:"stop_id,omitempty" jsonschema:"description=Only alerts naming this stop"`
	ActiveOnly bool   `json:"active_only,omitempty" jsonschema:"description=Drop alerts whose active periods exclude the current time"`
}

type FeedStatusArgs struct {
	Feed string `json:"feed,omitempty" jsonschema:"enum=vehicle_positions,enum=trip_updates,enum=service_alerts,description=Restrict the report to one feed"`
}

// FeedResult is the payload of every read tool. Data comes from exactly one snapshot.
type FeedResult struct {
	Status     string          `json:"status"`
	Network    string          `json:"network"`
	Feed       domain.FeedType `json:"feed"`
	Version    uint64          `json:"version"`
	FetchedAt  *time.Time      `json:"fetched_at"`
	LastUpdate *time.Time      `json:"last_update"`
	AgeSeconds float64         `json:"age_seconds"`
	Count      int             `json:"count"`
	Data       any             `json:"data"`
}

// FeedStatusView is one feed's entry in get_feed_status.
type FeedStatusView struct {
	Feed                domain.FeedType `json:"feed"`
	Version             uint64          `json:"version"`
	Entities            int             `json:"entities"`
	IntervalSeconds     float64         `json:"interval_seconds"`
	AgeSeconds          float64         `json:"age_seconds"`
	LastAttempt         *time.Time      `json:"last_attempt"`
	LastSuccess         *time.Time      `json:"last_success"`
	LastError           string          `json:"last_error,omitempty"`
	ConsecutiveFailures int             `json:"consecutive_failures"`
	TotalFailures       int             `json:"total_failures"`
	SkippedTicks        int             `json:"skipped_ticks"`
	EventsPublished     int             `json:"events_published"`
}

type FeedStatusResult struct {
	Status  string           `json:"status"`
	Network string           `json:"network"`
	Feeds   []FeedStatusView `json:"feeds"`
}

type ServerInfo struct {
	version.Info
	Network      string            `json:"network"`
	Feeds        []domain.FeedType `json:"feeds"`
	Notification string            `json:"notification"`
}

func (s *Service) tools() []mcpservice.StaticTool {
	return []mcpservice.StaticTool{
		s.instrument(mcpservice.NewTool(ToolGetVehicles, s.getVehicles,
			mcpservice.WithToolDescription("Latest vehicle positions, optionally filtered by route or trip."))),
		s.instrument(mcpservice.NewTool(ToolGetTripUpdates, s.getTripUpdates,
			mcpservice.WithToolDescription("Latest trip updates with per-stop delays, optionally filtered by route, trip or stop."))),
		s.instrument(mcpservice.NewTool(ToolGetAlerts, s.getAlerts,
			mcpservice.WithToolDescription("Current service alerts, optionally filtered by route or stop or restricted to active ones."))),
		s.instrument(mcpservice.NewTool(ToolGetFeedStatus, s.getFeedStatus,
			mcpservice.WithToolDescription("Refresh health and freshness of each feed."))),
		s.instrument(mcpservice.NewTool(ToolGetServerInfo, s.getServerInfo,
			mcpservice.WithToolDescription("Server build, transit network and the notification method pushed on streams."))),
	}
}

// instrument tags the call context with the session's login and records the outcome.
func (s *Service) instrument(tool mcpservice.StaticTool) mcpservice.StaticTool {
	name := tool.Descriptor.Name
	next := tool.Handler
	tool.Handler = func(ctx context.Context, session sessions.Session, req *mcp.CallToolRequestReceived) (*mcp.CallToolResult, error) {
		ctx = logging.WithLogin(ctx, session.UserID())
		start := s.clock.Now()

		res, err := next(ctx, session, req)

		outcome := outcomeOK
		switch {
		case err != nil:
			outcome = outcomeError
			slog.ErrorContext(ctx, "Tool call failed", "tool", name, "error", err)
		case res != nil && res.IsError:
			outcome = outcomeToolError
			slog.DebugContext(ctx, "Tool call rejected", "tool", name)
		}
		if s.metrics != nil {
			s.metrics.ToolCalls.WithLabelValues(name, outcome).Inc()
			s.metrics.ToolDuration.WithLabelValues(name).Observe(s.clock.Since(start).Seconds())
		}
		return res, err
	}
	return tool
}

// writeJSON appends v as the single text block of the result.
func writeJSON(w mcpservice.ToolResponseWriter, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode tool result: %w", err)
	}
	return w.AppendText(string(body))
}

func toolError(w mcpservice.ToolResponseWriter, format string, args ...any) error {
	w.SetError(true)
	return w.AppendText(fmt.Sprintf(format, args...))
}

func (s *Service) result(snap *domain.Snapshot, count int, data any) FeedResult {
	return FeedResult{
		Status:     "success",
		Network:    s.network,
		Feed:       snap.Feed,
		Version:    snap.Version,
		FetchedAt:  timePtr(snap.FetchedAt),
		LastUpdate: timePtr(snap.FeedTimestamp),
		AgeSeconds: snap.Age(s.clock.Now()).Seconds(),
		Count:      count,
		Data:       data,
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func (s *Service) vehicles(args VehicleArgs) FeedResult {
	snap := s.cache.Get(domain.VehiclePositions)
	out := make([]domain.VehiclePosition, 0, snap.Len())
	for _, v := range domain.EntitiesOf[domain.VehiclePosition](snap) {
		if args.RouteID != "" && v.RouteID != args.RouteID {
			continue
		}
		if args.TripID != "" && v.TripID != args.TripID {
			continue
		}
		out = append(out, v)
	}
	return s.result(snap, len(out), out)
}

func (s *Service) tripUpdates(args TripUpdateArgs) FeedResult {
	snap := s.cache.Get(domain.TripUpdates)
	out := make([]domain.TripUpdate, 0, snap.Len())
	for _, tu := range domain.EntitiesOf[domain.TripUpdate](snap) {
		if args.RouteID != "" && tu.RouteID != args.RouteID {
			continue
		}
		if args.TripID != "" && tu.TripID != args.TripID {
			continue
		}
		if args.StopID != "" && !tu.ServesStop(args.StopID) {
			continue
		}
		out = append(out, tu)
	}
	return s.result(snap, len(out), out)
}

func (s *Service) alerts(args AlertArgs) FeedResult {
	snap := s.cache.Get(domain.ServiceAlerts)
	now := s.clock.Now().Unix()
	out := make([]domain.ServiceAlert, 0, snap.Len())
	for _, a := range domain.EntitiesOf[domain.ServiceAlert](snap) {
		if args.RouteID != "" && !a.AffectsRoute(args.RouteID) {
			continue
		}
		if args.StopID != "" && !a.AffectsStop(args.StopID) {
			continue
		}
		if args.ActiveOnly && !a.ActiveAt(now) {
			continue
		}
		out = append(out, a)
	}
	return s.result(snap, len(out), out)
}

func (s *Service) getVehicles(_ context.Context, _ sessions.Session, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[VehicleArgs]) error {
	return writeJSON(w, s.vehicles(r.Args()))
}

func (s *Service) getTripUpdates(_ context.Context, _ sessions.Session, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[TripUpdateArgs]) error {
	return writeJSON(w, s.tripUpdates(r.Args()))
}

func (s *Service) getAlerts(_ context.Context, _ sessions.Session, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[AlertArgs]) error {
	return writeJSON(w, s.alerts(r.Args()))
}

func (s *Service) getFeedStatus(_ context.Context, _ sessions.Session, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[FeedStatusArgs]) error {
	feeds := domain.AllFeeds
	if name := r.Args().Feed; name != "" {
		f, err := domain.ParseFeedType(name)
		if err != nil {
			return toolError(w, "%v", err)
		}
		feeds = []domain.FeedType{f}
	}

	now := s.clock.Now()
	views := make([]FeedStatusView, 0, len(feeds))
	for _, f := range feeds {
		snap := s.cache.Get(f)
		v := FeedStatusView{
			Feed:       f,
			Version:    snap.Version,
			Entities:   snap.Len(),
			AgeSeconds: snap.Age(now).Seconds(),
		}
		if s.status != nil {
			if st, ok := s.status.Status(f); ok {
				v.IntervalSeconds = st.Interval.Seconds()
				v.LastAttempt = timePtr(st.LastAttempt)
				v.LastSuccess = timePtr(st.LastSuccess)
				v.LastError = st.LastError
				v.ConsecutiveFailures = st.ConsecutiveFailures
				v.TotalFailures = st.TotalFailures
				v.SkippedTicks = st.SkippedTicks
				v.EventsPublished = st.EventsPublished
			}
		}
		views = append(views, v)
	}

	return writeJSON(w, FeedStatusResult{Status: "success", Network: s.network, Feeds: views})
}

func (s *Service) getServerInfo(_ context.Context, _ sessions.Session, w mcpservice.ToolResponseWriter, _ *mcpservice.ToolRequest[struct{}]) error {
	return writeJSON(w, ServerInfo{
		Info:         version.Get(),
		Network:      s.network,
		Feeds:        domain.AllFeeds,
		Notification: ChangeNotificationMethod,
	})
}

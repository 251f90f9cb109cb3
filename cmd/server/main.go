package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Nijal-AI/brest-mcp-server/internal/adapter/github"
	"github.com/Nijal-AI/brest-mcp-server/internal/adapter/httpserver"
	"github.com/Nijal-AI/brest-mcp-server/internal/adapter/metrics"
	"github.com/Nijal-AI/brest-mcp-server/internal/auth"
	"github.com/Nijal-AI/brest-mcp-server/internal/broadcast"
	"github.com/Nijal-AI/brest-mcp-server/internal/domain"
	"github.com/Nijal-AI/brest-mcp-server/internal/feed"
	"github.com/Nijal-AI/brest-mcp-server/internal/feedcache"
	"github.com/Nijal-AI/brest-mcp-server/internal/mcpserver"
	"github.com/Nijal-AI/brest-mcp-server/internal/platform/config"
	"github.com/Nijal-AI/brest-mcp-server/internal/platform/logging"
	"github.com/Nijal-AI/brest-mcp-server/internal/platform/version"
	"github.com/Nijal-AI/brest-mcp-server/internal/refresh"
	"github.com/jonboulle/clockwork"
)

var (
	errRefresherStopped = errors.New("refresher is not running")
	errHubUnresponsive  = errors.New("hub did not answer")
)

func runGracefulShutdown(srv *httpserver.Server, stopRefresher, stopEngine func(), hub *broadcast.Hub) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		stopRefresher()

		// Closing every subscription lets streaming handlers return before the server drains.
		hub.Stop()
		stopEngine()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func feedURLs(cfg *config.Config) map[domain.FeedType]string {
	return map[domain.FeedType]string{
		domain.VehiclePositions: cfg.VehiclePositionsURL,
		domain.TripUpdates:      cfg.TripUpdatesURL,
		domain.ServiceAlerts:    cfg.ServiceAlertsURL,
	}
}

func refreshIntervals(cfg *config.Config) map[domain.FeedType]time.Duration {
	return map[domain.FeedType]time.Duration{
		domain.VehiclePositions: time.Duration(cfg.VehiclePositionsInterval()) * time.Second,
		domain.TripUpdates:      time.Duration(cfg.TripUpdatesInterval()) * time.Second,
		domain.ServiceAlerts:    time.Duration(cfg.ServiceAlertsInterval()) * time.Second,
	}
}

// startRefresher runs the refresher in the background and returns a function
// that cancels it and waits for in-flight cycles to finish.
func startRefresher(refresher *refresh.Refresher) func() {
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		refresher.Run(ctx)
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}

// probes gates traffic on the refresher loops and the hub being alive. A feed that
// stops refreshing only degrades readiness: its last snapshot is still served.
func probes(refresher *refresh.Refresher, hub *broadcast.Hub) httpserver.Probes {
	checks := healthChecks(refresher, hub)
	return httpserver.Probes{
		Startup:    checks,
		Readiness:  checks,
		StaleFeeds: refresher.StaleFeeds,
	}
}

func healthChecks(refresher *refresh.Refresher, hub *broadcast.Hub) []httpserver.HealthCheck {
	return []httpserver.HealthCheck{
		{
			Name: "refresher",
			Check: func(context.Context) error {
				if !refresher.Running() {
					return errRefresherStopped
				}
				return nil
			},
		},
		{
			Name: "hub",
			Check: func(context.Context) error {
				if hub.Count() < 0 {
					return errHubUnresponsive
				}
				return nil
			},
		},
	}
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "network", cfg.Network, "version", version.Get().String())

	registry := metrics.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(registry)
	feedMetrics := metrics.NewFeedMetrics(registry)
	hubMetrics := metrics.NewHubMetrics(registry)
	mcpMetrics := metrics.NewMCPMetrics(registry)

	fetcher := feed.NewClient(feedURLs(cfg), cfg.FetchTimeoutDuration(), clock)
	cache := feedcache.New()

	hub := broadcast.NewHub(clock, broadcast.Config{
		QueueSize:      cfg.SubscriberQueueSize,
		MaxSubscribers: cfg.MaxStreamSubscribers,
		Encoder:        mcpserver.EncodeChangeNotification,
		Metrics:        hubMetrics,
	})

	refresher := refresh.New(fetcher, cache, hub, clock, refreshIntervals(cfg), feedMetrics)
	stopRefresher := startRefresher(refresher)

	oauth := github.NewClient(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubRedirectURI, clock, github.Endpoints{})
	issuer := auth.NewIssuer(cfg.TokenSecret, cfg.AccessTokenTTL, clock)

	// The engine context outlives requests; cancelling it stops session bookkeeping.
	engineCtx, stopEngine := context.WithCancel(context.Background())
	mcpHandler, err := mcpserver.NewHandler(engineCtx, cfg.AppURL+"/mcp",
		mcpserver.NewSessionHost(hub, mcpMetrics),
		mcpserver.NewService(cache, refresher, clock, cfg.Network, mcpMetrics).Capabilities(),
		mcpserver.NewAuthenticator(issuer),
		slog.Default().With("component", "mcp"))
	if err != nil {
		slog.Error("Failed to create MCP handler", "error", err)
		os.Exit(1)
	}

	srv, err := httpserver.NewServer(cfg, httpserver.Deps{
		MCPHandler:     mcpHandler,
		OAuth:          oauth,
		Tokens:         issuer,
		MetricsHandler: metrics.Handler(registry),
		HTTPMetrics:    httpMetrics,
		Probes:         probes(refresher, hub),
		Clock:          clock,
	})
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	done := runGracefulShutdown(srv, stopRefresher, stopEngine, hub)

	slog.Info("Server starting", "port", cfg.Port, "h2c", cfg.H2CEnabled)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}

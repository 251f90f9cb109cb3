package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GITHUB_CLIENT_ID", "test-client-id")
	t.Setenv("GITHUB_CLIENT_SECRET", "test-client-secret")
	t.Setenv("GITHUB_REDIRECT_URI", "http://localhost:3001/auth/callback")
	t.Setenv("SESSION_SECRET", "test-session-secret")
	t.Setenv("TOKEN_SECRET", "0123456789abcdef0123456789abcdef")
	for _, name := range []string{
		"NETWORK",
		"GTFS_VEHICLE_POSITIONS_URL", "GTFS_TRIP_UPDATES_URL", "GTFS_SERVICE_ALERTS_URL",
		"GTFS_REFRESH_INTERVAL", "GTFS_FETCH_TIMEOUT",
		"GTFS_VEHICLE_POSITIONS_REFRESH_INTERVAL", "GTFS_TRIP_UPDATES_REFRESH_INTERVAL", "GTFS_SERVICE_ALERTS_REFRESH_INTERVAL",
		"ALLOWED_ORIGINS", "APP_ENV", "STREAM_WRITE_TIMEOUT",
	} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "bibus", cfg.Network)
	assert.Equal(t, "https://proxy.transport.data.gouv.fr/resource/bibus-brest-gtfs-rt-vehicle-position", cfg.VehiclePositionsURL)
	assert.Equal(t, "https://proxy.transport.data.gouv.fr/resource/bibus-brest-gtfs-rt-trip-update", cfg.TripUpdatesURL)
	assert.Equal(t, "https://proxy.transport.data.gouv.fr/resource/bibus-brest-gtfs-rt-alerts", cfg.ServiceAlertsURL)
	assert.Equal(t, 30, cfg.RefreshInterval)
	assert.Equal(t, 30, cfg.TripUpdatesInterval())
	assert.Equal(t, 10*time.Second, cfg.FetchTimeoutDuration())
	assert.Equal(t, 64, cfg.SubscriberQueueSize)
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 10*time.Second, cfg.StreamWriteTimeout)
	assert.False(t, cfg.IsProduction())
	assert.True(t, cfg.IsDevelopment())
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoad_AllowedOrigins(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ALLOWED_ORIGINS", "https://maps.example.org https://tools.example.org")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://maps.example.org", "https://tools.example.org"}, cfg.AllowedOrigins)
}

func TestLoad_StreamWriteTimeout(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STREAM_WRITE_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.StreamWriteTimeout)

	t.Setenv("STREAM_WRITE_TIMEOUT", "0s")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STREAM_WRITE_TIMEOUT")
}

func TestLoad_NetworkPreset(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("NETWORK", "star")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Contains(t, cfg.VehiclePositionsURL, "star-rennes")
	assert.Contains(t, cfg.ServiceAlertsURL, "star-rennes")
}

func TestLoad_ExplicitURLOverridesPreset(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("NETWORK", "tub")
	t.Setenv("GTFS_TRIP_UPDATES_URL", "https://feeds.example.org/tu.pb")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://feeds.example.org/tu.pb", cfg.TripUpdatesURL)
	assert.Contains(t, cfg.VehiclePositionsURL, "tub-saint-brieuc")
}

func TestLoad_UnknownNetwork(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("NETWORK", "metz")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown NETWORK "metz"`)

	t.Setenv("GTFS_VEHICLE_POSITIONS_URL", "https://feeds.example.org/vp.pb")
	t.Setenv("GTFS_TRIP_UPDATES_URL", "https://feeds.example.org/tu.pb")
	t.Setenv("GTFS_SERVICE_ALERTS_URL", "https://feeds.example.org/sa.pb")
	_, err = Load()
	assert.NoError(t, err)
}

func TestLoad_PerFeedIntervals(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GTFS_REFRESH_INTERVAL", "60")
	t.Setenv("GTFS_VEHICLE_POSITIONS_REFRESH_INTERVAL", "15")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.VehiclePositionsInterval())
	assert.Equal(t, 60, cfg.TripUpdatesInterval())
	assert.Equal(t, 60, cfg.ServiceAlertsInterval())
}

func TestLoad_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		skipEnv string
		wantErr string
	}{
		{"missing GITHUB_CLIENT_ID", "GITHUB_CLIENT_ID", "GITHUB_CLIENT_ID is required"},
		{"missing GITHUB_CLIENT_SECRET", "GITHUB_CLIENT_SECRET", "GITHUB_CLIENT_SECRET is required"},
		{"missing GITHUB_REDIRECT_URI", "GITHUB_REDIRECT_URI", "GITHUB_REDIRECT_URI is required"},
		{"missing SESSION_SECRET", "SESSION_SECRET", "SESSION_SECRET is required"},
		{"missing TOKEN_SECRET", "TOKEN_SECRET", "TOKEN_SECRET is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.skipEnv, "")

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"short token secret", map[string]string{"TOKEN_SECRET": "short"}, "TOKEN_SECRET must be at least 32 characters"},
		{"bad feed url", map[string]string{"GTFS_SERVICE_ALERTS_URL": "not a url"}, "GTFS_SERVICE_ALERTS_URL is invalid"},
		{"zero interval", map[string]string{"GTFS_REFRESH_INTERVAL": "0"}, "GTFS_REFRESH_INTERVAL is invalid"},
		{"timeout not below interval", map[string]string{"GTFS_REFRESH_INTERVAL": "10", "GTFS_FETCH_TIMEOUT": "10"}, "GTFS_FETCH_TIMEOUT (10s) must be shorter"},
		{"timeout above per-feed interval", map[string]string{"GTFS_SERVICE_ALERTS_REFRESH_INTERVAL": "5"}, "GTFS_FETCH_TIMEOUT (10s) must be shorter"},
		{"zero queue", map[string]string{"SUBSCRIBER_QUEUE_SIZE": "0"}, "SUBSCRIBER_QUEUE_SIZE is invalid"},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT is invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNetworks_BuiltIn(t *testing.T) {
	networks, err := Networks()
	require.NoError(t, err)
	assert.Len(t, networks, 3)
	assert.Equal(t, []string{"bibus", "star", "tub"}, NetworkNames())
	assert.Equal(t, "Bibus (Brest)", networks["bibus"].Name)
}

func TestParseNetworks_Invalid(t *testing.T) {
	_, err := ParseNetworks([]byte("networks:\n  x:\n    name: X\n    vehicle_positions: nope\n"))
	assert.Error(t, err)

	_, err = ParseNetworks([]byte("networks: ["))
	assert.Error(t, err)

	_, err = ParseNetworks([]byte("networks: {}\n"))
	assert.Error(t, err)
}

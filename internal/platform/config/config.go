package config

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"3001"`
	AppURL    string `env:"APP_URL" default:"http://localhost:3001" validate:"url"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text" validate:"oneof=text json"`

	Network             string `env:"NETWORK" default:"bibus"`
	VehiclePositionsURL string `env:"GTFS_VEHICLE_POSITIONS_URL" validate:"required,url"`
	TripUpdatesURL      string `env:"GTFS_TRIP_UPDATES_URL" validate:"required,url"`
	ServiceAlertsURL    string `env:"GTFS_SERVICE_ALERTS_URL" validate:"required,url"`

	// Intervals and timeouts are whole seconds. A zero per-feed interval uses RefreshInterval.
	RefreshInterval                 int `env:"GTFS_REFRESH_INTERVAL" default:"30" validate:"gt=0"`
	VehiclePositionsRefreshInterval int `env:"GTFS_VEHICLE_POSITIONS_REFRESH_INTERVAL" default:"0" validate:"gte=0"`
	TripUpdatesRefreshInterval      int `env:"GTFS_TRIP_UPDATES_REFRESH_INTERVAL" default:"0" validate:"gte=0"`
	ServiceAlertsRefreshInterval    int `env:"GTFS_SERVICE_ALERTS_REFRESH_INTERVAL" default:"0" validate:"gte=0"`
	FetchTimeout                    int `env:"GTFS_FETCH_TIMEOUT" default:"10" validate:"gt=0"`

	SubscriberQueueSize  int `env:"SUBSCRIBER_QUEUE_SIZE" default:"64" validate:"gt=0"`
	MaxStreamSubscribers int `env:"MAX_STREAM_SUBSCRIBERS" default:"1000" validate:"gt=0"`

	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	GitHubRedirectURI  string `env:"GITHUB_REDIRECT_URI"`
	SessionSecret      string `env:"SESSION_SECRET"`
	TokenSecret        string `env:"TOKEN_SECRET"`

	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" default:"30m"`
	SessionMaxAge  time.Duration `env:"SESSION_MAX_AGE" default:"168h"` // 7 days

	// Extra browser origins allowed on /mcp, space separated.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS"`

	// A stream write blocked longer than this drops the client.
	StreamWriteTimeout time.Duration `env:"STREAM_WRITE_TIMEOUT" default:"10s"`

	H2CEnabled bool `env:"H2C_ENABLED" default:"false"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := applyNetwork(&cfg); err != nil {
		return nil, err
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyNetwork fills feed URLs left empty from the NETWORK preset.
// An unknown network is only an error if some URL is still missing.
func applyNetwork(cfg *Config) error {
	networks, err := Networks()
	if err != nil {
		return err
	}

	preset, ok := networks[cfg.Network]
	if !ok {
		if cfg.VehiclePositionsURL == "" || cfg.TripUpdatesURL == "" || cfg.ServiceAlertsURL == "" {
			return fmt.Errorf("unknown NETWORK %q (known: %v) and feed URLs are not all set", cfg.Network, NetworkNames())
		}
		return nil
	}

	if cfg.VehiclePositionsURL == "" {
		cfg.VehiclePositionsURL = preset.VehiclePositions
	}
	if cfg.TripUpdatesURL == "" {
		cfg.TripUpdatesURL = preset.TripUpdates
	}
	if cfg.ServiceAlertsURL == "" {
		cfg.ServiceAlertsURL = preset.ServiceAlerts
	}
	return nil
}

func validate(cfg *Config) error {
	required := []struct{ name, value string }{
		{"GITHUB_CLIENT_ID", cfg.GitHubClientID},
		{"GITHUB_CLIENT_SECRET", cfg.GitHubClientSecret},
		{"GITHUB_REDIRECT_URI", cfg.GitHubRedirectURI},
		{"SESSION_SECRET", cfg.SessionSecret},
		{"TOKEN_SECRET", cfg.TokenSecret},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("env")
	})
	if err := v.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("%s is invalid: failed %q check", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if len(cfg.TokenSecret) < 32 {
		return errors.New("TOKEN_SECRET must be at least 32 characters")
	}

	if cfg.AccessTokenTTL <= 0 {
		return errors.New("ACCESS_TOKEN_TTL must be positive")
	}

	if cfg.StreamWriteTimeout <= 0 {
		return errors.New("STREAM_WRITE_TIMEOUT must be positive")
	}

	for _, interval := range []int{
		cfg.VehiclePositionsInterval(), cfg.TripUpdatesInterval(), cfg.ServiceAlertsInterval(),
	} {
		if cfg.FetchTimeout >= interval {
			return fmt.Errorf("GTFS_FETCH_TIMEOUT (%ds) must be shorter than every refresh interval (got %ds)", cfg.FetchTimeout, interval)
		}
	}

	return nil
}

func (c *Config) interval(override int) int {
	if override > 0 {
		return override
	}
	return c.RefreshInterval
}

// VehiclePositionsInterval returns the effective refresh interval in seconds.
func (c *Config) VehiclePositionsInterval() int { return c.interval(c.VehiclePositionsRefreshInterval) }

// TripUpdatesInterval returns the effective refresh interval in seconds.
func (c *Config) TripUpdatesInterval() int { return c.interval(c.TripUpdatesRefreshInterval) }

// ServiceAlertsInterval returns the effective refresh interval in seconds.
func (c *Config) ServiceAlertsInterval() int { return c.interval(c.ServiceAlertsRefreshInterval) }

// FetchTimeoutDuration returns the upstream request timeout.
func (c *Config) FetchTimeoutDuration() time.Duration {
	return time.Duration(c.FetchTimeout) * time.Second
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

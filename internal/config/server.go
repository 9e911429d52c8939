package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rezkam/tutorplan/internal/env"
)

// ServerConfig holds all configuration for the server binary.
type ServerConfig struct {
	Database        DatabaseConfig
	HTTP            HTTPConfig
	Cache           CacheConfig
	Observability   ObservabilityConfig
	ShutdownTimeout time.Duration `env:"TUTORPLAN_SHUTDOWN_TIMEOUT"`

	// ListenChanges subscribes to the postgres task_changes channel so that
	// writes made by other replicas invalidate this replica's cache.
	ListenChanges bool `env:"TUTORPLAN_LISTEN_CHANGES" default:"true"`

	// FeedTimezone is the IANA zone timed tasks are placed in on feed.ics.
	FeedTimezone string `env:"TUTORPLAN_FEED_TIMEZONE" default:"UTC"`
}

// Validate validates settings that span the nested configs.
func (c *ServerConfig) Validate() error {
	if _, err := time.LoadLocation(c.FeedTimezone); err != nil {
		return fmt.Errorf("invalid TUTORPLAN_FEED_TIMEZONE %q: %w", c.FeedTimezone, err)
	}
	return nil
}

// FeedLocation returns the configured feed timezone, falling back to UTC.
func (c *ServerConfig) FeedLocation() *time.Location {
	loc, err := time.LoadLocation(c.FeedTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Host              string        `env:"TUTORPLAN_HTTP_HOST"`
	Port              string        `env:"TUTORPLAN_HTTP_PORT"`
	ReadTimeout       time.Duration `env:"TUTORPLAN_HTTP_READ_TIMEOUT"`
	WriteTimeout      time.Duration `env:"TUTORPLAN_HTTP_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `env:"TUTORPLAN_HTTP_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `env:"TUTORPLAN_HTTP_READ_HEADER_TIMEOUT"`
	MaxHeaderBytes    int           `env:"TUTORPLAN_HTTP_MAX_HEADER_BYTES"`
	MaxBodyBytes      int64         `env:"TUTORPLAN_HTTP_MAX_BODY_BYTES"`

	// TLS configuration for HTTPS
	TLSEnabled  bool   `env:"TUTORPLAN_TLS_ENABLED"`
	TLSCertFile string `env:"TUTORPLAN_TLS_CERT_FILE"`
	TLSKeyFile  string `env:"TUTORPLAN_TLS_KEY_FILE"`
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	if c.TLSEnabled && (c.TLSCertFile == "" || c.TLSKeyFile == "") {
		return errors.New("TUTORPLAN_TLS_CERT_FILE and TUTORPLAN_TLS_KEY_FILE are required when TLS is enabled")
	}
	return nil
}

// CacheConfig holds the task list cache configuration.
type CacheConfig struct {
	StaleAfter  time.Duration `env:"TUTORPLAN_CACHE_STALE_AFTER"`
	ExpireAfter time.Duration `env:"TUTORPLAN_CACHE_EXPIRE_AFTER"`
	// SweepSchedule is a cron spec for dropping expired cache entries.
	SweepSchedule string `env:"TUTORPLAN_CACHE_SWEEP_SCHEDULE" default:"@every 5m"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	if c.StaleAfter > 0 && c.ExpireAfter > 0 && c.ExpireAfter < c.StaleAfter {
		return fmt.Errorf("TUTORPLAN_CACHE_EXPIRE_AFTER (%s) must be >= TUTORPLAN_CACHE_STALE_AFTER (%s)", c.ExpireAfter, c.StaleAfter)
	}
	return validateSchedule("TUTORPLAN_CACHE_SWEEP_SCHEDULE", c.SweepSchedule)
}

// ObservabilityConfig holds observability configuration.
type ObservabilityConfig struct {
	OTelEnabled bool   `env:"TUTORPLAN_OTEL_ENABLED"`
	ServiceName string `env:"OTEL_SERVICE_NAME"`
}

// LoadServerConfig loads and validates server configuration from environment.
func LoadServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}

	return cfg, nil
}

func validateSchedule(name, spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, spec, err)
	}
	return nil
}

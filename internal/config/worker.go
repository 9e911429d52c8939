package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/rezkam/tutorplan/internal/env"
)

// Feed publishing backends.
const (
	FeedBackendFS  = "fs"
	FeedBackendGCS = "gcs"
)

// WorkerConfig holds all configuration for the worker binary.
type WorkerConfig struct {
	Database         DatabaseConfig
	Feed             FeedConfig
	Observability    ObservabilityConfig
	OperationTimeout time.Duration `env:"TUTORPLAN_WORKER_OPERATION_TIMEOUT"`
}

// FeedConfig holds iCalendar feed publishing configuration.
type FeedConfig struct {
	Backend string `env:"TUTORPLAN_FEED_BACKEND" default:"fs"`
	Dir     string `env:"TUTORPLAN_FEED_DIR" default:"./tutorplan-feeds"`
	Bucket  string `env:"TUTORPLAN_FEED_BUCKET"`
	// Prefix is prepended to object names in the bucket.
	Prefix string `env:"TUTORPLAN_FEED_PREFIX" default:"feeds/"`

	// Schedule is a cron spec; an empty schedule publishes once and exits.
	Schedule string `env:"TUTORPLAN_FEED_SCHEDULE" default:"@every 15m"`
	// Timezone is the IANA zone used for timed events.
	Timezone string `env:"TUTORPLAN_FEED_TIMEZONE" default:"UTC"`
	// Prune removes feeds of owners that no longer have tasks.
	Prune bool `env:"TUTORPLAN_FEED_PRUNE" default:"true"`
}

// Validate validates the feed configuration.
func (c *FeedConfig) Validate() error {
	switch c.Backend {
	case FeedBackendFS:
		if c.Dir == "" {
			return errors.New("TUTORPLAN_FEED_DIR is required when TUTORPLAN_FEED_BACKEND is 'fs'")
		}
	case FeedBackendGCS:
		if c.Bucket == "" {
			return errors.New("TUTORPLAN_FEED_BUCKET is required when TUTORPLAN_FEED_BACKEND is 'gcs'")
		}
	default:
		return fmt.Errorf("unknown TUTORPLAN_FEED_BACKEND: %s", c.Backend)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TUTORPLAN_FEED_TIMEZONE %q: %w", c.Timezone, err)
	}

	return validateSchedule("TUTORPLAN_FEED_SCHEDULE", c.Schedule)
}

// Location returns the configured feed timezone, falling back to UTC.
func (c *FeedConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadWorkerConfig loads and validates worker configuration from environment.
func LoadWorkerConfig() (*WorkerConfig, error) {
	cfg := &WorkerConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load worker config: %w", err)
	}

	return cfg, nil
}

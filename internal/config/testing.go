package config

import (
	"fmt"

	"github.com/rezkam/tutorplan/internal/env"
)

// TestConfig holds configuration for integration tests that need a real database.
type TestConfig struct {
	DSN string `env:"TUTORPLAN_TEST_DB_DSN"`
}

// LoadTestConfig loads test configuration from environment.
// An empty DSN means postgres-backed tests should be skipped.
func LoadTestConfig() (*TestConfig, error) {
	cfg := &TestConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load test config: %w", err)
	}

	return cfg, nil
}

package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/tutorplan/internal/config"
	"github.com/rezkam/tutorplan/internal/infrastructure/feed"
)

func TestNewPublisher(t *testing.T) {
	t.Run("filesystem", func(t *testing.T) {
		p, err := newPublisher(context.Background(), config.FeedConfig{
			Backend: config.FeedBackendFS,
			Dir:     t.TempDir(),
		})
		require.NoError(t, err)
		assert.IsType(t, &feed.FSPublisher{}, p)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := newPublisher(context.Background(), config.FeedConfig{Backend: "ftp"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ftp")
	})
}

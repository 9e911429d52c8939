package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rezkam/tutorplan/internal/application/planner"
	"github.com/rezkam/tutorplan/internal/config"
	httpserver "github.com/rezkam/tutorplan/internal/infrastructure/http"
	"github.com/rezkam/tutorplan/internal/infrastructure/http/handler"
	"github.com/rezkam/tutorplan/internal/infrastructure/observability"
	"github.com/rezkam/tutorplan/internal/infrastructure/persistence"
)

const defaultShutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		// slog might not be initialized if config fails
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return err
	}

	// Root context for all normal operations; cancelled on SIGTERM/SIGINT.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	telemetry, err := observability.Setup(ctx, observability.Config{
		Enabled:     cfg.Observability.OTelEnabled,
		ServiceName: cfg.Observability.ServiceName,
	})
	if err != nil {
		return err
	}
	defer func() {
		// Use a timeout to prevent hanging if collector is unreachable
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "failed to shutdown telemetry", "error", err)
		}
	}()

	store, err := persistence.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	slog.InfoContext(ctx, "storage initialized",
		"driver", cfg.Database.Driver,
		"dsn", maskPassword(cfg.Database.DSN))

	svc := planner.NewService(store, planner.Config{
		CacheStaleAfter:  cfg.Cache.StaleAfter,
		CacheExpireAfter: cfg.Cache.ExpireAfter,
	})

	server := httpserver.NewAPIServer(handler.NewRouter(svc, cfg.FeedLocation()), serverConfig(cfg))

	var sweeper scheduler
	if cfg.Cache.SweepSchedule != "" {
		c, err := startCacheSweep(cfg.Cache.SweepSchedule, svc)
		if err != nil {
			_ = store.Close()
			return err
		}
		sweeper = c
	}

	// Listener goroutine stops with ctx; cleanup waits for it before closing the store.
	listenerDone := make(chan struct{})
	if listener, ok := store.(persistence.ChangeListener); ok && cfg.ListenChanges {
		go func() {
			defer close(listenerDone)
			listenForChanges(ctx, listener, svc.InvalidateOwner, newListenBackOff())
		}()
	} else {
		close(listenerDone)
	}

	errResult := make(chan error, 1)
	go func() {
		errResult <- server.Start()
	}()

	slog.InfoContext(ctx, "tutorplan service started")

	var runErr error
	select {
	case <-ctx.Done():
		slog.InfoContext(ctx, "shutting down")
	case runErr = <-errResult:
		if runErr != nil {
			runErr = fmt.Errorf("failed to serve HTTP: %w", runErr)
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := newShutdownContext(cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "failed to shutdown HTTP server", "error", err)
	}
	<-listenerDone
	newCleanup(shutdownCtx, sweeper, store)()

	return runErr
}

// serverConfig maps environment configuration onto the HTTP server settings.
func serverConfig(cfg *config.ServerConfig) httpserver.ServerConfig {
	sc := httpserver.ServerConfig{
		Host:              cfg.HTTP.Host,
		Port:              cfg.HTTP.Port,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		MaxHeaderBytes:    cfg.HTTP.MaxHeaderBytes,
		MaxBodyBytes:      cfg.HTTP.MaxBodyBytes,
	}
	if cfg.HTTP.TLSEnabled {
		sc.TLSCertFile = cfg.HTTP.TLSCertFile
		sc.TLSKeyFile = cfg.HTTP.TLSKeyFile
	}
	return sc
}

// newShutdownContext creates a fresh context with timeout for graceful shutdown operations.
// Uses Background() since the main context is already cancelled at shutdown time.
func newShutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}

// maskPassword masks the password in a connection string for logging.
func maskPassword(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil {
		// If parsing fails, fall back to full redaction to be safe
		return "[REDACTED]"
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "xxxxxx")
		}
	}
	return u.String()
}

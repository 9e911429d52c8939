package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	mw "github.com/rezkam/tutorplan/internal/infrastructure/http/middleware"
)

// Default configuration values for the HTTP server.
const (
	DefaultHost              = "" // Empty means all interfaces (0.0.0.0)
	DefaultPort              = "8080"
	DefaultReadTimeout       = 15 * time.Second
	DefaultWriteTimeout      = 15 * time.Second
	DefaultIdleTimeout       = 60 * time.Second
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20 // 1MB
	DefaultMaxBodyBytes      = 1 << 20 // 1MB
)

// ServerConfig holds configuration for the HTTP server and router.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	MaxHeaderBytes    int
	MaxBodyBytes      int64

	// TLS is used when both files are set.
	TLSCertFile string
	TLSKeyFile  string
}

// applyDefaults sets default values for any unset (zero) fields.
func (cfg *ServerConfig) applyDefaults() {
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if cfg.MaxHeaderBytes <= 0 {
		cfg.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
}

func (cfg *ServerConfig) tlsEnabled() bool {
	return cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""
}

// APIServer serves the planner API and /health.
type APIServer struct {
	server   *http.Server
	certFile string
	keyFile  string
}

// NewAPIServer mounts apiHandler at the root next to /health.
// Zero config values fall back to the defaults above; TLS is used when both
// certificate files are set.
func NewAPIServer(apiHandler http.Handler, cfg ServerConfig) *APIServer {
	cfg.applyDefaults()

	router := setupRouter(apiHandler, cfg)
	httpServer := setupHTTPServer(router, cfg)

	s := &APIServer{server: httpServer}
	if cfg.tlsEnabled() {
		s.certFile = cfg.TLSCertFile
		s.keyFile = cfg.TLSKeyFile
	}
	return s
}

// setupRouter wraps the planner routes with request logging, panic recovery
// and the body size limit. Requests are traced by otelhttp.
func setupRouter(apiHandler http.Handler, cfg ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(mw.MaxBodyBytes(cfg.MaxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			slog.ErrorContext(r.Context(), "Failed to write health check response", "error", err)
		}
	})

	r.Mount("/", apiHandler)

	return otelhttp.NewHandler(r, "tutorplan.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// setupHTTPServer creates the net/http.Server with the given router and config.
func setupHTTPServer(router http.Handler, cfg ServerConfig) *http.Server {
	return &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}

// Start starts the HTTP server and blocks until it stops.
// A graceful Shutdown is not reported as an error.
func (s *APIServer) Start() error {
	tls := s.certFile != ""
	slog.Info("Starting HTTP server", "addr", s.server.Addr, "tls", tls)

	var err error
	if tls {
		err = s.server.ListenAndServeTLS(s.certFile, s.keyFile)
	} else {
		err = s.server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the HTTP server.
// The provided context controls the timeout for outstanding requests.
func (s *APIServer) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler returns the server's root handler.
func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

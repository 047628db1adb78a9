package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/tphakala/zoolog/internal/api/middleware"
	v1 "github.com/tphakala/zoolog/internal/api/v1"
	"github.com/tphakala/zoolog/internal/appctx"
	"github.com/tphakala/zoolog/internal/buildinfo"
	"github.com/tphakala/zoolog/internal/conf"
	"github.com/tphakala/zoolog/internal/logger"
	"github.com/tphakala/zoolog/internal/observability"
)

// Server is the local HTTP server. It owns the Echo instance, middleware
// and the v1 controller.
type Server struct {
	echo     *echo.Echo
	config   *Config
	settings *conf.Settings
	log      logger.Logger

	// Dependencies
	newSession v1.SessionFactory
	animals    v1.AnimalLister
	app        *appctx.Context
	metrics    *observability.Metrics
	build      buildinfo.BuildInfo

	apiController *v1.Controller
	startTime     time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) { s.log = l }
}

// WithAnimals enables the animal picker.
func WithAnimals(a v1.AnimalLister) ServerOption {
	return func(s *Server) { s.animals = a }
}

// WithAppContext shares the application context.
func WithAppContext(app *appctx.Context) ServerOption {
	return func(s *Server) { s.app = app }
}

// WithMetrics enables request metrics and, when configured, /metrics.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithBuildInfo sets the version reported by /health.
func WithBuildInfo(b buildinfo.BuildInfo) ServerOption {
	return func(s *Server) { s.build = b }
}

// New creates the server. factory opens capture sessions.
func New(settings *conf.Settings, factory v1.SessionFactory, opts ...ServerOption) (*Server, error) {
	config := ConfigFromSettings(settings)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s := &Server{
		config:     config,
		settings:   settings,
		newSession: factory,
		startTime:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = GetLogger()
	}
	if s.build == nil {
		s.build = &buildinfo.Context{}
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}

	s.log.Info("HTTP server initialized",
		logger.String("listen", config.Listen),
		logger.Bool("metrics", config.Metrics && s.metrics != nil),
		logger.Duration("session_ttl", config.SessionTTL))
	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recovery middleware - should be first
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestLogger(s.log))

	s.echo.Use(mw.Security(s.config.AllowedOrigins)...)
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))

	if s.metrics != nil {
		s.echo.Use(mw.NewHTTPMetrics(s.metrics.HTTP))
	}
	if limiter := mw.NewRateLimiter(mw.RateLimitConfig{
		Rate:      s.config.RateLimit,
		Burst:     max(1, int(s.config.RateLimit*2)),
		ExpiresIn: 3 * time.Minute,
	}); limiter != nil {
		s.echo.Use(limiter)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() error {
	s.echo.GET("/health", s.healthCheck)
	if s.config.Metrics && s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	opts := []v1.Option{v1.WithLogger(s.log.Module("v1"))}
	if s.animals != nil {
		opts = append(opts, v1.WithAnimals(s.animals))
	}
	if s.app != nil {
		opts = append(opts, v1.WithAppContext(s.app))
	}

	settings := s.settings
	if settings == nil {
		settings = &conf.Settings{}
	}
	cs := *settings
	cs.Server.SessionTTL = s.config.SessionTTL
	controller, err := v1.New(s.echo, &cs, s.newSession, opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize API v1: %w", err)
	}
	s.apiController = controller
	return nil
}

// healthCheck handles the server health check endpoint.
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"version":        s.build.GetVersion(),
		"build_date":     s.build.GetBuildDate(),
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"open_sessions":  s.apiController.SessionCount(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.echo.Listener = ln
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting HTTP server", logger.String("address", ln.Addr().String()))
		errCh <- s.echo.Start("")
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.log.Info("shutdown signal received, initiating graceful shutdown")
		return s.Shutdown()
	}
}

// Shutdown discards open sessions and stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if s.apiController != nil {
		s.apiController.Shutdown()
	}
	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.log.Info("server shutdown complete")
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// APIController returns the v1 controller.
func (s *Server) APIController() *v1.Controller {
	return s.apiController
}

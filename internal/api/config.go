// Package api provides the HTTP server for the zoolog local API. The JSON
// endpoints live in the v1 subpackage.
package api

import (
	"fmt"
	"net"
	"time"

	"github.com/tphakala/zoolog/internal/conf"
	"github.com/tphakala/zoolog/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Default constants for the HTTP server.
const (
	DefaultListen          = "127.0.0.1:8780"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 5 * time.Minute // submit may upload a video
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultBodyLimit       = "64M"
	DefaultSessionTTL      = 30 * time.Minute
)

// Config holds the HTTP server configuration.
type Config struct {
	Listen string

	// Timeouts
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Limits
	BodyLimit  string  // e.g. "64M"
	RateLimit  float64 // requests per second per client, 0 disables
	SessionTTL time.Duration

	AllowedOrigins []string
	Metrics        bool
	Debug          bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:          DefaultListen,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		BodyLimit:       DefaultBodyLimit,
		SessionTTL:      DefaultSessionTTL,
	}
}

// ConfigFromSettings creates a Config from the application settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()
	if settings == nil {
		return cfg
	}
	if settings.Server.Listen != "" {
		cfg.Listen = settings.Server.Listen
	}
	if settings.Server.SessionTTL > 0 {
		cfg.SessionTTL = settings.Server.SessionTTL
	}
	cfg.RateLimit = settings.Server.RateLimit
	cfg.AllowedOrigins = settings.Server.AllowedOrigins
	cfg.Metrics = settings.Server.Metrics
	cfg.Debug = settings.Main.Debug
	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit cannot be negative")
	}
	return nil
}

// String returns a human-readable representation of the config.
func (c *Config) String() string {
	limit := "off"
	if c.RateLimit > 0 {
		limit = fmt.Sprintf("%.1f/s", c.RateLimit)
	}
	return fmt.Sprintf("Server Config: listen=%s, rate_limit=%s, session_ttl=%s, metrics=%v",
		c.Listen, limit, c.SessionTTL, c.Metrics)
}

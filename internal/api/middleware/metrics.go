package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/observability/metrics"
)

// NewHTTPMetrics records request counts and latency per route pattern.
func NewHTTPMetrics(m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			m.RecordHTTPRequest(c.Request().Method, path, status, time.Since(start))
			return err
		}
	}
}

// RateLimitConfig limits requests per client IP
type RateLimitConfig struct {
	Rate      float64 // requests per second
	Burst     int
	ExpiresIn time.Duration
	// Deny renders the rejection; nil answers with a plain 429.
	Deny func(c echo.Context) error
}

// NewRateLimiter returns a per-IP rate limiter, or nil when Rate is zero.
func NewRateLimiter(config RateLimitConfig) echo.MiddlewareFunc {
	if config.Rate <= 0 {
		return nil
	}
	deny := config.Deny
	if deny == nil {
		deny = func(c echo.Context) error {
			return c.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Too many requests, please wait before trying again",
			})
		}
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(config.Rate),
				Burst:     config.Burst,
				ExpiresIn: config.ExpiresIn,
			},
		),
		IdentifierExtractor: middleware.DefaultRateLimiterConfig.IdentifierExtractor,
		ErrorHandler: func(c echo.Context, err error) error {
			return deny(c)
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return deny(c)
		},
	})
}

// Package api implements the local JSON API the capture UI drives. Each open
// entry screen owns one capture session addressed by ID.
package api

import (
	"context"
	"crypto/rand"
	"math/big"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/zoolog/internal/api/middleware"
	"github.com/tphakala/zoolog/internal/appctx"
	"github.com/tphakala/zoolog/internal/backend"
	"github.com/tphakala/zoolog/internal/capture"
	"github.com/tphakala/zoolog/internal/conf"
	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/i18n"
	"github.com/tphakala/zoolog/internal/logger"
)

const (
	// Prefix is the route prefix of this API version
	Prefix = "/api/v1"

	defaultSessionTTL   = 30 * time.Minute
	defaultMaxUpload    = 64 << 20
	sessionRateBurst    = 20
	sessionRateLifetime = 3 * time.Minute
)

// SessionFactory opens a new capture session wired to the running services.
type SessionFactory func(ctx context.Context) (*capture.Session, error)

// AnimalLister lists animals for the animal picker
type AnimalLister interface {
	ListAnimals(ctx context.Context) ([]backend.Animal, error)
}

// Controller manages the API routes and handlers
type Controller struct {
	Echo  *echo.Echo
	Group *echo.Group

	settings   *conf.Settings
	newSession SessionFactory
	animals    AnimalLister
	app        *appctx.Context
	sessions   *cache.Cache
	sessionTTL time.Duration
	maxUpload  int64
	log        logger.Logger
}

// Option configures a Controller
type Option func(*Controller)

// WithAnimals enables the animal picker routes
func WithAnimals(a AnimalLister) Option {
	return func(c *Controller) { c.animals = a }
}

// WithAppContext shares the application context with the sessions
func WithAppContext(app *appctx.Context) Option {
	return func(c *Controller) { c.app = app }
}

// WithLogger sets the controller logger
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithMaxUpload caps the size of a single attachment
func WithMaxUpload(n int64) Option {
	return func(c *Controller) { c.maxUpload = n }
}

// New creates the controller and registers its routes on e.
func New(e *echo.Echo, settings *conf.Settings, factory SessionFactory, opts ...Option) (*Controller, error) {
	if e == nil {
		return nil, errors.Newf("echo instance cannot be nil").
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if factory == nil {
		return nil, errors.Newf("session factory cannot be nil").
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if settings == nil {
		settings = &conf.Settings{}
	}

	c := &Controller{
		Echo:       e,
		settings:   settings,
		newSession: factory,
		sessionTTL: settings.Server.SessionTTL,
		maxUpload:  defaultMaxUpload,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Global().Module("api")
	}
	if c.app == nil {
		c.app = appctx.New(settings.Capture.Language)
	}
	if c.sessionTTL <= 0 {
		c.sessionTTL = defaultSessionTTL
	}

	c.sessions = cache.New(c.sessionTTL, c.sessionTTL/2)
	c.sessions.OnEvicted(func(id string, v any) {
		if s, ok := v.(*capture.Session); ok {
			s.Discard()
			c.log.Debug("session released", logger.String("session_id", id))
		}
	})

	c.Group = e.Group(Prefix)
	c.initRoutes()
	return c, nil
}

func (c *Controller) initRoutes() {
	c.Group.GET("/me", c.GetProfile)
	c.Group.PATCH("/settings", c.UpdateSettings)

	c.Group.GET("/animals", c.ListAnimals)
	c.Group.PUT("/animals/selected", c.SelectAnimal)

	// Opening sessions touches the microphone and backend, keep clients honest
	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Rate:      float64(sessionRateBurst) / sessionRateLifetime.Seconds(),
		Burst:     sessionRateBurst,
		ExpiresIn: sessionRateLifetime,
		Deny: func(ctx echo.Context) error {
			err := errors.Newf("too many sessions opened").
				Component("api").
				Category(errors.CategoryLimit).
				Context(capture.ContextMessageID, string(i18n.MsgBusy)).
				Build()
			return c.HandleError(ctx, err, capture.UserMessage(err, c.language(ctx)), http.StatusTooManyRequests)
		},
	})
	c.Group.POST("/sessions", c.CreateSession, limiter)

	s := c.Group.Group("/sessions/:id")
	s.GET("", c.GetSession)
	s.DELETE("", c.DeleteSession)
	s.PATCH("/input", c.UpdateInput)
	s.POST("/recording/start", c.StartRecording)
	s.POST("/recording/stop", c.StopRecording)
	s.POST("/recording/reset", c.ResetRecording)
	s.POST("/process", c.ProcessInput)
	s.PATCH("/form", c.UpdateForm)
	s.POST("/back", c.Back)
	s.POST("/attachments", c.AddAttachment)
	s.DELETE("/attachments/:attachment", c.RemoveAttachment)
	s.POST("/submit", c.Submit)
	s.POST("/gate-photo", c.AttachGatePhoto)
	s.POST("/finish", c.Finish)
}

// SessionCount returns the number of open sessions
func (c *Controller) SessionCount() int {
	return c.sessions.ItemCount()
}

// Shutdown discards every open session, releasing the microphone.
func (c *Controller) Shutdown() {
	for id := range c.sessions.Items() {
		c.sessions.Delete(id)
	}
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	Category      string `json:"category,omitempty"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	resp := &ErrorResponse{
		Error:         err.Error(),
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		resp.Category = string(ee.Category)
	}
	return resp
}

// generateCorrelationID creates a unique identifier for error tracking
func generateCorrelationID() string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	const length = 8

	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "ERR-RAND"
		}
		b[i] = charset[n.Int64()]
	}
	return string(b)
}

// HandleError writes err as an ErrorResponse and logs it with the correlation ID.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)
	fields := []logger.Field{
		logger.Error(err),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.Int("code", code),
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("ip", ctx.RealIP()),
	}
	if code >= http.StatusInternalServerError {
		c.log.Error("request failed", fields...)
	} else {
		c.log.Debug("request rejected", fields...)
	}
	return ctx.JSON(code, resp)
}

// handleSessionError renders a capture error with its localized notice.
func (c *Controller) handleSessionError(ctx echo.Context, err error) error {
	return c.HandleError(ctx, err, capture.UserMessage(err, c.language(ctx)), statusFor(err))
}

// language prefers the request's Accept-Language over the app setting.
func (c *Controller) language(ctx echo.Context) string {
	if h := ctx.Request().Header.Get("Accept-Language"); h != "" {
		return i18n.Code(i18n.Match(h))
	}
	return c.app.Language()
}

// statusFor maps an error category to the HTTP status the UI reacts to.
func statusFor(err error) int {
	var ee *errors.EnhancedError
	if !errors.As(err, &ee) {
		return http.StatusInternalServerError
	}
	switch ee.Category {
	case errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryState, errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryPermission:
		return http.StatusForbidden
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryUnsupported, errors.CategoryAudio, errors.CategoryLimit:
		return http.StatusUnprocessableEntity
	case errors.CategoryDeviceBusy:
		return http.StatusLocked
	case errors.CategoryNetwork, errors.CategoryHTTP, errors.CategoryTranscription, errors.CategoryNotification:
		return http.StatusBadGateway
	case errors.CategoryTimeout:
		return http.StatusGatewayTimeout
	case errors.CategoryCancellation:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

package notification

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tphakala/zoolog/internal/conf"
	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/logger"
	"github.com/tphakala/zoolog/internal/observability/metrics"
)

// Delivery defaults
const (
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 6.0 // alerts per minute per provider
	DefaultBurst     = 3
)

var (
	// ErrNoProviders is returned when no push provider is configured.
	ErrNoProviders = errors.NewStd("no notification providers configured")
	// ErrRateLimited is returned for a provider whose budget is spent.
	ErrRateLimited = errors.NewStd("notification rate limit exceeded")
)

// Config tunes delivery
type Config struct {
	Timeout   time.Duration // per provider
	RateLimit float64       // alerts per minute per provider
	Burst     int
}

type target struct {
	provider Provider
	limiter  *rate.Limiter
}

// Service fans an alert out to every provider concurrently.
type Service struct {
	targets []target
	timeout time.Duration
	metrics *metrics.NotificationMetrics
	log     logger.Logger

	closeOnce sync.Once
}

// NewService creates a service for the given providers
func NewService(config Config, providers []Provider, m *metrics.NotificationMetrics, log logger.Logger) *Service {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.RateLimit <= 0 {
		config.RateLimit = DefaultRateLimit
	}
	if config.Burst <= 0 {
		config.Burst = DefaultBurst
	}
	if log == nil {
		log = logger.Global().Module("notification")
	}

	s := &Service{timeout: config.Timeout, metrics: m, log: log}
	every := rate.Every(time.Duration(float64(time.Minute) / config.RateLimit))
	for _, p := range providers {
		s.targets = append(s.targets, target{provider: p, limiter: rate.NewLimiter(every, config.Burst)})
	}
	return s
}

// NewFromSettings builds the providers enabled in settings. It returns nil
// when notifications are disabled.
func NewFromSettings(settings *conf.NotificationSettings, m *metrics.NotificationMetrics, log logger.Logger) (*Service, error) {
	if settings == nil || !settings.Enabled {
		return nil, nil
	}
	if log == nil {
		log = logger.Global().Module("notification")
	}

	var providers []Provider
	if len(settings.URLs) > 0 {
		p, err := NewShoutrrrProvider("shoutrrr", settings.URLs, settings.Timeout)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if settings.MQTT.Enabled {
		p, err := NewMQTTProvider(MQTTConfig{
			Broker:   settings.MQTT.Broker,
			Topic:    settings.MQTT.Topic,
			ClientID: settings.MQTT.ClientID,
			Username: settings.MQTT.Username,
			Password: settings.MQTT.Password,
			QoS:      settings.MQTT.QoS,
			Retain:   settings.MQTT.Retain,
		}, log)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		return nil, errors.New(ErrNoProviders).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}

	return NewService(Config{
		Timeout:   settings.Timeout,
		RateLimit: settings.RateLimit,
		Burst:     settings.Burst,
	}, providers, m, log), nil
}

// Providers returns the configured provider names
func (s *Service) Providers() []string {
	names := make([]string, 0, len(s.targets))
	for _, t := range s.targets {
		names = append(names, t.provider.Name())
	}
	return names
}

// NotifyEmergency delivers the alert to all providers. It succeeds when at
// least one provider accepted it; otherwise every failure is returned.
func (s *Service) NotifyEmergency(ctx context.Context, alert Alert) error {
	if len(s.targets) == 0 {
		return errors.New(ErrNoProviders).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	alert.normalize()

	failures := make([]error, len(s.targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range s.targets {
		g.Go(func() error {
			failures[i] = s.deliver(gctx, t, &alert)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, err := range failures {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(s.targets) {
		return errors.New(errors.Join(errs...)).
			Component("notification").
			Category(errors.CategoryNotification).
			Context("alert_id", alert.ID).
			Context("providers", len(s.targets)).
			Build()
	}
	if len(errs) > 0 {
		s.log.Warn("emergency alert partially delivered",
			logger.String("alert_id", alert.ID),
			logger.Int("failed", len(errs)),
			logger.Int("providers", len(s.targets)))
	}
	return nil
}

func (s *Service) deliver(ctx context.Context, t target, alert *Alert) error {
	name := t.provider.Name()
	if !t.limiter.Allow() {
		s.metrics.RecordDelivery(name, metrics.StatusRejected, 0)
		s.log.Warn("emergency alert rate limited", logger.String("provider", name))
		return errors.New(ErrRateLimited).
			Component("notification").
			Category(errors.CategoryLimit).
			Context("provider", name).
			Build()
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := t.provider.Send(ctx, alert)
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.RecordDelivery(name, metrics.StatusError, elapsed)
		s.log.Error("emergency alert delivery failed",
			logger.String("provider", name),
			logger.String("alert_id", alert.ID),
			logger.Duration("elapsed", elapsed),
			logger.Error(err))
		return err
	}
	s.metrics.RecordDelivery(name, metrics.StatusSuccess, elapsed)
	s.log.Info("emergency alert delivered",
		logger.String("provider", name),
		logger.String("alert_id", alert.ID),
		logger.Duration("elapsed", elapsed))
	return nil
}

// Close releases provider connections
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		for _, t := range s.targets {
			if c, ok := t.provider.(interface{ Close() }); ok {
				c.Close()
			}
		}
	})
}

// Package app assembles the zoolog services from settings and owns their
// lifetime. The CLI commands and the local API server both run on an App.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tphakala/zoolog/internal/api"
	"github.com/tphakala/zoolog/internal/appctx"
	"github.com/tphakala/zoolog/internal/backend"
	"github.com/tphakala/zoolog/internal/buildinfo"
	"github.com/tphakala/zoolog/internal/capture"
	"github.com/tphakala/zoolog/internal/conf"
	"github.com/tphakala/zoolog/internal/datastore"
	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/logger"
	"github.com/tphakala/zoolog/internal/notification"
	"github.com/tphakala/zoolog/internal/observability"
	"github.com/tphakala/zoolog/internal/recorder"
)

// App holds the long-lived services
type App struct {
	Settings   *conf.Settings
	Build      buildinfo.BuildInfo
	Backend    *backend.Client
	Store      *datastore.Store
	Context    *appctx.Context
	Metrics    *observability.Metrics
	Notifier   *notification.Service // nil when push notifications are off
	Microphone recorder.Microphone

	log logger.Logger
	now func() time.Time
}

// Option configures New
type Option func(*options)

type options struct {
	transport  http.RoundTripper
	microphone recorder.Microphone
	log        logger.Logger
	now        func() time.Time
}

// WithBackendTransport replaces the backend HTTP transport.
func WithBackendTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithMicrophone replaces the sound card microphone.
func WithMicrophone(m recorder.Microphone) Option {
	return func(o *options) { o.microphone = m }
}

// WithLogger sets the parent logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates every service. Close releases them.
func New(settings *conf.Settings, build buildinfo.BuildInfo, opts ...Option) (*App, error) {
	if settings == nil {
		return nil, errors.Newf("settings are required").
			Component("app").
			Category(errors.CategoryConfiguration).
			Build()
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Global().Module("app")
	}
	if build == nil {
		build = &buildinfo.Context{}
	}

	a := &App{
		Settings: settings,
		Build:    build,
		Context:  appctx.New(settings.Capture.Language),
		log:      o.log,
		now:      o.now,
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}
	a.Metrics = m

	clientOpts := []backend.Option{
		backend.WithMetrics(m.Backend),
		backend.WithLogger(o.log.Module("backend")),
	}
	if o.transport != nil {
		clientOpts = append(clientOpts, backend.WithTransport(o.transport))
	}
	a.Backend, err = backend.NewClient(backend.Config{
		BaseURL:        settings.Backend.URL,
		Timeout:        settings.Backend.Timeout,
		UserAgent:      userAgent(settings, build),
		StructurePath:  settings.Backend.StructurePath,
		AnimalCacheTTL: settings.Backend.AnimalCacheTTL,
	}, clientOpts...)
	if err != nil {
		return nil, err
	}

	a.Store, err = datastore.Open(settings.Datastore.Path, o.log.Module("datastore"))
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Notifier, err = notification.NewFromSettings(&settings.Notification, m.Notification, o.log.Module("notification"))
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Microphone = o.microphone
	if a.Microphone == nil {
		a.Microphone = recorder.NewMalgoMicrophone(recorder.Config{
			Device:      settings.Audio.Device,
			SampleRate:  settings.Audio.SampleRate,
			Channels:    settings.Audio.Channels,
			MaxDuration: settings.Audio.MaxDuration,
		}, o.log.Module("recorder"))
	}

	return a, nil
}

func userAgent(settings *conf.Settings, build buildinfo.BuildInfo) string {
	name := settings.Main.Name
	if name == "" {
		name = "zoolog"
	}
	return fmt.Sprintf("%s/%s", name, build.GetVersion())
}

// CaptureOptions maps the capture settings onto session options
func (a *App) CaptureOptions() capture.Options {
	return capture.Options{
		AnimalSelection: a.Settings.Capture.AnimalSelection,
		SafetyGate:      a.Settings.Capture.SafetyGate,
		FormEditLock:    a.Settings.Capture.FormEditLock,
		UploadMedia:     a.Settings.Capture.UploadMedia,
		Location:        a.Settings.Location(),
	}
}

// NewSession starts a capture session wired to the backend
func (a *App) NewSession(_ context.Context) (*capture.Session, error) {
	deps := capture.Deps{
		Microphone:  a.Microphone,
		Transcriber: a.Backend,
		Structurer: capture.ServerStructurer{
			Service: a.Backend,
			Log:     a.log.Module("structurer"),
		},
		Store:   a.Backend,
		Animals: a.Backend,
		Alerter: a.Backend,
		App:     a.Context,
		Metrics: a.Metrics.Capture,
		Log:     a.log.Module("capture"),
		Now:     a.now,
	}
	if a.Notifier != nil {
		deps.Notifier = a.Notifier
	}
	return capture.New(deps, a.CaptureOptions())
}

// Server builds the local HTTP API on top of this App
func (a *App) Server() (*api.Server, error) {
	return api.New(a.Settings, a.NewSession,
		api.WithLogger(a.log.Module("api")),
		api.WithAnimals(a.Backend),
		api.WithAppContext(a.Context),
		api.WithMetrics(a.Metrics),
		api.WithBuildInfo(a.Build))
}

// Close releases the services. Safe on a partially built App.
func (a *App) Close() {
	if a.Notifier != nil {
		a.Notifier.Close()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.log.Warn("closing credential store failed", logger.Error(err))
		}
	}
	if a.Backend != nil {
		a.Backend.Close()
	}
}

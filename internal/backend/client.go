package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"

	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/httpclient"
	"github.com/tphakala/zoolog/internal/logger"
	"github.com/tphakala/zoolog/internal/observability/metrics"
)

// maxErrorBody caps how much of an error response is read and logged.
const maxErrorBody = 4 << 10

// ErrNotLoggedIn is returned by authenticated calls when no valid token is set.
var ErrNotLoggedIn = errors.NewStd("not logged in")

// Client talks to the zoo backend. Safe for concurrent use.
type Client struct {
	config  Config
	anon    *httpclient.Client // login only
	http    *httpclient.Client // bearer authenticated
	tokens  *tokenSource
	cache   *cache.Cache
	metrics *metrics.BackendMetrics
	log     logger.Logger
}

// Option configures a Client
type Option func(*options)

type options struct {
	transport http.RoundTripper
	metrics   *metrics.BackendMetrics
	log       logger.Logger
}

// WithTransport replaces the pooled HTTP transport, used by tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithMetrics records request metrics.
func WithMetrics(m *metrics.BackendMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// NewClient creates a backend client
func NewClient(config Config, opts ...Option) (*Client, error) {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}
	if config.UserAgent == "" {
		config.UserAgent = def.UserAgent
	}
	if config.AnimalCacheTTL == 0 {
		config.AnimalCacheTTL = def.AnimalCacheTTL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if !strings.HasPrefix(config.BaseURL, "http://") && !strings.HasPrefix(config.BaseURL, "https://") {
		return nil, errors.Newf("backend URL must start with http:// or https://: %q", config.BaseURL).
			Component("backend").
			Category(errors.CategoryConfiguration).
			Build()
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logger.Global().Module("backend")
	}

	anon := httpclient.New(&httpclient.Config{
		DefaultTimeout: config.Timeout,
		UserAgent:      config.UserAgent,
		Transport:      o.transport,
	})
	tokens := &tokenSource{}
	authed := anon.WithTransport(func(base http.RoundTripper) http.RoundTripper {
		return &oauth2.Transport{Source: tokens, Base: base}
	})

	c := &Client{
		config:  config,
		anon:    anon,
		http:    authed,
		tokens:  tokens,
		cache:   cache.New(config.AnimalCacheTTL, config.AnimalCacheTTL*2),
		metrics: o.metrics,
		log:     o.log,
	}

	c.log.Info("backend client initialized",
		logger.String("base_url", config.BaseURL),
		logger.Duration("timeout", config.Timeout),
		logger.Bool("server_structuring", config.StructurePath != ""))

	return c, nil
}

// Close releases idle connections and cached data
func (c *Client) Close() {
	c.cache.Flush()
	c.anon.Close()
}

// BaseURL returns the configured backend URL
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// tokenSource is an oauth2.TokenSource whose token can be replaced at runtime.
type tokenSource struct {
	mu  sync.RWMutex
	tok *oauth2.Token
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tok == nil || !s.tok.Valid() {
		return nil, ErrNotLoggedIn
	}
	return s.tok, nil
}

func (s *tokenSource) set(tok *oauth2.Token) {
	s.mu.Lock()
	s.tok = tok
	s.mu.Unlock()
}

// request describes one backend call
type request struct {
	op          string
	method      string
	path        string
	body        io.Reader
	contentType string
}

// doJSON marshals payload as the request body and decodes the response into out.
func (c *Client) doJSON(ctx context.Context, op, method, path string, payload, out any) error {
	var body io.Reader = http.NoBody
	contentType := ""
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return errors.New(err).
				Component("backend").
				Category(errors.CategoryValidation).
				Context("operation", op).
				Build()
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, request{op: op, method: method, path: path, body: body, contentType: contentType}, out)
}

// do executes an authenticated request, records metrics and maps failures to
// categorized errors. A nil out discards the response body.
func (c *Client) do(ctx context.Context, r request, out any) error {
	url := c.config.BaseURL + r.path
	req, err := http.NewRequestWithContext(ctx, r.method, url, r.body)
	if err != nil {
		return errors.New(err).
			Component("backend").
			Category(errors.CategoryHTTP).
			Context("operation", r.op).
			Build()
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		c.metrics.RecordRequest(r.op, 0, time.Since(start))
		return c.transportError(err, r.op, url)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Debug("failed to close response body", logger.Error(err))
		}
	}()
	c.metrics.RecordRequest(r.op, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(resp, r.op)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.New(err).
			Component("backend").
			Category(errors.CategoryHTTP).
			Context("operation", r.op).
			Context("status_code", resp.StatusCode).
			Context("stage", "decode-response").
			Build()
	}
	return nil
}

func (c *Client) transportError(err error, op, url string) error {
	if errors.Is(err, ErrNotLoggedIn) {
		return errors.New(ErrNotLoggedIn).
			Component("backend").
			Category(errors.CategoryAuth).
			Context("operation", op).
			Build()
	}
	c.log.Warn("backend request failed",
		logger.String("operation", op),
		logger.Error(err))

	category := errors.CategoryNetwork
	switch {
	case errors.Is(err, context.Canceled):
		category = errors.CategoryCancellation
	case errors.Is(err, context.DeadlineExceeded):
		category = errors.CategoryTimeout
	}
	return errors.New(err).
		Component("backend").
		Category(category).
		NetworkContext(url, c.config.Timeout).
		Context("operation", op).
		Build()
}

func (c *Client) statusError(resp *http.Response, op string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := errorDetail(raw)

	c.log.Warn("backend returned error status",
		logger.String("operation", op),
		logger.Int("status_code", resp.StatusCode),
		logger.String("detail", logger.RedactSensitiveData(detail)))

	category := errors.CategoryHTTP
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		category = errors.CategoryAuth
	case http.StatusNotFound:
		category = errors.CategoryNotFound
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		category = errors.CategoryValidation
	}

	msg := fmt.Sprintf("%s failed with status %d", op, resp.StatusCode)
	if detail != "" {
		msg += ": " + detail
	}
	return errors.Newf("%s", msg).
		Component("backend").
		Category(category).
		Context("operation", op).
		Context("status_code", resp.StatusCode).
		Build()
}

// errorDetail extracts the FastAPI detail message from an error body.
func errorDetail(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var apiErr apiError
	if err := json.Unmarshal(raw, &apiErr); err != nil || apiErr.Detail == nil {
		return strings.TrimSpace(string(raw))
	}
	switch d := apiErr.Detail.(type) {
	case string:
		return d
	case []any:
		// request validation errors: [{"loc": [...], "msg": "..."}]
		msgs := make([]string, 0, len(d))
		for _, item := range d {
			if m, ok := item.(map[string]any); ok {
				if s, ok := m["msg"].(string); ok {
					msgs = append(msgs, s)
				}
			}
		}
		return strings.Join(msgs, "; ")
	default:
		return fmt.Sprint(d)
	}
}

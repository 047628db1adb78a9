package notification

import (
	"context"
	"io"
	"log"
	"slices"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tphakala/zoolog/internal/errors"
)

// Provider delivers an alert to one external channel.
// Implementations must be safe for concurrent use.
type Provider interface {
	Name() string
	Send(ctx context.Context, alert *Alert) error
}

// sender is the part of the shoutrrr router the provider uses
type sender interface {
	Send(message string, params *stypes.Params) []error
}

// ShoutrrrProvider sends through nicholas-fedor/shoutrrr. One router serves
// every configured URL.
type ShoutrrrProvider struct {
	name   string
	urls   []string
	sender sender
}

// NewShoutrrrProvider validates the URLs and builds the router
func NewShoutrrrProvider(name string, urls []string, timeout time.Duration) (*ShoutrrrProvider, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("at least one notification URL is required").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	router, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, errors.Newf("invalid notification URL: %s", redactURLs(err.Error(), urls)).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if timeout > 0 {
		router.Timeout = timeout
	}
	router.SetLogger(log.New(io.Discard, "", 0))

	if name = strings.TrimSpace(name); name == "" {
		name = "shoutrrr"
	}
	return &ShoutrrrProvider{name: name, urls: slices.Clone(urls), sender: router}, nil
}

func (s *ShoutrrrProvider) Name() string { return s.name }

// Send ignores ctx; the router applies its own timeout.
func (s *ShoutrrrProvider) Send(_ context.Context, alert *Alert) error {
	params := stypes.Params{}
	params.SetTitle(alert.Title())

	for _, err := range s.sender.Send(alert.Body(), &params) {
		if err != nil {
			return errors.Newf("%s", redactURLs(err.Error(), s.urls)).
				Component("notification").
				Category(errors.CategoryNotification).
				Context("provider", s.name).
				Build()
		}
	}
	return nil
}

// redactURLs removes service URLs, which carry tokens, from error text.
func redactURLs(msg string, urls []string) string {
	for _, u := range urls {
		scheme, _, ok := strings.Cut(u, "://")
		if !ok {
			scheme = "url"
		}
		msg = strings.ReplaceAll(msg, u, scheme+"://[REDACTED]")
	}
	return msg
}

package backend

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/logger"
	"github.com/tphakala/zoolog/internal/observability/metrics"
)

// Login exchanges username and password for a bearer token using the OAuth2
// password grant, installs the token and returns it with the account profile.
func (c *Client) Login(ctx context.Context, username, password string) (*oauth2.Token, *User, error) {
	if username == "" || password == "" {
		return nil, nil, errors.ValidationError("username and password are required")
	}

	cfg := &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.config.BaseURL + pathLogin,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.anon.StdClient())

	start := time.Now()
	tok, err := cfg.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		return nil, nil, c.loginError(err, start)
	}
	c.metrics.RecordRequest(metrics.OpLogin, http.StatusOK, time.Since(start))

	if tok.Expiry.IsZero() {
		tok.Expiry = time.Now().Add(DefaultTokenLifetime)
	}
	c.SetToken(tok)

	user, err := c.Me(ctx)
	if err != nil {
		c.SetToken(nil)
		return nil, nil, err
	}

	c.log.Info("logged in",
		logger.String("user_id", user.ID),
		logger.String("role", user.Role),
		logger.Time("expires", tok.Expiry))
	return tok, user, nil
}

func (c *Client) loginError(err error, start time.Time) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		status := retrieveErr.Response.StatusCode
		c.metrics.RecordRequest(metrics.OpLogin, status, time.Since(start))
		detail := errorDetail(retrieveErr.Body)
		if detail == "" {
			detail = "login rejected"
		}
		category := errors.CategoryAuth
		if status >= http.StatusInternalServerError {
			category = errors.CategoryHTTP
		}
		return errors.Newf("%s", detail).
			Component("backend").
			Category(category).
			Context("operation", metrics.OpLogin).
			Context("status_code", status).
			Build()
	}
	c.metrics.RecordRequest(metrics.OpLogin, 0, time.Since(start))
	return c.transportError(err, metrics.OpLogin, c.config.BaseURL+pathLogin)
}

// Me returns the profile of the logged in account
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.doJSON(ctx, metrics.OpMe, http.MethodGet, pathMe, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SetToken installs a bearer token, e.g. one restored from the credential
// store. nil logs out.
func (c *Client) SetToken(tok *oauth2.Token) {
	c.tokens.set(tok)
	if tok == nil {
		c.cache.Flush()
	}
}

// LoggedIn reports whether a valid token is installed
func (c *Client) LoggedIn() bool {
	_, err := c.tokens.Token()
	return err == nil
}

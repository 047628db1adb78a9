package app

import (
	"context"

	"github.com/tphakala/zoolog/internal/appctx"
	"github.com/tphakala/zoolog/internal/backend"
	"github.com/tphakala/zoolog/internal/datastore"
	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/logger"
)

// ErrNotLoggedIn is returned when no valid stored credential exists
var ErrNotLoggedIn = errors.NewStd("not logged in")

// Restore loads the stored credential into the backend client and the app
// context. An expired or missing credential leaves the app signed out and
// returns ErrNotLoggedIn.
func (a *App) Restore(ctx context.Context) (*appctx.User, error) {
	cred, err := a.Store.Current(ctx)
	if errors.Is(err, datastore.ErrNoCredential) {
		return nil, notLoggedIn()
	}
	if err != nil {
		return nil, err
	}
	if !cred.Valid(a.now()) {
		a.log.Info("stored credential expired", logger.String("username", cred.Username))
		return nil, notLoggedIn()
	}

	a.Backend.SetToken(cred.Token())
	user := cred.User()
	a.Context.AuthWriter().SetUser(user)
	return user, nil
}

// Login authenticates against the backend and stores the credential
func (a *App) Login(ctx context.Context, username, password string) (*appctx.User, error) {
	tok, profile, err := a.Backend.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	user := toAppUser(profile)
	if err := a.Store.SaveCredential(ctx, datastore.NewCredential(username, tok, user)); err != nil {
		return nil, err
	}
	a.Context.AuthWriter().SetUser(user)
	a.log.Info("logged in",
		logger.String("username", username),
		logger.String("role", string(user.Role)))
	return user, nil
}

// Logout forgets the credential everywhere
func (a *App) Logout(ctx context.Context) error {
	a.Backend.SetToken(nil)
	a.Context.AuthWriter().SetUser(nil)
	return a.Store.Clear(ctx)
}

func toAppUser(u *backend.User) *appctx.User {
	if u == nil {
		return nil
	}
	return &appctx.User{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  appctx.Role(u.Role),
	}
}

func notLoggedIn() error {
	return errors.New(ErrNotLoggedIn).
		Component("app").
		Category(errors.CategoryAuth).
		Build()
}

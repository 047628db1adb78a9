package datastore

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/tphakala/zoolog/internal/appctx"
	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(MemoryPath, logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testCredential(username string, role appctx.Role) *Credential {
	return NewCredential(username,
		&oauth2.Token{AccessToken: "tok-" + username, TokenType: "bearer", Expiry: time.Now().Add(30 * time.Minute)},
		&appctx.User{ID: "1", Name: "Asha Rao", Email: username + "@zoo.example", Role: role})
}

func TestCurrentWhenEmpty(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Current(t.Context())
	require.ErrorIs(t, err, ErrNoCredential)
	assert.True(t, errors.IsNotFound(err))
}

func TestSaveAndLoadCredential(t *testing.T) {
	s := newTestStore(t)
	c := testCredential("asha", appctx.RoleZookeeper)
	require.NoError(t, s.SaveCredential(t.Context(), c))

	got, err := s.Current(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "asha", got.Username)
	assert.Equal(t, "tok-asha", got.AccessToken)
	assert.Equal(t, "Asha Rao", got.Name)
	assert.True(t, got.Valid(time.Now()))
	assert.True(t, got.CanLogObservations())

	tok := got.Token()
	assert.Equal(t, "tok-asha", tok.AccessToken)
	assert.WithinDuration(t, c.Expiry, tok.Expiry, time.Second)

	u := got.User()
	assert.Equal(t, appctx.RoleZookeeper, u.Role)
	assert.Equal(t, "asha@zoo.example", u.Email)
}

func TestSaveReplacesCredential(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveCredential(t.Context(), testCredential("asha", appctx.RoleZookeeper)))

	again := testCredential("asha", appctx.RoleVet)
	again.AccessToken = "tok-new"
	require.NoError(t, s.SaveCredential(t.Context(), again))

	got, err := s.Current(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "tok-new", got.AccessToken)
	assert.Equal(t, string(appctx.RoleVet), got.Role)

	require.NoError(t, s.SaveCredential(t.Context(), testCredential("ravi", appctx.RoleOfficer)))
	got, err = s.Current(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "ravi", got.Username)
	assert.False(t, got.CanLogObservations())

	var count int64
	require.NoError(t, s.db.Model(&Credential{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "only one account is signed in")
}

func TestSaveCredentialValidation(t *testing.T) {
	s := newTestStore(t)
	err := s.SaveCredential(t.Context(), &Credential{Username: "asha"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	require.Error(t, s.SaveCredential(t.Context(), nil))
}

func TestClear(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveCredential(t.Context(), testCredential("asha", appctx.RoleAdmin)))
	require.NoError(t, s.Clear(t.Context()))

	_, err := s.Current(t.Context())
	require.ErrorIs(t, err, ErrNoCredential)
	require.NoError(t, s.Clear(t.Context()), "clearing twice is fine")
}

func TestCredentialValidity(t *testing.T) {
	now := time.Now()
	var missing *Credential
	assert.False(t, missing.Valid(now))
	assert.False(t, (&Credential{}).Valid(now))
	assert.True(t, (&Credential{AccessToken: "x"}).Valid(now), "no expiry never expires")
	assert.False(t, (&Credential{AccessToken: "x", Expiry: now.Add(-time.Minute)}).Valid(now))
	assert.False(t, missing.CanLogObservations())
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "zoolog.db")
	s, err := Open(path, logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC))
	require.NoError(t, err)
	require.NoError(t, s.SaveCredential(t.Context(), testCredential("asha", appctx.RoleVet)))
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	got, err := s.Current(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "asha", got.Username)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("", nil)
	require.Error(t, err)
}

package app

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/zoolog/internal/appctx"
	"github.com/tphakala/zoolog/internal/backend"
	"github.com/tphakala/zoolog/internal/buildinfo"
	"github.com/tphakala/zoolog/internal/capture"
	"github.com/tphakala/zoolog/internal/conf"
	"github.com/tphakala/zoolog/internal/datastore"
	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/logger"
	"github.com/tphakala/zoolog/internal/recorder"
)

const baseURL = "http://zoo.test"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
		goleak.IgnoreTopFunction("gopkg.in/natefinch/lumberjack%2ev2.(*Logger).millRun"),
	)
}

var quiet = logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)

func testSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Main.Name = "zoolog-test"
	s.Backend.URL = baseURL
	s.Backend.Timeout = 5 * time.Second
	s.Capture.AnimalSelection = conf.AnimalSelectionList
	s.Capture.Language = "en"
	s.Datastore.Path = datastore.MemoryPath
	s.Server.Listen = "127.0.0.1:0"
	return s
}

func newTestApp(t *testing.T, settings *conf.Settings, opts ...Option) (*App, *httpmock.MockTransport) {
	t.Helper()
	mock := httpmock.NewMockTransport()
	opts = append([]Option{
		WithBackendTransport(mock),
		WithMicrophone(recorder.NewFakeMicrophone()),
		WithLogger(quiet),
	}, opts...)
	a, err := New(settings, &buildinfo.Context{Version: "2.0.1"}, opts...)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a, mock
}

func registerLogin(mock *httpmock.MockTransport, role string) {
	mock.RegisterResponder(http.MethodPost, baseURL+"/api/auth/login",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
			"access_token": "tok-1",
			"token_type":   "bearer",
		}))
	mock.RegisterResponder(http.MethodGet, baseURL+"/api/auth/me",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, backend.User{ID: "u7", Name: "Asha", Role: role}))
}

func TestNewRequiresSettings(t *testing.T) {
	_, err := New(nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestNewRejectsBadBackendURL(t *testing.T) {
	settings := testSettings()
	settings.Backend.URL = "zoo.test"
	_, err := New(settings, nil, WithLogger(quiet))
	require.Error(t, err)
}

func TestLoginRestoreLogout(t *testing.T) {
	a, mock := newTestApp(t, testSettings())
	registerLogin(mock, "zookeeper")

	user, err := a.Login(t.Context(), "asha@zoo.test", "secret")
	require.NoError(t, err)
	assert.Equal(t, appctx.RoleZookeeper, user.Role)
	current, ok := a.Context.User()
	require.True(t, ok)
	assert.Equal(t, "Asha", current.Name)

	// a fresh process starts signed out
	a.Backend.SetToken(nil)
	a.Context.AuthWriter().SetUser(nil)

	restored, err := a.Restore(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "u7", restored.ID)
	assert.True(t, a.Backend.LoggedIn())

	require.NoError(t, a.Logout(t.Context()))
	assert.False(t, a.Backend.LoggedIn())
	_, ok = a.Context.User()
	assert.False(t, ok)

	_, err = a.Restore(t.Context())
	require.ErrorIs(t, err, ErrNotLoggedIn)
	assert.True(t, errors.IsCategory(err, errors.CategoryAuth))
}

func TestRestoreExpiredCredential(t *testing.T) {
	later := time.Now().Add(365 * 24 * time.Hour)
	a, mock := newTestApp(t, testSettings(), WithClock(func() time.Time { return later }))
	registerLogin(mock, "vet")

	_, err := a.Login(t.Context(), "asha@zoo.test", "secret")
	require.NoError(t, err)

	_, err = a.Restore(t.Context())
	require.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestLoginFailureStoresNothing(t *testing.T) {
	a, mock := newTestApp(t, testSettings())
	mock.RegisterResponder(http.MethodPost, baseURL+"/api/auth/login",
		httpmock.NewJsonResponderOrPanic(http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"}))

	_, err := a.Login(t.Context(), "asha@zoo.test", "wrong")
	require.Error(t, err)

	_, err = a.Restore(t.Context())
	require.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestSendEmergency(t *testing.T) {
	a, mock := newTestApp(t, testSettings())
	registerLogin(mock, "zookeeper")
	_, err := a.Login(t.Context(), "asha@zoo.test", "secret")
	require.NoError(t, err)

	mock.RegisterResponder(http.MethodGet, baseURL+"/api/animals/12",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, backend.Animal{ID: "12", Name: "Rani"}))
	mock.RegisterResponder(http.MethodPost, baseURL+"/api/observations/emergency-alert",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]string{"message": "sent"}))

	res, err := a.SendEmergency(t.Context(), "12", "limping on the left foreleg")
	require.NoError(t, err)
	assert.True(t, res.Backend)
	assert.False(t, res.Push)
	assert.Equal(t, 1, mock.GetCallCountInfo()["POST "+baseURL+"/api/observations/emergency-alert"])
}

func TestSendEmergencyFailsWhenNoPathDelivers(t *testing.T) {
	a, mock := newTestApp(t, testSettings())
	registerLogin(mock, "zookeeper")
	_, err := a.Login(t.Context(), "asha@zoo.test", "secret")
	require.NoError(t, err)

	mock.RegisterResponder(http.MethodGet, baseURL+"/api/animals/12",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, backend.Animal{ID: "12", Name: "Rani"}))
	mock.RegisterResponder(http.MethodPost, baseURL+"/api/observations/emergency-alert",
		httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	res, err := a.SendEmergency(t.Context(), "12", "not eating")
	require.Error(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Backend)
}

func TestSendEmergencyValidation(t *testing.T) {
	a, _ := newTestApp(t, testSettings())
	_, err := a.SendEmergency(t.Context(), " ", "x")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestNewSessionUsesCaptureSettings(t *testing.T) {
	settings := testSettings()
	settings.Capture.AnimalSelection = conf.AnimalSelectionFreeText
	settings.Capture.SafetyGate = true
	a, _ := newTestApp(t, settings)

	a.Context.SelectionWriter().Select(&appctx.Animal{ID: "31", Name: "Moti"})
	s, err := a.NewSession(t.Context())
	require.NoError(t, err)
	t.Cleanup(s.Discard)

	snap := s.Snapshot()
	assert.Equal(t, capture.SelectFreeText, snap.AnimalSelection)
	assert.True(t, snap.SafetyGate)
	assert.True(t, snap.MicrophoneExists)
	assert.Equal(t, "Moti", snap.Subject.Name)
}

func TestServerServesHealth(t *testing.T) {
	a, _ := newTestApp(t, testSettings())
	srv, err := a.Server()
	require.NoError(t, err)
	t.Cleanup(srv.APIController().Shutdown)

	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2.0.1")
}

func TestUserAgent(t *testing.T) {
	assert.Equal(t, "zoolog-test/2.0.1", userAgent(testSettings(), &buildinfo.Context{Version: "2.0.1"}))
	assert.Equal(t, "zoolog/unknown", userAgent(&conf.Settings{}, &buildinfo.Context{}))
}

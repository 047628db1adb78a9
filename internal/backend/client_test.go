package backend

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/observability/metrics"
)

const testBaseURL = "http://zoo.test"

func newTestClient(t *testing.T, opts ...Option) (*Client, *httpmock.MockTransport) {
	t.Helper()
	mock := httpmock.NewMockTransport()
	opts = append([]Option{WithTransport(mock)}, opts...)
	c, err := NewClient(Config{BaseURL: testBaseURL + "/", Timeout: 5 * time.Second}, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, mock
}

func loggedIn(t *testing.T, c *Client) {
	t.Helper()
	c.SetToken(&oauth2.Token{AccessToken: "tok-123", TokenType: "bearer", Expiry: time.Now().Add(time.Hour)})
}

func wavFile(data string) File {
	return File{
		Name:        "recording.wav",
		ContentType: "audio/wav",
		Open:        func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader([]byte(data))), nil },
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	t.Parallel()
	_, err := NewClient(Config{BaseURL: "zoo.test"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestLogin(t *testing.T) {
	t.Parallel()
	c, mock := newTestClient(t)

	mock.RegisterResponder(http.MethodPost, testBaseURL+pathLogin,
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, req.ParseForm())
			assert.Equal(t, "password", req.PostForm.Get("grant_type"))
			assert.Equal(t, "keeper@zoo.test", req.PostForm.Get("username"))
			assert.Equal(t, "secret", req.PostForm.Get("password"))
			return httpmock.NewJsonResponse(http.StatusOK, map[string]string{
				"access_token": "tok-abc",
				"token_type":   "bearer",
			})
		})
	mock.RegisterResponder(http.MethodGet, testBaseURL+pathMe,
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer tok-abc", req.Header.Get("Authorization"))
			return httpmock.NewJsonResponse(http.StatusOK, User{ID: "u1", Name: "Asha", Role: "zookeeper"})
		})

	tok, user, err := c.Login(t.Context(), "keeper@zoo.test", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", tok.AccessToken)
	assert.WithinDuration(t, time.Now().Add(DefaultTokenLifetime), tok.Expiry, time.Minute)
	assert.Equal(t, "Asha", user.Name)
	assert.True(t, c.LoggedIn())
}

func TestLoginRejected(t *testing.T) {
	t.Parallel()
	c, mock := newTestClient(t)

	mock.RegisterResponder(http.MethodPost, testBaseURL+pathLogin,
		httpmock.NewJsonResponderOrPanic(http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"}))

	_, _, err := c.Login(t.Context(), "keeper@zoo.test", "wrong")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryAuth))
	assert.Contains(t, err.Error(), "Incorrect email or password")
	assert.False(t, c.LoggedIn())
	assert.Zero(t, mock.GetCallCountInfo()["GET "+testBaseURL+pathMe])
}

func TestAuthenticatedCallWithoutToken(t *testing.T) {
	t.Parallel()
	c, mock := newTestClient(t)

	_, err := c.ListAnimals(t.Context())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryAuth))
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	assert.Zero(t, mock.GetTotalCallCount())
}

func TestExpiredTokenIsNotUsed(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)
	c.SetToken(&oauth2.Token{AccessToken: "old", Expiry: time.Now().Add(-time.Minute)})
	assert.False(t, c.LoggedIn())
}

func TestListAnimalsIsCached(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m, err := metrics.NewBackendMetrics(reg)
	require.NoError(t, err)
	c, mock := newTestClient(t, WithMetrics(m))
	loggedIn(t, c)

	mock.RegisterResponder(http.MethodGet, testBaseURL+pathAnimals,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, []Animal{
			{ID: "a1", Name: "Rani", Species: "Bengal Tiger", Health: "good"},
			{ID: "a2", Name: "Gajraj", Species: "Asian Elephant", Health: "excellent"},
		}))

	animals, err := c.ListAnimals(t.Context())
	require.NoError(t, err)
	require.Len(t, animals, 2)

	again, err := c.ListAnimals(t.Context())
	require.NoError(t, err)
	assert.Equal(t, animals, again)

	a, err := c.GetAnimal(t.Context(), "a2")
	require.NoError(t, err)
	assert.Equal(t, "Gajraj", a.Name)

	assert.Equal(t, 1, mock.GetTotalCallCount())
	assert.InDelta(t, 2, testutil.ToFloat64(m.CacheHits.WithLabelValues("animals", "hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Requests.WithLabelValues(metrics.OpListAnimals, "200")), 0)
}

func TestGetAnimalNotFound(t *testing.T) {
	t.Parallel()
	c, mock := newTestClient(t)
	loggedIn(t, c)

	mock.RegisterResponder(http.MethodGet, testBaseURL+pathAnimals+"missing",
		httpmock.NewJsonResponderOrPanic(http.StatusNotFound, map[string]string{"detail": "Animal not found"}))

	_, err := c.GetAnimal(t.Context(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestTranscribe(t *testing.T) {
	t.Parallel()
	c, mock := newTestClient(t)
	loggedIn(t, c)

	mock.RegisterResponder(http.MethodPost, testBaseURL+pathTranscribe,
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, req.ParseMultipartForm(1<<20))
			assert.Equal(t, "hi", req.FormValue("language"))
			f, hdr, err := req.FormFile("audio")
			require.NoError(t, err)
			defer f.Close()
			data, _ := io.ReadAll(f)
			assert.Equal(t, "RIFFdata", string(data))
			assert.Equal(t, "recording.wav", hdr.Filename)
			assert.Equal(t, "audio/wav", hdr.Header.Get("Content-Type"))
			return httpmock.NewJsonResponse(http.StatusOK, Transcription{Transcript: "Tiger fed at 9am", Language: "hi"})
		})

	out, err := c.Transcribe(t.Context(), wavFile("RIFFdata"), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Tiger fed at 9am", out.Transcript)
}

func TestTranscribeServerError(t *testing.T) {
	t.Parallel()
	c, mock := newTestClient(t)
	loggedIn(t, c)

	mock.RegisterResponder(http.MethodPost, testBaseURL+pathTranscribe,
		httpmock.NewStringResponder(http.StatusInternalServerError, "model unavailable"))

	_, err := c.Transcribe(t.Context(), wavFile("RIFF"), "en")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryHTTP))

	var ee *errors.EnhancedError
	require.ErrorAs(t, err, &ee)
	status, ok := ee.ContextValue("status_code")
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestCreateObservation(t *testing.T) {
	t.Parallel()
	c, mock := newTestClient(t)
	loggedIn(t, c)

	var got CreateObservationRequest
	mock.RegisterResponder(http.MethodPost, testBaseURL+pathObservations,
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
			body, _ := io.ReadAll(req.Body)
			require.NoError(t, jsonUnmarshal(body, &got))
			return httpmock.NewJsonResponse(http.StatusOK, Observation{ID: "obs-1", IsEmergency: true})
		})

	obs, err := c.CreateObservation(t.Context(), &CreateObservationRequest{
		AnimalName:      "Rani",
		AudioText:       "Limping on left leg",
		Date:            "2026-10-19",
		IsEmergency:     true,
		HasAnimalImages: true,
		FormData:        &FormData{DateOrDay: "Monday, 19 October 2026", NormalBehaviourStatus: false},
	})
	require.NoError(t, err)
	assert.Equal(t, "obs-1", obs.ID)
	assert.True(t, got.IsEmergency)
	assert.True(t, got.HasAnimalImages)
	assert.False(t, got.HasEmergencyVideo)
	require.NotNil(t, got.FormData)
	assert.Equal(t, "Monday, 19 October 2026", got.FormData.DateOrDay)
}

func TestCreateObservationValidation(t *testing.T) {
	t.Parallel()
	c, mock := newTestClient(t)
	loggedIn(t, c)

	_, err := c.CreateObservation(t.Context(), &CreateObservationRequest{AnimalName: "  "})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.Zero(t, mock.GetTotalCallCount())
}

func TestCreateObservationValidationDetail(t *testing.T) {
	t.Parallel()
	c, mock := newTestClient(t)
	loggedIn(t, c)

	mock.RegisterResponder(http.MethodPost, testBaseURL+pathObservations,
		httpmock.NewStringResponder(http.StatusUnprocessableEntity,
			`{"detail":[{"loc":["body","date"],"msg":"field required","type":"value_error.missing"}]}`))

	_, err := c.CreateObservation(t.Context(), &CreateObservationRequest{AnimalName: "Rani"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.Contains(t, err.Error(), "field required")
}

func TestSendEmergencyAlert(t *testing.T) {
	t.Parallel()
	c, mock := newTestClient(t)
	loggedIn(t, c)

	mock.RegisterResponder(http.MethodPost, testBaseURL+pathEmergencyAlert,
		func(req *http.Request) (*http.Response, error) {
			var alert EmergencyAlert
			body, _ := io.ReadAll(req.Body)
			require.NoError(t, jsonUnmarshal(body, &alert))
			assert.Equal(t, "a1", alert.AnimalID)
			assert.Equal(t, "obs-1", alert.ObservationID)
			return httpmock.NewJsonResponse(http.StatusOK, map[string]string{"message": "Emergency alert created"})
		})

	err := c.SendEmergencyAlert(t.Context(), &EmergencyAlert{AnimalID: "a1", Description: "Limping", ObservationID: "obs-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, mock.GetTotalCallCount())
}

func TestAddMedia(t *testing.T) {
	t.Parallel()
	c, mock := newTestClient(t)
	loggedIn(t, c)

	mock.RegisterResponder(http.MethodPost, testBaseURL+"/api/observations/obs-1/add-media",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, req.ParseMultipartForm(1<<20))
			assert.Equal(t, "video", req.FormValue("media_type"))
			_, hdr, err := req.FormFile("file")
			require.NoError(t, err)
			assert.Equal(t, "sos.mp4", hdr.Filename)
			return httpmock.NewJsonResponse(http.StatusOK, MediaResult{URL: "https://cdn.zoo.test/sos.mp4"})
		})

	res, err := c.AddMedia(t.Context(), "obs-1", MediaVideo, File{
		Name:        "sos.mp4",
		ContentType: "video/mp4",
		Open:        func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader([]byte{0, 0, 0, 1})), nil },
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.zoo.test/sos.mp4", res.URL)
}

func TestStructureDisabled(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)
	assert.False(t, c.StructuringEnabled())
	_, err := c.Structure(t.Context(), &StructureRequest{Text: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestStructure(t *testing.T) {
	t.Parallel()
	mock := httpmock.NewMockTransport()
	c, err := NewClient(Config{BaseURL: testBaseURL, StructurePath: "/api/observations/structure"}, WithTransport(mock))
	require.NoError(t, err)
	t.Cleanup(c.Close)
	loggedIn(t, c)

	mock.RegisterResponder(http.MethodPost, testBaseURL+"/api/observations/structure",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, FormData{FeedGivenAsPrescribed: true, NormalBehaviourDetails: "calm"}))

	form, err := c.Structure(t.Context(), &StructureRequest{Text: "calm", Date: "2026-10-19", Language: "en"})
	require.NoError(t, err)
	assert.True(t, form.FeedGivenAsPrescribed)
	assert.Equal(t, "calm", form.NormalBehaviourDetails)
}

func TestNetworkErrorCategory(t *testing.T) {
	t.Parallel()
	c, mock := newTestClient(t)
	loggedIn(t, c)

	mock.RegisterResponder(http.MethodPost, testBaseURL+pathObservations,
		httpmock.NewErrorResponder(errors.NewStd("connection refused")))

	_, err := c.CreateObservation(t.Context(), &CreateObservationRequest{AnimalName: "Rani"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()
	c, mock := newTestClient(t)
	loggedIn(t, c)
	ctx, cancel := context.WithCancel(t.Context())
	mock.RegisterResponder(http.MethodGet, testBaseURL+pathMe,
		func(req *http.Request) (*http.Response, error) {
			cancel()
			<-req.Context().Done()
			return nil, req.Context().Err()
		})

	_, err := c.Me(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
}

func TestErrorDetail(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty", "", ""},
		{"string detail", `{"detail":"Not authenticated"}`, "Not authenticated"},
		{"validation list", `{"detail":[{"msg":"a"},{"msg":"b"}]}`, "a; b"},
		{"plain text", "Internal Server Error\n", "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, errorDetail([]byte(tt.body)))
		})
	}
}

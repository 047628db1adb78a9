package capture

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/zoolog/internal/appctx"
	"github.com/tphakala/zoolog/internal/backend"
	"github.com/tphakala/zoolog/internal/logger"
	"github.com/tphakala/zoolog/internal/notification"
	"github.com/tphakala/zoolog/internal/recorder"
)

// fixedNow is 14 March 2025, 10:30 UTC
var fixedNow = time.Date(2025, time.March, 14, 10, 30, 0, 0, time.UTC)

type fakeTranscriber struct {
	calls atomic.Int32
	gate  chan struct{} // when set, Transcribe blocks until closed
	text  string
	err   error
	lang  atomic.Value
	audio atomic.Int64
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio backend.File, language string) (*backend.Transcription, error) {
	f.calls.Add(1)
	f.lang.Store(language)
	f.audio.Store(audio.Size)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &backend.Transcription{Transcript: f.text, Language: language}, nil
}

type fakeStore struct {
	mu        sync.Mutex
	creates   int
	requests  []*backend.CreateObservationRequest
	createErr error
	gate      chan struct{}
	media     []string
	mediaErr  map[string]error
}

func (f *fakeStore) CreateObservation(ctx context.Context, req *backend.CreateObservationRequest) (*backend.Observation, error) {
	f.mu.Lock()
	f.creates++
	f.requests = append(f.requests, req)
	gate, err := f.gate, f.createErr
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &backend.Observation{ID: "obs-42", AnimalID: req.AnimalID, IsEmergency: req.IsEmergency}, nil
}

func (f *fakeStore) AddMedia(_ context.Context, observationID string, _ backend.MediaType, file backend.File) (*backend.MediaResult, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	_, _ = io.Copy(io.Discard, rc)
	_ = rc.Close()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.media = append(f.media, observationID+"/"+file.Name)
	if err := f.mediaErr[file.Name]; err != nil {
		return nil, err
	}
	return &backend.MediaResult{URL: "/media/" + file.Name}, nil
}

func (f *fakeStore) setCreateErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErr = err
}

func (f *fakeStore) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates
}

func (f *fakeStore) lastRequest() *backend.CreateObservationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

type mockAlerter struct{ mock.Mock }

func (m *mockAlerter) SendEmergencyAlert(ctx context.Context, alert *backend.EmergencyAlert) error {
	return m.Called(ctx, alert).Error(0)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) NotifyEmergency(ctx context.Context, alert notification.Alert) error {
	return m.Called(ctx, alert).Error(0)
}

type fakeAnimals map[string]backend.Animal

func (f fakeAnimals) GetAnimal(_ context.Context, id string) (*backend.Animal, error) {
	a, ok := f[id]
	if !ok {
		return nil, os.ErrNotExist
	}
	return &a, nil
}

type fixture struct {
	session     *Session
	mic         *recorder.FakeMicrophone
	transcriber *fakeTranscriber
	store       *fakeStore
	app         *appctx.Context
}

func newFixture(t *testing.T, opts Options, tweak ...func(*Deps)) *fixture {
	t.Helper()
	f := &fixture{
		mic:         recorder.NewFakeMicrophone(),
		transcriber: &fakeTranscriber{text: "Tiger ate well and drank water"},
		store:       &fakeStore{},
		app:         appctx.New("en"),
	}
	deps := Deps{
		Microphone:  f.mic,
		Transcriber: f.transcriber,
		Store:       f.store,
		App:         f.app,
		Log:         logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC),
		Now:         func() time.Time { return fixedNow },
	}
	for _, fn := range tweak {
		fn(&deps)
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	s, err := New(deps, opts)
	require.NoError(t, err)
	s.tick = 5 * time.Millisecond
	t.Cleanup(s.Discard)
	f.session = s
	return f
}

// reviewing drives a text session into the review phase.
func (f *fixture) reviewing(t *testing.T, subject string) {
	t.Helper()
	require.NoError(t, f.session.SetSubject(subject))
	require.NoError(t, f.session.SetInputMode(InputText))
	require.NoError(t, f.session.SetNarrative("Tiger fed at 9am"))
	require.NoError(t, f.session.ProcessInput(t.Context()))
}

func imageAttachment(kind AttachmentKind, name string) *Attachment {
	return NewAttachment(kind, name, "image/jpeg", 3, BytesSource("jpg"))
}

func videoAttachment(name string) *Attachment {
	return NewAttachment(AttachmentEmergency, name, "video/mp4", 3, BytesSource("mp4"))
}

// slowMicrophone holds Open until release is closed, like a pending
// permission prompt.
type slowMicrophone struct {
	*recorder.FakeMicrophone
	release chan struct{}
}

func newSlowMicrophone() *slowMicrophone {
	return &slowMicrophone{FakeMicrophone: recorder.NewFakeMicrophone(), release: make(chan struct{})}
}

func (m *slowMicrophone) Open(ctx context.Context) (recorder.Stream, error) {
	select {
	case <-m.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return m.FakeMicrophone.Open(ctx)
}

// startAsync runs StartRecording on its own goroutine and waits until the
// session reports the open in progress.
func startAsync(t *testing.T, s *Session) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- s.StartRecording(t.Context()) }()
	require.Eventually(t, func() bool { return s.Snapshot().Starting }, time.Second, time.Millisecond)
	return done
}

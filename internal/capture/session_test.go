package capture

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/zoolog/internal/appctx"
	"github.com/tphakala/zoolog/internal/backend"
	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/i18n"
	"github.com/tphakala/zoolog/internal/observability/metrics"
	"github.com/tphakala/zoolog/internal/recorder"
)

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Deps{}, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestNewDefaults(t *testing.T) {
	f := newFixture(t, Options{})
	snap := f.session.Snapshot()

	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, LifecycleActive, snap.Lifecycle)
	assert.Equal(t, PhaseCollecting, snap.Phase)
	assert.Equal(t, InputAudio, snap.InputMode)
	assert.Equal(t, RecordingIdle, snap.Recording)
	assert.Equal(t, "2025-03-14", snap.Date)
	assert.Equal(t, SelectFreeText, snap.AnimalSelection)
	assert.Empty(t, snap.Attachments)
	assert.Nil(t, snap.Form)
}

func TestNewUsesSelectedAnimal(t *testing.T) {
	app := appctx.New("en")
	app.SelectionWriter().Select(&appctx.Animal{ID: "12", Name: "Rani", Species: "Tiger"})

	f := newFixture(t, Options{AnimalSelection: SelectFromList}, func(d *Deps) { d.App = app })
	assert.Equal(t, Subject{AnimalID: "12", Name: "Rani"}, f.session.Snapshot().Subject)
}

func TestTodayFollowsLocation(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*3600+1800)
	late := time.Date(2025, time.March, 14, 20, 0, 0, 0, time.UTC) // already the 15th in India

	f := newFixture(t, Options{Location: kolkata}, func(d *Deps) {
		d.Now = func() time.Time { return late }
	})
	assert.Equal(t, "2025-03-15", f.session.Snapshot().Date)
}

func TestSetObservationDate(t *testing.T) {
	f := newFixture(t, Options{})

	require.NoError(t, f.session.SetObservationDate(fixedNow.AddDate(0, 0, -3)))
	assert.Equal(t, "2025-03-11", f.session.Snapshot().Date)

	require.NoError(t, f.session.SetObservationDate(fixedNow.Add(10*time.Hour)), "later today is still today")

	err := f.session.SetObservationDate(fixedNow.AddDate(0, 0, 1))
	require.ErrorIs(t, err, ErrFutureDate)
	assert.Equal(t, i18n.MsgFutureDate, MessageID(err))
	assert.Equal(t, "2025-03-14", f.session.Snapshot().Date)
}

func TestFreeTextSubject(t *testing.T) {
	f := newFixture(t, Options{AnimalSelection: SelectFreeText})

	tests := []struct {
		typed string
		want  string
	}{
		{"  rani   the tigress ", "rani the tigress"},
		{"BB-8", "BB-8"},
		{"McQueen", "McQueen"},
		{"मोती", "मोती"},
	}
	for _, tt := range tests {
		require.NoError(t, f.session.SetSubject(tt.typed))
		assert.Equal(t, Subject{Name: tt.want}, f.session.Snapshot().Subject, "typed %q", tt.typed)
	}

	err := f.session.SelectAnimal(t.Context(), "12")
	require.ErrorIs(t, err, ErrInvalidState, "list selection is off")
}

func TestListSubject(t *testing.T) {
	animals := fakeAnimals{"12": backend.Animal{ID: "12", Name: "Rani", Species: "Tiger"}}
	f := newFixture(t, Options{AnimalSelection: SelectFromList}, func(d *Deps) { d.Animals = animals })

	err := f.session.SetSubject("Rani")
	require.ErrorIs(t, err, ErrInvalidState, "free text is off")

	require.NoError(t, f.session.SelectAnimal(t.Context(), "12"))
	assert.Equal(t, Subject{AnimalID: "12", Name: "Rani"}, f.session.Snapshot().Subject)

	require.Error(t, f.session.SelectAnimal(t.Context(), "99"))
	assert.Equal(t, "12", f.session.Snapshot().Subject.AnimalID, "failed lookup keeps the selection")

	err = f.session.SelectAnimal(t.Context(), " ")
	require.ErrorIs(t, err, ErrSubjectRequired)
}

func TestListSubjectSubmitsAnimalID(t *testing.T) {
	animals := fakeAnimals{"12": backend.Animal{ID: "12", Name: "Rani"}}
	f := newFixture(t, Options{AnimalSelection: SelectFromList}, func(d *Deps) { d.Animals = animals })
	s := f.session

	require.NoError(t, s.SelectAnimal(t.Context(), "12"))
	require.NoError(t, s.SetInputMode(InputText))
	require.NoError(t, s.SetNarrative("Rani is calm"))
	require.NoError(t, s.ProcessInput(t.Context()))
	_, err := s.Submit(t.Context())
	require.NoError(t, err)

	req := f.store.lastRequest()
	assert.Equal(t, "12", req.AnimalID)
	assert.Equal(t, "Rani", req.AnimalName)
}

func TestAttachments(t *testing.T) {
	f := newFixture(t, Options{})
	s := f.session

	a := imageAttachment(AttachmentAnimal, "/tmp/photos/tiger.jpg")
	b := imageAttachment(AttachmentEnclosure, "pen.jpg")
	c := imageAttachment(AttachmentAnimal, "tiger2.jpg")
	require.NoError(t, s.AddAttachment(a))
	require.NoError(t, s.AddAttachment(b))
	require.NoError(t, s.AddAttachment(c))

	snap := s.Snapshot()
	require.Len(t, snap.Attachments, 3)
	assert.Equal(t, "tiger.jpg", snap.Attachments[0].Name)

	require.NoError(t, s.RemoveAttachment(b.ID))
	snap = s.Snapshot()
	require.Len(t, snap.Attachments, 2)
	assert.Equal(t, []string{a.ID, c.ID}, []string{snap.Attachments[0].ID, snap.Attachments[1].ID}, "order kept")

	err := s.RemoveAttachment(b.ID)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotFound))
}

func TestAttachmentKinds(t *testing.T) {
	f := newFixture(t, Options{})
	s := f.session

	err := s.AddAttachment(NewAttachment(AttachmentAnimal, "clip.mp4", "video/mp4", 1, BytesSource("x")))
	require.ErrorIs(t, err, ErrAttachmentKind)

	err = s.AddAttachment(imageAttachment(AttachmentGate, "gate.jpg"))
	require.ErrorIs(t, err, ErrAttachmentKind, "gate photos belong to the safety check")

	err = s.AddAttachment(nil)
	require.ErrorIs(t, err, ErrAttachmentKind)
}

func TestEmergencyVideo(t *testing.T) {
	f := newFixture(t, Options{})
	s := f.session

	err := s.AddAttachment(videoAttachment("limp.mp4"))
	require.ErrorIs(t, err, ErrVideoNotAllowed)
	assert.Equal(t, i18n.MsgVideoRequiresSOS, MessageID(err))

	require.NoError(t, s.SetEmergency(true))
	require.NoError(t, s.AddAttachment(imageAttachment(AttachmentAnimal, "tiger.jpg")))
	require.NoError(t, s.AddAttachment(videoAttachment("limp.mp4")))

	err = s.AddAttachment(videoAttachment("second.mp4"))
	require.ErrorIs(t, err, ErrVideoLimit)

	require.NoError(t, s.SetEmergency(false))
	snap := s.Snapshot()
	assert.False(t, snap.Emergency)
	require.Len(t, snap.Attachments, 1, "clearing the emergency discards the video")
	assert.Equal(t, AttachmentAnimal, snap.Attachments[0].Kind)
}

func TestTerminalSessionRejectsMutation(t *testing.T) {
	f := newFixture(t, Options{})
	f.session.Discard()

	assert.ErrorIs(t, f.session.SetSubject("x"), ErrSessionClosed)
	assert.ErrorIs(t, f.session.SetNarrative("x"), ErrSessionClosed)
	assert.ErrorIs(t, f.session.SetEmergency(true), ErrSessionClosed)
	assert.ErrorIs(t, f.session.StartRecording(t.Context()), ErrSessionClosed)
	assert.ErrorIs(t, f.session.ProcessInput(t.Context()), ErrSessionClosed)
	assert.ErrorIs(t, f.session.UpdateFormField("date_or_day", "x"), ErrSessionClosed)
	_, err := f.session.Submit(t.Context())
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Equal(t, i18n.MsgSessionClosed, MessageID(err))
}

func TestSessionMetrics(t *testing.T) {
	m, err := metrics.NewCaptureMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	f := newFixture(t, Options{}, func(d *Deps) { d.Metrics = m })
	other := newFixture(t, Options{}, func(d *Deps) { d.Metrics = m })
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.SessionsActive), 0)

	require.NoError(t, f.session.StartRecording(t.Context()))
	require.NoError(t, f.session.StopRecording())
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Recordings.WithLabelValues("saved")), 0)

	f.reviewing(t, "Sheru")
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Processing.WithLabelValues("text", "success")), 0)

	_, err = f.session.Submit(t.Context())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues("false", "success")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.SessionsActive), 0)

	other.session.Discard()
	other.session.Discard()
	assert.InDelta(t, 0.0, testutil.ToFloat64(m.SessionsActive), 0)
}

func TestMessageIDFallbacks(t *testing.T) {
	assert.Empty(t, MessageID(nil))
	assert.Equal(t, i18n.MsgLoginRequired, MessageID(errors.Newf("x").Category(errors.CategoryAuth).Build()))
	assert.Equal(t, i18n.MsgSaveFailed, MessageID(errors.Newf("x").Category(errors.CategoryNetwork).Build()))
	assert.Equal(t, i18n.MsgInvalidState, MessageID(assert.AnError))
}

func TestUserMessageLocalized(t *testing.T) {
	f := newFixture(t, Options{})
	f.mic.FailOpen(recorder.ErrPermission)

	err := f.session.StartRecording(t.Context())
	require.Error(t, err)
	assert.Equal(t, "Microphone permission denied", UserMessage(err, "en"))
	assert.Equal(t, "माइक्रोफ़ोन की अनुमति नहीं दी गई", UserMessage(err, "hi"))
}

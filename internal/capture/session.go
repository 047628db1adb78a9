// Package capture drives one daily observation entry: choose the animal,
// record or type the observation, review the structured checklist and
// submit it.
package capture

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/zoolog/internal/appctx"
	"github.com/tphakala/zoolog/internal/backend"
	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/i18n"
	"github.com/tphakala/zoolog/internal/logger"
	"github.com/tphakala/zoolog/internal/notification"
	"github.com/tphakala/zoolog/internal/observability/metrics"
	"github.com/tphakala/zoolog/internal/recorder"
)

// InputMode selects where the narrative comes from
type InputMode string

const (
	InputAudio InputMode = "audio"
	InputText  InputMode = "text"
)

// RecordingState is the microphone sub-state
type RecordingState string

const (
	RecordingIdle   RecordingState = "idle"
	RecordingActive RecordingState = "recording"
	RecordingDone   RecordingState = "recorded"
)

// Phase is the visible step of the workflow
type Phase string

const (
	PhaseCollecting Phase = "collecting_input"
	PhaseReviewing  Phase = "reviewing_form"
)

// Lifecycle of a session
type Lifecycle string

const (
	LifecycleActive              Lifecycle = "active"
	LifecycleAwaitingSafetyCheck Lifecycle = "awaiting_safety_check"
	LifecycleCompleted           Lifecycle = "completed"
	LifecycleDiscarded           Lifecycle = "discarded"
)

// Animal selection modes
const (
	SelectFromList = "list"
	SelectFreeText = "free_text"
)

// Subject is the observed animal. AnimalID is set when picked from the list.
type Subject struct {
	AnimalID string `json:"animal_id,omitempty"`
	Name     string `json:"name"`
}

func (s Subject) empty() bool {
	return s.AnimalID == "" && strings.TrimSpace(s.Name) == ""
}

// Transcriber converts recorded audio to text
type Transcriber interface {
	Transcribe(ctx context.Context, audio backend.File, language string) (*backend.Transcription, error)
}

// ObservationStore persists observations
type ObservationStore interface {
	CreateObservation(ctx context.Context, req *backend.CreateObservationRequest) (*backend.Observation, error)
	AddMedia(ctx context.Context, observationID string, mediaType backend.MediaType, file backend.File) (*backend.MediaResult, error)
}

// AnimalDirectory resolves animals picked from the list
type AnimalDirectory interface {
	GetAnimal(ctx context.Context, id string) (*backend.Animal, error)
}

// EmergencyAlerter tells supervisors about an emergency observation
type EmergencyAlerter interface {
	SendEmergencyAlert(ctx context.Context, alert *backend.EmergencyAlert) error
}

// EmergencyNotifier pushes emergency alerts to external channels
type EmergencyNotifier interface {
	NotifyEmergency(ctx context.Context, alert notification.Alert) error
}

// Deps are the collaborators of a session. Only Transcriber and Store are
// required; a nil Microphone means audio capture is unsupported.
type Deps struct {
	Microphone  recorder.Microphone
	Transcriber Transcriber
	Structurer  Structurer
	Store       ObservationStore
	Animals     AnimalDirectory
	Alerter     EmergencyAlerter
	Notifier    EmergencyNotifier
	App         *appctx.Context
	Metrics     *metrics.CaptureMetrics
	Log         logger.Logger
	Now         func() time.Time
}

// Options are the per-deployment behaviour switches
type Options struct {
	AnimalSelection string         // SelectFromList or SelectFreeText
	SafetyGate      bool           // require a gate photo before finishing
	FormEditLock    bool           // form editable only while reviewing
	UploadMedia     bool           // upload attachment content after create
	Location        *time.Location // defines "today"
}

// Session owns the state of one observation entry. Safe for concurrent use;
// network calls run without holding the lock.
type Session struct {
	id    string
	deps  Deps
	opts  Options
	log   logger.Logger
	tick  time.Duration
	begun time.Time

	mu         sync.Mutex
	lifecycle  Lifecycle
	subject    Subject
	date       time.Time
	mode       InputMode
	recording  RecordingState
	starting   bool // microphone open in progress
	stream     recorder.Stream
	ticker     *durationTicker
	duration   int
	clip       *recorder.Clip
	narrative  string
	transcript string
	form       *Form
	emergency  bool
	files      []*Attachment
	phase      Phase
	receipt    *Receipt
	notice     i18n.MessageID

	processing atomic.Bool
	submitting atomic.Bool
	closeOnce  sync.Once
}

// New opens a session. The subject defaults to the animal selected in the
// app context and the date to today.
func New(deps Deps, opts Options) (*Session, error) {
	if deps.Transcriber == nil || deps.Store == nil {
		return nil, errors.Newf("capture session requires a transcriber and an observation store").
			Component("capture").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if deps.Structurer == nil {
		deps.Structurer = LocalStructurer{}
	}
	if deps.App == nil {
		deps.App = appctx.New("en")
	}
	if deps.Log == nil {
		deps.Log = logger.Global().Module("capture")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.AnimalSelection == "" {
		opts.AnimalSelection = SelectFreeText
	}

	s := &Session{
		id:        uuid.NewString(),
		deps:      deps,
		opts:      opts,
		tick:      time.Second,
		lifecycle: LifecycleActive,
		mode:      InputAudio,
		recording: RecordingIdle,
		phase:     PhaseCollecting,
	}
	s.begun = deps.Now()
	s.date = s.today()
	s.log = deps.Log.With(logger.String("session_id", s.id))

	if a, ok := deps.App.SelectedAnimal(); ok {
		s.subject = Subject{AnimalID: a.ID, Name: a.Name}
	}

	if deps.Metrics != nil {
		deps.Metrics.SessionsActive.Inc()
	}
	s.log.Debug("session opened", logger.String("animal_selection", opts.AnimalSelection))
	return s, nil
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

func (s *Session) today() time.Time {
	y, m, d := s.deps.Now().In(s.opts.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.opts.Location)
}

func (s *Session) language() string {
	return i18n.Code(i18n.Match(s.deps.App.Language()))
}

// checkMutable must be called with mu held.
func (s *Session) checkMutable(op string) error {
	if s.lifecycle != LifecycleActive {
		return closed()
	}
	if s.processing.Load() || s.submitting.Load() {
		return busy()
	}
	if s.phase != PhaseCollecting && op != "" {
		return invalidState(op)
	}
	return nil
}

// SetSubject sets the free-text animal name.
func (s *Session) SetSubject(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable("set_subject"); err != nil {
		return err
	}
	if s.opts.AnimalSelection == SelectFromList {
		return invalidState("set_subject")
	}
	s.subject = Subject{Name: strings.Join(strings.Fields(name), " ")}
	return nil
}

// SelectAnimal picks an animal from the backend list by ID.
func (s *Session) SelectAnimal(ctx context.Context, id string) error {
	s.mu.Lock()
	err := s.checkMutable("select_animal")
	if err == nil && (s.opts.AnimalSelection != SelectFromList || s.deps.Animals == nil) {
		err = invalidState("select_animal")
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return fail(ErrSubjectRequired, errors.CategoryValidation, i18n.MsgSubjectRequired)
	}

	animal, err := s.deps.Animals.GetAnimal(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable("select_animal"); err != nil {
		return err
	}
	s.subject = Subject{AnimalID: animal.ID, Name: animal.Name}
	return nil
}

// SetObservationDate changes the date; it may not be after today.
func (s *Session) SetObservationDate(date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable("set_date"); err != nil {
		return err
	}
	y, m, d := date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, s.opts.Location)
	if day.After(s.today()) {
		return fail(ErrFutureDate, errors.CategoryValidation, i18n.MsgFutureDate)
	}
	s.date = day
	return nil
}

// SetInputMode switches between audio and text input. Not allowed while
// recording.
func (s *Session) SetInputMode(mode InputMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable("set_input_mode"); err != nil {
		return err
	}
	if mode != InputAudio && mode != InputText {
		return errors.New(ErrInvalidField).
			Component("capture").
			Category(errors.CategoryValidation).
			Context(ContextMessageID, string(i18n.MsgInvalidField)).
			Context("field", "input_mode").
			Build()
	}
	if s.recording == RecordingActive || s.starting {
		return invalidState("set_input_mode")
	}
	s.mode = mode
	return nil
}

// SetNarrative sets the typed observation text.
func (s *Session) SetNarrative(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable("set_narrative"); err != nil {
		return err
	}
	s.narrative = text
	return nil
}

// SetEmergency toggles the emergency flag. Clearing it removes any
// emergency video.
func (s *Session) SetEmergency(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(""); err != nil {
		return err
	}
	s.emergency = on
	if !on {
		s.files = removeKind(s.files, AttachmentEmergency)
	}
	return nil
}

// AddAttachment appends a photo or emergency video.
func (s *Session) AddAttachment(a *Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(""); err != nil {
		return err
	}
	if a == nil {
		return fail(ErrAttachmentKind, errors.CategoryValidation, i18n.MsgInvalidField)
	}
	switch a.Kind {
	case AttachmentAnimal, AttachmentEnclosure:
		if !a.isImage() {
			return fail(ErrAttachmentKind, errors.CategoryValidation, i18n.MsgInvalidField)
		}
	case AttachmentEmergency:
		if !a.isVideo() {
			return fail(ErrAttachmentKind, errors.CategoryValidation, i18n.MsgInvalidField)
		}
		if !s.emergency {
			return fail(ErrVideoNotAllowed, errors.CategoryValidation, i18n.MsgVideoRequiresSOS)
		}
		if countKind(s.files, AttachmentEmergency) > 0 {
			return fail(ErrVideoLimit, errors.CategoryLimit, i18n.MsgVideoLimit)
		}
	default:
		return fail(ErrAttachmentKind, errors.CategoryValidation, i18n.MsgInvalidField)
	}
	s.files = append(s.files, a)
	return nil
}

// RemoveAttachment drops an attachment by ID.
func (s *Session) RemoveAttachment(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(""); err != nil {
		return err
	}
	for i, a := range s.files {
		if a.ID == id {
			s.files = append(s.files[:i:i], s.files[i+1:]...)
			return nil
		}
	}
	return errors.New(ErrInvalidField).
		Component("capture").
		Category(errors.CategoryNotFound).
		Context(ContextMessageID, string(i18n.MsgInvalidField)).
		Context("attachment_id", id).
		Build()
}

func countKind(files []*Attachment, kind AttachmentKind) int {
	n := 0
	for _, a := range files {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

func removeKind(files []*Attachment, kind AttachmentKind) []*Attachment {
	kept := files[:0:0]
	for _, a := range files {
		if a.Kind != kind {
			kept = append(kept, a)
		}
	}
	return kept
}

// Snapshot is a read-only view of the session
type Snapshot struct {
	ID               string         `json:"id"`
	Lifecycle        Lifecycle      `json:"lifecycle"`
	Phase            Phase          `json:"phase"`
	Subject          Subject        `json:"subject"`
	Date             string         `json:"date"`
	InputMode        InputMode      `json:"input_mode"`
	Recording        RecordingState `json:"recording_state"`
	Starting         bool           `json:"recording_starting"`
	DurationSeconds  int            `json:"recording_duration_seconds"`
	HasAudio         bool           `json:"has_audio"`
	Narrative        string         `json:"narrative"`
	Transcript       string         `json:"transcript"`
	Form             *Form          `json:"form,omitempty"`
	Emergency        bool           `json:"is_emergency"`
	Attachments      []Attachment   `json:"attachments"`
	Processing       bool           `json:"processing"`
	Submitting       bool           `json:"submitting"`
	Receipt          *Receipt       `json:"receipt,omitempty"`
	Notice           i18n.MessageID `json:"notice,omitempty"`
	AnimalSelection  string         `json:"animal_selection"`
	SafetyGate       bool           `json:"safety_gate"`
	FormEditable     bool           `json:"form_editable"`
	MicrophoneExists bool           `json:"microphone_available"`
}

// Snapshot copies the current state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:               s.id,
		Lifecycle:        s.lifecycle,
		Phase:            s.phase,
		Subject:          s.subject,
		Date:             s.date.Format(time.DateOnly),
		InputMode:        s.mode,
		Recording:        s.recording,
		Starting:         s.starting,
		DurationSeconds:  s.durationLocked(),
		HasAudio:         s.clip != nil,
		Narrative:        s.narrative,
		Transcript:       s.transcript,
		Emergency:        s.emergency,
		Attachments:      make([]Attachment, 0, len(s.files)),
		Processing:       s.processing.Load(),
		Submitting:       s.submitting.Load(),
		Notice:           s.notice,
		AnimalSelection:  s.opts.AnimalSelection,
		SafetyGate:       s.opts.SafetyGate,
		FormEditable:     s.formEditableLocked(),
		MicrophoneExists: s.deps.Microphone != nil,
	}
	if s.form != nil {
		f := *s.form
		snap.Form = &f
	}
	if s.receipt != nil {
		r := *s.receipt
		snap.Receipt = &r
	}
	for _, a := range s.files {
		snap.Attachments = append(snap.Attachments, *a)
	}
	return snap
}

// Discard abandons the session, releasing the microphone. Results of calls
// still in flight are dropped.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lifecycle == LifecycleDiscarded || s.lifecycle == LifecycleCompleted {
		return
	}
	s.releaseMicrophoneLocked()
	s.clip = nil
	s.lifecycle = LifecycleDiscarded
	s.closeLocked()
	s.log.Debug("session discarded")
}

// closeLocked runs once when the session reaches a terminal state.
func (s *Session) closeLocked() {
	s.closeOnce.Do(func() {
		if s.deps.Metrics != nil {
			s.deps.Metrics.SessionsActive.Dec()
		}
	})
}

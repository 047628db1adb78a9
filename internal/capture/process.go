package capture

import (
	"context"
	"strings"
	"time"

	"github.com/tphakala/zoolog/internal/backend"
	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/i18n"
	"github.com/tphakala/zoolog/internal/logger"
	"github.com/tphakala/zoolog/internal/recorder"
)

// processJob is the input captured under the lock for one ProcessInput call
type processJob struct {
	mode      InputMode
	clip      *recorder.Clip
	narrative string
	date      time.Time
	language  string
	signer    string
}

// ProcessInput turns the recorded audio or typed narrative into a transcript
// and a structured form, then moves to review. Only one call runs at a time;
// others fail with ErrProcessing without touching the network. On failure
// every input is kept so the user can retry.
func (s *Session) ProcessInput(ctx context.Context) error {
	job, err := s.beginProcessing()
	if err != nil {
		return err
	}

	start := time.Now()
	transcript, form, err := s.runProcessing(ctx, job)
	s.observeProcessing(job.mode, err, time.Since(start))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing.Store(false)
	if s.lifecycle != LifecycleActive {
		return closed()
	}
	if err != nil {
		s.log.Warn("processing failed",
			logger.String("input_mode", string(job.mode)),
			logger.Error(err))
		return err
	}

	s.transcript = transcript
	s.form = &form
	s.phase = PhaseReviewing
	s.notice = i18n.MsgFormGenerated
	s.log.Info("observation processed",
		logger.String("input_mode", string(job.mode)),
		logger.Int("transcript_chars", len(transcript)))
	return nil
}

func (s *Session) beginProcessing() (processJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable("process_input"); err != nil {
		return processJob{}, err
	}
	if s.subject.empty() {
		return processJob{}, fail(ErrSubjectRequired, errors.CategoryValidation, i18n.MsgSubjectRequired)
	}

	job := processJob{
		mode:     s.mode,
		date:     s.date,
		language: s.language(),
		signer:   DefaultSignature,
	}
	if u, ok := s.deps.App.User(); ok && strings.TrimSpace(u.Name) != "" {
		job.signer = u.Name
	}

	switch s.mode {
	case InputAudio:
		if s.recording != RecordingDone || s.clip == nil {
			return processJob{}, fail(ErrNoAudio, errors.CategoryValidation, i18n.MsgNoAudio)
		}
		job.clip = s.clip
	case InputText:
		if strings.TrimSpace(s.narrative) == "" {
			return processJob{}, fail(ErrNarrativeRequired, errors.CategoryValidation, i18n.MsgNarrativeRequired)
		}
		job.narrative = s.narrative
	}

	if !s.processing.CompareAndSwap(false, true) {
		return processJob{}, busy()
	}
	s.notice = i18n.MsgProcessingAudio
	return job, nil
}

func (s *Session) runProcessing(ctx context.Context, job processJob) (string, Form, error) {
	transcript := job.narrative
	if job.mode == InputAudio {
		result, err := s.deps.Transcriber.Transcribe(ctx, backendFile(job.clip), job.language)
		if err != nil {
			return "", Form{}, serviceError(ErrTranscription, err, errors.CategoryTranscription, i18n.MsgProcessFailed, "transcribe")
		}
		transcript = strings.TrimSpace(result.Transcript)
		if transcript == "" {
			return "", Form{}, fail(ErrTranscription, errors.CategoryTranscription, i18n.MsgProcessFailed)
		}
	}

	form, err := s.deps.Structurer.Structure(ctx, StructureInput{
		Transcript: transcript,
		Date:       job.date,
		Language:   job.language,
		Signer:     job.signer,
	})
	if err != nil {
		return "", Form{}, serviceError(ErrStructuring, err, errors.CategoryTranscription, i18n.MsgProcessFailed, "structure")
	}
	return transcript, form, nil
}

func (s *Session) observeProcessing(mode InputMode, err error, elapsed time.Duration) {
	m := s.deps.Metrics
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.Processing.WithLabelValues(string(mode), status).Inc()
	m.ProcessDuration.WithLabelValues(string(mode)).Observe(elapsed.Seconds())
}

// serviceError wraps a collaborator failure. Auth and cancellation keep
// their own category so the caller can tell them from service faults.
func serviceError(sentinel, cause error, category errors.ErrorCategory, msg i18n.MessageID, op string) error {
	switch {
	case errors.IsCategory(cause, errors.CategoryAuth):
		category, msg = errors.CategoryAuth, i18n.MsgLoginRequired
	case errors.IsCategory(cause, errors.CategoryCancellation), errors.Is(cause, context.Canceled):
		category = errors.CategoryCancellation
	}
	return failWith(sentinel, cause, category, msg, op)
}

// UpdateFormField edits one field of the structured form. With the edit
// lock on this is only allowed while reviewing.
func (s *Session) UpdateFormField(field string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(""); err != nil {
		return err
	}
	if !s.formEditableLocked() {
		return invalidState("update_form_field")
	}
	return s.form.Set(field, value)
}

func (s *Session) formEditableLocked() bool {
	if s.lifecycle != LifecycleActive || s.form == nil {
		return false
	}
	return s.phase == PhaseReviewing || !s.opts.FormEditLock
}

// Back returns from review to input collection, keeping the form.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(""); err != nil {
		return err
	}
	if s.phase != PhaseReviewing {
		return invalidState("back")
	}
	s.phase = PhaseCollecting
	return nil
}

func backendFile(clip *recorder.Clip) backend.File {
	return backend.File{
		Name:        clip.Filename(),
		ContentType: clip.ContentType,
		Size:        clip.Size(),
		Open:        clip.Open,
	}
}

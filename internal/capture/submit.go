package capture

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/tphakala/zoolog/internal/backend"
	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/i18n"
	"github.com/tphakala/zoolog/internal/logger"
	"github.com/tphakala/zoolog/internal/notification"
)

// Receipt describes a saved observation
type Receipt struct {
	ObservationID       string           `json:"observation_id"`
	Emergency           bool             `json:"is_emergency"`
	AlertSent           bool             `json:"alert_sent"`
	Message             i18n.MessageID   `json:"message"`
	Warnings            []i18n.MessageID `json:"warnings,omitempty"`
	UploadFailures      []string         `json:"upload_failures,omitempty"`
	SafetyCheckRequired bool             `json:"safety_check_required"`
	SavedAt             time.Time        `json:"saved_at"`
}

type submitJob struct {
	request  *backend.CreateObservationRequest
	subject  Subject
	reporter string
	uploads  []*Attachment
}

// Submit creates the observation. It is rejected without a network call
// when no animal is set, and only one submit runs at a time. A failed
// submit keeps the transcript and form so it can simply be retried.
func (s *Session) Submit(ctx context.Context) (*Receipt, error) {
	job, err := s.beginSubmit()
	if err != nil {
		return nil, err
	}
	emergency := job.request.IsEmergency

	obs, err := s.deps.Store.CreateObservation(ctx, job.request)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.submitting.Store(false)
		s.observeSubmit(emergency, "error")
		s.log.Warn("failed to save observation",
			logger.Bool("emergency", emergency),
			logger.Error(err))
		if s.lifecycle != LifecycleActive {
			return nil, closed()
		}
		return nil, serviceError(ErrSave, err, errors.CategoryNetwork, i18n.MsgSaveFailed, "create_observation")
	}

	receipt := &Receipt{
		ObservationID: obs.ID,
		Emergency:     emergency,
		Message:       i18n.MsgSaved,
		SavedAt:       s.deps.Now(),
	}
	if emergency {
		receipt.AlertSent = s.raiseAlert(ctx, job, obs)
		if receipt.AlertSent {
			receipt.Message = i18n.MsgSavedEmergency
		} else {
			receipt.Warnings = append(receipt.Warnings, i18n.MsgEmergencyAlertFail)
		}
	}
	if s.opts.UploadMedia {
		receipt.UploadFailures = s.uploadMedia(ctx, obs.ID, job.uploads)
		if len(receipt.UploadFailures) > 0 {
			receipt.Warnings = append(receipt.Warnings, i18n.MsgMediaUploadFailed)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting.Store(false)
	s.observeSubmit(emergency, "success")
	s.log.Info("observation saved",
		logger.String("observation_id", obs.ID),
		logger.Bool("emergency", emergency),
		logger.Bool("alert_sent", receipt.AlertSent))

	if s.lifecycle != LifecycleActive {
		// saved on the server, but the user already left
		return receipt, nil
	}
	s.notice = receipt.Message
	if s.opts.SafetyGate {
		receipt.SafetyCheckRequired = true
		s.lifecycle = LifecycleAwaitingSafetyCheck
	} else {
		s.lifecycle = LifecycleCompleted
		s.closeLocked()
	}
	r := *receipt
	s.receipt = &r
	return receipt, nil
}

func (s *Session) beginSubmit() (submitJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lifecycle != LifecycleActive {
		return submitJob{}, closed()
	}
	if s.subject.empty() {
		return submitJob{}, fail(ErrSubjectRequired, errors.CategoryValidation, i18n.MsgSubjectRequired)
	}
	user, signedIn := s.deps.App.User()
	if signedIn && !user.Role.CanLogObservations() {
		return submitJob{}, errors.New(ErrNotAllowed).
			Component("capture").
			Category(errors.CategoryPermission).
			Context(ContextMessageID, string(i18n.MsgNotAllowed)).
			Context("role", string(user.Role)).
			Build()
	}
	if s.phase != PhaseReviewing || s.form == nil {
		return submitJob{}, invalidState("submit")
	}
	if s.processing.Load() || !s.submitting.CompareAndSwap(false, true) {
		return submitJob{}, busy()
	}

	req := &backend.CreateObservationRequest{
		AnimalID:           s.subject.AnimalID,
		AnimalName:         strings.TrimSpace(s.subject.Name),
		AudioText:          s.transcript,
		Date:               s.date.Format(time.DateOnly),
		IsEmergency:        s.emergency,
		HasAnimalImages:    countKind(s.files, AttachmentAnimal) > 0,
		HasEnclosureImages: countKind(s.files, AttachmentEnclosure) > 0,
		HasEmergencyVideo:  s.emergency && countKind(s.files, AttachmentEmergency) > 0,
		FormData:           s.form.Wire(),
	}
	job := submitJob{
		request: req,
		subject: s.subject,
		uploads: append([]*Attachment(nil), s.files...),
	}
	if signedIn {
		job.reporter = user.Name
	}
	return job, nil
}

// raiseAlert notifies supervisors through the backend and the push
// providers. It reports whether any path delivered the alert.
func (s *Session) raiseAlert(ctx context.Context, job submitJob, obs *backend.Observation) bool {
	animalID := obs.AnimalID
	if animalID == "" {
		animalID = job.subject.AnimalID
	}
	description := job.request.AudioText
	if description == "" {
		description = "Emergency reported for " + job.subject.Name
	}

	sent := false
	if s.deps.Alerter != nil {
		err := s.deps.Alerter.SendEmergencyAlert(ctx, &backend.EmergencyAlert{
			AnimalID:      animalID,
			Description:   description,
			ObservationID: obs.ID,
		})
		if err != nil {
			s.log.Error("emergency alert failed",
				logger.String("observation_id", obs.ID),
				logger.Error(err))
		} else {
			sent = true
		}
	}
	if s.deps.Notifier != nil {
		err := s.deps.Notifier.NotifyEmergency(ctx, notification.Alert{
			AnimalID:      animalID,
			AnimalName:    job.subject.Name,
			ObservationID: obs.ID,
			Description:   description,
			ReportedBy:    job.reporter,
			Time:          s.deps.Now(),
		})
		if err != nil {
			s.log.Warn("emergency push notification failed",
				logger.String("observation_id", obs.ID),
				logger.Error(err))
		} else {
			sent = true
		}
	}
	return sent
}

// uploadMedia sends attachment content after the observation exists.
// Failures are returned by name and never fail the submit.
func (s *Session) uploadMedia(ctx context.Context, observationID string, files []*Attachment) []string {
	var failed []string
	for i, a := range files {
		if _, err := s.deps.Store.AddMedia(ctx, observationID, a.mediaType(), a.file()); err != nil {
			s.log.Warn("media upload failed",
				logger.String("observation_id", observationID),
				logger.String("attachment", a.Name),
				logger.Int("index", i),
				logger.Error(err))
			name := a.Name
			if name == "" {
				name = strconv.Itoa(i)
			}
			failed = append(failed, name)
		}
	}
	return failed
}

func (s *Session) observeSubmit(emergency bool, status string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.Submissions.WithLabelValues(strconv.FormatBool(emergency), status).Inc()
	}
}

// AttachGatePhoto records the locked-gate photo required before Finish.
// With media upload enabled the photo must reach the backend.
func (s *Session) AttachGatePhoto(ctx context.Context, a *Attachment) error {
	s.mu.Lock()
	if s.lifecycle != LifecycleAwaitingSafetyCheck {
		s.mu.Unlock()
		if s.lifecycle == LifecycleActive {
			return invalidState("attach_gate_photo")
		}
		return closed()
	}
	if a == nil || a.Kind != AttachmentGate || !a.isImage() {
		s.mu.Unlock()
		return fail(ErrAttachmentKind, errors.CategoryValidation, i18n.MsgInvalidField)
	}
	observationID := s.receipt.ObservationID
	s.mu.Unlock()

	if s.opts.UploadMedia {
		if _, err := s.deps.Store.AddMedia(ctx, observationID, backend.MediaImage, a.file()); err != nil {
			return serviceError(ErrSave, err, errors.CategoryNetwork, i18n.MsgMediaUploadFailed, "add_media")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lifecycle != LifecycleAwaitingSafetyCheck {
		return closed()
	}
	s.files = append(s.files, a)
	s.notice = i18n.MsgGatePhotoUploaded
	return nil
}

// Finish closes a session waiting on the safety check. It is refused until
// a gate photo is attached.
func (s *Session) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.lifecycle {
	case LifecycleAwaitingSafetyCheck:
	case LifecycleActive:
		return invalidState("finish")
	default:
		return closed()
	}
	if countKind(s.files, AttachmentGate) == 0 {
		return fail(ErrGatePhotoRequired, errors.CategoryValidation, i18n.MsgGatePhotoRequired)
	}
	s.lifecycle = LifecycleCompleted
	s.notice = i18n.MsgSafetyCheckComplete
	s.closeLocked()
	s.log.Info("safety check complete")
	return nil
}

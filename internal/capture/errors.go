package capture

import (
	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/i18n"
	"github.com/tphakala/zoolog/internal/recorder"
)

// Sentinel errors. Every error returned by a Session wraps one of these or a
// recorder kind, and carries the notice to show the user.
var (
	ErrInvalidState      = errors.NewStd("operation not allowed in current state")
	ErrProcessing        = errors.NewStd("a request is already in flight")
	ErrSessionClosed     = errors.NewStd("session is closed")
	ErrSubjectRequired   = errors.NewStd("animal is required")
	ErrNoAudio           = errors.NewStd("no audio recorded")
	ErrNarrativeRequired = errors.NewStd("observation text is required")
	ErrFutureDate        = errors.NewStd("observation date is in the future")
	ErrInvalidField      = errors.NewStd("invalid form field")
	ErrVideoNotAllowed   = errors.NewStd("emergency video requires the emergency flag")
	ErrVideoLimit        = errors.NewStd("emergency video already attached")
	ErrAttachmentKind    = errors.NewStd("attachment type not accepted")
	ErrGatePhotoRequired = errors.NewStd("gate photo required")
	ErrNotAllowed        = errors.NewStd("role cannot log observations")
	ErrTranscription     = errors.NewStd("transcription failed")
	ErrStructuring       = errors.NewStd("form structuring failed")
	ErrSave              = errors.NewStd("failed to save observation")
)

// ContextMessageID is the error context key holding the user notice id.
const ContextMessageID = "message_id"

// fail builds a session error carrying the user notice id.
func fail(sentinel error, category errors.ErrorCategory, msg i18n.MessageID) error {
	return errors.New(sentinel).
		Component("capture").
		Category(category).
		Context(ContextMessageID, string(msg)).
		Build()
}

// failWith wraps a collaborator error under a sentinel.
func failWith(sentinel, cause error, category errors.ErrorCategory, msg i18n.MessageID, op string) error {
	return errors.New(errors.Join(sentinel, cause)).
		Component("capture").
		Category(category).
		Context(ContextMessageID, string(msg)).
		Context("operation", op).
		Build()
}

func invalidState(op string) error {
	return errors.New(ErrInvalidState).
		Component("capture").
		Category(errors.CategoryState).
		Context(ContextMessageID, string(i18n.MsgInvalidState)).
		Context("operation", op).
		Build()
}

func busy() error {
	return fail(ErrProcessing, errors.CategoryConflict, i18n.MsgBusy)
}

func closed() error {
	return fail(ErrSessionClosed, errors.CategoryState, i18n.MsgSessionClosed)
}

// microphoneError maps a recorder failure to its distinct notice.
func microphoneError(err error) error {
	msg, category := i18n.MsgMicrophoneFailed, errors.CategoryAudio
	switch {
	case errors.Is(err, recorder.ErrUnsupported):
		msg, category = i18n.MsgMicUnsupported, errors.CategoryUnsupported
	case errors.Is(err, recorder.ErrPermission):
		msg, category = i18n.MsgMicPermission, errors.CategoryPermission
	case errors.Is(err, recorder.ErrNoDevice):
		msg, category = i18n.MsgMicNotFound, errors.CategoryNotFound
	case errors.Is(err, recorder.ErrBusy):
		msg, category = i18n.MsgMicBusy, errors.CategoryDeviceBusy
	case errors.Is(err, recorder.ErrFormat):
		msg, category = i18n.MsgMicFormat, errors.CategoryUnsupported
	}
	return errors.New(err).
		Component("capture").
		Category(category).
		Context(ContextMessageID, string(msg)).
		Context("operation", "start_recording").
		Build()
}

// MessageID returns the user notice attached to err. Errors from outside the
// session fall back to a notice chosen by category.
func MessageID(err error) i18n.MessageID {
	if err == nil {
		return ""
	}
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		if v, ok := ee.ContextValue(ContextMessageID); ok {
			if s, ok := v.(string); ok && s != "" {
				return i18n.MessageID(s)
			}
		}
		switch ee.Category {
		case errors.CategoryAuth:
			return i18n.MsgLoginRequired
		case errors.CategoryPermission:
			return i18n.MsgMicPermission
		case errors.CategoryNetwork, errors.CategoryHTTP, errors.CategoryTimeout:
			return i18n.MsgSaveFailed
		}
	}
	return i18n.MsgInvalidState
}

// UserMessage renders the notice for err in the given language.
func UserMessage(err error, lang string) string {
	return i18n.T(lang, MessageID(err))
}

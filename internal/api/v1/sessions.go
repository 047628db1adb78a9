package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/zoolog/internal/capture"
	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/i18n"
	"github.com/tphakala/zoolog/internal/logger"
)

// SessionResponse is the session state plus its rendered notice
type SessionResponse struct {
	capture.Snapshot
	NoticeText string `json:"notice_text,omitempty"`
}

// InputRequest changes the collected input. Absent fields are left alone.
type InputRequest struct {
	Subject   *string            `json:"subject,omitempty"`
	AnimalID  *string            `json:"animal_id,omitempty"`
	Date      *string            `json:"date,omitempty"` // YYYY-MM-DD
	InputMode *capture.InputMode `json:"input_mode,omitempty"`
	Narrative *string            `json:"narrative,omitempty"`
	Emergency *bool              `json:"is_emergency,omitempty"`
}

var errSessionNotFound = errors.NewStd("session not found")

// session resolves :id and refreshes its expiry.
func (c *Controller) session(ctx echo.Context) (*capture.Session, error) {
	id := ctx.Param("id")
	v, ok := c.sessions.Get(id)
	if !ok {
		return nil, errors.New(errSessionNotFound).
			Component("api").
			Category(errors.CategoryNotFound).
			Context(capture.ContextMessageID, string(i18n.MsgSessionClosed)).
			Context("session_id", id).
			Build()
	}
	s := v.(*capture.Session)
	c.sessions.Set(id, s, cache.DefaultExpiration)
	return s, nil
}

func (c *Controller) respond(ctx echo.Context, code int, s *capture.Session) error {
	snap := s.Snapshot()
	resp := SessionResponse{Snapshot: snap}
	if snap.Notice != "" {
		resp.NoticeText = i18n.T(c.language(ctx), snap.Notice)
	}
	return ctx.JSON(code, resp)
}

// sessionAction runs fn against the addressed session and returns its state.
func (c *Controller) sessionAction(fn func(echo.Context, *capture.Session) error) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		s, err := c.session(ctx)
		if err != nil {
			return c.handleSessionError(ctx, err)
		}
		if err := fn(ctx, s); err != nil {
			return c.handleSessionError(ctx, err)
		}
		return c.respond(ctx, http.StatusOK, s)
	}
}

// CreateSession opens a capture session for a new entry screen.
func (c *Controller) CreateSession(ctx echo.Context) error {
	s, err := c.newSession(ctx.Request().Context())
	if err != nil {
		return c.handleSessionError(ctx, err)
	}
	c.sessions.Set(s.ID(), s, cache.DefaultExpiration)
	c.log.Info("session opened",
		logger.String("session_id", s.ID()),
		logger.Int("open_sessions", c.sessions.ItemCount()))
	return c.respond(ctx, http.StatusCreated, s)
}

// GetSession returns the session state
func (c *Controller) GetSession(ctx echo.Context) error {
	return c.sessionAction(func(echo.Context, *capture.Session) error { return nil })(ctx)
}

// DeleteSession discards the session; the eviction hook releases the microphone.
func (c *Controller) DeleteSession(ctx echo.Context) error {
	if _, err := c.session(ctx); err != nil {
		return c.handleSessionError(ctx, err)
	}
	c.sessions.Delete(ctx.Param("id"))
	return ctx.NoContent(http.StatusNoContent)
}

// UpdateInput applies the fields of an InputRequest in a fixed order and
// stops at the first rejected one.
func (c *Controller) UpdateInput(ctx echo.Context) error {
	return c.sessionAction(func(ctx echo.Context, s *capture.Session) error {
		var req InputRequest
		if err := decodeJSON(ctx, &req); err != nil {
			return invalidBody(err, "input")
		}
		if req.InputMode != nil {
			if err := s.SetInputMode(*req.InputMode); err != nil {
				return err
			}
		}
		if req.Subject != nil {
			if err := s.SetSubject(*req.Subject); err != nil {
				return err
			}
		}
		if req.AnimalID != nil {
			if err := s.SelectAnimal(ctx.Request().Context(), *req.AnimalID); err != nil {
				return err
			}
		}
		if req.Date != nil {
			day, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(*req.Date), c.settings.Location())
			if err != nil {
				return invalidBody(err, "date")
			}
			if err := s.SetObservationDate(day); err != nil {
				return err
			}
		}
		if req.Narrative != nil {
			if err := s.SetNarrative(*req.Narrative); err != nil {
				return err
			}
		}
		if req.Emergency != nil {
			if err := s.SetEmergency(*req.Emergency); err != nil {
				return err
			}
		}
		return nil
	})(ctx)
}

// StartRecording opens the microphone
func (c *Controller) StartRecording(ctx echo.Context) error {
	return c.sessionAction(func(ctx echo.Context, s *capture.Session) error {
		return s.StartRecording(ctx.Request().Context())
	})(ctx)
}

// StopRecording finalises the clip
func (c *Controller) StopRecording(ctx echo.Context) error {
	return c.sessionAction(func(_ echo.Context, s *capture.Session) error {
		return s.StopRecording()
	})(ctx)
}

// ResetRecording drops the clip
func (c *Controller) ResetRecording(ctx echo.Context) error {
	return c.sessionAction(func(_ echo.Context, s *capture.Session) error {
		return s.ResetRecording()
	})(ctx)
}

// ProcessInput transcribes and structures the input into the review form.
func (c *Controller) ProcessInput(ctx echo.Context) error {
	return c.sessionAction(func(ctx echo.Context, s *capture.Session) error {
		return s.ProcessInput(ctx.Request().Context())
	})(ctx)
}

// UpdateForm sets form fields from a JSON object of field name to value.
func (c *Controller) UpdateForm(ctx echo.Context) error {
	return c.sessionAction(func(ctx echo.Context, s *capture.Session) error {
		fields := map[string]any{}
		if err := decodeJSON(ctx, &fields); err != nil {
			return invalidBody(err, "form")
		}
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := s.UpdateFormField(name, fields[name]); err != nil {
				return err
			}
		}
		return nil
	})(ctx)
}

// Back returns from the review form to input collection
func (c *Controller) Back(ctx echo.Context) error {
	return c.sessionAction(func(_ echo.Context, s *capture.Session) error {
		return s.Back()
	})(ctx)
}

// Submit creates the observation. The receipt is part of the returned state.
func (c *Controller) Submit(ctx echo.Context) error {
	return c.sessionAction(func(ctx echo.Context, s *capture.Session) error {
		receipt, err := s.Submit(ctx.Request().Context())
		if err != nil {
			return err
		}
		c.log.Info("observation submitted",
			logger.String("session_id", s.ID()),
			logger.String("observation_id", receipt.ObservationID),
			logger.Bool("emergency", receipt.Emergency))
		return nil
	})(ctx)
}

// Finish closes the safety check
func (c *Controller) Finish(ctx echo.Context) error {
	return c.sessionAction(func(_ echo.Context, s *capture.Session) error {
		return s.Finish()
	})(ctx)
}

// decodeJSON reads the request body only. Bind would also copy path
// parameters into map targets.
func decodeJSON(ctx echo.Context, v any) error {
	dec := json.NewDecoder(ctx.Request().Body)
	return dec.Decode(v)
}

func invalidBody(err error, field string) error {
	return errors.New(err).
		Component("api").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context(capture.ContextMessageID, string(i18n.MsgInvalidField)).
		Build()
}

package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/zoolog/internal/appctx"
	"github.com/tphakala/zoolog/internal/backend"
	"github.com/tphakala/zoolog/internal/capture"
	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/i18n"
)

var (
	errAnimalsUnavailable = errors.NewStd("animal list not available")
	errAnimalNotFound     = errors.NewStd("animal not found")
)

// ProfileResponse is the shared application state the UI renders
type ProfileResponse struct {
	appctx.Snapshot
	CanLog bool `json:"can_log_observations"`
}

// SelectAnimalRequest picks the default animal for new sessions
type SelectAnimalRequest struct {
	AnimalID string `json:"animal_id"`
}

// SettingsRequest changes user preferences. Absent fields are left alone.
type SettingsRequest struct {
	Language *string `json:"language,omitempty"`
	DarkMode *bool   `json:"dark_mode,omitempty"`
}

func (c *Controller) profile() ProfileResponse {
	snap := c.app.Snapshot()
	return ProfileResponse{
		Snapshot: snap,
		CanLog:   snap.User != nil && snap.User.Role.CanLogObservations(),
	}
}

// GetProfile returns the signed-in user, language and selected animal.
func (c *Controller) GetProfile(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.profile())
}

// UpdateSettings stores preferences. The language is normalised to a
// supported code.
func (c *Controller) UpdateSettings(ctx echo.Context) error {
	var req SettingsRequest
	if err := decodeJSON(ctx, &req); err != nil {
		return c.handleSessionError(ctx, invalidBody(err, "settings"))
	}
	w := c.app.SettingsWriter()
	if req.Language != nil {
		w.SetLanguage(i18n.Code(i18n.Match(*req.Language)))
	}
	if req.DarkMode != nil {
		w.SetDarkMode(*req.DarkMode)
	}
	return ctx.JSON(http.StatusOK, c.profile())
}

// ListAnimals returns the backend animal list for the picker.
func (c *Controller) ListAnimals(ctx echo.Context) error {
	animals, err := c.listAnimals(ctx)
	if err != nil {
		return c.handleSessionError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, animals)
}

// SelectAnimal sets the animal new sessions start with.
func (c *Controller) SelectAnimal(ctx echo.Context) error {
	var req SelectAnimalRequest
	if err := decodeJSON(ctx, &req); err != nil {
		return c.handleSessionError(ctx, invalidBody(err, "animal_id"))
	}
	id := strings.TrimSpace(req.AnimalID)
	if id == "" {
		c.app.SelectionWriter().Select(nil)
		return ctx.JSON(http.StatusOK, c.profile())
	}

	animals, err := c.listAnimals(ctx)
	if err != nil {
		return c.handleSessionError(ctx, err)
	}
	for i := range animals {
		if animals[i].ID == id {
			c.app.SelectionWriter().Select(&appctx.Animal{
				ID:      animals[i].ID,
				Name:    animals[i].Name,
				Species: animals[i].Species,
			})
			return ctx.JSON(http.StatusOK, c.profile())
		}
	}
	return c.handleSessionError(ctx, errors.New(errAnimalNotFound).
		Component("api").
		Category(errors.CategoryNotFound).
		Context(capture.ContextMessageID, string(i18n.MsgSubjectRequired)).
		Context("animal_id", id).
		Build())
}

func (c *Controller) listAnimals(ctx echo.Context) ([]backend.Animal, error) {
	if c.animals == nil {
		return nil, errors.New(errAnimalsUnavailable).
			Component("api").
			Category(errors.CategoryUnsupported).
			Context(capture.ContextMessageID, string(i18n.MsgNotAllowed)).
			Build()
	}
	return c.animals.ListAnimals(ctx.Request().Context())
}

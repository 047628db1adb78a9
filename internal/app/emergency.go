package app

import (
	"context"
	"strings"

	"github.com/tphakala/zoolog/internal/backend"
	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/logger"
	"github.com/tphakala/zoolog/internal/notification"
)

// EmergencyResult reports which alert paths delivered
type EmergencyResult struct {
	Backend bool
	Push    bool
}

// SendEmergency raises an emergency for an animal without a daily log entry.
// It succeeds when at least one of the backend alert or the push fan-out
// delivered.
func (a *App) SendEmergency(ctx context.Context, animalID, description string) (*EmergencyResult, error) {
	animalID = strings.TrimSpace(animalID)
	description = strings.TrimSpace(description)
	if animalID == "" || description == "" {
		return nil, errors.Newf("animal and description are required").
			Component("app").
			Category(errors.CategoryValidation).
			Build()
	}

	animal, err := a.Backend.GetAnimal(ctx, animalID)
	if err != nil {
		return nil, err
	}

	var res EmergencyResult
	backendErr := a.Backend.SendEmergencyAlert(ctx, &backend.EmergencyAlert{
		AnimalID:    animal.ID,
		Description: description,
	})
	res.Backend = backendErr == nil
	if backendErr != nil {
		a.log.Warn("backend emergency alert failed", logger.Error(backendErr))
	}

	var pushErr error
	if a.Notifier != nil {
		alert := notification.Alert{
			AnimalID:    animal.ID,
			AnimalName:  animal.Name,
			Description: description,
			Time:        a.now(),
		}
		if user, ok := a.Context.User(); ok {
			alert.ReportedBy = user.Name
		}
		pushErr = a.Notifier.NotifyEmergency(ctx, alert)
		res.Push = pushErr == nil
	}

	if !res.Backend && !res.Push {
		return &res, errors.Join(backendErr, pushErr)
	}
	a.log.Info("emergency raised",
		logger.String("animal_id", animal.ID),
		logger.Bool("backend", res.Backend),
		logger.Bool("push", res.Push))
	return &res, nil
}

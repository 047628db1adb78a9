package conf

import (
	"fmt"

	"github.com/tphakala/zoolog/internal/secrets"
)

// resolveSecrets replaces credential fields that reference environment
// variables or secret files with their values
func resolveSecrets(s *Settings) error {
	var err error
	mqtt := &s.Notification.MQTT
	if mqtt.Password, err = secrets.Resolve(mqtt.PasswordFile, mqtt.Password); err != nil {
		return fmt.Errorf("notification.mqtt.password: %w", err)
	}
	if mqtt.Username, err = secrets.ExpandString(mqtt.Username); err != nil {
		return fmt.Errorf("notification.mqtt.username: %w", err)
	}
	for i, u := range s.Notification.URLs {
		if s.Notification.URLs[i], err = secrets.ExpandString(u); err != nil {
			return fmt.Errorf("notification.urls[%d]: %w", i, err)
		}
	}
	if s.Sentry.DSN, err = secrets.Resolve(s.Sentry.DSNFile, s.Sentry.DSN); err != nil {
		return fmt.Errorf("sentry.dsn: %w", err)
	}
	return nil
}

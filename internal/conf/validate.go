// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// SupportedLanguages lists the transcription and UI languages
var SupportedLanguages = []string{"en", "hi"}

// IsSupportedLanguage reports whether code is one of SupportedLanguages.
func IsSupportedLanguage(code string) bool {
	return slices.Contains(SupportedLanguages, code)
}

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, check := range []func(*Settings) error{
		validateBackendSettings,
		validateCaptureSettings,
		validateAudioSettings,
		validateServerSettings,
		validateNotificationSettings,
		validateSentrySettings,
	} {
		if err := check(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateBackendSettings(s *Settings) error {
	var errs []string

	u, err := url.Parse(s.Backend.URL)
	switch {
	case s.Backend.URL == "":
		errs = append(errs, "backend URL is required")
	case err != nil:
		errs = append(errs, fmt.Sprintf("invalid backend URL: %v", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, "backend URL must use http or https")
	}

	if s.Backend.Timeout <= 0 {
		errs = append(errs, "backend timeout must be positive")
	}
	if s.Backend.StructurePath != "" && !strings.HasPrefix(s.Backend.StructurePath, "/") {
		errs = append(errs, "backend structure path must start with /")
	}

	return joinErrors("backend", errs)
}

func validateCaptureSettings(s *Settings) error {
	var errs []string

	if s.Capture.AnimalSelection != AnimalSelectionList && s.Capture.AnimalSelection != AnimalSelectionFreeText {
		errs = append(errs, fmt.Sprintf("animal_selection must be %q or %q", AnimalSelectionList, AnimalSelectionFreeText))
	}
	if !IsSupportedLanguage(s.Capture.Language) {
		errs = append(errs, fmt.Sprintf("unsupported language %q", s.Capture.Language))
	}
	if s.Capture.Timezone != "" && s.Capture.Timezone != "Local" {
		if _, err := time.LoadLocation(s.Capture.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("invalid timezone %q", s.Capture.Timezone))
		}
	}

	return joinErrors("capture", errs)
}

func validateAudioSettings(s *Settings) error {
	var errs []string

	if s.Audio.SampleRate < 8000 || s.Audio.SampleRate > 48000 {
		errs = append(errs, "sample_rate must be between 8000 and 48000")
	}
	if s.Audio.Channels != 1 && s.Audio.Channels != 2 {
		errs = append(errs, "channels must be 1 or 2")
	}
	if s.Audio.MaxDuration <= 0 {
		errs = append(errs, "max_duration must be positive")
	}

	return joinErrors("audio", errs)
}

func validateServerSettings(s *Settings) error {
	var errs []string

	if s.Server.Listen == "" {
		errs = append(errs, "listen address is required")
	}
	if s.Server.RateLimit < 0 {
		errs = append(errs, "rate_limit cannot be negative")
	}
	if s.Server.SessionTTL <= 0 {
		errs = append(errs, "session_ttl must be positive")
	}

	return joinErrors("server", errs)
}

func validateNotificationSettings(s *Settings) error {
	if !s.Notification.Enabled {
		return nil
	}
	var errs []string

	if len(s.Notification.URLs) == 0 && !s.Notification.MQTT.Enabled {
		errs = append(errs, "enabled but no shoutrrr URLs or MQTT broker configured")
	}
	if s.Notification.MQTT.Enabled {
		if s.Notification.MQTT.Broker == "" {
			errs = append(errs, "mqtt broker is required")
		}
		if s.Notification.MQTT.Topic == "" {
			errs = append(errs, "mqtt topic is required")
		}
		if s.Notification.MQTT.QoS > 2 {
			errs = append(errs, "mqtt qos must be 0, 1 or 2")
		}
	}
	if s.Notification.RateLimit <= 0 {
		errs = append(errs, "rate_limit must be positive")
	}

	return joinErrors("notification", errs)
}

func validateSentrySettings(s *Settings) error {
	if s.Sentry.Enabled && s.Sentry.DSN == "" {
		return fmt.Errorf("sentry: dsn is required when enabled")
	}
	return nil
}

func joinErrors(section string, errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s: %s", section, strings.Join(errs, "; "))
}

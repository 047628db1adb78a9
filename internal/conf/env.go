// env.go - environment variable bindings and validation
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding maps one environment variable onto a config key
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"backend.url", "ZOOLOG_BACKEND_URL", validateEnvURL},
		{"backend.timeout", "ZOOLOG_BACKEND_TIMEOUT", validateEnvDuration},
		{"capture.language", "ZOOLOG_LANGUAGE", validateEnvLanguage},
		{"capture.timezone", "ZOOLOG_TIMEZONE", validateEnvTimezone},
		{"capture.animal_selection", "ZOOLOG_ANIMAL_SELECTION", validateEnvAnimalSelection},
		{"capture.safety_gate", "ZOOLOG_SAFETY_GATE", validateEnvBool},
		{"capture.upload_media", "ZOOLOG_UPLOAD_MEDIA", validateEnvBool},
		{"audio.device", "ZOOLOG_AUDIO_DEVICE", nil},
		{"server.listen", "ZOOLOG_LISTEN", nil},
		{"datastore.path", "ZOOLOG_DB_PATH", nil},
		{"logging.default_level", "ZOOLOG_LOG_LEVEL", validateEnvLogLevel},
		{"notification.mqtt.broker", "ZOOLOG_MQTT_BROKER", validateEnvURL},
		{"sentry.dsn", "ZOOLOG_SENTRY_DSN", validateEnvURL},
	}
}

// bindEnvVars binds every variable and validates the ones that are set
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}
		if binding.Validate == nil {
			continue
		}
		if value := os.Getenv(binding.EnvVar); value != "" {
			if err := binding.Validate(value); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid %s value %q: %v", binding.EnvVar, value, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true/false, 1/0, t/f")
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must be an absolute URL with scheme and host")
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validateEnvLanguage(value string) error {
	if !IsSupportedLanguage(value) {
		return fmt.Errorf("supported languages are %s", strings.Join(SupportedLanguages, ", "))
	}
	return nil
}

func validateEnvTimezone(value string) error {
	if value == "Local" {
		return nil
	}
	_, err := time.LoadLocation(value)
	return err
}

func validateEnvAnimalSelection(value string) error {
	if value != AnimalSelectionList && value != AnimalSelectionFreeText {
		return fmt.Errorf("must be %q or %q", AnimalSelectionList, AnimalSelectionFreeText)
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	switch value {
	case "trace", "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("must be one of trace, debug, info, warn, error")
}

// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig registers defaults for every key so an empty or partial
// config file still unmarshals into a usable Settings.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("main.name", "zoolog")
	v.SetDefault("main.debug", false)

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", true)
	v.SetDefault("logging.file_output.path", "logs/zoolog.log")
	v.SetDefault("logging.file_output.level", "info")
	v.SetDefault("logging.file_output.max_size", 50)
	v.SetDefault("logging.file_output.max_age", 30)
	v.SetDefault("logging.file_output.max_rotated_files", 5)
	v.SetDefault("logging.file_output.compress", false)

	v.SetDefault("backend.url", "http://localhost:8000")
	v.SetDefault("backend.timeout", 60*time.Second)
	v.SetDefault("backend.structure_path", "")
	v.SetDefault("backend.animal_cache_ttl", 5*time.Minute)

	v.SetDefault("capture.animal_selection", AnimalSelectionList)
	v.SetDefault("capture.safety_gate", false)
	v.SetDefault("capture.form_edit_lock", true)
	v.SetDefault("capture.upload_media", true)
	v.SetDefault("capture.language", "en")
	v.SetDefault("capture.timezone", "Local")

	v.SetDefault("audio.device", "")
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.max_duration", 10*time.Minute)

	v.SetDefault("server.listen", "127.0.0.1:8090")
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.session_ttl", 30*time.Minute)
	v.SetDefault("server.metrics", true)

	v.SetDefault("datastore.path", "zoolog.db")

	v.SetDefault("notification.enabled", false)
	v.SetDefault("notification.urls", []string{})
	v.SetDefault("notification.mqtt.enabled", false)
	v.SetDefault("notification.mqtt.topic", "zoolog/emergency")
	v.SetDefault("notification.mqtt.client_id", "zoolog")
	v.SetDefault("notification.mqtt.qos", 1)
	v.SetDefault("notification.mqtt.retain", false)
	v.SetDefault("notification.rate_limit", 6.0)
	v.SetDefault("notification.burst", 3)
	v.SetDefault("notification.timeout", 15*time.Second)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.environment", "production")
}

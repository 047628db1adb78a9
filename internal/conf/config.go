// config.go: settings struct for zoolog and the functions that load and save it.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// MainSettings contains general application settings
type MainSettings struct {
	Name  string `mapstructure:"name" yaml:"name"`   // device name reported to the backend user agent
	Debug bool   `mapstructure:"debug" yaml:"debug"` // debug mode
}

// BackendSettings points at the zoo REST backend
type BackendSettings struct {
	URL            string        `mapstructure:"url" yaml:"url"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	StructurePath  string        `mapstructure:"structure_path" yaml:"structure_path"` // optional server-side form structuring, empty = local
	AnimalCacheTTL time.Duration `mapstructure:"animal_cache_ttl" yaml:"animal_cache_ttl"`
}

// Animal selection modes
const (
	AnimalSelectionList     = "list"      // pick from the backend animal list
	AnimalSelectionFreeText = "free_text" // type the animal name
)

// CaptureSettings configures the daily-log capture workflow
type CaptureSettings struct {
	AnimalSelection string `mapstructure:"animal_selection" yaml:"animal_selection"`
	SafetyGate      bool   `mapstructure:"safety_gate" yaml:"safety_gate"`       // require a gate photo after submit
	FormEditLock    bool   `mapstructure:"form_edit_lock" yaml:"form_edit_lock"` // form fields editable only while reviewing
	UploadMedia     bool   `mapstructure:"upload_media" yaml:"upload_media"`     // upload attachment binaries after create
	Language        string `mapstructure:"language" yaml:"language"`             // transcription and UI language
	Timezone        string `mapstructure:"timezone" yaml:"timezone"`             // "Local" or IANA name, defines "today"
}

// AudioSettings configures microphone capture
type AudioSettings struct {
	Device      string        `mapstructure:"device" yaml:"device"` // capture device name or ID, empty = system default
	SampleRate  int           `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels    int           `mapstructure:"channels" yaml:"channels"`
	MaxDuration time.Duration `mapstructure:"max_duration" yaml:"max_duration"` // sizes the capture buffer
}

// ServerSettings configures the local HTTP API
type ServerSettings struct {
	Listen         string        `mapstructure:"listen" yaml:"listen"`
	RateLimit      float64       `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per second per client, 0 = off
	SessionTTL     time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
	Metrics        bool          `mapstructure:"metrics" yaml:"metrics"`
	AllowedOrigins []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"` // CORS, defaults to localhost
}

// DatastoreSettings configures the local credential store
type DatastoreSettings struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// MQTTSettings configures the MQTT emergency topic
type MQTTSettings struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	Broker       string `mapstructure:"broker" yaml:"broker"`
	Topic        string `mapstructure:"topic" yaml:"topic"`
	ClientID     string `mapstructure:"client_id" yaml:"client_id"`
	Username     string `mapstructure:"username" yaml:"username"`
	Password     string `mapstructure:"password" yaml:"password"`           // may reference ${ENV_VAR}
	PasswordFile string `mapstructure:"password_file" yaml:"password_file"` // overrides Password
	QoS          byte   `mapstructure:"qos" yaml:"qos"`
	Retain       bool   `mapstructure:"retain" yaml:"retain"`
}

// NotificationSettings configures emergency push fan-out
type NotificationSettings struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	URLs      []string      `mapstructure:"urls" yaml:"urls"` // shoutrrr service URLs, may reference ${ENV_VAR}
	MQTT      MQTTSettings  `mapstructure:"mqtt" yaml:"mqtt"`
	RateLimit float64       `mapstructure:"rate_limit" yaml:"rate_limit"` // alerts per minute per provider
	Burst     int           `mapstructure:"burst" yaml:"burst"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SentrySettings configures optional error telemetry
type SentrySettings struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	DSN         string `mapstructure:"dsn" yaml:"dsn"` // may reference ${ENV_VAR}
	DSNFile     string `mapstructure:"dsn_file" yaml:"dsn_file"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// Settings contains all configuration options for zoolog.
type Settings struct {
	Main         MainSettings         `mapstructure:"main" yaml:"main"`
	Logging      logger.LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Backend      BackendSettings      `mapstructure:"backend" yaml:"backend"`
	Capture      CaptureSettings      `mapstructure:"capture" yaml:"capture"`
	Audio        AudioSettings        `mapstructure:"audio" yaml:"audio"`
	Server       ServerSettings       `mapstructure:"server" yaml:"server"`
	Datastore    DatastoreSettings    `mapstructure:"datastore" yaml:"datastore"`
	Notification NotificationSettings `mapstructure:"notification" yaml:"notification"`
	Sentry       SentrySettings       `mapstructure:"sentry" yaml:"sentry"`

	// ConfigFile is the file the settings were read from.
	ConfigFile string `mapstructure:"-" yaml:"-"`
}

// Location resolves Capture.Timezone.
func (s *Settings) Location() *time.Location {
	switch s.Capture.Timezone {
	case "", "Local":
		return time.Local
	}
	loc, err := time.LoadLocation(s.Capture.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables. An empty
// configFile searches the default locations and writes the embedded default
// config to the first one if nothing is found.
func Load(configFile string) (*Settings, error) {
	v := viper.New()
	if err := initViper(v, configFile); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal-config").
			Build()
	}
	settings.ConfigFile = v.ConfigFileUsed()

	if err := resolveSecrets(settings); err != nil {
		return nil, err
	}
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()
	return settings, nil
}

func initViper(v *viper.Viper, configFile string) error {
	v.SetConfigType("yaml")
	setDefaultConfig(v)

	if err := bindEnvVars(v); err != nil {
		return errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "bind-env").
			Build()
	}

	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			if err := writeDefaultConfig(configFile); err != nil {
				return err
			}
		}
		v.SetConfigFile(configFile)
		return readConfig(v)
	}

	v.SetConfigName("config")
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return err
	}
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	err = v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) {
		return errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "read-config").
			Build()
	}

	created := filepath.Join(configPaths[0], "config.yaml")
	if err := writeDefaultConfig(created); err != nil {
		return err
	}
	v.SetConfigFile(created)
	return readConfig(v)
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		return errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "read-config").
			Context("file", v.ConfigFileUsed()).
			Build()
	}
	return nil
}

func writeDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "create-config-dir").
			Build()
	}
	if err := os.WriteFile(path, getDefaultConfig(), 0o600); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "write-default-config").
			Build()
	}
	GetLogger().Info("created default config file", logger.String("path", path))
	return nil
}

// getDefaultConfig returns the embedded config.yaml.
func getDefaultConfig() []byte {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		panic(fmt.Sprintf("embedded config.yaml missing: %v", err))
	}
	return data
}

// GetSettings returns the most recently loaded settings, or nil.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath atomically. Comments in the
// existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer func() { _ = os.Remove(tempFileName) }()

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		// cross-device rename
		if err := moveFile(tempFileName, configPath); err != nil {
			return fmt.Errorf("error copying config file: %w", err)
		}
	}
	return nil
}

// GetLogger returns the config module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}

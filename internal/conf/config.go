// Package conf loads, validates and saves PPE-Go settings.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/ppe-go/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// MainSettings identifies this node.
type MainSettings struct {
	Name string // node name used in MQTT topics and alerts
}

// DetectorSettings configures the PPE detection model and its inference parameters.
type DetectorSettings struct {
	ModelPath     string  `validate:"required"`         // path to the .tflite model
	LabelPath     string                               // optional labels.txt or metadata.yaml
	Confidence    float64 `validate:"gt=0,lte=1"`       // minimum detection confidence
	MaxDetections int     `validate:"gte=1,lte=300"`    // detections kept per frame
	ImageSize     int     `validate:"gte=32,lte=4096"`  // square model input size
	IoUThreshold  float64 `validate:"gt=0,lte=1"`       // NMS overlap threshold
	Threads       int     `validate:"gte=0,lte=256"`    // 0 means auto
	UseXNNPACK    bool                                 // enable the XNNPACK delegate
}

// WebServerSettings configures the HTTP API.
type WebServerSettings struct {
	Enabled   bool
	Port      string        `validate:"required,numeric"`
	Debug     bool
	BodyLimit string        // echo body limit, e.g. "10M"
	RateLimit float64       `validate:"gte=0"` // requests per second per client, 0 disables
	RateBurst int           `validate:"gte=0"`
	CacheTTL  time.Duration // lifetime of cached inspection artifacts
}

// TelemetrySettings configures the Prometheus metrics endpoint.
type TelemetrySettings struct {
	Enabled bool
	Listen  string
}

// SentrySettings configures error reporting.
type SentrySettings struct {
	Enabled bool
	DSN     string
}

// SQLiteSettings configures local inspection history.
type SQLiteSettings struct {
	Enabled bool
	Path    string
}

// MySQLSettings configures shared inspection history.
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Database string
	Host     string
	Port     string
}

// OutputSettings selects where inspections are persisted.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// MQTTSettings configures publishing of inspection snapshots.
type MQTTSettings struct {
	Enabled  bool
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	Retain   bool
}

// NotificationSettings configures shoutrrr alerts for risky frames.
type NotificationSettings struct {
	Enabled  bool
	URLs     []string
	MinFlags int `validate:"gte=1"`
}

// Settings holds the complete configuration.
type Settings struct {
	Debug     bool
	Version   string `yaml:"-"`
	BuildDate string `yaml:"-"`

	Main         MainSettings
	Detector     DetectorSettings
	WebServer    WebServerSettings
	Telemetry    TelemetrySettings
	Sentry       SentrySettings
	Output       OutputSettings
	MQTT         MQTTSettings
	Notification NotificationSettings
	Logging      logger.LoggingConfig
}

// viper is process-global, loads are serialized.
var loadMu sync.Mutex

// Load reads the configuration file and environment into a new Settings.
func Load() (*Settings, error) {
	loadMu.Lock()
	defer loadMu.Unlock()

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := configureEnvironmentVariables(); err != nil {
		// Bad environment values are reported but do not stop startup.
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// createDefaultConfig writes the embedded config.yaml into dir and reads it.
func createDefaultConfig(dir string) error {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	return viper.ReadInConfig()
}

// SaveYAMLConfig writes settings to configPath via a temporary file and rename.
// Comments in the existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}
	if err := os.Rename(tmpName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}

// Redacted returns a copy with credentials masked, for display.
func (s *Settings) Redacted() *Settings {
	c := *s
	mask := func(v string) string {
		if v == "" {
			return v
		}
		return "********"
	}
	c.Output.MySQL.Password = mask(c.Output.MySQL.Password)
	c.MQTT.Password = mask(c.MQTT.Password)
	c.Sentry.DSN = mask(c.Sentry.DSN)
	urls := make([]string, len(c.Notification.URLs))
	for i, u := range c.Notification.URLs {
		urls[i] = mask(u)
	}
	c.Notification.URLs = urls
	return &c
}

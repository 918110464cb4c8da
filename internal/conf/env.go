package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding maps an environment variable onto a config key.
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "PPE_DEBUG", validateEnvBool},

		// Detector
		{"detector.modelpath", "PPE_MODEL_PATH", validateEnvPath},
		{"detector.labelpath", "PPE_LABEL_PATH", validateEnvPath},
		{"detector.confidence", "PPE_CONFIDENCE", validateEnvThreshold},
		{"detector.iouthreshold", "PPE_IOU_THRESHOLD", validateEnvThreshold},
		{"detector.threads", "PPE_THREADS", validateEnvThreads},
		{"detector.usexnnpack", "PPE_USEXNNPACK", validateEnvBool},

		// Web server
		{"webserver.port", "PPE_WEBSERVER_PORT", validateEnvPort},

		// Secrets are commonly injected through the environment
		{"output.mysql.password", "PPE_MYSQL_PASSWORD", nil},
		{"mqtt.password", "PPE_MQTT_PASSWORD", nil},
		{"sentry.dsn", "PPE_SENTRY_DSN", nil},
	}
}

// bindEnvVars binds every variable and collects validation problems.
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}
		if binding.Validate == nil {
			continue
		}
		if value := os.Getenv(binding.EnvVar); value != "" {
			if err := binding.Validate(value); err != nil {
				warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, value, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value: %w", err)
	}
	return nil
}

func validateEnvThreshold(value string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("invalid threshold: %w", err)
	}
	if v <= 0 || v > 1 {
		return fmt.Errorf("threshold must be in (0, 1], got %g", v)
	}
	return nil
}

func validateEnvThreads(value string) error {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid thread count: %w", err)
	}
	if v < 0 || v > 256 {
		return fmt.Errorf("thread count must be between 0 and 256, got %d", v)
	}
	return nil
}

func validateEnvPort(value string) error {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if v < 1 || v > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", v)
	}
	return nil
}

func validateEnvPath(value string) error {
	cleaned := filepath.Clean(value)
	if !filepath.IsAbs(cleaned) {
		return fmt.Errorf("path must be absolute, got relative path: %s", cleaned)
	}
	for _, part := range strings.Split(cleaned, string(os.PathSeparator)) {
		if part == ".." {
			return fmt.Errorf("path traversal detected in cleaned path: %s", cleaned)
		}
	}
	if _, err := os.Stat(cleaned); os.IsNotExist(err) {
		return fmt.Errorf("warning: file does not exist: %s", cleaned)
	}
	return nil
}

func configureEnvironmentVariables() error {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return bindEnvVars()
}

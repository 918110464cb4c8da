package conf

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tphakala/ppe-go/internal/errors"
)

// ValidationError collects every configuration problem found in one pass.
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidateSettings checks field ranges and cross-section constraints.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for name, section := range map[string]any{
		"detector":     &settings.Detector,
		"webserver":    &settings.WebServer,
		"notification": &settings.Notification,
	} {
		if err := structValidator.Struct(section); err != nil {
			ve.Errors = append(ve.Errors, describeValidation(name, err)...)
		}
	}

	ve.Errors = append(ve.Errors, validateOutputSettings(&settings.Output)...)
	ve.Errors = append(ve.Errors, validateMQTTSettings(&settings.MQTT)...)

	if settings.Notification.Enabled && len(settings.Notification.URLs) == 0 {
		ve.Errors = append(ve.Errors, "notification: enabled but no URLs configured")
	}
	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry: enabled but DSN is empty")
	}
	if settings.Telemetry.Enabled && settings.Telemetry.Listen == "" {
		ve.Errors = append(ve.Errors, "telemetry: enabled but listen address is empty")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func describeValidation(section string, err error) []string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{fmt.Sprintf("%s: %v", section, err)}
	}
	out := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		out = append(out, fmt.Sprintf("%s.%s: value %v fails %s", section, strings.ToLower(fe.Field()), fe.Value(), rule))
	}
	return out
}

func validateOutputSettings(o *OutputSettings) []string {
	var errs []string
	if o.SQLite.Enabled && o.MySQL.Enabled {
		errs = append(errs, "output: sqlite and mysql cannot both be enabled")
	}
	if o.SQLite.Enabled && o.SQLite.Path == "" {
		errs = append(errs, "output.sqlite: path is required")
	}
	if o.MySQL.Enabled && (o.MySQL.Host == "" || o.MySQL.Database == "" || o.MySQL.Username == "") {
		errs = append(errs, "output.mysql: host, database and username are required")
	}
	return errs
}

func validateMQTTSettings(m *MQTTSettings) []string {
	if !m.Enabled {
		return nil
	}
	var errs []string
	if m.Broker == "" {
		errs = append(errs, "mqtt: broker is required")
	} else if u, err := url.Parse(m.Broker); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("mqtt: invalid broker URL %q", m.Broker))
	}
	if m.Topic == "" {
		errs = append(errs, "mqtt: topic is required")
	}
	return errs
}

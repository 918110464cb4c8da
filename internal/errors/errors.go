// Package errors provides enhanced error handling with component and category
// context, optional telemetry reporting and passthroughs to the standard library.
package errors

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// ErrorCategory groups errors for telemetry grouping and API status mapping.
type ErrorCategory string

const (
	CategoryModelInit     ErrorCategory = "model-initialization"
	CategoryModelLoad     ErrorCategory = "model-loading"
	CategoryLabelLoad     ErrorCategory = "label-loading"
	CategoryImageDecode   ErrorCategory = "image-decode"
	CategoryImageEncode   ErrorCategory = "image-encode"
	CategoryInference     ErrorCategory = "inference"
	CategoryValidation    ErrorCategory = "validation"
	CategoryFileIO        ErrorCategory = "file-io"
	CategoryDatabase      ErrorCategory = "database"
	CategoryMQTTConnect   ErrorCategory = "mqtt-connection"
	CategoryMQTTPublish   ErrorCategory = "mqtt-publish"
	CategoryNotification  ErrorCategory = "notification"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryHTTP          ErrorCategory = "http-request"
	CategoryNotFound      ErrorCategory = "not-found"
	CategorySystem        ErrorCategory = "system-resource"
	CategoryGeneric       ErrorCategory = "generic"
)

// Priority levels used by telemetry to pick a severity.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

const unknownComponent = "unknown"

// EnhancedError wraps an error with component, category and free-form context.
type EnhancedError struct {
	Err       error
	component string
	Category  ErrorCategory
	Priority  string
	Context   map[string]any
	Timestamp time.Time

	mu       sync.RWMutex
	reported bool
	detected bool
}

func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is matches another EnhancedError by category and message, or defers to the wrapped error.
func (ee *EnhancedError) Is(target error) bool {
	var other *EnhancedError
	if errors.As(target, &other) {
		return ee.Category == other.Category && ee.Err.Error() == other.Err.Error()
	}
	return errors.Is(ee.Err, target)
}

// GetComponent returns the component, detecting it from the call stack lazily.
func (ee *EnhancedError) GetComponent() string {
	ee.mu.Lock()
	defer ee.mu.Unlock()
	if ee.component == "" && !ee.detected {
		ee.component = detectComponent()
		ee.detected = true
	}
	if ee.component == "" {
		return unknownComponent
	}
	return ee.component
}

// GetCategory returns the error category.
func (ee *EnhancedError) GetCategory() ErrorCategory {
	return ee.Category
}

// GetContext returns a copy of the error context.
func (ee *EnhancedError) GetContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	if ee.Context == nil {
		return nil
	}
	return maps.Clone(ee.Context)
}

// MarkReported marks the error as sent to telemetry.
func (ee *EnhancedError) MarkReported() {
	ee.mu.Lock()
	ee.reported = true
	ee.mu.Unlock()
}

// IsReported reports whether the error has been sent to telemetry.
func (ee *EnhancedError) IsReported() bool {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	return ee.reported
}

// ErrorBuilder provides a fluent interface for building enhanced errors.
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	priority  string
	context   map[string]any
}

// New starts building an enhanced error around err.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf starts building an enhanced error from a format string.
func Newf(format string, args ...any) *ErrorBuilder {
	return &ErrorBuilder{err: fmt.Errorf(format, args...)}
}

func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

func (eb *ErrorBuilder) Priority(priority string) *ErrorBuilder {
	eb.priority = priority
	return eb
}

// Context adds a single key/value pair.
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// ModelContext records the model file and a coarse model type derived from its path.
func (eb *ErrorBuilder) ModelContext(modelPath, modelVersion string) *ErrorBuilder {
	eb.Context("model_type", categorizeModelPath(modelPath))
	eb.Context("model_file", filepath.Base(modelPath))
	if modelVersion != "" {
		eb.Context("model_version", modelVersion)
	}
	return eb
}

// FileContext records a file path and size without exposing the directory.
func (eb *ErrorBuilder) FileContext(path string, size int64) *ErrorBuilder {
	eb.Context("file_name", filepath.Base(path))
	eb.Context("file_ext", strings.ToLower(filepath.Ext(path)))
	if size > 0 {
		eb.Context("file_size", size)
	}
	return eb
}

// NetworkContext records a remote endpoint. URLs are scrubbed before reporting.
func (eb *ErrorBuilder) NetworkContext(url string, timeout time.Duration) *ErrorBuilder {
	eb.Context("url", url)
	if timeout > 0 {
		eb.Context("timeout_seconds", timeout.Seconds())
	}
	return eb
}

// Timing records how long an operation ran before failing.
func (eb *ErrorBuilder) Timing(operation string, duration time.Duration) *ErrorBuilder {
	eb.Context("operation", operation)
	eb.Context("duration_ms", duration.Milliseconds())
	return eb
}

// Build creates the EnhancedError and reports it if telemetry is active.
func (eb *ErrorBuilder) Build() *EnhancedError {
	if eb.err == nil {
		eb.err = errors.New("unknown error")
	}

	ee := &EnhancedError{
		Err:       eb.err,
		component: eb.component,
		Category:  eb.category,
		Priority:  eb.priority,
		Context:   eb.context,
		Timestamp: time.Now(),
	}

	// No reporter: skip stack inspection entirely.
	if !hasActiveReporting.Load() {
		if ee.Category == "" {
			ee.Category = CategoryGeneric
		}
		return ee
	}

	if ee.component == "" {
		ee.component = detectComponent()
		ee.detected = true
	}
	if ee.Category == "" {
		ee.Category = detectCategory(ee.Err, ee.component)
	}
	reportToTelemetry(ee)

	return ee
}

var (
	componentRegistry   = make(map[string]string)
	componentRegistryMu sync.RWMutex
)

// RegisterComponent maps a package path fragment to a component name.
func RegisterComponent(pathFragment, component string) {
	componentRegistryMu.Lock()
	componentRegistry[pathFragment] = component
	componentRegistryMu.Unlock()
}

func init() {
	RegisterComponent("internal/detector", "detector")
	RegisterComponent("internal/compliance", "compliance")
	RegisterComponent("internal/inspection", "inspection")
	RegisterComponent("internal/datastore", "datastore")
	RegisterComponent("internal/mqtt", "mqtt")
	RegisterComponent("internal/notification", "notification")
	RegisterComponent("internal/api", "api")
	RegisterComponent("internal/conf", "conf")
	RegisterComponent("internal/export", "export")
}

func detectComponent() string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "internal/errors/") {
			if component := lookupComponent(frame.File); component != "" {
				return component
			}
		}
		if !more {
			break
		}
	}
	return unknownComponent
}

func lookupComponent(file string) string {
	componentRegistryMu.RLock()
	defer componentRegistryMu.RUnlock()
	for fragment, component := range componentRegistry {
		if strings.Contains(file, fragment) {
			return component
		}
	}
	return ""
}

func detectCategory(err error, component string) ErrorCategory {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such file"), strings.Contains(msg, "permission denied"):
		return CategoryFileIO
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "connection refused"):
		return CategoryHTTP
	case strings.Contains(msg, "decode"), strings.Contains(msg, "unknown format"):
		return CategoryImageDecode
	case component == "datastore":
		return CategoryDatabase
	case component == "mqtt":
		return CategoryMQTTPublish
	}
	return CategoryGeneric
}

func categorizeModelPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tflite":
		return "tflite"
	case ".onnx":
		return "onnx"
	case ".pt":
		return "pytorch"
	case "":
		return "unknown"
	}
	return "custom"
}

// Wrap creates an enhanced error from an existing one, preserving it when already enhanced.
func Wrap(err error) *EnhancedError {
	if err == nil {
		return nil
	}
	var ee *EnhancedError
	if errors.As(err, &ee) {
		return ee
	}
	return New(err).Build()
}

// ValidationError creates a validation error.
func ValidationError(message string) *EnhancedError {
	return New(errors.New(message)).Category(CategoryValidation).Build()
}

// FileError creates a file I/O error carrying the file name.
func FileError(err error, path string) *EnhancedError {
	return New(err).Category(CategoryFileIO).FileContext(path, 0).Build()
}

// NotFound creates a not-found error for a resource type and identifier.
func NotFound(resource, id string) *EnhancedError {
	return New(fmt.Errorf("%s %s not found", resource, id)).
		Category(CategoryNotFound).
		Context("resource", resource).
		Build()
}

// IsCategory reports whether any error in err's chain has the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	if errors.As(err, &ee) {
		return ee.Category == category
	}
	return false
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound)
}

// NewStd creates a plain error, like errors.New from the standard library.
func NewStd(text string) error {
	return errors.New(text)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Unwrap(err error) error {
	return errors.Unwrap(err)
}

func Join(errs ...error) error {
	return errors.Join(errs...)
}

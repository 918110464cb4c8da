package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// CentralLogger owns the output handlers and hands out module loggers routed
// to the console, the main log file or a per-module file.
type CentralLogger struct {
	config         *LoggingConfig
	timezone       *time.Location
	baseHandler    slog.Handler
	defaultLevel   slog.Level
	moduleHandlers map[string]slog.Handler
	moduleLevels   map[string]slog.Level
	writers        map[string]*lumberjack.Logger
	mu             sync.RWMutex
}

// NewCentralLogger builds handlers for the given configuration. A nil config
// gets console and file output with default levels.
func NewCentralLogger(cfg *LoggingConfig) (*CentralLogger, error) {
	if cfg == nil {
		cfg = &LoggingConfig{}
	}
	conf := *cfg
	applyConfigDefaults(&conf)

	tz, err := loadTimezone(conf.Timezone)
	if err != nil {
		return nil, err
	}

	cl := &CentralLogger{
		config:         &conf,
		timezone:       tz,
		defaultLevel:   parseSlogLevel(conf.DefaultLevel),
		moduleHandlers: make(map[string]slog.Handler),
		moduleLevels:   make(map[string]slog.Level),
		writers:        make(map[string]*lumberjack.Logger),
	}

	var console slog.Handler
	if conf.Console.Enabled {
		console = newTextHandler(os.Stdout, parseSlogLevel(conf.Console.Level), false)
	}

	handlers := make([]slog.Handler, 0, 2)
	if console != nil {
		handlers = append(handlers, console)
	}
	if conf.FileOutput.Enabled && conf.FileOutput.Path != "" {
		w, err := cl.writerFor(conf.FileOutput.Path, conf.FileOutput)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, newJSONHandler(w, parseSlogLevel(conf.FileOutput.Level)))
	}
	cl.baseHandler = combineHandlers(handlers)

	for module, out := range conf.ModuleOutputs {
		if !out.Enabled || out.FilePath == "" {
			continue
		}
		w, err := cl.writerFor(out.FilePath, conf.FileOutput)
		if err != nil {
			_ = cl.Close()
			return nil, err
		}
		moduleHandlers := []slog.Handler{newJSONHandler(w, parseSlogLevel(out.Level))}
		if out.ConsoleAlso && console != nil {
			moduleHandlers = append(moduleHandlers, console)
		}
		cl.moduleHandlers[module] = combineHandlers(moduleHandlers)
		if out.Level != "" {
			cl.moduleLevels[module] = parseSlogLevel(out.Level)
		}
	}
	for module, level := range conf.ModuleLevels {
		cl.moduleLevels[module] = parseSlogLevel(level)
	}

	return cl, nil
}

func loadTimezone(name string) (*time.Location, error) {
	switch name {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	}
	tz, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid log timezone %q: %w", name, err)
	}
	return tz, nil
}

func combineHandlers(handlers []slog.Handler) slog.Handler {
	switch len(handlers) {
	case 0:
		return slog.DiscardHandler
	case 1:
		return handlers[0]
	}
	return newMultiWriterHandler(handlers...)
}

// writerFor returns a shared rotating writer per path.
func (cl *CentralLogger) writerFor(path string, rotation *FileOutput) (io.Writer, error) {
	if w, ok := cl.writers[path]; ok {
		return w, nil
	}
	if err := ensureFileDirectory(path); err != nil {
		return nil, err
	}
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rotation.MaxSize,
		MaxAge:     rotation.MaxAge,
		MaxBackups: rotation.MaxRotatedFiles,
		Compress:   rotation.Compress,
	}
	cl.writers[path] = w
	return w, nil
}

func ensureFileDirectory(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	return nil
}

// route resolves the handler and minimum level for a module, falling back
// through parent modules ("api.access" then "api") to the defaults.
func (cl *CentralLogger) route(module string) (slog.Handler, slog.Level) {
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	handler := cl.baseHandler
	level := cl.defaultLevel
	handlerFound, levelFound := false, false

	for name := module; name != ""; name = parentModule(name) {
		if h, ok := cl.moduleHandlers[name]; ok && !handlerFound {
			handler, handlerFound = h, true
		}
		if l, ok := cl.moduleLevels[name]; ok && !levelFound {
			level, levelFound = l, true
		}
	}
	return handler, level
}

func parentModule(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}

// Module returns a logger scoped to the named module.
func (cl *CentralLogger) Module(name string) Logger {
	handler, level := cl.route(name)
	return &moduleLogger{
		handler:  handler,
		level:    level,
		module:   name,
		timezone: cl.timezone,
		central:  cl,
	}
}

// Rotate forces rotation of every log file, e.g. on SIGHUP.
func (cl *CentralLogger) Rotate() error {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	var errs []error
	for _, w := range cl.writers {
		if err := w.Rotate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Flush is a no-op: lumberjack writes through on every record.
func (cl *CentralLogger) Flush() error {
	return nil
}

// Close closes all log files.
func (cl *CentralLogger) Close() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	var errs []error
	for path, w := range cl.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", path, err))
		}
	}
	cl.writers = make(map[string]*lumberjack.Logger)
	return errors.Join(errs...)
}

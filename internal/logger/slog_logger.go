package logger

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"
)

const (
	moduleKey  = "module"
	traceIDKey = "trace_id"

	levelTrace = slog.Level(-8)
)

type loggerContextKey struct{}

// WithTraceID returns a context carrying a trace ID picked up by WithContext.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, traceID)
}

// TraceIDFromContext returns the trace ID stored by WithTraceID.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(loggerContextKey{}).(string)
	return id, ok && id != ""
}

// moduleLogger is the slog-backed Logger implementation.
type moduleLogger struct {
	handler  slog.Handler
	level    slog.Level
	module   string
	timezone *time.Location
	fields   []Field
	ctx      context.Context
	central  *CentralLogger
}

// NewSlogLogger creates a standalone text logger writing to w. A nil writer
// means stdout and a nil timezone means local time.
func NewSlogLogger(w io.Writer, level LogLevel, tz *time.Location) Logger {
	if w == nil {
		w = os.Stdout
	}
	if tz == nil {
		tz = time.Local
	}
	lv := parseSlogLevel(string(level))
	return &moduleLogger{
		handler:  newTextHandler(w, lv, true),
		level:    lv,
		timezone: tz,
	}
}

func (l *moduleLogger) clone() *moduleLogger {
	c := *l
	c.fields = append([]Field(nil), l.fields...)
	return &c
}

func (l *moduleLogger) Module(name string) Logger {
	c := l.clone()
	if c.module == "" {
		c.module = name
	} else {
		c.module = c.module + "." + name
	}
	if c.central != nil {
		c.handler, c.level = c.central.route(c.module)
	}
	return c
}

func (l *moduleLogger) Trace(msg string, fields ...Field) { l.log(levelTrace, msg, fields) }
func (l *moduleLogger) Debug(msg string, fields ...Field) { l.log(slog.LevelDebug, msg, fields) }
func (l *moduleLogger) Info(msg string, fields ...Field)  { l.log(slog.LevelInfo, msg, fields) }
func (l *moduleLogger) Warn(msg string, fields ...Field)  { l.log(slog.LevelWarn, msg, fields) }
func (l *moduleLogger) Error(msg string, fields ...Field) { l.log(slog.LevelError, msg, fields) }

func (l *moduleLogger) Log(level LogLevel, msg string, fields ...Field) {
	l.log(parseSlogLevel(string(level)), msg, fields)
}

func (l *moduleLogger) With(fields ...Field) Logger {
	c := l.clone()
	c.fields = append(c.fields, fields...)
	return c
}

func (l *moduleLogger) WithContext(ctx context.Context) Logger {
	c := l.clone()
	c.ctx = ctx
	if id, ok := TraceIDFromContext(ctx); ok {
		c.fields = append(c.fields, String(traceIDKey, id))
	}
	return c
}

func (l *moduleLogger) Flush() error {
	if l.central != nil {
		return l.central.Flush()
	}
	return nil
}

func (l *moduleLogger) log(level slog.Level, msg string, fields []Field) {
	if level < l.level {
		return
	}
	ctx := l.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.handler.Enabled(ctx, level) {
		return
	}

	r := slog.NewRecord(time.Now().In(l.timezone), level, msg, 0)
	if l.module != "" {
		r.AddAttrs(slog.String(moduleKey, l.module))
	}
	for _, f := range l.fields {
		r.AddAttrs(fieldToAttr(f))
	}
	for _, f := range fields {
		r.AddAttrs(fieldToAttr(f))
	}
	_ = l.handler.Handle(ctx, r)
}

func fieldToAttr(f Field) slog.Attr {
	switch v := f.Value.(type) {
	case string:
		return slog.String(f.Key, v)
	case int:
		return slog.Int(f.Key, v)
	case int64:
		return slog.Int64(f.Key, v)
	case uint64:
		return slog.Uint64(f.Key, v)
	case bool:
		return slog.Bool(f.Key, v)
	case float32:
		return slog.Float64(f.Key, roundFloat(float64(v)))
	case float64:
		return slog.Float64(f.Key, roundFloat(v))
	case time.Time:
		return slog.Time(f.Key, v)
	case time.Duration:
		return slog.String(f.Key, v.Round(time.Millisecond).String())
	case nil:
		return slog.Any(f.Key, nil)
	}
	return slog.Any(f.Key, f.Value)
}

func roundFloat(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// parseSlogLevel maps a level name to a slog level, defaulting to info.
func parseSlogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return levelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func replaceLevelAttr(includeTime bool) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) > 0 {
			return a
		}
		switch a.Key {
		case slog.TimeKey:
			if !includeTime {
				return slog.Attr{}
			}
		case slog.LevelKey:
			if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= levelTrace {
				return slog.String(slog.LevelKey, "TRACE")
			}
		}
		return a
	}
}

func newTextHandler(w io.Writer, level slog.Leveler, includeTime bool) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelAttr(includeTime),
	})
}

func newJSONHandler(w io.Writer, level slog.Leveler) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelAttr(true),
	})
}

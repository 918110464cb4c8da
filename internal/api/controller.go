// Package api implements the /api/v1 HTTP endpoints for inspecting frames
// and reading inspection history.
package api

import (
	"context"
	"image"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/tphakala/ppe-go/internal/compliance"
	"github.com/tphakala/ppe-go/internal/conf"
	"github.com/tphakala/ppe-go/internal/datastore"
	"github.com/tphakala/ppe-go/internal/detection"
	"github.com/tphakala/ppe-go/internal/inspection"
	"github.com/tphakala/ppe-go/internal/logger"
	"github.com/tphakala/ppe-go/internal/observability/metrics"
)

// Inspector is the part of inspection.Service the API uses.
type Inspector interface {
	Inspect(ctx context.Context, img image.Image, source compliance.Source) (*inspection.Report, error)
	Get(ctx context.Context, id string) (*inspection.Report, error)
	Recent(ctx context.Context, limit int) ([]*inspection.Report, error)
	Summary(ctx context.Context) (*datastore.Summary, error)
	Vocabulary() detection.Vocabulary
	HasStore() bool
}

// ModelInfo describes the loaded model for /health and /vocabulary.
type ModelInfo struct {
	Name             string  `json:"name"`
	VocabularySource string  `json:"vocabulary_source"`
	Confidence       float64 `json:"confidence"`
	MaxDetections    int     `json:"max_detections"`
	ImageSize        int     `json:"image_size"`
}

// Controller manages the API routes and handlers.
type Controller struct {
	Echo      *echo.Echo
	Group     *echo.Group
	Settings  *conf.Settings
	inspector Inspector
	model     ModelInfo
	artifacts *artifactCache
	metrics   *metrics.HTTPMetrics
	log       logger.Logger
	accessLog logger.Logger
	startTime time.Time

	// cpu.Percent with a zero interval compares against the previous call
	cpuMu sync.Mutex
}

// Option configures the Controller.
type Option func(*Controller)

// WithModelInfo sets the model description served by /health.
func WithModelInfo(info ModelInfo) Option {
	return func(c *Controller) { c.model = info }
}

// WithMetrics records request metrics.
func WithMetrics(m *metrics.HTTPMetrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithLogger overrides the api module logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		c.log = l
		c.accessLog = l.Module("access")
	}
}

// New registers the /api/v1 routes on e.
func New(e *echo.Echo, settings *conf.Settings, inspector Inspector, opts ...Option) *Controller {
	c := &Controller{
		Echo:      e,
		Settings:  settings,
		inspector: inspector,
		artifacts: newArtifactCache(settings.WebServer.CacheTTL),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = GetLogger()
		c.accessLog = logger.Global().Module("api.access")
	}
	if e.Validator == nil {
		e.Validator = NewValidator()
	}

	c.Group = e.Group("/api/v1", c.LoggingMiddleware())
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)
	c.Group.GET("/vocabulary", c.GetVocabulary)

	c.Group.POST("/inspections", c.InspectUpload)
	c.Group.POST("/inspections/frame", c.InspectFrame)
	c.Group.GET("/inspections/recent", c.GetRecentInspections)
	c.Group.GET("/inspections/stats", c.GetInspectionStats)
	c.Group.GET("/inspections/:id", c.GetInspection)
	c.Group.GET("/inspections/:id/image", c.GetInspectionImage)
	c.Group.GET("/inspections/:id/detections", c.GetInspectionDetections)
}

// HealthCheck reports service status, model information and system load.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	uptime := time.Since(c.startTime)
	response := map[string]any{
		"status":         "healthy",
		"version":        c.Settings.Version,
		"build_date":     c.Settings.BuildDate,
		"uptime":         uptime.Round(time.Second).String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
		"model":          c.model,
		"history":        c.inspector.HasStore(),
	}

	system := map[string]any{
		"goroutines": runtime.NumGoroutine(),
		"num_cpu":    runtime.NumCPU(),
	}
	reqCtx := ctx.Request().Context()
	if vm, err := mem.VirtualMemoryWithContext(reqCtx); err == nil {
		system["memory"] = map[string]any{
			"total_mb":     vm.Total / 1024 / 1024,
			"used_mb":      vm.Used / 1024 / 1024,
			"used_percent": vm.UsedPercent,
		}
	}
	c.cpuMu.Lock()
	percents, err := cpu.PercentWithContext(reqCtx, 0, false)
	c.cpuMu.Unlock()
	if err == nil && len(percents) > 0 {
		system["cpu_usage"] = percents[0]
	}
	response["system"] = system

	return ctx.JSON(http.StatusOK, response)
}

// VocabularyEntry is one class of the active vocabulary.
type VocabularyEntry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// GetVocabulary lists the active classes ordered by ID.
func (c *Controller) GetVocabulary(ctx echo.Context) error {
	vocab := c.inspector.Vocabulary()
	entries := make([]VocabularyEntry, 0, len(vocab))
	for _, id := range vocab.IDs() {
		entries = append(entries, VocabularyEntry{ID: id, Name: vocab[id]})
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"source":  c.model.VocabularySource,
		"classes": entries,
	})
}

// Shutdown drops cached artifacts.
func (c *Controller) Shutdown() {
	c.artifacts.flush()
}

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("api")
	})
	return serviceLogger
}

// Package httpserver hosts the API on an Echo server with recovery, CORS,
// body size and per-client rate limits.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/tphakala/ppe-go/internal/api"
	"github.com/tphakala/ppe-go/internal/conf"
	"github.com/tphakala/ppe-go/internal/logger"
)

const (
	defaultPort      = "8080"
	defaultBodyLimit = "10M"
	shutdownTimeout  = 10 * time.Second
	rateLimitWindow  = 3 * time.Minute
)

// Server encapsulates the Echo instance and the API controller.
type Server struct {
	Echo     *echo.Echo
	Settings *conf.Settings
	API      *api.Controller

	apiOpts  []api.Option
	listener net.Listener
	log      logger.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithAPIOptions forwards options to the API controller.
func WithAPIOptions(opts ...api.Option) Option {
	return func(s *Server) { s.apiOpts = append(s.apiOpts, opts...) }
}

// WithListener serves on l instead of the configured port.
func WithListener(l net.Listener) Option {
	return func(s *Server) { s.listener = l }
}

// WithLogger overrides the httpserver module logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

// New builds the server and registers the API routes.
func New(settings *conf.Settings, inspector api.Inspector, opts ...Option) *Server {
	configureDefaultSettings(settings)

	s := &Server{
		Echo:     echo.New(),
		Settings: settings,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = GetLogger()
	}

	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.Debug = settings.WebServer.Debug
	s.Echo.Server.ReadHeaderTimeout = 10 * time.Second
	s.Echo.Server.ReadTimeout = 60 * time.Second
	s.Echo.Server.WriteTimeout = 60 * time.Second
	if s.listener != nil {
		s.Echo.Listener = s.listener
	}

	s.configureMiddleware()
	s.API = api.New(s.Echo, settings, inspector, s.apiOpts...)
	return s
}

func configureDefaultSettings(settings *conf.Settings) {
	if settings.WebServer.Port == "" {
		settings.WebServer.Port = defaultPort
	}
	if settings.WebServer.BodyLimit == "" {
		settings.WebServer.BodyLimit = defaultBodyLimit
	}
}

func (s *Server) configureMiddleware() {
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			"X-Requested-With",
		},
		ExposeHeaders: []string{echo.HeaderContentDisposition},
	}))
	s.Echo.Use(middleware.BodyLimit(s.Settings.WebServer.BodyLimit))

	if s.Settings.WebServer.RateLimit > 0 {
		s.Echo.Use(middleware.RateLimiterWithConfig(s.rateLimiterConfig()))
	}
}

func (s *Server) rateLimiterConfig() middleware.RateLimiterConfig {
	ws := s.Settings.WebServer
	burst := ws.RateBurst
	if burst <= 0 {
		burst = max(1, int(ws.RateLimit))
	}
	return middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			// health probes must never be throttled
			return c.Path() == "/api/v1/health"
		},
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(ws.RateLimit),
				Burst:     burst,
				ExpiresIn: rateLimitWindow,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(ctx echo.Context, err error) error {
			return ctx.JSON(http.StatusForbidden, map[string]string{"error": "unable to identify client"})
		},
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			s.log.Warn("rate limit exceeded",
				logger.String("client_ip", identifier),
				logger.String("path", ctx.Request().URL.Path))
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Too many requests, please slow down",
			})
		},
	}
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return ":" + s.Settings.WebServer.Port
}

// Run serves until ctx is cancelled, then shuts down gracefully. It returns
// nil after a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	var wg sync.WaitGroup
	wg.Go(func() {
		s.log.Info("HTTP server starting", logger.String("address", s.Addr()))
		if err := s.Echo.Start(s.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	})

	select {
	case err := <-errCh:
		wg.Wait()
		s.API.Shutdown()
		s.log.Error("HTTP server failed", logger.Error(err))
		return err
	case <-ctx.Done():
	}

	s.log.Info("stopping HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.Echo.Shutdown(shutdownCtx)
	wg.Wait()
	s.API.Shutdown()
	if err != nil {
		s.log.Error("HTTP server shutdown error", logger.Error(err))
		return err
	}
	return nil
}

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the httpserver package logger.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("httpserver")
	})
	return serviceLogger
}

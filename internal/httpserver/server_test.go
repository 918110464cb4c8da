package httpserver

import (
	"bytes"
	"context"
	"image"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/ppe-go/internal/api"
	"github.com/tphakala/ppe-go/internal/compliance"
	"github.com/tphakala/ppe-go/internal/conf"
	"github.com/tphakala/ppe-go/internal/datastore"
	"github.com/tphakala/ppe-go/internal/detection"
	"github.com/tphakala/ppe-go/internal/errors"
	"github.com/tphakala/ppe-go/internal/inspection"
	"github.com/tphakala/ppe-go/internal/logger"
)

// fakeInspector serves the health and vocabulary endpoints only.
type fakeInspector struct{}

func (fakeInspector) Inspect(context.Context, image.Image, compliance.Source) (*inspection.Report, error) {
	return nil, errors.ValidationError("not supported")
}

func (fakeInspector) Get(_ context.Context, id string) (*inspection.Report, error) {
	return nil, errors.NotFound("inspection", id)
}

func (fakeInspector) Recent(context.Context, int) ([]*inspection.Report, error) {
	return nil, nil
}

func (fakeInspector) Summary(context.Context) (*datastore.Summary, error) {
	return &datastore.Summary{}, nil
}

func (fakeInspector) Vocabulary() detection.Vocabulary { return detection.DefaultVocabulary() }
func (fakeInspector) HasStore() bool                   { return false }

func discard() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, nil)
}

func testSettings() *conf.Settings {
	s := &conf.Settings{Version: "test"}
	s.WebServer.Enabled = true
	return s
}

func newTestServer(settings *conf.Settings, opts ...Option) *Server {
	opts = append(opts, WithLogger(discard()), WithAPIOptions(api.WithLogger(discard())))
	return New(settings, fakeInspector{}, opts...)
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	settings := testSettings()
	s := newTestServer(settings)
	assert.Equal(t, ":8080", s.Addr())
	assert.Equal(t, "10M", settings.WebServer.BodyLimit)
	assert.True(t, s.Echo.HideBanner)
}

func TestRunServesAndShutsDown(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreCurrent(),
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := newTestServer(testSettings(), WithListener(ln))

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	client := &http.Client{
		Timeout:   5 * time.Second,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
	url := "http://" + ln.Addr().String() + "/api/v1/health"
	require.Eventually(t, func() bool {
		resp, err := client.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunReturnsListenerError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	s := newTestServer(testSettings(), WithListener(ln))
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	require.Error(t, s.Run(ctx))
}

func TestRateLimit(t *testing.T) {
	t.Parallel()
	settings := testSettings()
	settings.WebServer.RateLimit = 0.001
	settings.WebServer.RateBurst = 2
	s := newTestServer(settings)

	get := func(path string) int {
		req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
		req.RemoteAddr = "192.0.2.10:4321"
		rec := httptest.NewRecorder()
		s.Echo.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, get("/api/v1/vocabulary"))
	assert.Equal(t, http.StatusOK, get("/api/v1/vocabulary"))
	assert.Equal(t, http.StatusTooManyRequests, get("/api/v1/vocabulary"))
	// health is exempt
	assert.Equal(t, http.StatusOK, get("/api/v1/health"))
}

func TestRateLimitDisabled(t *testing.T) {
	t.Parallel()
	s := newTestServer(testSettings())
	for range 20 {
		rec := httptest.NewRecorder()
		s.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/vocabulary", http.NoBody))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestBodyLimit(t *testing.T) {
	t.Parallel()
	settings := testSettings()
	settings.WebServer.BodyLimit = "1K"
	s := newTestServer(settings)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/inspections/frame", bytes.NewReader(make([]byte, 4096)))
	req.Header.Set(echo.HeaderContentType, "image/png")
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestCORS(t *testing.T) {
	t.Parallel()
	s := newTestServer(testSettings())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/vocabulary", http.NoBody)
	req.Header.Set(echo.HeaderOrigin, "http://example.com")
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

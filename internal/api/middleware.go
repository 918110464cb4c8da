package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/ppe-go/internal/logger"
)

// LoggingMiddleware writes one access log line per request and records
// request metrics by route.
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			if err != nil {
				// let echo write the response so the status is known
				ctx.Error(err)
			}
			elapsed := time.Since(start)

			req := ctx.Request()
			res := ctx.Response()
			if c.metrics != nil {
				c.metrics.RecordRequest(req.Method, ctx.Path(), res.Status, elapsed.Seconds())
			}

			fields := []logger.Field{
				logger.String("method", req.Method),
				logger.String("path", req.URL.Path),
				logger.String("query", req.URL.RawQuery),
				logger.Int("status", res.Status),
				logger.String("ip", ctx.RealIP()),
				logger.String("user_agent", req.UserAgent()),
				logger.Int64("latency_ms", elapsed.Milliseconds()),
				logger.Int64("bytes_out", res.Size),
			}
			if err != nil {
				fields = append(fields, logger.Error(err))
			}
			c.accessLog.Info("API request", fields...)
			return nil
		}
	}
}

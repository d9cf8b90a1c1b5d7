package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"pvetopo/ctxlog"
)

// LoggerMiddleware attaches a request-scoped logger to the request context
// and writes one access line per request:
//
//	GET /topology -> 200 OK (234ms) from 127.0.0.1
func LoggerMiddleware(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			reqLogger := logger.With("method", req.Method, "path", req.URL.Path)
			c.SetRequest(req.WithContext(ctxlog.WithLogger(req.Context(), reqLogger)))

			// Process request
			err := next(c)

			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			reqLogger.Info("request",
				"status", status,
				"status_text", http.StatusText(status),
				"latency_ms", time.Since(start).Milliseconds(),
				"ip", c.RealIP(),
			)

			return nil
		}
	}
}

package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvetopo/ctxlog"
)

func TestLoggerMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := ctxlog.New(&buf, "info", "text")

	e := echo.New()
	e.Use(LoggerMiddleware(logger))
	e.GET("/topology", func(c echo.Context) error {
		ctxlog.FromContext(c.Request().Context()).Info("inside handler")
		return c.String(http.StatusOK, "ok")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/topology", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "inside handler")
	assert.Contains(t, lines[0], "path=/topology")
	assert.Contains(t, lines[1], "method=GET")
	assert.Contains(t, lines[1], "status=200")
}

func TestLoggerMiddlewareRecordsErrorStatus(t *testing.T) {
	var buf bytes.Buffer

	e := echo.New()
	e.Use(LoggerMiddleware(ctxlog.New(&buf, "info", "text")))
	e.GET("/nodes", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadGateway, "upstream down")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nodes", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, buf.String(), "status=502")
}

func TestRecoverMiddleware(t *testing.T) {
	var buf bytes.Buffer

	e := echo.New()
	e.Use(LoggerMiddleware(ctxlog.New(&buf, "info", "text")))
	e.Use(RecoverMiddleware())
	e.GET("/topology", func(c echo.Context) error {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/topology", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
	assert.Contains(t, buf.String(), "recovered from panic")
}

func TestCORSMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(CORSMiddleware([]string{"http://grafana.local"}))
	e.GET("/topology", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/topology", nil)
	req.Header.Set(echo.HeaderOrigin, "http://grafana.local")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "http://grafana.local", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))

	req = httptest.NewRequest(http.MethodGet, "/topology", nil)
	req.Header.Set(echo.HeaderOrigin, "http://evil.local")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

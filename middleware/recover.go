package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"pvetopo/ctxlog"
)

// RecoverMiddleware turns a panicking handler into a 500 with the same
// {"error": ...} body the handlers use.
func RecoverMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					ctxlog.FromContext(c.Request().Context()).Error("recovered from panic", "panic", r)
					err = echo.NewHTTPError(http.StatusInternalServerError, map[string]string{
						"error": "internal server error",
					})
				}
			}()
			return next(c)
		}
	}
}

package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"pvetopo/ctxlog"
	"pvetopo/services"
)

// respondError maps upstream failures to 502 and hides everything else
// behind a generic 500.
func respondError(c echo.Context, err error) error {
	if errors.Is(err, services.ErrUpstreamUnavailable) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "Failed to reach Proxmox API: " + err.Error(),
		})
	}

	logger := ctxlog.FromContext(c.Request().Context())
	if errors.Is(err, context.Canceled) {
		logger.Info("request cancelled by client", "error", err)
	} else {
		logger.Error("request failed", "error", err)
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"pvetopo/models"
	"pvetopo/utils"
)

type VersionSource interface {
	Version(ctx context.Context) (*models.VersionInfo, error)
}

type SystemHandlers struct {
	upstream   VersionSource
	minVersion string
	startedAt  time.Time
}

func NewSystemHandlers(upstream VersionSource, minVersion string) *SystemHandlers {
	return &SystemHandlers{
		upstream:   upstream,
		minVersion: minVersion,
		startedAt:  time.Now(),
	}
}

// GetHealth returns OK without touching the upstream
func (h *SystemHandlers) GetHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// GetStatus reports the upstream Proxmox VE release and whether it is
// supported
func (h *SystemHandlers) GetStatus(c echo.Context) error {
	v, err := h.upstream.Version(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}

	compatibility, message := utils.CheckVersionStatus(v.Version, h.minVersion)

	status := map[string]interface{}{
		"status": "running",
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
		"proxmox": map[string]string{
			"version":       v.Version,
			"release":       v.Release,
			"repoid":        v.RepoID,
			"compatibility": compatibility,
			"message":       message,
		},
		"timestamp": time.Now(),
	}
	return c.JSON(http.StatusOK, status)
}

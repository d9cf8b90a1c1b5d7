package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Register wires every route onto e.
func Register(e *echo.Echo, topology *TopologyHandlers, system *SystemHandlers, registry *prometheus.Registry) {
	e.GET("/health", system.GetHealth)
	e.GET("/status", system.GetStatus)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	e.GET("/nodes", topology.GetNodes)
	e.GET("/edges", topology.GetEdges)
	e.GET("/topology", topology.GetTopology)
}

package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"pvetopo/models"
)

// TopologySource builds a fresh graph per call
type TopologySource interface {
	BuildTopology(ctx context.Context) (models.Topology, error)
	Nodes(ctx context.Context) ([]models.GraphNode, error)
	Edges(ctx context.Context) ([]models.GraphEdge, error)
}

// TopologyHandlers serves the node graph endpoints
type TopologyHandlers struct {
	topology TopologySource
}

func NewTopologyHandlers(topology TopologySource) *TopologyHandlers {
	return &TopologyHandlers{
		topology: topology,
	}
}

// GetNodes godoc
// @Summary Graph nodes
// @Description Cluster, hypervisor nodes, guests and bridges
// @Produce json
// @Success 200 {array} models.GraphNode
// @Failure 502 {object} map[string]string
// @Router /nodes [get]
func (th *TopologyHandlers) GetNodes(c echo.Context) error {
	nodes, err := th.topology.Nodes(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, nodes)
}

// GetEdges godoc
// @Summary Graph edges
// @Produce json
// @Success 200 {array} models.GraphEdge
// @Failure 502 {object} map[string]string
// @Router /edges [get]
func (th *TopologyHandlers) GetEdges(c echo.Context) error {
	edges, err := th.topology.Edges(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, edges)
}

// GetTopology godoc
// @Summary Nodes and edges in one response
// @Produce json
// @Success 200 {object} models.Topology
// @Failure 502 {object} map[string]string
// @Router /topology [get]
func (th *TopologyHandlers) GetTopology(c echo.Context) error {
	topology, err := th.topology.BuildTopology(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, topology)
}

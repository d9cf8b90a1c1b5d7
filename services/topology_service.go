package services

import (
	"context"
	"fmt"
	"time"

	"pvetopo/config"
	"pvetopo/ctxlog"
	"pvetopo/models"
)

// ClusterAPI is the upstream the topology is derived from.
type ClusterAPI interface {
	ListResources(ctx context.Context) ([]models.Resource, error)
	GuestConfig(ctx context.Context, ref models.GuestRef) (models.GuestConfig, error)
	Version(ctx context.Context) (*models.VersionInfo, error)
}

// TopologyService rebuilds the graph from the cluster API on every call.
// It holds no per-request state.
type TopologyService struct {
	api     ClusterAPI
	opts    BuildOptions
	metrics *Metrics
}

func NewTopologyService(cfg *config.Config, api ClusterAPI, metrics *Metrics) *TopologyService {
	return &TopologyService{
		api: api,
		opts: BuildOptions{
			ClusterTitle: cfg.Topology.ClusterTitle,
			Concurrency:  cfg.Topology.Concurrency,
			FetchTimeout: cfg.ProxmoxTimeoutDuration(),
		},
		metrics: metrics,
	}
}

// BuildTopology lists the cluster resources and derives the graph. Only a
// failed listing or a cancelled request is returned as an error.
func (ts *TopologyService) BuildTopology(ctx context.Context) (models.Topology, error) {
	logger := ctxlog.FromContext(ctx)
	start := time.Now()

	resources, err := ts.api.ListResources(ctx)
	if err != nil {
		ts.metrics.observeBuild("upstream_error", time.Since(start))
		logger.Error("listing cluster resources failed", "error", err)
		return models.Topology{}, err
	}

	opts := ts.opts
	opts.OnFetchError = func(ref models.GuestRef, err error) {
		if ctx.Err() != nil {
			return
		}
		ts.metrics.observeFetchFailure(ref.Kind)
		logger.Warn("guest config unavailable, rendering without bridges",
			"node", ref.Node, "vmid", ref.VMID, "kind", ref.Kind, "error", err)
	}

	topo := BuildTopology(ctx, resources, ts.api.GuestConfig, opts)

	// A caller that went away leaves a degraded graph nobody reads
	if err := ctx.Err(); err != nil {
		ts.metrics.observeBuild("cancelled", time.Since(start))
		logger.Info("topology build abandoned", "error", err)
		return models.Topology{}, fmt.Errorf("topology build cancelled: %w", err)
	}

	ts.metrics.observeBuild("ok", time.Since(start))
	ts.metrics.observeTopology(topo)
	logger.Debug("topology built",
		"resources", len(resources), "nodes", len(topo.Nodes), "edges", len(topo.Edges),
		"elapsed", time.Since(start))

	return topo, nil
}

func (ts *TopologyService) Nodes(ctx context.Context) ([]models.GraphNode, error) {
	topo, err := ts.BuildTopology(ctx)
	if err != nil {
		return nil, err
	}
	return topo.Nodes, nil
}

func (ts *TopologyService) Edges(ctx context.Context) ([]models.GraphEdge, error) {
	topo, err := ts.BuildTopology(ctx)
	if err != nil {
		return nil, err
	}
	return topo.Edges, nil
}

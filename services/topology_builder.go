package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"pvetopo/models"
	"pvetopo/utils"
)

// ConfigFetcher returns the raw configuration of one guest.
type ConfigFetcher func(ctx context.Context, ref models.GuestRef) (models.GuestConfig, error)

const (
	DefaultClusterTitle = "PVE Cluster"
	DefaultConcurrency  = 8
)

type BuildOptions struct {
	ClusterTitle string
	// Concurrency bounds the number of config fetches in flight.
	Concurrency int
	// FetchTimeout applies to each fetch individually; zero means the
	// fetcher's own timeout is the only bound.
	FetchTimeout time.Duration
	// OnFetchError is told about every absorbed fetch failure. It is
	// called from fetch goroutines and must be safe for concurrent use.
	OnFetchError func(ref models.GuestRef, err error)
}

func (o BuildOptions) withDefaults() BuildOptions {
	if o.ClusterTitle == "" {
		o.ClusterTitle = DefaultClusterTitle
	}
	if o.Concurrency < 1 {
		o.Concurrency = DefaultConcurrency
	}
	if o.OnFetchError == nil {
		o.OnFetchError = func(models.GuestRef, error) {}
	}
	return o
}

type guest struct {
	ref      models.GuestRef
	resource models.Resource
}

type host struct {
	name   string
	status string
}

type bridgeKey struct {
	node string
	name string
}

type attachment struct {
	guest  models.GuestRef
	netKey string
	bridge bridgeKey
}

// BuildTopology turns the cluster resource listing into a graph. fetch is
// called once per distinct guest; its failures are absorbed and the guest
// is rendered without bridges.
func BuildTopology(ctx context.Context, resources []models.Resource, fetch ConfigFetcher, opts BuildOptions) models.Topology {
	opts = opts.withDefaults()

	guests := extractGuests(resources)
	hosts := collectHosts(resources, guests)
	configs := fetchConfigs(ctx, guests, fetch, opts)
	bridges, attachments := collectBridges(guests, configs)

	return models.Topology{
		Nodes: buildNodes(opts.ClusterTitle, hosts, guests, bridges),
		Edges: buildEdges(hosts, guests, attachments),
	}
}

// extractGuests keeps qemu/lxc resources that can be placed in the graph.
// vmid is cluster-wide unique, so the first resource per vmid wins.
func extractGuests(resources []models.Resource) []guest {
	seen := make(map[uint64]bool)
	var guests []guest
	for _, r := range resources {
		if !r.IsGuest() || r.Node == "" || r.VMID == 0 {
			continue
		}
		if seen[r.VMID] {
			continue
		}
		seen[r.VMID] = true
		guests = append(guests, guest{
			ref:      models.GuestRef{Node: r.Node, VMID: r.VMID, Kind: models.GuestKind(r.Type)},
			resource: r,
		})
	}
	return guests
}

// collectHosts lists hypervisor nodes in resource order, followed by any
// node a guest runs on that the listing did not include.
func collectHosts(resources []models.Resource, guests []guest) []host {
	seen := make(map[string]bool)
	var hosts []host
	for _, r := range resources {
		if r.Type != models.ResourceNode || r.Node == "" || seen[r.Node] {
			continue
		}
		seen[r.Node] = true
		hosts = append(hosts, host{name: r.Node, status: r.StatusOrUnknown()})
	}
	for _, g := range guests {
		if seen[g.ref.Node] {
			continue
		}
		seen[g.ref.Node] = true
		hosts = append(hosts, host{name: g.ref.Node, status: models.StatusUnknown})
	}
	return hosts
}

// fetchConfigs fans out one fetch per guest. Each goroutine owns its slot
// in the result slice.
func fetchConfigs(ctx context.Context, guests []guest, fetch ConfigFetcher, opts BuildOptions) []models.GuestConfig {
	configs := make([]models.GuestConfig, len(guests))

	var g errgroup.Group
	g.SetLimit(opts.Concurrency)
	for i, gu := range guests {
		g.Go(func() error {
			cfg, err := fetchOne(ctx, gu.ref, fetch, opts.FetchTimeout)
			if err != nil {
				opts.OnFetchError(gu.ref, err)
				cfg = models.GuestConfig{}
			}
			configs[i] = cfg
			return nil
		})
	}
	_ = g.Wait()

	return configs
}

func fetchOne(ctx context.Context, ref models.GuestRef, fetch ConfigFetcher, timeout time.Duration) (cfg models.GuestConfig, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("config fetch for %s panicked: %v", ref, r)
		}
	}()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cfg, err = fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = models.GuestConfig{}
	}
	return cfg, nil
}

// collectBridges parses every net<N> entry, in guest order then interface
// order, and returns the sorted distinct bridges plus one attachment per
// interface.
func collectBridges(guests []guest, configs []models.GuestConfig) ([]bridgeKey, []attachment) {
	set := make(map[bridgeKey]struct{})
	var attachments []attachment

	for i, g := range guests {
		cfg := configs[i]
		for _, key := range utils.SortedNetKeys(cfg) {
			name, ok := utils.BridgeFromNetValue(cfg[key])
			if !ok {
				continue
			}
			bk := bridgeKey{node: g.ref.Node, name: name}
			set[bk] = struct{}{}
			attachments = append(attachments, attachment{guest: g.ref, netKey: key, bridge: bk})
		}
	}

	bridges := make([]bridgeKey, 0, len(set))
	for bk := range set {
		bridges = append(bridges, bk)
	}
	sort.Slice(bridges, func(i, j int) bool {
		if bridges[i].node != bridges[j].node {
			return bridges[i].node < bridges[j].node
		}
		return bridges[i].name < bridges[j].name
	})

	return bridges, attachments
}

func buildNodes(clusterTitle string, hosts []host, guests []guest, bridges []bridgeKey) []models.GraphNode {
	nodes := make([]models.GraphNode, 0, 1+len(hosts)+len(guests)+len(bridges))

	nodes = append(nodes, models.GraphNode{
		ID:       models.ClusterNodeID,
		Title:    clusterTitle,
		SubTitle: "proxmox",
	})

	for _, h := range hosts {
		nodes = append(nodes, models.GraphNode{
			ID:       models.HostNodeID(h.name),
			Title:    h.name,
			SubTitle: "node",
			MainStat: h.status,
		})
	}

	for _, g := range guests {
		title := g.resource.Name
		if title == "" {
			title = fmt.Sprintf("%s-%d", g.ref.Kind, g.ref.VMID)
		}
		nodes = append(nodes, models.GraphNode{
			ID:       models.GuestNodeID(g.ref.VMID),
			Title:    title,
			SubTitle: fmt.Sprintf("%s @ %s", g.ref.Kind, g.ref.Node),
			MainStat: g.resource.StatusOrUnknown(),
		})
	}

	for _, b := range bridges {
		nodes = append(nodes, models.GraphNode{
			ID:       models.BridgeNodeID(b.node, b.name),
			Title:    b.name,
			SubTitle: "bridge @ " + b.node,
		})
	}

	return nodes
}

func buildEdges(hosts []host, guests []guest, attachments []attachment) []models.GraphEdge {
	edges := make([]models.GraphEdge, 0, len(hosts)+len(guests)+len(attachments))
	add := func(source, target, mainStat string) {
		edges = append(edges, models.GraphEdge{
			ID:       fmt.Sprintf("e%d", len(edges)+1),
			Source:   source,
			Target:   target,
			MainStat: mainStat,
		})
	}

	for _, h := range hosts {
		add(models.ClusterNodeID, models.HostNodeID(h.name), "")
	}
	for _, g := range guests {
		add(models.HostNodeID(g.ref.Node), models.GuestNodeID(g.ref.VMID), "")
	}
	for _, a := range attachments {
		add(models.BridgeNodeID(a.bridge.node, a.bridge.name), models.GuestNodeID(a.guest.VMID), a.netKey)
	}

	return edges
}

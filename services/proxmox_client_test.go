package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvetopo/config"
	"pvetopo/models"
)

func newFakePVE(t *testing.T) *httptest.Server {
	t.Helper()

	routes := map[string]any{
		"/api2/json/cluster/resources": []map[string]any{
			{"id": "node/pve1", "type": "node", "node": "pve1", "status": "online"},
			{"id": "qemu/100", "type": "qemu", "node": "pve1", "vmid": 100, "name": "web1", "status": "running"},
			{"id": "lxc/200", "type": "lxc", "node": "pve1", "vmid": 200, "status": "stopped"},
			{"id": "storage/pve1/local", "type": "storage", "node": "pve1", "status": "available"},
		},
		"/api2/json/nodes/pve1/qemu/100/config": map[string]any{
			"net0":   "virtio=AA:BB:CC:DD:EE:FF,bridge=vmbr0,firewall=1",
			"memory": 2048,
		},
		"/api2/json/nodes/pve1/lxc/200/config": map[string]any{
			"net0": "name=eth0,bridge=vmbr1,ip=dhcp,type=veth",
		},
		"/api2/json/version": map[string]any{
			"version": "8.1.4", "release": "8.1", "repoid": "ec5affc9e41f1d79",
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Authorization"), "api@pve!graph=secret") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		data, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"data":null}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClientConfig(host string) *config.Config {
	cfg := config.Default()
	cfg.Proxmox.Host = host
	cfg.Proxmox.User = "api@pve"
	cfg.Proxmox.TokenName = "graph"
	cfg.Proxmox.TokenValue = "secret"
	return cfg
}

func TestProxmoxClient_ListResources(t *testing.T) {
	srv := newFakePVE(t)
	client := NewProxmoxClient(testClientConfig(srv.URL))

	resources, err := client.ListResources(context.Background())
	require.NoError(t, err)
	require.Len(t, resources, 4)

	assert.Equal(t, models.Resource{ID: "node/pve1", Type: "node", Node: "pve1", Status: "online"}, resources[0])
	assert.Equal(t, uint64(100), resources[1].VMID)
	assert.Equal(t, "web1", resources[1].Name)
	assert.True(t, resources[2].IsGuest())
	assert.False(t, resources[3].IsGuest())
}

func TestProxmoxClient_GuestConfig(t *testing.T) {
	srv := newFakePVE(t)
	client := NewProxmoxClient(testClientConfig(srv.URL))

	cfg, err := client.GuestConfig(context.Background(), models.GuestRef{Node: "pve1", VMID: 100, Kind: models.KindQemu})
	require.NoError(t, err)
	assert.Equal(t, "virtio=AA:BB:CC:DD:EE:FF,bridge=vmbr0,firewall=1", cfg["net0"])
	assert.Equal(t, float64(2048), cfg["memory"])

	cfg, err = client.GuestConfig(context.Background(), models.GuestRef{Node: "pve1", VMID: 200, Kind: models.KindLXC})
	require.NoError(t, err)
	assert.Equal(t, "name=eth0,bridge=vmbr1,ip=dhcp,type=veth", cfg["net0"])
}

func TestProxmoxClient_GuestConfigUnknownKind(t *testing.T) {
	client := NewProxmoxClient(testClientConfig("http://127.0.0.1:1"))

	_, err := client.GuestConfig(context.Background(), models.GuestRef{Node: "pve1", VMID: 1, Kind: "openvz"})
	assert.ErrorContains(t, err, "unsupported guest kind")
}

func TestProxmoxClient_Version(t *testing.T) {
	srv := newFakePVE(t)
	client := NewProxmoxClient(testClientConfig(srv.URL))

	v, err := client.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "8.1.4", v.Version)
	assert.Equal(t, "8.1", v.Release)
}

func TestProxmoxClient_Unreachable(t *testing.T) {
	srv := newFakePVE(t)
	url := srv.URL
	srv.Close()

	client := NewProxmoxClient(testClientConfig(url))

	_, err := client.ListResources(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)

	_, err = client.Version(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)

	_, err = client.GuestConfig(context.Background(), models.GuestRef{Node: "pve1", VMID: 100, Kind: models.KindQemu})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUpstreamUnavailable)
}

// newErrorPVE answers every path with code and an empty data envelope, the
// way PVE and fronting proxies do for 404/503/595.
func newErrorPVE(t *testing.T, code int) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{"data":null}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

var upstreamErrorCodes = []int{
	http.StatusNotFound,
	http.StatusServiceUnavailable,
	595,
	596,
}

func TestProxmoxClient_ErrorStatus(t *testing.T) {
	for _, code := range upstreamErrorCodes {
		t.Run(fmt.Sprint(code), func(t *testing.T) {
			client := NewProxmoxClient(testClientConfig(newErrorPVE(t, code).URL))

			resources, err := client.ListResources(context.Background())
			assert.ErrorIs(t, err, ErrUpstreamUnavailable)
			assert.Nil(t, resources)

			v, err := client.Version(context.Background())
			assert.ErrorIs(t, err, ErrUpstreamUnavailable)
			assert.Nil(t, v)

			cfg, err := client.GuestConfig(context.Background(), models.GuestRef{Node: "pve1", VMID: 100, Kind: models.KindQemu})
			assert.Error(t, err)
			assert.NotErrorIs(t, err, ErrUpstreamUnavailable)
			assert.Nil(t, cfg)
		})
	}
}

func TestTopologyService_ErrorStatusListing(t *testing.T) {
	for _, code := range upstreamErrorCodes {
		t.Run(fmt.Sprint(code), func(t *testing.T) {
			client := NewProxmoxClient(testClientConfig(newErrorPVE(t, code).URL))
			svc, metrics := newTestService(client)

			_, err := svc.BuildTopology(context.Background())
			assert.ErrorIs(t, err, ErrUpstreamUnavailable)
			assert.Equal(t, float64(1), testutil.ToFloat64(metrics.builds.WithLabelValues("upstream_error")))
			assert.Equal(t, float64(0), testutil.ToFloat64(metrics.builds.WithLabelValues("ok")))
		})
	}
}

func TestTopologyService_GuestConfigErrorStatus(t *testing.T) {
	resources := []map[string]any{
		{"type": "node", "node": "pve1", "status": "online"},
		{"type": "qemu", "node": "pve1", "vmid": 100, "status": "running"},
		{"type": "lxc", "node": "pve1", "vmid": 200, "status": "running"},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api2/json/cluster/resources":
			_ = json.NewEncoder(w).Encode(map[string]any{"data": resources})
		case "/api2/json/nodes/pve1/lxc/200/config":
			_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"net0": "name=eth0,bridge=vmbr0"}})
		default:
			w.WriteHeader(595)
			_, _ = w.Write([]byte(`{"data":null}`))
		}
	}))
	t.Cleanup(srv.Close)

	svc, metrics := newTestService(NewProxmoxClient(testClientConfig(srv.URL)))

	topo, err := svc.BuildTopology(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"cluster", "node:pve1", "vm:100", "vm:200", "br:pve1:vmbr0"}, nodeIDs(topo.Nodes))
	assert.Equal(t, []link{
		{"cluster", "node:pve1", ""},
		{"node:pve1", "vm:100", ""},
		{"node:pve1", "vm:200", ""},
		{"br:pve1:vmbr0", "vm:200", "net0"},
	}, links(topo.Edges))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.fetchFailures.WithLabelValues("qemu")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.fetchFailures.WithLabelValues("lxc")))
}

package services

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/luthermonson/go-proxmox"

	"pvetopo/config"
	"pvetopo/models"
)

// ErrUpstreamUnavailable marks failures to reach or query the Proxmox API
// that leave the request without a resource list.
var ErrUpstreamUnavailable = errors.New("proxmox api unavailable")

// ProxmoxClient is the read-only view of the cluster API the topology
// needs.
type ProxmoxClient struct {
	client *proxmox.Client
}

func NewProxmoxClient(cfg *config.Config) *ProxmoxClient {
	httpClient := &http.Client{
		Timeout: cfg.ProxmoxTimeoutDuration(),
		Transport: &statusTransport{
			next: &http.Transport{
				// Proxmox ships with a self-signed certificate
				TLSClientConfig:     &tls.Config{InsecureSkipVerify: !cfg.Proxmox.VerifySSL}, //nolint:gosec
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     30 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		},
	}

	return &ProxmoxClient{
		client: proxmox.NewClient(cfg.ProxmoxBaseURL(),
			proxmox.WithHTTPClient(httpClient),
			proxmox.WithAPIToken(cfg.ProxmoxTokenID(), cfg.Proxmox.TokenValue),
		),
	}
}

// ListResources returns every entry of /cluster/resources.
func (c *ProxmoxClient) ListResources(ctx context.Context) ([]models.Resource, error) {
	var resources []models.Resource
	if err := c.client.Get(ctx, "/cluster/resources", &resources); err != nil {
		return nil, fmt.Errorf("%w: list cluster resources: %w", ErrUpstreamUnavailable, err)
	}
	return resources, nil
}

// GuestConfig returns the current configuration of a qemu VM or lxc
// container.
func (c *ProxmoxClient) GuestConfig(ctx context.Context, ref models.GuestRef) (models.GuestConfig, error) {
	switch ref.Kind {
	case models.KindQemu, models.KindLXC:
	default:
		return nil, fmt.Errorf("unsupported guest kind %q", ref.Kind)
	}

	var cfg models.GuestConfig
	if err := c.client.Get(ctx, ref.ConfigPath(), &cfg); err != nil {
		return nil, fmt.Errorf("get config of %s: %w", ref, err)
	}
	return cfg, nil
}

func (c *ProxmoxClient) Version(ctx context.Context) (*models.VersionInfo, error) {
	var v models.VersionInfo
	if err := c.client.Get(ctx, "/version", &v); err != nil {
		return nil, fmt.Errorf("%w: get version: %w", ErrUpstreamUnavailable, err)
	}
	return &v, nil
}

// StatusError is an upstream reply outside 2xx, e.g. 404 from a wrong
// base path, 503 from a proxy or 595/596 when PVE cannot reach a node.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned %s", e.Status)
	}
	return fmt.Sprintf("upstream returned %s: %s", e.Status, e.Body)
}

// statusTransport turns every non-2xx response into a StatusError before
// go-proxmox decodes the body.
type statusTransport struct {
	next http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return res, nil
	}

	body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	res.Body.Close()

	status := res.Status
	if status == "" {
		status = fmt.Sprintf("%d", res.StatusCode)
	}
	return nil, &StatusError{Code: res.StatusCode, Status: status, Body: string(body)}
}

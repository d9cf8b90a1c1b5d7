package models

import (
	"fmt"
	"strconv"
)

// Resource types returned by /cluster/resources
const (
	ResourceNode = "node"
	ResourceQemu = "qemu"
	ResourceLXC  = "lxc"
)

const StatusUnknown = "unknown"

// Resource is one entry of the cluster resource listing. Only the fields
// the topology needs are decoded.
type Resource struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Node   string `json:"node,omitempty"`
	VMID   uint64 `json:"vmid,omitempty"`
	Name   string `json:"name,omitempty"`
	Status string `json:"status,omitempty"`
}

func (r Resource) IsGuest() bool {
	return r.Type == ResourceQemu || r.Type == ResourceLXC
}

// StatusOrUnknown returns the status, falling back to "unknown".
func (r Resource) StatusOrUnknown() string {
	if r.Status == "" {
		return StatusUnknown
	}
	return r.Status
}

// GuestKind selects the qemu or lxc config endpoint.
type GuestKind string

const (
	KindQemu GuestKind = ResourceQemu
	KindLXC  GuestKind = ResourceLXC
)

// GuestRef identifies a guest for config lookup. Comparable, usable as a
// map key.
type GuestRef struct {
	Node string
	VMID uint64
	Kind GuestKind
}

func (g GuestRef) String() string {
	return fmt.Sprintf("%s/%s/%d", g.Node, g.Kind, g.VMID)
}

// ConfigPath is the API path of the guest's current configuration.
func (g GuestRef) ConfigPath() string {
	return fmt.Sprintf("/nodes/%s/%s/%d/config", g.Node, g.Kind, g.VMID)
}

// GuestConfig is the raw key/value configuration of a guest. Values are
// whatever the API decoded to: strings, numbers, booleans.
type GuestConfig map[string]any

// VersionInfo is the payload of GET /version
type VersionInfo struct {
	Version string `json:"version"`
	Release string `json:"release"`
	RepoID  string `json:"repoid"`
}

func uitoa(v uint64) string {
	return strconv.FormatUint(v, 10)
}

package utils

import (
	"sort"
	"strconv"
	"strings"
)

const netKeyPrefix = "net"

// ParseKeyValues splits a Proxmox property string such as
// "virtio=AA:BB,bridge=vmbr0,firewall=1" into a map. Fragments without '='
// are ignored, only the first '=' separates key from value and later
// duplicates win.
func ParseKeyValues(s string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		out[key] = value
	}
	return out
}

// NetIndex reports whether key names a network interface (net0, net1, ...)
// and returns its index.
func NetIndex(key string) (int, bool) {
	digits, ok := strings.CutPrefix(key, netKeyPrefix)
	if !ok || digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return idx, true
}

// BridgeFromNetValue extracts the bridge name from a net<N> value.
// Non-string values and values without a usable bridge fragment yield
// false.
func BridgeFromNetValue(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || !strings.Contains(s, "bridge=") {
		return "", false
	}
	bridge := ParseKeyValues(s)["bridge"]
	if bridge == "" {
		return "", false
	}
	return bridge, true
}

// SortedNetKeys returns the net<N> keys of cfg ordered by interface index.
func SortedNetKeys[V any](cfg map[string]V) []string {
	type netKey struct {
		key string
		idx int
	}

	keys := make([]netKey, 0, len(cfg))
	for k := range cfg {
		if idx, ok := NetIndex(k); ok {
			keys = append(keys, netKey{key: k, idx: idx})
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].idx != keys[j].idx {
			return keys[i].idx < keys[j].idx
		}
		return keys[i].key < keys[j].key
	})

	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.key
	}
	return out
}

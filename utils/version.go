package utils

import (
	"strings"

	"github.com/hashicorp/go-version"
)

// Compatibility verdicts for the upstream Proxmox VE release
const (
	VersionSupported   = "supported"
	VersionUnsupported = "unsupported"
	VersionUnknown     = "unknown"
)

// CheckVersionStatus compares the Proxmox VE version reported by the
// cluster against the minimum the topology API was tested with.
func CheckVersionStatus(pveVersion, minSupported string) (status string, message string) {
	// Clean version string (remove 'v' prefix and "pve-manager/" style noise)
	pveVersion = strings.TrimPrefix(strings.TrimSpace(pveVersion), "v")
	if i := strings.LastIndex(pveVersion, "/"); i >= 0 {
		pveVersion = pveVersion[i+1:]
	}

	current, err := version.NewVersion(pveVersion)
	if err != nil {
		return VersionUnknown, "could not parse Proxmox VE version " + pveVersion
	}

	minimum, err := version.NewVersion(minSupported)
	if err != nil {
		return VersionUnknown, "invalid minimum version " + minSupported
	}

	if current.LessThan(minimum) {
		return VersionUnsupported, "Proxmox VE " + current.String() + " is older than " + minimum.String() + "; network config keys may differ"
	}
	return VersionSupported, ""
}

package reconcile

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Update directions reported in logs.
const (
	DirectionNew       = "new"
	DirectionUpgrade   = "upgrade"
	DirectionDowngrade = "downgrade"
	DirectionChanged   = "changed"
)

// UpdateLabel returns the change label for a plugin update.
func UpdateLabel(name, version string) string {
	return fmt.Sprintf("%s: Update to version %s", name, version)
}

// Direction describes how version moved from previous. It is informational;
// whether an update happens is decided by exact string comparison alone.
func Direction(previous, version string) string {
	if previous == "" {
		return DirectionNew
	}
	pv, err := parseSemver(previous)
	if err != nil {
		return DirectionChanged
	}
	nv, err := parseSemver(version)
	if err != nil {
		return DirectionChanged
	}
	switch pv.Compare(nv) {
	case -1:
		return DirectionUpgrade
	case 1:
		return DirectionDowngrade
	default:
		return DirectionChanged
	}
}

// parseSemver strips a leading "v" and parses the version string.
func parseSemver(version string) (*semver.Version, error) {
	return semver.NewVersion(strings.TrimPrefix(version, "v"))
}

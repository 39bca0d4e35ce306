package instance

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// MaxNameLength is the maximum length for an instance or endpoint name (DNS-compatible)
	MaxNameLength = 63

	// runSuffixLength is the number of run id characters appended by RunName.
	runSuffixLength = 8
)

var (
	// NamePattern is the regex pattern for valid instance and endpoint names
	// Must be DNS-compatible: lowercase alphanumeric, hyphens allowed (but not at start/end)
	// Allows single character or multiple characters with optional hyphens in between
	NamePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)
)

// ValidateName checks if an instance name is valid according to DNS naming rules.
// Names become part of every Redis key, so ':' and glob characters are excluded.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("instance name cannot be empty")
	}

	if len(name) > MaxNameLength {
		return fmt.Errorf("instance name too long: %d characters (max: %d)", len(name), MaxNameLength)
	}

	if !NamePattern.MatchString(name) {
		return fmt.Errorf("invalid instance name '%s': must be lowercase alphanumeric with hyphens (not at start/end)", name)
	}

	return nil
}

// RunName derives a per-run namespace from an instance name and a run id, so
// a single-process run never sees messages left over by an earlier one.
// The result is truncated to stay a valid name.
func RunName(instanceName, runID string) string {
	suffix := strings.ToLower(strings.ReplaceAll(runID, "-", ""))
	if len(suffix) > runSuffixLength {
		suffix = suffix[:runSuffixLength]
	}

	maxBase := MaxNameLength - len(suffix) - 1
	base := instanceName
	if len(base) > maxBase {
		base = strings.TrimRight(base[:maxBase], "-")
	}
	return base + "-" + suffix
}

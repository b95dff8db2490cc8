// Package version reports the build version of the service.
package version

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Set at build time with -ldflags "-X .../version.Current=v1.2.3 -X .../version.Commit=abc123".
var (
	Current = "dev"
	Commit  = ""
)

// Normalize ensures version string has "v" prefix for semver compatibility.
// Examples: "1.2.3" -> "v1.2.3", "v1.2.3" -> "v1.2.3"
func Normalize(version string) string {
	if version == "" {
		return ""
	}
	version = strings.TrimSpace(version)
	if !strings.HasPrefix(version, "v") {
		return "v" + version
	}
	return version
}

// Release returns the canonical semver of the build, or "dev" for builds
// without a valid version.
func Release() string {
	v := Normalize(Current)
	if !semver.IsValid(v) {
		return "dev"
	}
	return semver.Canonical(v)
}

// Info is the version block served by /version and printed by the CLI.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
}

func Get() Info {
	return Info{Version: Release(), Commit: Commit}
}

func (i Info) String() string {
	if i.Commit == "" {
		return i.Version
	}
	return i.Version + " (" + i.Commit + ")"
}

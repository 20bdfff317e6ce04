// Package appversion reports the console's build version.
package appversion

import (
	"fmt"
	"runtime/debug"
)

// version is set at build time via -ldflags "-X sentinel/internal/appversion.version=...".
var version = "dev" //nolint:gochecknoglobals // ldflags requires package-level var

// String returns the release version, or "dev".
func String() string {
	return version
}

// Revision returns the VCS revision the binary was built from, shortened to
// 12 characters, with a "+dirty" suffix for modified trees. It is empty when
// the build carries no VCS stamp.
func Revision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	var rev string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if rev != "" && dirty {
		rev += "+dirty"
	}
	return rev
}

// Full returns the version with the revision appended when known,
// e.g. "1.2.0 (3f2a9c1d0b7e)".
func Full() string {
	if rev := Revision(); rev != "" {
		return fmt.Sprintf("%s (%s)", version, rev)
	}
	return version
}

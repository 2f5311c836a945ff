// Package version exposes build metadata for the webrelay binary.
package version

import (
	_ "embed"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

//go:embed VERSION
var rawVersion string

// Overridable at link time:
//
//	go build -ldflags "-X github.com/oselabs/webrelay/internal/version.commit=VALUE"
var (
	commit string
	date   string
)

// Info describes the running build.
type Info struct {
	Version   string // semantic version from the embedded VERSION file
	Commit    string // short VCS revision, "-dirty" suffix when modified
	BuildDate string
	GoVersion string
}

// String renders a one-line summary followed by build details.
func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "webrelay %s\n", i.Version)
	fmt.Fprintf(&b, "  commit: %s\n", i.Commit)
	fmt.Fprintf(&b, "  built:  %s\n", i.BuildDate)
	fmt.Fprintf(&b, "  go:     %s", i.GoVersion)
	return b.String()
}

// Get assembles build metadata from the embedded version file, linker
// flags, and the binary's VCS stamp.
func Get() Info {
	return Info{
		Version:   strings.TrimSpace(rawVersion),
		Commit:    resolveCommit(),
		BuildDate: orUnknown(date),
		GoVersion: runtime.Version(),
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// resolveCommit prefers the linker-injected value, then the VCS stamp
// embedded by the Go toolchain.
func resolveCommit() string {
	if commit != "" {
		return commit
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return "unknown"
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}
	if dirty {
		revision += "-dirty"
	}
	return revision
}

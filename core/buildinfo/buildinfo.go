// Package buildinfo carries release metadata stamped in by the linker:
//
//	go build -ldflags "-X github.com/m3rciful/dialogbot/core/buildinfo.Version=v0.4.0 \
//	  -X github.com/m3rciful/dialogbot/core/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/m3rciful/dialogbot/core/buildinfo.Date=$(date -u +%FT%TZ)"
package buildinfo

import "runtime/debug"

var (
	Version = "dev"
	Commit  = "local"
	// Date is the RFC3339 build time; empty for local builds.
	Date = ""
)

// String renders "version (commit)". A local build falls back to the VCS
// revision the Go toolchain recorded, when there is one.
func String() string {
	commit := Commit
	if commit == "local" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" && len(s.Value) >= 7 {
					commit = s.Value[:7]
				}
			}
		}
	}
	return Version + " (" + commit + ")"
}

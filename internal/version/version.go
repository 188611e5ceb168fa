package version

import "fmt"

// Version is the release version, set at build time:
// go build -ldflags "-X git.home.luguber.info/inful/bedshift/internal/version.Version=v0.3.0".
var Version = "unknown"

// Build metadata, set the same way as Version.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String is the one-line version banner printed by --version.
func String() string {
	if GitCommit == "unknown" && BuildTime == "unknown" {
		return "bedshift " + Version
	}
	return fmt.Sprintf("bedshift %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}

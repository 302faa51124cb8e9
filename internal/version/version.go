package version

import "fmt"

// Build metadata, set with -ldflags "-X mcwatch/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// UserAgent identifies outbound requests made by this build.
func UserAgent() string {
	return "mcwatch/" + Version
}

// String renders the build metadata on one line.
func String() string {
	return fmt.Sprintf("mcwatch %s (commit %s, built %s)", Version, Commit, BuildDate)
}

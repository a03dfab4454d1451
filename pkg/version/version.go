// Package version carries build metadata injected with -ldflags.
package version

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// String formats the build metadata for display.
func String() string {
	return Version + " (commit: " + GitCommit + ", built: " + BuildTime + ")"
}

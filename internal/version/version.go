// Package version holds build metadata, overridden at link time via
// -ldflags "-X github.com/banshee-data/photoz/internal/version.Version=...".
package version

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

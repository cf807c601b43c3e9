// Package version carries build identification, stamped at link time via
// -ldflags.
package version

var (
	// Version is the release version, or "dev" for local builds.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

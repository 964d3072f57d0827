package version

// Set at build time via -ldflags; echoed into the results document header.
var (
	// Version is the engine version.
	Version = "dev"
	// GitSHA is the git commit SHA of the build.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

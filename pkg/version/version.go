package version

// Set with -ldflags at build time.
var (
	Version   = "v0.0.0"
	GitCommit = "unknown"
)

// Package misc holds small process-wide facts: build metadata baked in at
// link time and the canonical program name used to derive default file
// names (panic logs, temp report files).
package misc

var (
	appName = "vaultctl"
	version = "dev"
	gitHash = "unknown"
)

// GetAppName returns the program name used for default file naming.
func GetAppName() string {
	return appName
}

// GetVersion returns the build version, normally set via -ldflags at link time.
func GetVersion() string {
	return version
}

// GetGitHash returns the build commit hash, normally set via -ldflags at link time.
func GetGitHash() string {
	return gitHash
}

// Package version provides build-time version information.
package version

import "fmt"

// Set at build time with -ldflags "-X draft-reader/internal/version.Version=...".
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String returns a one-line description for logs and -version output.
func String() string {
	return fmt.Sprintf("draft-reader %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}

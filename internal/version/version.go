// Package version holds build-time version information injected via ldflags.
package version

import "fmt"

// These variables are set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies the CLI to the Pakyas backend.
func UserAgent() string {
	return fmt.Sprintf("pakyas-cli/%s", Version)
}

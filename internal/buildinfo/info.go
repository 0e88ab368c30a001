// Package buildinfo holds version metadata stamped in by the release build:
//
//	go build -ldflags "-X github.com/coopbooks/coopbooks/internal/buildinfo.Version=v1.2.0 ..."
package buildinfo

import "fmt"

var (
	// Version is the release tag.
	Version = "dev"
	// Commit is the git revision.
	Commit = "none"
	// Date is the build time.
	Date = "unknown"
)

// String formats the metadata for --version.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
}

// Package version holds build identification, overridable at link time with
// -ldflags "-X github.com/albertbausili/velox/internal/version.Version=...".
package version

var (
	Version = "0.1.0-dev"
	Commit  = "unknown"
)

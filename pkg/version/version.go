// Package version holds build information for workflowctl, injected at build time.
package version

// Example: go build -ldflags "-X github.com/DataNeuron/enterpirse-workflow-agent/pkg/version.Version=v0.3.0".
//
//nolint:gochecknoglobals // ldflags targets
var (
	// Version is the semantic version, or "dev" for local builds.
	Version = "dev"

	// Commit is the git commit SHA of the build.
	Commit = "none"

	// Date is the build date in ISO format.
	Date = "unknown"
)

// String formats the build information on one line.
func String() string {
	return Version + " (commit " + Commit + ", built " + Date + ")"
}

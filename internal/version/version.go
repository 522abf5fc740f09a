package version

import "fmt"

// Version is set at build time:
// go build -ldflags "-X github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/version.Version=v0.3.0".
var Version = "dev"

// Build metadata, also set through ldflags.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String formats the version line printed by `pagespub --version`.
func String() string {
	return fmt.Sprintf("pagespub %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}

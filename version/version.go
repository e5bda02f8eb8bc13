// Package version holds build metadata injected at link time.
package version

import "runtime"

// Build information. Populated via -ldflags at build time:
//
//	-X github.com/veridocproj/veridoc/version.GitRelease=v0.1.0
//	-X github.com/veridocproj/veridoc/version.GitCommit=abc1234
//	-X github.com/veridocproj/veridoc/version.GitCommitDate=2025-01-01
var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
	GoInfo        = runtime.Version()
)

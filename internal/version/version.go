package version

import (
	"fmt"
	"runtime"
)

// Build metadata, stamped by the release pipeline:
//
//	go build -ldflags "-X github.com/soyeahso/perch/internal/version.Version=1.0.0
//	  -X github.com/soyeahso/perch/internal/version.Commit=abc123
//	  -X github.com/soyeahso/perch/internal/version.Date=2026-01-01"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// ShortCommit returns the commit hash truncated to seven characters.
func ShortCommit() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}
	return Commit
}

// Info renders the one-line banner printed by perch version.
func Info() string {
	return fmt.Sprintf("perch %s (commit: %s, built: %s, %s/%s)",
		Version, ShortCommit(), Date, runtime.GOOS, runtime.GOARCH)
}

package common

import (
	"fmt"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/ternarybob/yojana/internal/common.Version=1.2.0"
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

func GetVersion() string {
	return Version
}

// GetFullVersion returns version with build info, as reported by -version
// and GET /api/version
func GetFullVersion() string {
	return fmt.Sprintf("yojana %s (build: %s, commit: %s)", Version, Build, GitCommit)
}

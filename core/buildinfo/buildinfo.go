package buildinfo

import "fmt"

// Set via -ldflags at build time:
//
//	-X 'github.com/m3rciful/crmbot/core/buildinfo.Version=v0.4.0'
//	-X 'github.com/m3rciful/crmbot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/crmbot/core/buildinfo.Date=2026-01-25T09:00:00Z'
var (
	// Version is the release tag of the binary.
	Version = "dev"
	// Commit is the source revision the binary was built from.
	Commit = "local"
	// Date is the RFC3339 build timestamp.
	Date = ""
)

// String renders a one-line build description for startup logs and /help.
func String() string {
	if Date == "" {
		return fmt.Sprintf("%s (%s)", Version, Commit)
	}
	return fmt.Sprintf("%s (%s, %s)", Version, Commit, Date)
}

package version

// Build information set by ldflags
var (
	Version = "dev"     // Set by goreleaser: -X github.com/mrmachine/transmission-process-torrents/internal/version.Version={{.Version}}
	Commit  = "unknown" // Set by goreleaser: -X github.com/mrmachine/transmission-process-torrents/internal/version.Commit={{.Commit}}
	Date    = "unknown" // Set by goreleaser: -X github.com/mrmachine/transmission-process-torrents/internal/version.Date={{.Date}}
)

// String renders the build information for --version.
func String() string {
	return Version + " (commit " + Commit + ", built " + Date + ")"
}

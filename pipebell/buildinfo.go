package pipebell

// Baked in at build time with the linker:
//
//	go build -ldflags "-X github.com/Pix4D/pipebell/pipebell.buildinfo=v1.2.3" ./cmd/...
var buildinfo = "unknown"

// BuildInfo returns human-readable build information (tag, git commit, date, ...).
// This is useful to understand from the logs which binary is running, since the
// hosting platform doesn't always tell.
func BuildInfo() string {
	return "This is the pipebell pipeline notifier. " + buildinfo
}

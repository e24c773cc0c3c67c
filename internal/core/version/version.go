// Package version reports build metadata injected with -ldflags
package version

// BuildInfo describes the running binary
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Set via -ldflags "-X 'shapeshift/internal/core/version.version=v0.1.0'
// -X 'shapeshift/internal/core/version.commit=abcd' -X 'shapeshift/internal/core/version.date=2026-10-01'"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Info returns the build information for service
func Info(service string) BuildInfo {
	if service == "" {
		service = "shapeshift"
	}
	return BuildInfo{Service: service, Version: version, Commit: commit, Date: date}
}

// UserAgent is the User-Agent outbound clients send
func UserAgent(service string) string {
	if service == "" {
		service = "shapeshift"
	}
	return service + "/" + version
}

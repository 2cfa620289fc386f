package config

// Release builds of the station stamp these through the linker:
//
//	go build -o stazione \
//	    -ldflags "-X stazione/internal/config.version=$(git describe --tags) \
//	    -X stazione/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X stazione/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	    ./cmd/api
//
// A plain go run leaves the placeholders below, which GET /version reports
// as-is.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo reports the stamped release metadata. LoadConfig stores it in
// Config.Build for the startup log line and the /version endpoint.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}

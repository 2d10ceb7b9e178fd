// Package buildinfo carries version stamps injected by the linker.
package buildinfo

import "time"

// Set via -ldflags "-X github.com/xelth-com/eckposgo/internal/buildinfo.CommitHash=..."
var (
	BuildTime  string
	CommitHash string
)

// StartTime is recorded when the process starts
var StartTime = time.Now().UTC()

// Info is the build stamp reported by /health
type Info struct {
	Commit  string `json:"commit,omitempty"`
	Built   string `json:"built,omitempty"`
	Started string `json:"started"`
	Uptime  string `json:"uptime"`
}

// Current returns the stamp of the running binary
func Current() Info {
	return Info{
		Commit:  CommitHash,
		Built:   BuildTime,
		Started: StartTime.Format(time.RFC3339),
		Uptime:  time.Since(StartTime).Round(time.Second).String(),
	}
}

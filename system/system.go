package system

import "runtime"

var (
	// The current version of this software.
	Version = "develop"
)

// Information describes the runtime environment of this daemon instance.
type Information struct {
	Version      string `json:"version"`
	Architecture string `json:"architecture"`
	OS           string `json:"os"`
	CpuCount     int    `json:"cpu_count"`
}

func GetSystemInformation() Information {
	return Information{
		Version:      Version,
		Architecture: runtime.GOARCH,
		OS:           runtime.GOOS,
		CpuCount:     runtime.NumCPU(),
	}
}

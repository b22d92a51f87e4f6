package router

import (
	"net/http"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"github.com/wardenfs/warden/system"
)

// Returns operational information about this daemon instance.
func getSystemInformation(c *gin.Context) {
	s := ExtractSandbox(c)

	stats := s.Stats()
	usage, err := s.DiskUsage()
	if err != nil {
		// Usage is informational; a failed walk should not take down the
		// whole stats surface.
		log.WithField("error", err).Warn("failed to determine sandbox disk usage")
	}

	info := system.GetSystemInformation()
	c.JSON(http.StatusOK, gin.H{
		"version":           info.Version,
		"os":                info.OS,
		"architecture":      info.Architecture,
		"cpu_count":         info.CpuCount,
		"active_operations": stats.ActiveOperations,
		"root_directory":    stats.RootDirectory,
		"max_file_size":     stats.MaxFileSize,
		"disk_usage":        usage,
	})
}

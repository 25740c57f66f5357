package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"garbage-collector/internal/disk"
)

// Disk metrics for the filesystem holding each target
var (
	FreeSpacePercent *prometheus.GaugeVec
	PathFreeBytes    *prometheus.GaugeVec
	PathTotalBytes   *prometheus.GaugeVec
)

func initDiskMetrics() {
	FreeSpacePercent = NewGaugeVec(
		"gc_free_space_percent",
		"Free space percentage after the last sweep of a target.",
		[]string{"path"},
	)
	PathFreeBytes = NewGaugeVec(
		"gc_path_free_bytes",
		"Free bytes on the filesystem containing a target.",
		[]string{"path"},
	)
	PathTotalBytes = NewGaugeVec(
		"gc_path_total_bytes",
		"Capacity of the filesystem containing a target.",
		[]string{"path"},
	)
}

func registerDiskMetrics() {
	prometheus.MustRegister(FreeSpacePercent)
	prometheus.MustRegister(PathFreeBytes)
	prometheus.MustRegister(PathTotalBytes)
}

// UpdateDiskUsage publishes a disk.Usage sample for path
func UpdateDiskUsage(path string, u disk.Usage) {
	FreeSpacePercent.WithLabelValues(path).Set(u.FreePercent())
	PathFreeBytes.WithLabelValues(path).Set(float64(u.FreeBytes))
	PathTotalBytes.WithLabelValues(path).Set(float64(u.TotalBytes))
}

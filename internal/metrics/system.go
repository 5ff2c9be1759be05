package metrics

import (
	"time"

	"github.com/shirou/gopsutil/v3/mem"
)

// SystemSnapshot is the process/host view reported by the health endpoint.
type SystemSnapshot struct {
	UptimeSeconds     int64   `json:"uptime_seconds"`
	MemoryTotalBytes  uint64  `json:"memory_total_bytes"`
	MemoryUsedBytes   uint64  `json:"memory_used_bytes"`
	MemoryUsedPercent float64 `json:"memory_used_percent"`
}

// SystemTracker samples host memory and tracks process uptime.
type SystemTracker struct {
	startTime time.Time
}

// NewSystemTracker starts the uptime measurement.
func NewSystemTracker() *SystemTracker {
	return &SystemTracker{startTime: time.Now()}
}

// Snapshot returns the current system view. Memory errors are non-fatal; the
// snapshot then carries zeroes.
func (t *SystemTracker) Snapshot() SystemSnapshot {
	snapshot := SystemSnapshot{
		UptimeSeconds: int64(time.Since(t.startTime).Seconds()),
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		snapshot.MemoryTotalBytes = vm.Total
		snapshot.MemoryUsedBytes = vm.Used
		snapshot.MemoryUsedPercent = vm.UsedPercent
	}
	return snapshot
}

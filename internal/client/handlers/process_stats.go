package handlers

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

type ProcessStats struct {
	PID int32 `json:"pid"`
	// Percentage of total CPU the daemon is using
	CPUPercent float64 `json:"cpuPercent"`
	// Resident memory in bytes
	MemoryRSS uint64 `json:"memoryRss"`
	// Percentage of total RAM the daemon is using
	MemoryPercent float32 `json:"memoryPercent"`
	NumThreads    int32   `json:"numThreads"`
	// How long the daemon has been running in milliseconds
	Uptime int64 `json:"uptime"`
}

// NewProcessStats samples the current process. Fields that cannot be read
// on this platform are left zero.
func NewProcessStats() (*ProcessStats, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}

	stats := &ProcessStats{PID: p.Pid}
	if cpu, err := p.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		stats.MemoryRSS = mem.RSS
	}
	if memPercent, err := p.MemoryPercent(); err == nil {
		stats.MemoryPercent = memPercent
	}
	if threads, err := p.NumThreads(); err == nil {
		stats.NumThreads = threads
	}
	if created, err := p.CreateTime(); err == nil {
		stats.Uptime = time.Since(time.UnixMilli(created)).Milliseconds()
	}
	return stats, nil
}

package display

import (
	"runtime"
	"sync"
	"time"
)

// Usage is the process resource snapshot shown in the header
type Usage struct {
	CPUPercent float64
	MemoryMB   float64
}

// UsageSampler computes CPU usage as process CPU time over wall time
// between consecutive samples.
type UsageSampler struct {
	mu       sync.Mutex
	lastWall time.Time
	lastCPU  time.Duration
}

// NewUsageSampler creates a sampler primed with the current counters
func NewUsageSampler() *UsageSampler {
	return &UsageSampler{lastWall: time.Now(), lastCPU: processCPUTime()}
}

// Sample returns usage since the previous call
func (s *UsageSampler) Sample() Usage {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cpu := processCPUTime()

	var percent float64
	if wall := now.Sub(s.lastWall); wall > 0 {
		percent = float64(cpu-s.lastCPU) / float64(wall) * 100
	}
	s.lastWall, s.lastCPU = now, cpu

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return Usage{
		CPUPercent: percent,
		MemoryMB:   float64(ms.Sys) / (1024 * 1024),
	}
}

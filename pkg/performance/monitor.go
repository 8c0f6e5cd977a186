// Package performance reports the resources a load consumed.
//
// A ResourceMonitor is started before a load and sampled after it; the CLI
// prints the usage next to the dataset summary and logs it.
//
//	monitor := performance.NewResourceMonitor()
//	typed, err := ctf.Load[float32](ctx, path, schema, cfg)
//	usage := monitor.Usage()
//	logger.Info("load finished", usage.Fields()...)
package performance

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// ResourceMonitor measures process resources relative to its creation.
type ResourceMonitor struct {
	process      *process.Process
	startCPUTime float64
	startGC      uint32
	startTime    time.Time
	mu           sync.RWMutex
}

// NewResourceMonitor creates a monitor for the current process. Counters
// that the platform cannot report are left at zero.
func NewResourceMonitor() *ResourceMonitor {
	rm := &ResourceMonitor{startTime: time.Now()}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	rm.startGC = ms.NumGC

	proc, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // pid fits in int32 on supported platforms
	if err != nil {
		return rm
	}
	rm.process = proc
	if cpuTime, err := proc.Times(); err == nil {
		rm.startCPUTime = cpuTime.User + cpuTime.System
	}
	return rm
}

// ResourceUsage contains resource usage information
type ResourceUsage struct {
	Elapsed               time.Duration `json:"elapsed"`
	CPUSeconds            float64       `json:"cpu_seconds"`
	CPUPercent            float64       `json:"cpu_percent"`
	MemoryRSS             uint64        `json:"memory_rss"`
	MemoryVMS             uint64        `json:"memory_vms"`
	HeapAlloc             uint64        `json:"heap_alloc"`
	GCCount               uint32        `json:"gc_count"`
	SystemMemoryPercent   float64       `json:"system_memory_percent"`
	SystemMemoryAvailable uint64        `json:"system_memory_available"`
	GoroutineCount        int           `json:"goroutines"`
	ThreadCount           int32         `json:"threads"`
	OpenFDs               int32         `json:"open_fds"`
}

// Usage samples the resources used since the monitor was created.
func (rm *ResourceMonitor) Usage() ResourceUsage {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	usage := ResourceUsage{
		Elapsed:        time.Since(rm.startTime),
		GoroutineCount: runtime.NumGoroutine(),
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	usage.HeapAlloc = ms.HeapAlloc
	usage.GCCount = ms.NumGC - rm.startGC

	if vmStat, err := mem.VirtualMemory(); err == nil {
		usage.SystemMemoryPercent = vmStat.UsedPercent
		usage.SystemMemoryAvailable = vmStat.Available
	}

	if rm.process == nil {
		return usage
	}
	if cpuTime, err := rm.process.Times(); err == nil {
		usage.CPUSeconds = cpuTime.User + cpuTime.System - rm.startCPUTime
		if elapsed := usage.Elapsed.Seconds(); elapsed > 0 {
			usage.CPUPercent = usage.CPUSeconds / elapsed * 100
		}
	}
	if memInfo, err := rm.process.MemoryInfo(); err == nil {
		usage.MemoryRSS = memInfo.RSS
		usage.MemoryVMS = memInfo.VMS
	}
	usage.ThreadCount, _ = rm.process.NumThreads()
	usage.OpenFDs, _ = rm.process.NumFDs()
	return usage
}

// Fields renders the usage as zap fields.
func (u ResourceUsage) Fields() []zap.Field {
	return []zap.Field{
		zap.Duration("elapsed", u.Elapsed),
		zap.Float64("cpu_seconds", u.CPUSeconds),
		zap.Float64("cpu_percent", u.CPUPercent),
		zap.Uint64("rss_bytes", u.MemoryRSS),
		zap.Uint64("heap_alloc_bytes", u.HeapAlloc),
		zap.Uint32("gc_count", u.GCCount),
		zap.Int32("threads", u.ThreadCount),
		zap.Int32("open_fds", u.OpenFDs),
	}
}

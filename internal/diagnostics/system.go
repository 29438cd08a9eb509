package diagnostics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

const mb = 1024 * 1024

// SystemStats is a point-in-time view of host and process resources.
// Fields stay zero when the platform cannot report them.
type SystemStats struct {
	CPUModel   string  `json:"cpu_model"`
	CPUThreads int     `json:"cpu_threads"`
	LoadAvg1   float64 `json:"load_avg_1"`

	MemTotalMB     float64 `json:"mem_total_mb"`
	MemAvailableMB float64 `json:"mem_available_mb"`
	MemPercent     float64 `json:"mem_percent"`

	DiskPath    string  `json:"disk_path"`
	DiskFreeMB  float64 `json:"disk_free_mb"`
	DiskPercent float64 `json:"disk_percent"`

	Goroutines  int     `json:"goroutines"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
}

// Thresholds are the minimums below which Warnings reports a problem.
type Thresholds struct {
	MinAvailableMemMB float64
	MinFreeDiskMB     float64
	MaxLoadPerThread  float64
}

// DefaultThresholds fit a small single-instance deployment.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinAvailableMemMB: 256,
		MinFreeDiskMB:     100,
		MaxLoadPerThread:  2,
	}
}

// Collector gathers SystemStats. The gopsutil calls are behind fields so
// tests can run without touching the host.
type Collector struct {
	diskPath string

	virtualMemory func(context.Context) (*mem.VirtualMemoryStat, error)
	diskUsage     func(context.Context, string) (*disk.UsageStat, error)
	cpuInfo       func(context.Context) ([]cpu.InfoStat, error)
	cpuCounts     func(context.Context, bool) (int, error)
	loadAvg       func(context.Context) (*load.AvgStat, error)
}

// NewCollector measures disk usage on the filesystem holding diskPath.
// The nearest existing parent is used when diskPath does not exist yet.
func NewCollector(diskPath string) *Collector {
	return &Collector{
		diskPath:      existingParent(diskPath),
		virtualMemory: mem.VirtualMemoryWithContext,
		diskUsage:     disk.UsageWithContext,
		cpuInfo:       cpu.InfoWithContext,
		cpuCounts:     cpu.CountsWithContext,
		loadAvg:       load.AvgWithContext,
	}
}

// Collect reads current statistics. Individual probe failures leave their
// fields zero rather than failing the whole snapshot.
func (c *Collector) Collect(ctx context.Context) SystemStats {
	stats := SystemStats{DiskPath: c.diskPath}

	if infos, err := c.cpuInfo(ctx); err == nil && len(infos) > 0 {
		stats.CPUModel = strings.TrimSpace(infos[0].ModelName)
	}
	if threads, err := c.cpuCounts(ctx, true); err == nil {
		stats.CPUThreads = threads
	}
	if avg, err := c.loadAvg(ctx); err == nil && avg != nil {
		stats.LoadAvg1 = avg.Load1
	}

	if vm, err := c.virtualMemory(ctx); err == nil && vm != nil {
		stats.MemTotalMB = float64(vm.Total) / mb
		stats.MemAvailableMB = float64(vm.Available) / mb
		stats.MemPercent = vm.UsedPercent
	}

	if usage, err := c.diskUsage(ctx, c.diskPath); err == nil && usage != nil {
		stats.DiskFreeMB = float64(usage.Free) / mb
		stats.DiskPercent = usage.UsedPercent
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	stats.Goroutines = runtime.NumGoroutine()
	stats.HeapAllocMB = float64(ms.HeapAlloc) / mb
	return stats
}

// Warnings lists the thresholds the snapshot violates.
func (s SystemStats) Warnings(th Thresholds) []string {
	var warnings []string
	if s.MemTotalMB > 0 && s.MemAvailableMB < th.MinAvailableMemMB {
		warnings = append(warnings, fmt.Sprintf("low memory: %.0fMB available (minimum %.0fMB)", s.MemAvailableMB, th.MinAvailableMemMB))
	}
	if s.DiskPercent > 0 && s.DiskFreeMB < th.MinFreeDiskMB {
		warnings = append(warnings, fmt.Sprintf("low disk space at %s: %.0fMB free (minimum %.0fMB)", s.DiskPath, s.DiskFreeMB, th.MinFreeDiskMB))
	}
	if s.CPUThreads > 0 && th.MaxLoadPerThread > 0 && s.LoadAvg1/float64(s.CPUThreads) > th.MaxLoadPerThread {
		warnings = append(warnings, fmt.Sprintf("high load: %.2f on %d threads", s.LoadAvg1, s.CPUThreads))
	}
	return warnings
}

// Summary is a one-line description for CLI output.
func (s SystemStats) Summary() string {
	return fmt.Sprintf("%d threads, %.0f/%.0fMB memory available, %.0fMB free at %s",
		s.CPUThreads, s.MemAvailableMB, s.MemTotalMB, s.DiskFreeMB, s.DiskPath)
}

func existingParent(path string) string {
	if path == "" {
		path = "."
	}
	p, err := filepath.Abs(path)
	if err != nil {
		p = path
	}
	for {
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			return p
		}
		p = parent
	}
}

package services

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// HostSample is a point-in-time view of the machine serving the front desk.
type HostSample struct {
	CapturedAt        time.Time `json:"capturedAt"`
	ProcessRSSBytes   int64     `json:"processRssBytes"`
	SystemMemoryTotal int64     `json:"systemMemoryTotalBytes"`
	SystemMemoryUsed  int64     `json:"systemMemoryUsedBytes"`
	DiskPath          string    `json:"diskPath"`
	DiskTotalBytes    int64     `json:"diskTotalBytes"`
	DiskFreeBytes     int64     `json:"diskFreeBytes"`
	SystemCpuLoad     float64   `json:"systemCpuLoad"`
}

// CaptureHost samples memory, CPU and the volume holding diskPath. The disk
// error is returned since readiness depends on it; the rest is best effort.
func CaptureHost(diskPath string) (HostSample, error) {
	sample := HostSample{CapturedAt: time.Now().UTC(), DiskPath: diskPath}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if rss, err := proc.MemoryInfo(); err == nil && rss != nil {
			sample.ProcessRSSBytes = int64(rss.RSS)
		}
	}
	if memStat, err := mem.VirtualMemory(); err == nil {
		sample.SystemMemoryTotal = int64(memStat.Total)
		sample.SystemMemoryUsed = int64(memStat.Total - memStat.Available)
	}
	if sysCPU, err := cpu.Percent(0, false); err == nil && len(sysCPU) > 0 {
		sample.SystemCpuLoad = sysCPU[0] / 100.0
	}

	diskStat, err := disk.Usage(diskPath)
	if err != nil {
		return sample, err
	}
	sample.DiskTotalBytes = int64(diskStat.Total)
	sample.DiskFreeBytes = int64(diskStat.Free)
	return sample, nil
}

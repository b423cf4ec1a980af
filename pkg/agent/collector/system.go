package collector

import (
	"context"
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// HostInfo 启动时记录的主机信息
type HostInfo struct {
	Hostname        string
	OS              string
	Platform        string
	PlatformVersion string
	KernelVersion   string
	KernelArch      string
	Uptime          uint64
}

// SystemCollector 采集本机 cpu、内存、磁盘与负载，指标名与 Monitor 载荷中的常用名一致
type SystemCollector struct {
	diskPath string
}

// NewSystemCollector diskPath 为空时统计根分区
func NewSystemCollector(diskPath string) *SystemCollector {
	if diskPath == "" {
		diskPath = "/"
	}
	return &SystemCollector{diskPath: diskPath}
}

// Collect 单项失败不影响其他指标，错误合并返回
func (c *SystemCollector) Collect(ctx context.Context) (map[string]float64, error) {
	values := make(map[string]float64, 6)
	var errs []error

	// 间隔为 0 时与上一次调用比较，不阻塞
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		errs = append(errs, fmt.Errorf("cpu: %w", err))
	} else if len(percents) > 0 {
		values["cpu_usage"] = percents[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("memory: %w", err))
	} else {
		values["memory_usage"] = vm.UsedPercent
	}

	if usage, err := disk.UsageWithContext(ctx, c.diskPath); err != nil {
		errs = append(errs, fmt.Errorf("disk: %w", err))
	} else {
		values["disk_usage"] = usage.UsedPercent
	}

	if avg, err := load.AvgWithContext(ctx); err == nil && avg != nil {
		values["load_1"] = avg.Load1
		values["load_5"] = avg.Load5
		values["load_15"] = avg.Load15
	}

	return values, errors.Join(errs...)
}

// CollectHostInfo 采集主机信息
func CollectHostInfo(ctx context.Context) (*HostInfo, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return &HostInfo{
		Hostname:        info.Hostname,
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelVersion:   info.KernelVersion,
		KernelArch:      info.KernelArch,
		Uptime:          info.Uptime,
	}, nil
}

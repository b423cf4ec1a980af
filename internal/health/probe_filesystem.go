package health

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dushixiang/sentinel/internal/models"
	"github.com/dushixiang/sentinel/internal/protocol"
	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/spf13/afero"
)

const (
	DefaultDiskDegradedPercent  = 85
	DefaultDiskUnhealthyPercent = 95
)

// ClassifyDiskUsage 使用率低于 degraded 阈值为 healthy
func ClassifyDiskUsage(usedPercent float64, cfg *protocol.FileSystemMonitorConfig) models.HealthStatus {
	degraded, unhealthy := float64(DefaultDiskDegradedPercent), float64(DefaultDiskUnhealthyPercent)
	if cfg != nil {
		if cfg.DegradedPercent > 0 {
			degraded = cfg.DegradedPercent
		}
		if cfg.UnhealthyPercent > 0 {
			unhealthy = cfg.UnhealthyPercent
		}
	}
	switch {
	case usedPercent < degraded:
		return models.HealthHealthy
	case usedPercent < unhealthy:
		return models.HealthDegraded
	default:
		return models.HealthUnhealthy
	}
}

type usageFunc func(ctx context.Context, path string) (float64, error)

type fileSystemProbe struct {
	fs    afero.Fs
	usage usageFunc
}

func newFileSystemProbe(fs afero.Fs) *fileSystemProbe {
	return &fileSystemProbe{fs: fs, usage: diskUsage}
}

func diskUsage(ctx context.Context, path string) (float64, error) {
	stat, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	return stat.UsedPercent, nil
}

func (p *fileSystemProbe) Probe(ctx context.Context, t models.MonitoringTarget) (ProbeResult, error) {
	path := t.Endpoint
	if t.FileSystemConfig != nil && t.FileSystemConfig.Path != "" {
		path = t.FileSystemConfig.Path
	}

	exists, err := afero.Exists(p.fs, path)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("stat %s failed: %w", path, err)
	}
	if !exists {
		return ProbeResult{}, fmt.Errorf("path %s does not exist", path)
	}

	details := map[string]any{"path": path}
	if t.FileSystemConfig != nil && t.FileSystemConfig.WriteProbe {
		probeFile := filepath.Join(path, ".sentinel-probe-"+uuid.NewString())
		if err := afero.WriteFile(p.fs, probeFile, []byte("ok"), 0o600); err != nil {
			return ProbeResult{}, fmt.Errorf("write probe failed: %w", err)
		}
		_ = p.fs.Remove(probeFile)
		details["writable"] = true
	}

	used, err := p.usage(ctx, path)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("disk usage failed: %w", err)
	}
	details["usedPercent"] = used

	return ProbeResult{
		Status:  ClassifyDiskUsage(used, t.FileSystemConfig),
		Message: fmt.Sprintf("%.1f%% used", used),
		Details: details,
	}, nil
}

package health

import (
	"context"
	"fmt"
	"time"

	"github.com/dushixiang/sentinel/internal/models"
	probing "github.com/prometheus-community/pro-bing"
)

type networkProbe struct{}

func newNetworkProbe() *networkProbe {
	return &networkProbe{}
}

func (p *networkProbe) Probe(ctx context.Context, t models.MonitoringTarget) (ProbeResult, error) {
	count := 4
	privileged := false
	if t.ICMPConfig != nil {
		if t.ICMPConfig.Count > 0 {
			count = t.ICMPConfig.Count
		}
		privileged = t.ICMPConfig.Privileged
	}

	pinger, err := probing.NewPinger(t.Endpoint)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("create pinger failed: %w", err)
	}
	pinger.Count = count
	pinger.Interval = 100 * time.Millisecond
	if deadline, ok := ctx.Deadline(); ok {
		pinger.Timeout = time.Until(deadline)
	}
	pinger.SetPrivileged(privileged)

	if err := pinger.RunWithContext(ctx); err != nil {
		return ProbeResult{}, fmt.Errorf("ping failed: %w", err)
	}

	stats := pinger.Statistics()
	return ProbeResult{
		Status: ClassifyPacketLoss(stats.PacketLoss),
		Message: fmt.Sprintf("%d/%d packets, %dms avg, %.0f%% loss",
			stats.PacketsRecv, stats.PacketsSent, stats.AvgRtt.Milliseconds(), stats.PacketLoss),
		Details: map[string]any{
			"packetsSent": stats.PacketsSent,
			"packetsRecv": stats.PacketsRecv,
			"packetLoss":  stats.PacketLoss,
			"avgRttMs":    stats.AvgRtt.Milliseconds(),
		},
	}, nil
}

// ClassifyPacketLoss 无丢包 healthy，部分丢包 degraded，全部丢失 unhealthy
func ClassifyPacketLoss(loss float64) models.HealthStatus {
	switch {
	case loss <= 0:
		return models.HealthHealthy
	case loss < 100:
		return models.HealthDegraded
	default:
		return models.HealthUnhealthy
	}
}

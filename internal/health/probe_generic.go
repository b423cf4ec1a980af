package health

import (
	"context"
	"math/rand/v2"

	"github.com/dushixiang/sentinel/internal/models"
)

// genericProbe 没有可用探测方式的目标按通过率给出结果
type genericProbe struct {
	roll func() float64
}

func newGenericProbe() *genericProbe {
	return &genericProbe{roll: rand.Float64}
}

func (p *genericProbe) Probe(_ context.Context, t models.MonitoringTarget) (ProbeResult, error) {
	passRate := 1.0
	if t.GenericConfig != nil {
		passRate = t.GenericConfig.PassRate
	}
	if p.roll() < passRate {
		return ProbeResult{
			Status:  models.HealthHealthy,
			Message: "check passed",
			Details: map[string]any{"type": string(t.Type)},
		}, nil
	}
	return ProbeResult{
		Status:  models.HealthDegraded,
		Message: "check reported degraded",
		Details: map[string]any{"type": string(t.Type)},
	}, nil
}

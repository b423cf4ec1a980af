package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dushixiang/sentinel/internal/models"
	"github.com/dushixiang/sentinel/internal/protocol"
	"github.com/go-resty/resty/v2"
)

const (
	DefaultHealthyMs  = 200
	DefaultDegradedMs = 500
)

// ClassifyLatency 低于 healthyMs 为 healthy，低于 degradedMs 为 degraded
func ClassifyLatency(latency time.Duration, cfg *protocol.LatencyMonitorConfig) models.HealthStatus {
	healthyMs, degradedMs := int64(DefaultHealthyMs), int64(DefaultDegradedMs)
	if cfg != nil {
		if cfg.HealthyMs > 0 {
			healthyMs = cfg.HealthyMs
		}
		if cfg.DegradedMs > 0 {
			degradedMs = cfg.DegradedMs
		}
	}
	ms := latency.Milliseconds()
	switch {
	case ms < healthyMs:
		return models.HealthHealthy
	case ms < degradedMs:
		return models.HealthDegraded
	default:
		return models.HealthUnhealthy
	}
}

type apiProbe struct {
	client *resty.Client
}

func newAPIProbe() *apiProbe {
	client := resty.New().
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)).
		SetHeader("User-Agent", "sentinel-probe")
	return &apiProbe{client: client}
}

func (p *apiProbe) Probe(ctx context.Context, t models.MonitoringTarget) (ProbeResult, error) {
	method := http.MethodGet
	expected := 0
	req := p.client.R().SetContext(ctx)
	if cfg := t.HTTPConfig; cfg != nil {
		if cfg.Method != "" {
			method = cfg.Method
		}
		expected = cfg.ExpectedStatusCode
		req.SetHeaders(cfg.Headers)
		if cfg.Body != "" {
			req.SetBody(cfg.Body)
		}
	}

	start := time.Now()
	resp, err := req.Execute(method, t.Endpoint)
	elapsed := time.Since(start)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("request failed: %w", err)
	}
	if !statusAccepted(resp.StatusCode(), expected) {
		return ProbeResult{}, fmt.Errorf("unexpected status code %d", resp.StatusCode())
	}

	return ProbeResult{
		Status:  ClassifyLatency(elapsed, t.LatencyConfig),
		Message: fmt.Sprintf("API %d - %dms", resp.StatusCode(), elapsed.Milliseconds()),
		Details: map[string]any{
			"statusCode": resp.StatusCode(),
			"latencyMs":  elapsed.Milliseconds(),
			"bytes":      len(resp.Body()),
		},
	}, nil
}

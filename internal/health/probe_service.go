package health

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dushixiang/sentinel/internal/models"
	"github.com/dushixiang/sentinel/internal/protocol"
)

// DefaultSlowMs 服务响应超过该值视为 degraded
const DefaultSlowMs = 1000

// serviceProbe 带 scheme 的 endpoint 走 HTTP，其余按 host:port 走 TCP
type serviceProbe struct {
	httpClient *http.Client
	dialer     *net.Dialer
}

func newServiceProbe() *serviceProbe {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // 允许自签名证书
			},
			DisableKeepAlives: true,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("stopped after 10 redirects")
			}
			return nil
		},
	}
	return &serviceProbe{
		httpClient: httpClient,
		dialer:     &net.Dialer{},
	}
}

func (p *serviceProbe) Probe(ctx context.Context, t models.MonitoringTarget) (ProbeResult, error) {
	if isHTTPEndpoint(t.Endpoint) {
		return p.checkHTTP(ctx, t)
	}
	return p.checkTCP(ctx, t)
}

func isHTTPEndpoint(endpoint string) bool {
	lower := strings.ToLower(endpoint)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func (p *serviceProbe) checkHTTP(ctx context.Context, t models.MonitoringTarget) (ProbeResult, error) {
	cfg := t.HTTPConfig
	if cfg == nil {
		cfg = &protocol.HTTPMonitorConfig{}
	}
	method := cfg.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if cfg.Body != "" {
		bodyReader = strings.NewReader(cfg.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.Endpoint, bodyReader)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("create request failed: %w", err)
	}
	for key, value := range cfg.Headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if !statusAccepted(resp.StatusCode, cfg.ExpectedStatusCode) {
		return ProbeResult{}, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	details := map[string]any{
		"statusCode": resp.StatusCode,
		"latencyMs":  elapsed.Milliseconds(),
	}
	if cfg.ExpectedContent != "" {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return ProbeResult{}, fmt.Errorf("read response body failed: %w", err)
		}
		if !strings.Contains(string(body), cfg.ExpectedContent) {
			return ProbeResult{}, fmt.Errorf("content does not contain expected string: %s", cfg.ExpectedContent)
		}
		details["contentMatch"] = true
	}

	// HTTPS 证书剩余天数
	if resp.TLS != nil && len(resp.TLS.PeerCertificates) > 0 {
		cert := resp.TLS.PeerCertificates[0]
		details["certDaysLeft"] = int(time.Until(cert.NotAfter).Hours() / 24)
	}

	status := classifySlow(elapsed, cfg.SlowMs)
	return ProbeResult{
		Status:  status,
		Message: fmt.Sprintf("HTTP %d - %dms", resp.StatusCode, elapsed.Milliseconds()),
		Details: details,
	}, nil
}

func (p *serviceProbe) checkTCP(ctx context.Context, t models.MonitoringTarget) (ProbeResult, error) {
	var slowMs int64
	if t.TCPConfig != nil {
		slowMs = t.TCPConfig.SlowMs
	}

	start := time.Now()
	conn, err := p.dialer.DialContext(ctx, "tcp", t.Endpoint)
	elapsed := time.Since(start)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("connection failed: %w", err)
	}
	_ = conn.Close()

	return ProbeResult{
		Status:  classifySlow(elapsed, slowMs),
		Message: fmt.Sprintf("TCP connected - %dms", elapsed.Milliseconds()),
		Details: map[string]any{"latencyMs": elapsed.Milliseconds()},
	}, nil
}

// statusAccepted 未配置期望状态码时接受 2xx/3xx
func statusAccepted(code, expected int) bool {
	if expected > 0 {
		return code == expected
	}
	return code >= 200 && code < 400
}

func classifySlow(elapsed time.Duration, slowMs int64) models.HealthStatus {
	if slowMs <= 0 {
		slowMs = DefaultSlowMs
	}
	if elapsed.Milliseconds() > slowMs {
		return models.HealthDegraded
	}
	return models.HealthHealthy
}

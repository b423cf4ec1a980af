package exporter

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dushixiang/sentinel/internal/models"
	"github.com/dushixiang/sentinel/internal/protocol"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	alerts  []models.Alert
	checks  map[string]models.HealthCheck
	metrics map[string]models.Metric
	status  models.SystemStatus
}

func (s staticSource) GetActiveAlerts() []models.Alert                 { return s.alerts }
func (s staticSource) GetHealthChecks() map[string]models.HealthCheck { return s.checks }
func (s staticSource) GetLatestMetrics() map[string]models.Metric     { return s.metrics }
func (s staticSource) Status() models.SystemStatus                    { return s.status }

func TestExporterCollect(t *testing.T) {
	source := staticSource{
		alerts: []models.Alert{
			{ID: "a1", Level: models.SeverityCritical},
			{ID: "a2", Level: models.SeverityCritical},
			{ID: "a3", Level: models.SeverityWarning},
		},
		checks: map[string]models.HealthCheck{
			"db1": {TargetID: "db1", TargetName: "主库", Status: models.HealthDegraded, ResponseTimeMs: 250},
		},
		metrics: map[string]models.Metric{
			"cpu_usage": {Name: "cpu_usage", Value: 85, Unit: "%", Timestamp: time.Now()},
		},
		status: models.StatusCritical,
	}
	e := New(source)

	server := httptest.NewServer(e.Handler())
	defer server.Close()
	resp, err := server.Client().Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Contains(t, text, `sentinel_active_alerts{level="critical"} 2`)
	assert.Contains(t, text, `sentinel_active_alerts{level="info"} 0`)
	assert.Contains(t, text, `sentinel_target_healthy{name="主库",target="db1"} 0.5`)
	assert.Contains(t, text, `sentinel_target_response_time_seconds{target="db1"} 0.25`)
	assert.Contains(t, text, `sentinel_metric_value{name="cpu_usage",unit="%"} 85`)
	assert.Contains(t, text, "sentinel_system_status 2")
	assert.True(t, strings.Contains(text, "go_goroutines"), "应包含 Go 运行时指标")
}

func TestExporterCountsEvents(t *testing.T) {
	e := New(staticSource{status: models.StatusNormal})

	e.OnEvent(protocol.Event{Type: protocol.EventAlert, Payload: models.Alert{Metric: "cpu_usage", Level: models.SeverityWarning}})
	e.OnEvent(protocol.Event{Type: protocol.EventAlertResolved, Payload: models.Alert{Metric: "cpu_usage", Level: models.SeverityWarning}})
	e.OnEvent(protocol.Event{Type: protocol.EventHealthCheck, Payload: models.HealthCheck{TargetID: "web", Status: models.HealthHealthy}})
	e.OnEvent(protocol.Event{Type: protocol.EventHealthCheck, Payload: models.HealthCheck{TargetID: "web", Status: models.HealthHealthy}})

	assert.Equal(t, 1.0, testutil.ToFloat64(e.alertsTotal.WithLabelValues("cpu_usage", "warning")), "恢复事件不计入触发次数")
	assert.Equal(t, 2.0, testutil.ToFloat64(e.checksTotal.WithLabelValues("web", "healthy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.eventsTotal.WithLabelValues(string(protocol.EventAlertResolved))))
}

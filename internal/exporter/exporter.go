package exporter

import (
	"net/http"

	"github.com/dushixiang/sentinel/internal/models"
	"github.com/dushixiang/sentinel/internal/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sentinel"

// Source 引擎状态的只读视图，抓取时读取
type Source interface {
	GetActiveAlerts() []models.Alert
	GetHealthChecks() map[string]models.HealthCheck
	GetLatestMetrics() map[string]models.Metric
	Status() models.SystemStatus
}

// Exporter 以 Prometheus 格式导出引擎状态，同时作为 Observer 统计事件数量
type Exporter struct {
	source   Source
	registry *prometheus.Registry

	eventsTotal   *prometheus.CounterVec
	alertsTotal   *prometheus.CounterVec
	checksTotal   *prometheus.CounterVec
	activeAlerts  *prometheus.Desc
	targetHealth  *prometheus.Desc
	targetLatency *prometheus.Desc
	metricValue   *prometheus.Desc
	systemStatus  *prometheus.Desc
}

func New(source Source) *Exporter {
	e := &Exporter{
		source:   source,
		registry: prometheus.NewRegistry(),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Number of events published by the engine",
		}, []string{"type"}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_fired_total",
			Help:      "Number of alerts fired",
		}, []string{"metric", "level"}),
		checksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_checks_total",
			Help:      "Number of health checks completed",
		}, []string{"target", "status"}),
		activeAlerts: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "active_alerts"),
			"Number of open alerts",
			[]string{"level"}, nil),
		targetHealth: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "target", "healthy"),
			"Latest health status of a target (1 healthy, 0.5 degraded, 0 unhealthy)",
			[]string{"target", "name"}, nil),
		targetLatency: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "target", "response_time_seconds"),
			"Response time of the latest health check",
			[]string{"target"}, nil),
		metricValue: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "metric", "value"),
			"Latest value of a recorded metric",
			[]string{"name", "unit"}, nil),
		systemStatus: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "system_status"),
			"Aggregated system status (0 normal, 1 warning, 2 critical)",
			nil, nil),
	}

	e.registry.MustRegister(
		e.eventsTotal,
		e.alertsTotal,
		e.checksTotal,
		e,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return e
}

// OnEvent 实现 Observer
func (e *Exporter) OnEvent(event protocol.Event) {
	e.eventsTotal.WithLabelValues(string(event.Type)).Inc()
	switch payload := event.Payload.(type) {
	case models.Alert:
		if event.Type == protocol.EventAlert {
			e.alertsTotal.WithLabelValues(payload.Metric, string(payload.Level)).Inc()
		}
	case models.HealthCheck:
		e.checksTotal.WithLabelValues(payload.TargetID, string(payload.Status)).Inc()
	}
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.activeAlerts
	ch <- e.targetHealth
	ch <- e.targetLatency
	ch <- e.metricValue
	ch <- e.systemStatus
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	counts := map[models.Severity]int{
		models.SeverityInfo:     0,
		models.SeverityWarning:  0,
		models.SeverityError:    0,
		models.SeverityCritical: 0,
	}
	for _, a := range e.source.GetActiveAlerts() {
		counts[a.Level]++
	}
	for level, n := range counts {
		ch <- prometheus.MustNewConstMetric(e.activeAlerts, prometheus.GaugeValue, float64(n), string(level))
	}

	for id, check := range e.source.GetHealthChecks() {
		ch <- prometheus.MustNewConstMetric(e.targetHealth, prometheus.GaugeValue, healthValue(check.Status), id, check.TargetName)
		ch <- prometheus.MustNewConstMetric(e.targetLatency, prometheus.GaugeValue, float64(check.ResponseTimeMs)/1000, id)
	}

	for name, m := range e.source.GetLatestMetrics() {
		ch <- prometheus.MustNewConstMetric(e.metricValue, prometheus.GaugeValue, m.Value, name, m.Unit)
	}

	ch <- prometheus.MustNewConstMetric(e.systemStatus, prometheus.GaugeValue, statusValue(e.source.Status()))
}

// Handler /metrics 处理器
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}

func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

func healthValue(status models.HealthStatus) float64 {
	switch status {
	case models.HealthHealthy:
		return 1
	case models.HealthDegraded:
		return 0.5
	default:
		return 0
	}
}

func statusValue(status models.SystemStatus) float64 {
	switch status {
	case models.StatusCritical:
		return 2
	case models.StatusWarning:
		return 1
	default:
		return 0
	}
}

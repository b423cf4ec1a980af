package service

import (
	"context"
	"testing"
	"time"

	"github.com/dushixiang/sentinel/internal/alert"
	"github.com/dushixiang/sentinel/internal/metric"
	"github.com/dushixiang/sentinel/internal/models"
	"github.com/dushixiang/sentinel/internal/protocol"
	"github.com/dushixiang/sentinel/internal/threshold"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type evaluatorFixture struct {
	svc        *AlertService
	thresholds *threshold.Registry
	metrics    *metric.Store
	alerts     *alert.Store
	bus        *EventBus
	observer   *recordingObserver
	clock      time.Time
}

func newEvaluatorFixture(t *testing.T, escalateAfter time.Duration) *evaluatorFixture {
	f := &evaluatorFixture{
		thresholds: threshold.NewRegistry(),
		metrics:    metric.NewStore(metric.DefaultRetention),
		alerts:     alert.NewStore(alert.DefaultHistoryLimit),
		bus:        NewEventBus(zaptest.NewLogger(t)),
		observer:   &recordingObserver{},
		clock:      time.Now(),
	}
	f.bus.AddObserver(f.observer)
	f.svc = NewAlertService(zaptest.NewLogger(t), f.thresholds, f.metrics, f.alerts, f.bus, escalateAfter)
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *evaluatorFixture) record(name string, value float64) {
	f.metrics.Record(name, value, f.clock, "")
}

func (f *evaluatorFixture) events() []protocol.EventType {
	f.bus.Close(context.Background())
	return f.observer.types()
}

func TestEvaluateOpensOnceAndResolves(t *testing.T) {
	f := newEvaluatorFixture(t, 0)
	th := f.thresholds.Add(models.ThresholdSpec{
		Metric: "cpu_usage", Condition: models.ConditionGT, Value: 80, Severity: models.SeverityWarning,
	})

	f.record("cpu_usage", 85)
	fired := f.svc.Evaluate()
	require.Len(t, fired, 1)
	assert.Equal(t, th.ID, fired[0].ThresholdRef)
	assert.Equal(t, models.SeverityWarning, fired[0].Level)
	assert.Equal(t, 85.0, *fired[0].Value)

	for i := 0; i < 5; i++ {
		f.record("cpu_usage", 90+float64(i))
		assert.Empty(t, f.svc.Evaluate())
	}
	assert.Len(t, f.alerts.Active(), 1)

	f.record("cpu_usage", 50)
	f.svc.Evaluate()
	assert.Empty(t, f.alerts.Active())

	history := f.alerts.History(0)
	require.Len(t, history, 1)
	assert.Equal(t, models.AlertResolved, history[0].Status)
	assert.NotNil(t, history[0].ResolvedAt)

	assert.Equal(t, []protocol.EventType{protocol.EventAlert, protocol.EventAlertResolved}, f.events())
}

func TestEvaluateSkipsMissingAndDisabled(t *testing.T) {
	f := newEvaluatorFixture(t, 0)
	f.thresholds.Add(models.ThresholdSpec{Metric: "memory_usage", Condition: models.ConditionGT, Value: 1, Severity: models.SeverityError})
	f.thresholds.Add(models.ThresholdSpec{Metric: "disk_usage", Condition: models.ConditionGT, Value: 1, Severity: models.SeverityError, Disabled: true})

	f.record("disk_usage", 99)
	assert.Empty(t, f.svc.Evaluate())
	assert.Empty(t, f.events())
}

func TestEvaluateIndependentThresholdsOnSameMetric(t *testing.T) {
	f := newEvaluatorFixture(t, 0)
	f.thresholds.Add(models.ThresholdSpec{Metric: "latency_ms", Condition: models.ConditionGTE, Value: 200, Severity: models.SeverityWarning})
	f.thresholds.Add(models.ThresholdSpec{Metric: "latency_ms", Condition: models.ConditionGTE, Value: 500, Severity: models.SeverityCritical})

	f.record("latency_ms", 300)
	assert.Len(t, f.svc.Evaluate(), 1)

	f.record("latency_ms", 600)
	fired := f.svc.Evaluate()
	require.Len(t, fired, 1)
	assert.Equal(t, models.SeverityCritical, fired[0].Level)
	assert.Len(t, f.alerts.Active(), 2)

	f.record("latency_ms", 250)
	f.svc.Evaluate()
	active := f.alerts.Active()
	require.Len(t, active, 1)
	assert.Equal(t, models.SeverityWarning, active[0].Level)
}

func TestDisablingThresholdResolvesAlert(t *testing.T) {
	f := newEvaluatorFixture(t, 0)
	th := f.thresholds.Add(models.ThresholdSpec{Metric: "queue_depth", Condition: models.ConditionGT, Value: 10, Severity: models.SeverityWarning})
	f.record("queue_depth", 11)
	f.svc.Evaluate()

	require.True(t, f.svc.SetThresholdEnabled(th.ID, false))
	assert.Empty(t, f.alerts.Active())
	assert.False(t, f.svc.SetThresholdEnabled("missing", false))

	// 禁用后不再触发
	assert.Empty(t, f.svc.Evaluate())
}

func TestEscalation(t *testing.T) {
	f := newEvaluatorFixture(t, time.Minute)
	f.thresholds.Add(models.ThresholdSpec{Metric: "errors", Condition: models.ConditionGT, Value: 0, Severity: models.SeverityError})
	f.record("errors", 3)
	fired := f.svc.Evaluate()
	require.Len(t, fired, 1)

	f.clock = f.clock.Add(30 * time.Second)
	f.svc.Evaluate()
	assert.Zero(t, f.alerts.Active()[0].EscalationLevel)

	f.clock = f.clock.Add(2 * time.Minute)
	f.svc.Evaluate()
	assert.Equal(t, 2, f.alerts.Active()[0].EscalationLevel)

	// 确认后不再升级
	require.True(t, f.svc.Acknowledge(fired[0].ID, "ops"))
	f.clock = f.clock.Add(5 * time.Minute)
	f.svc.Evaluate()
	assert.Equal(t, 2, f.alerts.Active()[0].EscalationLevel)

	assert.Equal(t, []protocol.EventType{
		protocol.EventAlert, protocol.EventAlertEscalated, protocol.EventAlertAcknowledged,
	}, f.events())
}

func TestSuppressKeepsDedupSlot(t *testing.T) {
	f := newEvaluatorFixture(t, 0)
	f.thresholds.Add(models.ThresholdSpec{Metric: "cpu_usage", Condition: models.ConditionGT, Value: 80, Severity: models.SeverityCritical})
	f.record("cpu_usage", 95)
	fired := f.svc.Evaluate()
	require.Len(t, fired, 1)

	require.True(t, f.svc.Suppress(fired[0].ID))
	assert.False(t, f.svc.Suppress(fired[0].ID))
	assert.Empty(t, f.alerts.Active())
	assert.Empty(t, f.svc.Evaluate(), "被抑制的告警仍然占用去重位置")

	f.record("cpu_usage", 10)
	f.svc.Evaluate()
	history := f.alerts.History(0)
	require.Len(t, history, 1)
	assert.Equal(t, models.AlertResolved, history[0].Status)
}

func TestBuildAlertMessage(t *testing.T) {
	th := models.Threshold{Metric: "cpu_usage", Condition: models.ConditionGT, Value: 80}
	sample := models.Metric{Name: "cpu_usage", Value: 85, Unit: "%"}
	assert.Equal(t, "cpu_usage > 80，当前值 85.00%", buildAlertMessage(th, sample))

	th.Description = "CPU 过高"
	assert.Equal(t, "CPU 过高: cpu_usage > 80，当前值 85.00%", buildAlertMessage(th, sample))
}

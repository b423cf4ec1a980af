package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/dushixiang/sentinel/internal/alert"
	"github.com/dushixiang/sentinel/internal/metric"
	"github.com/dushixiang/sentinel/internal/models"
	"github.com/dushixiang/sentinel/internal/protocol"
	"github.com/dushixiang/sentinel/internal/threshold"
	"go.uber.org/zap"
)

// AlertService 阈值评估与告警生命周期
//
// 评估是电平触发的：违反阈值时最多打开一个告警，恢复后关闭该告警。
// 所有评估串行执行，并发的 Monitor 调用与 sweep 不会重复开告警。
type AlertService struct {
	mu            sync.Mutex
	thresholds    *threshold.Registry
	metrics       *metric.Store
	alerts        *alert.Store
	bus           *EventBus
	escalateAfter time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

func NewAlertService(logger *zap.Logger, thresholds *threshold.Registry, metrics *metric.Store, alerts *alert.Store, bus *EventBus, escalateAfter time.Duration) *AlertService {
	return &AlertService{
		thresholds:    thresholds,
		metrics:       metrics,
		alerts:        alerts,
		bus:           bus,
		escalateAfter: escalateAfter,
		now:           time.Now,
		logger:        logger,
	}
}

// Evaluate 对所有启用的阈值执行一次评估，返回本次新建的告警
func (s *AlertService) Evaluate() []models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var fired []models.Alert
	for _, t := range s.thresholds.Enabled() {
		latest, ok := s.metrics.Latest(t.Metric)
		if !ok {
			continue
		}
		if threshold.Violated(t.Condition, latest.Value, t.Value) {
			if a, created := s.fireAlert(t, latest, now); created {
				fired = append(fired, a)
			}
			continue
		}
		s.resolveAlert(t.ID, latest.Value, now)
	}
	return fired
}

// fireAlert 已有未关闭告警时只检查是否需要升级
func (s *AlertService) fireAlert(t models.Threshold, sample models.Metric, now time.Time) (models.Alert, bool) {
	a, created := s.alerts.Open(t, sample, buildAlertMessage(t, sample), now)
	if !created {
		if escalated, ok := s.alerts.Escalate(t.ID, s.escalateAfter, now); ok {
			s.logger.Warn("告警升级",
				zap.String("alertId", escalated.ID),
				zap.String("metric", escalated.Metric),
				zap.Int("escalationLevel", escalated.EscalationLevel))
			s.bus.Publish(protocol.EventAlertEscalated, escalated)
		}
		return a, false
	}

	fields := []zap.Field{
		zap.String("alertId", a.ID),
		zap.String("thresholdId", t.ID),
		zap.String("metric", t.Metric),
		zap.Float64("value", sample.Value),
		zap.Float64("threshold", t.Value),
		zap.String("level", string(a.Level)),
	}
	if a.Level == models.SeverityCritical {
		s.logger.Error("触发告警", fields...)
	} else {
		s.logger.Warn("触发告警", fields...)
	}
	s.bus.Publish(protocol.EventAlert, a)
	return a, true
}

// resolveAlert 关闭阈值的未关闭告警（如果有）
func (s *AlertService) resolveAlert(thresholdID string, value float64, now time.Time) {
	a, ok := s.alerts.Resolve(thresholdID, now)
	if !ok {
		return
	}
	s.logger.Info("告警恢复",
		zap.String("alertId", a.ID),
		zap.String("metric", a.Metric),
		zap.Float64("value", value))
	s.bus.Publish(protocol.EventAlertResolved, a)
}

// SetThresholdEnabled 禁用阈值时一并关闭它的告警
func (s *AlertService) SetThresholdEnabled(id string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.thresholds.SetEnabled(id, enabled)
	if !ok {
		return false
	}
	if !t.Enabled {
		var value float64
		if latest, ok := s.metrics.Latest(t.Metric); ok {
			value = latest.Value
		}
		s.resolveAlert(t.ID, value, s.now())
	}
	return true
}

// Acknowledge 确认告警，未知 ID 返回 false
func (s *AlertService) Acknowledge(id, by string) bool {
	a, ok := s.alerts.Acknowledge(id, by, s.now())
	if !ok {
		return false
	}
	s.logger.Info("告警已确认", zap.String("alertId", id), zap.String("by", by))
	s.bus.Publish(protocol.EventAlertAcknowledged, a)
	return true
}

// Suppress 抑制活跃告警
func (s *AlertService) Suppress(id string) bool {
	a, ok := s.alerts.Suppress(id)
	if !ok {
		return false
	}
	s.logger.Info("告警已抑制", zap.String("alertId", id))
	s.bus.Publish(protocol.EventAlertSuppressed, a)
	return true
}

// buildAlertMessage 构建告警消息
func buildAlertMessage(t models.Threshold, sample models.Metric) string {
	msg := fmt.Sprintf("%s %s %g，当前值 %.2f%s",
		t.Metric, threshold.Symbol(t.Condition), t.Value, sample.Value, sample.Unit)
	if t.Description != "" {
		return t.Description + ": " + msg
	}
	return msg
}

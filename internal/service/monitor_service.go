package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dushixiang/sentinel/internal/alert"
	"github.com/dushixiang/sentinel/internal/health"
	"github.com/dushixiang/sentinel/internal/metric"
	"github.com/dushixiang/sentinel/internal/models"
	"github.com/dushixiang/sentinel/internal/protocol"
	"github.com/dushixiang/sentinel/internal/scheduler"
	"github.com/dushixiang/sentinel/internal/target"
	"github.com/dushixiang/sentinel/internal/threshold"
	"github.com/dushixiang/sentinel/internal/validation"
	"go.uber.org/zap"
)

// DefaultSweepInterval 全局 sweep 的默认间隔
const DefaultSweepInterval = 5 * time.Minute

// MetricCollector 主机指标采集，sweep 时调用
type MetricCollector interface {
	Collect(ctx context.Context) (map[string]float64, error)
}

// Options 引擎参数，零值使用默认配置
type Options struct {
	MetricRetention   time.Duration
	AlertHistoryLimit int
	EscalateAfter     time.Duration
	SweepInterval     time.Duration
	Collector         MetricCollector
	CheckerOptions    []health.Option
}

// MonitorService 监控引擎：指标、阈值、目标健康检查与告警
type MonitorService struct {
	logger       *zap.Logger
	metrics      *metric.Store
	thresholds   *threshold.Registry
	targets      *target.Registry
	alerts       *alert.Store
	checker      *health.Checker
	results      *health.ResultCache
	scheduler    *scheduler.MonitorScheduler
	alertService *AlertService
	bus          *EventBus
	collector    MetricCollector

	sweepInterval time.Duration
	targetMu      sync.Mutex
	managed       map[string]struct{} // 来自配置文件的目标
	managedRules  map[string]struct{} // 来自配置文件的阈值
	startOnce     sync.Once
	shutdownOnce  sync.Once
}

func NewMonitorService(logger *zap.Logger, opts Options) *MonitorService {
	sweepInterval := opts.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	s := &MonitorService{
		logger:        logger,
		metrics:       metric.NewStore(opts.MetricRetention),
		thresholds:    threshold.NewRegistry(),
		targets:       target.NewRegistry(),
		alerts:        alert.NewStore(opts.AlertHistoryLimit),
		checker:       health.NewChecker(logger.Named("health"), opts.CheckerOptions...),
		results:       health.NewResultCache(),
		bus:           NewEventBus(logger.Named("events")),
		collector:     opts.Collector,
		sweepInterval: sweepInterval,
		managed:       make(map[string]struct{}),
		managedRules:  make(map[string]struct{}),
	}
	s.scheduler = scheduler.NewMonitorScheduler(s.checker, s.onHealthCheck, logger.Named("scheduler"))
	s.alertService = NewAlertService(logger, s.thresholds, s.metrics, s.alerts, s.bus, opts.EscalateAfter)
	return s
}

func (s *MonitorService) onHealthCheck(check models.HealthCheck) {
	s.results.Put(check)
	s.bus.Publish(protocol.EventHealthCheck, check)
}

// Start 注册 sweep 并启动调度器
func (s *MonitorService) Start() error {
	var err error
	s.startOnce.Do(func() {
		if err = s.scheduler.AddSweep(s.sweepInterval, s.Sweep); err != nil {
			return
		}
		s.scheduler.Start()
		s.logger.Info("监控引擎已启动",
			zap.Duration("sweepInterval", s.sweepInterval),
			zap.Int("targets", s.scheduler.GetTaskCount()))
	})
	return err
}

// Shutdown 停止所有定时任务，返回后不会再有健康检查结果写入
func (s *MonitorService) Shutdown(ctx context.Context) {
	s.shutdownOnce.Do(func() {
		s.scheduler.Stop()
		s.checker.Close()
		s.bus.Close(ctx)
		s.logger.Info("监控引擎已停止")
	})
}

// Sweep 采集主机指标、清理过期数据并重新评估阈值
func (s *MonitorService) Sweep(ctx context.Context) {
	if s.collector != nil {
		values, err := s.collector.Collect(ctx)
		if err != nil {
			s.logger.Warn("采集主机指标失败", zap.Error(err))
		}
		now := time.Now()
		for name, value := range values {
			s.RecordMetric(name, value, now, metric.InferUnit(name))
		}
	}
	if removed := s.metrics.Prune(); removed > 0 {
		s.logger.Debug("清理过期指标", zap.Int("removed", removed))
	}
	s.alertService.Evaluate()
}

// Monitor 写入指标、执行健康检查与阈值评估，返回聚合后的结果
func (s *MonitorService) Monitor(ctx context.Context, data any) (*models.MonitoringResult, error) {
	samples, err := metric.ExtractSamples(data)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for _, sample := range samples {
		s.RecordMetric(sample.Name, sample.Value, now, sample.Unit)
	}

	s.scheduler.RunAll(ctx)
	s.alertService.Evaluate()

	alerts := s.alerts.Active()
	checks := s.results.Snapshot()
	return &models.MonitoringResult{
		Status:       AggregateStatus(alerts, checks),
		Alerts:       alerts,
		Metrics:      s.metrics.LatestAll(),
		HealthChecks: checks,
		Timestamp:    now,
	}, nil
}

// RecordMetric 写入一个指标点并发布 metric 事件
func (s *MonitorService) RecordMetric(name string, value float64, timestamp time.Time, unit string) models.Metric {
	m := s.metrics.Record(name, value, timestamp, unit)
	s.bus.Publish(protocol.EventMetric, m)
	return m
}

// GetMetrics name 为空返回所有指标，timeRange 为 nil 不过滤
func (s *MonitorService) GetMetrics(name string, timeRange *models.TimeRange) []models.Metric {
	return s.metrics.Query(name, timeRange)
}

// GetMetricSeries 以 DataPoint 形式返回单个指标
func (s *MonitorService) GetMetricSeries(name string, timeRange *models.TimeRange) metric.Series {
	return s.metrics.Series(name, timeRange)
}

// GetLatestMetrics 每个指标的最新值
func (s *MonitorService) GetLatestMetrics() map[string]models.Metric {
	return s.metrics.LatestAll()
}

func (s *MonitorService) GetMetricNames() []string {
	return s.metrics.Names()
}

// SetThreshold 注册新阈值，同一指标可以有多个阈值
func (s *MonitorService) SetThreshold(spec models.ThresholdSpec) (models.Threshold, error) {
	if err := validation.Struct(spec); err != nil {
		return models.Threshold{}, err
	}
	t := s.thresholds.Add(spec)
	s.logger.Info("添加阈值",
		zap.String("thresholdId", t.ID),
		zap.String("metric", t.Metric),
		zap.String("condition", string(t.Condition)),
		zap.Float64("value", t.Value),
		zap.String("severity", string(t.Severity)))
	return t, nil
}

// PutThreshold 按 ID 写入或替换阈值
func (s *MonitorService) PutThreshold(t models.Threshold) (models.Threshold, error) {
	if t.ID == "" {
		return models.Threshold{}, fmt.Errorf("threshold id is required")
	}
	if err := validation.Struct(t); err != nil {
		return models.Threshold{}, err
	}
	saved := s.thresholds.Put(t)
	if !saved.Enabled {
		s.alertService.SetThresholdEnabled(saved.ID, false)
	}
	return saved, nil
}

func (s *MonitorService) GetThresholds() map[string]models.ThresholdView {
	return s.thresholds.Views()
}

func (s *MonitorService) ListThresholds() []models.Threshold {
	return s.thresholds.List()
}

func (s *MonitorService) GetThreshold(id string) (models.Threshold, bool) {
	return s.thresholds.Get(id)
}

// SetThresholdEnabled 未知 ID 返回 false
func (s *MonitorService) SetThresholdEnabled(id string, enabled bool) bool {
	return s.alertService.SetThresholdEnabled(id, enabled)
}

// AddTarget 注册目标，启用的目标会被调度；重复 ID 视为替换
func (s *MonitorService) AddTarget(t models.MonitoringTarget) error {
	if err := validation.Struct(t); err != nil {
		return err
	}

	s.targetMu.Lock()
	defer s.targetMu.Unlock()
	return s.addTargetLocked(t)
}

func (s *MonitorService) addTargetLocked(t models.MonitoringTarget) error {
	if replaced := s.targets.Put(t); replaced {
		s.scheduler.RemoveTask(t.ID)
		s.results.Delete(t.ID)
		s.checker.Forget(t.ID)
	}
	if !t.Enabled {
		s.logger.Info("添加监控目标（未启用）", zap.String("targetID", t.ID))
		return nil
	}
	if err := s.scheduler.AddTask(t); err != nil {
		return fmt.Errorf("schedule target %s: %w", t.ID, err)
	}
	return nil
}

// RemoveTarget 先停止并等待调度任务，再删除目标与其缓存结果
func (s *MonitorService) RemoveTarget(id string) bool {
	s.targetMu.Lock()
	defer s.targetMu.Unlock()
	return s.removeTargetLocked(id)
}

func (s *MonitorService) removeTargetLocked(id string) bool {
	s.scheduler.RemoveTask(id)
	existed := s.targets.Remove(id)
	s.results.Delete(id)
	s.checker.Forget(id)
	delete(s.managed, id)
	if existed {
		s.logger.Info("删除监控目标", zap.String("targetID", id))
	}
	return existed
}

func (s *MonitorService) GetTargets() []models.MonitoringTarget {
	return s.targets.List()
}

func (s *MonitorService) GetTarget(id string) (models.MonitoringTarget, bool) {
	return s.targets.Get(id)
}

// PerformHealthCheck 按目标类型执行一次检查，目标无需注册，不写入缓存
func (s *MonitorService) PerformHealthCheck(ctx context.Context, t models.MonitoringTarget) models.HealthCheck {
	return s.checker.Check(ctx, t)
}

// CheckTarget 立即对已注册目标执行一次检查，启用的目标经调度任务执行并写入缓存
func (s *MonitorService) CheckTarget(ctx context.Context, id string) (models.HealthCheck, bool) {
	t, ok := s.targets.Get(id)
	if !ok {
		return models.HealthCheck{}, false
	}
	if check, ran := s.scheduler.RunTask(ctx, id); ran {
		return check, true
	}
	// 未启用的目标不参与聚合
	return s.PerformHealthCheck(ctx, t), true
}

func (s *MonitorService) GetHealthChecks() map[string]models.HealthCheck {
	return s.results.Snapshot()
}

// AddSweep 注册额外的周期任务，和目标检查共用调度器
func (s *MonitorService) AddSweep(interval time.Duration, fn func(ctx context.Context)) error {
	return s.scheduler.AddSweep(interval, fn)
}

func (s *MonitorService) GetTaskStatus() []scheduler.TaskStatus {
	return s.scheduler.GetTaskStatus()
}

// AcknowledgeAlert 未知 ID 返回 false
func (s *MonitorService) AcknowledgeAlert(id, by string) bool {
	return s.alertService.Acknowledge(id, by)
}

func (s *MonitorService) SuppressAlert(id string) bool {
	return s.alertService.Suppress(id)
}

func (s *MonitorService) GetActiveAlerts() []models.Alert {
	return s.alerts.Active()
}

// GetAlertHistory 最新的在前
func (s *MonitorService) GetAlertHistory(limit int) []models.Alert {
	return s.alerts.History(limit)
}

// Status 当前聚合状态
func (s *MonitorService) Status() models.SystemStatus {
	return AggregateStatus(s.alerts.Active(), s.results.Snapshot())
}

// Subscribe 以 channel 订阅事件
func (s *MonitorService) Subscribe() (<-chan protocol.Event, func()) {
	return s.bus.Subscribe()
}

// AddObserver 注册事件观察者
func (s *MonitorService) AddObserver(observer Observer) (remove func()) {
	return s.bus.AddObserver(observer)
}

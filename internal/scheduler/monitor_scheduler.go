package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dushixiang/sentinel/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// DefaultInterval 目标未配置检查间隔时使用，单位秒
const DefaultInterval = 60

// Checker 对单个目标执行健康检查
type Checker interface {
	Check(ctx context.Context, target models.MonitoringTarget) models.HealthCheck
}

// ResultFunc 接收检查结果，任务停止后不会再被调用
type ResultFunc func(check models.HealthCheck)

// MonitorTask 调度任务
type MonitorTask struct {
	ID       string       // 目标 ID
	EntryID  cron.EntryID // cron 任务的 ID
	Interval int

	target  models.MonitoringTarget
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	stopped bool
	running sync.WaitGroup
}

// acquire 任务未停止时登记一次执行
func (t *MonitorTask) acquire() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	t.running.Add(1)
	return true
}

// stop 标记停止、取消正在进行的检查并等待其退出
func (t *MonitorTask) stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()

	t.cancel()
	t.running.Wait()
}

// MonitorScheduler 健康检查调度器
type MonitorScheduler struct {
	mu       sync.RWMutex
	cron     *cron.Cron
	tasks    map[string]*MonitorTask // targetID -> MonitorTask
	sweeps   []cron.EntryID
	checker  Checker
	onResult ResultFunc
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	closed   bool
}

// NewMonitorScheduler 创建调度器
func NewMonitorScheduler(checker Checker, onResult ResultFunc, logger *zap.Logger) *MonitorScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &MonitorScheduler{
		cron: cron.New(
			cron.WithSeconds(), // 支持秒级调度
			cron.WithChain(cron.Recover(NewCronLogger(logger))),
			cron.WithLogger(NewCronLogger(logger)),
		),
		tasks:    make(map[string]*MonitorTask),
		checker:  checker,
		onResult: onResult,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start 启动调度器
func (s *MonitorScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true

	s.logger.Info("启动健康检查调度器", zap.Int("tasks", len(s.tasks)))
	s.cron.Start()
}

// Stop 停止调度器，返回后不会再有检查结果写入
func (s *MonitorScheduler) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	tasks := make([]*MonitorTask, 0, len(s.tasks))
	for id, task := range s.tasks {
		s.cron.Remove(task.EntryID)
		tasks = append(tasks, task)
		delete(s.tasks, id)
	}
	s.mu.Unlock()

	for _, task := range tasks {
		task.stop()
	}
	s.cancel()

	// 等待 cron 中正在运行的任务（包括 sweep）结束
	ctx := s.cron.Stop()
	<-ctx.Done()

	s.logger.Info("健康检查调度器已停止")
}

// AddTask 添加目标的检查任务，已存在时先停止旧任务
func (s *MonitorScheduler) AddTask(target models.MonitoringTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("scheduler stopped")
	}

	s.removeTaskLocked(target.ID)

	interval := target.CheckIntervalSeconds
	if interval <= 0 {
		interval = DefaultInterval
	}

	ctx, cancel := context.WithCancel(s.ctx)
	task := &MonitorTask{
		ID:       target.ID,
		Interval: interval,
		target:   target,
		ctx:      ctx,
		cancel:   cancel,
	}

	spec := fmt.Sprintf("@every %ds", interval)
	entryID, err := s.cron.AddFunc(spec, func() {
		s.runTask(context.Background(), task)
	})
	if err != nil {
		cancel()
		return fmt.Errorf("添加 cron 任务失败: %w", err)
	}
	task.EntryID = entryID
	s.tasks[target.ID] = task

	s.logger.Info("添加健康检查任务",
		zap.String("targetID", target.ID),
		zap.String("type", string(target.Type)),
		zap.Int("interval", interval))
	return nil
}

// RemoveTask 删除任务并等待正在进行的检查结束
func (s *MonitorScheduler) RemoveTask(targetID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeTaskLocked(targetID)
}

// removeTaskLocked 需要持有锁
func (s *MonitorScheduler) removeTaskLocked(targetID string) bool {
	task, exists := s.tasks[targetID]
	if !exists {
		return false
	}
	s.cron.Remove(task.EntryID)
	delete(s.tasks, targetID)
	task.stop()
	s.logger.Info("删除健康检查任务", zap.String("targetID", targetID))
	return true
}

// AddSweep 添加周期性的全局任务
func (s *MonitorScheduler) AddSweep(interval time.Duration, fn func(ctx context.Context)) error {
	if interval <= 0 {
		return fmt.Errorf("invalid sweep interval: %s", interval)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if s.ctx.Err() != nil {
			return
		}
		fn(s.ctx)
	})
	if err != nil {
		return fmt.Errorf("添加 sweep 任务失败: %w", err)
	}
	s.sweeps = append(s.sweeps, entryID)
	s.logger.Info("添加 sweep 任务", zap.Duration("interval", interval))
	return nil
}

// RunAll 立即并发执行所有任务一次并等待完成
func (s *MonitorScheduler) RunAll(ctx context.Context) {
	s.mu.RLock()
	tasks := make([]*MonitorTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}
	s.mu.RUnlock()

	var wg conc.WaitGroup
	for _, task := range tasks {
		wg.Go(func() {
			s.runTask(ctx, task)
		})
	}
	wg.Wait()
}

// RunTask 立即执行目标的任务一次，结果与定时执行一样写入；没有任务时返回 false
func (s *MonitorScheduler) RunTask(ctx context.Context, targetID string) (models.HealthCheck, bool) {
	s.mu.RLock()
	task, ok := s.tasks[targetID]
	s.mu.RUnlock()
	if !ok {
		return models.HealthCheck{}, false
	}
	return s.runTask(ctx, task)
}

// runTask 执行一次检查，任务已停止或调用方已取消时丢弃结果
func (s *MonitorScheduler) runTask(ctx context.Context, task *MonitorTask) (models.HealthCheck, bool) {
	if !task.acquire() {
		return models.HealthCheck{}, false
	}
	defer task.running.Done()

	runCtx, cancel := context.WithCancel(task.ctx)
	defer cancel()
	stopAfter := context.AfterFunc(ctx, cancel)
	defer stopAfter()

	s.logger.Debug("执行健康检查",
		zap.String("targetID", task.ID),
		zap.Int("interval", task.Interval))

	check := s.checker.Check(runCtx, task.target)
	if ctx.Err() != nil {
		s.logger.Debug("调用方已取消，丢弃检查结果",
			zap.String("targetID", task.ID),
			zap.Error(ctx.Err()))
		return check, true
	}

	task.mu.Lock()
	defer task.mu.Unlock()
	if task.stopped {
		return check, true
	}
	s.onResult(check)
	return check, true
}

// GetTaskCount 获取任务数量
func (s *MonitorScheduler) GetTaskCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// TaskStatus 任务状态
type TaskStatus struct {
	ID          string    `json:"id"`
	Interval    int       `json:"interval"`
	NextRunTime time.Time `json:"nextRunTime,omitempty"`
	PrevRunTime time.Time `json:"prevRunTime,omitempty"`
}

// GetTaskStatus 获取任务状态，按 ID 排序
func (s *MonitorScheduler) GetTaskStatus() []TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entryMap := make(map[cron.EntryID]cron.Entry)
	for _, entry := range s.cron.Entries() {
		entryMap[entry.ID] = entry
	}

	tasks := make([]TaskStatus, 0, len(s.tasks))
	for _, task := range s.tasks {
		status := TaskStatus{ID: task.ID, Interval: task.Interval}
		// 从 cron entry 获取执行时间
		if entry, exists := entryMap[task.EntryID]; exists {
			status.NextRunTime = entry.Next
			status.PrevRunTime = entry.Prev
		}
		tasks = append(tasks, status)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks
}

package health

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dushixiang/sentinel/internal/models"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// DefaultTimeout 目标未配置超时时使用
const DefaultTimeout = 10 * time.Second

// ProbeResult 探测结果，状态由各类型自己判定
type ProbeResult struct {
	Status  models.HealthStatus
	Message string
	Details map[string]any
}

// Probe 某一类目标的探测实现，返回 error 即视为 unhealthy
type Probe interface {
	Probe(ctx context.Context, target models.MonitoringTarget) (ProbeResult, error)
}

// ProbeFunc 便于测试注入
type ProbeFunc func(ctx context.Context, target models.MonitoringTarget) (ProbeResult, error)

func (f ProbeFunc) Probe(ctx context.Context, target models.MonitoringTarget) (ProbeResult, error) {
	return f(ctx, target)
}

// releaser 持有长连接的探测实现，目标删除时释放
type releaser interface {
	Release(targetID string)
	Close()
}

// Checker 按目标类型分发健康检查
type Checker struct {
	logger         *zap.Logger
	probes         map[models.TargetType]Probe
	injected       map[models.TargetType]bool
	generic        Probe
	defaultTimeout time.Duration
	fs             afero.Fs
	dbPools        map[string]*sql.DB
	closeOnce      sync.Once
}

type Option func(*Checker)

// WithProbe 替换某类目标的探测实现，注入的探测不再要求 endpoint
func WithProbe(targetType models.TargetType, probe Probe) Option {
	return func(c *Checker) {
		c.probes[targetType] = probe
		c.injected[targetType] = true
	}
}

// WithFs 文件系统探测使用的文件系统
func WithFs(fs afero.Fs) Option {
	return func(c *Checker) {
		c.fs = fs
	}
}

// WithDatabasePool 数据库目标使用进程内已有的连接池，检查时读取它的 Stats，连接池由调用方关闭
func WithDatabasePool(targetID string, db *sql.DB) Option {
	return func(c *Checker) {
		c.dbPools[targetID] = db
	}
}

// WithDefaultTimeout 目标未配置超时时使用的超时
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(c *Checker) {
		if timeout > 0 {
			c.defaultTimeout = timeout
		}
	}
}

func NewChecker(logger *zap.Logger, opts ...Option) *Checker {
	c := &Checker{
		logger:         logger,
		probes:         make(map[models.TargetType]Probe),
		injected:       make(map[models.TargetType]bool),
		generic:        newGenericProbe(),
		defaultTimeout: DefaultTimeout,
		fs:             afero.NewOsFs(),
		dbPools:        make(map[string]*sql.DB),
	}
	for _, opt := range opts {
		opt(c)
	}

	defaults := map[models.TargetType]Probe{
		models.TargetService:    newServiceProbe(),
		models.TargetAPI:        newAPIProbe(),
		models.TargetDatabase:   newDatabaseProbe(logger, c.dbPools),
		models.TargetCache:      newCacheProbe(),
		models.TargetQueue:      newQueueProbe(),
		models.TargetNetwork:    newNetworkProbe(),
		models.TargetFileSystem: newFileSystemProbe(c.fs),
	}
	for t, p := range defaults {
		if _, ok := c.probes[t]; !ok {
			c.probes[t] = p
		}
	}
	return c
}

// probeFor 未知类型或缺少连接信息的目标走通用探测
func (c *Checker) probeFor(t models.MonitoringTarget) Probe {
	p, ok := c.probes[t.Type]
	if !ok {
		return c.generic
	}
	if c.injected[t.Type] || configured(t) {
		return p
	}
	if _, ok := c.dbPools[t.ID]; ok && t.Type == models.TargetDatabase {
		return p
	}
	return c.generic
}

func configured(t models.MonitoringTarget) bool {
	if t.Endpoint != "" {
		return true
	}
	switch t.Type {
	case models.TargetDatabase:
		return t.DatabaseConfig != nil && t.DatabaseConfig.DSN != ""
	case models.TargetFileSystem:
		return t.FileSystemConfig != nil && t.FileSystemConfig.Path != ""
	}
	return false
}

type outcome struct {
	result ProbeResult
	err    error
}

// Check 执行一次健康检查，超时、panic、错误都转换为 unhealthy，响应时间始终为实际耗时
func (c *Checker) Check(ctx context.Context, t models.MonitoringTarget) models.HealthCheck {
	timeout := time.Duration(t.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	probe := c.probeFor(t)
	start := time.Now()
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("probe panic: %v", r)}
			}
		}()
		result, err := probe.Probe(ctx, t)
		done <- outcome{result: result, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			out.err = fmt.Errorf("health check timed out after %s", timeout)
		} else {
			out.err = fmt.Errorf("health check canceled: %w", ctx.Err())
		}
	}
	elapsed := time.Since(start)

	check := models.HealthCheck{
		TargetID:       t.ID,
		TargetName:     t.DisplayName(),
		LastCheck:      time.Now(),
		ResponseTimeMs: elapsed.Milliseconds(),
	}
	if out.err != nil {
		check.Status = models.HealthUnhealthy
		check.Message = out.err.Error()
		check.Details = map[string]any{
			"error": out.err.Error(),
			"type":  string(t.Type),
		}
		c.logger.Debug("健康检查失败",
			zap.String("targetID", t.ID),
			zap.String("type", string(t.Type)),
			zap.Int64("elapsedMs", check.ResponseTimeMs),
			zap.Error(out.err))
		return check
	}

	check.Status = out.result.Status
	if check.Status == "" {
		check.Status = models.HealthHealthy
	}
	check.Message = out.result.Message
	check.Details = out.result.Details
	return check
}

// Forget 释放目标占用的连接池
func (c *Checker) Forget(targetID string) {
	for _, p := range c.probes {
		if r, ok := p.(releaser); ok {
			r.Release(targetID)
		}
	}
}

// Close 关闭所有探测持有的连接
func (c *Checker) Close() {
	c.closeOnce.Do(func() {
		for _, p := range c.probes {
			if r, ok := p.(releaser); ok {
				r.Close()
			}
		}
	})
}

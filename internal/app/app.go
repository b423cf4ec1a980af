package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dushixiang/sentinel/internal/config"
	"github.com/dushixiang/sentinel/internal/exporter"
	"github.com/dushixiang/sentinel/internal/handler"
	"github.com/dushixiang/sentinel/internal/health"
	"github.com/dushixiang/sentinel/internal/migrate"
	"github.com/dushixiang/sentinel/internal/notifier"
	"github.com/dushixiang/sentinel/internal/repo"
	"github.com/dushixiang/sentinel/internal/service"
	"github.com/dushixiang/sentinel/pkg/agent"
	"github.com/dushixiang/sentinel/pkg/agent/collector"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	archiveCleanupInterval = time.Hour
	shutdownTimeout        = 15 * time.Second
)

// App 按配置组装监控引擎及其外围组件
type App struct {
	logger   *zap.Logger
	loader   *config.Loader
	cfg      *config.AppConfig
	monitor  *service.MonitorService
	exporter *exporter.Exporter
	archive  *service.ArchiveService
	state    *repo.StateStore
	db       *gorm.DB
	server   *handler.Server
	stopped  atomic.Bool

	reloadMu sync.Mutex
	applied  *config.AppConfig // 最近一次应用的配置
}

// New 加载配置并创建所有组件，不启动调度
func New(configPath string) (*App, error) {
	loader := config.NewLoader(configPath, zap.NewNop())
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	logger := agent.NewLogger(cfg.Log)
	loader.SetLogger(logger.Named("config"))
	a := &App{
		logger:  logger,
		loader:  loader,
		cfg:     cfg,
		applied: cfg,
	}
	if err := a.build(); err != nil {
		a.closeStorage()
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

func (a *App) build() error {
	cfg := a.cfg
	opts := service.Options{
		MetricRetention:   cfg.Monitor.MetricRetention,
		AlertHistoryLimit: cfg.Monitor.AlertHistoryLimit,
		EscalateAfter:     cfg.Monitor.EscalateAfter,
		SweepInterval:     cfg.Monitor.SweepInterval,
		CheckerOptions:    []health.Option{health.WithDefaultTimeout(cfg.Monitor.DefaultTimeout)},
	}
	if cfg.Monitor.CollectSystemMetrics {
		opts.Collector = collector.NewSystemCollector("")
	}
	a.monitor = service.NewMonitorService(a.logger, opts)

	a.exporter = exporter.New(a.monitor)
	a.monitor.AddObserver(a.exporter)

	if cfg.Storage.Enabled {
		if err := a.openArchive(); err != nil {
			return err
		}
	}
	if cfg.Storage.StateFile != "" {
		state, err := repo.OpenStateStore(cfg.Storage.StateFile)
		if err != nil {
			return err
		}
		a.state = state
		if err := a.restoreState(); err != nil {
			return err
		}
	}

	if cfg.Notify.Enabled {
		if n := notifier.New(a.logger.Named("notifier"), cfg.Notify); n != nil {
			a.monitor.AddObserver(n)
		} else {
			a.logger.Warn("已启用通知但没有配置任何通知渠道")
		}
	}

	if err := a.applyConfig(cfg); err != nil {
		return fmt.Errorf("apply config: %w", err)
	}

	if cfg.HTTP.Enabled {
		var state handler.StatePersister
		if a.state != nil {
			state = a.state
		}
		a.server = handler.NewServer(a.logger.Named("http"), a.monitor, a.archive, state, a.exporter)
	}
	return nil
}

func (a *App) openArchive() error {
	storage := a.cfg.Storage
	db, err := repo.Open(storage.Driver, storage.DSN)
	if err != nil {
		return err
	}
	a.db = db
	if err := migrate.Migrate(a.logger, db); err != nil {
		return err
	}

	a.archive = service.NewArchiveService(a.logger.Named("archive"), repo.NewAlertRecordRepo(db), a.monitor.GetThreshold)
	a.monitor.AddObserver(a.archive)
	if storage.Retention > 0 {
		return a.monitor.AddSweep(archiveCleanupInterval, func(ctx context.Context) {
			a.archive.Cleanup(ctx, storage.Retention)
		})
	}
	return nil
}

// restoreState 恢复上次运行时通过接口添加的阈值与目标，配置文件中的同 ID 项随后覆盖
func (a *App) restoreState() error {
	thresholds, err := a.state.Thresholds()
	if err != nil {
		return err
	}
	targets, err := a.state.Targets()
	if err != nil {
		return err
	}

	var errs []error
	for _, t := range thresholds {
		if _, err := a.monitor.PutThreshold(t); err != nil {
			errs = append(errs, err)
		}
	}
	for _, t := range targets {
		if err := a.monitor.AddTarget(t); err != nil {
			errs = append(errs, err)
		}
	}
	a.logger.Info("已恢复运行时状态",
		zap.Int("thresholds", len(thresholds)),
		zap.Int("targets", len(targets)))
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("部分运行时状态无法恢复", zap.Error(err))
	}
	return nil
}

func (a *App) applyConfig(cfg *config.AppConfig) error {
	return errors.Join(
		a.monitor.SyncThresholds(cfg.ThresholdList()),
		a.monitor.SyncTargets(cfg.Targets),
	)
}

func (a *App) reload(cfg *config.AppConfig) {
	if a.stopped.Load() {
		return
	}
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	if err := a.applyConfig(cfg); err != nil {
		a.logger.Error("应用新配置失败", zap.Error(err))
	}
	var sections []string
	if cfg.Log != a.applied.Log {
		sections = append(sections, "Log")
	}
	if cfg.HTTP != a.applied.HTTP {
		sections = append(sections, "HTTP")
	}
	if cfg.Storage != a.applied.Storage {
		sections = append(sections, "Storage")
	}
	if len(sections) > 0 {
		a.logger.Warn("日志、HTTP 与存储配置的修改需要重启后生效", zap.Strings("sections", sections))
	}
	a.applied = cfg
}

// Start 启动调度、配置监听与 HTTP 服务
func (a *App) Start() error {
	if info, err := collector.CollectHostInfo(context.Background()); err == nil {
		a.logger.Info("主机信息",
			zap.String("hostname", info.Hostname),
			zap.String("platform", info.Platform),
			zap.String("kernel", info.KernelVersion))
	}

	if err := a.monitor.Start(); err != nil {
		return err
	}
	a.loader.Watch(a.reload)

	if a.server != nil {
		addr := a.cfg.HTTP.Addr
		go func() {
			if err := a.server.Start(addr); err != nil {
				a.logger.Error("HTTP 服务异常退出", zap.Error(err))
			}
		}()
	}
	return nil
}

// Stop 依次关闭 HTTP、引擎与存储
func (a *App) Stop() error {
	if !a.stopped.CompareAndSwap(false, true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.monitor.Shutdown(ctx)
	if err := a.closeStorage(); err != nil {
		errs = append(errs, err)
	}
	a.logger.Info("Sentinel 已停止")
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

// Run 前台运行直到 ctx 结束
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	a.logger.Info("收到退出信号，正在关闭...")
	return a.Stop()
}

func (a *App) closeStorage() error {
	var errs []error
	if a.state != nil {
		errs = append(errs, a.state.Close())
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}

func (a *App) Monitor() *service.MonitorService {
	return a.monitor
}

func (a *App) Config() *config.AppConfig {
	return a.cfg
}

package health

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dushixiang/sentinel/internal/models"
	"github.com/dushixiang/sentinel/internal/protocol"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DefaultMaxOpenConns    = 10
	DefaultDegradedActive  = 8
	DefaultUnhealthyActive = 9
)

// PoolSnapshot 连接池快照
type PoolSnapshot struct {
	Active int `json:"active"`
	Idle   int `json:"idle"`
	Total  int `json:"total"`
}

// ClassifyPool 活跃连接数达到阈值时降级
func ClassifyPool(snapshot PoolSnapshot, cfg *protocol.DatabaseMonitorConfig) models.HealthStatus {
	degraded, unhealthy := DefaultDegradedActive, DefaultUnhealthyActive
	if cfg != nil {
		if cfg.DegradedActive > 0 {
			degraded = cfg.DegradedActive
		}
		if cfg.UnhealthyActive > 0 {
			unhealthy = cfg.UnhealthyActive
		}
	}
	switch {
	case snapshot.Active >= unhealthy:
		return models.HealthUnhealthy
	case snapshot.Active >= degraded:
		return models.HealthDegraded
	default:
		return models.HealthHealthy
	}
}

// pooledDB 单个目标的连接池，打开连接池只持有该目标自己的锁
type pooledDB struct {
	mu     sync.Mutex
	driver string
	dsn    string
	db     *gorm.DB
	closed bool
}

func (e *pooledDB) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.db != nil {
		closeDB(e.db)
		e.db = nil
	}
}

// databaseProbe 每个目标维护一个连接池，目标删除时关闭；
// 注册过的进程内连接池直接读取其 Stats
type databaseProbe struct {
	logger     *zap.Logger
	mu         sync.Mutex
	pools      map[string]*pooledDB
	registered map[string]*sql.DB
}

func newDatabaseProbe(logger *zap.Logger, registered map[string]*sql.DB) *databaseProbe {
	return &databaseProbe{
		logger:     logger,
		pools:      make(map[string]*pooledDB),
		registered: registered,
	}
}

func (p *databaseProbe) Probe(ctx context.Context, t models.MonitoringTarget) (ProbeResult, error) {
	if sqlDB, ok := p.registered[t.ID]; ok {
		start := time.Now()
		if err := sqlDB.PingContext(ctx); err != nil {
			return ProbeResult{}, fmt.Errorf("ping failed: %w", err)
		}
		return poolResult(statsSnapshot(sqlDB.Stats()), "pool", time.Since(start), t), nil
	}

	db, driver, err := p.pool(t)
	if err != nil {
		return ProbeResult{}, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return ProbeResult{}, fmt.Errorf("get sql db failed: %w", err)
	}

	start := time.Now()
	if err := sqlDB.PingContext(ctx); err != nil {
		return ProbeResult{}, fmt.Errorf("ping failed: %w", err)
	}
	elapsed := time.Since(start)

	snapshot, source := statsSnapshot(sqlDB.Stats()), "pool"
	server, ok, err := serverActivity(ctx, db, driver)
	switch {
	case err != nil:
		p.logger.Debug("读取服务端连接数失败，使用连接池统计",
			zap.String("targetID", t.ID),
			zap.String("driver", driver),
			zap.Error(err))
	case ok:
		snapshot, source = server, "server"
	}
	return poolResult(snapshot, source, elapsed, t), nil
}

func statsSnapshot(stats sql.DBStats) PoolSnapshot {
	return PoolSnapshot{
		Active: stats.InUse,
		Idle:   stats.Idle,
		Total:  stats.OpenConnections,
	}
}

func poolResult(snapshot PoolSnapshot, source string, elapsed time.Duration, t models.MonitoringTarget) ProbeResult {
	return ProbeResult{
		Status:  ClassifyPool(snapshot, t.DatabaseConfig),
		Message: fmt.Sprintf("%d/%d connections active", snapshot.Active, snapshot.Total),
		Details: map[string]any{
			"active":    snapshot.Active,
			"idle":      snapshot.Idle,
			"total":     snapshot.Total,
			"source":    source,
			"latencyMs": elapsed.Milliseconds(),
		},
	}
}

// serverActivity 读取数据库服务端的活跃连接数，不计入本次查询自身；sqlite 没有服务端统计
func serverActivity(ctx context.Context, db *gorm.DB, driver string) (PoolSnapshot, bool, error) {
	switch driver {
	case "postgres":
		var row struct {
			Active int
			Total  int
		}
		err := db.WithContext(ctx).Raw(`SELECT count(*) FILTER (WHERE state = 'active') AS active, count(*) AS total
FROM pg_stat_activity WHERE backend_type = 'client backend'`).Scan(&row).Error
		if err != nil {
			return PoolSnapshot{}, false, err
		}
		return PoolSnapshot{
			Active: max(row.Active-1, 0),
			Idle:   max(row.Total-row.Active, 0),
			Total:  row.Total,
		}, true, nil
	case "mysql":
		var rows []struct {
			Name  string `gorm:"column:Variable_name"`
			Value string `gorm:"column:Value"`
		}
		err := db.WithContext(ctx).Raw(`SHOW GLOBAL STATUS WHERE Variable_name IN ('Threads_connected', 'Threads_running')`).Scan(&rows).Error
		if err != nil {
			return PoolSnapshot{}, false, err
		}
		var connected, running int
		for _, row := range rows {
			n, err := strconv.Atoi(row.Value)
			if err != nil {
				return PoolSnapshot{}, false, fmt.Errorf("parse %s: %w", row.Name, err)
			}
			switch row.Name {
			case "Threads_connected":
				connected = n
			case "Threads_running":
				running = n
			}
		}
		return PoolSnapshot{
			Active: max(running-1, 0),
			Idle:   max(connected-running, 0),
			Total:  connected,
		}, true, nil
	default:
		return PoolSnapshot{}, false, nil
	}
}

func (p *databaseProbe) pool(t models.MonitoringTarget) (*gorm.DB, string, error) {
	driver, dsn := databaseSource(t)

	p.mu.Lock()
	entry, ok := p.pools[t.ID]
	if !ok {
		entry = &pooledDB{}
		p.pools[t.ID] = entry
	}
	p.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.closed {
		return nil, "", fmt.Errorf("database pool of target %s released", t.ID)
	}
	if entry.db != nil {
		if entry.driver == driver && entry.dsn == dsn {
			return entry.db, driver, nil
		}
		closeDB(entry.db)
		entry.db = nil
	}

	maxOpen := DefaultMaxOpenConns
	if t.DatabaseConfig != nil && t.DatabaseConfig.MaxOpenConns > 0 {
		maxOpen = t.DatabaseConfig.MaxOpenConns
	}
	db, err := openDatabase(driver, dsn, maxOpen)
	if err != nil {
		return nil, "", err
	}
	entry.driver, entry.dsn, entry.db = driver, dsn, db
	p.logger.Debug("创建数据库连接池", zap.String("targetID", t.ID), zap.String("driver", driver))
	return db, driver, nil
}

// openDatabase 只创建连接池不建立连接，连接在带超时的 PingContext 中建立
func openDatabase(driver, dsn string, maxOpen int) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.New(mysql.Config{DSN: dsn, SkipInitializeWithVersion: true})
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:               gormlogger.Discard,
		DisableAutomaticPing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db failed: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	return db, nil
}

// databaseSource 未指定驱动时按 DSN 前缀推断
func databaseSource(t models.MonitoringTarget) (driver, dsn string) {
	dsn = t.Endpoint
	if cfg := t.DatabaseConfig; cfg != nil {
		driver = cfg.Driver
		if cfg.DSN != "" {
			dsn = cfg.DSN
		}
	}
	if driver != "" {
		return strings.ToLower(driver), dsn
	}
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "sslmode="):
		return "postgres", dsn
	case strings.Contains(dsn, "@tcp("):
		return "mysql", dsn
	default:
		return "sqlite", dsn
	}
}

func (p *databaseProbe) Release(targetID string) {
	p.mu.Lock()
	entry, ok := p.pools[targetID]
	delete(p.pools, targetID)
	p.mu.Unlock()
	if ok {
		entry.close()
	}
}

func (p *databaseProbe) Close() {
	p.mu.Lock()
	entries := make([]*pooledDB, 0, len(p.pools))
	for id, entry := range p.pools {
		entries = append(entries, entry)
		delete(p.pools, id)
	}
	p.mu.Unlock()
	for _, entry := range entries {
		entry.close()
	}
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

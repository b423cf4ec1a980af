package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dushixiang/sentinel/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const sampleConfig = `
Log:
  Level: debug
Monitor:
  SweepInterval: 1m
  EscalateAfter: 10m
Thresholds:
  - ID: cpu-high
    metric: cpu_usage
    condition: gt
    value: 80
    severity: warning
  - ID: disk-full
    metric: disk_usage
    condition: gte
    value: 95
    severity: critical
    disabled: true
Targets:
  - id: db1
    type: database
    enabled: true
    checkIntervalSeconds: 1
    timeoutSeconds: 1
  - id: web
    type: service
    endpoint: https://example.com/health
    enabled: true
    httpConfig:
      expectedStatusCode: 200
      slowMs: 500
`

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := NewLoader("", zaptest.NewLogger(t)).Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 5*time.Minute, cfg.Monitor.SweepInterval)
	assert.Equal(t, 24*time.Hour, cfg.Monitor.MetricRetention)
	assert.Equal(t, 1000, cfg.Monitor.AlertHistoryLimit)
	assert.Zero(t, cfg.Monitor.EscalateAfter)
	assert.True(t, cfg.Monitor.CollectSystemMetrics)
	assert.Equal(t, ":8090", cfg.HTTP.Addr)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Empty(t, cfg.Targets)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	loader := NewLoader(path, zaptest.NewLogger(t))
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, path, loader.ConfigFile())

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, time.Minute, cfg.Monitor.SweepInterval)
	assert.Equal(t, 10*time.Minute, cfg.Monitor.EscalateAfter)

	thresholds := cfg.ThresholdList()
	require.Len(t, thresholds, 2)
	assert.Equal(t, "cpu-high", thresholds[0].ID)
	assert.Equal(t, models.ConditionGT, thresholds[0].Condition)
	assert.True(t, thresholds[0].Enabled)
	assert.False(t, thresholds[1].Enabled)

	require.Len(t, cfg.Targets, 2)
	assert.Equal(t, models.TargetDatabase, cfg.Targets[0].Type)
	assert.Equal(t, 1, cfg.Targets[0].CheckIntervalSeconds)
	require.NotNil(t, cfg.Targets[1].HTTPConfig)
	assert.Equal(t, int64(500), cfg.Targets[1].HTTPConfig.SlowMs)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SENTINEL_HTTP_ADDR", ":9999")
	t.Setenv("SENTINEL_MONITOR_ALERTHISTORYLIMIT", "50")
	cfg, err := NewLoader(writeConfig(t, sampleConfig), zaptest.NewLogger(t)).Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, 50, cfg.Monitor.AlertHistoryLimit)
}

func TestLoadInvalid(t *testing.T) {
	_, err := NewLoader(writeConfig(t, `
Thresholds:
  - ID: bad
    metric: cpu_usage
    condition: above
    severity: warning
`), zaptest.NewLogger(t)).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Condition")

	_, err = NewLoader(filepath.Join(t.TempDir(), "missing.yaml"), zaptest.NewLogger(t)).Load()
	assert.Error(t, err)
}

func TestWatchReloads(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	loader := NewLoader(path, zaptest.NewLogger(t))
	_, err := loader.Load()
	require.NoError(t, err)

	reloaded := make(chan *AppConfig, 16)
	loader.Watch(func(cfg *AppConfig) {
		select {
		case reloaded <- cfg:
		default:
		}
	})

	require.NoError(t, os.WriteFile(path, []byte("Log:\n  Level: warn\n"), 0o600))
	timeout := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-reloaded:
			// 写入过程中可能先读到截断的文件
			if cfg.Log.Level == "warn" {
				return
			}
		case <-timeout:
			t.Fatal("配置修改后没有重新加载")
		}
	}
}

func TestMarshal(t *testing.T) {
	cfg, err := NewLoader(writeConfig(t, sampleConfig), zaptest.NewLogger(t)).Load()
	require.NoError(t, err)
	out, err := Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(out), "cpu-high")
	assert.Contains(t, string(out), "Monitor:")
}

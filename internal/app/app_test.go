package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dushixiang/sentinel/internal/models"
	"github.com/dushixiang/sentinel/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	content := `
Log:
  Level: error
Monitor:
  CollectSystemMetrics: false
HTTP:
  Enabled: false
Storage:
  Enabled: true
  Driver: sqlite
  DSN: ` + filepath.Join(dir, "archive.db") + `
  StateFile: ` + filepath.Join(dir, "state.db") + `
Thresholds:
  - ID: cpu-high
    metric: cpu_usage
    condition: gt
    value: 80
    severity: warning
Targets:
  - id: cache1
    type: cache
    enabled: false
`
	path := filepath.Join(dir, "sentinel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestAppLifecycle(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir)

	// 上次运行时通过接口添加的目标
	state, err := repo.OpenStateStore(filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	require.NoError(t, state.SaveTarget(models.MonitoringTarget{ID: "api1", Type: models.TargetAPI}))
	require.NoError(t, state.Close())

	a, err := New(path)
	require.NoError(t, err)

	monitor := a.Monitor()
	th, ok := monitor.GetThreshold("cpu-high")
	require.True(t, ok, "应加载配置中的阈值")
	assert.Equal(t, 80.0, th.Value)

	_, ok = monitor.GetTarget("cache1")
	assert.True(t, ok, "应加载配置中的目标")
	_, ok = monitor.GetTarget("api1")
	assert.True(t, ok, "应恢复保存的目标")

	require.NoError(t, a.Start())
	result, err := monitor.Monitor(context.Background(), map[string]any{"cpu_usage": 90})
	require.NoError(t, err)
	assert.Equal(t, models.StatusWarning, result.Status)

	require.NoError(t, a.Stop())
	require.NoError(t, a.Stop(), "重复关闭不报错")
}

func TestAppInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Storage:\n  Driver: oracle\n"), 0o600))

	_, err := New(path)
	require.Error(t, err)
}

func TestAppReloadWarnsOncePerChange(t *testing.T) {
	a, err := New(writeConfig(t, t.TempDir()))
	require.NoError(t, err)
	defer a.Stop()

	core, logs := observer.New(zap.WarnLevel)
	a.logger = zap.New(core)
	restartWarnings := func() int {
		return logs.FilterMessage("日志、HTTP 与存储配置的修改需要重启后生效").Len()
	}

	changed := *a.Config()
	changed.Log.Level = "debug"
	a.reload(&changed)
	assert.Equal(t, 1, restartWarnings())

	// 内容相同的再次重载不重复告警
	same := changed
	a.reload(&same)
	assert.Equal(t, 1, restartWarnings())

	again := same
	again.HTTP.Addr = "127.0.0.1:19090"
	a.reload(&again)
	require.Equal(t, 2, restartWarnings())
	entry := logs.FilterMessage("日志、HTTP 与存储配置的修改需要重启后生效").All()[1]
	assert.Equal(t, []interface{}{"HTTP"}, entry.ContextMap()["sections"])

	assert.Equal(t, "error", a.Config().Log.Level, "运行中的配置不变")
}

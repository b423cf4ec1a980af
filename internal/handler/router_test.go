package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dushixiang/sentinel/internal/exporter"
	"github.com/dushixiang/sentinel/internal/models"
	"github.com/dushixiang/sentinel/internal/protocol"
	"github.com/dushixiang/sentinel/internal/service"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type memoryState struct {
	mu         sync.Mutex
	thresholds map[string]models.Threshold
	targets    map[string]models.MonitoringTarget
}

func newMemoryState() *memoryState {
	return &memoryState{
		thresholds: make(map[string]models.Threshold),
		targets:    make(map[string]models.MonitoringTarget),
	}
}

func (m *memoryState) SaveThreshold(t models.Threshold) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thresholds[t.ID] = t
	return nil
}

func (m *memoryState) SaveTarget(t models.MonitoringTarget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets[t.ID] = t
	return nil
}

func (m *memoryState) DeleteTarget(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.targets, id)
	return nil
}

type testEnv struct {
	monitor *service.MonitorService
	state   *memoryState
	server  *Server
}

func newTestEnv(t *testing.T) *testEnv {
	logger := zaptest.NewLogger(t)
	monitor := service.NewMonitorService(logger, service.Options{})
	t.Cleanup(func() { monitor.Shutdown(context.Background()) })
	state := newMemoryState()
	return &testEnv{
		monitor: monitor,
		state:   state,
		server:  NewServer(logger, monitor, nil, state, exporter.New(monitor)),
	}
}

func (env *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestThresholdAndAlertRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/thresholds", `{"metric":"cpu_usage","condition":"gt","value":80,"severity":"warning"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var th models.Threshold
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &th))
	assert.Contains(t, env.state.thresholds, th.ID, "新增阈值应被保存")

	rec = env.do(t, http.MethodPost, "/api/thresholds", `{"metric":"cpu_usage","condition":"between","value":80,"severity":"warning"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/monitor", `{"cpu_usage":95}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result models.MonitoringResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, models.StatusWarning, result.Status)
	require.Len(t, result.Alerts, 1)
	alertID := result.Alerts[0].ID

	rec = env.do(t, http.MethodGet, "/api/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var active []models.Alert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &active))
	require.Len(t, active, 1)

	rec = env.do(t, http.MethodPost, "/api/alerts/"+alertID+"/ack", `{"by":"alice"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/alerts/missing/ack", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/thresholds/"+th.ID+"/enabled", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, env.state.thresholds[th.ID].Enabled, "禁用状态应被保存")
	assert.Empty(t, env.monitor.GetActiveAlerts(), "禁用阈值后告警应关闭")

	rec = env.do(t, http.MethodPut, "/api/thresholds/missing/enabled", `{"enabled":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/alerts/history?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []models.Alert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, "alice", history[0].AcknowledgedBy)

	rec = env.do(t, http.MethodGet, "/api/archive/alerts", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "未启用归档")
}

func TestMonitorRejectsMalformedPayload(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/monitor", `[1,2,3]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/monitor", `{"metrics":"cpu"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/monitor", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 空请求体只做健康检查与评估
	rec = env.do(t, http.MethodPost, "/api/monitor", "")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestMetricRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/metrics", `{"name":"memory_usage","value":42}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var m models.Metric
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "%", m.Unit, "未指定单位时按名称推断")

	rec = env.do(t, http.MethodPost, "/api/metrics", `{"name":"memory_usage"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/metrics?name=memory_usage", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"memory_usage"`)

	rec = env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sentinel_metric_value{name="memory_usage",unit="%"} 42`)
}

func TestTargetRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/targets", `{"id":"web","name":"Web"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "缺少类型应校验失败")

	rec = env.do(t, http.MethodPost, "/api/targets", `{"id":"web","name":"Web","type":"service","enabled":false}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, env.state.targets, "web")

	rec = env.do(t, http.MethodGet, "/api/targets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var targets []models.MonitoringTarget
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &targets))
	require.Len(t, targets, 1)

	rec = env.do(t, http.MethodPost, "/api/targets/web/check", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var check models.HealthCheck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &check))
	assert.Equal(t, "web", check.TargetID)

	rec = env.do(t, http.MethodDelete, "/api/targets/web", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, env.state.targets, "web")

	rec = env.do(t, http.MethodDelete, "/api/targets/web", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/targets/web/check", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventStream(t *testing.T) {
	env := newTestEnv(t)
	server := httptest.NewServer(env.server.Handler())
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/events?types=metric"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	received := make(chan protocol.Event, 1)
	go func() {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var event protocol.Event
		if err := conn.ReadJSON(&event); err == nil {
			received <- event
		}
	}()

	// 订阅在握手之后才建立，持续写入直到收到事件
	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case event := <-received:
			assert.Equal(t, protocol.EventMetric, event.Type)
			return
		case <-ticker.C:
			env.monitor.RecordMetric("queue_depth", 3, time.Now(), "")
		case <-deadline:
			t.Fatal("没有收到事件")
		}
	}
}

package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dushixiang/sentinel/internal/models"
	"github.com/dushixiang/sentinel/internal/protocol"
	"github.com/dushixiang/sentinel/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestArchive(t *testing.T, lookup ThresholdLookup) *ArchiveService {
	t.Helper()
	db, err := repo.Open("sqlite", filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AlertRecord{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewArchiveService(zaptest.NewLogger(t), repo.NewAlertRecordRepo(db), lookup)
}

func TestArchiveFollowsAlertLifecycle(t *testing.T) {
	s := NewMonitorService(zaptest.NewLogger(t), Options{})
	archive := newTestArchive(t, s.GetThreshold)
	s.AddObserver(archive)

	th, err := s.SetThreshold(models.ThresholdSpec{
		Metric: "cpu_usage", Condition: models.ConditionGT, Value: 80, Severity: models.SeverityWarning,
	})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = s.Monitor(ctx, map[string]any{"cpu_usage": 95})
	require.NoError(t, err)
	_, err = s.Monitor(ctx, map[string]any{"cpu_usage": 40})
	require.NoError(t, err)

	// 关闭时事件总线会投递完已发布的事件
	s.Shutdown(ctx)

	page, err := archive.List(ctx, repo.AlertRecordFilter{})
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)
	record := page.Items[0]
	assert.Equal(t, th.ID, record.ThresholdID)
	assert.Equal(t, string(models.AlertResolved), record.Status)
	assert.Equal(t, 95.0, record.ActualValue, "保留触发时的值")
	assert.NotZero(t, record.ResolvedAt)
	assert.Equal(t, 80.0, record.Threshold.Data().Value, "应保存阈值快照")
}

func TestArchiveIgnoresOtherEvents(t *testing.T) {
	archive := newTestArchive(t, nil)
	ctx := context.Background()

	archive.OnEvent(protocol.Event{Type: protocol.EventMetric, Payload: models.Metric{Name: "cpu_usage"}})
	archive.OnEvent(protocol.Event{Type: protocol.EventAlert, Payload: "not an alert"})

	page, err := archive.List(ctx, repo.AlertRecordFilter{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestArchiveListCacheInvalidatedByWrites(t *testing.T) {
	archive := newTestArchive(t, nil)
	ctx := context.Background()

	page, err := archive.List(ctx, repo.AlertRecordFilter{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	value := 91.0
	require.NoError(t, archive.Record(ctx, models.Alert{
		ID: "a1", Level: models.SeverityCritical, Status: models.AlertActive,
		Timestamp: time.Now(), Value: &value, ThresholdRef: "t1",
	}))

	page, err = archive.List(ctx, repo.AlertRecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total, "写入后不应返回缓存的旧结果")
	assert.Equal(t, 20, page.PageSize)

	got, err := archive.Get(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 91.0, got.ActualValue)
}

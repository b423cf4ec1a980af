package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dushixiang/sentinel/internal/models"
	"github.com/dushixiang/sentinel/internal/protocol"
	"github.com/dushixiang/sentinel/internal/repo"
	"github.com/go-orz/cache"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const archiveQueryTTL = 30 * time.Second

// ThresholdLookup 归档时补全阈值快照
type ThresholdLookup func(id string) (models.Threshold, bool)

// AlertRecordPage 归档分页结果
type AlertRecordPage struct {
	Items    []models.AlertRecord `json:"items"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"pageSize"`
}

// ArchiveService 订阅告警事件并写入数据库，只归档告警，不归档指标
type ArchiveService struct {
	logger  *zap.Logger
	repo    *repo.AlertRecordRepo
	lookup  ThresholdLookup
	timeout time.Duration

	generation atomic.Int64
	pageCache  cache.Cache[string, *AlertRecordPage]
}

func NewArchiveService(logger *zap.Logger, alertRepo *repo.AlertRecordRepo, lookup ThresholdLookup) *ArchiveService {
	return &ArchiveService{
		logger:    logger,
		repo:      alertRepo,
		lookup:    lookup,
		timeout:   5 * time.Second,
		pageCache: cache.New[string, *AlertRecordPage](archiveQueryTTL),
	}
}

// OnEvent 实现 Observer
func (s *ArchiveService) OnEvent(event protocol.Event) {
	switch event.Type {
	case protocol.EventAlert, protocol.EventAlertResolved, protocol.EventAlertAcknowledged,
		protocol.EventAlertEscalated, protocol.EventAlertSuppressed:
	default:
		return
	}
	alert, ok := event.Payload.(models.Alert)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.Record(ctx, alert); err != nil {
		s.logger.Error("归档告警失败",
			zap.String("alertId", alert.ID),
			zap.String("event", string(event.Type)),
			zap.Error(err))
	}
}

// Record 写入或更新一条告警记录
func (s *ArchiveService) Record(ctx context.Context, alert models.Alert) error {
	record := s.toRecord(alert)
	if err := s.repo.Save(ctx, record); err != nil {
		return err
	}
	s.generation.Add(1)
	return nil
}

func (s *ArchiveService) toRecord(alert models.Alert) *models.AlertRecord {
	record := &models.AlertRecord{
		ID:              alert.ID,
		ThresholdID:     alert.ThresholdRef,
		Metric:          alert.Metric,
		Level:           string(alert.Level),
		Status:          string(alert.Status),
		Message:         alert.Message,
		EscalationLevel: alert.EscalationLevel,
		AcknowledgedBy:  alert.AcknowledgedBy,
		FiredAt:         alert.Timestamp.UnixMilli(),
	}
	if alert.Value != nil {
		record.ActualValue = *alert.Value
	}
	if alert.ResolvedAt != nil {
		record.ResolvedAt = alert.ResolvedAt.UnixMilli()
	}
	if alert.AcknowledgedAt != nil {
		record.AcknowledgedAt = alert.AcknowledgedAt.UnixMilli()
	}
	if s.lookup != nil {
		if t, ok := s.lookup(alert.ThresholdRef); ok {
			record.Threshold = datatypes.NewJSONType(t)
		}
	}
	return record
}

// List 查询归档，短时间内相同条件的查询走缓存，写入后缓存失效
func (s *ArchiveService) List(ctx context.Context, filter repo.AlertRecordFilter) (*AlertRecordPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	cacheKey := fmt.Sprintf("%d:%+v", s.generation.Load(), filter)
	if page, ok := s.pageCache.Get(cacheKey); ok {
		return page, nil
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := &AlertRecordPage{
		Items:    items,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}
	s.pageCache.Set(cacheKey, page, archiveQueryTTL)
	return page, nil
}

func (s *ArchiveService) Get(ctx context.Context, id string) (*models.AlertRecord, error) {
	return s.repo.FindByID(ctx, id)
}

// Cleanup 删除超过保留期且已恢复的记录
func (s *ArchiveService) Cleanup(ctx context.Context, retention time.Duration) {
	before := time.Now().Add(-retention).UnixMilli()
	removed, err := s.repo.DeleteBefore(ctx, before)
	if err != nil {
		s.logger.Error("清理告警归档失败", zap.Error(err))
		return
	}
	if removed > 0 {
		s.generation.Add(1)
		s.logger.Info("清理告警归档", zap.Int64("removed", removed))
	}
}

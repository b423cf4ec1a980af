package repo

import (
	"context"

	"github.com/dushixiang/sentinel/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AlertRecordFilter 归档查询条件，零值字段不参与过滤
type AlertRecordFilter struct {
	ThresholdID string
	Status      string
	Level       string
	Start       int64 // 毫秒
	End         int64
	Page        int
	PageSize    int
}

type AlertRecordRepo struct {
	db *gorm.DB
}

func NewAlertRecordRepo(db *gorm.DB) *AlertRecordRepo {
	return &AlertRecordRepo{
		db: db,
	}
}

// Save 按告警 ID 覆盖写入，告警状态变化时只更新可变字段
func (r *AlertRecordRepo) Save(ctx context.Context, record *models.AlertRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "message", "actual_value", "escalation_level",
				"acknowledged_by", "resolved_at", "acknowledged_at", "updated_at",
			}),
		}).
		Create(record).Error
}

// FindByID 不存在时返回 nil, nil
func (r *AlertRecordRepo) FindByID(ctx context.Context, id string) (*models.AlertRecord, error) {
	var record models.AlertRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &record, err
}

// List 分页查询，按触发时间倒序
func (r *AlertRecordRepo) List(ctx context.Context, filter AlertRecordFilter) ([]models.AlertRecord, int64, error) {
	var records []models.AlertRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&models.AlertRecord{})
	if filter.ThresholdID != "" {
		query = query.Where("threshold_id = ?", filter.ThresholdID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Level != "" {
		query = query.Where("level = ?", filter.Level)
	}
	if filter.Start > 0 {
		query = query.Where("fired_at >= ?", filter.Start)
	}
	if filter.End > 0 {
		query = query.Where("fired_at <= ?", filter.End)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	err := query.Order("fired_at DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&records).Error
	return records, total, err
}

// DeleteBefore 清理指定时间之前已恢复的记录
func (r *AlertRecordRepo) DeleteBefore(ctx context.Context, timestamp int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND fired_at < ?", string(models.AlertResolved), timestamp).
		Delete(&models.AlertRecord{})
	return result.RowsAffected, result.Error
}

package migrate

import (
	"github.com/dushixiang/sentinel/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrate 建表并补齐告警归档表缺失的字段与索引
func Migrate(logger *zap.Logger, db *gorm.DB) error {
	logger.Info("开始执行数据库迁移")

	migrator := db.Migrator()
	existed := migrator.HasTable(&models.AlertRecord{})
	if err := db.AutoMigrate(&models.AlertRecord{}); err != nil {
		logger.Error("迁移告警归档表失败", zap.Error(err))
		return err
	}

	if existed {
		logger.Info("告警归档表已存在，已同步表结构")
	} else {
		logger.Info("已创建告警归档表", zap.String("table", models.AlertRecord{}.TableName()))
	}
	return nil
}

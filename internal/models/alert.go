package models

import (
	"time"

	"gorm.io/datatypes"
)

// AlertStatus 告警状态
type AlertStatus string

const (
	AlertActive     AlertStatus = "active"
	AlertResolved   AlertStatus = "resolved"
	AlertSuppressed AlertStatus = "suppressed"
)

// Alert 阈值触发产生的告警
type Alert struct {
	ID              string      `json:"id"`
	Level           Severity    `json:"level"`
	Message         string      `json:"message"`
	Timestamp       time.Time   `json:"timestamp"`
	Status          AlertStatus `json:"status"`
	Metric          string      `json:"metric,omitempty"`
	Value           *float64    `json:"value,omitempty"`
	ThresholdRef    string      `json:"thresholdRef"`
	EscalationLevel int         `json:"escalationLevel"`
	ResolvedAt      *time.Time  `json:"resolvedAt,omitempty"`
	AcknowledgedBy  string      `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt  *time.Time  `json:"acknowledgedAt,omitempty"`
}

// Open 活跃或被抑制的告警都算作未关闭
func (a Alert) Open() bool {
	return a.Status == AlertActive || a.Status == AlertSuppressed
}

// Clone 深拷贝指针字段
func (a Alert) Clone() Alert {
	c := a
	if a.Value != nil {
		v := *a.Value
		c.Value = &v
	}
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		c.ResolvedAt = &t
	}
	if a.AcknowledgedAt != nil {
		t := *a.AcknowledgedAt
		c.AcknowledgedAt = &t
	}
	return c
}

// AlertRecord 告警归档记录（持久化到数据库）
type AlertRecord struct {
	ID              string                        `gorm:"primaryKey" json:"id"`
	ThresholdID     string                        `gorm:"index:idx_alert_threshold" json:"thresholdId"`
	Metric          string                        `json:"metric"`
	Level           string                        `json:"level"`
	Status          string                        `gorm:"index:idx_alert_status" json:"status"`
	Message         string                        `json:"message"`
	ActualValue     float64                       `json:"actualValue"`
	EscalationLevel int                           `json:"escalationLevel"`
	AcknowledgedBy  string                        `json:"acknowledgedBy"`
	Threshold       datatypes.JSONType[Threshold] `json:"threshold"`
	FiredAt         int64                         `gorm:"index:idx_alert_fired" json:"firedAt"` // 毫秒
	ResolvedAt      int64                         `json:"resolvedAt"`
	AcknowledgedAt  int64                         `json:"acknowledgedAt"`
	UpdatedAt       int64                         `json:"updatedAt" gorm:"autoUpdateTime:milli"`
}

func (AlertRecord) TableName() string {
	return "alert_records"
}

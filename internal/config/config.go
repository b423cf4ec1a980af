package config

import (
	"time"

	"github.com/dushixiang/sentinel/internal/models"
	"github.com/dushixiang/sentinel/pkg/agent"
)

// AppConfig 应用配置
type AppConfig struct {
	Log        agent.LogConfig           `mapstructure:"Log" yaml:"Log" json:"Log"`
	Monitor    MonitorConfig             `mapstructure:"Monitor" yaml:"Monitor" json:"Monitor"`
	HTTP       HTTPConfig                `mapstructure:"HTTP" yaml:"HTTP" json:"HTTP"`
	Storage    StorageConfig             `mapstructure:"Storage" yaml:"Storage" json:"Storage"`
	Notify     NotifyConfig              `mapstructure:"Notify" yaml:"Notify" json:"Notify"`
	Thresholds []ThresholdConfig         `mapstructure:"Thresholds" yaml:"Thresholds" json:"Thresholds" validate:"dive"`
	Targets    []models.MonitoringTarget `mapstructure:"Targets" yaml:"Targets" json:"Targets" validate:"dive"`
}

// MonitorConfig 监控引擎配置
type MonitorConfig struct {
	SweepInterval        time.Duration `mapstructure:"SweepInterval" yaml:"SweepInterval" json:"SweepInterval"`
	MetricRetention      time.Duration `mapstructure:"MetricRetention" yaml:"MetricRetention" json:"MetricRetention"`
	AlertHistoryLimit    int           `mapstructure:"AlertHistoryLimit" yaml:"AlertHistoryLimit" json:"AlertHistoryLimit" validate:"gte=0"`
	EscalateAfter        time.Duration `mapstructure:"EscalateAfter" yaml:"EscalateAfter" json:"EscalateAfter"` // 0 表示不升级
	DefaultTimeout       time.Duration `mapstructure:"DefaultTimeout" yaml:"DefaultTimeout" json:"DefaultTimeout"`
	CollectSystemMetrics bool          `mapstructure:"CollectSystemMetrics" yaml:"CollectSystemMetrics" json:"CollectSystemMetrics"`
}

// HTTPConfig HTTP 接口配置
type HTTPConfig struct {
	Enabled bool   `mapstructure:"Enabled" yaml:"Enabled" json:"Enabled"`
	Addr    string `mapstructure:"Addr" yaml:"Addr" json:"Addr" validate:"required_if=Enabled true"`
}

// StorageConfig 告警归档与运行时状态存储
type StorageConfig struct {
	Enabled   bool          `mapstructure:"Enabled" yaml:"Enabled" json:"Enabled"`
	Driver    string        `mapstructure:"Driver" yaml:"Driver" json:"Driver" validate:"omitempty,oneof=sqlite postgres mysql"`
	DSN       string        `mapstructure:"DSN" yaml:"DSN" json:"DSN" validate:"required_if=Enabled true"`
	StateFile string        `mapstructure:"StateFile" yaml:"StateFile" json:"StateFile"` // 运行时添加的阈值与目标，bbolt 文件
	Retention time.Duration `mapstructure:"Retention" yaml:"Retention" json:"Retention"`  // 已恢复告警的保留时长，0 表示不清理
}

// NotifyConfig 告警通知配置
type NotifyConfig struct {
	Enabled    bool          `mapstructure:"Enabled" yaml:"Enabled" json:"Enabled"`
	MinLevel   string        `mapstructure:"MinLevel" yaml:"MinLevel" json:"MinLevel" validate:"omitempty,oneof=info warning error critical"`
	MaxRetries int           `mapstructure:"MaxRetries" yaml:"MaxRetries" json:"MaxRetries" validate:"gte=0"`
	Webhook    *WebhookConfig `mapstructure:"Webhook" yaml:"Webhook,omitempty" json:"Webhook,omitempty"`
	Email      *EmailConfig   `mapstructure:"Email" yaml:"Email,omitempty" json:"Email,omitempty"`
}

// WebhookConfig Webhook 通知
type WebhookConfig struct {
	URL      string            `mapstructure:"URL" yaml:"URL" json:"URL" validate:"required,url"`
	Headers  map[string]string `mapstructure:"Headers" yaml:"Headers,omitempty" json:"Headers,omitempty"`
	Template string            `mapstructure:"Template" yaml:"Template,omitempty" json:"Template,omitempty"` // 为空时发送 JSON
}

// EmailConfig 邮件通知
type EmailConfig struct {
	Host     string   `mapstructure:"Host" yaml:"Host" json:"Host" validate:"required"`
	Port     int      `mapstructure:"Port" yaml:"Port" json:"Port" validate:"required"`
	Username string   `mapstructure:"Username" yaml:"Username" json:"Username"`
	Password string   `mapstructure:"Password" yaml:"Password" json:"-"`
	From     string   `mapstructure:"From" yaml:"From" json:"From" validate:"required,email"`
	To       []string `mapstructure:"To" yaml:"To" json:"To" validate:"required,min=1,dive,email"`
	Subject  string   `mapstructure:"Subject" yaml:"Subject,omitempty" json:"Subject,omitempty"`
	Body     string   `mapstructure:"Body" yaml:"Body,omitempty" json:"Body,omitempty"`
}

// ThresholdConfig 配置文件中的阈值，ID 固定以便热更新时替换
type ThresholdConfig struct {
	ID                   string `mapstructure:"ID" yaml:"ID" json:"ID" validate:"required"`
	models.ThresholdSpec `mapstructure:",squash" yaml:",inline"`
}

func (c ThresholdConfig) Threshold() models.Threshold {
	return models.Threshold{
		ID:              c.ID,
		Metric:          c.Metric,
		Condition:       c.Condition,
		Value:           c.Value,
		Severity:        c.Severity,
		Enabled:         !c.Disabled,
		DurationSeconds: c.DurationSeconds,
		Description:     c.Description,
	}
}

// ThresholdList 转换为引擎使用的阈值
func (c *AppConfig) ThresholdList() []models.Threshold {
	list := make([]models.Threshold, 0, len(c.Thresholds))
	for _, t := range c.Thresholds {
		list = append(list, t.Threshold())
	}
	return list
}

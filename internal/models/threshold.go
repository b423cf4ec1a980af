package models

import "time"

// Condition 阈值比较条件
type Condition string

const (
	ConditionGT  Condition = "gt"
	ConditionGTE Condition = "gte"
	ConditionLT  Condition = "lt"
	ConditionLTE Condition = "lte"
	ConditionEQ  Condition = "eq"
	ConditionNE  Condition = "ne"
)

// Severity 告警级别
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Rank 级别越高数值越大，未知级别为 0
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityError:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Threshold 绑定到指标名的比较规则
type Threshold struct {
	ID              string    `json:"id"`
	Metric          string    `json:"metric" validate:"required"`
	Condition       Condition `json:"condition" validate:"required,oneof=gt gte lt lte eq ne"`
	Value           float64   `json:"value"`
	Severity        Severity  `json:"severity" validate:"required,oneof=info warning error critical"`
	Enabled         bool      `json:"enabled"`
	DurationSeconds int       `json:"durationSeconds"` // 仅作记录，不参与去抖
	Description     string    `json:"description,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ThresholdSpec 注册阈值的请求参数
type ThresholdSpec struct {
	Metric          string    `json:"metric" mapstructure:"metric" validate:"required"`
	Condition       Condition `json:"condition" mapstructure:"condition" validate:"required,oneof=gt gte lt lte eq ne"`
	Value           float64   `json:"value" mapstructure:"value"`
	Severity        Severity  `json:"severity" mapstructure:"severity" validate:"required,oneof=info warning error critical"`
	DurationSeconds int       `json:"durationSeconds" mapstructure:"durationSeconds"`
	Description     string    `json:"description" mapstructure:"description"`
	Disabled        bool      `json:"disabled" mapstructure:"disabled"`
}

// ThresholdView 对外展示的只读投影
type ThresholdView struct {
	Metric      string    `json:"metric"`
	Condition   Condition `json:"condition"`
	Value       float64   `json:"value"`
	Severity    Severity  `json:"severity"`
	Enabled     bool      `json:"enabled"`
	Description string    `json:"description,omitempty"`
}

func (t Threshold) View() ThresholdView {
	return ThresholdView{
		Metric:      t.Metric,
		Condition:   t.Condition,
		Value:       t.Value,
		Severity:    t.Severity,
		Enabled:     t.Enabled,
		Description: t.Description,
	}
}

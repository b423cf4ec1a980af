package threshold

import "github.com/dushixiang/sentinel/internal/models"

// Violated 判断当前值是否触发阈值，未知条件视为不触发
func Violated(condition models.Condition, value, threshold float64) bool {
	switch condition {
	case models.ConditionGT:
		return value > threshold
	case models.ConditionGTE:
		return value >= threshold
	case models.ConditionLT:
		return value < threshold
	case models.ConditionLTE:
		return value <= threshold
	case models.ConditionEQ:
		return value == threshold
	case models.ConditionNE:
		return value != threshold
	default:
		return false
	}
}

// Symbol 用于告警消息
func Symbol(condition models.Condition) string {
	switch condition {
	case models.ConditionGT:
		return ">"
	case models.ConditionGTE:
		return ">="
	case models.ConditionLT:
		return "<"
	case models.ConditionLTE:
		return "<="
	case models.ConditionEQ:
		return "=="
	case models.ConditionNE:
		return "!="
	default:
		return string(condition)
	}
}

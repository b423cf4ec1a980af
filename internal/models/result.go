package models

import "time"

// SystemStatus 聚合后的系统状态
type SystemStatus string

const (
	StatusNormal   SystemStatus = "normal"
	StatusWarning  SystemStatus = "warning"
	StatusCritical SystemStatus = "critical"
)

// MonitoringResult Monitor 调用的返回
type MonitoringResult struct {
	Status       SystemStatus           `json:"status"`
	Alerts       []Alert                `json:"alerts"`
	Metrics      map[string]Metric      `json:"metrics"`
	HealthChecks map[string]HealthCheck `json:"healthChecks"`
	Timestamp    time.Time              `json:"timestamp"`
}

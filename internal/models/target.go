package models

import (
	"time"

	"github.com/dushixiang/sentinel/internal/protocol"
)

// TargetType 监控目标类型
type TargetType string

const (
	TargetService    TargetType = "service"
	TargetDatabase   TargetType = "database"
	TargetAPI        TargetType = "api"
	TargetQueue      TargetType = "queue"
	TargetCache      TargetType = "cache"
	TargetFileSystem TargetType = "file-system"
	TargetNetwork    TargetType = "network"
)

// MonitoringTarget 监控目标
type MonitoringTarget struct {
	ID                   string     `json:"id" validate:"required"`
	Name                 string     `json:"name"`
	Type                 TargetType `json:"type" validate:"required"`
	Endpoint             string     `json:"endpoint"`
	CheckIntervalSeconds int        `json:"checkIntervalSeconds" validate:"gte=0"`
	TimeoutSeconds       int        `json:"timeoutSeconds" validate:"gte=0"`
	Enabled              bool       `json:"enabled"`
	HealthCheckNames     []string   `json:"healthCheckNames,omitempty"`
	ThresholdIDs         []string   `json:"thresholdIds,omitempty"`

	HTTPConfig       *protocol.HTTPMonitorConfig       `json:"httpConfig,omitempty"`
	TCPConfig        *protocol.TCPMonitorConfig        `json:"tcpConfig,omitempty"`
	ICMPConfig       *protocol.ICMPMonitorConfig       `json:"icmpConfig,omitempty"`
	DatabaseConfig   *protocol.DatabaseMonitorConfig   `json:"databaseConfig,omitempty"`
	LatencyConfig    *protocol.LatencyMonitorConfig    `json:"latencyConfig,omitempty"`
	FileSystemConfig *protocol.FileSystemMonitorConfig `json:"fileSystemConfig,omitempty"`
	GenericConfig    *protocol.GenericMonitorConfig    `json:"genericConfig,omitempty"`
}

// DisplayName 优先使用名称
func (t MonitoringTarget) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

// HealthStatus 健康检查状态
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck 单次健康检查结果，同一目标新结果覆盖旧结果
type HealthCheck struct {
	TargetID       string         `json:"targetId"`
	TargetName     string         `json:"targetName"`
	Status         HealthStatus   `json:"status"`
	LastCheck      time.Time      `json:"lastCheck"`
	ResponseTimeMs int64          `json:"responseTimeMs"`
	Message        string         `json:"message"`
	Details        map[string]any `json:"details,omitempty"`
}

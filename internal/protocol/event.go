package protocol

import "time"

// EventType 引擎对外发布的事件类型
type EventType string

const (
	EventMetric            EventType = "metric"
	EventAlert             EventType = "alert"
	EventAlertResolved     EventType = "alert_resolved"
	EventAlertAcknowledged EventType = "alert_acknowledged"
	EventAlertEscalated    EventType = "alert_escalated"
	EventAlertSuppressed   EventType = "alert_suppressed"
	EventHealthCheck       EventType = "health_check"
)

// Event 事件信封，Payload 为 models.Metric / models.Alert / models.HealthCheck 的副本
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

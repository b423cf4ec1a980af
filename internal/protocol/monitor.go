package protocol

// HTTPMonitorConfig HTTP 探测配置（service / api 目标）
type HTTPMonitorConfig struct {
	Method             string            `json:"method"`
	ExpectedStatusCode int               `json:"expectedStatusCode"`
	ExpectedContent    string            `json:"expectedContent,omitempty"`
	Headers            map[string]string `json:"headers,omitempty"`
	Body               string            `json:"body,omitempty"`
	SlowMs             int64             `json:"slowMs,omitempty"` // 超过该响应时间视为 degraded
}

// TCPMonitorConfig TCP 探测配置
type TCPMonitorConfig struct {
	SlowMs int64 `json:"slowMs,omitempty"`
}

// ICMPMonitorConfig ICMP 探测配置
type ICMPMonitorConfig struct {
	Count      int  `json:"count"` // Ping 次数
	Privileged bool `json:"privileged"`
}

// DatabaseMonitorConfig 数据库连接池探测配置
type DatabaseMonitorConfig struct {
	Driver          string `json:"driver"` // postgres / mysql / sqlite
	DSN             string `json:"dsn"`
	MaxOpenConns    int    `json:"maxOpenConns"`
	DegradedActive  int    `json:"degradedActive"`  // 活跃连接数达到该值视为 degraded
	UnhealthyActive int    `json:"unhealthyActive"` // 活跃连接数达到该值视为 unhealthy
}

// LatencyMonitorConfig 按延迟分级（api / cache / queue 目标）
type LatencyMonitorConfig struct {
	HealthyMs  int64 `json:"healthyMs"`
	DegradedMs int64 `json:"degradedMs"`
}

// FileSystemMonitorConfig 文件系统探测配置
type FileSystemMonitorConfig struct {
	Path             string  `json:"path"`
	WriteProbe       bool    `json:"writeProbe"`
	DegradedPercent  float64 `json:"degradedPercent"`
	UnhealthyPercent float64 `json:"unhealthyPercent"`
}

// GenericMonitorConfig 通用探测的通过策略
type GenericMonitorConfig struct {
	PassRate float64 `json:"passRate"` // [0,1]，1 表示总是 healthy
}

package metric

// DataPoint 统一的指标数据点结构
type DataPoint struct {
	Timestamp int64   `json:"timestamp"` // 毫秒时间戳
	Value     float64 `json:"value"`
}

// Series 指标序列
type Series struct {
	Name string      `json:"name"`
	Unit string      `json:"unit,omitempty"`
	Data []DataPoint `json:"data"`
}

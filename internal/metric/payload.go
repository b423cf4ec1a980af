package metric

import (
	"encoding/json"
	stderrors "errors"
	"sort"
	"strings"

	"github.com/go-errors/errors"
)

// ErrMalformedPayload 无法解释为指标数据的输入，返回的错误经 Unwrap 可以得到它
var ErrMalformedPayload = stderrors.New("malformed metrics payload")

// 扁平数据中自动识别为指标的字段名关键字（大小写不敏感，子串匹配）
var metricNamePatterns = []string{
	"cpu", "memory", "disk", "latency", "throughput", "errors",
	"requests", "response_time", "queue", "connections",
}

// Sample 从数据中解析出的一个指标值
type Sample struct {
	Name  string
	Value float64
	Unit  string
}

// ExtractSamples 解析 {metrics: {...}} 或扁平对象中的数值字段
func ExtractSamples(data any) ([]Sample, error) {
	if data == nil {
		return nil, nil
	}

	payload, ok := asObject(data)
	if !ok {
		return nil, errors.WrapPrefix(ErrMalformedPayload, "payload must be an object", 0)
	}

	var samples []Sample
	if raw, exists := payload["metrics"]; exists && raw != nil {
		metrics, ok := asObject(raw)
		if !ok {
			return nil, errors.WrapPrefix(ErrMalformedPayload, "metrics must be an object", 0)
		}
		for name, v := range metrics {
			if value, ok := toFloat(v); ok {
				samples = append(samples, Sample{Name: name, Value: value, Unit: InferUnit(name)})
			}
		}
	} else {
		for name, v := range payload {
			if !MatchesMetricPattern(name) {
				continue
			}
			if value, ok := toFloat(v); ok {
				samples = append(samples, Sample{Name: name, Value: value, Unit: InferUnit(name)})
			}
		}
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i].Name < samples[j].Name })
	return samples, nil
}

// MatchesMetricPattern 字段名是否包含已知指标关键字
func MatchesMetricPattern(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range metricNamePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// InferUnit 根据指标名推断单位
func InferUnit(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "percent"), strings.Contains(lower, "usage"):
		return "%"
	case strings.Contains(lower, "latency"), strings.Contains(lower, "response_time"):
		return "ms"
	case strings.Contains(lower, "bytes"):
		return "bytes"
	case strings.Contains(lower, "throughput"), strings.Contains(lower, "requests"):
		return "req/s"
	default:
		return ""
	}
}

func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[string]float64:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, true
	case map[string]int:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, true
	case json.RawMessage:
		var out map[string]any
		if err := json.Unmarshal(m, &out); err != nil {
			return nil, false
		}
		return out, true
	case []byte:
		return asObject(json.RawMessage(m))
	default:
		return nil, false
	}
}

// toFloat 只接受数值类型，不做字符串转换
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

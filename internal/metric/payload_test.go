package metric

import (
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/go-errors/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSamples(t *testing.T) {
	t.Run("metrics map", func(t *testing.T) {
		samples, err := ExtractSamples(map[string]any{
			"metrics": map[string]any{"cpu_usage": 85, "custom": 1.5, "label": "x"},
			"memory":  99,
		})
		require.NoError(t, err)
		assert.Equal(t, []Sample{
			{Name: "cpu_usage", Value: 85, Unit: "%"},
			{Name: "custom", Value: 1.5},
		}, samples)
	})

	t.Run("flat fields", func(t *testing.T) {
		samples, err := ExtractSamples(map[string]any{
			"CPU_Load":         1.2,
			"api_latency":      120,
			"hostname":         "web-1",
			"queue_depth":      "7",
			"db_connections":   int64(12),
			"response_time_ms": json.Number("35"),
		})
		require.NoError(t, err)
		names := make([]string, 0, len(samples))
		for _, s := range samples {
			names = append(names, s.Name)
		}
		assert.Equal(t, []string{"CPU_Load", "api_latency", "db_connections", "response_time_ms"}, names)
	})

	t.Run("json bytes", func(t *testing.T) {
		samples, err := ExtractSamples([]byte(`{"metrics":{"throughput":42}}`))
		require.NoError(t, err)
		require.Len(t, samples, 1)
		assert.Equal(t, "req/s", samples[0].Unit)
	})

	t.Run("nil", func(t *testing.T) {
		samples, err := ExtractSamples(nil)
		assert.NoError(t, err)
		assert.Empty(t, samples)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, data := range []any{"text", 3.14, []any{1}, map[string]any{"metrics": "cpu=1"}} {
			_, err := ExtractSamples(data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedPayload), "%v", data)
			assert.True(t, stderrors.Is(err, ErrMalformedPayload), "%v", data)
			var stacked *errors.Error
			assert.True(t, stderrors.As(err, &stacked), "错误应携带调用栈")
		}
	})
}

func TestInferUnit(t *testing.T) {
	assert.Equal(t, "%", InferUnit("disk_usage"))
	assert.Equal(t, "ms", InferUnit("p99_latency"))
	assert.Equal(t, "bytes", InferUnit("rx_bytes"))
	assert.Equal(t, "req/s", InferUnit("requests"))
	assert.Equal(t, "", InferUnit("errors"))
}

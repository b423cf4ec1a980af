package threshold

import (
	"testing"

	"github.com/dushixiang/sentinel/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViolated(t *testing.T) {
	tests := []struct {
		condition models.Condition
		value     float64
		want      bool
	}{
		{models.ConditionGT, 81, true},
		{models.ConditionGT, 80, false},
		{models.ConditionGTE, 80, true},
		{models.ConditionLT, 79, true},
		{models.ConditionLT, 80, false},
		{models.ConditionLTE, 80, true},
		{models.ConditionEQ, 80, true},
		{models.ConditionEQ, 80.1, false},
		{models.ConditionNE, 80.1, true},
		{models.ConditionNE, 80, false},
		{models.Condition("between"), 80, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.condition), func(t *testing.T) {
			assert.Equal(t, tt.want, Violated(tt.condition, tt.value, 80))
		})
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	spec := models.ThresholdSpec{Metric: "cpu_usage", Condition: models.ConditionGT, Value: 80, Severity: models.SeverityWarning}

	first := r.Add(spec)
	second := r.Add(spec)
	assert.NotEqual(t, first.ID, second.ID, "同一指标可以注册多个阈值")
	assert.True(t, first.Enabled)
	assert.Len(t, r.List(), 2)

	disabled := r.Add(models.ThresholdSpec{Metric: "mem", Condition: models.ConditionGT, Severity: models.SeverityInfo, Disabled: true})
	assert.Len(t, r.Enabled(), 2)

	updated, ok := r.SetEnabled(disabled.ID, true)
	require.True(t, ok)
	assert.True(t, updated.Enabled)
	_, ok = r.SetEnabled("missing", true)
	assert.False(t, ok)

	replaced := r.Put(models.Threshold{ID: first.ID, Metric: "cpu_usage", Condition: models.ConditionGTE, Value: 90, Severity: models.SeverityCritical, Enabled: true})
	assert.Equal(t, first.ID, replaced.ID)
	got, ok := r.Get(first.ID)
	require.True(t, ok)
	assert.Equal(t, 90.0, got.Value)

	views := r.Views()
	require.Len(t, views, 3)
	assert.Equal(t, models.ConditionGTE, views[first.ID].Condition)
}

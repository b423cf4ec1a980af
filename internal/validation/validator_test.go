package validation

import (
	"testing"

	"github.com/dushixiang/sentinel/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestStruct(t *testing.T) {
	err := Struct(models.MonitoringTarget{ID: "db1", Type: models.TargetDatabase})
	assert.NoError(t, err)

	err = Struct(models.MonitoringTarget{Type: models.TargetDatabase, CheckIntervalSeconds: -1})
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "ID is a required field")
		assert.Contains(t, err.Error(), "CheckIntervalSeconds must be 0 or greater")
	}

	err = Struct(models.ThresholdSpec{Metric: "cpu_usage", Condition: "above", Severity: models.SeverityWarning})
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "Condition must be one of [gt gte lt lte eq ne]")
	}
}

package service

import "github.com/dushixiang/sentinel/internal/models"

// AggregateStatus 计算系统状态：critical > warning > normal，被抑制的告警不参与
func AggregateStatus(alerts []models.Alert, checks map[string]models.HealthCheck) models.SystemStatus {
	warning := false
	for _, a := range alerts {
		if a.Status != models.AlertActive {
			continue
		}
		switch a.Level {
		case models.SeverityCritical:
			return models.StatusCritical
		case models.SeverityWarning, models.SeverityError:
			warning = true
		}
	}
	for _, check := range checks {
		switch check.Status {
		case models.HealthUnhealthy:
			return models.StatusCritical
		case models.HealthDegraded:
			warning = true
		}
	}
	if warning {
		return models.StatusWarning
	}
	return models.StatusNormal
}

package service

import (
	"errors"
	"reflect"

	"github.com/dushixiang/sentinel/internal/models"
	"github.com/dushixiang/sentinel/internal/validation"
	"go.uber.org/zap"
)

// SyncThresholds 写入配置文件中的阈值，配置中已删除的阈值被禁用
func (s *MonitorService) SyncThresholds(items []models.Threshold) error {
	s.targetMu.Lock()
	defer s.targetMu.Unlock()

	var errs []error
	seen := make(map[string]struct{}, len(items))
	for _, t := range items {
		saved, err := s.PutThreshold(t)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		seen[saved.ID] = struct{}{}
	}
	for id := range s.managedRules {
		if _, ok := seen[id]; !ok {
			s.alertService.SetThresholdEnabled(id, false)
			s.logger.Info("配置中已删除的阈值被禁用", zap.String("thresholdId", id))
		}
	}
	s.managedRules = seen
	return errors.Join(errs...)
}

// SyncTargets 使配置管理的目标与配置文件一致，未变化的目标不会被重新调度
func (s *MonitorService) SyncTargets(items []models.MonitoringTarget) error {
	s.targetMu.Lock()
	defer s.targetMu.Unlock()

	var errs []error
	seen := make(map[string]struct{}, len(items))
	for _, t := range items {
		if err := validation.Struct(t); err != nil {
			errs = append(errs, err)
			continue
		}
		seen[t.ID] = struct{}{}
		if existing, ok := s.targets.Get(t.ID); ok && reflect.DeepEqual(existing, t) {
			continue
		}
		if err := s.addTargetLocked(t); err != nil {
			errs = append(errs, err)
		}
	}
	for id := range s.managed {
		if _, ok := seen[id]; !ok {
			s.removeTargetLocked(id)
		}
	}
	s.managed = seen
	s.logger.Info("同步配置中的监控目标", zap.Int("targets", len(seen)))
	return errors.Join(errs...)
}

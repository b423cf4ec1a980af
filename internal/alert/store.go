package alert

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dushixiang/sentinel/internal/models"
	"github.com/google/uuid"
)

// DefaultHistoryLimit 历史记录上限
const DefaultHistoryLimit = 1000

// Store 告警存储：每个阈值最多一个未关闭告警，历史只追加并按上限淘汰
type Store struct {
	mu           sync.RWMutex
	open         map[string]*models.Alert // thresholdID -> 未关闭告警
	byID         map[string]*models.Alert
	history      []*models.Alert
	inHistory    map[string]struct{}
	historyLimit int
}

func NewStore(historyLimit int) *Store {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Store{
		open:         make(map[string]*models.Alert),
		byID:         make(map[string]*models.Alert),
		inHistory:    make(map[string]struct{}),
		historyLimit: historyLimit,
	}
}

// NewAlertID 名称 + 时间戳 + 随机后缀
func NewAlertID(name string, now time.Time) string {
	return fmt.Sprintf("%s-%d-%s", name, now.UnixMilli(), uuid.NewString()[:8])
}

// Open 阈值没有未关闭告警时创建，已存在时返回已有告警且 created=false
func (s *Store) Open(threshold models.Threshold, sample models.Metric, message string, now time.Time) (models.Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.open[threshold.ID]; ok {
		return existing.Clone(), false
	}

	value := sample.Value
	a := &models.Alert{
		ID:           NewAlertID(threshold.Metric, now),
		Level:        threshold.Severity,
		Message:      message,
		Timestamp:    now,
		Status:       models.AlertActive,
		Metric:       threshold.Metric,
		Value:        &value,
		ThresholdRef: threshold.ID,
	}
	s.open[threshold.ID] = a
	s.byID[a.ID] = a
	s.appendHistoryLocked(a)
	return a.Clone(), true
}

func (s *Store) appendHistoryLocked(a *models.Alert) {
	s.history = append(s.history, a)
	s.inHistory[a.ID] = struct{}{}
	if overflow := len(s.history) - s.historyLimit; overflow > 0 {
		for _, evicted := range s.history[:overflow] {
			delete(s.inHistory, evicted.ID)
			if !evicted.Open() {
				delete(s.byID, evicted.ID)
			}
		}
		s.history = append([]*models.Alert(nil), s.history[overflow:]...)
	}
}

// Resolve 关闭阈值对应的未关闭告警
func (s *Store) Resolve(thresholdID string, now time.Time) (models.Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.open[thresholdID]
	if !ok {
		return models.Alert{}, false
	}
	a.Status = models.AlertResolved
	resolvedAt := now
	a.ResolvedAt = &resolvedAt
	delete(s.open, thresholdID)
	if _, kept := s.inHistory[a.ID]; !kept {
		delete(s.byID, a.ID)
	}
	return a.Clone(), true
}

// Escalate 按已持续的时间提升未确认告警的升级等级，返回是否发生变化
func (s *Store) Escalate(thresholdID string, every time.Duration, now time.Time) (models.Alert, bool) {
	if every <= 0 {
		return models.Alert{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.open[thresholdID]
	if !ok || a.Status != models.AlertActive || a.AcknowledgedAt != nil {
		return models.Alert{}, false
	}
	level := int(now.Sub(a.Timestamp) / every)
	if level <= a.EscalationLevel {
		return models.Alert{}, false
	}
	a.EscalationLevel = level
	return a.Clone(), true
}

// Acknowledge 确认告警，未知 ID 返回 false
func (s *Store) Acknowledge(id, by string, now time.Time) (models.Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return models.Alert{}, false
	}
	ackAt := now
	a.AcknowledgedBy = by
	a.AcknowledgedAt = &ackAt
	return a.Clone(), true
}

// Suppress 抑制活跃告警：仍占用去重位置，但不计入活跃列表和状态聚合
func (s *Store) Suppress(id string) (models.Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok || a.Status != models.AlertActive {
		return models.Alert{}, false
	}
	a.Status = models.AlertSuppressed
	return a.Clone(), true
}

// OpenFor 阈值当前未关闭的告警
func (s *Store) OpenFor(thresholdID string) (models.Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.open[thresholdID]
	if !ok {
		return models.Alert{}, false
	}
	return a.Clone(), true
}

// Active 当前活跃告警（不含被抑制的），按触发时间排序
func (s *Store) Active() []models.Alert {
	s.mu.RLock()
	active := make([]models.Alert, 0, len(s.open))
	for _, a := range s.open {
		if a.Status == models.AlertActive {
			active = append(active, a.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(active, func(i, j int) bool {
		if active[i].Timestamp.Equal(active[j].Timestamp) {
			return active[i].ID < active[j].ID
		}
		return active[i].Timestamp.Before(active[j].Timestamp)
	})
	return active
}

// History 最新的在前，limit<=0 表示全部
func (s *Store) History(limit int) []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	result := make([]models.Alert, 0, limit)
	for i := n - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, s.history[i].Clone())
	}
	return result
}

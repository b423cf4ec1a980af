package threshold

import (
	"sort"
	"sync"
	"time"

	"github.com/dushixiang/sentinel/internal/models"
	"github.com/google/uuid"
)

// Registry 阈值注册表，同一指标可以有多条独立阈值
type Registry struct {
	mu    sync.RWMutex
	items map[string]models.Threshold
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		items: make(map[string]models.Threshold),
		now:   time.Now,
	}
}

// Add 以新 ID 注册阈值
func (r *Registry) Add(spec models.ThresholdSpec) models.Threshold {
	t := models.Threshold{
		ID:              uuid.NewString(),
		Metric:          spec.Metric,
		Condition:       spec.Condition,
		Value:           spec.Value,
		Severity:        spec.Severity,
		Enabled:         !spec.Disabled,
		DurationSeconds: spec.DurationSeconds,
		Description:     spec.Description,
		CreatedAt:       r.now(),
	}

	r.mu.Lock()
	r.items[t.ID] = t
	r.mu.Unlock()
	return t
}

// Put 按 ID 覆盖，ID 为空时生成
func (r *Registry) Put(t models.Threshold) models.Threshold {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = r.now()
	}

	r.mu.Lock()
	r.items[t.ID] = t
	r.mu.Unlock()
	return t
}

// SetEnabled 启用或禁用，返回阈值是否存在
func (r *Registry) SetEnabled(id string, enabled bool) (models.Threshold, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.items[id]
	if !ok {
		return models.Threshold{}, false
	}
	t.Enabled = enabled
	r.items[id] = t
	return t, true
}

func (r *Registry) Get(id string) (models.Threshold, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.items[id]
	return t, ok
}

// List 按创建时间排序
func (r *Registry) List() []models.Threshold {
	r.mu.RLock()
	list := make([]models.Threshold, 0, len(r.items))
	for _, t := range r.items {
		list = append(list, t)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

// Enabled 仅返回启用的阈值
func (r *Registry) Enabled() []models.Threshold {
	all := r.List()
	enabled := all[:0]
	for _, t := range all {
		if t.Enabled {
			enabled = append(enabled, t)
		}
	}
	return enabled
}

// Views 只读投影
func (r *Registry) Views() map[string]models.ThresholdView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	views := make(map[string]models.ThresholdView, len(r.items))
	for id, t := range r.items {
		views[id] = t.View()
	}
	return views
}

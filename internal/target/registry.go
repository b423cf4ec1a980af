package target

import (
	"sort"
	"sync"

	"github.com/dushixiang/sentinel/internal/models"
)

// Registry 监控目标注册表
type Registry struct {
	mu      sync.RWMutex
	targets map[string]models.MonitoringTarget
}

func NewRegistry() *Registry {
	return &Registry{targets: make(map[string]models.MonitoringTarget)}
}

// Put 注册或替换目标，返回是否替换了已有目标
func (r *Registry) Put(t models.MonitoringTarget) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, existed := r.targets[t.ID]
	r.targets[t.ID] = t
	return existed
}

// Remove 返回目标是否存在
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, existed := r.targets[id]
	delete(r.targets, id)
	return existed
}

func (r *Registry) Get(id string) (models.MonitoringTarget, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.targets[id]
	return t, ok
}

// List 按 ID 排序
func (r *Registry) List() []models.MonitoringTarget {
	r.mu.RLock()
	list := make([]models.MonitoringTarget, 0, len(r.targets))
	for _, t := range r.targets {
		list = append(list, t)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

func (r *Registry) Enabled() []models.MonitoringTarget {
	all := r.List()
	enabled := all[:0]
	for _, t := range all {
		if t.Enabled {
			enabled = append(enabled, t)
		}
	}
	return enabled
}

package health

import (
	"sync"

	"github.com/dushixiang/sentinel/internal/models"
)

type cachedCheck struct {
	check  models.HealthCheck
	writes int
}

// ResultCache 每个目标只保留最新一次检查结果
type ResultCache struct {
	mu      sync.RWMutex
	results map[string]*cachedCheck
}

func NewResultCache() *ResultCache {
	return &ResultCache{results: make(map[string]*cachedCheck)}
}

func (c *ResultCache) Put(check models.HealthCheck) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.results[check.TargetID]
	if !ok {
		entry = &cachedCheck{}
		c.results[check.TargetID] = entry
	}
	entry.check = check
	entry.writes++
}

func (c *ResultCache) Get(targetID string) (models.HealthCheck, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.results[targetID]
	if !ok {
		return models.HealthCheck{}, false
	}
	return entry.check, true
}

// Writes 目标结果被写入的次数
func (c *ResultCache) Writes(targetID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if entry, ok := c.results[targetID]; ok {
		return entry.writes
	}
	return 0
}

func (c *ResultCache) Delete(targetID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.results, targetID)
}

// Snapshot 拷贝当前所有结果
func (c *ResultCache) Snapshot() map[string]models.HealthCheck {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := make(map[string]models.HealthCheck, len(c.results))
	for id, entry := range c.results {
		snapshot[id] = entry.check
	}
	return snapshot
}

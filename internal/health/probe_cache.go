package health

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dushixiang/sentinel/internal/models"
	"github.com/go-redis/redis/v8"
)

type cacheClient struct {
	endpoint string
	client   *redis.Client
}

// cacheProbe 对 Redis 执行 PING
type cacheProbe struct {
	mu      sync.Mutex
	clients map[string]*cacheClient
}

func newCacheProbe() *cacheProbe {
	return &cacheProbe{clients: make(map[string]*cacheClient)}
}

func (p *cacheProbe) Probe(ctx context.Context, t models.MonitoringTarget) (ProbeResult, error) {
	client, err := p.client(t)
	if err != nil {
		return ProbeResult{}, err
	}

	start := time.Now()
	if err := client.Ping(ctx).Err(); err != nil {
		return ProbeResult{}, fmt.Errorf("redis ping failed: %w", err)
	}
	elapsed := time.Since(start)

	stats := client.PoolStats()
	return ProbeResult{
		Status:  ClassifyLatency(elapsed, t.LatencyConfig),
		Message: fmt.Sprintf("PONG - %dms", elapsed.Milliseconds()),
		Details: map[string]any{
			"latencyMs":  elapsed.Milliseconds(),
			"totalConns": stats.TotalConns,
			"idleConns":  stats.IdleConns,
			"hits":       stats.Hits,
			"misses":     stats.Misses,
		},
	}, nil
}

func (p *cacheProbe) client(t models.MonitoringTarget) (*redis.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.clients[t.ID]; ok {
		if existing.endpoint == t.Endpoint {
			return existing.client, nil
		}
		_ = existing.client.Close()
		delete(p.clients, t.ID)
	}

	opts := &redis.Options{Addr: t.Endpoint}
	if strings.Contains(t.Endpoint, "://") {
		parsed, err := redis.ParseURL(t.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse redis url failed: %w", err)
		}
		opts = parsed
	}
	client := redis.NewClient(opts)
	p.clients[t.ID] = &cacheClient{endpoint: t.Endpoint, client: client}
	return client, nil
}

func (p *cacheProbe) Release(targetID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.clients[targetID]; ok {
		_ = existing.client.Close()
		delete(p.clients, targetID)
	}
}

func (p *cacheProbe) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, existing := range p.clients {
		_ = existing.client.Close()
		delete(p.clients, id)
	}
}

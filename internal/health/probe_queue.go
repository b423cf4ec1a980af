package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dushixiang/sentinel/internal/models"
	"github.com/nats-io/nats.go"
)

// queueConn 单个目标的连接，建立连接只持有该目标自己的锁
type queueConn struct {
	mu       sync.Mutex
	endpoint string
	conn     *nats.Conn
	closed   bool
}

func (c *queueConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// queueProbe 连接 NATS 并测量一次 flush 往返
type queueProbe struct {
	mu    sync.Mutex
	conns map[string]*queueConn
}

func newQueueProbe() *queueProbe {
	return &queueProbe{conns: make(map[string]*queueConn)}
}

func (p *queueProbe) Probe(ctx context.Context, t models.MonitoringTarget) (ProbeResult, error) {
	conn, err := p.conn(ctx, t)
	if err != nil {
		return ProbeResult{}, err
	}
	if !conn.IsConnected() {
		return ProbeResult{}, fmt.Errorf("nats connection status: %v", conn.Status())
	}

	start := time.Now()
	if err := conn.FlushWithContext(ctx); err != nil {
		return ProbeResult{}, fmt.Errorf("nats flush failed: %w", err)
	}
	rtt := time.Since(start)

	stats := conn.Stats()
	return ProbeResult{
		Status:  ClassifyLatency(rtt, t.LatencyConfig),
		Message: fmt.Sprintf("RTT %dms", rtt.Milliseconds()),
		Details: map[string]any{
			"latencyMs":  rtt.Milliseconds(),
			"server":     conn.ConnectedUrl(),
			"inMsgs":     stats.InMsgs,
			"outMsgs":    stats.OutMsgs,
			"reconnects": stats.Reconnects,
		},
	}, nil
}

func (p *queueProbe) conn(ctx context.Context, t models.MonitoringTarget) (*nats.Conn, error) {
	p.mu.Lock()
	entry, ok := p.conns[t.ID]
	if !ok {
		entry = &queueConn{}
		p.conns[t.ID] = entry
	}
	p.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.closed {
		return nil, fmt.Errorf("nats connection of target %s released", t.ID)
	}
	if entry.conn != nil {
		if entry.endpoint == t.Endpoint && !entry.conn.IsClosed() {
			return entry.conn, nil
		}
		entry.conn.Close()
		entry.conn = nil
	}

	timeout := DefaultTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	conn, err := nats.Connect(t.Endpoint,
		nats.Name("sentinel-probe"),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect failed: %w", err)
	}
	entry.endpoint, entry.conn = t.Endpoint, conn
	return conn, nil
}

func (p *queueProbe) Release(targetID string) {
	p.mu.Lock()
	entry, ok := p.conns[targetID]
	delete(p.conns, targetID)
	p.mu.Unlock()
	if ok {
		entry.close()
	}
}

func (p *queueProbe) Close() {
	p.mu.Lock()
	entries := make([]*queueConn, 0, len(p.conns))
	for id, entry := range p.conns {
		entries = append(entries, entry)
		delete(p.conns, id)
	}
	p.mu.Unlock()
	for _, entry := range entries {
		entry.close()
	}
}

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dushixiang/sentinel/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []protocol.Event
}

func (o *recordingObserver) OnEvent(event protocol.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

func (o *recordingObserver) types() []protocol.EventType {
	o.mu.Lock()
	defer o.mu.Unlock()
	types := make([]protocol.EventType, 0, len(o.events))
	for _, e := range o.events {
		types = append(types, e.Type)
	}
	return types
}

func TestEventBusDeliversInOrder(t *testing.T) {
	bus := NewEventBus(zaptest.NewLogger(t))
	observer := &recordingObserver{}
	bus.AddObserver(observer)

	bus.Publish(protocol.EventMetric, 1)
	bus.Publish(protocol.EventAlert, 2)
	bus.Publish(protocol.EventAlertResolved, 3)
	bus.Close(context.Background())

	assert.Equal(t, []protocol.EventType{
		protocol.EventMetric, protocol.EventAlert, protocol.EventAlertResolved,
	}, observer.types())

	// 关闭后发布的事件被丢弃
	bus.Publish(protocol.EventMetric, 4)
	assert.Len(t, observer.types(), 3)
}

func TestEventBusSlowObserverDoesNotBlockPublisher(t *testing.T) {
	bus := NewEventBus(zaptest.NewLogger(t))
	release := make(chan struct{})
	var count int
	var mu sync.Mutex
	bus.AddObserver(ObserverFunc(func(protocol.Event) {
		<-release
		mu.Lock()
		count++
		mu.Unlock()
	}))

	start := time.Now()
	for i := 0; i < 1000; i++ {
		bus.Publish(protocol.EventMetric, i)
	}
	assert.Less(t, time.Since(start), time.Second)

	close(release)
	bus.Close(context.Background())
	assert.Equal(t, 1000, count)
}

func TestEventBusRecoversObserverPanic(t *testing.T) {
	bus := NewEventBus(zaptest.NewLogger(t))
	observer := &recordingObserver{}
	bus.AddObserver(ObserverFunc(func(e protocol.Event) {
		if e.Payload == "boom" {
			panic("boom")
		}
		observer.OnEvent(e)
	}))

	bus.Publish(protocol.EventAlert, "boom")
	bus.Publish(protocol.EventMetric, "ok")
	bus.Close(context.Background())
	assert.Equal(t, []protocol.EventType{protocol.EventMetric}, observer.types())
}

func TestEventBusSubscribe(t *testing.T) {
	bus := NewEventBus(zaptest.NewLogger(t))
	ch, cancel := bus.Subscribe()

	bus.Publish(protocol.EventHealthCheck, "db1")
	select {
	case e := <-ch:
		assert.Equal(t, protocol.EventHealthCheck, e.Type)
		assert.Equal(t, "db1", e.Payload)
	case <-time.After(time.Second):
		t.Fatal("没有收到事件")
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open, "取消订阅后 channel 应被关闭")
	bus.Close(context.Background())
}

func TestEventBusCloseGivesUpOnStalledSubscriber(t *testing.T) {
	bus := NewEventBus(zaptest.NewLogger(t))
	ch, _ := bus.Subscribe()
	bus.Publish(protocol.EventMetric, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	bus.Close(ctx)

	require.Eventually(t, func() bool {
		select {
		case _, open := <-ch:
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

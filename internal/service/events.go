package service

import (
	"context"
	"sync"
	"time"

	"github.com/dushixiang/sentinel/internal/protocol"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// Observer 接收引擎事件，同一个 Observer 的回调串行执行
type Observer interface {
	OnEvent(event protocol.Event)
}

// ObserverFunc 函数形式的 Observer
type ObserverFunc func(event protocol.Event)

func (f ObserverFunc) OnEvent(event protocol.Event) {
	f(event)
}

// subscriber 每个订阅者一个无界队列，由独立 goroutine 消费
type subscriber struct {
	mu        sync.Mutex
	cond      *sync.Cond
	queue     []protocol.Event
	closing   bool
	abort     chan struct{}
	abortOnce sync.Once
	deliver   func(event protocol.Event)
	onExit    func()
}

func newSubscriber() *subscriber {
	sub := &subscriber{abort: make(chan struct{})}
	sub.cond = sync.NewCond(&sub.mu)
	return sub
}

func (sub *subscriber) push(event protocol.Event) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closing {
		return
	}
	sub.queue = append(sub.queue, event)
	sub.cond.Signal()
}

// close 不再接收新事件，已入队的事件继续投递
func (sub *subscriber) close() {
	sub.mu.Lock()
	sub.closing = true
	sub.cond.Broadcast()
	sub.mu.Unlock()
}

// stop 丢弃剩余事件并让消费 goroutine 尽快退出
func (sub *subscriber) stop() {
	sub.close()
	sub.abortOnce.Do(func() {
		close(sub.abort)
	})
}

func (sub *subscriber) next() ([]protocol.Event, bool) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	for len(sub.queue) == 0 && !sub.closing {
		sub.cond.Wait()
	}
	if len(sub.queue) == 0 {
		return nil, false
	}
	batch := sub.queue
	sub.queue = nil
	return batch, true
}

func (sub *subscriber) run(logger *zap.Logger) {
	if sub.onExit != nil {
		defer sub.onExit()
	}
	for {
		batch, ok := sub.next()
		if !ok {
			return
		}
		for _, event := range batch {
			select {
			case <-sub.abort:
				return
			default:
			}
			sub.safeDeliver(logger, event)
		}
	}
}

func (sub *subscriber) safeDeliver(logger *zap.Logger, event protocol.Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("事件处理发生panic", zap.Any("panic", r), zap.String("event", string(event.Type)))
		}
	}()
	sub.deliver(event)
}

// EventBus 进程内事件分发，发布方永不阻塞
type EventBus struct {
	mu          sync.Mutex
	subscribers map[int]*subscriber
	nextID      int
	closed      bool
	wg          conc.WaitGroup
	logger      *zap.Logger
	now         func() time.Time
}

func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[int]*subscriber),
		logger:      logger,
		now:         time.Now,
	}
}

// Publish 事件拷贝到每个订阅者的队列
func (b *EventBus) Publish(eventType protocol.EventType, payload any) {
	event := protocol.Event{Type: eventType, Timestamp: b.now(), Payload: payload}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, sub := range b.subscribers {
		sub.push(event)
	}
}

func (b *EventBus) add(sub *subscriber) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, false
	}
	id := b.nextID
	b.nextID++
	b.subscribers[id] = sub
	b.wg.Go(func() {
		sub.run(b.logger)
	})
	return id, true
}

func (b *EventBus) remove(id int) *subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subscribers[id]
	if !ok {
		return nil
	}
	delete(b.subscribers, id)
	return sub
}

// AddObserver 注册观察者，返回的函数用于取消注册
func (b *EventBus) AddObserver(observer Observer) (remove func()) {
	sub := newSubscriber()
	sub.deliver = observer.OnEvent
	id, ok := b.add(sub)
	if !ok {
		return func() {}
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			if s := b.remove(id); s != nil {
				s.close()
			}
		})
	}
}

// Subscribe 以 channel 形式订阅，取消订阅或 EventBus 关闭后 channel 会被关闭
func (b *EventBus) Subscribe() (<-chan protocol.Event, func()) {
	ch := make(chan protocol.Event)
	sub := newSubscriber()
	sub.deliver = func(event protocol.Event) {
		select {
		case ch <- event:
		case <-sub.abort:
		}
	}
	sub.onExit = func() {
		close(ch)
	}

	id, ok := b.add(sub)
	if !ok {
		close(ch)
		return ch, func() {}
	}
	return ch, func() {
		b.remove(id)
		sub.stop()
	}
}

// Close 停止接收事件，等待已发布的事件投递完毕；ctx 结束时放弃剩余事件
func (b *EventBus) Close(ctx context.Context) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*subscriber, 0, len(b.subscribers))
	for id, sub := range b.subscribers {
		subs = append(subs, sub)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("事件队列未能在关闭前投递完毕", zap.Error(ctx.Err()))
		for _, sub := range subs {
			sub.stop()
		}
	}
}

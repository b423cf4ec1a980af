package notifier

import (
	"context"
	"time"

	"github.com/dushixiang/sentinel/internal/config"
	"github.com/dushixiang/sentinel/internal/models"
	"github.com/dushixiang/sentinel/internal/protocol"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"
)

// Channel 一种通知渠道
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Notifier 订阅告警事件并按级别推送到各渠道，失败时指数退避重试
type Notifier struct {
	logger     *zap.Logger
	channels   []Channel
	minLevel   models.Severity
	maxRetries int
	timeout    time.Duration
	newBackoff func() *backoff.Backoff
	now        func() time.Time
}

// New 根据配置创建渠道，未配置任何渠道时返回 nil
func New(logger *zap.Logger, cfg config.NotifyConfig) *Notifier {
	var channels []Channel
	if cfg.Webhook != nil {
		channels = append(channels, NewWebhookChannel(*cfg.Webhook))
	}
	if cfg.Email != nil {
		channels = append(channels, NewEmailChannel(*cfg.Email))
	}
	if len(channels) == 0 {
		return nil
	}
	return NewWithChannels(logger, models.Severity(cfg.MinLevel), cfg.MaxRetries, channels...)
}

func NewWithChannels(logger *zap.Logger, minLevel models.Severity, maxRetries int, channels ...Channel) *Notifier {
	return &Notifier{
		logger:     logger,
		channels:   channels,
		minLevel:   minLevel,
		maxRetries: maxRetries,
		timeout:    30 * time.Second,
		newBackoff: func() *backoff.Backoff {
			return &backoff.Backoff{
				Min:    time.Second,
				Max:    30 * time.Second,
				Factor: 2,
				Jitter: true,
			}
		},
		now: time.Now,
	}
}

// OnEvent 实现 Observer，在事件总线的订阅协程中同步发送
func (n *Notifier) OnEvent(event protocol.Event) {
	switch event.Type {
	case protocol.EventAlert, protocol.EventAlertResolved, protocol.EventAlertEscalated:
	default:
		return
	}
	alert, ok := event.Payload.(models.Alert)
	if !ok || alert.Level.Rank() < n.minLevel.Rank() {
		return
	}

	msg := Message{Event: event.Type, Alert: alert, Time: event.Timestamp}
	if msg.Time.IsZero() {
		msg.Time = n.now()
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	for _, ch := range n.channels {
		n.deliver(ctx, ch, msg)
	}
}

func (n *Notifier) deliver(ctx context.Context, ch Channel, msg Message) {
	b := n.newBackoff()
	for attempt := 0; ; attempt++ {
		err := ch.Send(ctx, msg)
		if err == nil {
			n.logger.Debug("通知发送成功",
				zap.String("channel", ch.Name()),
				zap.String("alertId", msg.Alert.ID),
				zap.String("event", string(msg.Event)))
			return
		}
		if attempt >= n.maxRetries {
			n.logger.Error("通知发送失败",
				zap.String("channel", ch.Name()),
				zap.String("alertId", msg.Alert.ID),
				zap.Int("attempts", attempt+1),
				zap.Error(err))
			return
		}

		wait := b.Duration()
		n.logger.Warn("通知发送失败，稍后重试",
			zap.String("channel", ch.Name()),
			zap.Duration("wait", wait),
			zap.Error(err))
		select {
		case <-ctx.Done():
			n.logger.Error("通知发送超时", zap.String("channel", ch.Name()), zap.Error(ctx.Err()))
			return
		case <-time.After(wait):
		}
	}
}

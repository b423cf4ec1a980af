package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/dushixiang/sentinel/internal/config"
	"github.com/go-resty/resty/v2"
)

// webhookPayload 未配置模板时发送的 JSON
type webhookPayload struct {
	Event      string   `json:"event"`
	ID         string   `json:"id"`
	Level      string   `json:"level"`
	Metric     string   `json:"metric"`
	Value      *float64 `json:"value,omitempty"`
	Status     string   `json:"status"`
	Message    string   `json:"message"`
	Threshold  string   `json:"threshold"`
	Escalation int      `json:"escalation"`
	Time       int64    `json:"time"` // 毫秒
}

// WebhookChannel 以 POST 请求推送告警
type WebhookChannel struct {
	cfg    config.WebhookConfig
	client *resty.Client
}

func NewWebhookChannel(cfg config.WebhookConfig) *WebhookChannel {
	client := resty.New().
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "sentinel-notifier")
	return &WebhookChannel{cfg: cfg, client: client}
}

func (w *WebhookChannel) Name() string {
	return "webhook"
}

func (w *WebhookChannel) Send(ctx context.Context, msg Message) error {
	req := w.client.R().
		SetContext(ctx).
		SetHeaders(w.cfg.Headers)

	if w.cfg.Template != "" {
		req.SetBody(RenderJSON(w.cfg.Template, msg.Vars()))
	} else {
		req.SetBody(webhookPayload{
			Event:      string(msg.Event),
			ID:         msg.Alert.ID,
			Level:      string(msg.Alert.Level),
			Metric:     msg.Alert.Metric,
			Value:      msg.Alert.Value,
			Status:     string(msg.Alert.Status),
			Message:    msg.Alert.Message,
			Threshold:  msg.Alert.ThresholdRef,
			Escalation: msg.Alert.EscalationLevel,
			Time:       msg.Time.UnixMilli(),
		})
	}

	resp, err := req.Post(w.cfg.URL)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

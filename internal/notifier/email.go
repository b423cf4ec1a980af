package notifier

import (
	"context"
	"fmt"

	"github.com/dushixiang/sentinel/internal/config"
	"gopkg.in/gomail.v2"
)

// EmailChannel 通过 SMTP 发送告警邮件
type EmailChannel struct {
	cfg    config.EmailConfig
	dialer *gomail.Dialer
}

func NewEmailChannel(cfg config.EmailConfig) *EmailChannel {
	return &EmailChannel{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (e *EmailChannel) Name() string {
	return "email"
}

// Send gomail 不支持 context，只在发送前检查是否已取消
func (e *EmailChannel) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.dialer.DialAndSend(e.buildMessage(msg)); err != nil {
		return fmt.Errorf("send mail failed: %w", err)
	}
	return nil
}

func (e *EmailChannel) buildMessage(msg Message) *gomail.Message {
	subject, body := e.cfg.Subject, e.cfg.Body
	if subject == "" {
		subject = DefaultSubject
	}
	if body == "" {
		body = DefaultBody
	}
	vars := msg.Vars()

	m := gomail.NewMessage()
	m.SetHeader("From", e.cfg.From)
	m.SetHeader("To", e.cfg.To...)
	m.SetHeader("Subject", Render(subject, vars))
	m.SetBody("text/plain", Render(body, vars))
	return m
}

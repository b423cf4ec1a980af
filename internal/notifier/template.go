package notifier

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dushixiang/sentinel/internal/models"
	"github.com/dushixiang/sentinel/internal/protocol"
	"github.com/valyala/fasttemplate"
)

const (
	DefaultSubject = "[Sentinel] {{level}} {{metric}} {{status}}"
	DefaultBody    = "事件: {{event}}\n告警: {{id}}\n级别: {{level}}\n指标: {{metric}}\n当前值: {{value}}\n状态: {{status}}\n升级等级: {{escalation}}\n时间: {{time}}\n\n{{message}}"
)

// Message 一次待发送的通知
type Message struct {
	Event protocol.EventType
	Alert models.Alert
	Time  time.Time
}

// Vars 模板变量，值全部为字符串
func (m Message) Vars() map[string]any {
	value := ""
	if m.Alert.Value != nil {
		value = fmt.Sprintf("%.2f", *m.Alert.Value)
	}
	return map[string]any{
		"event":      string(m.Event),
		"id":         m.Alert.ID,
		"level":      strings.ToUpper(string(m.Alert.Level)),
		"metric":     m.Alert.Metric,
		"value":      value,
		"status":     string(m.Alert.Status),
		"message":    m.Alert.Message,
		"threshold":  m.Alert.ThresholdRef,
		"escalation": fmt.Sprintf("%d", m.Alert.EscalationLevel),
		"time":       m.Time.Format(time.RFC3339),
	}
}

// Render 使用 {{name}} 占位符渲染，未知占位符替换为空
func Render(template string, vars map[string]any) string {
	return fasttemplate.ExecuteString(template, "{{", "}}", vars)
}

// RenderJSON 变量按 JSON 字符串转义后再渲染，用于 JSON 模板
func RenderJSON(template string, vars map[string]any) string {
	escaped := make(map[string]any, len(vars))
	for k, v := range vars {
		s, _ := v.(string)
		b, _ := json.Marshal(s)
		escaped[k] = string(b[1 : len(b)-1])
	}
	return Render(template, escaped)
}

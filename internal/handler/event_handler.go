package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/dushixiang/sentinel/internal/protocol"
	"github.com/dushixiang/sentinel/internal/service"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// EventHandler 通过 websocket 推送引擎事件
type EventHandler struct {
	logger   *zap.Logger
	service  *service.MonitorService
	upgrader websocket.Upgrader
}

func NewEventHandler(logger *zap.Logger, service *service.MonitorService) *EventHandler {
	return &EventHandler{
		logger:  logger,
		service: service,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Stream 订阅事件，types 参数按逗号分隔过滤事件类型
// GET /api/events
func (h *EventHandler) Stream(c echo.Context) error {
	types := parseEventTypes(c.QueryParam("types"))

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket 升级失败", zap.Error(err))
		return nil
	}
	defer conn.Close()

	events, unsubscribe := h.service.Subscribe()
	defer unsubscribe()

	// 读协程只处理 pong 和关闭
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	h.logger.Debug("事件订阅连接建立", zap.String("remote", c.RealIP()))
	for {
		select {
		case <-closed:
			return nil
		case event, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
					time.Now().Add(writeWait))
				return nil
			}
			if len(types) > 0 {
				if _, want := types[event.Type]; !want {
					continue
				}
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug("推送事件失败，断开连接", zap.Error(err))
				return nil
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		}
	}
}

func parseEventTypes(raw string) map[protocol.EventType]struct{} {
	if raw == "" {
		return nil
	}
	types := make(map[protocol.EventType]struct{})
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			types[protocol.EventType(part)] = struct{}{}
		}
	}
	return types
}

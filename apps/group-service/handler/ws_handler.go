package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"gostudy-social/apps/group-service/service"
	"gostudy-social/pkg/logger"
	"gostudy-social/pkg/snowflake"
)

// wsNotification 推给前端的变更通知
type wsNotification struct {
	Type      string `json:"type"`
	Payload   string `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

// WSHandler WebSocket处理器。每个连接挂一个同步器监听者，
// 快照因变更通知刷新后把变更事件推给前端，由前端决定是否重新拉列表。
type WSHandler struct {
	svc *service.Service
	log logger.Logger
}

// NewWSHandler 创建WebSocket处理器
func NewWSHandler(svc *service.Service, log logger.Logger) *WSHandler {
	return &WSHandler{
		svc: svc,
		log: log,
	}
}

// HandleConnection 处理一条WebSocket连接的完整生命周期
func (h *WSHandler) HandleConnection(conn *websocket.Conn, r *http.Request) {
	ctx := context.Background()
	sessionID := snowflake.GenerateID()

	notifications := make(chan string, 16)
	listenerID := h.svc.Syncer().AddListener(func(payload string) {
		// 慢连接不阻塞其他监听者，溢出的通知直接丢，前端靠下一条补
		select {
		case notifications <- payload:
		default:
		}
	})
	defer h.svc.Syncer().RemoveListener(listenerID)

	h.log.Info(ctx, "WebSocket session opened",
		logger.F("sessionID", sessionID),
		logger.F("remote", conn.RemoteAddr().String()))
	defer h.log.Info(ctx, "WebSocket session closed", logger.F("sessionID", sessionID))

	// 读循环只用来探测连接关闭
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case payload := <-notifications:
			msg := &wsNotification{
				Type:      "groups.changed",
				Payload:   payload,
				Timestamp: time.Now().Unix(),
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Warn(ctx, "Failed to push change notification",
					logger.F("sessionID", sessionID),
					logger.F("error", err.Error()))
				return
			}
		}
	}
}

package service

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"fvg_bot/internal/models"
	broadcast "fvg_bot/internal/modules/broadcast/service"
	"fvg_bot/pkg/logger"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 20 * time.Second
	maxMessage = 4096
)

func (h *Handler) serveWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("[DASH] upgrade: %v", err)
		return
	}
	client := h.hub.Subscribe()
	logger.Info("[DASH] client %s connected (%d total)", conn.RemoteAddr(), h.hub.Clients())

	go h.writeLoop(conn, client)
	h.readLoop(conn)

	h.hub.Unsubscribe(client)
	logger.Info("[DASH] client %s gone", conn.RemoteAddr())
}

// writeLoop owns all writes to conn. It ends when the client is unsubscribed.
func (h *Handler) writeLoop(conn *websocket.Conn, client *broadcast.Client) {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case frame, ok := <-client.C():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd models.Command
		if err := sonic.Unmarshal(msg, &cmd); err != nil {
			logger.Warn("[DASH] bad message: %v", err)
			continue
		}
		if err := h.Command(cmd); err != nil {
			logger.Warn("[DASH] %s: %v", cmd.Type, err)
		}
	}
}

package service

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"fvg_bot/internal/models"
	broadcast "fvg_bot/internal/modules/broadcast/service"
	confirm "fvg_bot/internal/modules/confirm/service"
)

// Controller is the part of the engine the dashboard may drive.
type Controller interface {
	Snapshot() models.EngineState
	// Confirm decides the pending signal; an empty id means whichever is pending.
	Confirm(id string, accepted bool) error
	SetTradingEnabled(enabled bool, reason string)
}

type Handler struct {
	ctl      Controller
	hub      *broadcast.Hub
	upgrader websocket.Upgrader
}

func NewHandler(ctl Controller, hub *broadcast.Hub) *Handler {
	return &Handler{
		ctl: ctl,
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// the dashboard is served from another origin during development
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) Register(r gin.IRouter) {
	r.GET("/ws", h.serveWS)

	api := r.Group("/api")
	api.GET("/state", h.state)
	api.POST("/signals/:id/confirm", h.decide(true))
	api.POST("/signals/:id/decline", h.decide(false))
	api.POST("/trading", h.toggle)
}

func (h *Handler) state(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, h.ctl.Snapshot())
}

func (h *Handler) decide(accepted bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.ctl.Confirm(c.Param("id"), accepted); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "confirmed": accepted})
	}
}

func (h *Handler) toggle(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"enabled\": bool}"})
		return
	}
	h.ctl.SetTradingEnabled(*req.Enabled, "api")
	c.JSON(http.StatusOK, gin.H{"enabled": *req.Enabled})
}

// Command applies an inbound dashboard message.
func (h *Handler) Command(cmd models.Command) error {
	switch cmd.Type {
	case models.CommandTradeConfirmation:
		if cmd.Payload.Confirmed == nil {
			return fmt.Errorf("trade_confirmation without confirmed")
		}
		return h.ctl.Confirm(cmd.Payload.ID, *cmd.Payload.Confirmed)
	case models.CommandToggleTrading:
		if cmd.Payload.Enabled == nil {
			return fmt.Errorf("toggle_trading without enabled")
		}
		h.ctl.SetTradingEnabled(*cmd.Payload.Enabled, "dashboard")
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd.Type)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, confirm.ErrNoPending), errors.Is(err, confirm.ErrUnknownSignal):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

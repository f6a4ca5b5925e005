package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"fvg_bot/internal/modules/health/service"
)

// Register mounts /livez, /readyz and /healthz on r.
func Register(r gin.IRouter, state *service.State) {
	r.GET("/livez", func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.String(http.StatusOK, "ok")
	})

	r.GET("/readyz", func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		if !state.Ready() {
			c.String(http.StatusServiceUnavailable, "not ready")
			return
		}
		c.String(http.StatusOK, "ready")
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		var lastCandle int64
		if t := state.LastCandle(); !t.IsZero() {
			lastCandle = t.Unix()
		}
		c.JSON(http.StatusOK, gin.H{
			"ready":          state.Ready(),
			"feedConnected":  state.FeedConnected(),
			"uptimeSec":      int64(state.Uptime().Seconds()),
			"lastCandleUnix": lastCandle,
		})
	})
}

func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(
			service.NewState,
		),
	)
}

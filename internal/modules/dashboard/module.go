package dashboard

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"fvg_bot/internal/modules/config"
	"fvg_bot/internal/modules/dashboard/service"
	"fvg_bot/internal/modules/health"
	healthsvc "fvg_bot/internal/modules/health/service"
	"fvg_bot/pkg/logger"
)

func NewRouter(cfg *config.Config, h *service.Handler, state *healthsvc.State, reg *prometheus.Registry) *gin.Engine {
	if cfg.Service.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	health.Register(r, state)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	h.Register(r)
	return r
}

func RunHTTP(lc fx.Lifecycle, cfg *config.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Service.Host, cfg.Service.HTTPPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			logger.Info("[DASH] listening on %s", addr)
			go func() {
				if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("[DASH] serve: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

// Module serves the dashboard; the engine must provide a service.Controller.
func Module() fx.Option {
	return fx.Module("dashboard",
		fx.Provide(
			service.NewHandler,
			NewRouter,
		),
		fx.Invoke(RunHTTP),
	)
}

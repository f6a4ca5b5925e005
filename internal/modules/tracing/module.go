package tracing

import (
	"context"

	"go.uber.org/fx"

	"fvg_bot/internal/modules/config"
	"fvg_bot/pkg/logger"
	jaeger "fvg_bot/pkg/tracing"
)

// Init installs the Jaeger tracer when tracing.enabled is set. Spans are
// no-ops otherwise.
func Init(lc fx.Lifecycle, cfg *config.Config) error {
	if !cfg.Tracing.Enabled {
		return nil
	}
	jaeger.SetServiceName(cfg.Service.Name)
	_, closer, err := jaeger.InitTracer(jaeger.Config{
		Host: cfg.Tracing.Host,
		Port: cfg.Tracing.Port,
	})
	if err != nil {
		return err
	}
	logger.Info("[TRACE] jaeger agent %s:%d", cfg.Tracing.Host, cfg.Tracing.Port)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closer()
			return nil
		},
	})
	return nil
}

func Module() fx.Option {
	return fx.Module("tracing",
		fx.Invoke(Init),
	)
}

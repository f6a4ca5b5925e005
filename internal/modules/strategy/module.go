package strategy

import (
	"go.uber.org/fx"

	"fvg_bot/internal/modules/config"
	"fvg_bot/internal/modules/strategy/service"
)

func NewDetector(cfg *config.Config) *service.Detector {
	return service.NewDetector(cfg.Strategy.MaxFVGAge)
}

func NewTrendFilter(cfg *config.Config) *service.TrendFilter {
	return service.NewTrendFilter(cfg.Strategy.TrendWindow)
}

func NewGenerator(cfg *config.Config) *service.Generator {
	return service.NewGenerator(service.GeneratorConfig{
		Symbol:                cfg.Symbol,
		DefaultQty:            cfg.Strategy.DefaultQty,
		UndeterminedAsBullish: cfg.Strategy.UndeterminedAsBullish,
	})
}

func Module() fx.Option {
	return fx.Module("strategy",
		fx.Provide(
			NewDetector,
			NewTrendFilter,
			NewGenerator,
		),
	)
}

package portfolio

import (
	"go.uber.org/fx"

	"fvg_bot/internal/modules/config"
	"fvg_bot/internal/modules/portfolio/service"
)

func NewPortfolio(cfg *config.Config) *service.Portfolio {
	p := service.NewPortfolio(cfg.Portfolio.InitialCash)
	// a backtest keeps every point for the drawdown report
	if cfg.Mode == config.ModeLive {
		p.SetCurveLimit(cfg.Portfolio.CurveLimit)
	}
	return p
}

func Module() fx.Option {
	return fx.Module("portfolio",
		fx.Provide(NewPortfolio),
	)
}

package risk

import (
	"go.uber.org/fx"

	"fvg_bot/internal/modules/config"
	"fvg_bot/internal/modules/risk/service"
)

func NewManager(cfg *config.Config) *service.Manager {
	return service.NewManager(service.Config{
		RiskPerTrade:   cfg.Risk.RiskPerTrade,
		CashAtRisk:     cfg.Risk.CashAtRisk,
		StopLossPct:    cfg.Risk.StopLossPct,
		MaxDrawdownPct: cfg.Risk.MaxDrawdownPct,
		LotSize:        1,
	}, cfg.Portfolio.InitialCash)
}

func Module() fx.Option {
	return fx.Module("risk",
		fx.Provide(NewManager),
	)
}

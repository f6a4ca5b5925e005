package confirm

import (
	"go.uber.org/fx"

	broadcast "fvg_bot/internal/modules/broadcast/service"
	"fvg_bot/internal/modules/config"
	"fvg_bot/internal/modules/confirm/service"
)

func NewGate(cfg *config.Config, fan *broadcast.Fanout) *service.Gate {
	return service.NewGate(service.Config{
		Timeout:      cfg.Confirm.Timeout,
		CandleClock:  cfg.Confirm.Clock == config.ClockCandle,
		Auto:         cfg.Confirm.Auto,
		RequireEntry: cfg.Confirm.RequireEntry,
		RequireExit:  cfg.Confirm.RequireExit,
	}, fan)
}

func Module() fx.Option {
	return fx.Module("confirm",
		fx.Provide(NewGate),
	)
}

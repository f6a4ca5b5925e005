package alpaca_client

import (
	"go.uber.org/fx"

	"fvg_bot/internal/modules/alpaca_client/service"
	"fvg_bot/internal/modules/config"
)

func NewClient(cfg *config.Config) *service.Client {
	return service.NewClient(service.Config{
		BaseURL:      cfg.Alpaca.TradingURL,
		KeyID:        cfg.Alpaca.KeyID,
		SecretKey:    cfg.Alpaca.SecretKey,
		PollInterval: cfg.Alpaca.PollInterval,
		FillTimeout:  cfg.Alpaca.FillTimeout,
	}, nil)
}

func Module() fx.Option {
	return fx.Module("alpaca_client",
		fx.Provide(NewClient),
	)
}

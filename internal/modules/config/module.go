package config

import (
	"fvg_bot/pkg/logger"

	"go.uber.org/fx"
)

// Module provides *Config and initialises the process logger from it.
func Module() fx.Option {
	return fx.Module("config",
		fx.Provide(
			NewConfig,
		),
		fx.Invoke(func(cfg *Config) error {
			logger.SetServiceName(cfg.Service.Name)
			return logger.Init(cfg.Service.LogLevel, cfg.Service.LogJSON)
		}),
	)
}

package main

import (
	"go.uber.org/fx"

	"fvg_bot/internal/modules/alpaca_client"
	"fvg_bot/internal/modules/broadcast"
	"fvg_bot/internal/modules/config"
	"fvg_bot/internal/modules/confirm"
	"fvg_bot/internal/modules/dashboard"
	"fvg_bot/internal/modules/execution"
	"fvg_bot/internal/modules/feed"
	"fvg_bot/internal/modules/health"
	"fvg_bot/internal/modules/journal"
	"fvg_bot/internal/modules/metrics"
	"fvg_bot/internal/modules/portfolio"
	"fvg_bot/internal/modules/risk"
	"fvg_bot/internal/modules/strategy"
	telegram "fvg_bot/internal/modules/telegram_bot"
	"fvg_bot/internal/modules/tracing"
	"fvg_bot/internal/runner"
)

func main() {
	fx.New(
		config.Module(),
		metrics.Module(),
		tracing.Module(),
		health.Module(),
		broadcast.Module(),
		feed.Module(),
		feed.LiveModule(),
		alpaca_client.Module(),
		strategy.Module(),
		confirm.Module(),
		risk.Module(),
		portfolio.Module(),
		execution.Module(),
		journal.Module(),
		runner.Module(),
		runner.LiveModule(),
		dashboard.Module(),
		telegram.Module(),
	).Run()
}

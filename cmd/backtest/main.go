package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/fx"

	"fvg_bot/internal/modules/broadcast"
	"fvg_bot/internal/modules/config"
	"fvg_bot/internal/modules/confirm"
	"fvg_bot/internal/modules/execution"
	"fvg_bot/internal/modules/feed"
	feedsvc "fvg_bot/internal/modules/feed/service"
	"fvg_bot/internal/modules/journal"
	"fvg_bot/internal/modules/metrics"
	"fvg_bot/internal/modules/portfolio"
	portfoliosvc "fvg_bot/internal/modules/portfolio/service"
	"fvg_bot/internal/modules/risk"
	"fvg_bot/internal/modules/strategy"
	"fvg_bot/internal/modules/tracing"
	"fvg_bot/internal/runner"
	"fvg_bot/pkg/logger"
)

func main() {
	if os.Getenv("CONFIG_FILE") == "" {
		_ = os.Setenv("CONFIG_FILE", "values_backtest.yaml")
	}

	var (
		cfg      *config.Config
		pipeline *runner.Pipeline
		source   feedsvc.BarSource
		seq      *feedsvc.Sequencer
		sess     feedsvc.SessionOptions
		m        *metrics.Metrics
		book     *portfoliosvc.Portfolio
	)

	app := fx.New(
		config.Module(),
		fx.Decorate(func(c *config.Config) (*config.Config, error) {
			return c.ForBacktest()
		}),
		metrics.Module(),
		tracing.Module(),
		broadcast.Module(),
		feed.Module(),
		strategy.Module(),
		confirm.Module(),
		risk.Module(),
		portfolio.Module(),
		execution.Module(),
		journal.Module(),
		runner.Module(),
		fx.Populate(&cfg, &pipeline, &source, &seq, &sess, &m, &book),
		fx.NopLogger,
	)

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		logger.Fatal("[BACKTEST] start: %v", err)
	}

	runErr := run(ctx, cfg, pipeline, source, seq, sess, m)

	// flushes the journal
	if err := app.Stop(ctx); err != nil {
		logger.Error("[BACKTEST] stop: %v", err)
	}
	if runErr != nil {
		logger.Fatal("[BACKTEST] %v", runErr)
	}
	report(os.Stdout, cfg, book.Stats())
}

func run(ctx context.Context, cfg *config.Config, p *runner.Pipeline, src feedsvc.BarSource,
	seq *feedsvc.Sequencer, sess feedsvc.SessionOptions, m *metrics.Metrics) error {
	start, end := cfg.Feed.Start, cfg.Feed.End
	if cfg.Feed.CSVPath == "" {
		if end.IsZero() {
			end = time.Now().UTC()
		}
		if start.IsZero() {
			start = end.AddDate(-1, 0, 0)
		}
	}

	bars, err := src.Bars(ctx, cfg.Symbol, cfg.Feed.Timeframe, start, end)
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}
	logger.Info("[BACKTEST] %d bars %s %s", len(bars), cfg.Symbol, cfg.Feed.Timeframe)

	replay := feedsvc.NewReplay(bars, seq, sess, feed.SkipLogger(m))
	defer replay.Close()
	return p.Run(ctx, replay)
}

func report(w io.Writer, cfg *config.Config, s portfoliosvc.Stats) {
	fmt.Fprintf(w, "symbol         %s\n", cfg.Symbol)
	fmt.Fprintf(w, "initial cash   %.2f\n", cfg.Portfolio.InitialCash)
	fmt.Fprintf(w, "final equity   %.2f\n", s.FinalEquity)
	fmt.Fprintf(w, "return         %.2f%%\n", s.ReturnPct)
	fmt.Fprintf(w, "round trips    %d\n", s.RoundTrips)
	fmt.Fprintf(w, "wins / losses  %d / %d\n", s.Wins, s.Losses)
	fmt.Fprintf(w, "win rate       %.1f%%\n", s.WinRate*100)
	fmt.Fprintf(w, "realized p/l   %.2f\n", s.RealizedPnL)
	fmt.Fprintf(w, "profit factor  %.2f\n", s.ProfitFactor)
	fmt.Fprintf(w, "max drawdown   %.2f%%\n", s.MaxDrawdown)
}

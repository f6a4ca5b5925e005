package runner

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"

	broadcast "fvg_bot/internal/modules/broadcast/service"
	"fvg_bot/internal/modules/config"
	confirm "fvg_bot/internal/modules/confirm/service"
	dashboard "fvg_bot/internal/modules/dashboard/service"
	execution "fvg_bot/internal/modules/execution/service"
	feed "fvg_bot/internal/modules/feed/service"
	healthsvc "fvg_bot/internal/modules/health/service"
	journal "fvg_bot/internal/modules/journal/service"
	"fvg_bot/internal/modules/metrics"
	portfolio "fvg_bot/internal/modules/portfolio/service"
	risk "fvg_bot/internal/modules/risk/service"
	strategy "fvg_bot/internal/modules/strategy/service"
	telegram "fvg_bot/internal/modules/telegram_bot/service"
	"fvg_bot/pkg/logger"
)

type Params struct {
	fx.In

	Config    *config.Config
	Hours     feed.TradingHours
	Detector  *strategy.Detector
	Trend     *strategy.TrendFilter
	Generator *strategy.Generator
	Gate      *confirm.Gate
	Risk      *risk.Manager
	Engine    *execution.Engine
	Portfolio *portfolio.Portfolio
	Journal   *journal.Journal
	Fanout    *broadcast.Fanout
	Metrics   *metrics.Metrics
	Health    *healthsvc.State `optional:"true"`
}

func New(p Params) *Pipeline {
	return NewPipeline(Config{
		Symbol:       p.Config.Symbol,
		Mode:         p.Config.Mode,
		ConsumeZones: p.Config.Strategy.ConsumeZones,
		Hours:        p.Hours,
	}, Deps{
		Detector:  p.Detector,
		Trend:     p.Trend,
		Generator: p.Generator,
		Gate:      p.Gate,
		Risk:      p.Risk,
		Engine:    p.Engine,
		Portfolio: p.Portfolio,
		Journal:   p.Journal,
		Publisher: p.Fanout,
		Metrics:   p.Metrics,
		Health:    p.Health,
	})
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			New,
			func(p *Pipeline) dashboard.Controller { return p },
			func(p *Pipeline) telegram.Controller { return p },
		),
	)
}

// LiveModule warms the pipeline up from history and runs it on the stream.
func LiveModule() fx.Option {
	return fx.Module("runner_live",
		fx.Invoke(RunLive),
	)
}

type LiveParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Config     *config.Config
	Pipeline   *Pipeline
	Source     feed.BarSource
	Sequencer  *feed.Sequencer
	Stream     *feed.Stream
	Health     *healthsvc.State
}

func RunLive(p LiveParams) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			last := warmup(startCtx, p)

			p.Stream.OnState = p.Health.SetFeedConnected
			if !last.IsZero() {
				p.Stream.SeedLast(last)
			}
			p.Stream.Start(ctx)

			go func() {
				defer close(done)
				err := p.Pipeline.Run(ctx, p.Stream)
				if err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("[RUNNER] pipeline: %v", err)
					_ = p.Shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			p.Health.SetReady(true)
			return nil
		},
		OnStop: func(_ context.Context) error {
			p.Health.SetReady(false)
			cancel()
			_ = p.Stream.Close()
			<-done
			return nil
		},
	})
}

// warmup replays recent history into the pipeline and returns the time of
// the last bar it used. Failures only cost the warmup.
func warmup(ctx context.Context, p LiveParams) time.Time {
	n := p.Config.Feed.WarmupBars
	if n <= 0 {
		return time.Time{}
	}
	tf, err := feed.TimeframeDuration(p.Config.Feed.Timeframe)
	if err != nil {
		logger.Warn("[RUNNER] warmup skipped: %v", err)
		return time.Time{}
	}

	end := time.Now().UTC()
	// nights and weekends have no bars
	start := end.Add(-time.Duration(n)*tf*3 - 96*time.Hour)

	bars, err := p.Source.Bars(ctx, p.Config.Symbol, p.Config.Feed.Timeframe, start, end)
	if err != nil {
		logger.Warn("[RUNNER] warmup skipped: %v", err)
		return time.Time{}
	}
	bars = feed.Tail(bars, n)
	if len(bars) == 0 {
		return time.Time{}
	}

	replay := feed.NewReplay(bars, p.Sequencer, feed.SessionOptions{}, nil)
	if _, err := p.Pipeline.Warmup(ctx, replay); err != nil {
		logger.Warn("[RUNNER] warmup: %v", err)
	}
	return bars[len(bars)-1].Time
}

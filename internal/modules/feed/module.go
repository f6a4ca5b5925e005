package feed

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"fvg_bot/internal/models"
	"fvg_bot/internal/modules/config"
	"fvg_bot/internal/modules/feed/service"
	"fvg_bot/internal/modules/metrics"
	"fvg_bot/pkg/logger"
)

// NewRedis returns nil when no address is configured; the cache then passes through.
func NewRedis(lc fx.Lifecycle, cfg *config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := rdb.Ping(ctx).Err(); err != nil {
				logger.Warn("[FEED] redis %s unavailable: %v", cfg.Redis.Addr, err)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return rdb.Close()
		},
	})
	return rdb
}

func SessionOptions(cfg *config.Config) (service.SessionOptions, error) {
	loc, err := cfg.Location()
	if err != nil {
		return service.SessionOptions{}, err
	}
	return service.SessionOptions{Location: loc, Enabled: cfg.Feed.SessionResets}, nil
}

func TradingHours(cfg *config.Config) (service.TradingHours, error) {
	loc, err := cfg.Location()
	if err != nil {
		return service.TradingHours{}, err
	}
	enabled := cfg.Feed.RegularHours
	// daily and weekly bars open at midnight, outside any intraday window
	if d, err := service.TimeframeDuration(cfg.Feed.Timeframe); err == nil && d >= 24*time.Hour && enabled {
		logger.Warn("[FEED] regular_hours ignored for %s bars", cfg.Feed.Timeframe)
		enabled = false
	}
	return service.ParseTradingHours(loc, cfg.Feed.SessionOpen, cfg.Feed.SessionClose, enabled)
}

// NewBarSource picks the CSV file when configured, otherwise the REST history behind the cache.
func NewBarSource(cfg *config.Config, rdb *redis.Client, m *metrics.Metrics) service.BarSource {
	if cfg.Feed.CSVPath != "" {
		return service.NewCSVSource(cfg.Feed.CSVPath, SkipLogger(m))
	}
	h := service.NewHistory(service.HistoryConfig{
		BaseURL:   cfg.Alpaca.DataURL,
		KeyID:     cfg.Alpaca.KeyID,
		SecretKey: cfg.Alpaca.SecretKey,
		DataFeed:  cfg.Alpaca.DataFeed,
	}, nil)
	return service.NewCachingSource(rdb, cfg.Redis.TTL, h, "bars")
}

func NewStream(cfg *config.Config, seq *service.Sequencer, sess service.SessionOptions, m *metrics.Metrics) *service.Stream {
	s := service.NewStream(service.StreamConfig{
		URL:       cfg.Alpaca.StreamURL,
		KeyID:     cfg.Alpaca.KeyID,
		SecretKey: cfg.Alpaca.SecretKey,
		Symbol:    cfg.Symbol,
		QueueSize: cfg.Feed.QueueSize,
		Session:   sess,
	}, seq)
	s.OnSkip = SkipLogger(m)
	return s
}

func SkipLogger(m *metrics.Metrics) service.SkipFunc {
	return func(bar models.Bar, err error) {
		logger.Warn("[FEED] skip bar %s %s: %v", bar.Symbol, bar.Time, err)
		m.FeedSkipped.Inc()
	}
}

func Module() fx.Option {
	return fx.Module("feed",
		fx.Provide(
			service.NewSequencer,
			SessionOptions,
			TradingHours,
			NewRedis,
			NewBarSource,
		),
	)
}

// LiveModule adds the websocket stream used by the live binary.
func LiveModule() fx.Option {
	return fx.Module("feed_live",
		fx.Provide(NewStream),
	)
}

package journal

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"fvg_bot/internal/modules/config"
	"fvg_bot/internal/modules/journal/service"
	"fvg_bot/internal/modules/postgres"
	"fvg_bot/pkg/logger"
)

// NewSink opens the backend named by journal.driver.
func NewSink(cfg *config.Config) (service.Sink, error) {
	switch cfg.Journal.Driver {
	case config.JournalCSV:
		s, err := service.NewCSVSink(cfg.Journal.Dir)
		if err != nil {
			return nil, errors.Wrap(err, "journal csv")
		}
		return s, nil
	case config.JournalSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Journal.SQLitePath), 0o755); err != nil {
			return nil, errors.Wrap(err, "journal sqlite dir")
		}
		db, err := gorm.Open(sqlite.Open(cfg.Journal.SQLitePath), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return nil, errors.Wrapf(err, "journal sqlite %s", cfg.Journal.SQLitePath)
		}
		s, err := service.NewGormSink(db)
		if err != nil {
			return nil, errors.Wrap(err, "journal sqlite")
		}
		return s, nil
	case config.JournalPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		tm, err := postgres.NewTxManager(ctx, cfg.Journal.DSN)
		if err != nil {
			return nil, errors.Wrap(err, "journal postgres")
		}
		s, err := service.NewPostgresSink(ctx, tm, tm.Close)
		if err != nil {
			tm.Close()
			return nil, errors.Wrap(err, "journal postgres")
		}
		return s, nil
	default:
		return service.NopSink{}, nil
	}
}

func NewJournal(lc fx.Lifecycle, cfg *config.Config, sink service.Sink) *service.Journal {
	j := service.New(sink, cfg.Journal.QueueSize)
	logger.Info("[JOURNAL] driver=%s", cfg.Journal.Driver)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return j.Close()
		},
	})
	return j
}

func Module() fx.Option {
	return fx.Module("journal",
		fx.Provide(
			NewSink,
			NewJournal,
		),
	)
}

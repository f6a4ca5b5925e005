package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"fvg_bot/internal/models"
	"fvg_bot/pkg/db"
)

const (
	createTradesSQL = `CREATE TABLE IF NOT EXISTS trades (
	id         BIGSERIAL PRIMARY KEY,
	order_id   TEXT NOT NULL UNIQUE,
	time       TIMESTAMPTZ NOT NULL,
	symbol     TEXT NOT NULL,
	side       TEXT NOT NULL,
	quantity   DOUBLE PRECISION NOT NULL,
	price      DOUBLE PRECISION NOT NULL,
	total      DOUBLE PRECISION NOT NULL,
	pnl        DOUBLE PRECISION
)`
	createCandlesSQL = `CREATE TABLE IF NOT EXISTS candles (
	symbol       TEXT NOT NULL,
	time         TIMESTAMPTZ NOT NULL,
	candle_index BIGINT NOT NULL,
	open         DOUBLE PRECISION NOT NULL,
	high         DOUBLE PRECISION NOT NULL,
	low          DOUBLE PRECISION NOT NULL,
	close        DOUBLE PRECISION NOT NULL,
	volume       DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (symbol, time)
)`
	insertTradeSQL = `INSERT INTO trades (order_id, time, symbol, side, quantity, price, total, pnl)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (order_id) DO NOTHING`
	insertCandleSQL = `INSERT INTO candles (symbol, time, candle_index, open, high, low, close, volume)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (symbol, time) DO NOTHING`
)

// PostgresSink journals through the pgx tx manager.
type PostgresSink struct {
	tm    db.TxManager
	close func()
}

func NewPostgresSink(ctx context.Context, tm db.TxManager, closeFn func()) (*PostgresSink, error) {
	err := tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return migrate(ctx, tx)
	})
	if err != nil {
		return nil, fmt.Errorf("journal migrate: %w", err)
	}
	return &PostgresSink{tm: tm, close: closeFn}, nil
}

func migrate(ctx context.Context, q db.Transaction) error {
	for _, stmt := range []string{createTradesSQL, createCandlesSQL} {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresSink) AppendTrade(ctx context.Context, t models.Trade) error {
	return s.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return insertTrade(ctx, tx, t)
	})
}

func (s *PostgresSink) AppendCandle(ctx context.Context, c models.Candle) error {
	return insertCandle(ctx, s.tm.Conn(), c)
}

func (s *PostgresSink) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

func insertTrade(ctx context.Context, q db.Transaction, t models.Trade) error {
	_, err := q.Exec(ctx, insertTradeSQL,
		t.OrderID, t.Time, t.Symbol, string(t.Side), t.Quantity, t.Price, t.Total, t.PnL)
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", t.OrderID, err)
	}
	return nil
}

func insertCandle(ctx context.Context, q db.Transaction, c models.Candle) error {
	_, err := q.Exec(ctx, insertCandleSQL,
		c.Symbol, c.Time, c.Index, c.Open, c.High, c.Low, c.Close, c.Volume)
	if err != nil {
		return fmt.Errorf("insert candle %d: %w", c.Index, err)
	}
	return nil
}

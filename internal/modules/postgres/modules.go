package postgres

import (
	"context"
	"fmt"

	"fvg_bot/pkg/db"
)

// NewTxManager opens a pool on dsn and checks it with a ping.
func NewTxManager(ctx context.Context, dsn string) (*db.PgTxManager, error) {
	poolMaster, err := db.NewPool(ctx, db.PoolConfig{
		DSN:      dsn,
		MaxConns: 4,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create poolMaster: %w", err)
	}

	if err = poolMaster.Ping(ctx); err != nil {
		poolMaster.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db.NewPgTxManager(poolMaster), nil
}

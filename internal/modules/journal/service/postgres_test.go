package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fvg_bot/pkg/db"
)

type execCall struct {
	sql  string
	args []any
}

type fakeConn struct {
	calls []execCall
	err   error
}

func (f *fakeConn) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func (f *fakeConn) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeConn) QueryRow(context.Context, string, ...any) pgx.Row { return nil }

// fakeTx only implements Exec; the embedded interface panics on anything else.
type fakeTx struct {
	pgx.Tx
	conn *fakeConn
}

func (f fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return f.conn.Exec(ctx, sql, args...)
}

type fakeTxManager struct {
	conn *fakeConn
	txs  int
}

func (m *fakeTxManager) RunMaster(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	m.txs++
	return fn(ctx, fakeTx{conn: m.conn})
}

func (m *fakeTxManager) Conn() db.Transaction { return m.conn }

func TestPostgresSink(t *testing.T) {
	conn := &fakeConn{}
	tm := &fakeTxManager{conn: conn}
	closed := false
	ctx := context.Background()

	s, err := NewPostgresSink(ctx, tm, func() { closed = true })
	require.NoError(t, err)
	require.Len(t, conn.calls, 2)
	assert.Contains(t, conn.calls[0].sql, "CREATE TABLE IF NOT EXISTS trades")
	assert.Contains(t, conn.calls[1].sql, "CREATE TABLE IF NOT EXISTS candles")

	require.NoError(t, s.AppendTrade(ctx, sellTrade()))
	require.NoError(t, s.AppendCandle(ctx, candleAt(4)))
	assert.Equal(t, 2, tm.txs)

	trade := conn.calls[2]
	assert.Equal(t, insertTradeSQL, trade.sql)
	require.Len(t, trade.args, 8)
	assert.Equal(t, "bt-2", trade.args[0])
	assert.Equal(t, "SELL", trade.args[3])

	candle := conn.calls[3]
	assert.Equal(t, insertCandleSQL, candle.sql)
	assert.EqualValues(t, 4, candle.args[2])

	require.NoError(t, s.Close())
	assert.True(t, closed)
}

func TestPostgresSink_ExecError(t *testing.T) {
	conn := &fakeConn{}
	tm := &fakeTxManager{conn: conn}
	s, err := NewPostgresSink(context.Background(), tm, nil)
	require.NoError(t, err)

	conn.err = errors.New("connection reset")
	err = s.AppendTrade(context.Background(), buyTrade())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bt-1")
}

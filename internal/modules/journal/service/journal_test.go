package service

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fvg_bot/internal/models"
)

var t0 = time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

func candleAt(idx int64) models.Candle {
	return models.Candle{Index: idx, Bar: models.Bar{
		Symbol: "SPY", Time: t0.Add(time.Duration(idx) * time.Minute),
		Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100,
	}}
}

func buyTrade() models.Trade {
	return models.Trade{Time: t0, Symbol: "SPY", Side: models.SideBuy, Quantity: 10, Price: 100, Total: 1000, OrderID: "bt-1"}
}

func sellTrade() models.Trade {
	pnl := 55.5
	return models.Trade{Time: t0.Add(time.Hour), Symbol: "SPY", Side: models.SideSell, Quantity: 10, Price: 105.55, Total: 1055.5, PnL: &pnl, OrderID: "bt-2"}
}

type recordingSink struct {
	mu      sync.Mutex
	order   []string
	failOn  string
	closed  bool
	release chan struct{}
}

func (s *recordingSink) AppendCandle(_ context.Context, c models.Candle) error {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, "candle")
	return nil
}

func (s *recordingSink) AppendTrade(_ context.Context, t models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, "trade:"+t.OrderID)
	if t.OrderID == s.failOn {
		return errors.New("disk full")
	}
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func TestJournal_PreservesOrderAndDrainsOnClose(t *testing.T) {
	sink := &recordingSink{}
	j := New(sink, 16)

	j.Candle(candleAt(1))
	require.NoError(t, j.Trade(context.Background(), buyTrade()))
	j.Candle(candleAt(2))
	require.NoError(t, j.Trade(context.Background(), sellTrade()))
	require.NoError(t, j.Close())

	assert.Equal(t, []string{"candle", "trade:bt-1", "candle", "trade:bt-2"}, sink.order)
	assert.True(t, sink.closed)

	assert.ErrorIs(t, j.Trade(context.Background(), buyTrade()), ErrClosed)
	j.Candle(candleAt(3)) // no panic after close
	require.NoError(t, j.Close())
}

func TestJournal_SlowSinkKeepsEveryCandle(t *testing.T) {
	tests := []struct {
		name    string
		queue   int
		candles int
	}{
		{"queue of one", 1, 10},
		{"small queue", 4, 50},
		{"queue larger than feed", 64, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{release: make(chan struct{})}
			j := New(sink, tt.queue)

			fed := make(chan struct{})
			go func() {
				defer close(fed)
				for i := 1; i <= tt.candles; i++ {
					j.Candle(candleAt(int64(i)))
				}
			}()

			if tt.candles > tt.queue+1 {
				// the writer is held, so the feeder must be waiting on the queue
				require.Eventually(t, func() bool { return j.Stalls() > 0 }, time.Second, time.Millisecond)
			}
			close(sink.release)
			<-fed
			require.NoError(t, j.Close())

			assert.Len(t, sink.order, tt.candles)
			assert.Zero(t, j.Failed())
		})
	}
}

func TestJournal_CountsWriteFailures(t *testing.T) {
	sink := &recordingSink{failOn: "bt-1"}
	j := New(sink, 4)
	require.NoError(t, j.Trade(context.Background(), buyTrade()))
	require.NoError(t, j.Close())
	assert.EqualValues(t, 1, j.Failed())
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVSink_TradeHistory(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewCSVSink(dir)
	require.NoError(t, err)
	require.NoError(t, s.AppendTrade(ctx, buyTrade()))
	require.NoError(t, s.AppendCandle(ctx, candleAt(7)))
	require.NoError(t, s.Close())

	// reopening appends without a second header
	s, err = NewCSVSink(dir)
	require.NoError(t, err)
	require.NoError(t, s.AppendTrade(ctx, sellTrade()))
	require.NoError(t, s.Close())

	rows := readCSV(t, filepath.Join(dir, TradeFile))
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Datetime", "Symbol", "Side", "Quantity", "Price", "Total", "P/L"}, rows[0])
	assert.Equal(t, []string{"2024-03-01 14:30:00", "SPY", "BUY", "10", "100.00", "1000.00", ""}, rows[1])
	assert.Equal(t, []string{"2024-03-01 15:30:00", "SPY", "SELL", "10", "105.55", "1055.50", "55.50"}, rows[2])

	candles := readCSV(t, filepath.Join(dir, CandleFile))
	require.Len(t, candles, 2)
	assert.Equal(t, []string{"2024-03-01 14:37:00", "7", "SPY", "10", "11", "9", "10.5", "100"}, candles[1])
}

func TestGormSink_SQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	s, err := NewGormSink(db)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.AppendTrade(ctx, buyTrade()))
	require.NoError(t, s.AppendTrade(ctx, sellTrade()))
	require.NoError(t, s.AppendCandle(ctx, candleAt(1)))
	require.NoError(t, s.AppendCandle(ctx, candleAt(1))) // upsert

	trades, err := s.Trades(ctx, "SPY")
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "bt-1", trades[0].OrderID)
	assert.Nil(t, trades[0].PnL)
	require.NotNil(t, trades[1].PnL)
	assert.InDelta(t, 55.5, *trades[1].PnL, 1e-9)

	var n int64
	require.NoError(t, db.Model(&CandleModel{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)

	require.NoError(t, s.Close())
}

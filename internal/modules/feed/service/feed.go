package service

import (
	"context"
	"sync/atomic"
	"time"

	"fvg_bot/internal/models"
)

// Feed yields candles and session boundaries one at a time.
// A finite feed returns io.EOF once drained.
type Feed interface {
	Next(ctx context.Context) (models.FeedEvent, error)
	Close() error
}

// BarSource loads historical bars for [start, end).
type BarSource interface {
	Bars(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]models.Bar, error)
}

// SkipFunc is told about every bar a feed refuses to emit.
type SkipFunc func(bar models.Bar, err error)

// Sequencer hands out candle indices. Shared by warmup and the live stream so
// the index stays gapless across both.
type Sequencer struct {
	next atomic.Int64
}

func NewSequencer() *Sequencer { return &Sequencer{} }

func (s *Sequencer) Stamp(b models.Bar) *models.Candle {
	return &models.Candle{Index: s.next.Add(1) - 1, Bar: b}
}

// Peek returns the index the next candle will get.
func (s *Sequencer) Peek() int64 { return s.next.Load() }

type SessionOptions struct {
	Location *time.Location
	Enabled  bool
}

// sessionTracker detects trading-day changes.
type sessionTracker struct {
	opts    SessionOptions
	day     time.Time
	started bool
}

func newSessionTracker(opts SessionOptions) *sessionTracker {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &sessionTracker{opts: opts}
}

// boundary returns the new session day when ts starts one. The first bar never does.
func (t *sessionTracker) boundary(ts time.Time) (time.Time, bool) {
	local := ts.In(t.opts.Location)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, t.opts.Location)
	if !t.started {
		t.started = true
		t.day = day
		return day, false
	}
	if !day.After(t.day) {
		return day, false
	}
	t.day = day
	return day, t.opts.Enabled
}

package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"fvg_bot/internal/models"
	"fvg_bot/pkg/logger"
)

var ErrClosed = errors.New("journal: closed")

// Sink persists candles and trades. Calls come from a single goroutine.
type Sink interface {
	AppendCandle(ctx context.Context, c models.Candle) error
	AppendTrade(ctx context.Context, t models.Trade) error
	Close() error
}

type NopSink struct{}

func (NopSink) AppendCandle(context.Context, models.Candle) error { return nil }
func (NopSink) AppendTrade(context.Context, models.Trade) error   { return nil }
func (NopSink) Close() error                                      { return nil }

type entry struct {
	candle *models.Candle
	trade  *models.Trade
}

// Journal writes to a Sink off the pipeline goroutine, preserving order.
// Every record is kept: a full queue makes the caller wait for room.
type Journal struct {
	sink  Sink
	queue chan entry

	mu     sync.RWMutex
	closed bool

	stalls atomic.Int64
	failed atomic.Int64
	done   chan struct{}
}

func New(sink Sink, queueSize int) *Journal {
	if queueSize <= 0 {
		queueSize = 1024
	}
	j := &Journal{
		sink:  sink,
		queue: make(chan entry, queueSize),
		done:  make(chan struct{}),
	}
	go j.loop()
	return j
}

func (j *Journal) loop() {
	defer close(j.done)
	for e := range j.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		var err error
		switch {
		case e.candle != nil:
			err = j.sink.AppendCandle(ctx, *e.candle)
		case e.trade != nil:
			err = j.sink.AppendTrade(ctx, *e.trade)
		}
		cancel()
		if err != nil {
			j.failed.Add(1)
			logger.Error("[JOURNAL] write: %v", err)
		}
	}
}

// Candle enqueues c, waiting for room when the sink falls behind.
func (j *Journal) Candle(c models.Candle) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	select {
	case j.queue <- entry{candle: &c}:
		return
	default:
	}
	if j.stalls.Add(1)%100 == 1 {
		logger.Warn("[JOURNAL] queue full, waiting on sink (stalls so far: %d)", j.stalls.Load())
	}
	j.queue <- entry{candle: &c}
}

// Trade enqueues t, waiting for room until ctx ends.
func (j *Journal) Trade(ctx context.Context, t models.Trade) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return ErrClosed
	}
	select {
	case j.queue <- entry{trade: &t}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stalls counts candles that had to wait for a full queue.
func (j *Journal) Stalls() int64 { return j.stalls.Load() }

func (j *Journal) Failed() int64 { return j.failed.Load() }

// Close drains the queue and closes the sink.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()

	<-j.done
	return j.sink.Close()
}

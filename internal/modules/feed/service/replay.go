package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"fvg_bot/internal/models"
)

// Replay serves pre-loaded bars with no delay.
type Replay struct {
	bars   []models.Bar
	pos    int
	seq    *Sequencer
	sess   *sessionTracker
	onSkip SkipFunc

	last    time.Time
	pending *models.Candle
	closed  bool
}

func NewReplay(bars []models.Bar, seq *Sequencer, opts SessionOptions, onSkip SkipFunc) *Replay {
	if seq == nil {
		seq = NewSequencer()
	}
	return &Replay{
		bars:   bars,
		seq:    seq,
		sess:   newSessionTracker(opts),
		onSkip: onSkip,
	}
}

func (r *Replay) Next(ctx context.Context) (models.FeedEvent, error) {
	if err := ctx.Err(); err != nil {
		return models.FeedEvent{}, err
	}
	if r.closed {
		return models.FeedEvent{}, io.EOF
	}
	if r.pending != nil {
		c := r.pending
		r.pending = nil
		return models.FeedEvent{Kind: models.FeedCandle, Candle: c}, nil
	}

	for r.pos < len(r.bars) {
		bar := r.bars[r.pos]
		r.pos++

		if err := bar.Validate(); err != nil {
			r.skip(bar, err)
			continue
		}
		if !r.last.IsZero() && !bar.Time.After(r.last) {
			r.skip(bar, fmt.Errorf("out of order bar at %s", bar.Time.Format(time.RFC3339)))
			continue
		}
		r.last = bar.Time

		c := r.seq.Stamp(bar)
		if day, ok := r.sess.boundary(bar.Time); ok {
			r.pending = c
			return models.FeedEvent{Kind: models.FeedSessionReset, Session: day}, nil
		}
		return models.FeedEvent{Kind: models.FeedCandle, Candle: c}, nil
	}
	return models.FeedEvent{}, io.EOF
}

func (r *Replay) Close() error {
	r.closed = true
	return nil
}

func (r *Replay) skip(bar models.Bar, err error) {
	if r.onSkip != nil {
		r.onSkip(bar, err)
	}
}

package service

import "fvg_bot/internal/models"

// TrendFilter is a fixed-window SMA over closes.
type TrendFilter struct {
	window int
	buf    []float64
	pos    int
	full   bool
	last   float64
}

func NewTrendFilter(window int) *TrendFilter {
	if window <= 0 {
		window = 20
	}
	return &TrendFilter{window: window, buf: make([]float64, window)}
}

func (t *TrendFilter) Observe(close float64) {
	t.buf[t.pos] = close
	t.pos = (t.pos + 1) % t.window
	if t.pos == 0 {
		t.full = true
	}
	t.last = close
}

// SMA is summed fresh each call so replays never accumulate float drift.
func (t *TrendFilter) SMA() (float64, bool) {
	if !t.full {
		return 0, false
	}
	var sum float64
	for _, v := range t.buf {
		sum += v
	}
	return sum / float64(t.window), true
}

// Flow is undetermined until window closes have been seen.
func (t *TrendFilter) Flow() models.Flow {
	sma, ok := t.SMA()
	if !ok {
		return models.FlowUndetermined
	}
	if t.last > sma {
		return models.FlowBullish
	}
	return models.FlowBearish
}

func (t *TrendFilter) Window() int { return t.window }

func (t *TrendFilter) Reset() {
	for i := range t.buf {
		t.buf[i] = 0
	}
	t.pos = 0
	t.full = false
	t.last = 0
}

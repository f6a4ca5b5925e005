package models

import (
	"fmt"
	"math"
	"time"
)

// Bar is a raw OHLCV bar as delivered by a data source, before sequencing.
type Bar struct {
	Symbol string    `json:"symbol"`
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Validate rejects bars that cannot be a real candle.
func (b Bar) Validate() error {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("bad price %v", v)
		}
	}
	if b.Low > math.Min(b.Open, b.Close) || math.Max(b.Open, b.Close) > b.High {
		return fmt.Errorf("ohlc envelope violated o=%v h=%v l=%v c=%v", b.Open, b.High, b.Low, b.Close)
	}
	if b.Volume < 0 {
		return fmt.Errorf("negative volume %v", b.Volume)
	}
	return nil
}

// Candle is a validated, sequenced bar. Never mutated after the feed emits it.
type Candle struct {
	Index int64 `json:"index"`
	Bar
}

// CandleMetrics describes the shape of a candle for the dashboard.
type CandleMetrics struct {
	Body      float64 `json:"body"`
	UpperWick float64 `json:"upper_wick"`
	LowerWick float64 `json:"lower_wick"`
	Range     float64 `json:"range"`
	BodyRatio float64 `json:"body_ratio"`
	Bullish   bool    `json:"bullish"`
	ChangePct float64 `json:"change_pct"`
}

func (c *Candle) Metrics() CandleMetrics {
	top := math.Max(c.Open, c.Close)
	bottom := math.Min(c.Open, c.Close)
	m := CandleMetrics{
		Body:      top - bottom,
		UpperWick: c.High - top,
		LowerWick: bottom - c.Low,
		Range:     c.High - c.Low,
		Bullish:   c.Close >= c.Open,
		ChangePct: (c.Close - c.Open) / c.Open * 100,
	}
	if m.Range > 0 {
		m.BodyRatio = m.Body / m.Range
	}
	return m
}

type FeedEventKind int

const (
	FeedCandle FeedEventKind = iota
	FeedSessionReset
)

// FeedEvent is one item pulled from a feed: a candle or a session boundary.
type FeedEvent struct {
	Kind   FeedEventKind
	Candle *Candle
	// Session is the trading day that starts at a reset.
	Session time.Time
}

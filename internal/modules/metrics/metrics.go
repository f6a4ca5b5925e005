// Package metrics holds the Prometheus series the pipeline updates:
//
//	fvg_candles_total                  candles processed
//	fvg_feed_skipped_total             bars dropped by a feed as malformed
//	fvg_zone_events_total{kind}        created|touched|invalidated|expired
//	fvg_open_zones{side}               open zones after the last candle
//	fvg_signals_total{type,outcome}    proposals and their gate outcome
//	fvg_touches_suppressed_total       touches ignored while a signal was pending
//	fvg_orders_total{mode,side,result} submitted orders (filled|rejected)
//	fvg_risk_vetoes_total{reason}      risk manager vetoes
//	fvg_equity_usd / fvg_drawdown_ratio portfolio gauges
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Metrics struct {
	Candles           prometheus.Counter
	FeedSkipped       prometheus.Counter
	ZoneEvents        *prometheus.CounterVec
	OpenZones         *prometheus.GaugeVec
	Signals           *prometheus.CounterVec
	TouchesSuppressed prometheus.Counter
	Orders            *prometheus.CounterVec
	Vetoes            *prometheus.CounterVec
	Equity            prometheus.Gauge
	Drawdown          prometheus.Gauge
}

// New registers every series on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Candles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fvg_candles_total",
			Help: "Candles processed by the pipeline",
		}),
		FeedSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fvg_feed_skipped_total",
			Help: "Malformed bars dropped by the feed",
		}),
		ZoneEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fvg_zone_events_total",
			Help: "Fair value gap lifecycle events",
		}, []string{"kind"}),
		OpenZones: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fvg_open_zones",
			Help: "Open fair value gaps by side",
		}, []string{"side"}),
		Signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fvg_signals_total",
			Help: "Signals split by type and gate outcome",
		}, []string{"type", "outcome"}),
		TouchesSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fvg_touches_suppressed_total",
			Help: "Touches recorded while a signal was pending",
		}),
		Orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fvg_orders_total",
			Help: "Orders submitted",
		}, []string{"mode", "side", "result"}),
		Vetoes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fvg_risk_vetoes_total",
			Help: "Risk manager vetoes by reason",
		}, []string{"reason"}),
		Equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fvg_equity_usd",
			Help: "Portfolio equity",
		}),
		Drawdown: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fvg_drawdown_ratio",
			Help: "Drawdown from peak equity",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Candles, m.FeedSkipped, m.ZoneEvents, m.OpenZones, m.Signals,
			m.TouchesSuppressed, m.Orders, m.Vetoes, m.Equity, m.Drawdown,
		)
	}
	return m
}

// NewRegistry is the process registry with Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

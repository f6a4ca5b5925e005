package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/opentracing/opentracing-go"

	"fvg_bot/internal/models"
	confirm "fvg_bot/internal/modules/confirm/service"
	execution "fvg_bot/internal/modules/execution/service"
	feed "fvg_bot/internal/modules/feed/service"
	healthsvc "fvg_bot/internal/modules/health/service"
	"fvg_bot/internal/modules/metrics"
	portfolio "fvg_bot/internal/modules/portfolio/service"
	risk "fvg_bot/internal/modules/risk/service"
	strategy "fvg_bot/internal/modules/strategy/service"
	"fvg_bot/pkg/logger"
	"fvg_bot/pkg/tracing"
)

// ErrInvariant stops the pipeline. Violations wrap models.ErrInvariant.
var ErrInvariant = models.ErrInvariant

type Journal interface {
	Candle(c models.Candle)
	Trade(ctx context.Context, t models.Trade) error
}

type Publisher interface {
	Publish(ev models.Event)
}

type Config struct {
	Symbol string
	Mode   string
	// ConsumeZones retires the zone behind every proposal.
	ConsumeZones bool
	// Hours limits entries to the regular session. The zero value never closes.
	Hours feed.TradingHours
}

// Deps are the collaborators the pipeline drives. Journal, Publisher and
// Health may be nil.
type Deps struct {
	Detector  *strategy.Detector
	Trend     *strategy.TrendFilter
	Generator *strategy.Generator
	Gate      *confirm.Gate
	Risk      *risk.Manager
	Engine    *execution.Engine
	Portfolio *portfolio.Portfolio
	Journal   Journal
	Publisher Publisher
	Metrics   *metrics.Metrics
	Health    *healthsvc.State
}

// Pipeline is the single writer of strategy, risk and portfolio state. Every
// candle passes through Step in feed order; confirmations from other
// goroutines reach it through the gate's outcome channel.
type Pipeline struct {
	cfg Config
	Deps

	trading   atomic.Bool
	inSession bool
	state     atomic.Pointer[models.EngineState]

	processed int64
	last      *models.Candle
}

func NewPipeline(cfg Config, d Deps) *Pipeline {
	if d.Metrics == nil {
		d.Metrics = metrics.New(nil)
	}
	p := &Pipeline{cfg: cfg, Deps: d}
	p.trading.Store(true)
	p.snapshot()
	return p
}

type feedItem struct {
	ev  models.FeedEvent
	err error
}

// Run consumes f until it ends, ctx is cancelled or an invariant breaks.
// A finite feed ending with io.EOF is a clean stop.
func (p *Pipeline) Run(ctx context.Context, f feed.Feed) error {
	items := make(chan feedItem)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			ev, err := f.Next(ctx)
			select {
			case items <- feedItem{ev: ev, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	logger.Info("[PIPE] run %s %s", p.cfg.Mode, p.cfg.Symbol)
	for {
		select {
		case <-ctx.Done():
			p.Gate.Cancel("shutdown")
			_ = p.drainOutcomes(context.Background())
			return ctx.Err()

		case out := <-p.Gate.Outcomes():
			if err := p.onOutcome(ctx, out); err != nil {
				return err
			}
			p.snapshot()

		case it := <-items:
			if errors.Is(it.err, io.EOF) {
				p.Gate.Cancel("feed closed")
				if err := p.drainOutcomes(ctx); err != nil {
					return err
				}
				p.snapshot()
				logger.Info("[PIPE] feed closed after %d candles", p.processed)
				return nil
			}
			if it.err != nil {
				if ctx.Err() != nil {
					continue
				}
				return fmt.Errorf("feed: %w", it.err)
			}
			if err := p.Handle(ctx, it.ev); err != nil {
				logger.Error("[PIPE] stopped: %v", err)
				return err
			}
		}
	}
}

// Handle applies one feed event.
func (p *Pipeline) Handle(ctx context.Context, ev models.FeedEvent) error {
	switch ev.Kind {
	case models.FeedSessionReset:
		return p.resetSession(ctx, ev)
	case models.FeedCandle:
		return p.Step(ctx, ev.Candle)
	default:
		return fmt.Errorf("%w: feed event kind %d", ErrInvariant, ev.Kind)
	}
}

// Warmup primes the trend filter and the detector without producing signals.
func (p *Pipeline) Warmup(ctx context.Context, f feed.Feed) (int, error) {
	n := 0
	for {
		ev, err := f.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("warmup: %w", err)
		}
		switch ev.Kind {
		case models.FeedSessionReset:
			p.Detector.Reset()
			p.Trend.Reset()
		case models.FeedCandle:
			p.Trend.Observe(ev.Candle.Close)
			if _, err := p.Detector.OnCandle(ev.Candle); err != nil {
				return n, err
			}
			p.last = ev.Candle
			n++
		}
	}
	p.snapshot()
	logger.Info("[PIPE] warmup: %d candles, %d open zones, trend %s", n, p.Detector.Len(), p.Trend.Flow())
	return n, nil
}

// Step runs one candle through the whole chain.
func (p *Pipeline) Step(ctx context.Context, c *models.Candle) error {
	span, ctx := tracing.StartSpan(ctx, "pipeline.step",
		opentracing.Tag{Key: "candle.index", Value: c.Index},
	)
	defer span.Finish()

	if err := p.step(ctx, c); err != nil {
		tracing.Fail(span, err)
		return err
	}
	p.processed++
	p.last = c
	p.snapshot()
	return nil
}

func (p *Pipeline) step(ctx context.Context, c *models.Candle) error {
	p.Metrics.Candles.Inc()
	if p.Journal != nil {
		p.Journal.Candle(*c)
	}
	if p.Health != nil {
		p.Health.TouchCandle(c.Time)
	}
	p.publish(c.Time, models.EventCandle, models.CandlePayload{Candle: c, Metrics: c.Metrics()})

	equity := p.mark(c)

	p.Gate.Tick(c.Time)
	if err := p.drainOutcomes(ctx); err != nil {
		return err
	}

	if err := p.protect(ctx, c, equity); err != nil {
		return err
	}

	p.Trend.Observe(c.Close)
	sma, ready := p.Trend.SMA()
	flow := p.Trend.Flow()
	p.publish(c.Time, models.EventSMA, models.SMAPayload{Value: sma, Ready: ready, Flow: flow})

	events, err := p.Detector.OnCandle(c)
	if err != nil {
		return err
	}
	p.observeZones(c, events)

	_, pending := p.Gate.Pending()
	prop, suppressed := p.Generator.Evaluate(strategy.Input{
		Candle:         c,
		Events:         events,
		Flow:           flow,
		Position:       p.Portfolio.Position(),
		Pending:        pending,
		TradingEnabled: p.trading.Load() && p.regularSession(c),
	})
	if suppressed > 0 {
		p.Metrics.TouchesSuppressed.Add(float64(suppressed))
		logger.Debug("[PIPE] %d touches while a signal is pending", suppressed)
	}
	if prop == nil {
		return nil
	}
	return p.propose(ctx, prop, flow)
}

// regularSession reports whether entries are allowed at c. Stops and exits
// ignore it.
func (p *Pipeline) regularSession(c *models.Candle) bool {
	open := p.cfg.Hours.Contains(c.Time)
	if open != p.inSession {
		p.inSession = open
		if open {
			logger.Info("[PIPE] regular session open at %s", c.Time.Format(time.RFC3339))
		} else {
			logger.Info("[PIPE] outside regular session at %s, entries paused", c.Time.Format(time.RFC3339))
		}
	}
	return open
}

func (p *Pipeline) mark(c *models.Candle) float64 {
	equity := p.Portfolio.Mark(c)
	dd := p.Risk.ObserveEquity(equity)
	p.Metrics.Equity.Set(equity)
	p.Metrics.Drawdown.Set(dd)
	p.publish(c.Time, models.EventPortfolio, models.PortfolioPayload{Value: equity, Cash: p.Portfolio.Cash()})
	return equity
}

// protect originates forced exits: stop loss first, then the drawdown breaker,
// which also turns trading off.
func (p *Pipeline) protect(ctx context.Context, c *models.Candle, equity float64) error {
	pos := p.Portfolio.Position()
	if pos == nil {
		return nil
	}
	if sig, ok := p.Risk.CheckStop(pos, c); ok {
		return p.forceExit(ctx, sig)
	}
	if sig, ok := p.Risk.CheckDrawdown(pos, c, equity); ok {
		p.SetTradingEnabled(false, "drawdown breaker")
		return p.forceExit(ctx, sig)
	}
	return nil
}

// forceExit bypasses the gate. A pending signal is cancelled first so a late
// confirmation cannot act on the closed position.
func (p *Pipeline) forceExit(ctx context.Context, sig models.Signal) error {
	if _, pending := p.Gate.Pending(); pending {
		p.Gate.Cancel("forced exit")
		if err := p.drainOutcomes(ctx); err != nil {
			return err
		}
	}
	logger.Warn("[PIPE] forced exit: %s", sig.Reason)
	p.Metrics.Signals.WithLabelValues(string(sig.Type), "forced").Inc()
	p.publish(sig.CreatedAt, models.EventExitSignal, sig)
	return p.execute(ctx, sig)
}

func (p *Pipeline) observeZones(c *models.Candle, events []models.ZoneEvent) {
	for _, ev := range events {
		p.Metrics.ZoneEvents.WithLabelValues(string(ev.Kind)).Inc()
	}
	snap := p.Detector.Snapshot()
	p.Metrics.OpenZones.WithLabelValues(string(models.ZoneBullish)).Set(float64(len(snap.Bullish)))
	p.Metrics.OpenZones.WithLabelValues(string(models.ZoneBearish)).Set(float64(len(snap.Bearish)))
	p.publish(c.Time, models.EventFVG, snap)
}

func (p *Pipeline) propose(ctx context.Context, prop *strategy.Proposal, flow models.Flow) error {
	if p.cfg.ConsumeZones {
		p.Detector.Consume(prop.Zone)
	}
	sig := prop.Signal
	p.Metrics.Signals.WithLabelValues(string(sig.Type), "proposed").Inc()

	out, decided, err := p.Gate.Propose(sig, p.Generator.Bullish(flow))
	if err != nil {
		// the generator never proposes while a signal is pending
		return fmt.Errorf("%w: propose %s: %v", ErrInvariant, sig.ID, err)
	}
	if !decided {
		return nil
	}
	return p.onOutcome(ctx, out)
}

func (p *Pipeline) drainOutcomes(ctx context.Context) error {
	for {
		select {
		case out := <-p.Gate.Outcomes():
			if err := p.onOutcome(ctx, out); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (p *Pipeline) onOutcome(ctx context.Context, out confirm.Outcome) error {
	p.Metrics.Signals.WithLabelValues(string(out.Signal.Type), strings.ToLower(string(out.State))).Inc()
	if out.State != confirm.StateConfirmed {
		return nil
	}
	return p.execute(ctx, out.Signal)
}

// execute sizes, submits and books a confirmed signal. Vetoes and venue
// rejections are reported and leave the book as it was.
func (p *Pipeline) execute(ctx context.Context, sig models.Signal) error {
	order, veto := p.Risk.Evaluate(sig, p.Portfolio.Snapshot())
	if veto != nil {
		p.Metrics.Vetoes.WithLabelValues(string(veto.Reason)).Inc()
		logger.Info("[PIPE] veto %s %s: %s (%s)", sig.Type, sig.ID, veto.Reason, veto.Detail)
		p.publish(sig.CreatedAt, models.EventRiskVeto, models.VetoPayload{Signal: sig, Veto: *veto})
		return nil
	}

	_, trade, err := p.Engine.Submit(ctx, order)
	var rej *execution.RejectedError
	switch {
	case errors.As(err, &rej):
		p.publish(order.Time, models.EventTradeFailed, models.TradeFailedPayload{Order: order, Reason: rej.Reason})
		return nil
	case err != nil:
		return err
	}

	if p.Journal != nil {
		if err := p.Journal.Trade(ctx, trade); err != nil {
			logger.Error("[PIPE] journal trade %s: %v", trade.OrderID, err)
		}
	}
	p.publish(trade.Time, models.EventTradeExecuted, trade)
	p.publishPosition(trade.Time)
	p.publish(trade.Time, models.EventPortfolio, models.PortfolioPayload{Value: p.Portfolio.Equity(), Cash: p.Portfolio.Cash()})
	return nil
}

func (p *Pipeline) publishPosition(at time.Time) {
	var payload models.PositionPayload
	if pos := p.Portfolio.Position(); pos != nil {
		payload = models.PositionPayload{Quantity: pos.Quantity, EntryPrice: pos.Entry, StopLoss: pos.StopLoss}
	}
	p.publish(at, models.EventPosition, payload)
}

func (p *Pipeline) resetSession(ctx context.Context, ev models.FeedEvent) error {
	logger.Info("[PIPE] session reset %s", ev.Session.Format("2006-01-02"))
	p.Detector.Reset()
	p.Trend.Reset()
	p.Gate.Cancel("session reset")
	if err := p.drainOutcomes(ctx); err != nil {
		return err
	}
	p.publish(ev.Session, models.EventFVG, p.Detector.Snapshot())
	p.snapshot()
	return nil
}

// SetTradingEnabled gates new entries. Exits and forced exits keep working.
func (p *Pipeline) SetTradingEnabled(enabled bool, reason string) {
	if p.trading.Swap(enabled) == enabled {
		return
	}
	logger.Info("[PIPE] trading %v (%s)", enabled, reason)
	p.publish(time.Time{}, models.EventTradingStatus, models.TradingStatusPayload{Enabled: enabled, Reason: reason})
}

func (p *Pipeline) TradingEnabled() bool { return p.trading.Load() }

// Confirm forwards an operator decision to the gate.
func (p *Pipeline) Confirm(id string, accepted bool) error {
	_, err := p.Gate.Confirm(id, accepted)
	return err
}

// Snapshot is safe to call from any goroutine.
func (p *Pipeline) Snapshot() models.EngineState {
	st := *p.state.Load()
	st.TradingEnabled = p.trading.Load()
	st.GateState = string(p.Gate.State())
	if sig, ok := p.Gate.Pending(); ok {
		st.Pending = &sig
	}
	return st
}

// snapshot stores a fresh immutable view. Pipeline goroutine only.
func (p *Pipeline) snapshot() {
	sma, ready := p.Trend.SMA()
	pf := p.Portfolio.Snapshot()
	p.state.Store(&models.EngineState{
		Symbol:    p.cfg.Symbol,
		Mode:      p.cfg.Mode,
		Processed: p.processed,
		Candle:    p.last,
		Zones:     p.Detector.Snapshot(),
		SMA:       models.SMAPayload{Value: sma, Ready: ready, Flow: p.Trend.Flow()},
		Portfolio: pf,
		Drawdown:  p.Risk.Drawdown(pf.Equity),
	})
}

func (p *Pipeline) publish(at time.Time, t models.EventType, payload any) {
	if p.Publisher == nil {
		return
	}
	p.Publisher.Publish(models.Event{Type: t, Time: at, Payload: payload})
}

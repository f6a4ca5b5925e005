package service

import (
	"errors"
	"sync"
	"time"

	"fvg_bot/internal/models"
	"fvg_bot/pkg/logger"
)

type State string

const (
	StateNone      State = "NONE"
	StatePending   State = "PENDING"
	StateConfirmed State = "CONFIRMED"
	StateDeclined  State = "DECLINED"
	StateTimeout   State = "TIMEOUT"
)

var (
	ErrPending       = errors.New("confirm: a signal is already pending")
	ErrNoPending     = errors.New("confirm: no pending signal")
	ErrUnknownSignal = errors.New("confirm: signal is not the pending one")
)

type Publisher interface {
	Publish(ev models.Event)
}

type Config struct {
	Timeout time.Duration
	// CandleClock expires signals from Tick instead of wall-clock timers.
	CandleClock  bool
	Auto         bool
	RequireEntry bool
	RequireExit  bool
}

type Outcome struct {
	Signal models.Signal
	State  State
	Reason string
}

// Gate holds at most one signal between proposal and decision.
type Gate struct {
	cfg Config
	pub Publisher
	now func() time.Time

	mu      sync.Mutex
	state   State
	pending *models.Signal
	timer   *time.Timer

	outcomes chan Outcome
}

func NewGate(cfg Config, pub Publisher) *Gate {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Gate{
		cfg:      cfg,
		pub:      pub,
		now:      time.Now,
		state:    StateNone,
		outcomes: make(chan Outcome, 16),
	}
}

// Outcomes delivers every decision that was not returned by Propose.
func (g *Gate) Outcomes() <-chan Outcome { return g.outcomes }

// Propose opens sig for confirmation. When policy decides at once the outcome
// is returned with decided=true and nothing is sent on Outcomes.
func (g *Gate) Propose(sig models.Signal, flowBullish bool) (out Outcome, decided bool, err error) {
	g.mu.Lock()
	if g.state == StatePending {
		g.mu.Unlock()
		return Outcome{}, false, ErrPending
	}
	g.state = StatePending

	base := g.now()
	if g.cfg.CandleClock {
		base = sig.CreatedAt
	}
	sig.ExpiresAt = base.Add(g.cfg.Timeout)

	reason, auto := g.autoDecision(sig, flowBullish)
	if auto {
		g.state = StateNone
		g.mu.Unlock()

		g.publish(signalEventType(sig), sig)
		out = Outcome{Signal: sig, State: StateConfirmed, Reason: reason}
		g.publish(models.EventSignalResolved, models.SignalOutcomePayload{Signal: sig, State: string(out.State), Reason: reason})
		return out, true, nil
	}

	g.pending = &sig
	if !g.cfg.CandleClock {
		id := sig.ID
		g.timer = time.AfterFunc(g.cfg.Timeout, func() {
			_, _ = g.resolve(id, StateTimeout, "expired")
		})
	}
	g.mu.Unlock()

	g.publish(signalEventType(sig), sig)
	logger.Info("[GATE] pending %s %s %s qty=%g @ %g until %s", sig.ID, sig.Type, sig.Symbol, sig.Quantity, sig.Price, sig.ExpiresAt.Format(time.RFC3339))
	return Outcome{}, false, nil
}

func (g *Gate) autoDecision(sig models.Signal, flowBullish bool) (string, bool) {
	switch sig.Type {
	case models.SignalEntry:
		if !g.cfg.RequireEntry {
			return "entry confirmation off", true
		}
		if g.cfg.Auto && sig.Side == models.SideBuy && flowBullish {
			return "auto: flow aligned", true
		}
	case models.SignalExit:
		if !g.cfg.RequireExit {
			return "exit confirmation off", true
		}
	}
	return "", false
}

// Confirm answers the pending signal. An empty id means whatever is pending.
func (g *Gate) Confirm(id string, accepted bool) (Outcome, error) {
	if !accepted {
		return g.Decline(id)
	}
	return g.resolve(id, StateConfirmed, "accepted")
}

func (g *Gate) Decline(id string) (Outcome, error) {
	return g.resolve(id, StateDeclined, "declined")
}

// Tick expires the pending signal against candle time. No-op on the wall clock.
func (g *Gate) Tick(now time.Time) {
	if !g.cfg.CandleClock {
		return
	}
	g.mu.Lock()
	if g.state != StatePending || now.Before(g.pending.ExpiresAt) {
		g.mu.Unlock()
		return
	}
	id := g.pending.ID
	g.mu.Unlock()

	_, _ = g.resolve(id, StateTimeout, "expired")
}

// Cancel forces a pending signal to TIMEOUT (feed closed, session reset).
func (g *Gate) Cancel(reason string) {
	_, _ = g.resolve("", StateTimeout, reason)
}

func (g *Gate) Pending() (models.Signal, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return models.Signal{}, false
	}
	return *g.pending, true
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// resolve is the single transition out of PENDING. Whoever gets here first wins.
func (g *Gate) resolve(id string, to State, reason string) (Outcome, error) {
	g.mu.Lock()
	if g.state != StatePending || g.pending == nil {
		g.mu.Unlock()
		return Outcome{}, ErrNoPending
	}
	if id != "" && id != g.pending.ID {
		g.mu.Unlock()
		return Outcome{}, ErrUnknownSignal
	}

	out := Outcome{Signal: *g.pending, State: to, Reason: reason}
	g.pending = nil
	g.state = StateNone
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.mu.Unlock()

	payload := models.SignalOutcomePayload{Signal: out.Signal, State: string(to), Reason: reason}
	if to == StateTimeout {
		g.publish(models.EventSignalTimeout, payload)
	} else {
		g.publish(models.EventSignalResolved, payload)
	}
	logger.Info("[GATE] %s %s: %s", out.Signal.ID, to, reason)

	select {
	case g.outcomes <- out:
	default:
		logger.Error("[GATE] outcome queue full, dropped %s %s", out.Signal.ID, to)
	}
	return out, nil
}

func (g *Gate) publish(t models.EventType, payload any) {
	if g.pub == nil {
		return
	}
	g.pub.Publish(models.Event{Type: t, Time: g.now(), Payload: payload})
}

func signalEventType(sig models.Signal) models.EventType {
	if sig.Type == models.SignalExit {
		return models.EventExitSignal
	}
	return models.EventEntrySignal
}

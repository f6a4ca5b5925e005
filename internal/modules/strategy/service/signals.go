package service

import (
	"fmt"

	"github.com/google/uuid"

	"fvg_bot/internal/models"
)

type GeneratorConfig struct {
	Symbol     string
	DefaultQty float64
	// UndeterminedAsBullish decides how a filter without enough history is read.
	UndeterminedAsBullish bool
}

// Input is everything the generator looks at for one candle.
type Input struct {
	Candle         *models.Candle
	Events         []models.ZoneEvent
	Flow           models.Flow
	Position       *models.Position
	Pending        bool
	TradingEnabled bool
}

type Proposal struct {
	Signal models.Signal
	Zone   models.ZoneKey
}

// Generator turns touches into at most one proposal per candle.
type Generator struct {
	cfg   GeneratorConfig
	newID func() string

	suppressed int
}

func NewGenerator(cfg GeneratorConfig) *Generator {
	if cfg.DefaultQty <= 0 {
		cfg.DefaultQty = 1
	}
	return &Generator{cfg: cfg, newID: uuid.NewString}
}

// Bullish maps flow to a direction using the configured undetermined policy.
func (g *Generator) Bullish(flow models.Flow) bool {
	switch flow {
	case models.FlowBullish:
		return true
	case models.FlowUndetermined:
		return g.cfg.UndeterminedAsBullish
	default:
		return false
	}
}

// Bearish is not the negation of Bullish: undetermined flow is never bearish.
func (g *Generator) Bearish(flow models.Flow) bool {
	return flow == models.FlowBearish
}

// Evaluate returns the proposal for this candle, if any. Touches that arrive
// while a signal is pending are counted and dropped.
func (g *Generator) Evaluate(in Input) (*Proposal, int) {
	touches := 0
	var out *Proposal
	for _, ev := range in.Events {
		if ev.Kind != models.ZoneTouch {
			continue
		}
		touches++
		if in.Pending || out != nil {
			continue
		}

		switch ev.Zone.Side {
		case models.ZoneBullish:
			if in.TradingEnabled && in.Position == nil && g.Bullish(in.Flow) {
				out = g.entry(in, ev.Zone)
			}
		case models.ZoneBearish:
			if in.Position != nil && g.Bearish(in.Flow) {
				out = g.exit(in, ev.Zone)
			}
		}
	}

	suppressed := 0
	if in.Pending {
		suppressed = touches
		g.suppressed += touches
	}
	return out, suppressed
}

// Suppressed is the running count of touches dropped while a signal was pending.
func (g *Generator) Suppressed() int { return g.suppressed }

func (g *Generator) entry(in Input, z models.FairValueGap) *Proposal {
	c := in.Candle
	return &Proposal{
		Zone: z.Key(),
		Signal: models.Signal{
			ID:          g.newID(),
			Type:        models.SignalEntry,
			Side:        models.SideBuy,
			Symbol:      g.cfg.Symbol,
			Price:       c.Close,
			Quantity:    g.cfg.DefaultQty,
			CreatedAt:   c.Time,
			Reason:      fmt.Sprintf("bullish touch %s, flow %s", z.Key(), in.Flow),
			CandleIndex: c.Index,
		},
	}
}

func (g *Generator) exit(in Input, z models.FairValueGap) *Proposal {
	c := in.Candle
	pnl := in.Position.UnrealizedPnL(c.Close)
	return &Proposal{
		Zone: z.Key(),
		Signal: models.Signal{
			ID:          g.newID(),
			Type:        models.SignalExit,
			Side:        models.SideSell,
			Symbol:      g.cfg.Symbol,
			Price:       c.Close,
			Quantity:    in.Position.Quantity,
			PnL:         &pnl,
			CreatedAt:   c.Time,
			Reason:      fmt.Sprintf("bearish touch %s, flow %s", z.Key(), in.Flow),
			CandleIndex: c.Index,
		},
	}
}

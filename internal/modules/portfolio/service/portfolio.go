package service

import (
	"fmt"
	"sync"
	"time"

	"fvg_bot/internal/models"
	"fvg_bot/pkg/logger"
)

const cashEpsilon = 1e-6

// Portfolio is the authoritative book. Only the pipeline writes to it; the
// lock lets observers take snapshots from other goroutines.
type Portfolio struct {
	mu sync.RWMutex

	initial   float64
	cash      float64
	pos       *models.Position
	trades    []models.Trade
	curve     []models.EquityPoint
	lastPrice float64

	curveLimit int
}

func NewPortfolio(initialCash float64) *Portfolio {
	return &Portfolio{initial: initialCash, cash: initialCash}
}

// SetCurveLimit bounds the equity curve to n points; n <= 0 means unbounded.
// A full curve is halved by dropping every other point, so it still spans
// the whole run at a coarser resolution.
func (p *Portfolio) SetCurveLimit(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.curveLimit = n
	p.trimCurveLocked()
}

func (p *Portfolio) recordLocked(t time.Time) {
	p.curve = append(p.curve, models.EquityPoint{Time: t, Equity: p.equityLocked()})
	p.trimCurveLocked()
}

func (p *Portfolio) trimCurveLocked() {
	if p.curveLimit <= 0 {
		return
	}
	for len(p.curve) > p.curveLimit {
		last := p.curve[len(p.curve)-1]
		kept := p.curve[:0]
		for i := 0; i < len(p.curve)-1; i += 2 {
			kept = append(kept, p.curve[i])
		}
		p.curve = append(kept, last)
		if len(p.curve) <= 2 {
			break
		}
	}
}

// Apply books a fill. It is the only way cash or the position change.
func (p *Portfolio) Apply(f models.Fill) (models.Trade, error) {
	if f.Quantity <= 0 || f.Price <= 0 {
		return models.Trade{}, fmt.Errorf("%w: fill %s qty=%g price=%g", models.ErrInvariant, f.OrderID, f.Quantity, f.Price)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	total := f.Quantity * f.Price
	trade := models.Trade{
		Time:     f.Time,
		Symbol:   f.Symbol,
		Side:     f.Side,
		Quantity: f.Quantity,
		Price:    f.Price,
		Total:    total,
		OrderID:  f.OrderID,
	}

	switch f.Side {
	case models.SideBuy:
		if p.pos != nil {
			return models.Trade{}, fmt.Errorf("%w: buy while holding %g %s", models.ErrInvariant, p.pos.Quantity, p.pos.Symbol)
		}
		// a broker fill above the sized price is real; book it and let cash go short
		if total > p.cash+cashEpsilon {
			logger.Warn("[PORTFOLIO] %s buy %.2f overdraws cash %.2f by %.2f", f.OrderID, total, p.cash, total-p.cash)
		}
		p.cash -= total
		p.pos = &models.Position{
			Symbol:   f.Symbol,
			Quantity: f.Quantity,
			Entry:    f.Price,
			StopLoss: f.StopLoss,
			OpenedAt: f.Time,
		}

	case models.SideSell:
		if p.pos == nil {
			return models.Trade{}, fmt.Errorf("%w: sell %s while flat", models.ErrInvariant, f.Symbol)
		}
		if f.Quantity > p.pos.Quantity+cashEpsilon {
			return models.Trade{}, fmt.Errorf("%w: sell %g of %g", models.ErrInvariant, f.Quantity, p.pos.Quantity)
		}
		pnl := (f.Price - p.pos.Entry) * f.Quantity
		trade.PnL = &pnl
		p.cash += total

		rest := p.pos.Quantity - f.Quantity
		if rest <= cashEpsilon {
			p.pos = nil
		} else {
			next := *p.pos
			next.Quantity = rest
			p.pos = &next
		}

	default:
		return models.Trade{}, fmt.Errorf("%w: fill side %q", models.ErrInvariant, f.Side)
	}

	p.trades = append(p.trades, trade)
	p.lastPrice = f.Price
	p.recordLocked(f.Time)
	return trade, nil
}

// Mark revalues the position at c's close and records an equity point.
func (p *Portfolio) Mark(c *models.Candle) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastPrice = c.Close
	p.recordLocked(c.Time)
	return p.equityLocked()
}

func (p *Portfolio) equityLocked() float64 {
	if p.pos == nil {
		return p.cash
	}
	price := p.lastPrice
	if price <= 0 {
		price = p.pos.Entry
	}
	return p.cash + p.pos.Quantity*price
}

func (p *Portfolio) Equity() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.equityLocked()
}

func (p *Portfolio) Cash() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cash
}

// Position returns a copy, nil when flat.
func (p *Portfolio) Position() *models.Position {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.pos == nil {
		return nil
	}
	cp := *p.pos
	return &cp
}

func (p *Portfolio) Snapshot() models.PortfolioState {
	p.mu.RLock()
	defer p.mu.RUnlock()

	st := models.PortfolioState{
		Cash:      p.cash,
		Equity:    p.equityLocked(),
		LastPrice: p.lastPrice,
		Trades:    make([]models.Trade, len(p.trades)),
	}
	for i, t := range p.trades {
		if t.PnL != nil {
			v := *t.PnL
			t.PnL = &v
		}
		st.Trades[i] = t
	}
	if p.pos != nil {
		cp := *p.pos
		st.Position = &cp
	}
	return st
}

func (p *Portfolio) Curve() []models.EquityPoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]models.EquityPoint, len(p.curve))
	copy(out, p.curve)
	return out
}

func (p *Portfolio) Initial() float64 { return p.initial }

package service

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"fvg_bot/internal/helper"
	"fvg_bot/internal/models"
)

type Config struct {
	RiskPerTrade   float64 // share of equity lost if the stop is hit
	CashAtRisk     float64 // cap on the share of cash put into one position
	StopLossPct    float64
	MaxDrawdownPct float64
	LotSize        float64
}

// Manager sizes entries, vetoes unsafe ones and originates forced exits.
// Single-goroutine use, like the rest of the pipeline.
type Manager struct {
	cfg   Config
	peak  float64
	newID func() string
}

func NewManager(cfg Config, initialEquity float64) *Manager {
	if cfg.LotSize <= 0 {
		cfg.LotSize = 1
	}
	return &Manager{cfg: cfg, peak: initialEquity, newID: uuid.NewString}
}

// ObserveEquity tracks the high-water mark and returns the current drawdown.
func (m *Manager) ObserveEquity(equity float64) float64 {
	if equity > m.peak {
		m.peak = equity
	}
	return m.Drawdown(equity)
}

func (m *Manager) Drawdown(equity float64) float64 {
	if m.peak <= 0 || equity >= m.peak {
		return 0
	}
	return (m.peak - equity) / m.peak
}

func (m *Manager) Peak() float64 { return m.peak }

// Breached reports a drawdown beyond the configured ceiling.
func (m *Manager) Breached(equity float64) bool {
	return m.Drawdown(equity) > m.cfg.MaxDrawdownPct
}

func (m *Manager) StopFor(entry float64) float64 {
	return entry * (1 - m.cfg.StopLossPct)
}

// Evaluate turns a confirmed signal into an order or a veto.
func (m *Manager) Evaluate(sig models.Signal, pf models.PortfolioState) (models.Order, *models.Veto) {
	if sig.Type == models.SignalExit {
		return m.exit(sig, pf)
	}
	return m.entry(sig, pf)
}

func (m *Manager) entry(sig models.Signal, pf models.PortfolioState) (models.Order, *models.Veto) {
	if pf.Position != nil {
		return models.Order{}, &models.Veto{
			Reason: models.VetoPositionOpen,
			Detail: fmt.Sprintf("holding %g %s", pf.Position.Quantity, pf.Position.Symbol),
		}
	}
	if dd := m.Drawdown(pf.Equity); dd > m.cfg.MaxDrawdownPct {
		return models.Order{}, &models.Veto{
			Reason: models.VetoDrawdownCeiling,
			Detail: fmt.Sprintf("drawdown %.2f%% above %.2f%%", dd*100, m.cfg.MaxDrawdownPct*100),
		}
	}

	price := sig.Price
	stop := m.StopFor(price)
	if price <= 0 || pf.Cash < price {
		return models.Order{}, &models.Veto{
			Reason: models.VetoInsufficientEquity,
			Detail: fmt.Sprintf("cash %.2f below price %.2f", pf.Cash, price),
		}
	}

	byRisk := pf.Equity * m.cfg.RiskPerTrade / (price - stop)
	byCash := pf.Cash * m.cfg.CashAtRisk / price
	qty := helper.RoundDownToTick(math.Min(byRisk, byCash), m.cfg.LotSize)
	if qty < m.cfg.LotSize {
		return models.Order{}, &models.Veto{
			Reason: models.VetoInsufficientEquity,
			Detail: fmt.Sprintf("size %.4f below one lot (equity %.2f, cash %.2f)", qty, pf.Equity, pf.Cash),
		}
	}

	return models.Order{
		Symbol:   sig.Symbol,
		Side:     models.SideBuy,
		Quantity: qty,
		Price:    price,
		StopLoss: stop,
		Time:     sig.CreatedAt,
		Reason:   sig.Reason,
	}, nil
}

// exit is always approved while a position exists.
func (m *Manager) exit(sig models.Signal, pf models.PortfolioState) (models.Order, *models.Veto) {
	if pf.Position == nil {
		return models.Order{}, &models.Veto{Reason: models.VetoNoPosition, Detail: "exit for a flat book"}
	}
	return models.Order{
		Symbol:   pf.Position.Symbol,
		Side:     models.SideSell,
		Quantity: pf.Position.Quantity,
		Price:    sig.Price,
		Time:     sig.CreatedAt,
		Reason:   sig.Reason,
	}, nil
}

// CheckStop originates a forced exit when c closes at or below the stop.
func (m *Manager) CheckStop(pos *models.Position, c *models.Candle) (models.Signal, bool) {
	if pos == nil || c.Close > pos.StopLoss {
		return models.Signal{}, false
	}
	return m.forcedExit(pos, c, fmt.Sprintf("stop loss: close %.2f <= stop %.2f", c.Close, pos.StopLoss)), true
}

// CheckDrawdown originates a forced exit when the drawdown ceiling is breached with a position open.
func (m *Manager) CheckDrawdown(pos *models.Position, c *models.Candle, equity float64) (models.Signal, bool) {
	if pos == nil || !m.Breached(equity) {
		return models.Signal{}, false
	}
	dd := m.Drawdown(equity)
	return m.forcedExit(pos, c, fmt.Sprintf("drawdown breaker: %.2f%% from peak %.2f", dd*100, m.peak)), true
}

func (m *Manager) forcedExit(pos *models.Position, c *models.Candle, reason string) models.Signal {
	pnl := pos.UnrealizedPnL(c.Close)
	return models.Signal{
		ID:          m.newID(),
		Type:        models.SignalExit,
		Side:        models.SideSell,
		Symbol:      pos.Symbol,
		Price:       c.Close,
		Quantity:    pos.Quantity,
		PnL:         &pnl,
		CreatedAt:   c.Time,
		ExpiresAt:   c.Time,
		Reason:      reason,
		Forced:      true,
		CandleIndex: c.Index,
	}
}

package service

import "fvg_bot/internal/models"

// Stats summarises a run. Only closing trades count as round trips.
type Stats struct {
	RoundTrips   int     `json:"round_trips"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"`
	RealizedPnL  float64 `json:"realized_pnl"`
	ProfitFactor float64 `json:"profit_factor"`
	FinalEquity  float64 `json:"final_equity"`
	ReturnPct    float64 `json:"return_pct"`
	MaxDrawdown  float64 `json:"max_drawdown_pct"`
}

func (p *Portfolio) Stats() Stats {
	st := p.Snapshot()
	return ComputeStats(p.Initial(), st.Equity, st.Trades, p.Curve())
}

func ComputeStats(initial, final float64, trades []models.Trade, curve []models.EquityPoint) Stats {
	var (
		s          Stats
		gain, loss float64
	)
	for _, t := range trades {
		if t.PnL == nil {
			continue
		}
		s.RoundTrips++
		s.RealizedPnL += *t.PnL
		if *t.PnL > 0 {
			s.Wins++
			gain += *t.PnL
		} else {
			s.Losses++
			loss -= *t.PnL
		}
	}
	if s.RoundTrips > 0 {
		s.WinRate = float64(s.Wins) / float64(s.RoundTrips)
	}
	if loss > 0 {
		s.ProfitFactor = gain / loss
	}

	s.FinalEquity = final
	if initial > 0 {
		s.ReturnPct = (final - initial) / initial * 100
	}

	peak := initial
	for _, pt := range curve {
		if pt.Equity > peak {
			peak = pt.Equity
		}
		if peak > 0 {
			if dd := (peak - pt.Equity) / peak * 100; dd > s.MaxDrawdown {
				s.MaxDrawdown = dd
			}
		}
	}
	return s
}

package service

import (
	"fmt"
	"strings"

	"fvg_bot/internal/models"
)

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func f2(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func formatSignal(sig models.Signal) string {
	var b strings.Builder
	kind := "📈 ENTRY"
	if sig.Type == models.SignalExit {
		kind = "📉 EXIT"
	}
	if sig.Forced {
		kind += " (forced)"
	}
	fmt.Fprintf(&b, "%s %s %s\n", kind, sig.Side, sig.Symbol)
	fmt.Fprintf(&b, "qty: %g @ %s\n", sig.Quantity, f2(sig.Price))
	if sig.PnL != nil {
		fmt.Fprintf(&b, "P/L: %s\n", f2(*sig.PnL))
	}
	fmt.Fprintf(&b, "%s\n", sig.Reason)
	if !sig.ExpiresAt.IsZero() {
		fmt.Fprintf(&b, "expires %s", sig.ExpiresAt.Format("15:04:05"))
	}
	return b.String()
}

func formatOutcome(p models.SignalOutcomePayload) string {
	switch p.State {
	case "CONFIRMED":
		return "✅ confirmed"
	case "DECLINED":
		return "❌ declined"
	default:
		return "⏳ " + strings.ToLower(p.State) + ": " + p.Reason
	}
}

func formatTrade(t models.Trade) string {
	s := fmt.Sprintf("💰 %s %g %s @ %s = %s", t.Side, t.Quantity, t.Symbol, f2(t.Price), f2(t.Total))
	if t.PnL != nil {
		s += " | P/L " + f2(*t.PnL)
	}
	return s
}

func formatVeto(v models.VetoPayload) string {
	return fmt.Sprintf("🛑 %s %s vetoed: %s (%s)", v.Signal.Type, v.Signal.Symbol, v.Veto.Reason, v.Veto.Detail)
}

func formatTradingStatus(p models.TradingStatusPayload) string {
	s := "trading " + onOff(p.Enabled)
	if p.Reason != "" {
		s += " (" + p.Reason + ")"
	}
	return s
}

func formatStatus(st models.EngineState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] trading %s\n", st.Symbol, st.Mode, onOff(st.TradingEnabled))
	fmt.Fprintf(&b, "equity %s cash %s drawdown %s%%\n",
		f2(st.Portfolio.Equity), f2(st.Portfolio.Cash), f2(st.Drawdown*100))
	if pos := st.Portfolio.Position; pos != nil {
		fmt.Fprintf(&b, "position %g @ %s stop %s\n", pos.Quantity, f2(pos.Entry), f2(pos.StopLoss))
	} else {
		b.WriteString("flat\n")
	}
	fmt.Fprintf(&b, "zones: %d bullish, %d bearish\n", len(st.Zones.Bullish), len(st.Zones.Bearish))
	if st.SMA.Ready {
		fmt.Fprintf(&b, "SMA %s (%s)\n", f2(st.SMA.Value), st.SMA.Flow)
	}
	if st.Pending != nil {
		fmt.Fprintf(&b, "pending %s %s", st.Pending.Type, st.Pending.ID)
	}
	return b.String()
}

package models

import "time"

type SignalType string

const (
	SignalEntry SignalType = "entry"
	SignalExit  SignalType = "exit"
)

// Signal is a trade proposal. Consumed exactly once by the confirmation gate.
type Signal struct {
	ID        string     `json:"id"`
	Type      SignalType `json:"type"`
	Side      Side       `json:"side"`
	Symbol    string     `json:"symbol"`
	Price     float64    `json:"price"`
	Quantity  float64    `json:"quantity"`
	PnL       *float64   `json:"pnl,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	Reason    string     `json:"reason"`
	// Forced signals come from the risk manager and skip confirmation.
	Forced      bool  `json:"forced"`
	CandleIndex int64 `json:"candle_index"`
}

type Flow string

const (
	FlowBullish      Flow = "bullish"
	FlowBearish      Flow = "bearish"
	FlowUndetermined Flow = "undetermined"
)

// Order is what the risk manager approves and the execution engine submits.
type Order struct {
	Symbol   string    `json:"symbol"`
	Side     Side      `json:"side"`
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price"`
	StopLoss float64   `json:"stop_loss,omitempty"`
	Time     time.Time `json:"time"`
	Reason   string    `json:"reason"`
}

type Fill struct {
	OrderID  string    `json:"order_id"`
	Symbol   string    `json:"symbol"`
	Side     Side      `json:"side"`
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price"`
	StopLoss float64   `json:"stop_loss,omitempty"`
	Time     time.Time `json:"time"`
}

type VetoReason string

const (
	VetoInsufficientEquity VetoReason = "insufficient_equity"
	VetoPositionOpen       VetoReason = "position_open"
	VetoDrawdownCeiling    VetoReason = "drawdown_ceiling"
	VetoNoPosition         VetoReason = "no_position"
)

// Veto is a policy rejection, not an error.
type Veto struct {
	Reason VetoReason `json:"reason"`
	Detail string     `json:"detail"`
}

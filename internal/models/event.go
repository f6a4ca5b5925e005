package models

import "time"

type EventType string

const (
	EventCandle         EventType = "candle_update"
	EventFVG            EventType = "fvg_update"
	EventPosition       EventType = "position_update"
	EventTradeExecuted  EventType = "trade_executed"
	EventTradeFailed    EventType = "trade_failed"
	EventPortfolio      EventType = "portfolio_update"
	EventSMA            EventType = "sma_update"
	EventTradingStatus  EventType = "trading_status"
	EventEntrySignal    EventType = "entry_signal"
	EventExitSignal     EventType = "exit_signal"
	EventSignalTimeout  EventType = "signal_timeout"
	EventSignalResolved EventType = "signal_resolved"
	EventRiskVeto       EventType = "risk_veto"
)

// Event is a self-contained outbound message. Seq orders events of the same type.
type Event struct {
	Type    EventType `json:"type"`
	Seq     uint64    `json:"seq"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload"`
}

type CandlePayload struct {
	Candle  *Candle       `json:"candle"`
	Metrics CandleMetrics `json:"metrics"`
}

type PositionPayload struct {
	Quantity   float64 `json:"quantity"`
	EntryPrice float64 `json:"entry_price"`
	StopLoss   float64 `json:"stop_loss"`
}

type PortfolioPayload struct {
	Value float64 `json:"value"`
	Cash  float64 `json:"cash"`
}

type SMAPayload struct {
	Value float64 `json:"value"`
	Ready bool    `json:"ready"`
	Flow  Flow    `json:"flow"`
}

type TradingStatusPayload struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty"`
}

type SignalOutcomePayload struct {
	Signal Signal `json:"signal"`
	State  string `json:"state"`
	Reason string `json:"reason,omitempty"`
}

type TradeFailedPayload struct {
	Order  Order  `json:"order"`
	Reason string `json:"reason"`
}

type VetoPayload struct {
	Signal Signal `json:"signal"`
	Veto   Veto   `json:"veto"`
}

// EngineState is an immutable view of the pipeline after its last step.
type EngineState struct {
	Symbol         string         `json:"symbol"`
	Mode           string         `json:"mode"`
	TradingEnabled bool           `json:"trading_enabled"`
	Processed      int64          `json:"processed"`
	Candle         *Candle        `json:"candle,omitempty"`
	Zones          ZoneSnapshot   `json:"zones"`
	SMA            SMAPayload     `json:"sma"`
	Portfolio      PortfolioState `json:"portfolio"`
	Pending        *Signal        `json:"pending,omitempty"`
	GateState      string         `json:"gate_state"`
	Drawdown       float64        `json:"drawdown"`
}

// Command is an inbound dashboard message.
type Command struct {
	Type    string         `json:"type"`
	Payload CommandPayload `json:"payload"`
}

type CommandPayload struct {
	ID        string `json:"id,omitempty"`
	Confirmed *bool  `json:"confirmed,omitempty"`
	Enabled   *bool  `json:"enabled,omitempty"`
}

const (
	CommandTradeConfirmation = "trade_confirmation"
	CommandToggleTrading     = "toggle_trading"
)

package models

import "time"

// Position is a long holding. Flat is represented by a nil *Position.
type Position struct {
	Symbol   string    `json:"symbol"`
	Quantity float64   `json:"quantity"`
	Entry    float64   `json:"entry_price"`
	StopLoss float64   `json:"stop_loss"`
	OpenedAt time.Time `json:"opened_at"`
}

func (p *Position) UnrealizedPnL(price float64) float64 {
	if p == nil {
		return 0
	}
	return (price - p.Entry) * p.Quantity
}

// Trade is an immutable fill record. PnL is set only when the trade closes a position.
type Trade struct {
	Time     time.Time `json:"datetime"`
	Symbol   string    `json:"symbol"`
	Side     Side      `json:"side"`
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price"`
	Total    float64   `json:"total"`
	PnL      *float64  `json:"pl,omitempty"`
	OrderID  string    `json:"order_id"`
}

type EquityPoint struct {
	Time   time.Time `json:"time"`
	Equity float64   `json:"equity"`
}

// PortfolioState is a deep copy; callers may keep or modify it freely.
type PortfolioState struct {
	Cash      float64   `json:"cash"`
	Equity    float64   `json:"equity"`
	LastPrice float64   `json:"last_price"`
	Position  *Position `json:"position,omitempty"`
	Trades    []Trade   `json:"trades"`
}

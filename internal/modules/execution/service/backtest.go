package service

import (
	"context"
	"fmt"

	"fvg_bot/internal/models"
)

// BacktestVenue fills every order at its limit price and time.
// Order ids are bt-1, bt-2, ... so replays are reproducible.
type BacktestVenue struct {
	n int
}

func NewBacktestVenue() *BacktestVenue { return &BacktestVenue{} }

func (v *BacktestVenue) Name() string { return "backtest" }

func (v *BacktestVenue) Execute(ctx context.Context, order models.Order) (models.Fill, error) {
	if err := ctx.Err(); err != nil {
		return models.Fill{}, err
	}
	if order.Price <= 0 {
		return models.Fill{}, fmt.Errorf("no price for %s", order.Symbol)
	}
	v.n++
	return models.Fill{
		OrderID:  fmt.Sprintf("bt-%d", v.n),
		Symbol:   order.Symbol,
		Side:     order.Side,
		Quantity: order.Quantity,
		Price:    order.Price,
		StopLoss: order.StopLoss,
		Time:     order.Time,
	}, nil
}

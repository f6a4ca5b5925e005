package service

import (
	"context"

	"fvg_bot/internal/models"
)

// Gateway is the broker side of a live venue.
type Gateway interface {
	SubmitOrder(ctx context.Context, symbol string, side models.Side, qty float64) (models.Fill, error)
}

type LiveVenue struct {
	gw Gateway
}

func NewLiveVenue(gw Gateway) *LiveVenue { return &LiveVenue{gw: gw} }

func (v *LiveVenue) Name() string { return "live" }

func (v *LiveVenue) Execute(ctx context.Context, order models.Order) (models.Fill, error) {
	return v.gw.SubmitOrder(ctx, order.Symbol, order.Side, order.Quantity)
}

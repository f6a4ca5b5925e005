package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"fvg_bot/internal/models"
	"fvg_bot/pkg/logger"
)

func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side models.Side, qty float64, clientOrderID string) (*Order, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("PlaceMarketOrder: qty <= 0")
	}
	body := map[string]string{
		"symbol":          symbol,
		"qty":             strconv.FormatFloat(qty, 'f', -1, 64),
		"side":            strings.ToLower(string(side)),
		"type":            "market",
		"time_in_force":   "day",
		"client_order_id": clientOrderID,
	}
	payload, err := sonic.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("PlaceMarketOrder marshal: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, "/v2/orders", payload)
	if err != nil {
		return nil, fmt.Errorf("PlaceMarketOrder: %w", err)
	}
	var o Order
	if err := sonic.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("PlaceMarketOrder decode: %w", err)
	}
	return &o, nil
}

func (c *Client) GetOrder(ctx context.Context, id string) (*Order, error) {
	data, err := c.do(ctx, http.MethodGet, "/v2/orders/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("GetOrder: %w", err)
	}
	var o Order
	if err := sonic.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("GetOrder decode: %w", err)
	}
	return &o, nil
}

func (c *Client) CancelOrder(ctx context.Context, id string) error {
	if _, err := c.do(ctx, http.MethodDelete, "/v2/orders/"+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("CancelOrder: %w", err)
	}
	return nil
}

// PartialFillError is returned when an order is cancelled after some shares
// already filled. Those shares stay at the broker; the book does not see them.
type PartialFillError struct {
	OrderID   string
	Status    string
	Requested float64
	Filled    float64
	AvgPrice  float64
	Err       error
}

func (e *PartialFillError) Error() string {
	return fmt.Sprintf("order %s ended with %g of %g filled @ %.2f (status %s): %v",
		e.OrderID, e.Filled, e.Requested, e.AvgPrice, e.Status, e.Err)
}

func (e *PartialFillError) Unwrap() error { return e.Err }

// SubmitOrder places a market order and waits for it to fill. Anything short
// of a full fill within FillTimeout is an error; the order is cancelled first.
// A cancelled order holding filled shares comes back as *PartialFillError.
func (c *Client) SubmitOrder(ctx context.Context, symbol string, side models.Side, qty float64) (models.Fill, error) {
	o, err := c.PlaceMarketOrder(ctx, symbol, side, qty, uuid.NewString())
	if err != nil {
		return models.Fill{}, err
	}

	deadline := time.NewTimer(c.cfg.FillTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(c.cfg.PollInterval)
	defer tick.Stop()

	for {
		switch {
		case o.Filled():
			return fillFrom(o, symbol, side), nil
		case o.Terminal():
			return models.Fill{}, partialFill(o, qty, fmt.Errorf("order %s %s", o.ID, o.Status))
		}

		select {
		case <-ctx.Done():
			return models.Fill{}, c.abandon(o, qty, ctx.Err())
		case <-deadline.C:
			return models.Fill{}, c.abandon(o, qty, fmt.Errorf("order %s not filled after %s (status %s)", o.ID, c.cfg.FillTimeout, o.Status))
		case <-tick.C:
			next, err := c.GetOrder(ctx, o.ID)
			if err != nil {
				logger.Warn("[ALPACA] poll %s: %v", o.ID, err)
				continue
			}
			o = next
		}
	}
}

// abandon cancels o and reports any shares that filled before the cancel.
func (c *Client) abandon(o *Order, qty float64, cause error) error {
	c.cancelQuietly(o.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if last, err := c.GetOrder(ctx, o.ID); err == nil {
		o = last
	}
	return partialFill(o, qty, cause)
}

func partialFill(o *Order, qty float64, cause error) error {
	filled := o.FilledQuantity()
	if filled <= 0 {
		return cause
	}
	logger.Error("[ALPACA] %s ended %s with %g of %g filled @ %.2f, position not booked",
		o.ID, o.Status, filled, qty, o.AvgPrice())
	return &PartialFillError{
		OrderID:   o.ID,
		Status:    o.Status,
		Requested: qty,
		Filled:    filled,
		AvgPrice:  o.AvgPrice(),
		Err:       cause,
	}
}

func (c *Client) cancelQuietly(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.CancelOrder(ctx, id); err != nil {
		logger.Error("[ALPACA] cancel %s: %v", id, err)
	}
}

func fillFrom(o *Order, symbol string, side models.Side) models.Fill {
	f := models.Fill{
		OrderID:  o.ID,
		Symbol:   symbol,
		Side:     side,
		Quantity: o.FilledQuantity(),
		Price:    o.AvgPrice(),
		Time:     time.Now().UTC(),
	}
	if o.FilledAt != nil {
		f.Time = *o.FilledAt
	}
	return f
}

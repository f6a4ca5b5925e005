package service

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"

	"fvg_bot/internal/models"
	"fvg_bot/internal/modules/metrics"
	"fvg_bot/pkg/logger"
	"fvg_bot/pkg/tracing"
)

// Venue turns an order into a fill or an error.
type Venue interface {
	Name() string
	Execute(ctx context.Context, order models.Order) (models.Fill, error)
}

// Book is where fills are booked.
type Book interface {
	Apply(f models.Fill) (models.Trade, error)
}

// RejectedError means the venue did not fill the order. The book is untouched.
type RejectedError struct {
	Order  models.Order
	Reason string
	Err    error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("order %s %g %s rejected: %s", e.Order.Side, e.Order.Quantity, e.Order.Symbol, e.Reason)
}

func (e *RejectedError) Unwrap() error { return e.Err }

type Engine struct {
	venue Venue
	book  Book
	m     *metrics.Metrics
}

func NewEngine(venue Venue, book Book, m *metrics.Metrics) *Engine {
	if m == nil {
		m = metrics.New(nil)
	}
	return &Engine{venue: venue, book: book, m: m}
}

func (e *Engine) Mode() string { return e.venue.Name() }

// Submit executes order and books the fill. Venue failures come back as
// *RejectedError; a booking failure is an invariant violation and is returned as is.
func (e *Engine) Submit(ctx context.Context, order models.Order) (models.Fill, models.Trade, error) {
	span, ctx := tracing.StartSpan(ctx, "execution.submit",
		opentracing.Tag{Key: "venue", Value: e.venue.Name()},
		opentracing.Tag{Key: "side", Value: string(order.Side)},
	)
	defer span.Finish()

	if order.Quantity <= 0 {
		err := &RejectedError{Order: order, Reason: "quantity must be positive"}
		e.count(order, "rejected")
		tracing.Fail(span, err)
		return models.Fill{}, models.Trade{}, err
	}

	fill, err := e.venue.Execute(ctx, order)
	if err != nil {
		rej := &RejectedError{Order: order, Reason: err.Error(), Err: err}
		e.count(order, "rejected")
		tracing.Fail(span, rej)
		logger.Warn("[EXEC] %v", rej)
		return models.Fill{}, models.Trade{}, rej
	}
	if fill.Side != order.Side || fill.Symbol != order.Symbol {
		err := &RejectedError{Order: order, Reason: fmt.Sprintf("venue filled %s %s", fill.Side, fill.Symbol)}
		e.count(order, "rejected")
		tracing.Fail(span, err)
		return models.Fill{}, models.Trade{}, err
	}

	// the stop keeps its distance from the actual fill price
	if order.StopLoss > 0 && order.Price > 0 && fill.Price > 0 {
		fill.StopLoss = fill.Price * order.StopLoss / order.Price
	}

	trade, err := e.book.Apply(fill)
	if err != nil {
		tracing.Fail(span, err)
		return fill, models.Trade{}, fmt.Errorf("book fill %s: %w", fill.OrderID, err)
	}

	e.count(order, "filled")
	logger.Info("[EXEC] %s %s %g @ %.2f (%s)", e.venue.Name(), fill.Side, fill.Quantity, fill.Price, fill.OrderID)
	return fill, trade, nil
}

func (e *Engine) count(order models.Order, result string) {
	e.m.Orders.WithLabelValues(e.venue.Name(), string(order.Side), result).Inc()
}

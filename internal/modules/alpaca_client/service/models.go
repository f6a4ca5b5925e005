package service

import (
	"strconv"
	"time"
)

type Order struct {
	ID             string     `json:"id"`
	ClientOrderID  string     `json:"client_order_id"`
	Symbol         string     `json:"symbol"`
	Side           string     `json:"side"`
	Qty            string     `json:"qty"`
	Status         string     `json:"status"`
	FilledQty      string     `json:"filled_qty"`
	FilledAvgPrice *string    `json:"filled_avg_price"`
	FilledAt       *time.Time `json:"filled_at"`
}

func (o *Order) Filled() bool { return o.Status == "filled" }

// Terminal statuses never turn into a fill.
func (o *Order) Terminal() bool {
	switch o.Status {
	case "canceled", "expired", "rejected", "suspended", "stopped", "done_for_day":
		return true
	}
	return false
}

func (o *Order) FilledQuantity() float64 {
	v, _ := strconv.ParseFloat(o.FilledQty, 64)
	return v
}

func (o *Order) AvgPrice() float64 {
	if o.FilledAvgPrice == nil {
		return 0
	}
	v, _ := strconv.ParseFloat(*o.FilledAvgPrice, 64)
	return v
}

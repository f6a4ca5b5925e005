package service

import (
	"time"

	"fvg_bot/internal/models"
)

var t0 = time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)

func candle(idx int64, o, h, l, c float64) *models.Candle {
	return &models.Candle{
		Index: idx,
		Bar: models.Bar{
			Symbol: "SPY",
			Time:   t0.Add(time.Duration(idx) * 15 * time.Minute),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
		},
	}
}

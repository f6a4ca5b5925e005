package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"fvg_bot/internal/models"
)

// TimeframeDuration parses Alpaca timeframes: 1Min, 15Min, 1Hour, 4Hour, 1Day, 1Week.
func TimeframeDuration(tf string) (time.Duration, error) {
	units := []struct {
		suffix string
		d      time.Duration
	}{
		{"Min", time.Minute},
		{"T", time.Minute},
		{"Hour", time.Hour},
		{"H", time.Hour},
		{"Day", 24 * time.Hour},
		{"D", 24 * time.Hour},
		{"Week", 7 * 24 * time.Hour},
		{"W", 7 * 24 * time.Hour},
	}
	for _, u := range units {
		if !strings.HasSuffix(tf, u.suffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(tf, u.suffix))
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("bad timeframe %q", tf)
		}
		return time.Duration(n) * u.d, nil
	}
	return 0, fmt.Errorf("unknown timeframe %q", tf)
}

// Tail returns the last n bars.
func Tail(bars []models.Bar, n int) []models.Bar {
	if n <= 0 || len(bars) <= n {
		return bars
	}
	return bars[len(bars)-n:]
}

package service

import (
	"fmt"
	"time"
)

// TradingHours is the regular session: weekdays from Open to Close, as
// offsets from local midnight in Location. The zero value is always open.
type TradingHours struct {
	Location *time.Location
	Open     time.Duration
	Close    time.Duration
	Enabled  bool
}

// ParseTradingHours reads "HH:MM" open and close times.
func ParseTradingHours(loc *time.Location, open, close string, enabled bool) (TradingHours, error) {
	o, err := clockOffset(open)
	if err != nil {
		return TradingHours{}, err
	}
	c, err := clockOffset(close)
	if err != nil {
		return TradingHours{}, err
	}
	if c <= o {
		return TradingHours{}, fmt.Errorf("session close %s not after open %s", close, open)
	}
	return TradingHours{Location: loc, Open: o, Close: c, Enabled: enabled}, nil
}

func clockOffset(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("bad session time %q", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Contains reports whether a bar opening at ts falls in the regular session.
func (h TradingHours) Contains(ts time.Time) bool {
	if !h.Enabled {
		return true
	}
	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	local := ts.In(loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	at := local.Sub(midnight)
	return at >= h.Open && at < h.Close
}

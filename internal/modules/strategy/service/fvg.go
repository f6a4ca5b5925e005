package service

import (
	"fmt"

	"fvg_bot/internal/models"
)

// Detector owns the open fair value gaps. It is the only writer of zone state
// and must be driven from a single goroutine.
type Detector struct {
	maxAge int

	prev    []*models.Candle // last two candles, oldest first
	open    map[models.ZoneKey]*models.FairValueGap
	order   []models.ZoneKey
	retired map[models.ZoneKey]struct{}
}

func NewDetector(maxAge int) *Detector {
	if maxAge <= 0 {
		maxAge = 10
	}
	return &Detector{
		maxAge:  maxAge,
		prev:    make([]*models.Candle, 0, 2),
		open:    make(map[models.ZoneKey]*models.FairValueGap),
		retired: make(map[models.ZoneKey]struct{}),
	}
}

// OnCandle ages, invalidates and touches existing zones against c, then
// creates the zones whose three-candle pattern ends at c.
func (d *Detector) OnCandle(c *models.Candle) ([]models.ZoneEvent, error) {
	if n := len(d.prev); n > 0 && c.Index <= d.prev[n-1].Index {
		return nil, fmt.Errorf("%w: candle index %d after %d", models.ErrInvariant, c.Index, d.prev[n-1].Index)
	}

	var events []models.ZoneEvent
	kept := make([]models.ZoneKey, 0, len(d.order))
	for _, k := range d.order {
		z := d.open[k]
		z.Age++

		switch {
		case z.Age > d.maxAge:
			d.retire(k)
			events = append(events, models.ZoneEvent{Kind: models.ZoneExpired, Zone: *z, Candle: c})
			continue
		case c.High <= z.High && c.Low >= z.Low:
			d.retire(k)
			z.Status = models.ZoneInvalidated
			events = append(events, models.ZoneEvent{Kind: models.ZoneInvalidate, Zone: *z, Candle: c})
			continue
		case z.Side == models.ZoneBullish && z.Contains(c.Low),
			z.Side == models.ZoneBearish && z.Contains(c.High):
			z.Status = models.ZoneTouched
			events = append(events, models.ZoneEvent{Kind: models.ZoneTouch, Zone: *z, Candle: c})
		}
		kept = append(kept, k)
	}
	d.order = kept

	if len(d.prev) == 2 {
		c1 := d.prev[0]
		if c1.High < c.Low {
			ev, err := d.add(models.ZoneBullish, c1.High, c.Low, c1, c)
			if err != nil {
				return nil, err
			}
			if ev != nil {
				events = append(events, *ev)
			}
		}
		if c1.Low > c.High {
			ev, err := d.add(models.ZoneBearish, c.High, c1.Low, c1, c)
			if err != nil {
				return nil, err
			}
			if ev != nil {
				events = append(events, *ev)
			}
		}
	}

	if len(d.prev) == 2 {
		d.prev[0] = d.prev[1]
		d.prev = d.prev[:1]
	}
	d.prev = append(d.prev, c)
	return events, nil
}

func (d *Detector) add(side models.ZoneSide, low, high float64, c1, c3 *models.Candle) (*models.ZoneEvent, error) {
	if low >= high {
		return nil, fmt.Errorf("%w: zone %s low %g >= high %g", models.ErrInvariant, side, low, high)
	}
	k := models.ZoneKey{Side: side, Low: low, High: high}
	if _, ok := d.open[k]; ok {
		return nil, nil
	}
	if _, ok := d.retired[k]; ok {
		return nil, nil
	}

	z := &models.FairValueGap{
		Side:         side,
		Low:          low,
		High:         high,
		Candle1Index: c1.Index,
		Candle3Index: c3.Index,
		Status:       models.ZoneOpen,
	}
	d.open[k] = z
	d.order = append(d.order, k)
	return &models.ZoneEvent{Kind: models.ZoneCreated, Zone: *z, Candle: c3}, nil
}

func (d *Detector) retire(k models.ZoneKey) {
	delete(d.open, k)
	d.retired[k] = struct{}{}
}

// Consume removes a zone that has produced a trade so it cannot trigger again.
func (d *Detector) Consume(k models.ZoneKey) bool {
	if _, ok := d.open[k]; !ok {
		return false
	}
	d.retire(k)
	for i, o := range d.order {
		if o == k {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return true
}

// Snapshot copies the open zones in creation order.
func (d *Detector) Snapshot() models.ZoneSnapshot {
	snap := models.ZoneSnapshot{
		Bullish: []models.FairValueGap{},
		Bearish: []models.FairValueGap{},
	}
	for _, k := range d.order {
		z := *d.open[k]
		if z.Side == models.ZoneBullish {
			snap.Bullish = append(snap.Bullish, z)
		} else {
			snap.Bearish = append(snap.Bearish, z)
		}
	}
	return snap
}

func (d *Detector) Len() int { return len(d.order) }

// Reset drops open zones and the candle window at a session boundary.
// Retired keys survive so a removed zone never comes back.
func (d *Detector) Reset() {
	d.prev = d.prev[:0]
	d.open = make(map[models.ZoneKey]*models.FairValueGap)
	d.order = nil
}

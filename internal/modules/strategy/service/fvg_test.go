package service

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fvg_bot/internal/models"
)

func feed(t *testing.T, d *Detector, cs ...*models.Candle) []models.ZoneEvent {
	t.Helper()
	var all []models.ZoneEvent
	for _, c := range cs {
		evs, err := d.OnCandle(c)
		require.NoError(t, err)
		all = append(all, evs...)
	}
	return all
}

func eventsFor(evs []models.ZoneEvent, k models.ZoneKey) []models.ZoneEventKind {
	var out []models.ZoneEventKind
	for _, e := range evs {
		if e.Zone.Key() == k {
			out = append(out, e.Kind)
		}
	}
	return out
}

var gap1214 = models.ZoneKey{Side: models.ZoneBullish, Low: 12, High: 14}

// candle 3 has its low at 14, leaving 12..14 untraded
func scenario() []*models.Candle {
	return []*models.Candle{
		candle(0, 10, 12, 9, 11),
		candle(1, 11, 11, 8, 8.5),
		candle(2, 14.2, 15, 14, 14.8),
	}
}

func TestDetector_BullishGapFromThreeCandles(t *testing.T) {
	d := NewDetector(8)
	evs := feed(t, d, scenario()...)

	require.Len(t, evs, 1)
	assert.Equal(t, models.ZoneCreated, evs[0].Kind)

	snap := d.Snapshot()
	require.Len(t, snap.Bullish, 1)
	assert.Empty(t, snap.Bearish)

	z := snap.Bullish[0]
	assert.Equal(t, 12.0, z.Low)
	assert.Equal(t, 14.0, z.High)
	assert.Equal(t, int64(0), z.Candle1Index)
	assert.Equal(t, int64(2), z.Candle3Index)
	assert.Equal(t, models.ZoneOpen, z.Status)
	assert.Equal(t, 0, z.Age)
}

func TestDetector_NoGapWhenThirdLowOverlapsFirstHigh(t *testing.T) {
	d := NewDetector(8)
	// third candle closes at 14 but trades down to 8.5, so the bands overlap
	evs := feed(t, d,
		candle(0, 10, 12, 9, 11),
		candle(1, 11, 11, 8, 8.5),
		candle(2, 9, 15, 8.5, 14),
	)
	assert.Empty(t, evs)
	assert.Equal(t, 0, d.Len())
}

func TestDetector_BearishGap(t *testing.T) {
	d := NewDetector(8)
	feed(t, d,
		candle(0, 10, 12, 9, 11),
		candle(1, 10, 11, 7, 8),
		candle(2, 7, 8, 6, 7),
	)
	snap := d.Snapshot()
	require.Len(t, snap.Bearish, 1)
	assert.Equal(t, 8.0, snap.Bearish[0].Low)
	assert.Equal(t, 9.0, snap.Bearish[0].High)
}

func TestDetector_TouchAndSubmerge(t *testing.T) {
	tests := []struct {
		name      string
		next      *models.Candle
		wantKinds []models.ZoneEventKind
		wantOpen  bool
	}{
		{
			name:      "wick into zone touches",
			next:      candle(3, 15, 16, 12.5, 15.5),
			wantKinds: []models.ZoneEventKind{models.ZoneTouch},
			wantOpen:  true,
		},
		{
			name:      "low on upper bound touches",
			next:      candle(3, 15, 16, 14, 15.5),
			wantKinds: []models.ZoneEventKind{models.ZoneTouch},
			wantOpen:  true,
		},
		{
			name:      "range inside zone submerges without touch",
			next:      candle(3, 12.5, 13.5, 12.2, 13),
			wantKinds: []models.ZoneEventKind{models.ZoneInvalidate},
			wantOpen:  false,
		},
		{
			name:     "candle above zone leaves it alone",
			next:     candle(3, 15, 16, 14.5, 15.5),
			wantOpen: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(8)
			feed(t, d, scenario()...)

			evs := feed(t, d, tt.next)
			assert.Equal(t, tt.wantKinds, eventsFor(evs, gap1214))

			snap := d.Snapshot()
			found := false
			for _, z := range snap.Bullish {
				if z.Key() == gap1214 {
					found = true
				}
			}
			assert.Equal(t, tt.wantOpen, found)
		})
	}
}

func TestDetector_TouchRepeatsAcrossCandles(t *testing.T) {
	d := NewDetector(8)
	feed(t, d, scenario()...)

	evs := feed(t, d,
		candle(3, 15, 16, 13, 15.5),
		candle(4, 15, 16, 13.5, 15.5),
	)
	assert.Equal(t, []models.ZoneEventKind{models.ZoneTouch, models.ZoneTouch}, eventsFor(evs, gap1214))
	assert.Equal(t, models.ZoneTouched, d.Snapshot().Bullish[0].Status)
}

func TestDetector_StaleZoneExpires(t *testing.T) {
	d := NewDetector(2)
	feed(t, d, scenario()...)

	evs := feed(t, d,
		candle(3, 20, 21, 19, 20.5),
		candle(4, 20, 21, 19, 20.5),
	)
	assert.Empty(t, eventsFor(evs, gap1214))

	evs = feed(t, d, candle(5, 20, 21, 19, 20.5))
	assert.Equal(t, []models.ZoneEventKind{models.ZoneExpired}, eventsFor(evs, gap1214))
	for _, z := range d.Snapshot().Bullish {
		assert.NotEqual(t, gap1214, z.Key())
	}
}

func TestDetector_RemovedZoneNeverReappears(t *testing.T) {
	d := NewDetector(8)
	feed(t, d, scenario()...)
	feed(t, d, candle(3, 12.5, 13.5, 12.2, 13))

	// same pattern again
	evs := feed(t, d,
		candle(4, 10, 12, 9, 11),
		candle(5, 11, 11, 8, 8.5),
		candle(6, 14.2, 15, 14, 14.8),
	)
	assert.NotContains(t, eventsFor(evs, gap1214), models.ZoneCreated)
	for _, z := range d.Snapshot().Bullish {
		assert.NotEqual(t, gap1214, z.Key())
	}
}

func TestDetector_ConsumeRetires(t *testing.T) {
	d := NewDetector(8)
	feed(t, d, scenario()...)

	assert.True(t, d.Consume(gap1214))
	assert.False(t, d.Consume(gap1214))
	assert.Equal(t, 0, d.Len())
}

func TestDetector_ResetClearsZonesAndWindow(t *testing.T) {
	d := NewDetector(8)
	feed(t, d, scenario()...)
	d.Reset()

	assert.Equal(t, 0, d.Len())
	// window is empty: one more candle cannot complete a pattern
	evs := feed(t, d, candle(3, 20, 21, 19, 20.5))
	assert.Empty(t, evs)
}

func TestDetector_IndexGoingBackwardsIsFatal(t *testing.T) {
	d := NewDetector(8)
	feed(t, d, candle(5, 10, 12, 9, 11))

	_, err := d.OnCandle(candle(5, 10, 12, 9, 11))
	require.ErrorIs(t, err, models.ErrInvariant)
}

func TestDetector_SnapshotIsACopy(t *testing.T) {
	d := NewDetector(8)
	feed(t, d, scenario()...)

	snap := d.Snapshot()
	snap.Bullish[0].Low = 0

	assert.Equal(t, 12.0, d.Snapshot().Bullish[0].Low)
}

func TestDetector_RandomWalkProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	d := NewDetector(5)
	removed := map[models.ZoneKey]bool{}

	for i := int64(0); i < 2000; i++ {
		o := float64(rng.Intn(20) + 5)
		c := float64(rng.Intn(20) + 5)
		h := maxf(o, c) + float64(rng.Intn(3))
		l := minf(o, c) - float64(rng.Intn(3))

		evs, err := d.OnCandle(candle(i, o, h, l, c))
		require.NoError(t, err)

		for _, e := range evs {
			switch e.Kind {
			case models.ZoneCreated:
				require.False(t, removed[e.Zone.Key()], "zone %s came back", e.Zone.Key())
			case models.ZoneInvalidate, models.ZoneExpired:
				removed[e.Zone.Key()] = true
			}
		}

		seen := map[models.ZoneKey]bool{}
		snap := d.Snapshot()
		for _, z := range append(snap.Bullish, snap.Bearish...) {
			require.False(t, seen[z.Key()], "duplicate zone %s", z.Key())
			require.False(t, removed[z.Key()], "removed zone %s is open", z.Key())
			require.Less(t, z.Low, z.High)
			require.LessOrEqual(t, z.Age, 5)
			seen[z.Key()] = true
		}
	}
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

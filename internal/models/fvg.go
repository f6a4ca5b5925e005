package models

import "fmt"

type ZoneSide string

const (
	ZoneBullish ZoneSide = "bullish"
	ZoneBearish ZoneSide = "bearish"
)

type ZoneStatus string

const (
	ZoneOpen        ZoneStatus = "open"
	ZoneTouched     ZoneStatus = "touched"
	ZoneInvalidated ZoneStatus = "invalidated"
)

// ZoneKey identifies a gap. Two zones with the same key are the same zone.
type ZoneKey struct {
	Side ZoneSide
	Low  float64
	High float64
}

func (k ZoneKey) String() string {
	return fmt.Sprintf("%s[%g,%g]", k.Side, k.Low, k.High)
}

type FairValueGap struct {
	Side         ZoneSide   `json:"side"`
	Low          float64    `json:"low"`
	High         float64    `json:"high"`
	Candle1Index int64      `json:"candle1_index"`
	Candle3Index int64      `json:"candle3_index"`
	Status       ZoneStatus `json:"status"`
	Age          int        `json:"age"`
}

func (z FairValueGap) Key() ZoneKey {
	return ZoneKey{Side: z.Side, Low: z.Low, High: z.High}
}

// Contains reports whether price lies inside the band, bounds included.
func (z FairValueGap) Contains(price float64) bool {
	return price >= z.Low && price <= z.High
}

// ZoneSnapshot replaces any previous snapshot. Slices are owned by the receiver.
type ZoneSnapshot struct {
	Bullish []FairValueGap `json:"bullish"`
	Bearish []FairValueGap `json:"bearish"`
}

type ZoneEventKind string

const (
	ZoneCreated    ZoneEventKind = "created"
	ZoneTouch      ZoneEventKind = "touched"
	ZoneInvalidate ZoneEventKind = "invalidated"
	ZoneExpired    ZoneEventKind = "expired"
)

type ZoneEvent struct {
	Kind   ZoneEventKind
	Zone   FairValueGap
	Candle *Candle
}

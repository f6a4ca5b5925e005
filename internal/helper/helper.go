package helper

import "math"

// RoundDownToTick floors px to a multiple of tick. tick <= 0 leaves px as is.
func RoundDownToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	steps := math.Floor(px/tick + 1e-12)
	return steps * tick
}

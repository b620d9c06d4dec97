// Package util provides small price-grid helpers shared across packages.
package util

import "math"

// RoundToTick snaps x to the nearest multiple of tick. Strategies use it to
// land computed strikes on the exchange's strike grid (tick 1.0 or 5.0) and
// premiums on the penny grid (tick 0.01). A non-positive tick returns x
// unchanged.
func RoundToTick(x, tick float64) float64 {
	if tick <= 0 {
		return x
	}
	return math.Round(x/tick) * tick
}

// FloorToTick snaps x down to the grid. Useful for picking the nearest
// in-grid strike strictly below a level.
func FloorToTick(x, tick float64) float64 {
	if tick <= 0 {
		return x
	}
	return math.Floor(x/tick) * tick
}

// CeilToTick snaps x up to the grid.
func CeilToTick(x, tick float64) float64 {
	if tick <= 0 {
		return x
	}
	return math.Ceil(x/tick) * tick
}

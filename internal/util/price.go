// Package util provides common utility functions for price and strike calculations.
package util

import "math"

// RoundToTick rounds x to the nearest tick increment.
// For example, with tick=0.01, 1.2345 becomes 1.23 or 1.24 depending on rounding.
// Non-finite x is returned unchanged; a negative tick uses its absolute value,
// and a zero tick returns x as-is.
func RoundToTick(x, tick float64) float64 {
	tick = math.Abs(tick)
	if tick == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return math.Round(x/tick) * tick
}

// SnapToIncrement rounds a strike distance onto the chain's strike grid.
// Listed index options trade on fixed strike increments (5 points for SPX),
// so a theoretical distance must land on the grid before any chain search.
func SnapToIncrement(distance, increment float64) float64 {
	return RoundToTick(distance, increment)
}

// Round2 rounds x to two decimal places (cents).
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// ShortID returns a truncated ID string, safely handling IDs shorter than 8 characters
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

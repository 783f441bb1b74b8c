// Package utils contains small numeric helpers shared across the estimator.
package utils

import (
	"math"
)

const twoPi = 2 * math.Pi

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// Wrap returns the angle equivalent to the given one, modulo 2π, in the
// half-open range (-π, π].
func Wrap(angle float64) float64 {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return math.NaN()
	}
	wrapped := angle - twoPi*math.Floor((angle+math.Pi)/twoPi)
	// floor puts odd multiples of π at -π and rounding can land just outside the range.
	if wrapped <= -math.Pi {
		wrapped += twoPi
	}
	if wrapped > math.Pi {
		wrapped -= twoPi
	}
	return wrapped
}

// AngleDiff returns the signed difference a1-a2 wrapped to (-π, π].
func AngleDiff(a1, a2 float64) float64 {
	return Wrap(a1 - a2)
}

// Square is faster than math.Pow(n, 2).
func Square(n float64) float64 {
	return n * n
}

// Float64AlmostEqual compares two float64s and returns if the difference between them is less than epsilon.
func Float64AlmostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

// IsFinite reports whether every value is neither NaN nor infinite.
func IsFinite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Package timegrid converts between timeline seconds and screen pixels and
// quantizes time values to a grid step.
package timegrid

import "math"

// DefaultPixelsPerSecond is the horizontal scale at zoom 1.0.
const DefaultPixelsPerSecond = 100.0

// SecondsToPixels maps a time value to a horizontal pixel offset.
func SecondsToPixels(seconds, zoom, pixelsPerSecond float64) float64 {
	return seconds * pixelsPerSecond * zoom
}

// PixelsToSeconds maps a pixel offset back to seconds. A non-positive scale
// yields zero rather than an infinity.
func PixelsToSeconds(pixels, zoom, pixelsPerSecond float64) float64 {
	scale := pixelsPerSecond * zoom
	if scale <= 0 {
		return 0
	}
	return pixels / scale
}

// Snap rounds value to the nearest multiple of step. A non-positive step
// disables snapping.
func Snap(value, step float64) float64 {
	if step <= 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return value
	}
	snapped := math.Round(value/step) * step
	// Avoid returning -0 for values that round to zero.
	if snapped == 0 {
		return 0
	}
	return snapped
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

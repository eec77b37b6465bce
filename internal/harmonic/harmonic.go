// Package harmonic provides key-distance and semitone-ratio math on the
// 12-tone pitch circle.
package harmonic

import "math"

// KeyNone marks an unknown key in analysis data.
const KeyNone = -1

// ValidKey reports whether k is a pitch class in [0,11].
func ValidKey(k int) bool {
	return k >= 0 && k <= 11
}

// NearestSemitoneDelta returns the signed shortest rotation from one pitch
// class toward another on the 12-tone circle, in [-6,6]. Either key outside
// [0,11] yields 0.
func NearestSemitoneDelta(from, to int) int {
	if !ValidKey(from) || !ValidKey(to) {
		return 0
	}
	d := ((from-to)%12 + 12) % 12
	if d > 6 {
		d -= 12
	}
	return d
}

// RatioFromSemitones converts a semitone offset to a frequency ratio.
// Non-finite input yields 1.0.
func RatioFromSemitones(s float64) float64 {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 1.0
	}
	return math.Pow(2, s/12)
}

package plan

import (
	"math"

	"github.com/seguelab/segue/internal/analysis"
	"github.com/seguelab/segue/internal/harmonic"
)

const (
	// DefaultMinBeats / DefaultMaxBeats bound the smart length estimate when
	// the caller leaves the limits unset.
	DefaultMinBeats = 8
	DefaultMaxBeats = 128

	energyWindow    = 16.0  // seconds inspected at A's tail and B's head
	defaultLoudness = -10.0 // dB, when no section overlaps the window
)

// Estimate proposes a musically appropriate crossfade length in beats from
// the tempo gap, key gap, and section loudness around the blend region. The
// result is a multiple of 4 clamped to [minBeats, maxBeats].
func Estimate(a, b *analysis.Track, minBeats, maxBeats int) int {
	if minBeats <= 0 {
		minBeats = DefaultMinBeats
	}
	if maxBeats <= 0 {
		maxBeats = DefaultMaxBeats
	}

	tempoDiff := math.Abs(a.TempoOr(analysis.DefaultTempo) - b.TempoOr(analysis.DefaultTempo))

	keyDiff := 0
	if a.HasKey() && b.HasKey() {
		keyDiff = harmonic.NearestSemitoneDelta(a.Key, b.Key)
		if keyDiff < 0 {
			keyDiff = -keyDiff
		}
	}

	loudA := windowLoudness(a.Sections, a.Duration-energyWindow, a.Duration)
	loudB := windowLoudness(b.Sections, 0, energyWindow)
	energyFactor := (-loudA + -loudB) / 20

	beats := 16 +
		int(math.Round(tempoDiff/6)) +
		int(math.Round(float64(keyDiff)/2)) +
		int(math.Round(energyFactor*4))

	// Phrase-multiple rounding keeps the result alignable.
	beats = int(math.Round(float64(beats)/4)) * 4
	if beats < 4 {
		beats = 4
	}
	if beats < minBeats {
		beats = minBeats
	}
	if beats > maxBeats {
		beats = maxBeats
	}
	return beats
}

// windowLoudness averages the loudness of sections overlapping
// [rangeStart, rangeEnd). A zero average is indistinguishable from missing
// loudness data and falls back to the default, matching the source behavior.
func windowLoudness(sections []analysis.Section, rangeStart, rangeEnd float64) float64 {
	sum, n := 0.0, 0
	for _, s := range sections {
		if s.Start+s.Duration > rangeStart && s.Start < rangeEnd {
			sum += s.Loudness
			n++
		}
	}
	if n == 0 {
		return defaultLoudness
	}
	avg := sum / float64(n)
	if avg == 0 {
		return defaultLoudness
	}
	return avg
}

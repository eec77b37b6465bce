// Package plan derives a beat-aligned transition plan between two analyzed
// tracks: start points, crossfade duration, target tempos, and harmonic
// detune. Planning always succeeds; degenerate analysis data degrades to
// clamped numeric fallbacks.
package plan

import (
	"fmt"
	"math"

	"github.com/seguelab/segue/internal/analysis"
	"github.com/seguelab/segue/internal/harmonic"
)

// TempoStrategy selects how the two tracks' tempos converge.
type TempoStrategy int

const (
	// KeepBoth leaves each track at its own tempo (default).
	KeepBoth TempoStrategy = iota
	// MatchBToA drives B toward A's tempo.
	MatchBToA
	// MatchAToB drives A toward B's tempo.
	MatchAToB
	// Average drives both toward the mean tempo.
	Average
)

var strategyNames = map[string]TempoStrategy{
	"":          KeepBoth,
	"keep":      KeepBoth,
	"matchBtoA": MatchBToA,
	"matchAtoB": MatchAToB,
	"average":   Average,
}

// ParseTempoStrategy resolves a strategy name from the API surface.
func ParseTempoStrategy(name string) (TempoStrategy, error) {
	s, ok := strategyNames[name]
	if !ok {
		return KeepBoth, fmt.Errorf("unknown tempo strategy %q", name)
	}
	return s, nil
}

// Options tunes planning behavior.
type Options struct {
	SmartLength    bool    // derive beat length from musical structure
	PhraseAlign    bool    // round duration and starts to 4-bar phrases
	HarmonicMatch  bool    // detune B toward A's key
	MinBeats       int     // 0 = default
	MaxBeats       int     // 0 = default
	MaxDetuneSemis float64 // clamped to [0,6]
}

// Plan is the immutable result of one planning call.
type Plan struct {
	StartA        float64 `json:"start_a"`
	StartB        float64 `json:"start_b"`
	XfadeDuration float64 `json:"xfade_duration"`
	TargetTempoA  float64 `json:"target_tempo_a"`
	TargetTempoB  float64 `json:"target_tempo_b"`
	SourceTempoA  float64 `json:"source_tempo_a"`
	SourceTempoB  float64 `json:"source_tempo_b"`
	ChosenBeats   int     `json:"chosen_beats"`
	PitchSemisA   float64 `json:"pitch_semis_a"`
	PitchSemisB   float64 `json:"pitch_semis_b"`
}

const (
	// SafetyMargin keeps the crossfade clear of A's final seconds.
	SafetyMargin = 5.0

	fallbackMinBeats = 1
	fallbackMaxBeats = 1024
	minBeatsCeiling  = 512
)

// Build produces a transition plan. It never fails: every branch has a
// numeric fallback.
func Build(a, b *analysis.Track, beatsLength int, strategy TempoStrategy, opts Options) Plan {
	tempoA := a.TempoOr(analysis.DefaultTempo)
	tempoB := b.TempoOr(analysis.DefaultTempo)

	targetA, targetB := tempoA, tempoB
	switch strategy {
	case MatchBToA:
		targetB = tempoA
	case MatchAToB:
		targetA = tempoB
	case Average:
		mean := (tempoA + tempoB) / 2
		targetA, targetB = mean, mean
	}

	chosenBeats := chooseBeats(a, b, beatsLength, opts)

	// Seconds per beat at the slower resulting tempo, so a tempo-lengthened
	// beat does not truncate the blend.
	spb := math.Max(60/targetA, 60/targetB)
	xfade := float64(chosenBeats) * spb

	if opts.PhraseAlign {
		phraseSpan := float64(analysis.PhraseBars) * spb
		phrases := math.Round(xfade / phraseSpan)
		if phrases < 1 {
			phrases = 1
		}
		xfade = phrases * phraseSpan
	}

	startA, startB := startPoints(a, b, xfade, opts.PhraseAlign)

	pitchB := 0.0
	if opts.HarmonicMatch && a.HasKey() && b.HasKey() {
		maxDetune := opts.MaxDetuneSemis
		if maxDetune < 0 {
			maxDetune = 0
		}
		if maxDetune > 6 {
			maxDetune = 6
		}
		delta := float64(harmonic.NearestSemitoneDelta(a.Key, b.Key))
		pitchB = math.Max(-maxDetune, math.Min(maxDetune, delta))
	}

	return Plan{
		StartA:        startA,
		StartB:        startB,
		XfadeDuration: xfade,
		TargetTempoA:  targetA,
		TargetTempoB:  targetB,
		SourceTempoA:  tempoA,
		SourceTempoB:  tempoB,
		ChosenBeats:   chosenBeats,
		PitchSemisA:   0,
		PitchSemisB:   pitchB,
	}
}

func chooseBeats(a, b *analysis.Track, beatsLength int, opts Options) int {
	if opts.SmartLength {
		return Estimate(a, b, opts.MinBeats, opts.MaxBeats)
	}
	minBeats := opts.MinBeats
	if minBeats <= 0 {
		minBeats = fallbackMinBeats
	}
	if minBeats > minBeatsCeiling {
		minBeats = minBeatsCeiling
	}
	maxBeats := opts.MaxBeats
	if maxBeats <= 0 {
		maxBeats = fallbackMaxBeats
	}
	// The lower clamp bound of maxBeats derives from minBeats, so the range
	// can never invert.
	if maxBeats < minBeats {
		maxBeats = minBeats
	}
	if beatsLength < minBeats {
		beatsLength = minBeats
	}
	if beatsLength > maxBeats {
		beatsLength = maxBeats
	}
	return beatsLength
}

// startPoints picks aligned seek offsets into each track. Phrase mode prefers
// 4-bar phrase starts and reuses the downbeat selection as its fallback, even
// when that fallback cannot honor the safety margin on very short tracks.
func startPoints(a, b *analysis.Track, xfade float64, phraseAlign bool) (startA, startB float64) {
	// Latest downbeat of A leaving room for the fade plus the margin.
	limit := a.Duration - xfade - SafetyMargin
	startA = math.Max(0, limit)
	for _, d := range a.Downbeats() {
		if d < limit {
			startA = d
		} else {
			break
		}
	}

	startB = 0.0
	if db := b.Downbeats(); len(db) > 0 {
		startB = db[0]
	}

	if !phraseAlign {
		return startA, startB
	}

	// Latest qualifying phrase start; no qualifier keeps the downbeat pick.
	for _, p := range a.PhraseStarts() {
		if p+xfade <= a.Duration-SafetyMargin {
			startA = p
		} else {
			break
		}
	}
	if ps := b.PhraseStarts(); len(ps) > 0 {
		startB = ps[0]
	}
	return startA, startB
}

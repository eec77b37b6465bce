// Package automation expands a transition plan into a finite, time-ordered
// sequence of keyframes (gain, EQ, filter, playback rate). The rendering
// device interpolates linearly between keyframes; the same sequence drives
// the real-time preview and the offline render, differing only in time
// origin.
package automation

import (
	"math"

	"github.com/seguelab/segue/internal/curve"
	"github.com/seguelab/segue/internal/harmonic"
	"github.com/seguelab/segue/internal/plan"
)

// Playback-rate clamp: ±6% keeps simple resampling free of audible
// artifacts. Extreme tempo-matching requests are capped, not rejected.
const (
	RateMin = 0.94
	RateMax = 1.06
)

// Filter-swap sweep bounds.
const (
	HighpassStartHz = 30
	HighpassEndHz   = 220
	LowpassStartHz  = 4000
	LowpassEndHz    = 20000
)

// settle is the closing-keyframe interval that pins the end state.
const settle = 0.010

// Options selects which automation lanes the schedule carries.
type Options struct {
	Curve         curve.Shape
	EQEnable      bool
	EQLowDuckDb   float64 // low-shelf duck on A (and early duck on B), dB
	EQHighBoostDb float64 // high-shelf boost on B, dB
	FilterSwap    bool
	TempoRamp     bool
}

// Keyframe is one automation point. Time is relative to the schedule's time
// origin; Timestamped shifts a sequence onto a concrete origin. EQ and
// filter fields are zero when their lane is disabled.
type Keyframe struct {
	Progress  float64 `json:"progress"`
	Time      float64 `json:"time"`
	GainA     float64 `json:"gain_a"`
	GainB     float64 `json:"gain_b"`
	EQLowA    float64 `json:"eq_low_a,omitempty"`   // low-shelf gain on A, dB
	EQHighB   float64 `json:"eq_high_b,omitempty"`  // high-shelf gain on B, dB
	EQLowB    float64 `json:"eq_low_b,omitempty"`   // low-shelf gain on B, dB
	HighpassA float64 `json:"highpass_a,omitempty"` // Hz
	LowpassB  float64 `json:"lowpass_b,omitempty"`  // Hz
	RateA     float64 `json:"rate_a"`
	RateB     float64 `json:"rate_b"`
}

// Schedule expands a plan into stepCount+1 keyframes across the crossfade
// window plus two closing keyframes that pin gain A to 0 and gain B to 1.
func Schedule(p plan.Plan, opts Options, stepCount int) []Keyframe {
	if stepCount < 1 {
		stepCount = 1
	}

	baseA, targetA := rates(p.TargetTempoA, p.SourceTempoA, p.PitchSemisA)
	baseB, targetB := rates(p.TargetTempoB, p.SourceTempoB, p.PitchSemisB)

	frames := make([]Keyframe, 0, stepCount+3)
	for i := 0; i <= stepCount; i++ {
		prog := float64(i) / float64(stepCount)
		kf := Keyframe{
			Progress: prog,
			Time:     prog * p.XfadeDuration,
		}

		gainA, gainB := opts.Curve.Gains(prog)
		kf.GainA = curve.Clamp01(gainA)
		kf.GainB = curve.Clamp01(gainB)

		if opts.EQEnable {
			kf.EQLowA = opts.EQLowDuckDb * curve.EaseOutCubic(prog)
			kf.EQHighB = opts.EQHighBoostDb * curve.EaseInCubic(prog)
			// Early bass duck on B, released as the transition completes. A
			// positive duck value is ignored, never reinterpreted as a boost.
			kf.EQLowB = math.Min(0, opts.EQLowDuckDb) * (1 - curve.EaseInCubic(prog))
		}

		if opts.FilterSwap {
			kf.HighpassA = HighpassStartHz + (HighpassEndHz-HighpassStartHz)*curve.EaseOutCubic(prog)
			kf.LowpassB = LowpassStartHz + (LowpassEndHz-LowpassStartHz)*curve.EaseInCubic(prog)
		}

		if opts.TempoRamp {
			kf.RateA = clampRate(baseA + (targetA-baseA)*prog)
			kf.RateB = clampRate(baseB + (targetB-baseB)*prog)
		} else {
			kf.RateA = targetA
			kf.RateB = targetB
		}

		frames = append(frames, kf)
	}

	// Closing keyframes: force a clean end state regardless of the curve's
	// endpoint values, settling within 10ms and holding.
	last := frames[len(frames)-1]
	for i := 1; i <= 2; i++ {
		end := last
		end.Time = p.XfadeDuration + float64(i)*settle
		end.GainA = 0
		end.GainB = 1
		frames = append(frames, end)
	}

	return frames
}

// Timestamped returns a copy of frames with each time shifted by origin. The
// preview adapter passes "now" plus a small scheduling latency; the offline
// adapter passes a fixed small epoch.
func Timestamped(frames []Keyframe, origin float64) []Keyframe {
	out := make([]Keyframe, len(frames))
	for i, kf := range frames {
		kf.Time += origin
		out[i] = kf
	}
	return out
}

// rates derives the pitch-only base rate and the clamped tempo-matched
// target rate for one source.
func rates(targetTempo, sourceTempo, pitchSemis float64) (base, target float64) {
	pitch := harmonic.RatioFromSemitones(pitchSemis)
	base = clampRate(pitch)
	if sourceTempo <= 0 {
		return base, base
	}
	return base, clampRate(targetTempo / sourceTempo * pitch)
}

func clampRate(r float64) float64 {
	if r < RateMin {
		return RateMin
	}
	if r > RateMax {
		return RateMax
	}
	return r
}

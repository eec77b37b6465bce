// Package analysis normalizes per-track rhythmic/harmonic analysis into an
// immutable model with derived downbeats and phrase starts.
package analysis

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/seguelab/segue/internal/harmonic"
)

const (
	// DefaultTempo stands in wherever a tempo is needed but unknown.
	DefaultTempo = 120.0
	// DefaultDuration stands in when neither a declared duration nor beats
	// exist.
	DefaultDuration = 180.0
	// PhraseBars is the bar count of one phrase.
	PhraseBars = 4

	defaultTimeSignature = 4
)

// Beat is a single detected beat.
type Beat struct {
	Start      float64
	Duration   float64
	Confidence float64
}

// Bar is a single detected bar.
type Bar struct {
	Start    float64
	Duration float64
}

// Section is a structural segment with its average loudness in dB.
type Section struct {
	Start    float64
	Duration float64
	Loudness float64
}

// Track is the normalized analysis of one track. Immutable after
// construction; derived values are recomputed per call.
type Track struct {
	Tempo         float64 // BPM, 0 = unknown
	Key           int     // pitch class 0..11, harmonic.KeyNone = unknown
	Mode          int     // 0 minor / 1 major, -1 = unknown
	TimeSignature int
	Beats         []Beat
	Bars          []Bar
	Sections      []Section
	Duration      float64 // seconds
}

// Raw mirrors the ingested analysis JSON. Every field is optional; absent or
// malformed values degrade to defaults.
type Raw struct {
	Track struct {
		Tempo         *float64 `json:"tempo"`
		Key           *int     `json:"key"`
		Mode          *int     `json:"mode"`
		TimeSignature *int     `json:"time_signature"`
		Duration      *float64 `json:"duration"`
	} `json:"track"`
	Beats []struct {
		Start      float64 `json:"start"`
		Duration   float64 `json:"duration"`
		Confidence float64 `json:"confidence"`
	} `json:"beats"`
	Bars []struct {
		Start    float64 `json:"start"`
		Duration float64 `json:"duration"`
	} `json:"bars"`
	Sections []struct {
		Start    float64 `json:"start"`
		Duration float64 `json:"duration"`
		Loudness float64 `json:"loudness"`
	} `json:"sections"`
}

// FromRaw builds a Track from parsed analysis JSON. It never fails: missing
// fields take documented defaults.
func FromRaw(raw Raw) *Track {
	t := &Track{
		Key:           harmonic.KeyNone,
		Mode:          -1,
		TimeSignature: defaultTimeSignature,
	}

	if raw.Track.Tempo != nil && *raw.Track.Tempo > 0 {
		t.Tempo = *raw.Track.Tempo
	}
	if raw.Track.Key != nil && harmonic.ValidKey(*raw.Track.Key) {
		t.Key = *raw.Track.Key
	}
	if raw.Track.Mode != nil {
		t.Mode = *raw.Track.Mode
	}
	if raw.Track.TimeSignature != nil && *raw.Track.TimeSignature > 0 {
		t.TimeSignature = *raw.Track.TimeSignature
	}

	t.Beats = make([]Beat, len(raw.Beats))
	for i, b := range raw.Beats {
		t.Beats[i] = Beat{Start: b.Start, Duration: b.Duration, Confidence: b.Confidence}
	}
	t.Bars = make([]Bar, len(raw.Bars))
	for i, b := range raw.Bars {
		t.Bars[i] = Bar{Start: b.Start, Duration: b.Duration}
	}
	t.Sections = make([]Section, len(raw.Sections))
	for i, s := range raw.Sections {
		t.Sections[i] = Section{Start: s.Start, Duration: s.Duration, Loudness: s.Loudness}
	}

	switch {
	case raw.Track.Duration != nil && *raw.Track.Duration > 0:
		t.Duration = *raw.Track.Duration
	case len(t.Beats) > 0:
		t.Duration = t.Beats[len(t.Beats)-1].Start
	default:
		t.Duration = DefaultDuration
	}

	return t
}

// Parse decodes analysis JSON. The only error is malformed JSON; field-level
// problems degrade to defaults via FromRaw.
func Parse(data []byte) (*Track, error) {
	var raw Raw
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse analysis: %w", err)
	}
	return FromRaw(raw), nil
}

// Load reads and parses an analysis JSON file.
func Load(path string) (*Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read analysis %s: %w", path, err)
	}
	return Parse(data)
}

// TempoOr returns the track tempo, or def when unknown.
func (t *Track) TempoOr(def float64) float64 {
	if t.Tempo > 0 {
		return t.Tempo
	}
	return def
}

// HasKey reports whether the track carries a usable key.
func (t *Track) HasKey() bool {
	return harmonic.ValidKey(t.Key)
}

// Downbeats returns bar-start times. Without bars it falls back to every
// TimeSignature-th beat start, then to a single downbeat at zero.
func (t *Track) Downbeats() []float64 {
	if len(t.Bars) > 0 {
		out := make([]float64, len(t.Bars))
		for i, b := range t.Bars {
			out[i] = b.Start
		}
		return out
	}
	if len(t.Beats) > 0 {
		step := t.TimeSignature
		if step < 1 {
			step = defaultTimeSignature
		}
		out := make([]float64, 0, len(t.Beats)/step+1)
		for i := 0; i < len(t.Beats); i += step {
			out = append(out, t.Beats[i].Start)
		}
		return out
	}
	return []float64{0}
}

// PhraseStarts returns every PhraseBars-th bar start. Without bars it falls
// back to Downbeats.
func (t *Track) PhraseStarts() []float64 {
	if len(t.Bars) == 0 {
		return t.Downbeats()
	}
	out := make([]float64, 0, len(t.Bars)/PhraseBars+1)
	for i := 0; i < len(t.Bars); i += PhraseBars {
		out = append(out, t.Bars[i].Start)
	}
	return out
}

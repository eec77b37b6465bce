package analysis

import (
	"testing"

	"github.com/seguelab/segue/internal/harmonic"
)

func TestParseFullAnalysis(t *testing.T) {
	data := []byte(`{
		"track": {"tempo": 124.5, "key": 7, "mode": 1, "time_signature": 4, "duration": 245.2},
		"beats": [{"start": 0.5, "duration": 0.48, "confidence": 0.9}],
		"bars": [{"start": 0.5, "duration": 1.93}],
		"sections": [{"start": 0, "duration": 30, "loudness": -8.2}]
	}`)
	tr, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if tr.Tempo != 124.5 || tr.Key != 7 || tr.Mode != 1 || tr.TimeSignature != 4 {
		t.Errorf("track fields = %v/%v/%v/%v", tr.Tempo, tr.Key, tr.Mode, tr.TimeSignature)
	}
	if tr.Duration != 245.2 {
		t.Errorf("Duration = %v, want 245.2", tr.Duration)
	}
	if len(tr.Beats) != 1 || tr.Beats[0].Confidence != 0.9 {
		t.Errorf("beats not carried over: %+v", tr.Beats)
	}
	if len(tr.Sections) != 1 || tr.Sections[0].Loudness != -8.2 {
		t.Errorf("sections not carried over: %+v", tr.Sections)
	}
}

func TestParseEmptyObjectDefaults(t *testing.T) {
	tr, err := Parse([]byte(`{}`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if tr.Tempo != 0 {
		t.Errorf("Tempo = %v, want 0 (unknown)", tr.Tempo)
	}
	if tr.Key != harmonic.KeyNone {
		t.Errorf("Key = %v, want KeyNone", tr.Key)
	}
	if tr.TimeSignature != 4 {
		t.Errorf("TimeSignature = %v, want 4", tr.TimeSignature)
	}
	if tr.Duration != DefaultDuration {
		t.Errorf("Duration = %v, want %v", tr.Duration, DefaultDuration)
	}
	if tr.HasKey() {
		t.Error("HasKey() = true for keyless track")
	}
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	if _, err := Parse([]byte(`{"track":`)); err == nil {
		t.Error("Parse should fail on truncated JSON")
	}
}

func TestFromRawIgnoresOutOfRangeKey(t *testing.T) {
	var raw Raw
	k := 13
	raw.Track.Key = &k
	if tr := FromRaw(raw); tr.Key != harmonic.KeyNone {
		t.Errorf("Key = %v, want KeyNone for out-of-range input", tr.Key)
	}
}

func TestDurationInferredFromBeats(t *testing.T) {
	data := []byte(`{"beats": [{"start": 1}, {"start": 2}, {"start": 199.5}]}`)
	tr, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if tr.Duration != 199.5 {
		t.Errorf("Duration = %v, want last beat start 199.5", tr.Duration)
	}
}

func TestTempoOr(t *testing.T) {
	tr := &Track{}
	if got := tr.TempoOr(120); got != 120 {
		t.Errorf("TempoOr on unknown tempo = %v, want 120", got)
	}
	tr.Tempo = 98
	if got := tr.TempoOr(120); got != 98 {
		t.Errorf("TempoOr = %v, want 98", got)
	}
}

func TestDownbeatsFromBars(t *testing.T) {
	tr := &Track{Bars: []Bar{{Start: 0.5}, {Start: 2.5}, {Start: 4.5}}}
	got := tr.Downbeats()
	want := []float64{0.5, 2.5, 4.5}
	if len(got) != len(want) {
		t.Fatalf("Downbeats = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Downbeats[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDownbeatsFromBeats(t *testing.T) {
	tr := &Track{TimeSignature: 4}
	for i := 0; i < 9; i++ {
		tr.Beats = append(tr.Beats, Beat{Start: float64(i) * 0.5})
	}
	got := tr.Downbeats()
	want := []float64{0, 2, 4}
	if len(got) != len(want) {
		t.Fatalf("Downbeats = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Downbeats[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDownbeatsEmptyAnalysis(t *testing.T) {
	tr := &Track{TimeSignature: 4}
	got := tr.Downbeats()
	if len(got) != 1 || got[0] != 0 {
		t.Errorf("Downbeats on empty analysis = %v, want [0]", got)
	}
}

func TestPhraseStartsEveryFourthBar(t *testing.T) {
	tr := &Track{}
	for i := 0; i < 10; i++ {
		tr.Bars = append(tr.Bars, Bar{Start: float64(i) * 2})
	}
	got := tr.PhraseStarts()
	want := []float64{0, 8, 16}
	if len(got) != len(want) {
		t.Fatalf("PhraseStarts = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("PhraseStarts[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPhraseStartsFallsBackToDownbeats(t *testing.T) {
	tr := &Track{TimeSignature: 4, Beats: []Beat{{Start: 0}, {Start: 0.5}, {Start: 1}, {Start: 1.5}, {Start: 2}}}
	phrases := tr.PhraseStarts()
	downbeats := tr.Downbeats()
	if len(phrases) != len(downbeats) {
		t.Fatalf("PhraseStarts = %v, want downbeats %v", phrases, downbeats)
	}
	for i := range downbeats {
		if phrases[i] != downbeats[i] {
			t.Errorf("PhraseStarts[%d] = %v, want %v", i, phrases[i], downbeats[i])
		}
	}
}

func TestDerivedValuesAreStable(t *testing.T) {
	tr := &Track{Bars: []Bar{{Start: 1}, {Start: 3}}}
	a := tr.Downbeats()
	b := tr.Downbeats()
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("Downbeats not re-derivable from same content")
		}
	}
}

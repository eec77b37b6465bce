package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/seguelab/segue/internal/analysis"
	"github.com/seguelab/segue/internal/automation"
	"github.com/seguelab/segue/internal/pcm"
	"github.com/seguelab/segue/internal/plan"
)

func testTrack(tempo float64, duration float64) *analysis.Track {
	t := &analysis.Track{Tempo: tempo, Key: 0, Mode: 1, TimeSignature: 4, Duration: duration}
	for s := 0.0; s < duration; s += 2 {
		t.Bars = append(t.Bars, analysis.Bar{Start: s, Duration: 2})
	}
	return t
}

func testBuffer(seconds float64) pcm.Buffer {
	n := int(seconds * pcm.SampleRate)
	return pcm.Buffer{
		Channels:   [][]float64{make([]float64, n), make([]float64, n)},
		SampleRate: pcm.SampleRate,
	}
}

func loadedSession(t *testing.T) *Session {
	t.Helper()
	s := New(Config{PreviewLatency: 0.05, OfflineEpoch: 0.05, OfflineTail: 0.5, StepCount: 16})
	if err := s.SetTrack("a", testTrack(120, 60), testBuffer(60)); err != nil {
		t.Fatalf("SetTrack a: %v", err)
	}
	if err := s.SetTrack("b", testTrack(128, 60), testBuffer(60)); err != nil {
		t.Fatalf("SetTrack b: %v", err)
	}
	return s
}

func TestSetTrackRejectsBadSlot(t *testing.T) {
	s := New(DefaultConfig())
	if err := s.SetTrack("c", testTrack(120, 60), testBuffer(1)); err == nil {
		t.Error("SetTrack(\"c\") should fail")
	}
	if err := s.SetTrack("a", nil, testBuffer(1)); err == nil {
		t.Error("SetTrack with nil analysis should fail")
	}
}

func TestBuildPlanRequiresBothTracks(t *testing.T) {
	s := New(DefaultConfig())
	if _, err := s.BuildPlan(PlanRequest{Beats: 16}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("BuildPlan error = %v, want ErrNotConfigured", err)
	}
}

func TestBuildPlanStoresLatest(t *testing.T) {
	s := loadedSession(t)
	p, err := s.BuildPlan(PlanRequest{Beats: 16, Strategy: plan.MatchBToA})
	if err != nil {
		t.Fatalf("BuildPlan error: %v", err)
	}
	if p.XfadeDuration != 8 {
		t.Errorf("XfadeDuration = %v, want 8", p.XfadeDuration)
	}
	got, ok := s.Plan()
	if !ok || got != p {
		t.Error("Plan() should return the plan just built")
	}
}

func TestSetTrackInvalidatesPlan(t *testing.T) {
	s := loadedSession(t)
	if _, err := s.BuildPlan(PlanRequest{Beats: 16}); err != nil {
		t.Fatalf("BuildPlan error: %v", err)
	}
	if err := s.SetTrack("b", testTrack(90, 60), testBuffer(60)); err != nil {
		t.Fatalf("SetTrack error: %v", err)
	}
	if _, ok := s.Plan(); ok {
		t.Error("plan should be invalidated after track replacement")
	}
}

func TestScheduleRequiresPlan(t *testing.T) {
	s := loadedSession(t)
	if _, err := s.Schedule(automation.Options{}); !errors.Is(err, ErrNoPlan) {
		t.Errorf("Schedule error = %v, want ErrNoPlan", err)
	}
}

func TestExportProducesWAV(t *testing.T) {
	s := loadedSession(t)
	if _, err := s.BuildPlan(PlanRequest{Beats: 4, Strategy: plan.MatchBToA}); err != nil {
		t.Fatalf("BuildPlan error: %v", err)
	}
	res, err := s.Export(context.Background(), automation.Options{})
	if err != nil {
		t.Fatalf("Export error: %v", err)
	}
	if res.ID == "" {
		t.Error("Export result has no ID")
	}
	if len(res.WAV) <= 44 {
		t.Errorf("WAV length = %d, want header plus data", len(res.WAV))
	}
	if string(res.WAV[0:4]) != "RIFF" {
		t.Error("export is not a RIFF container")
	}
}

func TestExportWithoutPlanFails(t *testing.T) {
	s := loadedSession(t)
	if _, err := s.Export(context.Background(), automation.Options{}); !errors.Is(err, ErrNoPlan) {
		t.Errorf("Export error = %v, want ErrNoPlan", err)
	}
}

func TestExportWithoutAudioFails(t *testing.T) {
	s := New(DefaultConfig())
	if err := s.SetTrack("a", testTrack(120, 60), pcm.Buffer{}); err != nil {
		t.Fatalf("SetTrack error: %v", err)
	}
	if err := s.SetTrack("b", testTrack(120, 60), pcm.Buffer{}); err != nil {
		t.Fatalf("SetTrack error: %v", err)
	}
	if _, err := s.BuildPlan(PlanRequest{Beats: 4}); err != nil {
		t.Fatalf("BuildPlan error: %v", err)
	}
	if _, err := s.Export(context.Background(), automation.Options{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Export error = %v, want ErrNotConfigured", err)
	}
}

func TestExportSingleOutstandingRender(t *testing.T) {
	s := loadedSession(t)
	if _, err := s.BuildPlan(PlanRequest{Beats: 64}); err != nil {
		t.Fatalf("BuildPlan error: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Export(context.Background(), automation.Options{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	busy := 0
	for err := range errs {
		if errors.Is(err, ErrRenderBusy) {
			busy++
		} else if err != nil {
			t.Errorf("unexpected export error: %v", err)
		}
	}
	if busy == 0 {
		t.Log("no overlap observed; renders serialized fast enough")
	}
}

func TestPreviewStreamsFrames(t *testing.T) {
	s := loadedSession(t)
	if _, err := s.BuildPlan(PlanRequest{Beats: 4}); err != nil {
		t.Fatalf("BuildPlan error: %v", err)
	}
	if err := s.Preview(context.Background(), automation.Options{}); err != nil {
		t.Fatalf("Preview error: %v", err)
	}
	defer s.StopPreview()

	frame := <-s.Frames()
	if len(frame) != pcm.FrameSamples {
		t.Errorf("preview frame length = %d, want %d", len(frame), pcm.FrameSamples)
	}
}

func TestStatus(t *testing.T) {
	s := loadedSession(t)
	st := s.CurrentStatus()
	if !st.TrackALoaded || !st.TrackBLoaded || st.HasPlan || st.Rendering {
		t.Errorf("unexpected status: %+v", st)
	}
	if _, err := s.BuildPlan(PlanRequest{Beats: 16, Strategy: plan.MatchBToA}); err != nil {
		t.Fatalf("BuildPlan error: %v", err)
	}
	st = s.CurrentStatus()
	if !st.HasPlan || st.Xfade != 8 || st.ChosenBeats != 16 {
		t.Errorf("status after plan: %+v", st)
	}
}

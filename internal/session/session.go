// Package session owns the mutable state of one transition workspace: the
// two analyzed tracks, their decoded buffers, and the latest plan. Planning
// and scheduling stay pure; the session serializes renders and feeds the
// preview stream.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/seguelab/segue/internal/analysis"
	"github.com/seguelab/segue/internal/automation"
	"github.com/seguelab/segue/internal/device"
	"github.com/seguelab/segue/internal/pcm"
	"github.com/seguelab/segue/internal/plan"
	"github.com/seguelab/segue/internal/wav"
)

var (
	// ErrNotConfigured means a render was requested before both tracks and
	// their audio were loaded. This is a caller precondition violation, not
	// a recoverable render failure.
	ErrNotConfigured = errors.New("session: both tracks must be loaded before rendering")
	// ErrNoPlan means preview/export was requested before planning.
	ErrNoPlan = errors.New("session: no transition plan built yet")
	// ErrRenderBusy rejects a second concurrent offline render.
	ErrRenderBusy = errors.New("session: offline render already in progress")
)

// Config tunes the render adapters.
type Config struct {
	PreviewLatency float64 // seconds between "now" and the first keyframe
	OfflineEpoch   float64 // fixed keyframe origin for offline renders
	OfflineTail    float64 // seconds of B played out after the crossfade
	StepCount      int     // keyframes across the crossfade window
}

// DefaultConfig matches the rendering behavior described in the docs.
func DefaultConfig() Config {
	return Config{
		PreviewLatency: 0.05,
		OfflineEpoch:   0.05,
		OfflineTail:    8.0,
		StepCount:      128,
	}
}

// PlanRequest carries one planning call.
type PlanRequest struct {
	Beats    int
	Strategy plan.TempoStrategy
	Options  plan.Options
}

// Session is safe for concurrent use.
type Session struct {
	cfg Config

	mu       sync.RWMutex
	trackA   *analysis.Track
	trackB   *analysis.Track
	bufA     pcm.Buffer
	bufB     pcm.Buffer
	plan     *plan.Plan
	planOpts PlanRequest

	frameCh       chan []int16
	previewCancel context.CancelFunc

	renderMu  sync.Mutex
	rendering bool
}

// New creates an empty session.
func New(cfg Config) *Session {
	if cfg.StepCount < 1 {
		cfg.StepCount = DefaultConfig().StepCount
	}
	return &Session{
		cfg:     cfg,
		frameCh: make(chan []int16, 100),
	}
}

// Frames returns the preview PCM frame channel, consumed by the stream
// broadcaster for the lifetime of the session.
func (s *Session) Frames() <-chan []int16 {
	return s.frameCh
}

// SetTrack loads the analysis and decoded audio for slot "a" or "b". Any
// previous plan is invalidated.
func (s *Session) SetTrack(slot string, tr *analysis.Track, buf pcm.Buffer) error {
	if tr == nil {
		return fmt.Errorf("session: nil analysis for slot %q", slot)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch slot {
	case "a":
		s.trackA, s.bufA = tr, buf
	case "b":
		s.trackB, s.bufB = tr, buf
	default:
		return fmt.Errorf("session: unknown slot %q", slot)
	}
	s.plan = nil
	return nil
}

// BuildPlan recomputes the transition plan from the loaded analyses. The
// previous plan is replaced wholesale; there is no incremental update.
func (s *Session) BuildPlan(req PlanRequest) (plan.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trackA == nil || s.trackB == nil {
		return plan.Plan{}, ErrNotConfigured
	}
	p := plan.Build(s.trackA, s.trackB, req.Beats, req.Strategy, req.Options)
	s.plan = &p
	s.planOpts = req
	log.Printf("Plan: startA=%.2fs startB=%.2fs xfade=%.2fs beats=%d tempo %.1f/%.1f detune %.1f",
		p.StartA, p.StartB, p.XfadeDuration, p.ChosenBeats, p.TargetTempoA, p.TargetTempoB, p.PitchSemisB)
	return p, nil
}

// Plan returns the latest plan, if any.
func (s *Session) Plan() (plan.Plan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.plan == nil {
		return plan.Plan{}, false
	}
	return *s.plan, true
}

// Schedule expands the latest plan into keyframes at the configured step
// resolution, origin-relative.
func (s *Session) Schedule(opts automation.Options) ([]automation.Keyframe, error) {
	p, ok := s.Plan()
	if !ok {
		return nil, ErrNoPlan
	}
	return automation.Schedule(p, opts, s.cfg.StepCount), nil
}

// Preview starts (or replaces) a real-time preview of the transition,
// streaming frames to the session's frame channel. The keyframe origin is
// now plus the configured scheduling latency.
func (s *Session) Preview(ctx context.Context, opts automation.Options) error {
	job, err := s.renderJob(opts, s.cfg.PreviewLatency)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.previewCancel != nil {
		s.previewCancel()
	}
	previewCtx, cancel := context.WithCancel(ctx)
	s.previewCancel = cancel
	s.mu.Unlock()

	go func() {
		if err := device.StreamFrames(previewCtx, job, s.frameCh); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Preview stopped: %v", err)
			return
		}
		log.Printf("Preview finished")
	}()
	return nil
}

// StopPreview cancels a running preview, if any.
func (s *Session) StopPreview() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.previewCancel != nil {
		s.previewCancel()
		s.previewCancel = nil
	}
}

// ExportResult is one completed offline render.
type ExportResult struct {
	ID  string
	WAV []byte
}

// Export renders the transition offline and encodes it as a 16-bit WAV.
// Only one render may be outstanding at a time; a concurrent call fails
// with ErrRenderBusy. Render failures surface as-is and are not retried.
func (s *Session) Export(ctx context.Context, opts automation.Options) (ExportResult, error) {
	s.renderMu.Lock()
	if s.rendering {
		s.renderMu.Unlock()
		return ExportResult{}, ErrRenderBusy
	}
	s.rendering = true
	s.renderMu.Unlock()
	defer func() {
		s.renderMu.Lock()
		s.rendering = false
		s.renderMu.Unlock()
	}()

	job, err := s.renderJob(opts, s.cfg.OfflineEpoch)
	if err != nil {
		return ExportResult{}, err
	}

	id := uuid.NewString()
	log.Printf("Offline render %s: %.2fs", id, job.Duration)

	out, err := device.Render(ctx, job)
	if err != nil {
		return ExportResult{}, fmt.Errorf("offline render %s: %w", id, err)
	}

	data, err := wav.Encode(out.Channels, out.SampleRate, 16)
	if err != nil {
		return ExportResult{}, fmt.Errorf("encode render %s: %w", id, err)
	}
	return ExportResult{ID: id, WAV: data}, nil
}

// renderJob assembles the device job shared by preview and export; only the
// keyframe origin differs.
func (s *Session) renderJob(opts automation.Options, origin float64) (device.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.trackA == nil || s.trackB == nil || s.bufA.Empty() || s.bufB.Empty() {
		return device.Job{}, ErrNotConfigured
	}
	if s.plan == nil {
		return device.Job{}, ErrNoPlan
	}
	p := *s.plan
	frames := automation.Timestamped(automation.Schedule(p, opts, s.cfg.StepCount), origin)
	return device.Job{
		A:        s.bufA,
		B:        s.bufB,
		StartA:   p.StartA,
		StartB:   p.StartB,
		Frames:   frames,
		Duration: origin + p.XfadeDuration + s.cfg.OfflineTail,
	}, nil
}

// Status summarizes the session for the API surface.
type Status struct {
	TrackALoaded bool    `json:"track_a_loaded"`
	TrackBLoaded bool    `json:"track_b_loaded"`
	HasPlan      bool    `json:"has_plan"`
	Rendering    bool    `json:"rendering"`
	Xfade        float64 `json:"xfade_duration,omitempty"`
	ChosenBeats  int     `json:"chosen_beats,omitempty"`
}

// CurrentStatus reports loaded tracks, plan, and render state.
func (s *Session) CurrentStatus() Status {
	s.mu.RLock()
	st := Status{
		TrackALoaded: s.trackA != nil,
		TrackBLoaded: s.trackB != nil,
		HasPlan:      s.plan != nil,
	}
	if s.plan != nil {
		st.Xfade = s.plan.XfadeDuration
		st.ChosenBeats = s.plan.ChosenBeats
	}
	s.mu.RUnlock()

	s.renderMu.Lock()
	st.Rendering = s.rendering
	s.renderMu.Unlock()
	return st
}

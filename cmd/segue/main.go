package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/seguelab/segue/internal/analysis"
	"github.com/seguelab/segue/internal/automation"
	"github.com/seguelab/segue/internal/config"
	"github.com/seguelab/segue/internal/curve"
	"github.com/seguelab/segue/internal/pcm"
	"github.com/seguelab/segue/internal/plan"
	"github.com/seguelab/segue/internal/session"
	"github.com/seguelab/segue/internal/stream"
	"github.com/seguelab/segue/internal/web"
)

func main() {
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Println("segue starting up...")

	sessCfg := session.DefaultConfig()
	sessCfg.PreviewLatency = cfg.PreviewLatency
	sessCfg.OfflineTail = cfg.OfflineTail
	sessCfg.StepCount = cfg.StepCount
	sess := session.New(sessCfg)

	// Broadcaster: fan-out preview PCM frames to all listeners
	broadcaster := stream.NewBroadcaster()
	go broadcaster.Run(ctx, sess.Frames())

	// WebRTC handler (track peer count for status)
	webrtcHandler := stream.NewWebRTCHandler(broadcaster)

	// HTTP routes
	mux := http.NewServeMux()

	// Web UI
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(web.IndexHTML)
	})

	// Audio streams
	mux.Handle("/stream", stream.NewHTTPHandler(broadcaster))
	mux.Handle("/offer", webrtcHandler)

	// API endpoints
	mux.HandleFunc("/api/tracks", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Slot         string `json:"slot"`
			AnalysisPath string `json:"analysis_path"`
			AudioPath    string `json:"audio_path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		track, err := analysis.Load(req.AnalysisPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("load analysis: %v", err), http.StatusBadRequest)
			return
		}
		buf, err := pcm.DecodeFile(req.AudioPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("decode audio: %v", err), http.StatusBadRequest)
			return
		}
		if err := sess.SetTrack(req.Slot, track, buf); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("Track loaded: slot=%s tempo=%.1f duration=%.1fs", req.Slot, track.TempoOr(0), buf.Duration())
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "slot": req.Slot})
	})

	mux.HandleFunc("/api/plan", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Beats         int     `json:"beats"`
			Strategy      string  `json:"strategy"`
			SmartLength   bool    `json:"smart_length"`
			PhraseAlign   bool    `json:"phrase_align"`
			HarmonicMatch bool    `json:"harmonic_match"`
			MinBeats      int     `json:"min_beats"`
			MaxBeats      int     `json:"max_beats"`
			MaxDetune     float64 `json:"max_detune"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		strategy, err := plan.ParseTempoStrategy(req.Strategy)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Beats == 0 {
			req.Beats = cfg.DefaultBeats
		}
		if req.MinBeats == 0 {
			req.MinBeats = cfg.MinBeats
		}
		if req.MaxBeats == 0 {
			req.MaxBeats = cfg.MaxBeats
		}
		if req.MaxDetune == 0 {
			req.MaxDetune = cfg.MaxDetuneSemis
		}
		p, err := sess.BuildPlan(session.PlanRequest{
			Beats:    req.Beats,
			Strategy: strategy,
			Options: plan.Options{
				SmartLength:    req.SmartLength,
				PhraseAlign:    req.PhraseAlign,
				HarmonicMatch:  req.HarmonicMatch,
				MinBeats:       req.MinBeats,
				MaxBeats:       req.MaxBeats,
				MaxDetuneSemis: req.MaxDetune,
			},
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(p)
	})

	mux.HandleFunc("/api/schedule", func(w http.ResponseWriter, r *http.Request) {
		opts, err := renderOptions(r, cfg)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		frames, err := sess.Schedule(opts)
		if err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(frames)
	})

	mux.HandleFunc("/api/preview", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		opts, err := renderOptions(r, cfg)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := sess.Preview(ctx, opts); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	mux.HandleFunc("/api/preview/stop", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		sess.StopPreview()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	mux.HandleFunc("/api/export", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		opts, err := renderOptions(r, cfg)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		result, err := sess.Export(r.Context(), opts)
		if err != nil {
			code := http.StatusInternalServerError
			if errors.Is(err, session.ErrRenderBusy) {
				code = http.StatusConflict
			} else if errors.Is(err, session.ErrNotConfigured) || errors.Is(err, session.ErrNoPlan) {
				code = http.StatusBadRequest
			}
			http.Error(w, err.Error(), code)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="transition-%s.wav"`, result.ID))
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(result.WAV)
	})

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		st := sess.CurrentStatus()
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		json.NewEncoder(w).Encode(map[string]any{
			"track_a_loaded":   st.TrackALoaded,
			"track_b_loaded":   st.TrackBLoaded,
			"has_plan":         st.HasPlan,
			"rendering":        st.Rendering,
			"xfade_duration":   st.Xfade,
			"chosen_beats":     st.ChosenBeats,
			"http_listeners":   broadcaster.ListenerCount(),
			"webrtc_listeners": webrtcHandler.PeerCount(),
			"config": map[string]any{
				"default_curve":   cfg.DefaultCurve,
				"default_beats":   cfg.DefaultBeats,
				"max_detune":      cfg.MaxDetuneSemis,
				"step_count":      cfg.StepCount,
				"preview_latency": cfg.PreviewLatency,
				"offline_tail":    cfg.OfflineTail,
			},
		})
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		sess.StopPreview()
		server.Close()
	}()

	log.Printf("segue live on %s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}
}

// renderOptions decodes the shared automation options body used by the
// schedule, preview, and export endpoints. Omitted EQ amounts fall back to a
// gentle -12 dB duck and +3 dB boost.
func renderOptions(r *http.Request, cfg config.Config) (automation.Options, error) {
	var req struct {
		Curve       string   `json:"curve"`
		EQEnable    bool     `json:"eq_enable"`
		EQLowDuck   *float64 `json:"eq_low_duck_db"`
		EQHighBoost *float64 `json:"eq_high_boost_db"`
		FilterSwap  bool     `json:"filter_swap"`
		TempoRamp   bool     `json:"tempo_ramp"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return automation.Options{}, fmt.Errorf("invalid request: %w", err)
		}
	}
	if req.Curve == "" {
		req.Curve = cfg.DefaultCurve
	}
	shape, err := curve.ParseShape(req.Curve)
	if err != nil {
		return automation.Options{}, err
	}
	opts := automation.Options{
		Curve:         shape,
		EQEnable:      req.EQEnable,
		EQLowDuckDb:   -12,
		EQHighBoostDb: 3,
		FilterSwap:    req.FilterSwap,
		TempoRamp:     req.TempoRamp,
	}
	if req.EQLowDuck != nil {
		opts.EQLowDuckDb = *req.EQLowDuck
	}
	if req.EQHighBoost != nil {
		opts.EQHighBoostDb = *req.EQHighBoost
	}
	return opts, nil
}

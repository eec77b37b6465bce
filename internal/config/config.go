// Package config loads runtime configuration from environment variables.
package config

import (
	"os"
	"strconv"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port int

	// Planner defaults
	DefaultCurve   string  // crossfade curve for preview/export
	DefaultBeats   int     // crossfade length when smart length is off
	MinBeats       int     // planner lower bound (0 = built-in default)
	MaxBeats       int     // planner upper bound (0 = built-in default)
	MaxDetuneSemis float64 // harmonic detune ceiling

	// Rendering
	StepCount      int     // keyframes across the crossfade window
	PreviewLatency float64 // seconds of scheduling latency before preview audio
	OfflineTail    float64 // seconds of B played out after the crossfade
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Port: envInt("SEGUE_PORT", 8080),

		DefaultCurve:   envStr("SEGUE_CURVE", "equal-power"),
		DefaultBeats:   envInt("SEGUE_BEATS", 16),
		MinBeats:       envInt("SEGUE_MIN_BEATS", 0),
		MaxBeats:       envInt("SEGUE_MAX_BEATS", 0),
		MaxDetuneSemis: envFloat("SEGUE_MAX_DETUNE", 2.0),

		StepCount:      envInt("SEGUE_STEP_COUNT", 128),
		PreviewLatency: envFloat("SEGUE_PREVIEW_LATENCY", 0.05),
		OfflineTail:    envFloat("SEGUE_OFFLINE_TAIL", 8.0),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

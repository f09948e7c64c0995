package config

import (
	"fmt"
	"os"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/satindergrewal/segue/internal/audio"
	"github.com/satindergrewal/segue/internal/transition"
)

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Analysis
	SampleRate int // Hz, every track is decoded to mono at this rate

	// Transition shape
	SegmentLength time.Duration // extracted from each track
	FadeDuration  time.Duration // overlap between the two segments
	LeadIn        time.Duration // beats earlier than this are never chosen
	EQSplitHz     float64       // bass/highs crossover
	SweepStartHz  float64       // high-pass sweep on the outgoing highs
	SweepEndHz    float64
	TargetPeak    float64 // output normalization

	// Batch
	Seed         int64 // segment selection seed, negative means unseeded
	Workers      int   // pairs rendered concurrently
	AudioDir     string
	AudioExt     string // extension of source tracks, without the dot
	PairsFile    string
	OutputDir    string
	OutputFormat string // mp3, flac, wav, opus

	// Listener study
	StudyDir  string
	StudySeed int64
	Port      int
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		SampleRate: envInt("SEGUE_SAMPLE_RATE", 22050),

		SegmentLength: envSeconds("SEGUE_SEGMENT_SECONDS", 15),
		FadeDuration:  envSeconds("SEGUE_FADE_SECONDS", 10),
		LeadIn:        envSeconds("SEGUE_LEAD_IN_SECONDS", 10),
		EQSplitHz:     envFloat("SEGUE_EQ_SPLIT_HZ", 250),
		SweepStartHz:  envFloat("SEGUE_SWEEP_START_HZ", 250),
		SweepEndHz:    envFloat("SEGUE_SWEEP_END_HZ", 2000),
		TargetPeak:    envFloat("SEGUE_TARGET_PEAK", 0.95),

		Seed:         int64(envInt("SEGUE_SEED", -1)),
		Workers:      envInt("SEGUE_WORKERS", runtime.NumCPU()),
		AudioDir:     envStr("SEGUE_AUDIO_DIR", "audio"),
		AudioExt:     strings.TrimPrefix(envStr("SEGUE_AUDIO_EXT", "mp3"), "."),
		PairsFile:    envStr("SEGUE_PAIRS_FILE", "test_transitions.csv"),
		OutputDir:    envStr("SEGUE_OUTPUT_DIR", "transition_clips_combo"),
		OutputFormat: strings.ToLower(envStr("SEGUE_OUTPUT_FORMAT", "mp3")),

		StudyDir:  envStr("SEGUE_STUDY_DIR", "clips_for_listeners"),
		StudySeed: int64(envInt("SEGUE_STUDY_SEED", 42)),
		Port:      envInt("SEGUE_PORT", 8080),
	}
}

// Validate reports the first setting that cannot produce a transition.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	case c.FadeDuration <= 0:
		return fmt.Errorf("fade duration must be positive, got %v", c.FadeDuration)
	case c.SegmentLength <= c.FadeDuration:
		return fmt.Errorf("segment length %v must exceed fade duration %v", c.SegmentLength, c.FadeDuration)
	case c.LeadIn < 0:
		return fmt.Errorf("lead-in must not be negative, got %v", c.LeadIn)
	case c.SweepStartHz <= 0 || c.SweepStartHz >= c.SweepEndHz:
		return fmt.Errorf("sweep must rise from a positive frequency, got %g..%g Hz", c.SweepStartHz, c.SweepEndHz)
	case c.TargetPeak <= 0 || c.TargetPeak > 1:
		return fmt.Errorf("target peak must be in (0, 1], got %g", c.TargetPeak)
	case c.Workers < 1:
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	case !slices.Contains(audio.Formats(), c.OutputFormat):
		return fmt.Errorf("unknown output format %q (want one of %s)", c.OutputFormat, strings.Join(audio.Formats(), ", "))
	}
	return nil
}

// Transition returns the render settings.
func (c Config) Transition() transition.Config {
	tc := transition.DefaultConfig()
	tc.SampleRate = c.SampleRate
	tc.SegmentLength = c.SegmentLength
	tc.FadeDuration = c.FadeDuration
	tc.LeadIn = c.LeadIn
	tc.EQSplitHz = c.EQSplitHz
	tc.SweepStartHz = c.SweepStartHz
	tc.SweepEndHz = c.SweepEndHz
	tc.TargetPeak = c.TargetPeak
	return tc
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

// envSeconds accepts fractional seconds ("7.5").
func envSeconds(key string, fallback float64) time.Duration {
	return time.Duration(envFloat(key, fallback) * float64(time.Second))
}

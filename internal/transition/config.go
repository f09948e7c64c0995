package transition

import (
	"fmt"
	"time"

	"github.com/satindergrewal/segue/internal/audio"
)

// Config shapes every transition an Engine renders.
type Config struct {
	SampleRate    int
	SegmentLength time.Duration
	FadeDuration  time.Duration
	LeadIn        time.Duration
	EQSplitHz     float64
	SweepStartHz  float64
	SweepEndHz    float64
	SweepWindow   time.Duration
	TargetPeak    float64
}

// DefaultConfig returns 15s segments joined by a 10s crossfade at 22050 Hz.
func DefaultConfig() Config {
	return Config{
		SampleRate:    22050,
		SegmentLength: 15 * time.Second,
		FadeDuration:  10 * time.Second,
		LeadIn:        10 * time.Second,
		EQSplitHz:     250,
		SweepStartHz:  250,
		SweepEndHz:    2000,
		SweepWindow:   10 * time.Millisecond,
		TargetPeak:    0.95,
	}
}

// Validate checks the configuration before any audio is touched.
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
	case c.TargetPeak <= 0 || c.TargetPeak > 1:
		return fmt.Errorf("target peak must be in (0, 1], got %g", c.TargetPeak)
	case c.SweepWindow <= 0:
		return fmt.Errorf("sweep window must be positive, got %v", c.SweepWindow)
	}
	return nil
}

// SegmentSamples is the segment length in samples.
func (c Config) SegmentSamples() int { return audio.Samples(c.SegmentLength, c.SampleRate) }

// FadeSamples is the crossfade length in samples.
func (c Config) FadeSamples() int { return audio.Samples(c.FadeDuration, c.SampleRate) }

// LeadInSamples is the lead-in in samples.
func (c Config) LeadInSamples() int { return audio.Samples(c.LeadIn, c.SampleRate) }

// OutputSamples is the length of every rendered transition.
func (c Config) OutputSamples() int { return 2*c.SegmentSamples() - c.FadeSamples() }

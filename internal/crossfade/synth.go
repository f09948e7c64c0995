package crossfade

import (
	"fmt"

	vecmath "github.com/cwbudde/algo-vecmath"
	"github.com/satindergrewal/segue/internal/audio"
)

// Synthesizer mixes two equal-length regions into a DJ-style crossfade.
// Both regions are split at SplitHz. Outgoing bass fades out fast while
// incoming bass comes in early, so the lows never double up. Outgoing
// highs are thinned by a rising high-pass sweep before fading.
type Synthesizer struct {
	SampleRate float64
	SplitHz    float64
	Order      int

	SweepStartHz float64
	SweepEndHz   float64
	SweepWindow  int // samples

	BassOutExp  float64
	HighsOutExp float64
	BassInExp   float64
	HighsInExp  float64
}

// NewSynthesizer returns the standard curve set at sampleRate with 10ms
// sweep windows.
func NewSynthesizer(sampleRate int) *Synthesizer {
	return &Synthesizer{
		SampleRate:   float64(sampleRate),
		SplitHz:      250,
		Order:        DefaultOrder,
		SweepStartHz: 250,
		SweepEndHz:   2000,
		SweepWindow:  sampleRate / 100,
		BassOutExp:   3,
		HighsOutExp:  2,
		BassInExp:    2,
		HighsInExp:   3,
	}
}

// Validate checks that every cutoff is below Nyquist.
func (s *Synthesizer) Validate() error {
	nyquist := s.SampleRate / 2
	cutoffs := []struct {
		name string
		hz   float64
	}{
		{"split", s.SplitHz},
		{"sweep start", s.SweepStartHz},
		{"sweep end", s.SweepEndHz},
	}
	for _, c := range cutoffs {
		if c.hz <= 0 || c.hz >= nyquist {
			return fmt.Errorf("crossfade %s frequency %g Hz must be in (0, %g)", c.name, c.hz, nyquist)
		}
	}
	if s.SweepWindow <= 0 {
		return fmt.Errorf("crossfade sweep window must be positive, got %d", s.SweepWindow)
	}
	if s.Order <= 0 {
		return fmt.Errorf("crossfade filter order must be positive, got %d", s.Order)
	}
	return nil
}

// Layers are the four faded bands whose sum is the crossfade.
type Layers struct {
	ABass, AHighs []float64
	BBass, BHighs []float64
}

// Sum mixes the layers.
func (l Layers) Sum() []float64 {
	out := make([]float64, len(l.ABass))
	copy(out, l.ABass)
	vecmath.AddBlockInPlace(out, l.AHighs)
	vecmath.AddBlockInPlace(out, l.BBass)
	vecmath.AddBlockInPlace(out, l.BHighs)
	return out
}

// Layers band-splits, sweeps and fades the outgoing region a and the
// incoming region b.
func (s *Synthesizer) Layers(a, b []float64) (Layers, error) {
	if len(a) != len(b) {
		return Layers{}, audio.Invariantf("crossfade regions differ in length: %d vs %d", len(a), len(b))
	}
	n := len(a)

	aBass, err := Lowpass(a, s.SampleRate, s.SplitHz, s.Order)
	if err != nil {
		return Layers{}, fmt.Errorf("outgoing bass: %w", err)
	}
	aHighs, err := Highpass(a, s.SampleRate, s.SplitHz, s.Order)
	if err != nil {
		return Layers{}, fmt.Errorf("outgoing highs: %w", err)
	}
	bBass, err := Lowpass(b, s.SampleRate, s.SplitHz, s.Order)
	if err != nil {
		return Layers{}, fmt.Errorf("incoming bass: %w", err)
	}
	bHighs, err := Highpass(b, s.SampleRate, s.SplitHz, s.Order)
	if err != nil {
		return Layers{}, fmt.Errorf("incoming highs: %w", err)
	}

	plan := PlanSweep(n, s.SweepWindow, s.SweepStartHz, s.SweepEndHz)
	aHighs = ApplySweep(aHighs, s.SampleRate, plan, s.Order)

	vecmath.MulBlockInPlace(aBass, FadeOut(n, s.BassOutExp))
	vecmath.MulBlockInPlace(aHighs, FadeOut(n, s.HighsOutExp))
	vecmath.MulBlockInPlace(bBass, FadeIn(n, s.BassInExp))
	vecmath.MulBlockInPlace(bHighs, FadeIn(n, s.HighsInExp))

	return Layers{ABass: aBass, AHighs: aHighs, BBass: bBass, BHighs: bHighs}, nil
}

// Mix returns the crossfade of a into b.
func (s *Synthesizer) Mix(a, b []float64) ([]float64, error) {
	l, err := s.Layers(a, b)
	if err != nil {
		return nil, err
	}
	return l.Sum(), nil
}

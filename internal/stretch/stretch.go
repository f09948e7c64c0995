// Package stretch changes the tempo of a signal without changing its pitch.
package stretch

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/effects/pitch"
	"github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/satindergrewal/segue/internal/audio"
)

// maxPitchStep bounds a single pitch shifter pass in either direction.
const maxPitchStep = 4.0

// Ratio returns the tempo ratio that makes a track at tempoB play at tempoA.
func Ratio(tempoA, tempoB float64) (float64, error) {
	r := tempoA / tempoB
	if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
		return 0, &audio.DegenerateStretchError{
			Ratio:  r,
			Reason: fmt.Sprintf("tempos %.2f and %.2f give no usable ratio", tempoA, tempoB),
		}
	}
	return r, nil
}

// LowQuality reports ratios where stretching artifacts become audible.
func LowQuality(ratio float64) bool {
	return ratio > 2 || ratio < 0.5
}

// Stretcher time-stretches by resampling to the target length and then
// shifting pitch back with a WSOLA pitch shifter.
type Stretcher struct {
	Quality resample.Quality
}

// New returns a Stretcher with balanced resampling quality.
func New() *Stretcher {
	return &Stretcher{Quality: resample.QualityBalanced}
}

// Stretch speeds w up by ratio (ratio > 1 shortens, ratio < 1 lengthens).
// The output has round(len/ratio) samples and the same pitch.
func (s *Stretcher) Stretch(w audio.Waveform, ratio float64) (audio.Waveform, error) {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) || ratio <= 0 {
		return audio.Waveform{}, &audio.DegenerateStretchError{Ratio: ratio, Reason: "not a positive finite number"}
	}
	if ratio == 1 {
		return w.Clone(), nil
	}
	if w.SampleRate <= 0 {
		return audio.Waveform{}, fmt.Errorf("stretch: invalid sample rate %d", w.SampleRate)
	}

	target := int(math.Round(float64(w.Len()) / ratio))
	if target < 1 {
		return audio.Waveform{}, &audio.DegenerateStretchError{Ratio: ratio, Reason: "output would be empty"}
	}

	resampled, err := s.resample(w.Samples, ratio, target)
	if err != nil {
		return audio.Waveform{}, err
	}

	// Resampling to target length at the same rate shifted the pitch by ratio.
	out := resampled
	for _, step := range pitchSteps(1 / ratio) {
		shifter, err := pitch.NewPitchShifter(float64(w.SampleRate))
		if err != nil {
			return audio.Waveform{}, fmt.Errorf("stretch: pitch shifter: %w", err)
		}
		if err := shifter.SetPitchRatio(step); err != nil {
			return audio.Waveform{}, fmt.Errorf("stretch: pitch step %g of %g: %w", step, 1/ratio, err)
		}
		out = fit(shifter.Process(out), target)
	}

	return audio.Waveform{Samples: out, SampleRate: w.SampleRate}, nil
}

// pitchSteps splits a pitch correction into equal factors that each stay
// within one shifter pass.
func pitchSteps(correction float64) []float64 {
	n := max(1, int(math.Ceil(math.Abs(math.Log(correction))/math.Log(maxPitchStep)-1e-12)))
	step := math.Pow(correction, 1/float64(n))
	steps := make([]float64, n)
	for i := range steps {
		steps[i] = step
	}
	return steps
}

// resample maps len(x) samples onto target samples, compensating for the
// filter's group delay.
func (s *Stretcher) resample(x []float64, ratio float64, target int) ([]float64, error) {
	rs, err := resample.NewForRates(ratio, 1, resample.WithQuality(s.Quality))
	if err != nil {
		return nil, fmt.Errorf("stretch: resampler: %w", err)
	}

	_, down := rs.Ratio()
	delay := int(math.Round(float64(len(rs.Prototype())-1) / 2 / float64(down)))

	padded := make([]float64, len(x)+rs.TapsPerPhase()+1)
	copy(padded, x)
	out := rs.Process(padded)
	if delay < len(out) {
		out = out[delay:]
	}
	return fit(out, target), nil
}

// fit truncates or zero-pads x to exactly n samples.
func fit(x []float64, n int) []float64 {
	if len(x) == n {
		return x
	}
	out := make([]float64, n)
	copy(out, x)
	return out
}

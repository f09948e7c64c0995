package beat

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/spectrum"
	"github.com/cwbudde/algo-dsp/dsp/window"
	algofft "github.com/cwbudde/algo-fft"
)

// logCompression scales magnitudes before log1p so quiet material still
// produces measurable flux.
const logCompression = 100.0

// OnsetEnvelope computes half-wave rectified log-spectral flux, one value
// per hop. Frames are centered: frame t covers samples around t*hop.
func OnsetEnvelope(samples []float64, frameLen, hop int) ([]float64, error) {
	if frameLen <= 0 || hop <= 0 {
		return nil, fmt.Errorf("onset: frame %d and hop %d must be positive", frameLen, hop)
	}
	if len(samples) == 0 {
		return nil, nil
	}

	plan, err := algofft.NewPlan64(frameLen)
	if err != nil {
		return nil, fmt.Errorf("onset: fft plan: %w", err)
	}

	win := window.Generate(window.TypeHann, frameLen, window.WithPeriodic())
	bins := frameLen/2 + 1
	buf := make([]complex128, frameLen)
	prev := make([]float64, bins)
	cur := make([]float64, bins)

	nFrames := 1 + (len(samples)-1)/hop
	env := make([]float64, nFrames)
	half := frameLen / 2

	for t := range nFrames {
		start := t*hop - half
		for i := range buf {
			v := 0.0
			if idx := start + i; idx >= 0 && idx < len(samples) {
				v = samples[idx] * win[i]
			}
			buf[i] = complex(v, 0)
		}
		if err := plan.Forward(buf, buf); err != nil {
			return nil, fmt.Errorf("onset: fft: %w", err)
		}

		mag := spectrum.Magnitude(buf[:bins])
		for k, m := range mag {
			cur[k] = math.Log1p(logCompression * m)
		}

		if t > 0 {
			var flux float64
			for k := range cur {
				if d := cur[k] - prev[k]; d > 0 {
					flux += d
				}
			}
			env[t] = flux / float64(bins)
		}
		prev, cur = cur, prev
	}

	return env, nil
}

// standardize divides env by its standard deviation in place. It reports
// false when the envelope is flat.
func standardize(env []float64) bool {
	if len(env) < 2 {
		return false
	}
	var mean float64
	for _, v := range env {
		mean += v
	}
	mean /= float64(len(env))

	var ss float64
	for _, v := range env {
		ss += (v - mean) * (v - mean)
	}
	std := math.Sqrt(ss / float64(len(env)-1))
	if std < 1e-9 || math.IsNaN(std) {
		return false
	}
	for i := range env {
		env[i] /= std
	}
	return true
}

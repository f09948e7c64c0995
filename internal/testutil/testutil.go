// Package testutil synthesizes deterministic signals for tests.
package testutil

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/signal"
	"github.com/satindergrewal/segue/internal/audio"
)

const clickLength = 0.06 // seconds

// ClickTrack returns a metronome at bpm: a short decaying kick plus tick
// on every beat, starting at sample 0.
func ClickTrack(bpm, seconds float64, sampleRate int) audio.Waveform {
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)

	click := clickTemplate(sampleRate)
	period := 60 / bpm * float64(sampleRate)
	for beat := 0.0; ; beat++ {
		start := int(math.Round(beat * period))
		if start >= n {
			break
		}
		for i, v := range click {
			if start+i >= n {
				break
			}
			out[start+i] += v
		}
	}
	return audio.Waveform{Samples: out, SampleRate: sampleRate}
}

// Sine returns a pure tone.
func Sine(freq, amplitude, seconds float64, sampleRate int) audio.Waveform {
	gen := signal.NewGenerator(core.WithSampleRate(float64(sampleRate)))
	s, err := gen.Sine(freq, amplitude, int(seconds*float64(sampleRate)))
	if err != nil {
		panic(err)
	}
	return audio.Waveform{Samples: s, SampleRate: sampleRate}
}

// Silence returns an all-zero waveform.
func Silence(seconds float64, sampleRate int) audio.Waveform {
	return audio.Waveform{Samples: make([]float64, int(seconds*float64(sampleRate))), SampleRate: sampleRate}
}

// Mix sums waveforms of equal rate, truncated to the shortest.
func Mix(ws ...audio.Waveform) audio.Waveform {
	if len(ws) == 0 {
		return audio.Waveform{}
	}
	n := ws[0].Len()
	for _, w := range ws[1:] {
		n = min(n, w.Len())
	}
	out := make([]float64, n)
	for _, w := range ws {
		for i := range out {
			out[i] += w.Samples[i]
		}
	}
	return audio.Waveform{Samples: out, SampleRate: ws[0].SampleRate}
}

// ZeroCrossingRate counts sign changes per second.
func ZeroCrossingRate(w audio.Waveform) float64 {
	if w.Len() < 2 || w.SampleRate <= 0 {
		return 0
	}
	crossings := 0
	for i := 1; i < w.Len(); i++ {
		if (w.Samples[i-1] < 0) != (w.Samples[i] < 0) {
			crossings++
		}
	}
	return float64(crossings) / w.Duration().Seconds()
}

// RMS of a sample block.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func clickTemplate(sampleRate int) []float64 {
	n := int(clickLength * float64(sampleRate))
	gen := signal.NewGenerator(core.WithSampleRate(float64(sampleRate)))
	kick, err := gen.Sine(80, 0.6, n)
	if err != nil {
		panic(err)
	}
	tick, err := gen.Sine(1500, 0.3, n)
	if err != nil {
		panic(err)
	}
	for i := range kick {
		env := math.Exp(-float64(i) / (0.012 * float64(sampleRate)))
		kick[i] = (kick[i] + tick[i]) * env
	}
	return kick
}

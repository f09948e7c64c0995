package audio

import (
	"math"
	"time"
)

// Playout format used by the audition stream. Analysis happens on mono
// Waveforms at the configured rate instead.
const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// Waveform is a mono signal with nominal range [-1, 1].
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Len returns the number of samples.
func (w Waveform) Len() int { return len(w.Samples) }

// Duration returns the playing time of the signal.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(w.Samples)) / float64(w.SampleRate) * float64(time.Second))
}

// Clone returns a deep copy.
func (w Waveform) Clone() Waveform {
	s := make([]float64, len(w.Samples))
	copy(s, w.Samples)
	return Waveform{Samples: s, SampleRate: w.SampleRate}
}

// Slice copies samples [start, end) into a new Waveform.
// Bounds are clamped to the signal.
func (w Waveform) Slice(start, end int) Waveform {
	start = max(0, min(start, len(w.Samples)))
	end = max(start, min(end, len(w.Samples)))
	s := make([]float64, end-start)
	copy(s, w.Samples[start:end])
	return Waveform{Samples: s, SampleRate: w.SampleRate}
}

// Samples converts a duration to a sample count at rate, rounded to nearest.
func Samples(d time.Duration, rate int) int {
	return int(math.Round(d.Seconds() * float64(rate)))
}

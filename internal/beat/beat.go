// Package beat estimates tempo and beat positions of a mono signal.
package beat

import (
	"fmt"

	"github.com/satindergrewal/segue/internal/audio"
)

const (
	DefaultFrameLength = 2048
	DefaultHopLength   = 512
	DefaultStartBPM    = 120.0
	DefaultTightness   = 100.0
	MinBPM             = 30.0
	MaxBPM             = 300.0

	minAnalysisSeconds = 2.0
)

// Grid is the result of beat analysis.
type Grid struct {
	Tempo float64 // BPM, always > 0
	Beats []int   // strictly increasing sample offsets, all < signal length
}

// Interval returns the nominal beat spacing in samples at sampleRate.
func (g Grid) Interval(sampleRate int) float64 {
	return 60 / g.Tempo * float64(sampleRate)
}

// Estimator holds analysis parameters. The zero value is not usable; use
// NewEstimator.
type Estimator struct {
	FrameLength int
	HopLength   int
	StartBPM    float64 // center of the tempo prior
	Tightness   float64 // how strictly beats follow the tempo
}

// NewEstimator returns an Estimator with the standard analysis settings.
func NewEstimator() *Estimator {
	return &Estimator{
		FrameLength: DefaultFrameLength,
		HopLength:   DefaultHopLength,
		StartBPM:    DefaultStartBPM,
		Tightness:   DefaultTightness,
	}
}

// Estimate returns the tempo and beat grid of w. Silent, flat or very short
// signals fail with *audio.BeatDetectionError.
func (e *Estimator) Estimate(w audio.Waveform) (Grid, error) {
	if w.SampleRate <= 0 {
		return Grid{}, &audio.BeatDetectionError{Reason: fmt.Sprintf("invalid sample rate %d", w.SampleRate)}
	}
	if secs := w.Duration().Seconds(); secs < minAnalysisSeconds {
		return Grid{}, &audio.BeatDetectionError{Reason: fmt.Sprintf("signal too short (%.2fs)", secs)}
	}

	env, err := OnsetEnvelope(w.Samples, e.FrameLength, e.HopLength)
	if err != nil {
		return Grid{}, &audio.BeatDetectionError{Reason: err.Error()}
	}
	if !standardize(env) {
		return Grid{}, &audio.BeatDetectionError{Reason: "no onsets (silent or flat signal)"}
	}

	fps := float64(w.SampleRate) / float64(e.HopLength)
	tempo, ok := estimateTempo(env, fps, e.StartBPM, MinBPM, MaxBPM)
	if !ok {
		return Grid{}, &audio.BeatDetectionError{Reason: "no periodic onset structure"}
	}

	frames := trackBeats(env, 60*fps/tempo, e.Tightness)

	beats := make([]int, 0, len(frames))
	for _, f := range frames {
		s := f * e.HopLength
		if s >= w.Len() {
			break
		}
		if len(beats) > 0 && s <= beats[len(beats)-1] {
			continue
		}
		beats = append(beats, s)
	}
	if len(beats) == 0 {
		return Grid{}, &audio.BeatDetectionError{Reason: "no beats found"}
	}

	return Grid{Tempo: tempo, Beats: beats}, nil
}

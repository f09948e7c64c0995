// Package transition renders a beat-matched DJ transition between two tracks.
package transition

import (
	"context"
	"log"

	"github.com/satindergrewal/segue/internal/audio"
	"github.com/satindergrewal/segue/internal/beat"
	"github.com/satindergrewal/segue/internal/crossfade"
	"github.com/satindergrewal/segue/internal/segment"
	"github.com/satindergrewal/segue/internal/stretch"
)

// Result is a rendered transition plus what the engine decided on the way.
type Result struct {
	Output audio.Waveform

	TempoA          float64 // BPM
	TempoB          float64 // BPM, before stretching
	StretchedTempoB float64 // BPM, re-estimated after stretching
	Ratio           float64 // tempoA / tempoB
	LowQuality      bool    // ratio outside [0.5, 2]

	SegmentA segment.Selection
	SegmentB segment.Selection
}

// Engine renders transitions. It holds no per-render state and is safe for
// concurrent use.
type Engine struct {
	cfg       Config
	beats     *beat.Estimator
	stretcher *stretch.Stretcher
	synth     *crossfade.Synthesizer
}

// NewEngine validates cfg and builds the stage components.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	synth := crossfade.NewSynthesizer(cfg.SampleRate)
	synth.SplitHz = cfg.EQSplitHz
	synth.SweepStartHz = cfg.SweepStartHz
	synth.SweepEndHz = cfg.SweepEndHz
	synth.SweepWindow = max(1, audio.Samples(cfg.SweepWindow, cfg.SampleRate))
	if err := synth.Validate(); err != nil {
		return nil, err
	}

	return &Engine{
		cfg:       cfg,
		beats:     beat.NewEstimator(),
		stretcher: stretch.New(),
		synth:     synth,
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Render builds the transition from a into b. Both waveforms must be at the
// engine's sample rate. rng picks the segment starts; a seeded source makes
// the render reproducible. Failures are wrapped in *StageError.
func (e *Engine) Render(ctx context.Context, a, b audio.Waveform, rng segment.Source) (Result, error) {
	if a.SampleRate != e.cfg.SampleRate || b.SampleRate != e.cfg.SampleRate {
		return Result{}, audio.Invariantf("waveforms at %d and %d Hz, engine runs at %d Hz",
			a.SampleRate, b.SampleRate, e.cfg.SampleRate)
	}

	var res Result
	stage := func(name string, fn func() error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(); err != nil {
			return &StageError{Stage: name, Err: err}
		}
		return nil
	}

	var gridA, gridB, gridB2 beat.Grid
	if err := stage(StageBeatsA, func() (err error) {
		gridA, err = e.beats.Estimate(a)
		return err
	}); err != nil {
		return Result{}, err
	}
	if err := stage(StageBeatsB, func() (err error) {
		gridB, err = e.beats.Estimate(b)
		return err
	}); err != nil {
		return Result{}, err
	}
	res.TempoA, res.TempoB = gridA.Tempo, gridB.Tempo

	var stretched audio.Waveform
	if err := stage(StageStretch, func() (err error) {
		if res.Ratio, err = stretch.Ratio(gridA.Tempo, gridB.Tempo); err != nil {
			return err
		}
		res.LowQuality = stretch.LowQuality(res.Ratio)
		if res.LowQuality {
			log.Printf("Stretch ratio %.3f is outside [0.5, 2], expect artifacts", res.Ratio)
		}
		stretched, err = e.stretcher.Stretch(b, res.Ratio)
		return err
	}); err != nil {
		return Result{}, err
	}
	if err := stage(StageBeatsB2, func() (err error) {
		gridB2, err = e.beats.Estimate(stretched)
		return err
	}); err != nil {
		return Result{}, err
	}
	res.StretchedTempoB = gridB2.Tempo

	segLen, fade := e.cfg.SegmentSamples(), e.cfg.FadeSamples()
	sel := segment.Selector{Length: segLen, LeadIn: e.cfg.LeadInSamples(), Rand: rng}

	var segA, segB audio.Waveform
	if err := stage(StageSegmentA, func() (err error) {
		if res.SegmentA, err = sel.Select(a.Len(), gridA.Beats); err != nil {
			return err
		}
		segA, err = sel.Extract(a, res.SegmentA)
		return err
	}); err != nil {
		return Result{}, err
	}
	if err := stage(StageSegmentB, func() (err error) {
		if res.SegmentB, err = sel.Select(stretched.Len(), gridB2.Beats); err != nil {
			return err
		}
		segB, err = sel.Extract(stretched, res.SegmentB)
		return err
	}); err != nil {
		return Result{}, err
	}
	if res.SegmentA.Fallback || res.SegmentB.Fallback {
		log.Printf("No beat in the safe zone (A fallback %v, B fallback %v), starting at lead-in",
			res.SegmentA.Fallback, res.SegmentB.Fallback)
	}

	var xfade []float64
	if err := stage(StageCrossfade, func() (err error) {
		xfade, err = e.synth.Mix(segA.Samples[segLen-fade:], segB.Samples[:fade])
		return err
	}); err != nil {
		return Result{}, err
	}

	var out []float64
	if err := stage(StageAssemble, func() (err error) {
		out, err = Assemble(segA.Samples, segB.Samples, xfade, fade, segLen, e.cfg.TargetPeak)
		return err
	}); err != nil {
		return Result{}, err
	}

	res.Output = audio.Waveform{Samples: out, SampleRate: e.cfg.SampleRate}
	return res, nil
}

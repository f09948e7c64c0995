package batch

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/satindergrewal/segue/internal/audio"
	"github.com/satindergrewal/segue/internal/segment"
	"github.com/satindergrewal/segue/internal/transition"
)

// ManifestName is written into the output directory after every run.
const ManifestName = "manifest.json"

// Resolver maps a track id to its audio file.
type Resolver func(trackID string) string

// DirResolver resolves ids to <dir>/<id>.<ext>.
func DirResolver(dir, ext string) Resolver {
	return func(id string) string {
		return filepath.Join(dir, id+"."+ext)
	}
}

// Options control a batch run.
type Options struct {
	Workers   int
	Seed      int64 // negative for unseeded
	OutputDir string
	Format    string // output file extension
	Resolve   Resolver
}

// EventKind distinguishes progress events.
type EventKind int

const (
	EventStarted EventKind = iota
	EventFinished
)

// Event reports progress on one pair. Outcome is set for EventFinished.
type Event struct {
	Kind    EventKind
	Pair    Pair
	Outcome *Outcome
}

// Outcome is the result of one pair: an output file or a failure.
type Outcome struct {
	Index  int    `json:"index"`
	PairID string `json:"pair_id"`
	TrackA string `json:"track_a"`
	TrackB string `json:"track_b"`

	Output          string  `json:"output,omitempty"`
	TempoA          float64 `json:"tempo_a,omitempty"`
	TempoB          float64 `json:"tempo_b,omitempty"`
	StretchedTempoB float64 `json:"stretched_tempo_b,omitempty"`
	Ratio           float64 `json:"stretch_ratio,omitempty"`
	StartA          int     `json:"start_a,omitempty"`
	StartB          int     `json:"start_b,omitempty"`
	Fallback        bool    `json:"fallback,omitempty"`
	LowQuality      bool    `json:"low_quality,omitempty"`

	Stage   string        `json:"stage,omitempty"`
	Error   string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"elapsed_ns"`

	Err error `json:"-"`
}

// OK reports whether the pair produced an output file.
func (o Outcome) OK() bool { return o.Error == "" && o.Output != "" }

// Runner renders pairs concurrently. Per-pair failures are recorded and
// the run continues; an invariant violation cancels the whole run.
type Runner struct {
	engine  *transition.Engine
	decoder audio.Decoder
	encoder audio.Encoder
	opts    Options

	mu      sync.Mutex
	onEvent func(Event)
}

// NewRunner wires a Runner. Zero Workers means one.
func NewRunner(engine *transition.Engine, decoder audio.Decoder, encoder audio.Encoder, opts Options) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Format == "" {
		opts.Format = "mp3"
	}
	if opts.Resolve == nil {
		opts.Resolve = DirResolver("audio", "mp3")
	}
	return &Runner{engine: engine, decoder: decoder, encoder: encoder, opts: opts}
}

// OnEvent registers an observer. Events are delivered serially.
func (r *Runner) OnEvent(fn func(Event)) {
	r.mu.Lock()
	r.onEvent = fn
	r.mu.Unlock()
}

func (r *Runner) emit(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.onEvent != nil {
		r.onEvent(ev)
	}
}

// Run renders every pair and writes the manifest. The returned error is
// non-nil only for run-level failures: an invariant violation, an
// unwritable output directory or manifest, or cancellation.
func (r *Runner) Run(ctx context.Context, pairs []Pair) (*Report, error) {
	if err := os.MkdirAll(r.opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	report := &Report{
		RunID:    uuid.NewString(),
		Started:  time.Now(),
		Workers:  r.opts.Workers,
		Seed:     r.opts.Seed,
		Format:   r.opts.Format,
		Config:   r.engine.Config(),
		Outcomes: make([]Outcome, len(pairs)),
	}
	log.Printf("Run %s: %d pairs, %d workers", report.RunID, len(pairs), r.opts.Workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, p := range pairs {
		g.Go(func() error {
			r.emit(Event{Kind: EventStarted, Pair: p})
			out := r.process(gctx, p)
			report.Outcomes[i] = out
			r.emit(Event{Kind: EventFinished, Pair: p, Outcome: &out})

			if audio.IsInvariantViolation(out.Err) {
				return fmt.Errorf("pair %s: %w", p.ID, out.Err)
			}
			return nil
		})
	}
	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	report.Finished = time.Now()
	report.tally()

	if err := WriteManifest(filepath.Join(r.opts.OutputDir, ManifestName), report); err != nil {
		if runErr == nil {
			runErr = err
		}
		log.Printf("Manifest write failed: %v", err)
	}
	return report, runErr
}

func (r *Runner) process(ctx context.Context, p Pair) Outcome {
	start := time.Now()
	o := Outcome{Index: p.Index, PairID: p.ID, TrackA: p.TrackA, TrackB: p.TrackB}

	fail := func(err error) Outcome {
		o.Err = err
		o.Error = err.Error()
		o.Stage = transition.StageOf(err)
		o.Elapsed = time.Since(start)
		log.Printf("Pair %s failed at %s: %v", p.ID, o.Stage, err)
		return o
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	a, err := r.decoder.Decode(ctx, r.opts.Resolve(p.TrackA))
	if err != nil {
		return fail(&transition.StageError{Stage: transition.StageDecodeA, Err: err})
	}
	b, err := r.decoder.Decode(ctx, r.opts.Resolve(p.TrackB))
	if err != nil {
		return fail(&transition.StageError{Stage: transition.StageDecodeB, Err: err})
	}

	res, err := r.engine.Render(ctx, a, b, r.randFor(p))
	if err != nil {
		return fail(err)
	}

	path := filepath.Join(r.opts.OutputDir, p.OutputName(r.opts.Format))
	meta := audio.Metadata{
		Title:       p.ID,
		Album:       "segue transitions",
		TrackNumber: p.Index + 1,
		Comment: fmt.Sprintf("A %.1f BPM, B %.1f BPM, stretch %.3fx",
			res.TempoA, res.TempoB, res.Ratio),
	}
	if err := r.encoder.Encode(ctx, path, res.Output, meta); err != nil {
		return fail(&transition.StageError{Stage: transition.StageEncode, Err: err})
	}

	o.Output = path
	o.TempoA, o.TempoB, o.StretchedTempoB = res.TempoA, res.TempoB, res.StretchedTempoB
	o.Ratio, o.LowQuality = res.Ratio, res.LowQuality
	o.StartA, o.StartB = res.SegmentA.Start, res.SegmentB.Start
	o.Fallback = res.SegmentA.Fallback || res.SegmentB.Fallback
	o.Elapsed = time.Since(start)
	log.Printf("Created %s (A %.1f BPM, B %.1f BPM, stretch %.3fx, %v)",
		filepath.Base(path), res.TempoA, res.TempoB, res.Ratio, o.Elapsed.Round(time.Millisecond))
	return o
}

// randFor derives the pair's random source. Seeded runs depend only on the
// seed and the pair index, never on scheduling order.
func (r *Runner) randFor(p Pair) segment.Source {
	if r.opts.Seed >= 0 {
		return rand.New(rand.NewPCG(uint64(r.opts.Seed), uint64(p.Index)))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

package transition

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	vecmath "github.com/cwbudde/algo-vecmath"
	"github.com/satindergrewal/segue/internal/audio"
	"github.com/satindergrewal/segue/internal/testutil"
)

const sr = 22050

// --- Config ---

func TestDefaultConfigOutputLength(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := cfg.OutputSamples(); got != 20*sr {
		t.Errorf("OutputSamples = %d, want %d (20s)", got, 20*sr)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SegmentLength = 5 * time.Second
	if err := cfg.Validate(); err == nil {
		t.Error("segment shorter than fade should fail")
	}
	if _, err := NewEngine(cfg); err == nil {
		t.Error("NewEngine should reject an invalid config")
	}

	cfg = DefaultConfig()
	cfg.SweepEndHz = 20000
	if _, err := NewEngine(cfg); err == nil {
		t.Error("NewEngine should reject a sweep above Nyquist")
	}
}

// --- Assemble ---

func TestAssembleLayout(t *testing.T) {
	segA := []float64{1, 1, 1, 1, 1}
	segB := []float64{2, 2, 2, 2, 2}
	xfade := []float64{3, 3}
	out, err := Assemble(segA, segB, xfade, 2, 5, 1)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(out) != 8 {
		t.Fatalf("len = %d, want 2*5-2 = 8", len(out))
	}
	// Peak 3 scaled to 1.
	want := []float64{1, 1, 1, 3, 3, 2, 2, 2}
	for i := range want {
		if math.Abs(out[i]-want[i]/3) > 1e-12 {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i]/3)
		}
	}
}

func TestAssembleRejectsMismatchedLengths(t *testing.T) {
	_, err := Assemble(make([]float64, 5), make([]float64, 4), make([]float64, 2), 2, 5, 1)
	if !audio.IsInvariantViolation(err) {
		t.Errorf("err = %v, want InvariantViolation", err)
	}
	_, err = Assemble(make([]float64, 5), make([]float64, 5), make([]float64, 3), 2, 5, 1)
	if !audio.IsInvariantViolation(err) {
		t.Errorf("err = %v, want InvariantViolation", err)
	}
}

func TestNormalizeSilenceUnchanged(t *testing.T) {
	x := make([]float64, 100)
	out, err := Normalize(x, 0.95)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if vecmath.MaxAbs(out) != 0 || len(out) != 100 {
		t.Errorf("silence changed: len %d peak %v", len(out), vecmath.MaxAbs(out))
	}
}

func TestNormalizePeak(t *testing.T) {
	out, err := Normalize([]float64{0.1, -0.5, 0.25}, 0.95)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if p := vecmath.MaxAbs(out); math.Abs(p-0.95) > 1e-12 {
		t.Errorf("peak = %v, want 0.95", p)
	}
	if out[1] >= 0 {
		t.Error("sign must be preserved")
	}
}

// --- Render ---

func TestRenderEndToEnd(t *testing.T) {
	engine, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	a := testutil.ClickTrack(120, 30, sr)
	b := testutil.ClickTrack(130, 30, sr)

	res, err := engine.Render(context.Background(), a, b, rand.New(rand.NewPCG(1, 1)))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if res.Output.Len() != 20*sr {
		t.Errorf("output length = %d, want %d", res.Output.Len(), 20*sr)
	}
	if res.Output.SampleRate != sr {
		t.Errorf("output rate = %d, want %d", res.Output.SampleRate, sr)
	}
	if p := vecmath.MaxAbs(res.Output.Samples); math.Abs(p-0.95) > 1e-9 {
		t.Errorf("output peak = %v, want 0.95", p)
	}
	if math.Abs(res.Ratio-120.0/130.0) > 0.03 {
		t.Errorf("stretch ratio = %.3f, want ~%.3f", res.Ratio, 120.0/130.0)
	}
	if res.LowQuality {
		t.Error("a 0.92 ratio should not be flagged low quality")
	}

	lead := 10 * sr
	if s := res.SegmentA.Start; !res.SegmentA.Fallback && (s <= lead || s >= a.Len()-15*sr) {
		t.Errorf("segment A starts at %d, outside safe zone", s)
	}
	if math.Abs(res.StretchedTempoB-res.TempoA) > 5 {
		t.Errorf("stretched B tempo %.1f should be near A tempo %.1f", res.StretchedTempoB, res.TempoA)
	}
}

func TestRenderDeterministicWithSeed(t *testing.T) {
	engine, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	a := testutil.ClickTrack(124, 30, sr)
	b := testutil.ClickTrack(124, 30, sr)

	r1, err := engine.Render(context.Background(), a, b, rand.New(rand.NewPCG(9, 3)))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	r2, err := engine.Render(context.Background(), a, b, rand.New(rand.NewPCG(9, 3)))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if r1.SegmentA != r2.SegmentA || r1.SegmentB != r2.SegmentB {
		t.Fatalf("segments differ: %+v/%+v vs %+v/%+v", r1.SegmentA, r1.SegmentB, r2.SegmentA, r2.SegmentB)
	}
	for i := range r1.Output.Samples {
		if r1.Output.Samples[i] != r2.Output.Samples[i] {
			t.Fatalf("sample %d differs between seeded renders", i)
		}
	}
}

func TestRenderSilentTrackFailsAtBeats(t *testing.T) {
	engine, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	_, err = engine.Render(context.Background(),
		testutil.Silence(30, sr), testutil.ClickTrack(120, 30, sr), rand.New(rand.NewPCG(1, 1)))

	if StageOf(err) != StageBeatsA {
		t.Errorf("stage = %q, want %q (err %v)", StageOf(err), StageBeatsA, err)
	}
	var bde *audio.BeatDetectionError
	if !errors.As(err, &bde) {
		t.Errorf("err = %v, want BeatDetectionError", err)
	}
}

func TestRenderShortTrackIsInvariantViolation(t *testing.T) {
	engine, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	// 12s cannot hold a 15s segment after a 10s lead-in.
	_, err = engine.Render(context.Background(),
		testutil.ClickTrack(120, 12, sr), testutil.ClickTrack(120, 30, sr), rand.New(rand.NewPCG(1, 1)))

	if !audio.IsInvariantViolation(err) {
		t.Fatalf("err = %v, want InvariantViolation", err)
	}
	if StageOf(err) != StageSegmentA {
		t.Errorf("stage = %q, want %q", StageOf(err), StageSegmentA)
	}
}

func TestRenderRateMismatch(t *testing.T) {
	engine, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	_, err = engine.Render(context.Background(),
		testutil.ClickTrack(120, 30, 44100), testutil.ClickTrack(120, 30, sr), rand.New(rand.NewPCG(1, 1)))
	if !audio.IsInvariantViolation(err) {
		t.Errorf("err = %v, want InvariantViolation", err)
	}
}

func TestRenderCancelled(t *testing.T) {
	engine, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.Render(ctx, testutil.ClickTrack(120, 30, sr), testutil.ClickTrack(120, 30, sr), rand.New(rand.NewPCG(1, 1)))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestStageOf(t *testing.T) {
	if StageOf(errors.New("plain")) != "" {
		t.Error("plain error should have no stage")
	}
	err := &StageError{Stage: StageEncode, Err: errors.New("disk full")}
	if StageOf(err) != StageEncode {
		t.Errorf("StageOf = %q", StageOf(err))
	}
	if err.Error() != "encode: disk full" {
		t.Errorf("Error() = %q", err.Error())
	}
}

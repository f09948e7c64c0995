package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/satindergrewal/segue/internal/audio"
	"github.com/satindergrewal/segue/internal/testutil"
	"github.com/satindergrewal/segue/internal/transition"
)

const sr = 22050

// --- Pair table ---

func TestReadPairsSnakeCase(t *testing.T) {
	in := "pair_id,track_a_id,track_b_id,smoothness_1_5\n" +
		"p1,100,200,3.9\n" +
		"p2,300,400,\n"
	pairs, err := ReadPairs(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadPairs: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("got %d pairs, want 2", len(pairs))
	}
	p := pairs[0]
	if p.Index != 0 || p.ID != "p1" || p.TrackA != "100" || p.TrackB != "200" {
		t.Errorf("pair 0 = %+v", p)
	}
	if !p.HasScore || p.Score != 3.9 {
		t.Errorf("pair 0 score = %v (has %v), want 3.9", p.Score, p.HasScore)
	}
	if pairs[1].HasScore {
		t.Error("empty smoothness should leave HasScore false")
	}
	if pairs[1].Index != 1 {
		t.Errorf("pair 1 index = %d", pairs[1].Index)
	}
}

func TestReadPairsCamelCase(t *testing.T) {
	in := "PairID,TrackA_ID,TrackB_ID\nx,a,b\n"
	pairs, err := ReadPairs(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadPairs: %v", err)
	}
	if len(pairs) != 1 || pairs[0].TrackA != "a" || pairs[0].ID != "x" {
		t.Errorf("pairs = %+v", pairs)
	}
}

func TestReadPairsErrors(t *testing.T) {
	tests := map[string]string{
		"empty":          "",
		"missing column": "pair_id,track_a_id\np,a\n",
		"bad score":      "pair_id,track_a_id,track_b_id,smoothness_1_5\np,a,b,high\n",
		"empty id":       "pair_id,track_a_id,track_b_id\n,a,b\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ReadPairs(strings.NewReader(in)); err == nil {
				t.Error("ReadPairs should fail")
			}
		})
	}
}

func TestOutputName(t *testing.T) {
	p := Pair{Index: 0, ID: "house_07"}
	if got := p.OutputName("mp3"); got != "transition_01_house_07.mp3" {
		t.Errorf("OutputName = %q", got)
	}
	p.Index = 11
	if got := p.OutputName(".flac"); got != "transition_12_house_07.flac" {
		t.Errorf("OutputName = %q", got)
	}
}

func TestDirResolver(t *testing.T) {
	got := DirResolver("audio", "mp3")("1234")
	if got != filepath.Join("audio", "1234.mp3") {
		t.Errorf("resolver = %q", got)
	}
}

// --- Runner ---

// fakeDecoder serves synthetic tracks by id; ids starting with "missing"
// fail the way a missing file does.
type fakeDecoder struct {
	tracks map[string]audio.Waveform
}

func (d *fakeDecoder) Decode(_ context.Context, path string) (audio.Waveform, error) {
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	w, ok := d.tracks[id]
	if !ok {
		return audio.Waveform{}, &audio.DecodeError{Path: path, Err: os.ErrNotExist}
	}
	return w, nil
}

// fakeEncoder records encodes and writes a placeholder file.
type fakeEncoder struct {
	mu    sync.Mutex
	paths []string
	metas []audio.Metadata
}

func (e *fakeEncoder) Encode(_ context.Context, path string, w audio.Waveform, meta audio.Metadata) error {
	e.mu.Lock()
	e.paths = append(e.paths, path)
	e.metas = append(e.metas, meta)
	e.mu.Unlock()
	return os.WriteFile(path, audio.SamplesToBytes(audio.FloatToPCM16(w.Samples[:100])), 0o644)
}

func newTestRunner(t *testing.T, tracks map[string]audio.Waveform, workers int) (*Runner, *fakeEncoder, string) {
	t.Helper()
	engine, err := transition.NewEngine(transition.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	enc := &fakeEncoder{}
	out := filepath.Join(t.TempDir(), "clips")
	r := NewRunner(engine, &fakeDecoder{tracks: tracks}, enc, Options{
		Workers:   workers,
		Seed:      42,
		OutputDir: out,
		Format:    "mp3",
		Resolve:   DirResolver("audio", "mp3"),
	})
	return r, enc, out
}

func TestRunnerMissingTrackFailsOnlyThatPair(t *testing.T) {
	tracks := map[string]audio.Waveform{
		"a120": testutil.ClickTrack(120, 30, sr),
		"b130": testutil.ClickTrack(130, 30, sr),
	}
	r, enc, out := newTestRunner(t, tracks, 2)

	var mu sync.Mutex
	events := map[EventKind]int{}
	r.OnEvent(func(ev Event) {
		mu.Lock()
		events[ev.Kind]++
		mu.Unlock()
	})

	pairs := []Pair{
		{Index: 0, ID: "ok", TrackA: "a120", TrackB: "b130"},
		{Index: 1, ID: "broken", TrackA: "a120", TrackB: "missing_b"},
	}
	report, err := r.Run(context.Background(), pairs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Succeeded != 1 || report.Failed != 1 {
		t.Errorf("succeeded/failed = %d/%d, want 1/1", report.Succeeded, report.Failed)
	}

	bad := report.Outcomes[1]
	var de *audio.DecodeError
	if !errors.As(bad.Err, &de) {
		t.Errorf("failure error = %v, want DecodeError", bad.Err)
	}
	if bad.Stage != transition.StageDecodeB {
		t.Errorf("failure stage = %q, want %q", bad.Stage, transition.StageDecodeB)
	}
	if _, err := os.Stat(filepath.Join(out, pairs[1].OutputName("mp3"))); !os.IsNotExist(err) {
		t.Error("failed pair must not leave an output file")
	}

	good := report.Outcomes[0]
	if !good.OK() || good.Output != filepath.Join(out, "transition_01_ok.mp3") {
		t.Errorf("good outcome = %+v", good)
	}
	if len(enc.paths) != 1 || enc.metas[0].TrackNumber != 1 || enc.metas[0].Title != "ok" {
		t.Errorf("encoder saw %v / %+v", enc.paths, enc.metas)
	}

	if events[EventStarted] != 2 || events[EventFinished] != 2 {
		t.Errorf("events = %v, want 2 started and 2 finished", events)
	}

	m, err := ReadManifest(filepath.Join(out, ManifestName))
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if m.RunID != report.RunID || len(m.Outcomes) != 2 || m.Outcomes[1].Error == "" {
		t.Errorf("manifest = %+v", m)
	}
	if len(report.Failures()) != 1 {
		t.Errorf("Failures() = %d, want 1", len(report.Failures()))
	}
}

func TestRunnerInvariantViolationIsFatal(t *testing.T) {
	tracks := map[string]audio.Waveform{
		"short": testutil.ClickTrack(120, 12, sr),
		"long":  testutil.ClickTrack(120, 30, sr),
	}
	r, _, _ := newTestRunner(t, tracks, 1)

	report, err := r.Run(context.Background(), []Pair{{Index: 0, ID: "tiny", TrackA: "short", TrackB: "long"}})
	if !audio.IsInvariantViolation(err) {
		t.Fatalf("Run error = %v, want InvariantViolation", err)
	}
	if report == nil || report.Failed != 1 {
		t.Errorf("report = %+v, want one failure", report)
	}
}

func TestRunnerCancelledContext(t *testing.T) {
	r, _, _ := newTestRunner(t, map[string]audio.Waveform{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := r.Run(ctx, []Pair{{Index: 0, ID: "p", TrackA: "a", TrackB: "b"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
	if report.Failed != 1 {
		t.Errorf("Failed = %d, want 1", report.Failed)
	}
}

func TestRandForSeededIsStable(t *testing.T) {
	r := &Runner{opts: Options{Seed: 7}}
	p := Pair{Index: 3}
	a, b := r.randFor(p), r.randFor(p)
	for range 10 {
		if x, y := a.IntN(1000), b.IntN(1000); x != y {
			t.Fatalf("seeded sources diverged: %d vs %d", x, y)
		}
	}

	other := r.randFor(Pair{Index: 4})
	same := true
	c := r.randFor(p)
	for range 10 {
		if other.IntN(1<<30) != c.IntN(1<<30) {
			same = false
		}
	}
	if same {
		t.Error("different pair indices should get different sequences")
	}
}

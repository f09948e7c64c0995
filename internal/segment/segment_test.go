package segment

import (
	"math/rand/v2"
	"testing"

	"github.com/satindergrewal/segue/internal/audio"
)

// fixed always returns the same index.
type fixed int

func (f fixed) IntN(n int) int { return min(int(f), n-1) }

func TestSafeBeatsExclusiveBounds(t *testing.T) {
	s := Selector{Length: 100, LeadIn: 50}
	got := s.SafeBeats(300, []int{10, 50, 51, 150, 199, 200, 250})
	want := []int{51, 150, 199}
	if len(got) != len(want) {
		t.Fatalf("SafeBeats = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SafeBeats[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestSelectPicksSafeBeat(t *testing.T) {
	s := Selector{Length: 100, LeadIn: 50, Rand: fixed(1)}
	sel, err := s.Select(300, []int{10, 60, 120, 180, 260})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Start != 120 || sel.Fallback || sel.Safe != 3 {
		t.Errorf("Select = %+v, want start 120 from 3 safe beats", sel)
	}
}

func TestSelectAlwaysInSafeZone(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	s := Selector{Length: 1000, LeadIn: 500, Rand: rng}
	beats := make([]int, 0, 50)
	for b := 0; b < 5000; b += 100 {
		beats = append(beats, b)
	}
	for range 200 {
		sel, err := s.Select(5000, beats)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if sel.Start <= 500 || sel.Start >= 4000 {
			t.Fatalf("Start = %d outside safe zone (500, 4000)", sel.Start)
		}
	}
}

func TestSelectDeterministicWithSeed(t *testing.T) {
	beats := []int{600, 700, 800, 900, 1000, 1100, 1200}
	pick := func() int {
		s := Selector{Length: 100, LeadIn: 500, Rand: rand.New(rand.NewPCG(42, 0))}
		sel, err := s.Select(2000, beats)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		return sel.Start
	}
	if a, b := pick(), pick(); a != b {
		t.Errorf("same seed chose %d then %d", a, b)
	}
}

func TestSelectFallback(t *testing.T) {
	s := Selector{Length: 100, LeadIn: 50, Rand: fixed(0)}
	sel, err := s.Select(300, []int{10, 20, 290})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !sel.Fallback || sel.Start != 50 {
		t.Errorf("Select = %+v, want fallback at lead-in 50", sel)
	}
}

func TestSelectFallbackTooShortIsInvariantViolation(t *testing.T) {
	s := Selector{Length: 100, LeadIn: 50, Rand: fixed(0)}
	_, err := s.Select(120, nil)
	if !audio.IsInvariantViolation(err) {
		t.Fatalf("Select on short track error = %v, want InvariantViolation", err)
	}
}

func TestExtract(t *testing.T) {
	w := audio.Waveform{Samples: []float64{0, 1, 2, 3, 4, 5}, SampleRate: 1}
	s := Selector{Length: 3}
	got, err := s.Extract(w, Selection{Start: 2})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Len() != 3 || got.Samples[0] != 2 || got.Samples[2] != 4 {
		t.Errorf("Extract = %v, want [2 3 4]", got.Samples)
	}

	if _, err := s.Extract(w, Selection{Start: 4}); !audio.IsInvariantViolation(err) {
		t.Errorf("Extract past end error = %v, want InvariantViolation", err)
	}
}

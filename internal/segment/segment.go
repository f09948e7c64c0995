// Package segment chooses where in a track a transition segment starts.
package segment

import (
	"github.com/satindergrewal/segue/internal/audio"
)

// Source supplies uniform random indices. *math/rand/v2.Rand satisfies it.
type Source interface {
	IntN(n int) int
}

// Selection is a chosen segment start.
type Selection struct {
	Start    int  // sample offset
	Fallback bool // no beat was in the safe zone
	Safe     int  // number of candidate beats
}

// Selector picks segment starts on beats inside the safe zone: after the
// lead-in and early enough that a full segment fits.
type Selector struct {
	Length int // segment length in samples
	LeadIn int // samples
	Rand   Source
}

// SafeBeats returns the beats b with LeadIn < b < n-Length.
func (s Selector) SafeBeats(n int, beats []int) []int {
	var safe []int
	for _, b := range beats {
		if b > s.LeadIn && b < n-s.Length {
			safe = append(safe, b)
		}
	}
	return safe
}

// Select picks a random safe beat. With no safe beat it falls back to
// starting at the lead-in, and fails with *audio.InvariantViolation when
// the track is too short for that.
func (s Selector) Select(n int, beats []int) (Selection, error) {
	if safe := s.SafeBeats(n, beats); len(safe) > 0 {
		return Selection{Start: safe[s.Rand.IntN(len(safe))], Safe: len(safe)}, nil
	}

	if s.LeadIn+s.Length > n {
		return Selection{}, audio.Invariantf(
			"track of %d samples cannot hold a %d-sample segment after a %d-sample lead-in",
			n, s.Length, s.LeadIn)
	}
	return Selection{Start: s.LeadIn, Fallback: true}, nil
}

// Extract copies the segment starting at sel.Start.
func (s Selector) Extract(w audio.Waveform, sel Selection) (audio.Waveform, error) {
	if sel.Start < 0 || sel.Start+s.Length > w.Len() {
		return audio.Waveform{}, audio.Invariantf("segment [%d, %d) outside track of %d samples",
			sel.Start, sel.Start+s.Length, w.Len())
	}
	return w.Slice(sel.Start, sel.Start+s.Length), nil
}

// Package crossfade builds the band-split, swept-EQ crossfade between the
// tail of one segment and the head of the next.
package crossfade

import (
	"errors"
	"slices"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design/pass"
)

// DefaultOrder of every Butterworth filter in the crossfade.
const DefaultOrder = 4

// ErrTooShort is returned when a block has no more samples than the
// reflection padding the zero-phase filter needs.
var ErrTooShort = errors.New("block too short for zero-phase filtering")

// Lowpass is a zero-phase Butterworth low-pass.
func Lowpass(x []float64, sampleRate, cutoff float64, order int) ([]float64, error) {
	return ZeroPhase(pass.ButterworthLP(cutoff, order, sampleRate), x)
}

// Highpass is a zero-phase Butterworth high-pass.
func Highpass(x []float64, sampleRate, cutoff float64, order int) ([]float64, error) {
	return ZeroPhase(pass.ButterworthHP(cutoff, order, sampleRate), x)
}

// PadLength is the odd-reflection padding used for a cascade of n sections.
func PadLength(sections int) int {
	return 3 * (2*sections + 1)
}

// ZeroPhase filters x forward and backward through the biquad cascade.
// The block is extended by odd reflection at both ends, and each pass
// starts from the steady state for its first sample so edges do not ring.
func ZeroPhase(sections []biquad.Coefficients, x []float64) ([]float64, error) {
	if len(sections) == 0 {
		return nil, errors.New("zero-phase filter: empty cascade")
	}
	pad := PadLength(len(sections))
	if len(x) <= pad {
		return nil, ErrTooShort
	}

	ext := oddExtend(x, pad)
	chain := biquad.NewChain(sections)

	chain.SetState(steadyState(sections, ext[0]))
	chain.ProcessBlock(ext)

	slices.Reverse(ext)
	chain.SetState(steadyState(sections, ext[0]))
	chain.ProcessBlock(ext)
	slices.Reverse(ext)

	return ext[pad : pad+len(x)], nil
}

// oddExtend returns x with pad samples of point-symmetric reflection on
// each side.
func oddExtend(x []float64, pad int) []float64 {
	n := len(x)
	ext := make([]float64, n+2*pad)
	for i := range pad {
		ext[i] = 2*x[0] - x[pad-i]
		ext[pad+n+i] = 2*x[n-1] - x[n-2-i]
	}
	copy(ext[pad:], x)
	return ext
}

// steadyState returns the transposed direct form II delay states the
// cascade settles into for a constant input u.
func steadyState(sections []biquad.Coefficients, u float64) [][2]float64 {
	states := make([][2]float64, len(sections))
	for i, c := range sections {
		gain := (c.B0 + c.B1 + c.B2) / (1 + c.A1 + c.A2)
		y := gain * u
		d1 := c.B2*u - c.A2*y
		d0 := c.B1*u - c.A1*y + d1
		states[i] = [2]float64{d0, d1}
		u = y
	}
	return states
}

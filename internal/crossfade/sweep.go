package crossfade

import (
	"github.com/cwbudde/algo-dsp/dsp/filter/design/pass"
)

// SweepWindow is one block of the high-pass sweep.
type SweepWindow struct {
	Start, End int // samples, End exclusive
	CutoffHz   float64
}

// PlanSweep divides n samples into consecutive windows of size samples. The
// cutoff of each window is interpolated linearly from fromHz to toHz by the
// window's start position over the whole region.
func PlanSweep(n, size int, fromHz, toHz float64) []SweepWindow {
	if n <= 0 || size <= 0 {
		return nil
	}
	plan := make([]SweepWindow, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		pos := 0.0
		if n > 1 {
			pos = float64(start) / float64(n-1)
		}
		plan = append(plan, SweepWindow{
			Start:    start,
			End:      min(start+size, n),
			CutoffHz: fromHz + (toHz-fromHz)*pos,
		})
	}
	return plan
}

// ApplySweep high-passes each window of x independently at its own cutoff
// and returns the result. Windows too short to filter pass through.
func ApplySweep(x []float64, sampleRate float64, plan []SweepWindow, order int) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	for _, w := range plan {
		filtered, err := ZeroPhase(pass.ButterworthHP(w.CutoffHz, order, sampleRate), x[w.Start:w.End])
		if err != nil {
			continue
		}
		copy(out[w.Start:w.End], filtered)
	}
	return out
}

package transition

import (
	"fmt"

	"github.com/cwbudde/algo-dsp/dsp/signal"
	vecmath "github.com/cwbudde/algo-vecmath"
	"github.com/satindergrewal/segue/internal/audio"
)

// Assemble joins segA's head, the crossfade, and segB's tail, then
// normalizes the result to peak. Both segments must be segLen samples and
// the crossfade fade samples, so the output is 2*segLen-fade samples.
func Assemble(segA, segB, xfade []float64, fade, segLen int, peak float64) ([]float64, error) {
	if len(segA) != segLen || len(segB) != segLen {
		return nil, audio.Invariantf("segments are %d and %d samples, want %d", len(segA), len(segB), segLen)
	}
	if len(xfade) != fade || fade > segLen {
		return nil, audio.Invariantf("crossfade is %d samples, want %d within a %d-sample segment", len(xfade), fade, segLen)
	}

	out := make([]float64, 0, 2*segLen-fade)
	out = append(out, segA[:segLen-fade]...)
	out = append(out, xfade...)
	out = append(out, segB[fade:]...)

	return Normalize(out, peak)
}

// Normalize scales x so its largest magnitude equals peak. Silence is
// returned unchanged.
func Normalize(x []float64, peak float64) ([]float64, error) {
	if len(x) == 0 || vecmath.MaxAbs(x) == 0 {
		return x, nil
	}
	out, err := signal.Normalize(x, peak)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	return out, nil
}

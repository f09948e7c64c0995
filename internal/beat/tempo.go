package beat

import (
	"math"
)

// tempoStep is the resolution of the candidate grid before refinement.
const tempoStep = 0.25 // BPM

// estimateTempo picks the BPM whose beat period best autocorrelates the
// onset envelope, weighted by a log-normal prior centered on startBPM.
// Lags are fractional; the envelope is linearly interpolated.
func estimateTempo(env []float64, fps, startBPM, minBPM, maxBPM float64) (float64, bool) {
	// The slowest candidate must fit twice into the envelope.
	if maxLag := 60 * fps / minBPM; float64(len(env)) < 2*maxLag {
		minBPM = 120 * fps / float64(len(env))
		if minBPM >= maxBPM {
			return 0, false
		}
	}

	mean := 0.0
	for _, v := range env {
		mean += v
	}
	mean /= float64(len(env))
	centered := make([]float64, len(env))
	for i, v := range env {
		centered[i] = v - mean
	}

	n := int((maxBPM-minBPM)/tempoStep) + 1
	scores := make([]float64, n)
	best := -1
	for i := range scores {
		bpm := minBPM + float64(i)*tempoStep
		scores[i] = autocorr(centered, 60*fps/bpm) * prior(bpm, startBPM)
		if best < 0 || scores[i] > scores[best] {
			best = i
		}
	}
	if best < 0 || scores[best] <= 0 {
		return 0, false
	}

	bpm := minBPM + float64(best)*tempoStep
	if best > 0 && best < n-1 {
		y0, y1, y2 := scores[best-1], scores[best], scores[best+1]
		if den := y0 - 2*y1 + y2; den < 0 {
			if off := 0.5 * (y0 - y2) / den; math.Abs(off) <= 1 {
				bpm += off * tempoStep
			}
		}
	}
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return 0, false
	}
	return bpm, true
}

// autocorr is the mean product of x with itself shifted by a fractional lag.
func autocorr(x []float64, lag float64) float64 {
	whole := int(lag)
	frac := lag - float64(whole)
	count := len(x) - whole - 1
	if count <= 0 {
		return 0
	}
	var sum float64
	for i := range count {
		shifted := x[i+whole]*(1-frac) + x[i+whole+1]*frac
		sum += x[i] * shifted
	}
	return sum / float64(count)
}

// prior is a log-normal weight with one octave standard deviation.
func prior(bpm, start float64) float64 {
	o := math.Log2(bpm / start)
	return math.Exp(-0.5 * o * o)
}

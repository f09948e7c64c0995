package beat

import (
	"math"
	"slices"
)

// trackBeats runs dynamic-programming beat tracking over a standardized
// onset envelope and returns beat positions in frames.
//
// Each frame accumulates its local onset strength plus the best score of a
// predecessor between half and two periods back, penalized by how far the
// interval strays from the period on a log scale.
func trackBeats(env []float64, period, tightness float64) []int {
	if period <= 0 || len(env) == 0 {
		return nil
	}

	local := localScore(env, period)
	localMax := slices.Max(local)
	if localMax <= 0 {
		return nil
	}

	lo := int(math.Round(period / 2))
	hi := int(math.Round(2 * period))
	lo = max(lo, 1)

	cum := make([]float64, len(local))
	back := make([]int, len(local))
	started := false
	for i, score := range local {
		back[i] = -1
		cum[i] = score

		if !started && score < 0.01*localMax {
			continue
		}
		started = true

		best := math.Inf(-1)
		bestJ := -1
		for gap := lo; gap <= hi; gap++ {
			j := i - gap
			if j < 0 {
				break
			}
			l := math.Log(float64(gap) / period)
			s := cum[j] - tightness*l*l
			if s > best {
				best, bestJ = s, j
			}
		}
		if bestJ >= 0 {
			cum[i] = score + best
			back[i] = bestJ
		}
	}

	last := lastBeat(cum)
	if last < 0 {
		return nil
	}

	var beats []int
	for i := last; i >= 0; i = back[i] {
		beats = append(beats, i)
	}
	slices.Reverse(beats)
	return trimWeak(beats, local)
}

// localScore smooths the envelope with a Gaussian whose width scales with
// the beat period.
func localScore(env []float64, period float64) []float64 {
	half := int(math.Round(period))
	kernel := make([]float64, 2*half+1)
	for k := range kernel {
		x := float64(k-half) * 32 / period
		kernel[k] = math.Exp(-0.5 * x * x)
	}

	out := make([]float64, len(env))
	for i := range env {
		var sum float64
		for k, w := range kernel {
			j := i + k - half
			if j >= 0 && j < len(env) {
				sum += env[j] * w
			}
		}
		out[i] = sum
	}
	return out
}

// lastBeat picks the final local maximum of the cumulative score that
// reaches half the median peak.
func lastBeat(cum []float64) int {
	var peaks []int
	for i := range cum {
		left := i == 0 || cum[i] > cum[i-1]
		right := i == len(cum)-1 || cum[i] >= cum[i+1]
		if left && right {
			peaks = append(peaks, i)
		}
	}
	if len(peaks) == 0 {
		return -1
	}

	vals := make([]float64, len(peaks))
	for i, p := range peaks {
		vals[i] = cum[p]
	}
	slices.Sort(vals)
	median := vals[len(vals)/2]
	if len(vals)%2 == 0 {
		median = (vals[len(vals)/2-1] + vals[len(vals)/2]) / 2
	}

	for i := len(peaks) - 1; i >= 0; i-- {
		if cum[peaks[i]] >= 0.5*median {
			return peaks[i]
		}
	}
	return peaks[len(peaks)-1]
}

// trimWeak drops leading and trailing beats whose onset strength is below
// half the RMS strength of all beats.
func trimWeak(beats []int, local []float64) []int {
	if len(beats) == 0 {
		return beats
	}
	var ss float64
	for _, b := range beats {
		ss += local[b] * local[b]
	}
	threshold := 0.5 * math.Sqrt(ss/float64(len(beats)))

	start, end := 0, len(beats)
	for start < end && local[beats[start]] <= threshold {
		start++
	}
	for end > start && local[beats[end-1]] <= threshold {
		end--
	}
	return beats[start:end]
}

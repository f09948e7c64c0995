package audition

import "github.com/satindergrewal/segue/internal/audio"

// Smoothstep returns the smoothstep interpolation for t in [0,1]: 3t^2 - 2t^3.
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// ApplyEdgeRamps fades interleaved stereo PCM in over the first n sample
// frames and out over the last n, in place. n is capped at half the clip.
func ApplyEdgeRamps(pcm []int16, n int) {
	frames := len(pcm) / audio.Channels
	n = min(n, frames/2)
	if n <= 0 {
		return
	}
	for i := range n {
		gain := Smoothstep(float64(i) / float64(n))
		head := i * audio.Channels
		tail := (frames - 1 - i) * audio.Channels
		for c := range audio.Channels {
			pcm[head+c] = scale(pcm[head+c], gain)
			pcm[tail+c] = scale(pcm[tail+c], gain)
		}
	}
}

func scale(s int16, gain float64) int16 {
	v := float64(s) * gain
	if v > 32767 {
		v = 32767
	} else if v < -32768 {
		v = -32768
	}
	return int16(v)
}

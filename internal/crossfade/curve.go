package crossfade

import "math"

// FadeOut returns n gains from 1 down to 0 shaped by t^exponent.
func FadeOut(n int, exponent float64) []float64 {
	c := make([]float64, n)
	for i := range c {
		c[i] = math.Pow(1-position(i, n), exponent)
	}
	return c
}

// FadeIn returns n gains from 0 up to 1 shaped by t^exponent.
func FadeIn(n int, exponent float64) []float64 {
	c := make([]float64, n)
	for i := range c {
		c[i] = math.Pow(position(i, n), exponent)
	}
	return c
}

// position maps i in [0, n) evenly onto [0, 1], endpoints included.
func position(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(i) / float64(n-1)
}

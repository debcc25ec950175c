// Package dsp implements the signal-processing primitives used by voice
// activity detection and acoustic feature extraction: a radix-2 FFT,
// frame-level scalar features and a log-mel filterbank.
package dsp

import "math"

// fftInPlace computes an in-place radix-2 decimation-in-time FFT over the
// complex signal (re, im). len(re) must equal len(im) and be a power of two.
func fftInPlace(re, im []float64) {
	n := len(re)
	if n < 2 {
		return
	}

	// bit reversal permutation
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j |= bit
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}

	for length := 2; length <= n; length <<= 1 {
		ang := -2 * math.Pi / float64(length)
		wRe, wIm := math.Cos(ang), math.Sin(ang)
		for start := 0; start < n; start += length {
			curRe, curIm := 1.0, 0.0
			half := length / 2
			for k := 0; k < half; k++ {
				evenRe, evenIm := re[start+k], im[start+k]
				oddRe := re[start+k+half]*curRe - im[start+k+half]*curIm
				oddIm := re[start+k+half]*curIm + im[start+k+half]*curRe
				re[start+k], im[start+k] = evenRe+oddRe, evenIm+oddIm
				re[start+k+half], im[start+k+half] = evenRe-oddRe, evenIm-oddIm
				curRe, curIm = curRe*wRe-curIm*wIm, curRe*wIm+curIm*wRe
			}
		}
	}
}

// nextPow2 returns the smallest power of two >= n.
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// PowerSpectrum returns the one-sided power spectrum |rFFT(x)|² of x,
// zero-padded to the next power of two. The result has padLen/2+1 bins.
func PowerSpectrum(x []float32) []float64 {
	if len(x) == 0 {
		return nil
	}
	n := nextPow2(len(x))
	re := make([]float64, n)
	im := make([]float64, n)
	for i, v := range x {
		re[i] = float64(v)
	}

	fftInPlace(re, im)

	bins := n/2 + 1
	power := make([]float64, bins)
	for i := 0; i < bins; i++ {
		power[i] = re[i]*re[i] + im[i]*im[i]
	}
	return power
}

package dsp

import "math"

// RMS returns the root mean square energy of the window.
func RMS(x []float32) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(x)))
}

// ZCR returns the zero-crossing rate: the fraction of adjacent sample
// pairs with opposite signs.
func ZCR(x []float32) float64 {
	if len(x) < 2 {
		return 0
	}
	crossings := 0
	for i := 0; i < len(x)-1; i++ {
		if x[i]*x[i+1] < 0 {
			crossings++
		}
	}
	return float64(crossings) / float64(len(x))
}

// SpectralEntropy returns the normalized Shannon entropy of the power
// spectrum of x, in [0, 1]. Low for tonal signals, high for white noise.
// Only non-zero bins participate.
func SpectralEntropy(x []float32) float64 {
	power := PowerSpectrum(x)
	if len(power) == 0 {
		return 0
	}

	var total float64
	nonZero := 0
	for _, p := range power {
		if p > 0 {
			total += p
			nonZero++
		}
	}
	if total == 0 || nonZero < 2 {
		return 0
	}

	var h float64
	for _, p := range power {
		if p > 0 {
			q := p / total
			h -= q * math.Log2(q)
		}
	}
	return h / math.Log2(float64(nonZero))
}

// Median returns the median of values. The input slice is not modified.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	// insertion sort, histories are small
	for i := 1; i < len(sorted); i++ {
		v := sorted[i]
		j := i - 1
		for j >= 0 && sorted[j] > v {
			sorted[j+1] = sorted[j]
			j--
		}
		sorted[j+1] = v
	}
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

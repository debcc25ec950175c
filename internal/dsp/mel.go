package dsp

import "math"

// Standard acoustic framing for the 16 kHz model input: 25 ms windows
// with a 10 ms hop.
const (
	FrameLengthMS = 25
	FrameShiftMS  = 10
)

// MelBank converts windowed audio frames to log-mel filterbank features.
type MelBank struct {
	sampleRate int
	frameLen   int
	frameShift int
	fftSize    int
	numBins    int
	filters    [][]float64 // numBins x (fftSize/2+1), triangular weights
	window     []float64   // precomputed Hamming window
}

// NewMelBank builds a triangular mel filterbank for the given sample rate
// and number of mel bins, spanning 0 Hz to Nyquist.
func NewMelBank(sampleRate, numBins int) *MelBank {
	frameLen := sampleRate * FrameLengthMS / 1000
	frameShift := sampleRate * FrameShiftMS / 1000
	fftSize := nextPow2(frameLen)
	specBins := fftSize/2 + 1

	mb := &MelBank{
		sampleRate: sampleRate,
		frameLen:   frameLen,
		frameShift: frameShift,
		fftSize:    fftSize,
		numBins:    numBins,
	}

	// mel-spaced band edges
	loMel := hzToMel(0)
	hiMel := hzToMel(float64(sampleRate) / 2)
	edges := make([]float64, numBins+2)
	for i := range edges {
		mel := loMel + (hiMel-loMel)*float64(i)/float64(numBins+1)
		edges[i] = melToHz(mel) * float64(fftSize) / float64(sampleRate)
	}

	mb.filters = make([][]float64, numBins)
	for b := 0; b < numBins; b++ {
		filt := make([]float64, specBins)
		left, center, right := edges[b], edges[b+1], edges[b+2]
		for k := 0; k < specBins; k++ {
			f := float64(k)
			switch {
			case f > left && f < center:
				filt[k] = (f - left) / (center - left)
			case f >= center && f < right:
				filt[k] = (right - f) / (right - center)
			}
		}
		mb.filters[b] = filt
	}

	mb.window = make([]float64, frameLen)
	for i := range mb.window {
		mb.window[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(frameLen-1))
	}

	return mb
}

// NumBins returns the mel bin count per frame.
func (mb *MelBank) NumBins() int {
	return mb.numBins
}

// NumFrames returns the number of frames Compute produces for n samples.
func (mb *MelBank) NumFrames(n int) int {
	if n < mb.frameLen {
		return 0
	}
	return 1 + (n-mb.frameLen)/mb.frameShift
}

// Compute returns the log-mel feature matrix of samples, one row per
// frame. Power values are floored before the log to keep the output
// finite on silence.
func (mb *MelBank) Compute(samples []float32) [][]float32 {
	numFrames := mb.NumFrames(len(samples))
	if numFrames == 0 {
		return nil
	}

	feats := make([][]float32, numFrames)
	re := make([]float64, mb.fftSize)
	im := make([]float64, mb.fftSize)
	specBins := mb.fftSize/2 + 1
	power := make([]float64, specBins)

	for t := 0; t < numFrames; t++ {
		offset := t * mb.frameShift

		for i := 0; i < mb.fftSize; i++ {
			if i < mb.frameLen {
				re[i] = float64(samples[offset+i]) * mb.window[i]
			} else {
				re[i] = 0
			}
			im[i] = 0
		}
		fftInPlace(re, im)
		for k := 0; k < specBins; k++ {
			power[k] = re[k]*re[k] + im[k]*im[k]
		}

		row := make([]float32, mb.numBins)
		for b := 0; b < mb.numBins; b++ {
			var sum float64
			for k, w := range mb.filters[b] {
				if w != 0 {
					sum += w * power[k]
				}
			}
			row[b] = float32(math.Log(math.Max(sum, 1e-10)))
		}
		feats[t] = row
	}

	return feats
}

func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

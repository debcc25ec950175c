package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMelBankFrameCount(t *testing.T) {
	t.Parallel()

	mb := NewMelBank(16000, 80)

	// 25 ms window, 10 ms hop at 16 kHz: 400/160 samples
	assert.Equal(t, 0, mb.NumFrames(399))
	assert.Equal(t, 1, mb.NumFrames(400))
	assert.Equal(t, 1, mb.NumFrames(559))
	assert.Equal(t, 2, mb.NumFrames(560))
	// one second of audio
	assert.Equal(t, 98, mb.NumFrames(16000))
}

func TestMelBankComputeShape(t *testing.T) {
	t.Parallel()

	mb := NewMelBank(16000, 80)
	samples := make([]float32, 16000)
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * 300 * float64(i) / 16000))
	}

	feats := mb.Compute(samples)
	require.Len(t, feats, mb.NumFrames(len(samples)))
	for _, row := range feats {
		assert.Len(t, row, 80)
	}
}

func TestMelBankLouderSignalHasMoreEnergy(t *testing.T) {
	t.Parallel()

	mb := NewMelBank(16000, 80)
	quiet := make([]float32, 4000)
	loud := make([]float32, 4000)
	for i := range quiet {
		s := math.Sin(2 * math.Pi * 500 * float64(i) / 16000)
		quiet[i] = float32(0.01 * s)
		loud[i] = float32(0.8 * s)
	}

	quietFeats := mb.Compute(quiet)
	loudFeats := mb.Compute(loud)

	var quietSum, loudSum float64
	for b := 0; b < 80; b++ {
		quietSum += float64(quietFeats[0][b])
		loudSum += float64(loudFeats[0][b])
	}
	assert.Greater(t, loudSum, quietSum)
}

func TestMelBankSilenceIsFinite(t *testing.T) {
	t.Parallel()

	mb := NewMelBank(16000, 80)
	feats := mb.Compute(make([]float32, 800))
	require.NotEmpty(t, feats)
	for _, v := range feats[0] {
		assert.False(t, math.IsInf(float64(v), 0))
		assert.False(t, math.IsNaN(float64(v)))
	}
}

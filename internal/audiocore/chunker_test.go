package audiocore

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectChunks pushes samples through a chunker in frames of frameSize
// and returns every chunk produced.
func collectChunks(t *testing.T, chunker *Chunker, samples []float32, frameSize int) []AudioChunk {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	frames := make(chan Frame)
	go func() {
		defer close(frames)
		for off := 0; off < len(samples); off += frameSize {
			end := off + frameSize
			if end > len(samples) {
				end = len(samples)
			}
			frames <- Frame{Samples: samples[off:end]}
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		chunker.Run(ctx, frames)
	}()

	var chunks []AudioChunk
	for chunk := range chunker.Chunks() {
		chunks = append(chunks, chunk)
	}
	<-done
	return chunks
}

func TestChunkerIndexingAndTiming(t *testing.T) {
	t.Parallel()

	// 100 ms chunks with 50 ms hop at the model rate (passthrough)
	chunker := NewChunker(ModelSampleRate, 0.1, 0.05, slog.Default())

	samples := make([]float32, 4*1600)
	for i := range samples {
		samples[i] = float32(i)
	}
	chunks := collectChunks(t, chunker, samples, 160)

	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.InDelta(t, float64(i)*50, chunk.StartTimeMS, 1e-9)
		assert.Len(t, chunk.Samples, 1600)
	}

	// chunk N begins exactly at N*hop samples
	assert.Equal(t, float32(0), chunks[0].Samples[0])
	assert.Equal(t, float32(800), chunks[1].Samples[0])
	assert.Equal(t, float32(1600), chunks[2].Samples[0])
}

func TestChunkerOverlapSharesSamples(t *testing.T) {
	t.Parallel()

	chunker := NewChunker(ModelSampleRate, 0.1, 0.05, slog.Default())
	samples := make([]float32, 3200)
	for i := range samples {
		samples[i] = float32(i)
	}
	chunks := collectChunks(t, chunker, samples, 320)
	require.GreaterOrEqual(t, len(chunks), 2)

	// second half of chunk 0 equals first half of chunk 1
	assert.Equal(t, chunks[0].Samples[800:], chunks[1].Samples[:800])
}

func TestChunkerResamplesTo16k(t *testing.T) {
	t.Parallel()

	// 48 kHz input, 100 ms chunks: still 1600 model-rate samples
	chunker := NewChunker(48000, 0.1, 0.05, slog.Default())
	samples := make([]float32, 48000/2)
	chunks := collectChunks(t, chunker, samples, 480)

	require.NotEmpty(t, chunks)
	assert.Len(t, chunks[0].Samples, 1600)
}

func TestChunkerNoChunkBeforeWindowFull(t *testing.T) {
	t.Parallel()

	chunker := NewChunker(ModelSampleRate, 0.1, 0.05, slog.Default())
	chunks := collectChunks(t, chunker, make([]float32, 1599), 160)
	assert.Empty(t, chunks)
}

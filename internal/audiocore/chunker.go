package audiocore

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math"

	"github.com/smallnest/ringbuffer"

	"github.com/zinkosoft/sensestream/internal/errors"
)

const (
	chunkChannelCapacity = 4
	bytesPerSample       = 4
)

// Chunker consumes device-rate frames, resamples them to the model rate
// and frames overlapped analysis windows. It owns the 16 kHz ring buffer
// and is the only pipeline stage allowed to drop samples under
// back-pressure.
type Chunker struct {
	resampler *Resampler
	log       *slog.Logger

	chunkSamples int
	hopSamples   int
	hopMS        float64

	rb        *ringbuffer.RingBuffer
	window    []float32
	filled    bool
	nextIndex int

	out     chan AudioChunk
	scratch []byte
}

// NewChunker creates a chunker producing chunkDuration-second windows
// every (chunkDuration-overlapDuration) seconds from deviceRate input.
func NewChunker(deviceRate int, chunkDuration, overlapDuration float64, log *slog.Logger) *Chunker {
	chunkSamples := int(math.Round(chunkDuration * ModelSampleRate))
	hopSamples := int(math.Round((chunkDuration - overlapDuration) * ModelSampleRate))

	return &Chunker{
		resampler:    NewResampler(deviceRate, ModelSampleRate),
		log:          log,
		chunkSamples: chunkSamples,
		hopSamples:   hopSamples,
		hopMS:        (chunkDuration - overlapDuration) * 1000,
		rb:           ringbuffer.New(4 * chunkSamples * bytesPerSample),
		window:       make([]float32, 0, chunkSamples),
		out:          make(chan AudioChunk, chunkChannelCapacity),
		scratch:      make([]byte, chunkSamples*bytesPerSample),
	}
}

// Chunks returns the bounded chunk channel.
func (c *Chunker) Chunks() <-chan AudioChunk {
	return c.out
}

// Run consumes frames until the channel closes or the context ends, then
// closes the chunk channel.
func (c *Chunker) Run(ctx context.Context, frames <-chan Frame) {
	defer close(c.out)
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			c.ingest(ctx, frame.Samples)
		}
	}
}

// ingest resamples one frame into the ring buffer and emits any chunks
// that became complete.
func (c *Chunker) ingest(ctx context.Context, samples []float32) {
	resampled := c.resampler.Process(samples)
	if len(resampled) == 0 {
		return
	}

	buf := make([]byte, len(resampled)*bytesPerSample)
	for i, v := range resampled {
		binary.LittleEndian.PutUint32(buf[i*bytesPerSample:], math.Float32bits(v))
	}
	if _, err := c.rb.Write(buf); err != nil {
		// Buffer saturated; drop the resampled block and keep going.
		// This is the single permitted sample-drop point in the pipeline.
		c.log.Warn("chunk ring buffer full, dropping samples",
			"dropped_samples", len(resampled))
		return
	}

	for c.emitReady(ctx) {
	}
}

// emitReady assembles and sends at most one chunk, returning true if more
// buffered data may be pending.
func (c *Chunker) emitReady(ctx context.Context) bool {
	need := c.hopSamples
	if !c.filled {
		need = c.chunkSamples - len(c.window)
	}
	needBytes := need * bytesPerSample
	if c.rb.Length() < needBytes {
		return false
	}

	if _, err := c.rb.Read(c.scratch[:needBytes]); err != nil {
		c.log.Error("chunk ring buffer read failed", "error", err)
		return false
	}

	fresh := make([]float32, need)
	for i := range fresh {
		fresh[i] = math.Float32frombits(binary.LittleEndian.Uint32(c.scratch[i*bytesPerSample:]))
	}

	if !c.filled {
		c.window = append(c.window, fresh...)
		if len(c.window) < c.chunkSamples {
			return false
		}
		c.filled = true
	} else {
		c.window = append(c.window[c.hopSamples:], fresh...)
	}

	chunk := AudioChunk{
		Samples:     append([]float32(nil), c.window...),
		Index:       c.nextIndex,
		StartTimeMS: float64(c.nextIndex) * c.hopMS,
	}
	c.nextIndex++

	select {
	case c.out <- chunk:
	case <-ctx.Done():
		return false
	}
	return true
}

// FatalCaptureError reports whether a capture-channel error carries the
// capture category, so the orchestrator can separate a saturation warning
// from a dead device.
func FatalCaptureError(err error) bool {
	return errors.HasCategory(err, errors.CategoryCapture)
}

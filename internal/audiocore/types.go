// Package audiocore provides microphone capture, device selection and the
// resampling chunker that frames the 16 kHz analysis windows.
package audiocore

import "context"

// ModelSampleRate is the sample rate the encoder consumes.
const ModelSampleRate = 16000

// probeRates are the capture rates probed in preference order.
var probeRates = []uint32{16000, 48000, 44100, 32000, 22050, 8000}

// Frame is a block of contiguous mono float32 PCM samples at the device
// sample rate.
type Frame struct {
	Samples []float32
}

// AudioChunk is one semantic analysis window at the model rate. Chunk N
// begins exactly at N*hop on the global timeline.
type AudioChunk struct {
	Samples     []float32
	Index       int
	StartTimeMS float64
}

// AudioSource delivers PCM frames from a capture device.
type AudioSource interface {
	// Start begins capture. It fails with the device error category if no
	// matching device exists or no probed sample rate is supported.
	Start(ctx context.Context) error
	// Stop halts capture and closes the frame channel.
	Stop() error
	// Frames returns the bounded frame channel.
	Frames() <-chan Frame
	// Errors returns the capture error channel. A capture-category error
	// here means the stream is closed and the session must abort.
	Errors() <-chan error
	// SampleRate returns the negotiated device rate, valid after Start.
	SampleRate() int
	// Name returns the selected device name, valid after Start.
	Name() string
}

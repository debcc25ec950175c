// Package vad implements voice activity detection with an adaptive
// noise floor.
package vad

import (
	"log/slog"

	"github.com/zinkosoft/sensestream/internal/dsp"
)

// CalibrationState tracks the strictly forward-only calibrator lifecycle.
type CalibrationState int

const (
	Uncalibrated CalibrationState = iota
	Calibrating
	Calibrated
)

func (s CalibrationState) String() string {
	switch s {
	case Uncalibrated:
		return "uncalibrated"
	case Calibrating:
		return "calibrating"
	case Calibrated:
		return "calibrated"
	default:
		return "unknown"
	}
}

const (
	historyLimit      = 100
	refreshInterval   = 50 // non-speech updates between floor refreshes
	bootstrapWindowMS = 50
)

// NoiseFloorCalibrator maintains the adaptive RMS noise floor. Bootstrap
// accumulates an initial stretch of audio and seeds the floor from the
// median of 50 ms sub-window RMS values; afterwards each non-speech chunk
// feeds a bounded history whose median periodically replaces the floor.
// Speech chunks never update the floor.
type NoiseFloorCalibrator struct {
	sampleRate      int
	samplesRequired int
	adaptive        bool
	log             *slog.Logger

	state     CalibrationState
	bootstrap []float32
	value     float64
	history   []float64
	updates   int
}

// NewNoiseFloorCalibrator creates a calibrator that bootstraps from at
// least calibSecs seconds of audio at sampleRate.
func NewNoiseFloorCalibrator(sampleRate int, calibSecs float64, adaptive bool, log *slog.Logger) *NoiseFloorCalibrator {
	return &NoiseFloorCalibrator{
		sampleRate:      sampleRate,
		samplesRequired: int(calibSecs * float64(sampleRate)),
		adaptive:        adaptive,
		log:             log,
		state:           Uncalibrated,
	}
}

// State returns the current calibration state.
func (c *NoiseFloorCalibrator) State() CalibrationState {
	return c.state
}

// Calibrated reports whether the bootstrap has completed.
func (c *NoiseFloorCalibrator) Calibrated() bool {
	return c.state == Calibrated
}

// Value returns the current noise floor estimate. VAD reads this by value
// per chunk.
func (c *NoiseFloorCalibrator) Value() float64 {
	return c.value
}

// Feed consumes calibration audio and returns true once the bootstrap has
// completed. Calling Feed after calibration is a no-op.
func (c *NoiseFloorCalibrator) Feed(samples []float32) bool {
	if c.state == Calibrated {
		return true
	}
	c.state = Calibrating
	c.bootstrap = append(c.bootstrap, samples...)
	if len(c.bootstrap) < c.samplesRequired {
		return false
	}

	window := c.sampleRate * bootstrapWindowMS / 1000
	var rmsValues []float64
	for off := 0; off+window <= len(c.bootstrap); off += window {
		rmsValues = append(rmsValues, dsp.RMS(c.bootstrap[off:off+window]))
	}
	c.value = dsp.Median(rmsValues)
	c.bootstrap = nil
	c.state = Calibrated
	c.log.Info("noise floor calibrated",
		"floor_rms", c.value,
		"windows", len(rmsValues))
	return true
}

// ObserveNonSpeech records the RMS of a chunk classified as non-speech.
// Every refreshInterval observations the floor is replaced by the history
// median.
func (c *NoiseFloorCalibrator) ObserveNonSpeech(rms float64) {
	if !c.adaptive || c.state != Calibrated {
		return
	}

	c.history = append(c.history, rms)
	if len(c.history) > historyLimit {
		c.history = c.history[len(c.history)-historyLimit:]
	}

	c.updates++
	if c.updates%refreshInterval == 0 {
		old := c.value
		c.value = dsp.Median(c.history)
		c.log.Debug("noise floor refreshed",
			"old_rms", old,
			"new_rms", c.value,
			"history_len", len(c.history))
	}
}

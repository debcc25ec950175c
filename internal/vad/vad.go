package vad

import (
	"github.com/zinkosoft/sensestream/internal/dsp"
)

// Mode selects the feature set used for the speech decision.
type Mode string

const (
	ModeFast     Mode = "fast"     // RMS gate + ZCR only
	ModeAccurate Mode = "accurate" // RMS gate + ZCR and spectral entropy
)

// Config carries the detector thresholds.
type Config struct {
	Enabled    bool
	Mode       Mode
	ZCRMin     float64
	ZCRMax     float64
	EntropyMax float64
	RMSMargin  float64
}

// Decision is the per-chunk classification along with the features that
// produced it. Entropy is nil when the fast path or fast mode skipped it.
type Decision struct {
	IsSpeech bool
	RMS      float64
	ZCR      float64
	Entropy  *float64
}

// Detector classifies chunks as speech or non-speech against the current
// noise floor.
type Detector struct {
	cfg Config
}

// NewDetector creates a detector with the given thresholds.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Detect classifies a 16 kHz chunk. The noise floor is passed by value;
// the caller owns the calibrator.
func (d *Detector) Detect(samples []float32, noiseFloor float64) Decision {
	if !d.cfg.Enabled {
		return Decision{IsSpeech: true, RMS: dsp.RMS(samples)}
	}

	rms := dsp.RMS(samples)

	// energy gate, cheap rejection before any spectral work
	if rms <= noiseFloor+d.cfg.RMSMargin {
		return Decision{IsSpeech: false, RMS: rms, ZCR: dsp.ZCR(samples)}
	}

	zcr := dsp.ZCR(samples)
	zcrSpeech := zcr >= d.cfg.ZCRMin && zcr <= d.cfg.ZCRMax

	if d.cfg.Mode == ModeFast {
		return Decision{IsSpeech: zcrSpeech, RMS: rms, ZCR: zcr}
	}

	entropy := dsp.SpectralEntropy(samples)
	speech := zcrSpeech || entropy <= d.cfg.EntropyMax
	return Decision{IsSpeech: speech, RMS: rms, ZCR: zcr, Entropy: &entropy}
}

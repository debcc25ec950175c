// Package transcribe wires the capture, inference and output stages into
// a realtime transcription session.
package transcribe

import (
	"log/slog"
	"time"

	"github.com/zinkosoft/sensestream/internal/audiocore"
	"github.com/zinkosoft/sensestream/internal/conf"
	"github.com/zinkosoft/sensestream/internal/errors"
	"github.com/zinkosoft/sensestream/internal/observability"
	"github.com/zinkosoft/sensestream/internal/sensevoice"
	"github.com/zinkosoft/sensestream/internal/transcript"
	"github.com/zinkosoft/sensestream/internal/vad"
)

// OutcomeKind classifies the result of processing one chunk.
type OutcomeKind int

const (
	OutcomeDropped OutcomeKind = iota
	OutcomeEmitted
	OutcomeError
)

// Outcome is the explicit result-of-processing variant returned per
// chunk; the pipeline never uses errors for chunk-drop control flow.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
	Words  []sensevoice.WordTiming
	Record *transcript.Record
	Err    error
}

// Failure escalation thresholds for transient encoder errors.
const (
	maxConsecutiveFailures = 10
	failureRateWindow      = 60 * time.Second
	failureRateLimit       = 0.25
	// the rate rule needs a minimum population or a single early failure
	// would read as 100%
	minRateSamples = 20
)

// failureTracker counts transient inference failures and decides when
// they become fatal.
type failureTracker struct {
	consecutive int
	window      []failureSample
	now         func() time.Time
}

type failureSample struct {
	at     time.Time
	failed bool
}

func newFailureTracker() *failureTracker {
	return &failureTracker{now: time.Now}
}

func (f *failureTracker) record(failed bool) {
	if failed {
		f.consecutive++
	} else {
		f.consecutive = 0
	}

	cutoff := f.now().Add(-failureRateWindow)
	kept := f.window[:0]
	for _, s := range f.window {
		if s.at.After(cutoff) {
			kept = append(kept, s)
		}
	}
	f.window = append(kept, failureSample{at: f.now(), failed: failed})
}

// fatal reports whether the consecutive or rate threshold is exceeded.
func (f *failureTracker) fatal() bool {
	if f.consecutive >= maxConsecutiveFailures {
		return true
	}
	if len(f.window) < minRateSamples {
		return false
	}
	failed := 0
	for _, s := range f.window {
		if s.failed {
			failed++
		}
	}
	return float64(failed)/float64(len(f.window)) > failureRateLimit
}

// Pipeline runs a single chunk through VAD, fingerprinting, inference,
// decoding and merging. It is single-threaded by design: the encoder is
// single-reader and the timeline has one owner.
type Pipeline struct {
	log     *slog.Logger
	metrics *observability.Metrics

	calibrator    *vad.NoiseFloorCalibrator
	detector      *vad.Detector
	fingerprinter *audiocore.ChunkFingerprinter
	builder       *sensevoice.FeatureBuilder
	encoder       sensevoice.Encoder
	decoder       *sensevoice.CTCDecoder
	stitcher      *transcript.ConfidenceStitcher
	merger        *transcript.TimelineMerger
	langLock      *transcript.LanguageLock
	formatter     *transcript.Formatter

	chunkDurationMS float64
	useITN          bool
	failures        *failureTracker
}

// PipelineDeps carries the component instances the orchestrator owns.
type PipelineDeps struct {
	Calibrator    *vad.NoiseFloorCalibrator
	Detector      *vad.Detector
	Fingerprinter *audiocore.ChunkFingerprinter
	Builder       *sensevoice.FeatureBuilder
	Encoder       sensevoice.Encoder
	Decoder       *sensevoice.CTCDecoder
	Stitcher      *transcript.ConfidenceStitcher
	Merger        *transcript.TimelineMerger
	LangLock      *transcript.LanguageLock
	Formatter     *transcript.Formatter
}

// NewPipeline assembles the per-chunk processing chain.
func NewPipeline(settings *conf.Settings, deps PipelineDeps, metrics *observability.Metrics, log *slog.Logger) *Pipeline {
	return &Pipeline{
		log:             log,
		metrics:         metrics,
		calibrator:      deps.Calibrator,
		detector:        deps.Detector,
		fingerprinter:   deps.Fingerprinter,
		builder:         deps.Builder,
		encoder:         deps.Encoder,
		decoder:         deps.Decoder,
		stitcher:        deps.Stitcher,
		merger:          deps.Merger,
		langLock:        deps.LangLock,
		formatter:       deps.Formatter,
		chunkDurationMS: settings.Audio.ChunkDuration * 1000,
		useITN:          settings.Model.UseITN,
		failures:        newFailureTracker(),
	}
}

// Fatal reports whether accumulated inference failures must abort the
// session.
func (p *Pipeline) Fatal() bool {
	return p.failures.fatal()
}

// LanguageLock exposes the lock for health reporting.
func (p *Pipeline) LanguageLock() *transcript.LanguageLock {
	return p.langLock
}

// Calibrator exposes the noise floor for health reporting.
func (p *Pipeline) Calibrator() *vad.NoiseFloorCalibrator {
	return p.calibrator
}

// ProcessChunk runs one chunk through the full inference path and returns
// the outcome.
func (p *Pipeline) ProcessChunk(chunk audiocore.AudioChunk) Outcome {
	// During bootstrap every chunk feeds the calibrator and nothing else.
	if !p.calibrator.Calibrated() {
		if p.calibrator.Feed(chunk.Samples) {
			p.metrics.NoiseFloor.Set(p.calibrator.Value())
		}
		p.metrics.RecordDrop(observability.DropReasonCalibration)
		return Outcome{Kind: OutcomeDropped, Reason: "calibration"}
	}

	p.metrics.ChunksProcessed.Inc()

	decision := p.detector.Detect(chunk.Samples, p.calibrator.Value())
	if !decision.IsSpeech {
		p.calibrator.ObserveNonSpeech(decision.RMS)
		p.metrics.NoiseFloor.Set(p.calibrator.Value())
		p.metrics.RecordDrop(observability.DropReasonVAD)
		return Outcome{Kind: OutcomeDropped, Reason: "non-speech"}
	}

	if p.fingerprinter.IsDuplicate(chunk.Samples) {
		p.metrics.RecordDrop(observability.DropReasonFingerprint)
		return Outcome{Kind: OutcomeDropped, Reason: "duplicate-chunk"}
	}

	feat := p.builder.Build(chunk.Samples, p.langLock.Active(), p.useITN)

	inferStart := time.Now()
	logits, err := p.encoder.Infer(feat)
	if err != nil {
		p.failures.record(true)
		p.metrics.EncoderErrors.Inc()
		p.metrics.ConsecutiveErrors.Set(float64(p.failures.consecutive))
		p.metrics.RecordDrop(observability.DropReasonInference)
		var ee *errors.EnhancedError
		if errors.As(err, &ee) {
			p.log.Error("encoder inference failed", ee.LogAttrs()...)
		} else {
			p.log.Error("encoder inference failed", "error", err)
		}
		return Outcome{Kind: OutcomeError, Reason: "inference", Err: err}
	}
	p.failures.record(false)
	p.metrics.ConsecutiveErrors.Set(0)
	p.metrics.InferenceDuration.Observe(time.Since(inferStart).Seconds())

	decodeStart := time.Now()
	res := p.decoder.Decode(logits, feat.TaskRows, p.chunkDurationMS)
	p.metrics.DecodeDuration.Observe(time.Since(decodeStart).Seconds())

	p.langLock.Observe(res.Meta.LanguageCode)

	p.stitcher.Process(res)

	emitted := p.merger.Merge(chunk.StartTimeMS, res.Words)
	if len(emitted) == 0 {
		return Outcome{Kind: OutcomeDropped, Reason: "no-new-words"}
	}
	p.metrics.WordsEmitted.Add(float64(len(emitted)))

	rec := p.formatter.Format(emitted, res)
	if rec == nil {
		return Outcome{Kind: OutcomeDropped, Reason: "filtered"}
	}

	return Outcome{Kind: OutcomeEmitted, Words: emitted, Record: rec}
}

package transcribe

import (
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zinkosoft/sensestream/internal/audiocore"
	"github.com/zinkosoft/sensestream/internal/conf"
	"github.com/zinkosoft/sensestream/internal/errors"
	"github.com/zinkosoft/sensestream/internal/observability"
	"github.com/zinkosoft/sensestream/internal/sensevoice"
	"github.com/zinkosoft/sensestream/internal/transcript"
	"github.com/zinkosoft/sensestream/internal/vad"
)

// stubEncoder returns scripted logits, or an error when failing is set.
type stubEncoder struct {
	logits  *sensevoice.Logits
	failing bool
	calls   int
}

func (s *stubEncoder) Infer(feat *sensevoice.Features) (*sensevoice.Logits, error) {
	s.calls++
	if s.failing {
		return nil, errors.Newf("accelerator hiccup").
			Category(errors.CategoryInference).
			Build()
	}
	return s.logits, nil
}

func (s *stubEncoder) Close() {}

func pipelineSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Model.Language = "auto"
	s.Model.UseITN = true
	s.Audio.ChunkDuration = 3.0
	s.Audio.OverlapDuration = 1.5
	s.VAD.Enabled = true
	s.VAD.Mode = "accurate"
	s.VAD.ZCRMin = 0.02
	s.VAD.ZCRMax = 0.35
	s.VAD.EntropyMax = 0.85
	s.VAD.RMSMargin = 0.004
	s.VAD.NoiseCalibSecs = 1.5
	s.VAD.Adaptive = true
	s.Stitcher.Enabled = true
	s.Stitcher.ConfidenceThreshold = 0.6
	s.Stitcher.OverlapWordCount = 4
	s.Timeline.Enabled = true
	s.Timeline.MinWordConfidence = 0.4
	s.Timeline.OverlapConfidence = 0.6
	s.Timeline.ConfidenceReplacement = true
	s.LanguageLock.Enabled = true
	s.LanguageLock.WarmupSecs = 10
	s.LanguageLock.MinSamples = 3
	s.LanguageLock.Confidence = 0.6
	s.Output.MinChars = 3
	s.Output.SimilarityThreshold = 0.85
	s.Output.DuplicateCooldown = 4.0
	s.Output.ShowLanguage = true
	return s
}

func pipelineVocab() *sensevoice.Vocabulary {
	return sensevoice.NewVocabulary([]string{
		"<blank>", "▁hello", "▁world", "<|en|>", "<|NEUTRAL|>", "<|Speech|>", "<|withitn|>", "<|BGM|>",
	})
}

// scriptedLogits builds logits whose acoustic argmax follows ids after
// taskRows prefix columns.
func scriptedLogits(ids []int, vocabSize, taskRows int) *sensevoice.Logits {
	frames := taskRows + len(ids)
	data := make([]float32, vocabSize*frames)
	for t, id := range ids {
		data[id*frames+taskRows+t] = 10.0
	}
	return &sensevoice.Logits{Data: data, Vocab: vocabSize, Frames: frames}
}

func newTestPipeline(t *testing.T, settings *conf.Settings, encoder sensevoice.Encoder) (*Pipeline, *observability.Metrics) {
	t.Helper()

	metrics, err := observability.NewMetrics()
	require.NoError(t, err)
	log := slog.Default()

	calibrator := vad.NewNoiseFloorCalibrator(
		audiocore.ModelSampleRate, settings.VAD.NoiseCalibSecs, settings.VAD.Adaptive, log)
	detector := vad.NewDetector(vad.Config{
		Enabled:    settings.VAD.Enabled,
		Mode:       vad.Mode(settings.VAD.Mode),
		ZCRMin:     settings.VAD.ZCRMin,
		ZCRMax:     settings.VAD.ZCRMax,
		EntropyMax: settings.VAD.EntropyMax,
		RMSMargin:  settings.VAD.RMSMargin,
	})
	langLock := transcript.NewLanguageLock(transcript.LanguageLockConfig{
		Enabled:    settings.LanguageLock.Enabled,
		WarmupSecs: settings.LanguageLock.WarmupSecs,
		MinSamples: settings.LanguageLock.MinSamples,
		Confidence: settings.LanguageLock.Confidence,
	}, settings.Model.Language)
	suppressor := transcript.NewDuplicateSuppressor(
		settings.Output.SimilarityThreshold, settings.Output.DuplicateCooldown)
	formatter := transcript.NewFormatter(transcript.FormatterConfig{
		MinChars:     settings.Output.MinChars,
		FilterBGM:    settings.Output.FilterBGM,
		FilterEvents: settings.Output.FilterEvents,
		ShowLanguage: settings.Output.ShowLanguage,
		Source:       "test",
		SessionID:    "session",
	}, suppressor, metrics)

	p := NewPipeline(settings, PipelineDeps{
		Calibrator:    calibrator,
		Detector:      detector,
		Fingerprinter: audiocore.NewChunkFingerprinter(),
		Builder:       sensevoice.NewFeatureBuilder(audiocore.ModelSampleRate, sensevoice.NewQueryTable(nil)),
		Encoder:       encoder,
		Decoder:       sensevoice.NewCTCDecoder(pipelineVocab()),
		Stitcher: transcript.NewConfidenceStitcher(transcript.StitcherConfig{
			Enabled:             settings.Stitcher.Enabled,
			ConfidenceThreshold: settings.Stitcher.ConfidenceThreshold,
			OverlapWordCount:    settings.Stitcher.OverlapWordCount,
		}),
		Merger: transcript.NewTimelineMerger(transcript.TimelineConfig{
			Enabled:               settings.Timeline.Enabled,
			MinWordConfidence:     settings.Timeline.MinWordConfidence,
			OverlapConfidence:     settings.Timeline.OverlapConfidence,
			ConfidenceReplacement: settings.Timeline.ConfidenceReplacement,
		}),
		LangLock:  langLock,
		Formatter: formatter,
	}, metrics, log)

	return p, metrics
}

func silentChunk(n int) []float32 {
	return make([]float32, n)
}

func voicedChunk(n int, phase float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		t := float64(i)/16000 + phase
		out[i] = float32(0.2*math.Sin(2*math.Pi*180*t) + 0.1*math.Sin(2*math.Pi*360*t))
	}
	return out
}

func calibrate(t *testing.T, p *Pipeline) {
	t.Helper()
	outcome := p.ProcessChunk(audiocore.AudioChunk{Samples: silentChunk(48000), Index: 0, StartTimeMS: 0})
	assert.Equal(t, OutcomeDropped, outcome.Kind)
	assert.Equal(t, "calibration", outcome.Reason)
	require.True(t, p.Calibrator().Calibrated())
}

func TestPipelineHelloWorldSingleChunk(t *testing.T) {
	t.Parallel()

	enc := &stubEncoder{
		logits: scriptedLogits([]int{3, 4, 5, 6, 1, 1, 0, 2, 2}, 8, 3),
	}
	p, _ := newTestPipeline(t, pipelineSettings(), enc)

	calibrate(t, p)

	outcome := p.ProcessChunk(audiocore.AudioChunk{Samples: voicedChunk(48000, 0), Index: 1, StartTimeMS: 1500})
	require.Equal(t, OutcomeEmitted, outcome.Kind)
	require.NotNil(t, outcome.Record)

	assert.Contains(t, outcome.Record.Text, "hello world")
	assert.Contains(t, outcome.Record.Text, "[English]")
	assert.Equal(t, "English", outcome.Record.Language)
	assert.Equal(t, "NEUTRAL", outcome.Record.Emotion)
	assert.True(t, outcome.Record.HasITN)
	assert.Equal(t, transcript.ConfidenceHigh, outcome.Record.Confidence)
	require.Len(t, outcome.Words, 2)
	assert.GreaterOrEqual(t, outcome.Words[0].GlobalStartMS, 1500.0)
}

func TestPipelineNonSpeechDropped(t *testing.T) {
	t.Parallel()

	enc := &stubEncoder{logits: scriptedLogits([]int{1}, 8, 3)}
	p, _ := newTestPipeline(t, pipelineSettings(), enc)
	calibrate(t, p)

	outcome := p.ProcessChunk(audiocore.AudioChunk{Samples: silentChunk(48000), Index: 1, StartTimeMS: 1500})
	assert.Equal(t, OutcomeDropped, outcome.Kind)
	assert.Equal(t, "non-speech", outcome.Reason)
	assert.Zero(t, enc.calls)
}

func TestPipelineDuplicateChunkShortCircuit(t *testing.T) {
	t.Parallel()

	enc := &stubEncoder{
		logits: scriptedLogits([]int{3, 1, 0, 2}, 8, 3),
	}
	p, _ := newTestPipeline(t, pipelineSettings(), enc)
	calibrate(t, p)

	chunk := voicedChunk(48000, 0)
	first := p.ProcessChunk(audiocore.AudioChunk{Samples: chunk, Index: 1, StartTimeMS: 1500})
	require.Equal(t, OutcomeEmitted, first.Kind)
	callsAfterFirst := enc.calls

	second := p.ProcessChunk(audiocore.AudioChunk{Samples: chunk, Index: 2, StartTimeMS: 3000})
	assert.Equal(t, OutcomeDropped, second.Kind)
	assert.Equal(t, "duplicate-chunk", second.Reason)
	// the encoder is never invoked twice for an identical payload
	assert.Equal(t, callsAfterFirst, enc.calls)
}

func TestPipelineInferenceFailureEscalation(t *testing.T) {
	t.Parallel()

	enc := &stubEncoder{failing: true}
	p, _ := newTestPipeline(t, pipelineSettings(), enc)
	calibrate(t, p)

	for i := 1; i <= 9; i++ {
		outcome := p.ProcessChunk(audiocore.AudioChunk{
			Samples:     voicedChunk(48000, float64(i)*0.37),
			Index:       i,
			StartTimeMS: float64(i) * 1500,
		})
		require.Equal(t, OutcomeError, outcome.Kind)
	}
	assert.False(t, p.Fatal())

	outcome := p.ProcessChunk(audiocore.AudioChunk{
		Samples:     voicedChunk(48000, 99.1),
		Index:       10,
		StartTimeMS: 15000,
	})
	require.Equal(t, OutcomeError, outcome.Kind)
	assert.True(t, p.Fatal())
}

func TestPipelineLanguageLockObservesDecodes(t *testing.T) {
	t.Parallel()

	enc := &stubEncoder{
		logits: scriptedLogits([]int{3, 1, 0, 2}, 8, 3),
	}
	p, _ := newTestPipeline(t, pipelineSettings(), enc)
	calibrate(t, p)

	outcome := p.ProcessChunk(audiocore.AudioChunk{Samples: voicedChunk(48000, 0), Index: 1, StartTimeMS: 1500})
	require.Equal(t, OutcomeEmitted, outcome.Kind)

	// one en sample collected, still warming up
	assert.Equal(t, transcript.StateWarmup, p.LanguageLock().State())
	assert.Equal(t, "auto", p.LanguageLock().Active())
}

func TestFailureTrackerRateWindow(t *testing.T) {
	t.Parallel()

	f := newFailureTracker()
	base := time.Unix(1700000000, 0)
	now := base
	f.now = func() time.Time { return now }

	// interleave failures so the consecutive rule never fires
	for i := 0; i < 21; i++ {
		now = now.Add(time.Second)
		f.record(i%4 == 0) // 6 failures at i=0,4,8,12,16,20
	}
	// 6/21 = 28.6% > 25%
	assert.True(t, f.fatal())

	// the window forgets old samples
	now = now.Add(2 * time.Minute)
	for i := 0; i < 25; i++ {
		now = now.Add(time.Millisecond)
		f.record(false)
	}
	assert.False(t, f.fatal())
}

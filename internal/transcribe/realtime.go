package transcribe

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/zinkosoft/sensestream/internal/audiocore"
	"github.com/zinkosoft/sensestream/internal/broadcast"
	"github.com/zinkosoft/sensestream/internal/conf"
	"github.com/zinkosoft/sensestream/internal/errors"
	"github.com/zinkosoft/sensestream/internal/logging"
	"github.com/zinkosoft/sensestream/internal/observability"
	"github.com/zinkosoft/sensestream/internal/sensevoice"
	"github.com/zinkosoft/sensestream/internal/transcript"
	"github.com/zinkosoft/sensestream/internal/vad"
)

const shutdownGrace = 2 * time.Second

// Session owns every component instance for the lifetime of one realtime
// transcription run. Stages receive only the channels and config slices
// they need; there are no back-pointers.
type Session struct {
	settings *conf.Settings
	log      *slog.Logger
	metrics  *observability.Metrics

	source   *audiocore.MalgoSource
	chunker  *audiocore.Chunker
	pipeline *Pipeline
	hub      *broadcast.Hub
	server   *broadcast.Server
	mqtt     *broadcast.MQTTPublisher
	sink     broadcast.Sink
	encoder  sensevoice.Encoder

	sessionID string

	chunksSeen     atomic.Int64
	recordsEmitted atomic.Int64
}

// RealtimeTranscription runs a session until a signal or fatal error.
// The returned error carries the category that resolves the exit code.
func RealtimeTranscription(settings *conf.Settings) error {
	log := logging.ForService("transcribe")

	metrics, err := observability.NewMetrics()
	if err != nil {
		return errors.New(err).
			Component("transcribe").
			Category(errors.CategoryConfiguration).
			Context("operation", "metrics_init").
			Build()
	}

	s := &Session{
		settings:  settings,
		log:       log,
		metrics:   metrics,
		sessionID: uuid.NewString(),
	}
	return s.run()
}

func (s *Session) run() error {
	settings := s.settings

	// Model assets load before the audio device opens so a bad MODEL_PATH
	// fails with exit 4 and never touches the hardware.
	encoder, err := sensevoice.NewTFLiteEncoder(sensevoice.EncoderConfig{
		ModelPath:  settings.Model.Path,
		Threads:    settings.Model.Threads,
		UseXNNPACK: settings.Model.UseXNNPACK,
	}, s.log)
	if err != nil {
		return err
	}
	s.encoder = encoder
	defer encoder.Close()

	vocab, err := sensevoice.LoadVocabulary(vocabPath(settings))
	if err != nil {
		return err
	}
	queries, err := sensevoice.LoadQueryTable(embeddingPath(settings))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.source = audiocore.NewMalgoSource(settings.Audio.Device, s.log)
	if err := s.source.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = s.source.Stop() }()

	s.chunker = audiocore.NewChunker(
		s.source.SampleRate(),
		settings.Audio.ChunkDuration,
		settings.Audio.OverlapDuration,
		s.log,
	)

	s.pipeline = s.buildPipeline(vocab, queries)

	s.hub = broadcast.NewHub(s.log, s.metrics)
	sinks := broadcast.MultiSink{s.hub}
	if settings.MQTT.Enabled {
		pub, err := broadcast.NewMQTTPublisher(broadcast.MQTTConfig{
			Broker:   settings.MQTT.Broker,
			Topic:    settings.MQTT.Topic,
			Username: settings.MQTT.Username,
			Password: settings.MQTT.Password,
			ClientID: "sensestream-" + s.sessionID[:8],
		}, s.log)
		if err != nil {
			// MQTT is an optional mirror; a broken broker must not kill
			// the session.
			s.log.Warn("mqtt publisher unavailable", "error", err)
		} else {
			s.mqtt = pub
			sinks = append(sinks, pub)
			defer pub.Close()
		}
	}
	s.sink = sinks

	if settings.WebServer.Enabled {
		s.server = broadcast.NewServer(
			settings.WebServer.Port, s.hub, s, s.metrics,
			settings.WebServer.Metrics, s.log,
		)
		s.server.Start()
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.hub.Run()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.chunker.Run(ctx, s.source.Frames())
	}()

	// fatalErr is set by the inference loop or capture watcher before
	// cancelling the context.
	var fatalMu sync.Mutex
	var fatalErr error
	abort := func(err error) {
		fatalMu.Lock()
		if fatalErr == nil {
			fatalErr = err
		}
		fatalMu.Unlock()
		cancel()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.watchCapture(ctx, abort)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.inferenceLoop(ctx, abort)
	}()

	s.log.Info("realtime transcription started",
		"session_id", s.sessionID,
		"device", s.source.Name(),
		"device_rate", s.source.SampleRate(),
		"chunk_s", settings.Audio.ChunkDuration,
		"overlap_s", settings.Audio.OverlapDuration,
		"language", settings.Model.Language)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		s.log.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
	}
	signal.Stop(sigChan)

	cancel()
	_ = s.source.Stop()

	// Drain the stages for at most the grace period, then close the hub
	// and the HTTP server. Records still queued in the hub when it closes
	// are not delivered.
	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(shutdownGrace):
		s.log.Warn("shutdown drain timed out")
	}

	s.hub.Close()
	if s.server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer shutdownCancel()
		_ = s.server.Shutdown(shutdownCtx)
	}

	fatalMu.Lock()
	defer fatalMu.Unlock()
	return fatalErr
}

func (s *Session) buildPipeline(vocab *sensevoice.Vocabulary, queries *sensevoice.QueryTable) *Pipeline {
	settings := s.settings

	calibrator := vad.NewNoiseFloorCalibrator(
		audiocore.ModelSampleRate,
		settings.VAD.NoiseCalibSecs,
		settings.VAD.Adaptive,
		s.log,
	)
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
		settings.Output.SimilarityThreshold,
		settings.Output.DuplicateCooldown,
	)
	formatter := transcript.NewFormatter(transcript.FormatterConfig{
		MinChars:     settings.Output.MinChars,
		FilterBGM:    settings.Output.FilterBGM,
		FilterEvents: settings.Output.FilterEvents,
		ShowEmotions: settings.Output.ShowEmotions,
		ShowEvents:   settings.Output.ShowEvents,
		ShowLanguage: settings.Output.ShowLanguage,
		Source:       s.source.Name(),
		SessionID:    s.sessionID,
	}, suppressor, s.metrics)

	return NewPipeline(settings, PipelineDeps{
		Calibrator:    calibrator,
		Detector:      detector,
		Fingerprinter: audiocore.NewChunkFingerprinter(),
		Builder:       sensevoice.NewFeatureBuilder(audiocore.ModelSampleRate, queries),
		Encoder:       s.encoder,
		Decoder:       sensevoice.NewCTCDecoder(vocab),
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
	}, s.metrics, s.log)
}

// inferenceLoop is the single-threaded stage running VAD through
// formatting. Chunks are processed strictly in index order.
func (s *Session) inferenceLoop(ctx context.Context, abort func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-s.chunker.Chunks():
			if !ok {
				return
			}
			s.chunksSeen.Add(1)

			outcome := s.pipeline.ProcessChunk(chunk)
			switch outcome.Kind {
			case OutcomeEmitted:
				s.recordsEmitted.Add(1)
				logging.Info(outcome.Record.Text,
					"confidence", outcome.Record.Confidence,
					"chunk", chunk.Index)
				s.sink.Broadcast(outcome.Record)
			case OutcomeError:
				if s.pipeline.Fatal() {
					abort(errors.Newf("encoder failure threshold exceeded").
						Component("transcribe").
						Category(errors.CategoryDevice).
						Context("error", "accelerator no longer answering inference calls").
						Build())
					return
				}
			case OutcomeDropped:
				s.log.Debug("chunk dropped",
					"chunk", chunk.Index,
					"reason", outcome.Reason)
			}
		}
	}
}

// watchCapture turns an unrecoverable device failure into a session
// abort with exit code 5.
func (s *Session) watchCapture(ctx context.Context, abort func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-s.source.Errors():
			if !ok {
				return
			}
			if audiocore.FatalCaptureError(err) {
				s.log.Error("capture failure", "error", err)
				abort(err)
				return
			}
			s.log.Warn("capture warning", "error", err)
		}
	}
}

// HealthSnapshot implements broadcast.Health.
func (s *Session) HealthSnapshot() map[string]any {
	state := "running"
	if !s.pipeline.Calibrator().Calibrated() {
		state = s.pipeline.Calibrator().State().String()
	}
	return map[string]any{
		"state":           state,
		"session_id":      s.sessionID,
		"chunks_seen":     s.chunksSeen.Load(),
		"records_emitted": s.recordsEmitted.Load(),
		"noise_floor":     s.pipeline.Calibrator().Value(),
		"language_lock":   string(s.pipeline.LanguageLock().State()),
		"language":        s.pipeline.LanguageLock().Active(),
	}
}

func vocabPath(settings *conf.Settings) string {
	if settings.Model.VocabPath != "" {
		return settings.Model.VocabPath
	}
	return filepath.Join(filepath.Dir(settings.Model.Path), "tokens.txt")
}

func embeddingPath(settings *conf.Settings) string {
	if settings.Model.EmbeddingPath != "" {
		return settings.Model.EmbeddingPath
	}
	return filepath.Join(filepath.Dir(settings.Model.Path), "embeddings.bin")
}

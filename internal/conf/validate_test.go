package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zinkosoft/sensestream/internal/errors"
)

func validSettings() *Settings {
	s := &Settings{}
	s.Model.Path = "/models/encoder.tflite"
	s.Model.Language = "auto"
	s.Audio.ChunkDuration = 3.0
	s.Audio.OverlapDuration = 1.5
	s.VAD.Mode = "accurate"
	s.VAD.ZCRMin = 0.02
	s.VAD.ZCRMax = 0.35
	s.VAD.EntropyMax = 0.85
	s.VAD.RMSMargin = 0.004
	s.VAD.NoiseCalibSecs = 1.5
	s.Stitcher.ConfidenceThreshold = 0.6
	s.Stitcher.OverlapWordCount = 4
	s.Timeline.MinWordConfidence = 0.4
	s.Timeline.OverlapConfidence = 0.6
	s.LanguageLock.WarmupSecs = 10
	s.LanguageLock.MinSamples = 3
	s.LanguageLock.Confidence = 0.6
	s.Output.MinChars = 3
	s.Output.SimilarityThreshold = 0.85
	s.Output.DuplicateCooldown = 4.0
	return s
}

func TestValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateRequiresModelPath(t *testing.T) {
	s := validSettings()
	s.Model.Path = ""
	err := ValidateSettings(s)
	require.Error(t, err)
	assert.Equal(t, errors.ExitConfiguration, errors.ExitCode(err))
}

func TestValidateRejectsChunkNotLargerThanOverlap(t *testing.T) {
	s := validSettings()
	s.Audio.ChunkDuration = 1.5
	s.Audio.OverlapDuration = 1.5
	err := ValidateSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHUNK_DURATION")
}

func TestValidateRejectsUnknownLanguage(t *testing.T) {
	s := validSettings()
	s.Model.Language = "klingon"
	assert.Error(t, ValidateSettings(s))
}

func TestValidateRejectsBadVADMode(t *testing.T) {
	s := validSettings()
	s.VAD.Mode = "turbo"
	assert.Error(t, ValidateSettings(s))
}

func TestValidateRejectsUnknownFilterEvent(t *testing.T) {
	s := validSettings()
	s.Output.FilterEvents = []string{"Explosion"}
	assert.Error(t, ValidateSettings(s))
}

func TestValidateRejectsOutOfRangeThresholds(t *testing.T) {
	s := validSettings()
	s.Stitcher.ConfidenceThreshold = 1.5
	assert.Error(t, ValidateSettings(s))

	s = validSettings()
	s.Timeline.MinWordConfidence = -0.1
	assert.Error(t, ValidateSettings(s))

	s = validSettings()
	s.LanguageLock.Confidence = 0
	assert.Error(t, ValidateSettings(s))
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MODEL_PATH", "/models/encoder.tflite")
	t.Setenv("LANGUAGE", "en")
	t.Setenv("CHUNK_DURATION", "2.0")
	t.Setenv("OVERLAP_DURATION", "0.5")
	t.Setenv("FILTER_EVENTS", "BGM, Laughter")
	t.Setenv("SHOW_EMOTIONS", "true")

	settings, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/models/encoder.tflite", settings.Model.Path)
	assert.Equal(t, "en", settings.Model.Language)
	assert.InDelta(t, 2.0, settings.Audio.ChunkDuration, 1e-9)
	assert.InDelta(t, 1.5, settings.HopSeconds(), 1e-9)
	assert.Equal(t, []string{"BGM", "Laughter"}, settings.Output.FilterEvents)
	assert.True(t, settings.Output.ShowEmotions)

	// untouched knobs keep their defaults
	assert.Equal(t, "accurate", settings.VAD.Mode)
	assert.InDelta(t, 0.85, settings.Output.SimilarityThreshold, 1e-9)
}

func TestLoadFailsFastOnBadConfig(t *testing.T) {
	t.Setenv("MODEL_PATH", "/models/encoder.tflite")
	t.Setenv("CHUNK_DURATION", "1.0")
	t.Setenv("OVERLAP_DURATION", "2.0")

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, errors.ExitConfiguration, errors.ExitCode(err))
}

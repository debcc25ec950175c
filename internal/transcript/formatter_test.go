package transcript

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zinkosoft/sensestream/internal/observability"
	"github.com/zinkosoft/sensestream/internal/sensevoice"
)

func newTestFormatter(t *testing.T, cfg FormatterConfig) (*Formatter, *observability.Metrics) {
	t.Helper()
	metrics, err := observability.NewMetrics()
	require.NoError(t, err)
	suppressor := NewDuplicateSuppressor(0.85, 4.0)
	return NewFormatter(cfg, suppressor, metrics), metrics
}

func emittedWords(texts []string, conf float64) []sensevoice.WordTiming {
	words := make([]sensevoice.WordTiming, len(texts))
	for i, txt := range texts {
		words[i] = sensevoice.WordTiming{Text: txt, Confidence: conf}
	}
	return words
}

func resultWithMeta(meta sensevoice.Metadata) *sensevoice.DecodeResult {
	return &sensevoice.DecodeResult{Meta: meta, RawText: "raw"}
}

func TestFormatBuildsRecord(t *testing.T) {
	t.Parallel()

	f, _ := newTestFormatter(t, FormatterConfig{
		MinChars:     3,
		ShowLanguage: true,
		Source:       "mic0",
		SessionID:    "abc",
	})

	var meta sensevoice.Metadata
	meta.Language = "English"
	rec := f.Format(emittedWords([]string{"hello", "world"}, 0.9), resultWithMeta(meta))

	require.NotNil(t, rec)
	assert.Equal(t, "transcription", rec.Type)
	assert.Equal(t, "hello world [English]", rec.Text)
	assert.Equal(t, "English", rec.Language)
	assert.Equal(t, ConfidenceHigh, rec.Confidence)
	assert.Equal(t, "mic0", rec.Source)
	assert.Equal(t, "raw", rec.RawText)
	assert.NotEmpty(t, rec.Timestamp)
}

func TestFormatBGMFilter(t *testing.T) {
	t.Parallel()

	f, metrics := newTestFormatter(t, FormatterConfig{MinChars: 3, FilterBGM: true})

	var meta sensevoice.Metadata
	meta.AudioEvents = []string{"BGM"}
	rec := f.Format(emittedWords([]string{"music", "plays"}, 0.9), resultWithMeta(meta))

	assert.Nil(t, rec)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FilteredByEvent))
}

func TestFormatEventFilterList(t *testing.T) {
	t.Parallel()

	f, _ := newTestFormatter(t, FormatterConfig{
		MinChars:     3,
		FilterEvents: []string{"Laughter"},
	})

	var meta sensevoice.Metadata
	meta.AudioEvents = []string{"Laughter"}
	assert.Nil(t, f.Format(emittedWords([]string{"some", "words"}, 0.9), resultWithMeta(meta)))

	meta = sensevoice.Metadata{AudioEvents: []string{"Applause"}}
	assert.NotNil(t, f.Format(emittedWords([]string{"other", "words"}, 0.9), resultWithMeta(meta)))
}

func TestFormatMinCharsSuppression(t *testing.T) {
	t.Parallel()

	f, _ := newTestFormatter(t, FormatterConfig{MinChars: 3})

	rec := f.Format(emittedWords([]string{"a"}, 0.9), resultWithMeta(sensevoice.Metadata{}))
	assert.Nil(t, rec)

	rec = f.Format(emittedWords([]string{"abc"}, 0.9), resultWithMeta(sensevoice.Metadata{}))
	assert.NotNil(t, rec)
}

func TestFormatDuplicateSuppression(t *testing.T) {
	t.Parallel()

	f, _ := newTestFormatter(t, FormatterConfig{MinChars: 3})

	first := f.Format(emittedWords([]string{"hello", "again"}, 0.9), resultWithMeta(sensevoice.Metadata{}))
	assert.NotNil(t, first)
	second := f.Format(emittedWords([]string{"hello", "again"}, 0.9), resultWithMeta(sensevoice.Metadata{}))
	assert.Nil(t, second)
}

func TestFormatEmptyWords(t *testing.T) {
	t.Parallel()

	f, _ := newTestFormatter(t, FormatterConfig{MinChars: 3})
	assert.Nil(t, f.Format(nil, resultWithMeta(sensevoice.Metadata{})))
}

func TestFormatEmotionAndEventPrefix(t *testing.T) {
	t.Parallel()

	f, _ := newTestFormatter(t, FormatterConfig{
		MinChars:     3,
		ShowEmotions: true,
		ShowEvents:   true,
	})

	var meta sensevoice.Metadata
	meta.Emotion = "HAPPY"
	meta.AudioEvents = []string{"Applause"}
	rec := f.Format(emittedWords([]string{"great", "show"}, 0.9), resultWithMeta(meta))

	require.NotNil(t, rec)
	assert.Contains(t, rec.Text, "😊")
	assert.Contains(t, rec.Text, "👏")
	assert.Contains(t, rec.Text, "great show")
}

func TestBucketConfidence(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ConfidenceHigh, BucketConfidence(0.75))
	assert.Equal(t, ConfidenceHigh, BucketConfidence(0.9))
	assert.Equal(t, ConfidenceMedium, BucketConfidence(0.5))
	assert.Equal(t, ConfidenceMedium, BucketConfidence(0.74))
	assert.Equal(t, ConfidenceLow, BucketConfidence(0.49))
	assert.Equal(t, ConfidenceLow, BucketConfidence(0))
}

package transcript

import (
	"strings"
	"time"
	"unicode"

	"github.com/zinkosoft/sensestream/internal/observability"
	"github.com/zinkosoft/sensestream/internal/sensevoice"
)

// Record is the structured transcription message broadcast to sinks.
type Record struct {
	Type        string   `json:"type"`
	Text        string   `json:"text"`
	Language    string   `json:"language,omitempty"`
	Emotion     string   `json:"emotion,omitempty"`
	AudioEvents []string `json:"audio_events"`
	HasITN      bool     `json:"has_itn"`
	RawText     string   `json:"raw_text"`
	Confidence  string   `json:"confidence"`
	Timestamp   string   `json:"timestamp"`
	Source      string   `json:"source"`
	SessionID   string   `json:"session_id,omitempty"`
}

// Confidence buckets for the broadcast record.
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
)

// BucketConfidence maps an average confidence to its display bucket.
func BucketConfidence(conf float64) string {
	switch {
	case conf >= 0.75:
		return ConfidenceHigh
	case conf >= 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

var emotionEmojis = map[string]string{
	"HAPPY":     "😊",
	"SAD":       "😢",
	"ANGRY":     "😠",
	"FEARFUL":   "😨",
	"DISGUSTED": "🤢",
	"SURPRISED": "😲",
}

var eventEmojis = map[string]string{
	"BGM":      "🎵",
	"Applause": "👏",
	"Laughter": "😄",
	"Crying":   "😭",
	"Sneeze":   "🤧",
	"Cough":    "😷",
	"Breath":   "💨",
	"Speech":   "🗣️",
}

// FormatterConfig carries the display and filter knobs.
type FormatterConfig struct {
	MinChars     int
	FilterBGM    bool
	FilterEvents []string
	ShowEmotions bool
	ShowEvents   bool
	ShowLanguage bool
	Source       string
	SessionID    string
}

// Formatter applies the output filters, composes the display string and
// builds broadcast records. It owns the duplicate-suppressor ring.
type Formatter struct {
	cfg        FormatterConfig
	filtered   map[string]struct{}
	suppressor *DuplicateSuppressor
	metrics    *observability.Metrics
	now        func() time.Time
}

// NewFormatter creates a formatter.
func NewFormatter(cfg FormatterConfig, suppressor *DuplicateSuppressor, metrics *observability.Metrics) *Formatter {
	filtered := make(map[string]struct{}, len(cfg.FilterEvents)+1)
	for _, ev := range cfg.FilterEvents {
		filtered[ev] = struct{}{}
	}
	if cfg.FilterBGM {
		filtered["BGM"] = struct{}{}
	}
	return &Formatter{
		cfg:        cfg,
		filtered:   filtered,
		suppressor: suppressor,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Format turns newly emitted words plus the chunk metadata into a
// broadcast record, or nil when the emission is filtered or suppressed.
func (f *Formatter) Format(words []sensevoice.WordTiming, res *sensevoice.DecodeResult) *Record {
	if len(words) == 0 {
		return nil
	}

	for _, ev := range res.Meta.AudioEvents {
		if _, drop := f.filtered[ev]; drop {
			f.metrics.FilteredByEvent.Inc()
			return nil
		}
	}

	texts := make([]string, len(words))
	var confSum float64
	for i, w := range words {
		texts[i] = w.Text
		confSum += w.Confidence
	}
	text := strings.Join(texts, " ")
	avgConf := confSum / float64(len(words))

	if countAlnum(text) < f.cfg.MinChars {
		return nil
	}

	if f.suppressor.ShouldSuppress(text) {
		f.metrics.DuplicateSuppressed.Inc()
		return nil
	}

	return &Record{
		Type:        "transcription",
		Text:        f.display(text, &res.Meta),
		Language:    res.Meta.Language,
		Emotion:     res.Meta.Emotion,
		AudioEvents: append([]string{}, res.Meta.AudioEvents...),
		HasITN:      res.Meta.HasITN,
		RawText:     res.RawText,
		Confidence:  BucketConfidence(avgConf),
		Timestamp:   f.now().Format("2006-01-02T15:04:05.000Z07:00"),
		Source:      f.cfg.Source,
		SessionID:   f.cfg.SessionID,
	}
}

// display composes the user-facing string: emotion and event emoji
// prefixes plus the language suffix.
func (f *Formatter) display(text string, meta *sensevoice.Metadata) string {
	var b strings.Builder

	if f.cfg.ShowEmotions && meta.Emotion != "" {
		if emoji, ok := emotionEmojis[meta.Emotion]; ok {
			b.WriteString(emoji)
			b.WriteString(" ")
		}
	}
	if f.cfg.ShowEvents {
		for _, ev := range meta.AudioEvents {
			if emoji, ok := eventEmojis[ev]; ok {
				b.WriteString(emoji)
				b.WriteString(" ")
			}
		}
	}

	b.WriteString(text)

	if f.cfg.ShowLanguage && meta.Language != "" {
		b.WriteString(" [")
		b.WriteString(meta.Language)
		b.WriteString("]")
	}

	return b.String()
}

func countAlnum(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

package transcript

import (
	"github.com/zinkosoft/sensestream/internal/sensevoice"
)

// TimelineConfig carries the merger knobs.
type TimelineConfig struct {
	Enabled               bool
	MinWordConfidence     float64
	OverlapConfidence     float64
	ConfidenceReplacement bool
}

// TimelineMerger owns the global word timeline and emits only words that
// advance it. The timeline is append-mostly; replacing the tail word on a
// confidence win is the sole in-place mutation.
type TimelineMerger struct {
	cfg               TimelineConfig
	words             []sensevoice.WordTiming
	lastEmittedEndMS  float64
}

// NewTimelineMerger creates a merger with an empty timeline.
func NewTimelineMerger(cfg TimelineConfig) *TimelineMerger {
	return &TimelineMerger{cfg: cfg}
}

// LastEmittedEndMS returns the current high-water mark.
func (m *TimelineMerger) LastEmittedEndMS() float64 {
	return m.lastEmittedEndMS
}

// Words returns the emitted timeline.
func (m *TimelineMerger) Words() []sensevoice.WordTiming {
	return m.words
}

// Merge places the chunk's words on the global timeline and returns only
// the newly emitted ones. chunkStartMS is the chunk's global offset.
func (m *TimelineMerger) Merge(chunkStartMS float64, words []sensevoice.WordTiming) []sensevoice.WordTiming {
	var emitted []sensevoice.WordTiming

	for _, w := range words {
		w.GlobalStartMS = w.StartMS + chunkStartMS
		w.GlobalEndMS = w.EndMS + chunkStartMS

		if !m.cfg.Enabled {
			m.words = append(m.words, w)
			if w.GlobalEndMS > m.lastEmittedEndMS {
				m.lastEmittedEndMS = w.GlobalEndMS
			}
			emitted = append(emitted, w)
			continue
		}

		if w.Confidence < m.cfg.MinWordConfidence {
			continue
		}
		if w.GlobalEndMS <= m.lastEmittedEndMS {
			continue // already past
		}

		if w.GlobalStartMS < m.lastEmittedEndMS {
			// boundary-straddling word
			if m.cfg.ConfidenceReplacement && len(m.words) > 0 {
				last := m.words[len(m.words)-1]
				if w.Confidence > last.Confidence+(m.cfg.OverlapConfidence-0.5) {
					m.words[len(m.words)-1] = w
					m.lastEmittedEndMS = w.GlobalEndMS
					emitted = append(emitted, w)
				}
			}
			continue
		}

		m.words = append(m.words, w)
		m.lastEmittedEndMS = w.GlobalEndMS
		emitted = append(emitted, w)
	}

	return emitted
}

// Package transcript implements the post-decode half of the pipeline: the
// confidence-gated boundary stitcher, the global timeline merger, the
// text duplicate suppressor, the language auto-lock and the output
// formatter.
package transcript

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/zinkosoft/sensestream/internal/sensevoice"
)

const overlapSimilarity = 0.7

// TextSimilarity returns 1 - levenshtein(a,b)/max(|a|,|b|) in [0, 1].
// Pairs with an empty side yield 0.
func TextSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	la := len([]rune(a))
	lb := len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	dist := matchr.Levenshtein(a, b)
	sim := 1 - float64(dist)/float64(longest)
	if sim < 0 {
		return 0
	}
	return sim
}

// chunkTail remembers the trailing words of the previously processed
// chunk.
type chunkTail struct {
	words      []sensevoice.WordTiming
	text       string
	confidence float64
}

// StitcherConfig carries the boundary-stitching knobs.
type StitcherConfig struct {
	Enabled             bool
	ConfidenceThreshold float64
	OverlapWordCount    int
}

// ConfidenceStitcher removes garbled duplicates at chunk boundaries
// before the timeline merger sees them. It only ever trims words from the
// current chunk's head; interior words are never modified.
type ConfidenceStitcher struct {
	cfg  StitcherConfig
	prev *chunkTail
}

// NewConfidenceStitcher creates a stitcher.
func NewConfidenceStitcher(cfg StitcherConfig) *ConfidenceStitcher {
	return &ConfidenceStitcher{cfg: cfg}
}

// Process compares the stored tail against the head of res and trims the
// overlap when either side is below the confidence threshold. The tail is
// then refreshed from the (possibly trimmed) result.
func (s *ConfidenceStitcher) Process(res *sensevoice.DecodeResult) {
	if !s.cfg.Enabled {
		return
	}
	defer s.updateTail(res)

	if s.prev == nil || len(s.prev.words) == 0 || len(res.Words) == 0 {
		return
	}

	headCount := s.cfg.OverlapWordCount
	if headCount > len(res.Words) {
		headCount = len(res.Words)
	}
	headWords := make([]string, headCount)
	for i := 0; i < headCount; i++ {
		headWords[i] = res.Words[i].Text
	}
	head := strings.Join(headWords, " ")

	if !lengthsComparable(s.prev.text, head) {
		return
	}
	if TextSimilarity(s.prev.text, head) < overlapSimilarity {
		return
	}

	switch {
	case s.prev.confidence < s.cfg.ConfidenceThreshold:
		// The old tail was shaky; the overlap region already went out, so
		// drop the re-decoded copy from the new head.
		s.trimHead(res, headCount)
	case res.AvgConfidence < s.cfg.ConfidenceThreshold:
		// The new pass is shaky; keep the old tail as authoritative.
		s.trimHead(res, headCount)
	default:
		// Both sides confident; downstream de-duplication decides.
	}
}

// lengthsComparable applies the short-circuit: when the lengths differ by
// more than 50% the strings cannot be the same utterance.
func lengthsComparable(a, b string) bool {
	la := len([]rune(a))
	lb := len([]rune(b))
	if la == 0 || lb == 0 {
		return false
	}
	shorter, longer := la, lb
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	return float64(shorter)/float64(longer) >= 0.5
}

func (s *ConfidenceStitcher) trimHead(res *sensevoice.DecodeResult, n int) {
	res.Words = res.Words[n:]
	recompute(res)
}

func (s *ConfidenceStitcher) updateTail(res *sensevoice.DecodeResult) {
	if len(res.Words) == 0 {
		return
	}
	n := s.cfg.OverlapWordCount
	if n > len(res.Words) {
		n = len(res.Words)
	}
	tail := res.Words[len(res.Words)-n:]

	texts := make([]string, len(tail))
	var confSum float64
	for i, w := range tail {
		texts[i] = w.Text
		confSum += w.Confidence
	}
	s.prev = &chunkTail{
		words:      append([]sensevoice.WordTiming(nil), tail...),
		text:       strings.Join(texts, " "),
		confidence: confSum / float64(len(tail)),
	}
}

// recompute refreshes the canonical text and average confidence after a
// trim.
func recompute(res *sensevoice.DecodeResult) {
	texts := make([]string, len(res.Words))
	var confSum float64
	for i, w := range res.Words {
		texts[i] = w.Text
		confSum += w.Confidence
	}
	res.Text = strings.Join(texts, " ")
	if len(res.Words) > 0 {
		res.AvgConfidence = confSum / float64(len(res.Words))
	} else {
		res.AvgConfidence = 0
	}
}

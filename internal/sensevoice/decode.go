package sensevoice

import (
	"math"
	"strings"
	"unicode"
)

// WordTiming is one decoded word with chunk-local and global timing.
type WordTiming struct {
	Text          string
	StartMS       float64
	EndMS         float64
	Confidence    float64
	GlobalStartMS float64
	GlobalEndMS   float64
}

// DecodeResult is the per-chunk decoder output.
type DecodeResult struct {
	Words         []WordTiming
	Text          string // canonical space-joined word texts
	RawText       string // detokenized output including tags
	AvgConfidence float64
	Meta          Metadata
}

// tokenRun is one collapsed CTC run: a token with its frame span and the
// max posterior across the run.
type tokenRun struct {
	id         int
	startFrame int
	endFrame   int
	confidence float64
}

// CTCDecoder turns encoder logits into timed words.
type CTCDecoder struct {
	vocab *Vocabulary
}

// NewCTCDecoder creates a decoder over the given vocabulary.
func NewCTCDecoder(vocab *Vocabulary) *CTCDecoder {
	return &CTCDecoder{vocab: vocab}
}

// Decode performs argmax CTC decoding over the acoustic frames of the
// logits, discarding the first taskRows columns (the task-query prefix).
// chunkDurationMS anchors frame-to-time mapping.
func (d *CTCDecoder) Decode(logits *Logits, taskRows int, chunkDurationMS float64) *DecodeResult {
	frames := logits.Frames - taskRows
	if frames <= 0 || logits.Vocab == 0 {
		return &DecodeResult{}
	}

	runs := d.collapse(logits, taskRows, frames)

	msPerFrame := chunkDurationMS / float64(frames)
	return d.detokenize(runs, msPerFrame)
}

// collapse computes per-frame argmax with posterior confidence and merges
// consecutive identical ids, then drops blank runs.
func (d *CTCDecoder) collapse(logits *Logits, taskRows, frames int) []tokenRun {
	var runs []tokenRun

	for t := 0; t < frames; t++ {
		col := taskRows + t

		// argmax and softmax posterior for that id; the full softmax is
		// only needed for the normalizer.
		maxLogit := float32(math.Inf(-1))
		best := 0
		for v := 0; v < logits.Vocab; v++ {
			if l := logits.At(v, col); l > maxLogit {
				maxLogit = l
				best = v
			}
		}
		var denom float64
		for v := 0; v < logits.Vocab; v++ {
			denom += math.Exp(float64(logits.At(v, col) - maxLogit))
		}
		conf := 1.0 / denom // exp(0)/denom for the argmax entry

		if n := len(runs); n > 0 && runs[n-1].id == best && runs[n-1].endFrame == t-1 {
			runs[n-1].endFrame = t
			if conf > runs[n-1].confidence {
				runs[n-1].confidence = conf
			}
		} else {
			runs = append(runs, tokenRun{id: best, startFrame: t, endFrame: t, confidence: conf})
		}
	}

	blank := d.vocab.BlankID()
	filtered := runs[:0]
	for _, r := range runs {
		if r.id != blank {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// detokenize walks token runs in order, stripping metadata tags and
// merging subword pieces into timed words.
func (d *CTCDecoder) detokenize(runs []tokenRun, msPerFrame float64) *DecodeResult {
	res := &DecodeResult{}
	var raw strings.Builder

	var cur *wordBuilder
	flush := func() {
		if cur != nil {
			res.Words = append(res.Words, cur.finish())
			cur = nil
		}
	}

	for _, r := range runs {
		piece := d.vocab.Piece(r.id)
		if piece == "" {
			continue
		}

		startMS := float64(r.startFrame) * msPerFrame
		endMS := float64(r.endFrame) * msPerFrame

		if body, ok := parseTag(piece); ok {
			// Known tags populate metadata; unknown ones survive only in
			// the raw text.
			res.Meta.observe(body)
			raw.WriteString(piece)
			continue
		}

		boundary := strings.HasPrefix(piece, WordBoundaryMarker)
		text := strings.TrimPrefix(piece, WordBoundaryMarker)
		if boundary {
			raw.WriteString(" ")
		}
		raw.WriteString(text)
		if text == "" {
			continue
		}

		if !hasAlnum(text) && cur != nil {
			// Punctuation rides along with the preceding word.
			cur.append(text, endMS, nil)
			continue
		}

		if boundary || cur == nil {
			flush()
			cur = newWordBuilder(text, startMS, endMS, r.confidence)
			continue
		}
		cur.append(text, endMS, &r.confidence)
	}
	flush()

	res.RawText = strings.TrimSpace(raw.String())

	texts := make([]string, len(res.Words))
	var confSum float64
	for i := range res.Words {
		texts[i] = res.Words[i].Text
		confSum += res.Words[i].Confidence
	}
	res.Text = strings.Join(texts, " ")
	if len(res.Words) > 0 {
		res.AvgConfidence = confSum / float64(len(res.Words))
	}

	return res
}

// wordBuilder accumulates subword pieces into one word.
type wordBuilder struct {
	text    string
	startMS float64
	endMS   float64
	confs   []float64
}

func newWordBuilder(text string, startMS, endMS, conf float64) *wordBuilder {
	return &wordBuilder{text: text, startMS: startMS, endMS: endMS, confs: []float64{conf}}
}

// append extends the word; a nil conf marks punctuation, which carries no
// confidence of its own.
func (w *wordBuilder) append(text string, endMS float64, conf *float64) {
	w.text += text
	if endMS > w.endMS {
		w.endMS = endMS
	}
	if conf != nil {
		w.confs = append(w.confs, *conf)
	}
}

func (w *wordBuilder) finish() WordTiming {
	var sum float64
	for _, c := range w.confs {
		sum += c
	}
	conf := 0.0
	if len(w.confs) > 0 {
		conf = sum / float64(len(w.confs))
	}
	return WordTiming{
		Text:       w.text,
		StartMS:    w.startMS,
		EndMS:      w.endMS,
		Confidence: conf,
	}
}

func hasAlnum(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

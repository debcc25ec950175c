package sensevoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVocab() *Vocabulary {
	return NewVocabulary([]string{
		"<blank>",     // 0
		"▁hel",        // 1
		"lo",          // 2
		"▁world",      // 3
		"<|en|>",      // 4
		"<|zh|>",      // 5
		"<|HAPPY|>",   // 6
		"<|BGM|>",     // 7
		"<|withitn|>", // 8
		"<|woitn|>",   // 9
		",",           // 10
		"▁good",       // 11
		"<|UNKTAG|>",  // 12
		"<|Speech|>",  // 13
	})
}

// scripted builds logits whose per-frame argmax follows ids, with the
// given number of task-prefix frames prepended (argmax blank there).
func scripted(ids []int, vocabSize, taskRows int) *Logits {
	frames := taskRows + len(ids)
	data := make([]float32, vocabSize*frames)
	for t, id := range ids {
		data[id*frames+taskRows+t] = 10.0
	}
	return &Logits{Data: data, Vocab: vocabSize, Frames: frames}
}

func TestDecodeCollapsesRunsAndRemovesBlanks(t *testing.T) {
	t.Parallel()

	vocab := testVocab()
	d := NewCTCDecoder(vocab)

	// hel hel blank lo blank world world world
	ids := []int{1, 1, 0, 2, 0, 3, 3, 3}
	res := d.Decode(scripted(ids, vocab.Size(), 0), 0, 800)

	require.Len(t, res.Words, 2)
	assert.Equal(t, "hello", res.Words[0].Text)
	assert.Equal(t, "world", res.Words[1].Text)
	assert.Equal(t, "hello world", res.Text)
}

func TestDecodeWordTimings(t *testing.T) {
	t.Parallel()

	vocab := testVocab()
	d := NewCTCDecoder(vocab)

	// 8 acoustic frames over 800 ms: 100 ms per frame
	ids := []int{1, 1, 0, 2, 0, 3, 3, 3}
	res := d.Decode(scripted(ids, vocab.Size(), 0), 0, 800)

	require.Len(t, res.Words, 2)
	// "hello": first piece run frames 0-1, second piece frame 3
	assert.InDelta(t, 0, res.Words[0].StartMS, 1e-9)
	assert.InDelta(t, 300, res.Words[0].EndMS, 1e-9)
	// "world": frames 5-7
	assert.InDelta(t, 500, res.Words[1].StartMS, 1e-9)
	assert.InDelta(t, 700, res.Words[1].EndMS, 1e-9)
	assert.LessOrEqual(t, res.Words[0].StartMS, res.Words[0].EndMS)
}

func TestDecodeDiscardsTaskPrefix(t *testing.T) {
	t.Parallel()

	vocab := testVocab()
	d := NewCTCDecoder(vocab)

	ids := []int{1, 2}
	taskRows := 3
	res := d.Decode(scripted(ids, vocab.Size(), taskRows), taskRows, 200)

	require.Len(t, res.Words, 1)
	assert.Equal(t, "hello", res.Words[0].Text)
	// timing is measured over acoustic frames only, 100 ms each
	assert.InDelta(t, 0, res.Words[0].StartMS, 1e-9)
}

func TestDecodeParsesMetadataTags(t *testing.T) {
	t.Parallel()

	vocab := testVocab()
	d := NewCTCDecoder(vocab)

	// <|en|> <|HAPPY|> <|BGM|> <|withitn|> hello
	ids := []int{4, 6, 7, 8, 1, 2}
	res := d.Decode(scripted(ids, vocab.Size(), 0), 0, 600)

	assert.Equal(t, "English", res.Meta.Language)
	assert.Equal(t, "en", res.Meta.LanguageCode)
	assert.Equal(t, "HAPPY", res.Meta.Emotion)
	assert.Equal(t, []string{"BGM"}, res.Meta.AudioEvents)
	assert.True(t, res.Meta.HasITN)
	assert.True(t, res.Meta.HasEvent("BGM"))
	assert.False(t, res.Meta.HasEvent("Applause"))

	// tags are stripped from words but kept in the raw text
	assert.Equal(t, "hello", res.Text)
	assert.Contains(t, res.RawText, "<|en|>")
	assert.Contains(t, res.RawText, "hello")
}

func TestDecodeLastLanguageWins(t *testing.T) {
	t.Parallel()

	vocab := testVocab()
	d := NewCTCDecoder(vocab)

	ids := []int{4, 1, 2, 5, 3}
	res := d.Decode(scripted(ids, vocab.Size(), 0), 0, 500)

	assert.Equal(t, "Chinese", res.Meta.Language)
}

func TestDecodeUnknownTagIgnoredButPreserved(t *testing.T) {
	t.Parallel()

	vocab := testVocab()
	d := NewCTCDecoder(vocab)

	ids := []int{12, 1, 2}
	res := d.Decode(scripted(ids, vocab.Size(), 0), 0, 300)

	assert.Empty(t, res.Meta.Language)
	assert.Equal(t, "hello", res.Text)
	assert.Contains(t, res.RawText, "<|UNKTAG|>")
}

func TestDecodePunctuationAttachesToPrecedingWord(t *testing.T) {
	t.Parallel()

	vocab := testVocab()
	d := NewCTCDecoder(vocab)

	// hello , world
	ids := []int{1, 2, 10, 3}
	res := d.Decode(scripted(ids, vocab.Size(), 0), 0, 400)

	require.Len(t, res.Words, 2)
	assert.Equal(t, "hello,", res.Words[0].Text)
	assert.Equal(t, "world", res.Words[1].Text)
}

func TestDecodeEmptyResult(t *testing.T) {
	t.Parallel()

	vocab := testVocab()
	d := NewCTCDecoder(vocab)

	// all blanks
	ids := []int{0, 0, 0, 0}
	res := d.Decode(scripted(ids, vocab.Size(), 0), 0, 400)

	assert.Empty(t, res.Words)
	assert.Equal(t, 0.0, res.AvgConfidence)
	assert.Empty(t, res.Text)
}

func TestDecodeConfidenceIsMaxPosteriorPerRun(t *testing.T) {
	t.Parallel()

	vocab := testVocab()
	v := vocab.Size()
	frames := 2
	data := make([]float32, v*frames)
	// frame 0: token 1 wins narrowly; frame 1: token 1 wins decisively
	data[1*frames+0] = 1.0
	data[2*frames+0] = 0.8
	data[1*frames+1] = 9.0

	d := NewCTCDecoder(vocab)
	res := d.Decode(&Logits{Data: data, Vocab: v, Frames: frames}, 0, 200)

	require.Len(t, res.Words, 1)
	// run confidence is the max across the two frames, close to 1
	assert.Greater(t, res.Words[0].Confidence, 0.9)
}

func TestDecodeRoundTripAgainstDetokenizer(t *testing.T) {
	t.Parallel()

	vocab := testVocab()
	d := NewCTCDecoder(vocab)

	ids := []int{11, 1, 2, 3}
	res := d.Decode(scripted(ids, vocab.Size(), 0), 0, 400)

	// reference detokenization of the same id sequence
	expected := "good hello world"
	assert.Equal(t, expected, res.Text)
	assert.Equal(t, expected, res.RawText)
}

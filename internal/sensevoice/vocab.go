// Package sensevoice implements the encoder-facing half of the pipeline:
// feature preparation, the accelerator client, CTC decoding with per-token
// confidence and timestamps, and inline metadata tag parsing.
package sensevoice

import (
	"bufio"
	"os"
	"strings"

	"github.com/zinkosoft/sensestream/internal/errors"
)

// WordBoundaryMarker prefixes subword pieces that open a new word.
const WordBoundaryMarker = "▁"

// BlankPiece is the CTC blank label in the vocabulary file.
const BlankPiece = "<blank>"

// Vocabulary maps CTC token ids to subword pieces.
type Vocabulary struct {
	pieces  []string
	blankID int
}

// NewVocabulary builds a vocabulary from an in-memory piece list, used by
// tests and the selftest harness. The blank id defaults to 0 unless a
// "<blank>" piece is present.
func NewVocabulary(pieces []string) *Vocabulary {
	v := &Vocabulary{pieces: pieces, blankID: 0}
	for i, p := range pieces {
		if p == BlankPiece {
			v.blankID = i
			break
		}
	}
	return v
}

// LoadVocabulary reads a vocabulary file with one piece per line.
func LoadVocabulary(path string) (*Vocabulary, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("sensevoice").
			Category(errors.CategoryModelLoad).
			Context("path_kind", "vocabulary").
			Build()
	}
	defer file.Close()

	var pieces []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		pieces = append(pieces, strings.TrimRight(scanner.Text(), "\r\n"))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.New(err).
			Component("sensevoice").
			Category(errors.CategoryModelLoad).
			Context("path_kind", "vocabulary").
			Build()
	}
	if len(pieces) == 0 {
		return nil, errors.Newf("vocabulary file is empty").
			Component("sensevoice").
			Category(errors.CategoryModelLoad).
			Build()
	}

	return NewVocabulary(pieces), nil
}

// Size returns the vocabulary size.
func (v *Vocabulary) Size() int {
	return len(v.pieces)
}

// BlankID returns the CTC blank token id.
func (v *Vocabulary) BlankID() int {
	return v.blankID
}

// Piece returns the subword piece for id, or the empty string when the id
// is out of range.
func (v *Vocabulary) Piece(id int) string {
	if id < 0 || id >= len(v.pieces) {
		return ""
	}
	return v.pieces[id]
}

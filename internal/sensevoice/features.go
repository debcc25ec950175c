package sensevoice

import (
	"encoding/binary"
	"math"
	"os"

	"github.com/zinkosoft/sensestream/internal/dsp"
	"github.com/zinkosoft/sensestream/internal/errors"
)

// Acoustic feature layout. The encoder consumes low-frame-rate stacked
// log-mel features: lfrStack consecutive 80-bin frames concatenated per
// output row, subsampled every lfrStride input frames.
const (
	NumMelBins = 80
	lfrStack   = 7
	lfrStride  = 6

	// speechScale damps the acoustic block to avoid overflow in
	// reduced-precision accelerators.
	speechScale = 0.25
)

// FeatureDim is the encoder input row width.
const FeatureDim = NumMelBins * lfrStack

// Features is the assembled encoder input matrix [1, TaskRows+AudioRows, Dim].
type Features struct {
	Data      []float32 // row-major
	TaskRows  int
	AudioRows int
	Dim       int
}

// Rows returns the total row count T_total.
func (f *Features) Rows() int {
	return f.TaskRows + f.AudioRows
}

// QueryTable holds the fixed task-query embedding vectors, indexed by the
// model's query ids.
type QueryTable struct {
	rows [][]float32
	dim  int
}

// NewQueryTable wraps an in-memory embedding matrix.
func NewQueryTable(rows [][]float32) *QueryTable {
	dim := 0
	if len(rows) > 0 {
		dim = len(rows[0])
	}
	return &QueryTable{rows: rows, dim: dim}
}

// LoadQueryTable reads the raw little-endian float32 embedding matrix
// shipped alongside the model. The row count is derived from the file
// size and must cover every query id the builder uses.
func LoadQueryTable(path string) (*QueryTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("sensevoice").
			Category(errors.CategoryModelLoad).
			Context("path_kind", "query-embeddings").
			Build()
	}
	if len(data)%(4*FeatureDim) != 0 {
		return nil, errors.Newf("embedding table size %d is not a multiple of row width %d", len(data), 4*FeatureDim).
			Component("sensevoice").
			Category(errors.CategoryModelLoad).
			Build()
	}

	numRows := len(data) / (4 * FeatureDim)
	if numRows <= textNormWithoutID {
		return nil, errors.Newf("embedding table has %d rows, need at least %d", numRows, textNormWithoutID+1).
			Component("sensevoice").
			Category(errors.CategoryModelLoad).
			Build()
	}

	rows := make([][]float32, numRows)
	for r := 0; r < numRows; r++ {
		row := make([]float32, FeatureDim)
		base := r * 4 * FeatureDim
		for i := range row {
			row[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[base+4*i:]))
		}
		rows[r] = row
	}

	return &QueryTable{rows: rows, dim: FeatureDim}, nil
}

// Row returns the embedding vector for a query id.
func (q *QueryTable) Row(id int) []float32 {
	if id < 0 || id >= len(q.rows) {
		return make([]float32, q.dim)
	}
	return q.rows[id]
}

// FeatureBuilder assembles the encoder input from audio samples and
// task-query embeddings.
type FeatureBuilder struct {
	mel     *dsp.MelBank
	queries *QueryTable
}

// NewFeatureBuilder creates a builder for 16 kHz input.
func NewFeatureBuilder(sampleRate int, queries *QueryTable) *FeatureBuilder {
	return &FeatureBuilder{
		mel:     dsp.NewMelBank(sampleRate, NumMelBins),
		queries: queries,
	}
}

// Build produces the encoder input for one chunk. The language embedding
// row is selected from the active language (the lock's choice, or the
// user's fixed language); useITN appends the text-normalization query.
func (b *FeatureBuilder) Build(samples []float32, langCode string, useITN bool) *Features {
	melFrames := b.mel.Compute(samples)
	stacked := stackLFR(melFrames)

	queryIDs := []int{LanguageID(langCode), eventEmotionQueryID}
	if useITN {
		queryIDs = append(queryIDs, textNormWithITNID)
	} else {
		queryIDs = append(queryIDs, textNormWithoutID)
	}

	taskRows := len(queryIDs)
	audioRows := len(stacked)
	data := make([]float32, (taskRows+audioRows)*FeatureDim)

	for i, id := range queryIDs {
		copy(data[i*FeatureDim:], b.queries.Row(id))
	}
	for t, row := range stacked {
		base := (taskRows + t) * FeatureDim
		for i, v := range row {
			data[base+i] = v * speechScale
		}
	}

	return &Features{
		Data:      data,
		TaskRows:  taskRows,
		AudioRows: audioRows,
		Dim:       FeatureDim,
	}
}

// stackLFR applies low-frame-rate stacking: each output row concatenates
// lfrStack consecutive frames, advancing lfrStride frames per row. The
// start is padded by repeating the first frame, the tail by the last.
func stackLFR(frames [][]float32) [][]float32 {
	if len(frames) == 0 {
		return nil
	}

	leftPad := (lfrStack - 1) / 2
	padded := make([][]float32, 0, leftPad+len(frames))
	for i := 0; i < leftPad; i++ {
		padded = append(padded, frames[0])
	}
	padded = append(padded, frames...)

	numOut := (len(padded) + lfrStride - 1) / lfrStride
	out := make([][]float32, 0, numOut)
	for t := 0; t < numOut; t++ {
		row := make([]float32, 0, FeatureDim)
		for k := 0; k < lfrStack; k++ {
			idx := t*lfrStride + k
			if idx >= len(padded) {
				idx = len(padded) - 1
			}
			row = append(row, padded[idx]...)
		}
		out = append(out, row)
	}
	return out
}

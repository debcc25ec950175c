package sensevoice

import (
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/tphakala/go-tflite"
	"github.com/tphakala/go-tflite/delegates/xnnpack"

	"github.com/zinkosoft/sensestream/internal/errors"
)

// Logits is the raw encoder output, vocabulary-major: Data[v*Frames+t]
// holds the logit of vocabulary entry v at frame t. Frames covers the
// task-query prefix and the acoustic frames; the decoder slices the
// prefix off.
type Logits struct {
	Data   []float32
	Vocab  int
	Frames int
}

// At returns the logit for vocabulary entry v at frame t.
func (l *Logits) At(v, t int) float32 {
	return l.Data[v*l.Frames+t]
}

// Encoder is the opaque accelerator contract. Callers ensure
// single-threaded invocation per instance.
type Encoder interface {
	Infer(feat *Features) (*Logits, error)
	Close()
}

// EncoderConfig carries the runtime knobs for the TFLite client.
type EncoderConfig struct {
	ModelPath  string
	Threads    int
	UseXNNPACK bool
}

// TFLiteEncoder runs the multi-task speech model through the TensorFlow
// Lite runtime.
type TFLiteEncoder struct {
	interpreter *tflite.Interpreter
	model       *tflite.Model
	log         *slog.Logger
	mu          sync.Mutex
}

// NewTFLiteEncoder loads the model and allocates tensors. Failures carry
// the model-load category (exit 4).
func NewTFLiteEncoder(cfg EncoderConfig, log *slog.Logger) (*TFLiteEncoder, error) {
	model := tflite.NewModelFromFile(cfg.ModelPath)
	if model == nil {
		return nil, errors.Newf("cannot load model").
			Component("sensevoice").
			Category(errors.CategoryModelLoad).
			Context("path_kind", "encoder-model").
			Build()
	}

	threads := cfg.Threads
	if threads <= 0 || threads > runtime.NumCPU() {
		threads = runtime.NumCPU()
	}

	options := tflite.NewInterpreterOptions()
	if cfg.UseXNNPACK {
		delegate := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(max(1, threads-1))})
		if delegate == nil {
			log.Warn("failed to create XNNPACK delegate, falling back to CPU execution")
			options.SetNumThread(threads)
		} else {
			options.AddDelegate(delegate)
			options.SetNumThread(1)
		}
	} else {
		options.SetNumThread(threads)
	}
	options.SetErrorReporter(func(msg string, userData interface{}) {
		log.Error("tflite runtime error", "message", msg)
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		model.Delete()
		return nil, errors.Newf("cannot create interpreter").
			Component("sensevoice").
			Category(errors.CategoryModelLoad).
			Build()
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		model.Delete()
		return nil, errors.Newf("tensor allocation failed").
			Component("sensevoice").
			Category(errors.CategoryModelLoad).
			Build()
	}

	log.Info("encoder model initialized",
		"threads", threads,
		"xnnpack", cfg.UseXNNPACK,
		"cpus", runtime.NumCPU())

	return &TFLiteEncoder{
		interpreter: interpreter,
		model:       model,
		log:         log,
	}, nil
}

// Infer runs the encoder over one feature matrix and returns the logits.
// Inference errors are transient (the orchestrator counts and drops); a
// feature/tensor size mismatch is a validation error.
func (e *TFLiteEncoder) Infer(feat *Features) (*Logits, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()

	inputTensor := e.interpreter.GetInputTensor(0)
	if inputTensor == nil {
		return nil, errors.Newf("cannot get input tensor").
			Component("sensevoice").
			Category(errors.CategoryInference).
			Build()
	}

	input := inputTensor.Float32s()
	if len(input) != len(feat.Data) {
		return nil, errors.Newf("feature length %d does not match input tensor %d", len(feat.Data), len(input)).
			Component("sensevoice").
			Category(errors.CategoryValidation).
			Context("feature_rows", feat.Rows()).
			Context("feature_dim", feat.Dim).
			Build()
	}
	copy(input, feat.Data)

	if status := e.interpreter.Invoke(); status != tflite.OK {
		return nil, errors.Newf("tensor invoke failed: %v", status).
			Component("sensevoice").
			Category(errors.CategoryInference).
			Timing("encoder-invoke", time.Since(start)).
			Build()
	}

	outputTensor := e.interpreter.GetOutputTensor(0)
	if outputTensor == nil {
		return nil, errors.Newf("cannot get output tensor").
			Component("sensevoice").
			Category(errors.CategoryInference).
			Build()
	}

	// Output shape is [1, V, T_total]; read the axes from the tensor
	// rather than trusting a hard-coded layout.
	dims := outputTensor.NumDims()
	vocab := outputTensor.Dim(dims - 2)
	frames := outputTensor.Dim(dims - 1)

	data := make([]float32, vocab*frames)
	copy(data, outputTensor.Float32s())

	return &Logits{Data: data, Vocab: vocab, Frames: frames}, nil
}

// Close releases the interpreter and model.
func (e *TFLiteEncoder) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.interpreter != nil {
		e.interpreter.Delete()
		e.interpreter = nil
	}
	if e.model != nil {
		e.model.Delete()
		e.model = nil
	}
}

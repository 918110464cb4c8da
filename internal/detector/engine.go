package detector

import (
	"fmt"
	"runtime"
	"slices"

	tflite "github.com/tphakala/go-tflite"
	"github.com/tphakala/go-tflite/delegates/xnnpack"

	"github.com/tphakala/ppe-go/internal/errors"
	"github.com/tphakala/ppe-go/internal/logger"
)

// engine runs one forward pass. It is not safe for concurrent use; the
// Detector serializes calls.
type engine interface {
	// InputShape returns the model input width and height.
	InputShape() (width, height int)
	// Infer copies input into the model, runs it and returns a copy of the
	// first output tensor with its shape.
	Infer(input []float32) (output []float32, shape []int, err error)
	Close()
}

type engineConfig struct {
	threads    int
	useXNNPACK bool
}

// tfliteEngine wraps a TensorFlow Lite interpreter.
type tfliteEngine struct {
	interpreter *tflite.Interpreter
	width       int
	height      int
}

func newTFLiteEngine(modelData []byte, cfg engineConfig, log logger.Logger) (*tfliteEngine, error) {
	model := tflite.NewModel(modelData)
	if model == nil {
		return nil, errors.Newf("cannot load TensorFlow Lite model").
			Component("detector").
			Category(errors.CategoryModelInit).
			Context("model_size_mb", len(modelData)/1024/1024).
			Context("use_xnnpack", cfg.useXNNPACK).
			Build()
	}

	options := tflite.NewInterpreterOptions()
	if cfg.useXNNPACK {
		delegate := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(max(1, cfg.threads-1))}) //nolint:gosec // G115: thread count bounded by CPU count
		if delegate == nil {
			log.Warn("failed to create XNNPACK delegate, falling back to default CPU")
			options.SetNumThread(cfg.threads)
		} else {
			options.AddDelegate(delegate)
			options.SetNumThread(1)
		}
	} else {
		options.SetNumThread(cfg.threads)
	}

	options.SetErrorReporter(func(msg string, _ any) {
		log.Error("TFLite error", logger.String("message", msg))
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		return nil, errors.Newf("cannot create interpreter").
			Component("detector").
			Category(errors.CategoryModelInit).
			Build()
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		return nil, errors.Newf("tensor allocation failed: %v", status).
			Component("detector").
			Category(errors.CategoryModelInit).
			Build()
	}

	input := interpreter.GetInputTensor(0)
	if input == nil || input.NumDims() != 4 || input.Dim(3) != 3 || len(input.Float32s()) == 0 {
		interpreter.Delete()
		return nil, errors.Newf("model input must be a float32 [1,H,W,3] tensor").
			Component("detector").
			Category(errors.CategoryModelInit).
			Build()
	}

	// model data is copied by TFLite
	runtime.GC()

	return &tfliteEngine{
		interpreter: interpreter,
		width:       input.Dim(2),
		height:      input.Dim(1),
	}, nil
}

func (e *tfliteEngine) InputShape() (width, height int) {
	return e.width, e.height
}

func (e *tfliteEngine) Infer(input []float32) ([]float32, []int, error) {
	in := e.interpreter.GetInputTensor(0)
	dst := in.Float32s()
	if len(dst) != len(input) {
		return nil, nil, fmt.Errorf("input size mismatch: model wants %d values, got %d", len(dst), len(input))
	}
	copy(dst, input)

	if status := e.interpreter.Invoke(); status != tflite.OK {
		return nil, nil, fmt.Errorf("tensor invoke failed: %v", status)
	}

	out := e.interpreter.GetOutputTensor(0)
	if out == nil {
		return nil, nil, nil
	}
	shape := make([]int, out.NumDims())
	for i := range shape {
		shape[i] = out.Dim(i)
	}
	return slices.Clone(out.Float32s()), shape, nil
}

func (e *tfliteEngine) Close() {
	if e.interpreter != nil {
		e.interpreter.Delete()
		e.interpreter = nil
	}
}

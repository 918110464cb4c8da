// Package detector adapts a YOLO-style TensorFlow Lite model to the
// detection.Detector contract.
package detector

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tphakala/ppe-go/internal/conf"
	"github.com/tphakala/ppe-go/internal/cpuspec"
	"github.com/tphakala/ppe-go/internal/detection"
	"github.com/tphakala/ppe-go/internal/errors"
	"github.com/tphakala/ppe-go/internal/logger"
	"github.com/tphakala/ppe-go/internal/observability/metrics"
)

// Inference defaults of the PPE model.
const (
	DefaultConfidence    = 0.40
	DefaultMaxDetections = 40
	DefaultImageSize     = 640
	DefaultIoUThreshold  = 0.7
)

// Detector runs the PPE model. Detect may be called concurrently; calls into
// the interpreter are serialized.
type Detector struct {
	settings    conf.DetectorSettings
	modelName   string
	vocab       detection.Vocabulary
	vocabSource string

	mu     sync.Mutex
	engine engine
	input  []float32

	metrics *metrics.DetectorMetrics
	log     logger.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithMetrics records inference metrics.
func WithMetrics(m *metrics.DetectorMetrics) Option {
	return func(d *Detector) { d.metrics = m }
}

// WithLogger overrides the package logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Detector) { d.log = l }
}

// withEngine replaces the TFLite engine, used by tests.
func withEngine(e engine, vocab detection.Vocabulary) Option {
	return func(d *Detector) {
		d.engine = e
		d.vocab = vocab
		d.vocabSource = VocabularySourceDefault
	}
}

// Compile-time check.
var _ detection.Detector = (*Detector)(nil)

// New loads the model and its vocabulary. A missing model file is an error
// the caller should treat as fatal.
func New(settings *conf.Settings, opts ...Option) (*Detector, error) {
	d := &Detector{
		settings:  normalizeSettings(settings.Detector),
		modelName: modelName(settings.Detector.ModelPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = GetLogger()
	}

	if d.engine == nil {
		if err := d.initializeModel(); err != nil {
			return nil, err
		}
	}
	if d.vocab == nil {
		d.vocab = detection.DefaultVocabulary()
		d.vocabSource = VocabularySourceDefault
	}

	w, h := d.engine.InputShape()
	d.input = make([]float32, w*h*3)
	if w != d.settings.ImageSize || h != d.settings.ImageSize {
		d.log.Warn("model input size differs from configured image size, using model size",
			logger.Int("configured", d.settings.ImageSize),
			logger.Int("model_width", w),
			logger.Int("model_height", h))
	}
	return d, nil
}

func (d *Detector) initializeModel() error {
	start := time.Now()
	path := d.settings.ModelPath

	modelData, err := readModel(path)
	if err != nil {
		d.recordModelLoad(start, err)
		return err
	}

	vocab, source, err := LoadVocabulary(path, d.settings.LabelPath, modelData)
	if err != nil {
		d.recordModelLoad(start, err)
		return err
	}

	threads := cpuspec.ResolveThreads(d.settings.Threads)
	eng, err := newTFLiteEngine(modelData, engineConfig{
		threads:    threads,
		useXNNPACK: d.settings.UseXNNPACK,
	}, d.log)
	if err != nil {
		err = errors.New(err).
			Component("detector").
			Category(errors.CategoryModelInit).
			ModelContext(path, d.modelName).
			Timing("model-init", time.Since(start)).
			Build()
		d.recordModelLoad(start, err)
		return err
	}

	d.engine = eng
	d.vocab = vocab
	d.vocabSource = source
	d.recordModelLoad(start, nil)

	d.log.Info("PPE model initialized",
		logger.String("model", d.modelName),
		logger.Int("threads", threads),
		logger.Bool("xnnpack", d.settings.UseXNNPACK),
		logger.Int("classes", len(vocab)),
		logger.String("vocabulary_source", source),
		logger.Duration("load_time", time.Since(start)))
	return nil
}

func readModel(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.Newf("model path is not configured: set detector.modelpath").
			Component("detector").
			Category(errors.CategoryModelLoad).
			Build()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf("model file not found at %s: place the PPE detection model there or set detector.modelpath", path).
				Component("detector").
				Category(errors.CategoryModelLoad).
				ModelContext(path, modelName(path)).
				Build()
		}
		return nil, errors.New(err).
			Component("detector").
			Category(errors.CategoryModelLoad).
			ModelContext(path, modelName(path)).
			Build()
	}
	return data, nil
}

func (d *Detector) recordModelLoad(start time.Time, err error) {
	if d.metrics != nil {
		d.metrics.RecordModelLoad(time.Since(start).Seconds(), err)
	}
}

// Detect runs one inference pass. img is not modified.
func (d *Detector) Detect(ctx context.Context, img image.Image) (*detection.Result, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errors.ValidationError("image is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dets, elapsed, err := d.infer(img)
	if d.metrics != nil {
		d.metrics.RecordInference(d.modelName, elapsed.Seconds(), err)
	}
	if err != nil {
		return nil, err
	}

	if d.metrics != nil {
		for _, det := range dets {
			d.metrics.RecordDetection(det.ClassName)
		}
	}

	d.log.Debug("frame inspected",
		logger.Int("detections", len(dets)),
		logger.Duration("inference_time", elapsed))

	return &detection.Result{
		Detections:    dets,
		Vocabulary:    d.vocab.Clone(),
		Annotated:     annotate(img, dets),
		InferenceTime: elapsed,
	}, nil
}

// infer covers preprocessing, the forward pass and postprocessing.
func (d *Detector) infer(img image.Image) ([]detection.Detection, time.Duration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.engine == nil {
		return nil, 0, errors.Newf("detector is closed").
			Component("detector").
			Category(errors.CategoryInference).
			Build()
	}

	start := time.Now()
	w, h := d.engine.InputShape()
	canvas, lb := prepareInput(img, w, h)
	fillTensor(d.input, canvas)

	out, shape, err := d.engine.Infer(d.input)
	if err != nil {
		return nil, time.Since(start), errors.New(err).
			Component("detector").
			Category(errors.CategoryInference).
			Context("model", d.modelName).
			Timing("inference", time.Since(start)).
			Build()
	}

	cands, err := decodeOutput(out, shape, w, h, len(d.vocab), d.settings.Confidence)
	if err != nil {
		d.log.Warn("treating unparseable model output as empty frame",
			logger.String("model", d.modelName),
			logger.Any("shape", shape),
			logger.Error(err))
		if d.metrics != nil {
			d.metrics.RecordMalformedOutput(d.modelName)
		}
		return []detection.Detection{}, time.Since(start), nil
	}

	kept := nonMaxSuppression(cands, d.settings.IoUThreshold, d.settings.MaxDetections)
	return toDetections(kept, lb, d.vocab), time.Since(start), nil
}

// Vocabulary returns a copy of the active class vocabulary.
func (d *Detector) Vocabulary() detection.Vocabulary {
	return d.vocab.Clone()
}

// VocabularySource reports where the vocabulary was loaded from.
func (d *Detector) VocabularySource() string {
	return d.vocabSource
}

// ModelName returns the model file's base name without extension.
func (d *Detector) ModelName() string {
	return d.modelName
}

// Settings returns the effective inference parameters.
func (d *Detector) Settings() conf.DetectorSettings {
	return d.settings
}

// Close releases the interpreter.
func (d *Detector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.engine != nil {
		d.engine.Close()
		d.engine = nil
	}
}

func normalizeSettings(s conf.DetectorSettings) conf.DetectorSettings {
	if s.Confidence <= 0 || s.Confidence > 1 {
		s.Confidence = DefaultConfidence
	}
	if s.MaxDetections <= 0 {
		s.MaxDetections = DefaultMaxDetections
	}
	if s.ImageSize <= 0 {
		s.ImageSize = DefaultImageSize
	}
	if s.IoUThreshold <= 0 || s.IoUThreshold > 1 {
		s.IoUThreshold = DefaultIoUThreshold
	}
	return s
}

func modelName(path string) string {
	if path == "" {
		return "custom"
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

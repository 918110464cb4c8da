// Package inspection runs one frame through detection and compliance
// aggregation and fans the result out to storage, MQTT and alerts. Upload
// and webcam frames both go through Service.Inspect.
package inspection

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/ppe-go/internal/compliance"
	"github.com/tphakala/ppe-go/internal/datastore"
	"github.com/tphakala/ppe-go/internal/detection"
	"github.com/tphakala/ppe-go/internal/errors"
	"github.com/tphakala/ppe-go/internal/logger"
	"github.com/tphakala/ppe-go/internal/mqtt"
	"github.com/tphakala/ppe-go/internal/notification"
	"github.com/tphakala/ppe-go/internal/observability/metrics"
)

// Sink names used in metrics and logs.
const (
	sinkDatastore    = "datastore"
	sinkMQTT         = "mqtt"
	sinkNotification = "notification"
)

// Report is the complete result of inspecting one frame.
type Report struct {
	ID            string
	Node          string
	Source        compliance.Source
	Timestamp     time.Time
	Detections    []detection.Detection
	Vocabulary    detection.Vocabulary
	Snapshot      compliance.Snapshot
	Annotated     image.Image // nil for reports loaded from the datastore
	InferenceTime time.Duration
	ImageWidth    int
	ImageHeight   int
}

// Service is safe for concurrent use.
type Service struct {
	detector detection.Detector

	store     datastore.Interface
	publisher mqtt.Publisher
	topic     string
	notifier  notification.Notifier
	minFlags  int

	node    string
	metrics *metrics.InspectionMetrics
	log     logger.Logger

	now   func() time.Time
	newID func() string

	alerts sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithStore persists every report.
func WithStore(store datastore.Interface) Option {
	return func(s *Service) { s.store = store }
}

// WithPublisher publishes every report to <baseTopic>/inspections.
func WithPublisher(p mqtt.Publisher, baseTopic string) Option {
	return func(s *Service) {
		s.publisher = p
		s.topic = mqtt.InspectionTopic(baseTopic)
	}
}

// WithNotifier alerts on risky frames with at least minFlags issues.
func WithNotifier(n notification.Notifier, minFlags int) Option {
	return func(s *Service) {
		s.notifier = n
		s.minFlags = minFlags
	}
}

func WithMetrics(m *metrics.InspectionMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithNode names this installation in reports and alerts.
func WithNode(name string) Option {
	return func(s *Service) { s.node = name }
}

func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates the inspection service around a loaded detector.
func NewService(det detection.Detector, opts ...Option) *Service {
	s := &Service{
		detector: det,
		minFlags: 1,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = GetLogger()
	}
	return s
}

// Inspect detects PPE in img and computes its compliance snapshot. Failures
// of the store, MQTT or alerts are logged and do not fail the inspection.
func (s *Service) Inspect(ctx context.Context, img image.Image, source compliance.Source) (*Report, error) {
	if img == nil {
		return nil, errors.ValidationError("image is required")
	}
	if source == "" {
		source = compliance.SourceUpload
	}

	result, err := s.detector.Detect(ctx, img)
	if err != nil {
		return nil, err
	}

	vocab := result.Vocabulary
	if vocab == nil {
		vocab = s.detector.Vocabulary()
	}
	snapshot := compliance.Aggregate(result.Detections, vocab)

	b := img.Bounds()
	report := &Report{
		ID:            s.newID(),
		Node:          s.node,
		Source:        source,
		Timestamp:     s.now(),
		Detections:    result.Detections,
		Vocabulary:    vocab,
		Snapshot:      snapshot,
		Annotated:     result.Annotated,
		InferenceTime: result.InferenceTime,
		ImageWidth:    b.Dx(),
		ImageHeight:   b.Dy(),
	}

	if s.metrics != nil {
		s.metrics.RecordInspection(string(source), string(snapshot.State), snapshot.ComplianceScore,
			snapshot.WorkerCount, snapshot.NoHardhats, snapshot.NoVests, snapshot.NoGloves)
	}

	s.log.Info("frame inspected",
		logger.String("id", report.ID),
		logger.String("source", string(source)),
		logger.String("state", string(snapshot.State)),
		logger.Int("score", snapshot.ComplianceScore),
		logger.Int("workers", snapshot.WorkerCount),
		logger.Int("flags", snapshot.NonComplianceFlags),
		logger.Int("detections", len(report.Detections)),
		logger.Duration("inference_time", report.InferenceTime))

	s.persist(ctx, report)
	s.publish(ctx, report)
	s.alert(report)

	return report, nil
}

func (s *Service) persist(ctx context.Context, r *Report) {
	if s.store == nil {
		return
	}
	err := s.store.Save(ctx, ToRecord(r))
	s.recordSink(sinkDatastore, r.ID, err)
}

func (s *Service) publish(ctx context.Context, r *Report) {
	if s.publisher == nil {
		return
	}
	payload, err := MarshalMessage(r)
	if err == nil {
		err = s.publisher.Publish(ctx, s.topic, payload)
	}
	s.recordSink(sinkMQTT, r.ID, err)
}

// alert sends in the background so a slow service does not hold the
// request; Close waits for pending alerts.
func (s *Service) alert(r *Report) {
	if s.notifier == nil || !notification.ShouldAlert(r.Snapshot, s.minFlags) {
		return
	}
	title, message := notification.FormatAlert(r.Node, r.ID, r.Source, r.Snapshot)
	s.alerts.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), notification.DefaultTimeout)
		defer cancel()
		err := s.notifier.Send(ctx, title, message)
		s.recordSink(sinkNotification, r.ID, err)
	})
}

func (s *Service) recordSink(sink, id string, err error) {
	if s.metrics != nil {
		s.metrics.RecordSink(sink, err)
	}
	if err != nil {
		s.log.Warn("inspection sink failed",
			logger.String("sink", sink),
			logger.String("id", id),
			logger.Error(err))
	}
}

// Vocabulary returns the detector's active vocabulary.
func (s *Service) Vocabulary() detection.Vocabulary {
	return s.detector.Vocabulary()
}

// HasStore reports whether inspections are persisted.
func (s *Service) HasStore() bool {
	return s.store != nil
}

func (s *Service) requireStore() error {
	if s.store == nil {
		return errors.Newf("inspection history is disabled").
			Component("inspection").
			Category(errors.CategoryNotFound).
			Build()
	}
	return nil
}

// Get loads a persisted report. The annotated image is not stored.
func (s *Service) Get(ctx context.Context, id string) (*Report, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromRecord(rec, s.detector.Vocabulary()), nil
}

// Recent returns up to limit persisted reports, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]*Report, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	recs, err := s.store.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	vocab := s.detector.Vocabulary()
	reports := make([]*Report, 0, len(recs))
	for i := range recs {
		reports = append(reports, FromRecord(&recs[i], vocab))
	}
	return reports, nil
}

// Summary aggregates the persisted history.
func (s *Service) Summary(ctx context.Context) (*datastore.Summary, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	return s.store.Summary(ctx)
}

// Close waits for pending alerts.
func (s *Service) Close() {
	s.alerts.Wait()
}

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the inspection package logger.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("inspection")
	})
	return serviceLogger
}

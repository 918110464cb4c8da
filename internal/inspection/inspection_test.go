package inspection

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/ppe-go/internal/compliance"
	"github.com/tphakala/ppe-go/internal/datastore"
	"github.com/tphakala/ppe-go/internal/detection"
	"github.com/tphakala/ppe-go/internal/errors"
	"github.com/tphakala/ppe-go/internal/logger"
	"github.com/tphakala/ppe-go/internal/observability/metrics"
)

var fixedTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func det(id int, vocab detection.Vocabulary) detection.Detection {
	return detection.Detection{
		Box:        detection.Box{X1: 1, Y1: 1, X2: 20, Y2: 30},
		Confidence: 0.8,
		ClassID:    id,
		ClassName:  vocab.Name(id),
	}
}

func riskyResult() *detection.Result {
	vocab := detection.DefaultVocabulary()
	return &detection.Result{
		Detections:    []detection.Detection{det(5, vocab), det(5, vocab), det(3, vocab)},
		Vocabulary:    vocab,
		Annotated:     image.NewNRGBA(image.Rect(0, 0, 40, 30)),
		InferenceTime: 42 * time.Millisecond,
	}
}

func newTestService(d detection.Detector, opts ...Option) *Service {
	opts = append([]Option{
		WithLogger(logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, nil)),
		WithNode("gate-1"),
	}, opts...)
	s := NewService(d, opts...)
	s.now = func() time.Time { return fixedTime }
	s.newID = func() string { return "insp-1" }
	return s
}

func TestInspectAggregatesAndFansOut(t *testing.T) {
	defer goleak.VerifyNone(t)

	img := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	d := &mockDetector{}
	d.On("Detect", mock.Anything, img).Return(riskyResult(), nil)

	store := &mockStore{}
	store.On("Save", mock.Anything, mock.MatchedBy(func(rec *datastore.Inspection) bool {
		return rec.ID == "insp-1" && rec.State == "risk" && rec.Flags == 1 && len(rec.Detections) == 3
	})).Return(nil)

	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, "ppe/inspections", mock.Anything).Return(nil)

	notifier := &mockNotifier{}
	notifier.On("Send", mock.Anything, "PPE alert on gate-1: 1 issue(s)", mock.Anything).Return(nil)

	registry := prometheus.NewRegistry()
	m, err := metrics.NewInspectionMetrics(registry)
	require.NoError(t, err)

	s := newTestService(d,
		WithStore(store),
		WithPublisher(pub, "ppe"),
		WithNotifier(notifier, 1),
		WithMetrics(m))

	report, err := s.Inspect(context.Background(), img, compliance.SourceWebcam)
	require.NoError(t, err)
	s.Close()

	assert.Equal(t, "insp-1", report.ID)
	assert.Equal(t, compliance.SourceWebcam, report.Source)
	assert.Equal(t, fixedTime, report.Timestamp)
	assert.Equal(t, 2, report.Snapshot.WorkerCount)
	assert.Equal(t, 1, report.Snapshot.NoHardhats)
	assert.Equal(t, 0, report.Snapshot.ComplianceScore)
	assert.Equal(t, compliance.StateRisk, report.Snapshot.State)
	assert.Equal(t, 40, report.ImageWidth)
	assert.NotNil(t, report.Annotated)

	d.AssertExpectations(t)
	store.AssertExpectations(t)
	pub.AssertExpectations(t)
	notifier.AssertExpectations(t)

	assert.InDelta(t, 1, testutil.ToFloat64(m.InspectionsTotal.WithLabelValues("webcam", "risk")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SinkOperations.WithLabelValues("notification", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.FlagsTotal.WithLabelValues("hardhat")), 0)
}

func TestInspectCompliantFrameSkipsAlert(t *testing.T) {
	t.Parallel()

	vocab := detection.DefaultVocabulary()
	d := &mockDetector{}
	d.On("Detect", mock.Anything, mock.Anything).Return(&detection.Result{
		Detections: []detection.Detection{det(5, vocab), det(1, vocab), det(7, vocab)},
		Vocabulary: vocab,
	}, nil)
	notifier := &mockNotifier{}

	s := newTestService(d, WithNotifier(notifier, 1))
	report, err := s.Inspect(context.Background(), image.NewNRGBA(image.Rect(0, 0, 4, 4)), "")
	require.NoError(t, err)
	s.Close()

	assert.Equal(t, compliance.SourceUpload, report.Source)
	assert.Equal(t, 100, report.Snapshot.ComplianceScore)
	assert.Equal(t, compliance.StateCompliant, report.Snapshot.State)
	notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestInspectSinkFailuresDoNotFail(t *testing.T) {
	t.Parallel()

	d := &mockDetector{}
	d.On("Detect", mock.Anything, mock.Anything).Return(riskyResult(), nil)
	store := &mockStore{}
	store.On("Save", mock.Anything, mock.Anything).Return(fmt.Errorf("disk full"))
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(fmt.Errorf("not connected"))
	notifier := &mockNotifier{}
	notifier.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(fmt.Errorf("timeout"))

	registry := prometheus.NewRegistry()
	m, err := metrics.NewInspectionMetrics(registry)
	require.NoError(t, err)

	s := newTestService(d, WithStore(store), WithPublisher(pub, "ppe"), WithNotifier(notifier, 1), WithMetrics(m))
	report, err := s.Inspect(context.Background(), image.NewNRGBA(image.Rect(0, 0, 4, 4)), compliance.SourceUpload)
	s.Close()
	require.NoError(t, err)
	require.NotNil(t, report)

	for _, sink := range []string{"datastore", "mqtt", "notification"} {
		assert.InDelta(t, 1, testutil.ToFloat64(m.SinkOperations.WithLabelValues(sink, "error")), 0, sink)
	}
}

func TestInspectHonorsMinFlags(t *testing.T) {
	t.Parallel()

	d := &mockDetector{}
	d.On("Detect", mock.Anything, mock.Anything).Return(riskyResult(), nil)
	notifier := &mockNotifier{}

	s := newTestService(d, WithNotifier(notifier, 2))
	_, err := s.Inspect(context.Background(), image.NewNRGBA(image.Rect(0, 0, 4, 4)), compliance.SourceUpload)
	require.NoError(t, err)
	s.Close()
	notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestInspectDetectorError(t *testing.T) {
	t.Parallel()

	d := &mockDetector{}
	d.On("Detect", mock.Anything, mock.Anything).Return(nil, errors.Newf("invoke failed").Category(errors.CategoryInference).Build())
	store := &mockStore{}

	s := newTestService(d, WithStore(store))
	_, err := s.Inspect(context.Background(), image.NewNRGBA(image.Rect(0, 0, 4, 4)), compliance.SourceUpload)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryInference))
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)

	_, err = s.Inspect(context.Background(), nil, compliance.SourceUpload)
	require.Error(t, err)
}

func TestHistoryRequiresStore(t *testing.T) {
	t.Parallel()

	s := newTestService(&mockDetector{})
	assert.False(t, s.HasStore())
	_, err := s.Get(context.Background(), "x")
	assert.True(t, errors.IsNotFound(err))
	_, err = s.Recent(context.Background(), 5)
	assert.True(t, errors.IsNotFound(err))
	_, err = s.Summary(context.Background())
	assert.True(t, errors.IsNotFound(err))
}

func TestGetAndRecentFromStore(t *testing.T) {
	t.Parallel()

	vocab := detection.DefaultVocabulary()
	d := &mockDetector{}
	d.On("Vocabulary").Return(vocab)

	original := &Report{
		ID:            "insp-9",
		Source:        compliance.SourceUpload,
		Timestamp:     fixedTime,
		Detections:    riskyResult().Detections,
		Snapshot:      compliance.Aggregate(riskyResult().Detections, vocab),
		InferenceTime: 1500 * time.Microsecond,
	}
	rec := ToRecord(original)

	store := &mockStore{}
	store.On("Get", mock.Anything, "insp-9").Return(rec, nil)
	store.On("Recent", mock.Anything, 10).Return([]datastore.Inspection{*rec}, nil)
	store.On("Summary", mock.Anything).Return(&datastore.Summary{Total: 1}, nil)

	s := newTestService(d, WithStore(store))

	got, err := s.Get(context.Background(), "insp-9")
	require.NoError(t, err)
	assert.Equal(t, original.Snapshot, got.Snapshot)
	assert.Equal(t, original.Detections, got.Detections)
	assert.Equal(t, original.InferenceTime, got.InferenceTime)
	assert.Nil(t, got.Annotated)

	recent, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "insp-9", recent[0].ID)

	summary, err := s.Summary(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, summary.Total)
}

func TestMarshalMessage(t *testing.T) {
	t.Parallel()

	vocab := detection.DefaultVocabulary()
	r := &Report{
		ID:            "insp-1",
		Node:          "gate-1",
		Source:        compliance.SourceWebcam,
		Timestamp:     fixedTime,
		Detections:    riskyResult().Detections,
		Snapshot:      compliance.Aggregate(riskyResult().Detections, vocab),
		InferenceTime: 42 * time.Millisecond,
	}
	data, err := MarshalMessage(r)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "webcam", raw["source"])
	assert.InDelta(t, 42, raw["inference_ms"], 1e-9)
	snapshot, ok := raw["snapshot"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "risk", snapshot["state"])
	dets, ok := raw["detections"].([]any)
	require.True(t, ok)
	assert.Len(t, dets, 3)
}

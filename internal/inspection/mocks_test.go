package inspection

import (
	"context"
	"image"

	"github.com/stretchr/testify/mock"

	"github.com/tphakala/ppe-go/internal/datastore"
	"github.com/tphakala/ppe-go/internal/detection"
)

type mockDetector struct{ mock.Mock }

func (m *mockDetector) Detect(ctx context.Context, img image.Image) (*detection.Result, error) {
	args := m.Called(ctx, img)
	res, _ := args.Get(0).(*detection.Result)
	return res, args.Error(1)
}

func (m *mockDetector) Vocabulary() detection.Vocabulary {
	return m.Called().Get(0).(detection.Vocabulary)
}

type mockStore struct{ mock.Mock }

func (m *mockStore) Open() error { return m.Called().Error(0) }

func (m *mockStore) Save(ctx context.Context, in *datastore.Inspection) error {
	return m.Called(ctx, in).Error(0)
}

func (m *mockStore) Get(ctx context.Context, id string) (*datastore.Inspection, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*datastore.Inspection)
	return rec, args.Error(1)
}

func (m *mockStore) Recent(ctx context.Context, limit int) ([]datastore.Inspection, error) {
	args := m.Called(ctx, limit)
	recs, _ := args.Get(0).([]datastore.Inspection)
	return recs, args.Error(1)
}

func (m *mockStore) Summary(ctx context.Context) (*datastore.Summary, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(*datastore.Summary)
	return s, args.Error(1)
}

func (m *mockStore) Close() error { return m.Called().Error(0) }

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Connect(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *mockPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	return m.Called(ctx, topic, payload).Error(0)
}

func (m *mockPublisher) IsConnected() bool { return m.Called().Bool(0) }

func (m *mockPublisher) Disconnect() { m.Called() }

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Send(ctx context.Context, title, message string) error {
	return m.Called(ctx, title, message).Error(0)
}

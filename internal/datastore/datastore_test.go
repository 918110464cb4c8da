package datastore

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/ppe-go/internal/conf"
	"github.com/tphakala/ppe-go/internal/errors"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "db", "ppe.db")

	store, ok := New(settings).(*SQLiteStore)
	require.True(t, ok)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleInspection(id, source, state string, score, workers int, at time.Time) *Inspection {
	return &Inspection{
		ID:          id,
		CreatedAt:   at,
		Source:      source,
		State:       state,
		Score:       score,
		WorkerCount: workers,
		NoHardhats:  1,
		Detections: []DetectionRow{
			{X1: 1, Y1: 2, X2: 30, Y2: 40, Confidence: 0.9, ClassID: 5, ClassName: "person"},
			{X1: 5, Y1: 2, X2: 15, Y2: 8, Confidence: 0.6, ClassID: 3, ClassName: "no-hardhat"},
		},
	}
}

func TestNewSelectsBackend(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	assert.Nil(t, New(settings))

	settings.Output.MySQL.Enabled = true
	assert.IsType(t, &MySQLStore{}, New(settings))

	settings.Output.SQLite.Enabled = true
	assert.IsType(t, &SQLiteStore{}, New(settings))
}

func TestSaveAndGet(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	in := sampleInspection("a1", "upload", "risk", 0, 2, time.Now().Add(-time.Minute))
	require.NoError(t, store.Save(ctx, in))

	got, err := store.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "upload", got.Source)
	assert.Equal(t, 2, got.WorkerCount)
	require.Len(t, got.Detections, 2)
	assert.Equal(t, "person", got.Detections[0].ClassName)
	assert.Equal(t, "a1", got.Detections[1].InspectionID)
}

func TestGetMissingIsNotFound(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestRecentOrderAndLimit(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := range 5 {
		require.NoError(t, store.Save(ctx, sampleInspection(fmt.Sprintf("id-%d", i), "upload", "compliant", 100, 1, base.Add(time.Duration(i)*time.Minute))))
	}

	recent, err := store.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "id-4", recent[0].ID)
	assert.Equal(t, "id-2", recent[2].ID)
	assert.Len(t, recent[0].Detections, 2)
}

func TestSummary(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	empty, err := store.Summary(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Nil(t, empty.LastInspection)

	now := time.Now()
	require.NoError(t, store.Save(ctx, sampleInspection("c1", "upload", "compliant", 100, 1, now.Add(-2*time.Minute))))
	require.NoError(t, store.Save(ctx, sampleInspection("r1", "webcam", "risk", 50, 2, now.Add(-time.Minute))))
	require.NoError(t, store.Save(ctx, sampleInspection("r2", "webcam", "risk", 0, 3, now)))

	s, err := store.Summary(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, s.Total)
	assert.EqualValues(t, 1, s.Compliant)
	assert.EqualValues(t, 2, s.Risk)
	assert.InDelta(t, 50, s.AverageScore, 1e-9)
	assert.EqualValues(t, 6, s.Workers)
	assert.EqualValues(t, 3, s.NoHardhats)
	assert.Equal(t, map[string]int64{"upload": 1, "webcam": 2}, s.BySource)
	require.NotNil(t, s.LastInspection)
	assert.WithinDuration(t, now, *s.LastInspection, time.Second)
}

func TestClosedStoreErrors(t *testing.T) {
	t.Parallel()
	store := &SQLiteStore{Settings: &conf.Settings{}}

	err := store.Save(context.Background(), &Inspection{ID: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))
	assert.NoError(t, store.Close())
}

func TestMySQLDSN(t *testing.T) {
	t.Parallel()
	dsn := mysqlDSN(conf.MySQLSettings{Username: "u", Password: "p", Host: "db", Port: "3306", Database: "ppe"})
	assert.Equal(t, "u:p@tcp(db:3306)/ppe?charset=utf8mb4&parseTime=True&loc=Local", dsn)
}

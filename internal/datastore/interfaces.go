// Package datastore persists inspection history with GORM on SQLite or MySQL.
package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/ppe-go/internal/conf"
	"github.com/tphakala/ppe-go/internal/errors"
	"github.com/tphakala/ppe-go/internal/logger"
)

// Interface is the inspection store used by the inspection service and API.
type Interface interface {
	Open() error
	Save(ctx context.Context, inspection *Inspection) error
	Get(ctx context.Context, id string) (*Inspection, error)
	Recent(ctx context.Context, limit int) ([]Inspection, error)
	Summary(ctx context.Context) (*Summary, error)
	Close() error
}

// DataStore implements the queries shared by every backend.
type DataStore struct {
	DB *gorm.DB
}

// New returns the store selected in settings, or nil when persistence is
// disabled. The store must be opened before use.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

func performAutoMigration(db *gorm.DB, dbType string) error {
	start := time.Now()
	if err := db.AutoMigrate(&Inspection{}, &DetectionRow{}); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_type", dbType).
			Context("operation", "auto-migrate").
			Build()
	}
	GetLogger().Debug("database migration completed",
		logger.String("db_type", dbType),
		logger.Duration("duration", time.Since(start)))
	return nil
}

func (ds *DataStore) ready() error {
	if ds.DB == nil {
		return errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return nil
}

func dbError(err error, operation string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}

// Save inserts an inspection together with its detections.
func (ds *DataStore) Save(ctx context.Context, inspection *Inspection) error {
	if err := ds.ready(); err != nil {
		return err
	}
	if inspection.CreatedAt.IsZero() {
		inspection.CreatedAt = time.Now()
	}
	if err := ds.DB.WithContext(ctx).Create(inspection).Error; err != nil {
		return dbError(err, "save-inspection")
	}
	return nil
}

// Get loads one inspection with its detections.
func (ds *DataStore) Get(ctx context.Context, id string) (*Inspection, error) {
	if err := ds.ready(); err != nil {
		return nil, err
	}
	var inspection Inspection
	err := ds.DB.WithContext(ctx).
		Preload("Detections", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&inspection, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("inspection", id)
		}
		return nil, dbError(err, "get-inspection")
	}
	return &inspection, nil
}

// Recent returns the newest inspections first.
func (ds *DataStore) Recent(ctx context.Context, limit int) ([]Inspection, error) {
	if err := ds.ready(); err != nil {
		return nil, err
	}
	var inspections []Inspection
	err := ds.DB.WithContext(ctx).
		Preload("Detections", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("created_at DESC").
		Limit(limit).
		Find(&inspections).Error
	if err != nil {
		return nil, dbError(err, "recent-inspections")
	}
	return inspections, nil
}

// Summary aggregates all stored inspections.
func (ds *DataStore) Summary(ctx context.Context) (*Summary, error) {
	if err := ds.ready(); err != nil {
		return nil, err
	}
	db := ds.DB.WithContext(ctx)

	var totals struct {
		Total        int64
		Compliant    int64
		AverageScore float64
		Workers      int64
		NoHardhats   int64
		NoVests      int64
		NoGloves     int64
	}
	err := db.Model(&Inspection{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN state = ? THEN 1 ELSE 0 END), 0) AS compliant,
			COALESCE(AVG(score), 0) AS average_score,
			COALESCE(SUM(worker_count), 0) AS workers,
			COALESCE(SUM(no_hardhats), 0) AS no_hardhats,
			COALESCE(SUM(no_vests), 0) AS no_vests,
			COALESCE(SUM(no_gloves), 0) AS no_gloves`, "compliant").
		Scan(&totals).Error
	if err != nil {
		return nil, dbError(err, "summary")
	}

	var bySource []struct {
		Source string
		Count  int64
	}
	if err := db.Model(&Inspection{}).
		Select("source, COUNT(*) AS count").
		Group("source").
		Scan(&bySource).Error; err != nil {
		return nil, dbError(err, "summary-by-source")
	}

	summary := &Summary{
		Total:        totals.Total,
		Compliant:    totals.Compliant,
		Risk:         totals.Total - totals.Compliant,
		AverageScore: totals.AverageScore,
		Workers:      totals.Workers,
		NoHardhats:   totals.NoHardhats,
		NoVests:      totals.NoVests,
		NoGloves:     totals.NoGloves,
		BySource:     make(map[string]int64, len(bySource)),
	}
	for _, s := range bySource {
		summary.BySource[s.Source] = s.Count
	}

	if totals.Total > 0 {
		var last Inspection
		if err := db.Select("created_at").Order("created_at DESC").First(&last).Error; err != nil {
			return nil, dbError(err, "summary-last")
		}
		summary.LastInspection = &last.CreatedAt
	}
	return summary, nil
}

// Close closes the underlying connection pool.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close")
	}
	return sqlDB.Close()
}

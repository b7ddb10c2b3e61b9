// Package store persists the emission-factor library in SQLite.
//
// The store owns factor-record lifecycle (create/update/deactivate); the
// calculation engine never touches it directly and only consumes the
// immutable snapshots produced by ListActive.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rshade/carbonledger/internal/factors"
	"github.com/rshade/carbonledger/internal/logging"
)

// FactorRecord is the gorm model for one factor library entry.
type FactorRecord struct {
	ID            uint   `gorm:"primaryKey"`
	Scope         string `gorm:"size:16"`
	ScopeCategory string `gorm:"size:64"`
	Activity      string `gorm:"size:128;index:idx_factor_key"`
	Unit          string `gorm:"size:32;index:idx_factor_key"`
	Region        string `gorm:"size:64;default:global"`
	Year          int
	Value         float64
	Source        string `gorm:"size:128"`
	Version       string `gorm:"size:32"`
	Active        bool   `gorm:"default:true"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName keeps the table name stable across gorm naming changes.
func (FactorRecord) TableName() string { return "factor_library" }

// ScopeCategory is one entry of the GHG Protocol scope-category taxonomy.
type ScopeCategory struct {
	ID          uint   `gorm:"primaryKey"`
	Scope       string `gorm:"size:16;index"`
	Key         string `gorm:"size:64;uniqueIndex"`
	Label       string `gorm:"size:128"`
	Description string `gorm:"size:256"`
}

// TableName keeps the table name stable across gorm naming changes.
func (ScopeCategory) TableName() string { return "scope_categories" }

// Store wraps the factor-library database.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the library database at path and runs
// migrations. Use ":memory:" for an ephemeral library.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening factor library %q: %w", path, err)
	}

	if err := db.AutoMigrate(&FactorRecord{}, &ScopeCategory{}); err != nil {
		return nil, fmt.Errorf("migrating factor library: %w", err)
	}

	return &Store{db: db}, nil
}

// ListActive returns an immutable snapshot of active records for the
// optional region. An empty region leaves the dimension unfiltered;
// otherwise the default region is admitted alongside so resolver
// fallbacks keep working. Year is deliberately not filtered here: the
// resolver ranks years, and its most-recent fallback must be able to see
// records newer than the query year.
func (s *Store) ListActive(ctx context.Context, region string) (*factors.Snapshot, error) {
	log := logging.FromContext(ctx)

	query := s.db.WithContext(ctx).Where("active = ?", true)
	if region != "" {
		query = query.Where("region IN ?", []string{factors.NormalizeKey(region), factors.DefaultRegion})
	}

	var rows []FactorRecord
	if err := query.Order("activity, unit, year, version").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing active factors: %w", err)
	}

	recs := make([]factors.Record, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, factors.Record{
			ID:            r.ID,
			Scope:         r.Scope,
			ScopeCategory: r.ScopeCategory,
			Activity:      r.Activity,
			Unit:          r.Unit,
			Region:        r.Region,
			Year:          r.Year,
			Value:         r.Value,
			Source:        r.Source,
			Version:       r.Version,
			Active:        r.Active,
		})
	}

	log.Debug().
		Str("component", "store").
		Str("region", region).
		Int("records", len(recs)).
		Msg("factor snapshot loaded")

	return factors.NewSnapshot(recs), nil
}

// Save inserts or updates a factor record.
func (s *Store) Save(ctx context.Context, rec *FactorRecord) error {
	rec.Activity = factors.NormalizeKey(rec.Activity)
	if rec.Region == "" {
		rec.Region = factors.DefaultRegion
	}
	if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
		return fmt.Errorf("saving factor record: %w", err)
	}
	return nil
}

// Deactivate marks a record inactive without deleting its history.
func (s *Store) Deactivate(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).
		Model(&FactorRecord{}).
		Where("id = ?", id).
		Update("active", false)
	if result.Error != nil {
		return fmt.Errorf("deactivating factor %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("deactivating factor %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// Count returns the number of records, active and inactive.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&FactorRecord{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting factor records: %w", err)
	}
	return n, nil
}

// Categories returns the scope-category taxonomy ordered by scope and key.
func (s *Store) Categories(ctx context.Context) ([]ScopeCategory, error) {
	var cats []ScopeCategory
	if err := s.db.WithContext(ctx).Order("scope, key").Find(&cats).Error; err != nil {
		return nil, fmt.Errorf("listing scope categories: %w", err)
	}
	return cats, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

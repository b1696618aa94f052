package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/linuxmatters/livetake/internal/batch"
)

// ErrBatchNotFound is returned by Get for an unknown batch ID.
var ErrBatchNotFound = errors.New("batch not found")

// BatchRow is one catalogued batch.
type BatchRow struct {
	ID           string `gorm:"primaryKey"`
	Name         string `gorm:"index"`
	SourceFolder string
	TargetFolder string
	Profile      string `gorm:"index"`
	StartTime    time.Time
	EndTime      time.Time
	TotalFiles   int
	SuccessCount int
	FailedCount  int
	SkippedCount int
	SuccessRate  float64
	RecordPath   string
	Files        []FileRow `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"`
}

// FileRow is one per-file result.
type FileRow struct {
	ID              uint   `gorm:"primaryKey"`
	BatchID         string `gorm:"index"`
	SourcePath      string
	TargetPath      string
	Success         bool
	Skipped         bool
	ErrorKind       string `gorm:"index"`
	OutputSizeBytes int64
	DurationMS      int64
	Attempts        int
	// Seed is stored as text: SQLite integers are signed.
	Seed       string
	Diagnostic string
}

// Elapsed is the batch wall-clock duration.
func (b BatchRow) Elapsed() time.Duration {
	return b.EndTime.Sub(b.StartTime)
}

// Catalog is a SQLite index of batch records.
type Catalog struct {
	db *gorm.DB
}

// OpenCatalog opens (creating if needed) the catalogue database at path.
func OpenCatalog(path string) (*Catalog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, dirPermissions); err != nil {
			return nil, fmt.Errorf("failed to create catalogue directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open catalogue: %w", err)
	}
	if err := db.AutoMigrate(&BatchRow{}, &FileRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate catalogue: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close releases the database handle.
func (c *Catalog) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save inserts a finalized batch and all its per-file results.
func (c *Catalog) Save(rec *batch.Record, recordPath string) error {
	row := BatchRow{
		ID:           rec.ID,
		Name:         rec.Name,
		SourceFolder: rec.SourceFolder,
		TargetFolder: rec.TargetFolder,
		Profile:      rec.Profile,
		StartTime:    rec.StartTime,
		EndTime:      rec.EndTime,
		TotalFiles:   rec.TotalFiles,
		SuccessCount: rec.SuccessCount,
		FailedCount:  rec.FailedCount,
		SkippedCount: rec.SkippedCount,
		SuccessRate:  rec.SuccessRate,
		RecordPath:   recordPath,
	}
	for _, r := range rec.PerFile {
		row.Files = append(row.Files, FileRow{
			BatchID:         rec.ID,
			SourcePath:      r.Task.SourcePath,
			TargetPath:      r.Task.TargetPath,
			Success:         r.Success,
			Skipped:         r.Skipped,
			ErrorKind:       string(r.ErrorKind),
			OutputSizeBytes: r.OutputSizeBytes,
			DurationMS:      r.DurationMS,
			Attempts:        r.Attempts,
			Seed:            strconv.FormatUint(r.Seed, 10),
			Diagnostic:      r.Diagnostic,
		})
	}

	return c.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert batch %s: %w", rec.ID, err)
		}
		return nil
	})
}

// List returns the most recent batches, newest first. limit <= 0 means all.
func (c *Catalog) List(limit int) ([]BatchRow, error) {
	var rows []BatchRow
	q := c.db.Order("start_time desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	return rows, nil
}

// Get returns one batch with its per-file rows.
func (c *Catalog) Get(id string) (*BatchRow, error) {
	var row BatchRow
	err := c.db.Preload("Files", func(db *gorm.DB) *gorm.DB {
		return db.Order("source_path")
	}).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load batch %s: %w", id, err)
	}
	return &row, nil
}

// Failed returns the failed files of a batch, the regeneration list.
func (c *Catalog) Failed(id string) ([]FileRow, error) {
	var rows []FileRow
	if err := c.db.Where("batch_id = ? AND success = ?", id, false).Order("source_path").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list failed files: %w", err)
	}
	return rows, nil
}

package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// checkpointRecord is the gorm row model.
type checkpointRecord struct {
	ID        string    `gorm:"primaryKey;size:36"`
	ThreadID  string    `gorm:"index:idx_thread_step,priority:1;size:128;not null"`
	Step      int       `gorm:"index:idx_thread_step,priority:2;not null"`
	State     []byte    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (checkpointRecord) TableName() string { return "checkpoints" }

// SQLiteStore persists checkpoints in a local SQLite file, giving
// single-process durability without external services. Pass ":memory:"
// for an ephemeral database.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (and migrates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}
	if err := db.AutoMigrate(&checkpointRecord{}); err != nil {
		return nil, fmt.Errorf("migrate checkpoints table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, cp *Checkpoint) error {
	prepare(cp)

	rec := checkpointRecord{
		ID:        cp.ID,
		ThreadID:  cp.ThreadID,
		Step:      cp.Step,
		State:     cp.State,
		CreatedAt: cp.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

func (s *SQLiteStore) LoadLatest(ctx context.Context, threadID string) (*Checkpoint, error) {
	var rec checkpointRecord
	err := s.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("step DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromRecord(rec), nil
}

func (s *SQLiteStore) List(ctx context.Context, threadID string, limit int) ([]*Checkpoint, error) {
	q := s.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("step DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var recs []checkpointRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*Checkpoint, len(recs))
	for i, rec := range recs {
		out[i] = fromRecord(rec)
	}
	return out, nil
}

func (s *SQLiteStore) DeleteThread(ctx context.Context, threadID string) error {
	return s.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Delete(&checkpointRecord{}).Error
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func fromRecord(rec checkpointRecord) *Checkpoint {
	return &Checkpoint{
		ID:        rec.ID,
		ThreadID:  rec.ThreadID,
		Step:      rec.Step,
		State:     rec.State,
		CreatedAt: rec.CreatedAt,
	}
}

var _ Store = (*SQLiteStore)(nil)

package store

import (
	"context"
	"errors"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record is one row of the kv_records table.
type Record struct {
	K         string `gorm:"primaryKey;type:varchar(255)"`
	V         string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (Record) TableName() string { return "kv_records" }

// SQLite is the default durable adapter: a single key-value table in a
// local SQLite file.
type SQLite struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) the database at path and migrates the
// kv_records table.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := gorm.Open(gormsqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) (string, error) {
	var rec Record
	err := s.db.WithContext(ctx).First(&rec, "k = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return rec.V, nil
}

func (s *SQLite) Set(ctx context.Context, key, value string) error {
	rec := Record{K: key, V: value, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "k"}},
			DoUpdates: clause.AssignmentColumns([]string{"v", "updated_at"}),
		}).
		Create(&rec).Error
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Delete(&Record{}, "k = ?", key).Error
}

package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record is a persisted key/value row.
type Record struct {
	Key       string `gorm:"primaryKey;size:255"`
	Value     []byte
	UpdatedAt time.Time
}

// TableName specifies the table name
func (Record) TableName() string {
	return "storefront_kv"
}

// Gorm is a KV backend on Postgres through GORM.
type Gorm struct {
	db *gorm.DB
}

// NewGorm wraps a GORM connection as a KV backend
func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

// AutoMigrate creates the backing table
func (g *Gorm) AutoMigrate() error {
	return g.db.AutoMigrate(&Record{})
}

func (g *Gorm) Get(ctx context.Context, key string) ([]byte, error) {
	var record Record
	err := g.db.WithContext(ctx).First(&record, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record.Value, nil
}

func (g *Gorm) Set(ctx context.Context, key string, value []byte) error {
	record := Record{Key: key, Value: value, UpdatedAt: time.Now()}
	return g.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&record).Error
}

func (g *Gorm) Remove(ctx context.Context, key string) error {
	return g.db.WithContext(ctx).Delete(&Record{}, "key = ?", key).Error
}

package storage

import (
	"biblioteca/pkg/models"
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is a scoped key/value store. Values are opaque text documents.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// Batcher is implemented by stores that can write several keys atomically.
type Batcher interface {
	SetMany(ctx context.Context, values map[string][]byte) error
}

// GormStore keeps every key as a row of kv_entries, namespaced by prefix.
type GormStore struct {
	db     *gorm.DB
	prefix string
}

func NewGormStore(db *gorm.DB, prefix string) *GormStore {
	return &GormStore{db: db, prefix: prefix}
}

func (s *GormStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry models.KVEntry
	err := s.db.WithContext(ctx).Where(&models.KVEntry{Key: s.prefix + key}).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return []byte(entry.Value), true, nil
}

func (s *GormStore) Set(ctx context.Context, key string, value []byte) error {
	if err := upsert(s.db.WithContext(ctx), s.prefix+key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// SetMany writes all values in one transaction; either every key is updated or none is.
func (s *GormStore) SetMany(ctx context.Context, values map[string][]byte) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, value := range values {
			if err := upsert(tx, s.prefix+key, value); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
		}
		return nil
	})
}

func (s *GormStore) Remove(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Where(&models.KVEntry{Key: s.prefix + key}).Delete(&models.KVEntry{}).Error
	if err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Keys lists the keys of this scope with the prefix stripped.
func (s *GormStore) Keys(ctx context.Context) ([]string, error) {
	var raw []string
	err := s.db.WithContext(ctx).Model(&models.KVEntry{}).
		Where(clause.Like{Column: clause.Column{Name: "key"}, Value: s.prefix + "%"}).
		Order("key").
		Pluck("key", &raw).Error
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}

	// LIKE treats '_' in the prefix as a wildcard.
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		if strings.HasPrefix(k, s.prefix) {
			keys = append(keys, strings.TrimPrefix(k, s.prefix))
		}
	}
	return keys, nil
}

func upsert(db *gorm.DB, key string, value []byte) error {
	entry := models.KVEntry{Key: key, Value: string(value)}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

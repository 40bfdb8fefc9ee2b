package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"QFMResolver/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DBStore 基于 cache_entries 表的持久化缓存
type DBStore struct {
	db  *gorm.DB
	now func() time.Time
}

var (
	_ Store   = (*DBStore)(nil)
	_ Sweeper = (*DBStore)(nil)
)

// NewDBStore 创建数据库缓存
func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db, now: time.Now}
}

// Get 读取缓存，过期行视为不存在
func (s *DBStore) Get(ctx context.Context, key string) ([]byte, error) {
	var rec model.CacheEntryRecord
	err := s.db.WithContext(ctx).Where("cache_key = ?", key).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("%w: db get %s: %v", ErrUnavailable, key, err)
	}

	if rec.ExpiresAt != nil && !s.now().Before(*rec.ExpiresAt) {
		return nil, ErrMiss
	}
	return rec.Value, nil
}

// Set 写入或覆盖缓存
func (s *DBStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	rec := model.CacheEntryRecord{
		Key:       key,
		Value:     value,
		ExpiresAt: expiresAt(s.now(), ttl),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("%w: db set %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Invalidate 删除缓存
func (s *DBStore) Invalidate(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Where("cache_key = ?", key).Delete(&model.CacheEntryRecord{}).Error
	if err != nil {
		return fmt.Errorf("%w: db delete %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Sweep 删除所有已过期的行
func (s *DBStore) Sweep(ctx context.Context) (int, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", s.now()).
		Delete(&model.CacheEntryRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("%w: db sweep: %v", ErrUnavailable, res.Error)
	}
	return int(res.RowsAffected), nil
}

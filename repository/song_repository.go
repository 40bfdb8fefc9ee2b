package repository

import (
	"context"
	"errors"
	"unicode/utf8"

	"QFMResolver/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SongRepository 歌曲元数据访问接口
type SongRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Track, error)
	FindBySource(ctx context.Context, source model.MusicSource, sourceID string) (*model.Track, error)
	// Upsert 按 (source, sourceId) 插入或更新元数据，返回带内部 ID 的歌曲
	Upsert(ctx context.Context, track *model.Track) (*model.Track, error)
}

// gormSongRepository GORM 实现
type gormSongRepository struct {
	db *gorm.DB
}

// NewGormSongRepository 创建 GORM 歌曲仓库
func NewGormSongRepository(db *gorm.DB) SongRepository {
	return &gormSongRepository{db: db}
}

// FindByID 根据内部ID获取歌曲
func (r *gormSongRepository) FindByID(ctx context.Context, id int64) (*model.Track, error) {
	var rec model.SongRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, wrapErr("find song", err)
	}
	return rec.ToTrack(), nil
}

// FindBySource 根据上游标识获取歌曲
func (r *gormSongRepository) FindBySource(ctx context.Context, source model.MusicSource, sourceID string) (*model.Track, error) {
	rec, err := findSongRecord(ctx, r.db, source, sourceID)
	if err != nil {
		return nil, err
	}
	return rec.ToTrack(), nil
}

// Upsert 插入或更新歌曲元数据，空字段不会覆盖已有值
func (r *gormSongRepository) Upsert(ctx context.Context, track *model.Track) (*model.Track, error) {
	rec, err := ensureSongRecord(ctx, r.db, track)
	if err != nil {
		return nil, err
	}
	return rec.ToTrack(), nil
}

func findSongRecord(ctx context.Context, db *gorm.DB, source model.MusicSource, sourceID string) (*model.SongRecord, error) {
	var rec model.SongRecord
	err := db.WithContext(ctx).
		Where("source = ? AND source_id = ?", string(source), sourceID).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, wrapErr("find song", err)
	}
	return &rec, nil
}

func ensureSongRecord(ctx context.Context, db *gorm.DB, track *model.Track) (*model.SongRecord, error) {
	rec := model.SongRecord{
		Source:   string(track.Source),
		SourceID: track.SourceID,
		Title:    truncate(track.Title, 255),
		Artist:   truncate(track.Artist, 255),
		Album:    truncate(track.Album, 255),
		Duration: track.Duration,
	}

	// 只更新非空的元数据字段
	updates := []string{"updated_at"}
	if rec.Title != "" {
		updates = append(updates, "title")
	}
	if rec.Artist != "" {
		updates = append(updates, "artist")
	}
	if rec.Album != "" {
		updates = append(updates, "album")
	}
	if rec.Duration > 0 {
		updates = append(updates, "duration")
	}

	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}, {Name: "source_id"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(&rec).Error
	if err != nil {
		return nil, wrapErr("upsert song", err)
	}

	// ON CONFLICT 分支下部分驱动拿不到自增ID，重新查一次
	return findSongRecord(ctx, db, track.Source, track.SourceID)
}

// truncate 按字符截断，与 MySQL varchar(n) 的字符计数一致
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"QFMResolver/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SongURLRepository 播放地址持久化接口，作为 TTL 缓存之下的二级缓存
type SongURLRepository interface {
	// FindValid 返回 active 且未过期的最佳候选：优先音质完全匹配，
	// 否则（或 quality 为空时）返回码率最高的候选；没有则返回 ErrNotFound
	FindValid(ctx context.Context, key model.TrackKey, quality string) (*model.PlaybackCandidate, error)
	// Upsert 按 (trackKey, quality, source) 插入或覆盖
	Upsert(ctx context.Context, candidate *model.PlaybackCandidate) error
	// MarkInactive 标记地址失效，直到下次成功获取后刷新
	MarkInactive(ctx context.Context, key model.TrackKey, quality string, source model.MusicSource) error
}

// gormSongURLRepository GORM 实现
type gormSongURLRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// URLRepositoryOption 播放地址仓库选项
type URLRepositoryOption func(*gormSongURLRepository)

// WithClock 替换判断过期用的时钟
func WithClock(now func() time.Time) URLRepositoryOption {
	return func(r *gormSongURLRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewGormSongURLRepository 创建 GORM 播放地址仓库
func NewGormSongURLRepository(db *gorm.DB, opts ...URLRepositoryOption) SongURLRepository {
	r := &gormSongURLRepository{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *gormSongURLRepository) songID(ctx context.Context, key model.TrackKey) (int64, error) {
	if !key.HasSourceID() {
		if key.InternalID > 0 {
			return key.InternalID, nil
		}
		return 0, ErrNotFound
	}
	rec, err := findSongRecord(ctx, r.db, key.Source, key.SourceID)
	if err != nil {
		return 0, err
	}
	return rec.ID, nil
}

// FindValid 查找可用的播放地址
func (r *gormSongURLRepository) FindValid(ctx context.Context, key model.TrackKey, quality string) (*model.PlaybackCandidate, error) {
	songID, err := r.songID(ctx, key)
	if err != nil {
		return nil, err
	}

	now := r.now()
	var rows []model.SongURLRecord
	err = r.db.WithContext(ctx).
		Where("song_id = ? AND is_active = ?", songID, true).
		Find(&rows).Error
	if err != nil {
		return nil, wrapErr("find song urls", err)
	}

	// 过期在内存中过滤
	candidates := make([]*model.PlaybackCandidate, 0, len(rows))
	for i := range rows {
		c := rows[i].ToCandidate(key)
		if c.ValidAt(now) {
			candidates = append(candidates, c)
		}
	}

	best := PickBest(candidates, quality)
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

// PickBest 在候选中挑选最佳地址：音质完全匹配优先，其次码率最高
func PickBest(candidates []*model.PlaybackCandidate, quality string) *model.PlaybackCandidate {
	if len(candidates) == 0 {
		return nil
	}

	sorted := make([]*model.PlaybackCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BitrateValue() > sorted[j].BitrateValue()
	})

	if model.NormalizeQuality(quality) != "" {
		for _, c := range sorted {
			if model.SameQuality(c.Quality, quality) {
				return c
			}
		}
	}
	return sorted[0]
}

// Upsert 写入播放地址，必要时先建立歌曲记录
func (r *gormSongURLRepository) Upsert(ctx context.Context, c *model.PlaybackCandidate) error {
	var songID int64
	switch {
	case c.TrackKey.HasSourceID():
		track := model.Track{Source: c.TrackKey.Source, SourceID: c.TrackKey.SourceID}
		if c.Track != nil {
			track.Title = c.Track.Title
			track.Artist = c.Track.Artist
			track.Album = c.Track.Album
			track.Duration = c.Track.Duration
		}
		rec, err := ensureSongRecord(ctx, r.db, &track)
		if err != nil {
			return err
		}
		songID = rec.ID
	case c.TrackKey.InternalID > 0:
		songID = c.TrackKey.InternalID
	default:
		return wrapErr("upsert song url", model.ErrInvalidTrackKey)
	}

	row := model.SongURLRecord{
		SongID:    songID,
		Quality:   model.NormalizeQuality(c.Quality),
		Source:    string(c.Source),
		Bitrate:   c.Bitrate,
		Format:    c.Format,
		URL:       c.URL,
		FileSize:  c.FileSize,
		ExpiresAt: c.ExpiresAt,
		IsActive:  c.IsActive,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "song_id"}, {Name: "quality"}, {Name: "source"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"bitrate", "format", "url", "file_size", "expires_at", "is_active", "updated_at",
		}),
	}).Create(&row).Error
	return wrapErr("upsert song url", err)
}

// MarkInactive 标记地址失效，记录不存在时不报错
func (r *gormSongURLRepository) MarkInactive(ctx context.Context, key model.TrackKey, quality string, source model.MusicSource) error {
	songID, err := r.songID(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	err = r.db.WithContext(ctx).Model(&model.SongURLRecord{}).
		Where("song_id = ? AND quality = ? AND source = ?", songID, model.NormalizeQuality(quality), string(source)).
		Update("is_active", false).Error
	return wrapErr("mark inactive", err)
}

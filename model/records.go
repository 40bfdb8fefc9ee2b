package model

import "time"

// ========== 持久化结构（GORM） ==========

// SongRecord 歌曲表
type SongRecord struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Source    string    `json:"source" gorm:"size:16;not null;uniqueIndex:uq_song_source"`
	SourceID  string    `json:"sourceId" gorm:"size:64;not null;uniqueIndex:uq_song_source"`
	Title     string    `json:"title" gorm:"size:255"`
	Artist    string    `json:"artist" gorm:"size:255"`
	Album     string    `json:"album" gorm:"size:255"`
	Duration  float64   `json:"duration"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (SongRecord) TableName() string {
	return "songs"
}

// ToTrack 转换为领域结构
func (r *SongRecord) ToTrack() *Track {
	return &Track{
		ID:       r.ID,
		Source:   MusicSource(r.Source),
		SourceID: r.SourceID,
		Title:    r.Title,
		Artist:   r.Artist,
		Album:    r.Album,
		Duration: r.Duration,
	}
}

// SongURLRecord 歌曲播放地址表，(song, quality, source) 唯一
type SongURLRecord struct {
	ID        int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	SongID    int64      `json:"songId" gorm:"not null;uniqueIndex:uq_song_url"`
	Quality   string     `json:"quality" gorm:"size:16;not null;uniqueIndex:uq_song_url"`
	Source    string     `json:"source" gorm:"size:16;not null;uniqueIndex:uq_song_url"`
	Bitrate   *int       `json:"bitrate,omitempty"`
	Format    string     `json:"format" gorm:"size:16"`
	URL       string     `json:"url" gorm:"type:text;not null"`
	FileSize  *int64     `json:"fileSize,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty" gorm:"index"`
	IsActive  bool       `json:"isActive" gorm:"not null;index"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// TableName 指定表名
func (SongURLRecord) TableName() string {
	return "song_urls"
}

// ToCandidate converts the row back into a candidate for the given track.
func (r *SongURLRecord) ToCandidate(key TrackKey) *PlaybackCandidate {
	return &PlaybackCandidate{
		TrackKey:  key,
		Source:    MusicSource(r.Source),
		Quality:   r.Quality,
		Bitrate:   r.Bitrate,
		Format:    r.Format,
		URL:       r.URL,
		FileSize:  r.FileSize,
		ExpiresAt: r.ExpiresAt,
		IsActive:  r.IsActive,
	}
}

// CacheEntryRecord 通用缓存表，ExpiresAt 为空表示不过期
type CacheEntryRecord struct {
	Key       string     `gorm:"column:cache_key;primaryKey;size:255"`
	Value     []byte     `gorm:"type:blob"`
	ExpiresAt *time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定表名
func (CacheEntryRecord) TableName() string {
	return "cache_entries"
}

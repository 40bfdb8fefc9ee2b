package model

import "time"

// PlaybackCandidate 某一音源、某一音质下的可播放地址
type PlaybackCandidate struct {
	TrackKey  TrackKey    `json:"trackKey"`
	Source    MusicSource `json:"source"`
	Quality   string      `json:"quality"`
	Bitrate   *int        `json:"bitrate,omitempty"`
	Format    string      `json:"format"`
	URL       string      `json:"url"`
	FileSize  *int64      `json:"fileSize,omitempty"`
	ExpiresAt *time.Time  `json:"expiresAt,omitempty"`
	IsActive  bool        `json:"isActive"`

	// Track 是上游顺带返回的元数据，可能为空
	Track *Track `json:"track,omitempty"`
}

// Expired reports whether the candidate carries an expiry that is not after now.
func (c *PlaybackCandidate) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// ValidAt 是否在 now 时刻可用：必须 active 且未过期
func (c *PlaybackCandidate) ValidAt(now time.Time) bool {
	return c != nil && c.IsActive && c.URL != "" && !c.Expired(now)
}

// TTL 返回距离过期的时长；ExpiresAt 为空时 ok=false
func (c *PlaybackCandidate) TTL(now time.Time) (ttl time.Duration, ok bool) {
	if c.ExpiresAt == nil {
		return 0, false
	}
	return c.ExpiresAt.Sub(now), true
}

// BitrateValue 返回码率，未知时为 0
func (c *PlaybackCandidate) BitrateValue() int {
	if c.Bitrate == nil {
		return 0
	}
	return *c.Bitrate
}

// CacheRecord is one entry of the generic TTL cache.
// A nil ExpiresAt never expires.
type CacheRecord struct {
	Key       string
	Value     []byte
	ExpiresAt *time.Time
}

// ExpiredAt reports whether the record is logically absent at now.
func (r *CacheRecord) ExpiredAt(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}
